package config

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/recon_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMissingBusinessScope is returned when a query against a tenant-scoped
// table runs without a business id in the context and without the skip flag.
var ErrMissingBusinessScope = errors.New("missing business scope for tenant-scoped query")

// NewTenantGuardPlugin enforces business_id scoping on reads and writes for
// models that carry a BusinessId column. Queries made by admin users or with
// the SkipTenantScope flag set are left alone.
func NewTenantGuardPlugin() gorm.Plugin {
	return &tenantGuardPlugin{}
}

type tenantGuardPlugin struct{}

func (p *tenantGuardPlugin) Name() string {
	return "tenantGuard"
}

func (p *tenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", scopeTenantQuery); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", scopeTenantQuery); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", scopeTenantQuery); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeTenantQuery); err != nil {
		return err
	}
	return nil
}

func scopeTenantQuery(db *gorm.DB) {
	if db.Statement == nil || db.Statement.Schema == nil {
		return
	}

	ctx := db.Statement.Context
	if skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); skip {
		return
	}
	if isAdmin, _ := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin); isAdmin {
		return
	}

	field := db.Statement.Schema.LookUpField("business_id")
	if field == nil {
		return
	}

	if whereHasBusinessId(db) {
		return
	}

	businessId, _ := appctx.GetString(ctx, appctx.ContextKeyBusinessId)
	if businessId == "" {
		_ = db.AddError(fmt.Errorf("%w: table=%s", ErrMissingBusinessScope, db.Statement.Table))
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "business_id"}, Value: businessId},
		},
	})
}

func whereHasBusinessId(db *gorm.DB) bool {
	c, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if exprMentionsBusinessId(expr) {
			return true
		}
	}
	return false
}

func exprMentionsBusinessId(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return columnIsBusinessId(e.Column)
	case clause.IN:
		return columnIsBusinessId(e.Column)
	case clause.Expr:
		return containsBusinessIdSQL(e.SQL)
	case clause.NamedExpr:
		return containsBusinessIdSQL(e.SQL)
	case clause.AndConditions:
		for _, sub := range e.Exprs {
			if exprMentionsBusinessId(sub) {
				return true
			}
		}
	case clause.OrConditions:
		for _, sub := range e.Exprs {
			if exprMentionsBusinessId(sub) {
				return true
			}
		}
	case clause.NotConditions:
		for _, sub := range e.Exprs {
			if exprMentionsBusinessId(sub) {
				return true
			}
		}
	}
	return false
}

func columnIsBusinessId(column interface{}) bool {
	switch col := column.(type) {
	case clause.Column:
		return col.Name == "business_id"
	case string:
		return containsBusinessIdSQL(col)
	}
	return false
}

func containsBusinessIdSQL(sql string) bool {
	// Cheap substring check covers "business_id = ?" and qualified forms.
	for i := 0; i+len("business_id") <= len(sql); i++ {
		if sql[i:i+len("business_id")] == "business_id" {
			return true
		}
	}
	return false
}
