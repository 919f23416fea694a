package config

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/recon_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

type guardedRow struct {
	ID         int
	BusinessId string
}

type unguardedRow struct {
	ID   int
	Name string
}

func guardStatement(t *testing.T, ctx context.Context, model interface{}) *gorm.DB {
	t.Helper()
	sch, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("schema.Parse: %v", err)
	}
	db := &gorm.DB{Config: &gorm.Config{}}
	db.Statement = &gorm.Statement{
		DB:      db,
		Context: ctx,
		Schema:  sch,
		Table:   sch.Table,
		Clauses: map[string]clause.Clause{},
	}
	return db
}

func TestTenantGuardRequiresBusinessScope(t *testing.T) {
	db := guardStatement(t, context.Background(), &guardedRow{})
	scopeTenantQuery(db)
	if !errors.Is(db.Error, ErrMissingBusinessScope) {
		t.Fatalf("error = %v, want ErrMissingBusinessScope", db.Error)
	}
}

func TestTenantGuardScopesByContextBusiness(t *testing.T) {
	ctx := appctx.Set(context.Background(), appctx.ContextKeyBusinessId, "biz-7")
	db := guardStatement(t, ctx, &guardedRow{})
	scopeTenantQuery(db)
	if db.Error != nil {
		t.Fatalf("unexpected error: %v", db.Error)
	}
	if !whereHasBusinessId(db) {
		t.Fatalf("business_id clause was not added")
	}
}

func TestTenantGuardHonorsBypassFlags(t *testing.T) {
	for name, key := range map[string]appctx.ContextKey{
		"skip flag": appctx.ContextKeySkipTenantScope,
		"admin":     appctx.ContextKeyIsAdmin,
	} {
		ctx := appctx.Set(context.Background(), key, true)
		db := guardStatement(t, ctx, &guardedRow{})
		scopeTenantQuery(db)
		if db.Error != nil {
			t.Fatalf("%s: unexpected error: %v", name, db.Error)
		}
		if whereHasBusinessId(db) {
			t.Fatalf("%s: clause added despite bypass", name)
		}
	}
}

func TestTenantGuardIgnoresUnscopedTables(t *testing.T) {
	db := guardStatement(t, context.Background(), &unguardedRow{})
	scopeTenantQuery(db)
	if db.Error != nil {
		t.Fatalf("unexpected error: %v", db.Error)
	}
	if whereHasBusinessId(db) {
		t.Fatalf("clause added to a table without business_id")
	}
}

func TestTenantGuardRespectsExistingBusinessFilter(t *testing.T) {
	db := guardStatement(t, context.Background(), &guardedRow{})
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Name: "business_id"}, Value: "biz-9"},
	}})
	scopeTenantQuery(db)
	if db.Error != nil {
		t.Fatalf("explicitly scoped query errored: %v", db.Error)
	}
}
