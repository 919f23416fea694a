package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RuleCondition is one predicate of a reconciliation rule. When Value is
// empty the statement line field is compared against the candidate ledger
// entry field; otherwise it is compared against the literal value.
// AllowableDrift loosens amount comparisons (absolute amount) and date
// comparisons (days).
type RuleCondition struct {
	Field          RuleConditionField    `json:"field"`
	Operator       RuleConditionOperator `json:"operator"`
	Value          string                `json:"value"`
	AllowableDrift float64               `json:"allowable_drift"`
}

// ReconciliationRule is a user-defined matching shortcut evaluated before
// generic similarity scoring, in priority order (lower number first).
type ReconciliationRule struct {
	ID         int            `gorm:"primary_key" json:"id"`
	BusinessId string         `gorm:"size:64;index;not null" json:"business_id"`
	AccountId  *int           `gorm:"index" json:"account_id"`
	Name       string         `gorm:"size:100;not null" json:"name" binding:"required"`
	Conditions []byte         `gorm:"type:blob;not null" json:"-"`
	Action     RuleActionType `gorm:"type:enum('auto_match','auto_categorize');default:auto_match" json:"action"`
	Priority   int            `gorm:"not null;default:100;index" json:"priority"`
	Tags       string         `gorm:"size:255" json:"tags"`
	IsActive   *bool          `gorm:"not null;default:true" json:"is_active"`
	UseCount   int            `gorm:"not null;default:0" json:"use_count"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReconciliationRule struct {
	AccountId  *int            `json:"account_id"`
	Name       string          `json:"name" binding:"required"`
	Conditions []RuleCondition `json:"conditions" binding:"required"`
	Action     RuleActionType  `json:"action"`
	Priority   int             `json:"priority"`
	Tags       []string        `json:"tags"`
	IsActive   *bool           `json:"is_active"`
}

func (rule ReconciliationRule) GetBusinessId() string {
	return rule.BusinessId
}

func (rule ReconciliationRule) GetId() int {
	return rule.ID
}

func (rule ReconciliationRule) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[ReconciliationRule](rule.ID)
}

func (rule ReconciliationRule) RemoveAllRedis() error {
	return utils.RemoveRedisList[ReconciliationRule](rule.BusinessId)
}

// DecodeConditions parses the stored condition list. A malformed blob is an
// error for the caller to log and skip, never fatal.
func (rule ReconciliationRule) DecodeConditions() ([]RuleCondition, error) {
	var conditions []RuleCondition
	if err := json.Unmarshal(rule.Conditions, &conditions); err != nil {
		return nil, fmt.Errorf("rule %d has malformed conditions: %w", rule.ID, err)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("rule %d has no conditions", rule.ID)
	}
	return conditions, nil
}

func validateConditions(conditions []RuleCondition) error {
	if len(conditions) == 0 {
		return errors.New("at least one condition is required")
	}
	for i, cond := range conditions {
		if !cond.Field.IsValid() {
			return fmt.Errorf("condition %d: invalid field %q", i+1, cond.Field)
		}
		if !cond.Operator.IsValid() {
			return fmt.Errorf("condition %d: invalid operator %q", i+1, cond.Operator)
		}
		if cond.AllowableDrift < 0 {
			return fmt.Errorf("condition %d: drift must not be negative", i+1)
		}
		switch cond.Field {
		case RuleConditionFieldAmount:
			if cond.Operator == RuleConditionOperatorContains {
				return fmt.Errorf("condition %d: contains is not valid for amount", i+1)
			}
			if cond.Value != "" {
				if _, err := decimal.NewFromString(cond.Value); err != nil {
					return fmt.Errorf("condition %d: invalid amount value %q", i+1, cond.Value)
				}
			}
		case RuleConditionFieldDate:
			if cond.Operator == RuleConditionOperatorContains {
				return fmt.Errorf("condition %d: contains is not valid for date", i+1)
			}
			if cond.Value != "" {
				if _, err := time.Parse("2006-01-02", cond.Value); err != nil {
					return fmt.Errorf("condition %d: invalid date value %q", i+1, cond.Value)
				}
			}
		case RuleConditionFieldDescription, RuleConditionFieldReference:
			if cond.Operator == RuleConditionOperatorGreaterThan || cond.Operator == RuleConditionOperatorLessThan {
				return fmt.Errorf("condition %d: %s is not valid for text fields", i+1, cond.Operator)
			}
		}
	}
	return nil
}

func (input NewReconciliationRule) validate(ctx context.Context, businessId string) error {
	if input.AccountId != nil {
		if err := utils.ValidateResourceId[BankAccount](ctx, businessId, *input.AccountId); err != nil {
			return errors.New("bank account not found")
		}
	}
	if input.Action != "" && !input.Action.IsValid() {
		return errors.New("invalid rule action")
	}
	if input.Priority < 0 {
		return errors.New("priority must not be negative")
	}
	return validateConditions(input.Conditions)
}

func CreateReconciliationRule(ctx context.Context, input *NewReconciliationRule) (*ReconciliationRule, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	conditionsJSON, err := json.Marshal(input.Conditions)
	if err != nil {
		return nil, err
	}

	action := input.Action
	if action == "" {
		action = RuleActionAutoMatch
	}
	priority := input.Priority
	if priority == 0 {
		priority = 100
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	rule := ReconciliationRule{
		BusinessId: businessId,
		AccountId:  input.AccountId,
		Name:       input.Name,
		Conditions: conditionsJSON,
		Action:     action,
		Priority:   priority,
		Tags:       strings.Join(input.Tags, ","),
		IsActive:   isActive,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&rule).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishToReconciliation(ctx, tx, businessId, time.Now(), rule.ID,
		ReconReferenceTypeRule, &rule, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func UpdateReconciliationRule(ctx context.Context, id int, input *NewReconciliationRule) (*ReconciliationRule, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	rule, err := utils.FetchModel[ReconciliationRule](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	oldRule := *rule

	conditionsJSON, err := json.Marshal(input.Conditions)
	if err != nil {
		return nil, err
	}

	rule.AccountId = input.AccountId
	rule.Name = input.Name
	rule.Conditions = conditionsJSON
	if input.Action != "" {
		rule.Action = input.Action
	}
	if input.Priority != 0 {
		rule.Priority = input.Priority
	}
	rule.Tags = strings.Join(input.Tags, ",")
	if input.IsActive != nil {
		rule.IsActive = input.IsActive
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Save(rule).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishToReconciliation(ctx, tx, businessId, time.Now(), rule.ID,
		ReconReferenceTypeRule, rule, &oldRule, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func DeleteReconciliationRule(ctx context.Context, id int) (*ReconciliationRule, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	rule, err := utils.FetchModel[ReconciliationRule](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(rule).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishToReconciliation(ctx, tx, businessId, time.Now(), rule.ID,
		ReconReferenceTypeRule, nil, rule, PubSubMessageActionDelete); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func GetReconciliationRule(ctx context.Context, id int) (*ReconciliationRule, error) {
	return GetResource[ReconciliationRule](ctx, id)
}

// list active rules for one account ordered by priority, then id for a
// stable tie-break. Rules without an account apply to every account.
func ListActiveReconciliationRules(ctx context.Context, accountId int) ([]*ReconciliationRule, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	var results []*ReconciliationRule
	err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessId, true).
		Where("account_id IS NULL OR account_id = ?", accountId).
		Order("priority, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListReconciliationRules(ctx context.Context) ([]*ReconciliationRule, error) {
	return ListAllResource[ReconciliationRule, ReconciliationRule](ctx, "priority, id")
}

// Matches evaluates the rule against a statement line / ledger entry pair.
// Every condition must hold. Returns an error when the stored conditions are
// malformed; callers log a warning and fall through to scoring.
func (rule ReconciliationRule) Matches(line *StatementLine, entry *LedgerEntry) (bool, error) {
	conditions, err := rule.DecodeConditions()
	if err != nil {
		return false, err
	}
	for _, cond := range conditions {
		ok, err := evaluateCondition(cond, line, entry)
		if err != nil {
			return false, fmt.Errorf("rule %d: %w", rule.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateCondition(cond RuleCondition, line *StatementLine, entry *LedgerEntry) (bool, error) {
	switch cond.Field {
	case RuleConditionFieldAmount:
		target := entry.Amount
		if cond.Value != "" {
			parsed, err := decimal.NewFromString(cond.Value)
			if err != nil {
				return false, fmt.Errorf("invalid amount value %q", cond.Value)
			}
			target = parsed
		}
		switch cond.Operator {
		case RuleConditionOperatorEquals:
			drift := decimal.NewFromFloat(cond.AllowableDrift)
			return line.Amount.Sub(target).Abs().LessThanOrEqual(drift), nil
		case RuleConditionOperatorGreaterThan:
			return line.Amount.GreaterThan(target), nil
		case RuleConditionOperatorLessThan:
			return line.Amount.LessThan(target), nil
		}
		return false, fmt.Errorf("unsupported amount operator %q", cond.Operator)

	case RuleConditionFieldDate:
		target := entry.TransactionDate
		if cond.Value != "" {
			parsed, err := time.Parse("2006-01-02", cond.Value)
			if err != nil {
				return false, fmt.Errorf("invalid date value %q", cond.Value)
			}
			target = parsed
		}
		days := daysApart(line.TransactionDate, target)
		switch cond.Operator {
		case RuleConditionOperatorEquals:
			return float64(days) <= cond.AllowableDrift, nil
		case RuleConditionOperatorGreaterThan:
			return line.TransactionDate.After(target), nil
		case RuleConditionOperatorLessThan:
			return line.TransactionDate.Before(target), nil
		}
		return false, fmt.Errorf("unsupported date operator %q", cond.Operator)

	case RuleConditionFieldDescription, RuleConditionFieldReference:
		lineValue := line.Description
		entryValue := entry.Description
		if cond.Field == RuleConditionFieldReference {
			lineValue = line.Reference
			entryValue = entry.ReferenceNumber
		}
		target := entryValue
		if cond.Value != "" {
			target = cond.Value
		}
		switch cond.Operator {
		case RuleConditionOperatorEquals:
			return strings.EqualFold(strings.TrimSpace(lineValue), strings.TrimSpace(target)), nil
		case RuleConditionOperatorContains:
			return strings.Contains(strings.ToUpper(lineValue), strings.ToUpper(strings.TrimSpace(target))), nil
		}
		return false, fmt.Errorf("unsupported text operator %q", cond.Operator)
	}
	return false, fmt.Errorf("unsupported field %q", cond.Field)
}

func daysApart(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// IncrementRuleUseCount bumps the use counter inside the caller's
// transaction.
func IncrementRuleUseCount(ctx context.Context, tx *gorm.DB, ruleId int) error {
	return tx.WithContext(ctx).Model(&ReconciliationRule{}).
		Where("id = ?", ruleId).
		UpdateColumn("use_count", gorm.Expr("use_count + 1")).Error
}
