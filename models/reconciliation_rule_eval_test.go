package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/shopspring/decimal"
)

func ruleWith(t *testing.T, conditions []models.RuleCondition) models.ReconciliationRule {
	t.Helper()
	blob, err := json.Marshal(conditions)
	if err != nil {
		t.Fatalf("marshal conditions: %v", err)
	}
	return models.ReconciliationRule{
		ID:         1,
		BusinessId: "biz-1",
		Name:       "test rule",
		Conditions: blob,
		Action:     models.RuleActionAutoMatch,
		Priority:   10,
	}
}

func evalLine(amount string, date time.Time, description, reference string) *models.StatementLine {
	return &models.StatementLine{
		ID:              1,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: date,
		Description:     description,
		Reference:       reference,
	}
}

func evalEntry(amount string, date time.Time, description, reference string) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:              2,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: date,
		Description:     description,
		ReferenceNumber: reference,
	}
}

func TestRuleMatches_AmountCrossFieldWithDrift(t *testing.T) {
	rule := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldAmount, Operator: models.RuleConditionOperatorEquals, AllowableDrift: 0.05},
	})
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ok, err := rule.Matches(evalLine("100.00", when, "", ""), evalEntry("100.04", when, "", ""))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Fatalf("amounts within drift did not match")
	}

	ok, err = rule.Matches(evalLine("100.00", when, "", ""), evalEntry("100.10", when, "", ""))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if ok {
		t.Fatalf("amounts beyond drift matched")
	}
}

func TestRuleMatches_AmountLiteralComparison(t *testing.T) {
	rule := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldAmount, Operator: models.RuleConditionOperatorGreaterThan, Value: "1000"},
	})
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ok, err := rule.Matches(evalLine("1500.00", when, "", ""), evalEntry("1.00", when, "", ""))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Fatalf("1500 > 1000 did not match")
	}

	ok, _ = rule.Matches(evalLine("999.99", when, "", ""), evalEntry("1.00", when, "", ""))
	if ok {
		t.Fatalf("999.99 > 1000 matched")
	}
}

func TestRuleMatches_DateWithinDriftDays(t *testing.T) {
	rule := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldDate, Operator: models.RuleConditionOperatorEquals, AllowableDrift: 2},
	})
	base := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	ok, err := rule.Matches(evalLine("1", base, "", ""), evalEntry("1", base.AddDate(0, 0, 2), "", ""))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Fatalf("dates two days apart did not match with drift 2")
	}

	ok, _ = rule.Matches(evalLine("1", base, "", ""), evalEntry("1", base.AddDate(0, 0, 3), "", ""))
	if ok {
		t.Fatalf("dates three days apart matched with drift 2")
	}
}

func TestRuleMatches_DescriptionContainsLiteral(t *testing.T) {
	rule := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldDescription, Operator: models.RuleConditionOperatorContains, Value: "stripe"},
	})
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ok, err := rule.Matches(evalLine("1", when, "STRIPE PAYOUT 8821", ""), evalEntry("1", when, "", ""))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Fatalf("case-insensitive contains did not match")
	}

	ok, _ = rule.Matches(evalLine("1", when, "PAYPAL TRANSFER", ""), evalEntry("1", when, "", ""))
	if ok {
		t.Fatalf("unrelated description matched")
	}
}

func TestRuleMatches_ReferenceCrossField(t *testing.T) {
	rule := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldReference, Operator: models.RuleConditionOperatorEquals},
	})
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ok, err := rule.Matches(evalLine("1", when, "", "INV-100"), evalEntry("1", when, "", "inv-100"))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Fatalf("matching references did not match")
	}
}

func TestRuleMatches_AllConditionsMustHold(t *testing.T) {
	rule := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldAmount, Operator: models.RuleConditionOperatorEquals},
		{Field: models.RuleConditionFieldDescription, Operator: models.RuleConditionOperatorContains, Value: "RENT"},
	})
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ok, err := rule.Matches(evalLine("800", when, "MONTHLY RENT", ""), evalEntry("800", when, "", ""))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Fatalf("pair satisfying both conditions did not match")
	}

	// amount holds, description does not
	ok, _ = rule.Matches(evalLine("800", when, "GROCERIES", ""), evalEntry("800", when, "", ""))
	if ok {
		t.Fatalf("pair failing one condition matched")
	}
}

func TestRuleMatches_MalformedConditionsReturnError(t *testing.T) {
	rule := models.ReconciliationRule{
		ID:         7,
		Conditions: []byte("{not json"),
	}
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := rule.Matches(evalLine("1", when, "", ""), evalEntry("1", when, "", ""))
	if err == nil {
		t.Fatalf("malformed conditions did not surface an error")
	}

	// decodes but uses an operator the field does not support
	bad := ruleWith(t, []models.RuleCondition{
		{Field: models.RuleConditionFieldAmount, Operator: models.RuleConditionOperatorContains},
	})
	if _, err := bad.Matches(evalLine("1", when, "", ""), evalEntry("1", when, "", "")); err == nil {
		t.Fatalf("unsupported operator did not surface an error")
	}

	empty := models.ReconciliationRule{ID: 8, Conditions: []byte("[]")}
	if _, err := empty.Matches(evalLine("1", when, "", ""), evalEntry("1", when, "", "")); err == nil {
		t.Fatalf("empty condition list did not surface an error")
	}
}
