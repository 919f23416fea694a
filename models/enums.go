package models

/* Reconciliation session */

type ReconciliationSessionType string

const (
	ReconciliationSessionTypeBankStatement ReconciliationSessionType = "bank_statement"
	ReconciliationSessionTypeManual        ReconciliationSessionType = "manual"
)

func (t ReconciliationSessionType) IsValid() bool {
	switch t {
	case ReconciliationSessionTypeBankStatement, ReconciliationSessionTypeManual:
		return true
	}
	return false
}

type ReconciliationSessionStatus string

const (
	ReconciliationSessionStatusOpen       ReconciliationSessionStatus = "open"
	ReconciliationSessionStatusInProgress ReconciliationSessionStatus = "in_progress"
	ReconciliationSessionStatusCompleted  ReconciliationSessionStatus = "completed"
	ReconciliationSessionStatusAbandoned  ReconciliationSessionStatus = "abandoned"
)

func (s ReconciliationSessionStatus) IsValid() bool {
	switch s {
	case ReconciliationSessionStatusOpen, ReconciliationSessionStatusInProgress,
		ReconciliationSessionStatusCompleted, ReconciliationSessionStatusAbandoned:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ReconciliationSessionStatus) IsTerminal() bool {
	return s == ReconciliationSessionStatusCompleted || s == ReconciliationSessionStatusAbandoned
}

/* Match */

type MatchStatus string

const (
	MatchStatusProposed  MatchStatus = "proposed"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusRejected  MatchStatus = "rejected"
)

func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusProposed, MatchStatusConfirmed, MatchStatusRejected:
		return true
	}
	return false
}

type MatchedBy string

const (
	MatchedByRule   MatchedBy = "rule"
	MatchedByAi     MatchedBy = "ai"
	MatchedByManual MatchedBy = "manual"
)

func (m MatchedBy) IsValid() bool {
	switch m {
	case MatchedByRule, MatchedByAi, MatchedByManual:
		return true
	}
	return false
}

/* Rule conditions */

type RuleConditionField string

const (
	RuleConditionFieldAmount      RuleConditionField = "amount"
	RuleConditionFieldDate        RuleConditionField = "date"
	RuleConditionFieldDescription RuleConditionField = "description"
	RuleConditionFieldReference   RuleConditionField = "reference"
)

func (f RuleConditionField) IsValid() bool {
	switch f {
	case RuleConditionFieldAmount, RuleConditionFieldDate,
		RuleConditionFieldDescription, RuleConditionFieldReference:
		return true
	}
	return false
}

type RuleConditionOperator string

const (
	RuleConditionOperatorEquals      RuleConditionOperator = "equals"
	RuleConditionOperatorGreaterThan RuleConditionOperator = "greater_than"
	RuleConditionOperatorLessThan    RuleConditionOperator = "less_than"
	RuleConditionOperatorContains    RuleConditionOperator = "contains"
)

func (o RuleConditionOperator) IsValid() bool {
	switch o {
	case RuleConditionOperatorEquals, RuleConditionOperatorGreaterThan,
		RuleConditionOperatorLessThan, RuleConditionOperatorContains:
		return true
	}
	return false
}

type RuleActionType string

const (
	RuleActionAutoMatch      RuleActionType = "auto_match"
	RuleActionAutoCategorize RuleActionType = "auto_categorize"
)

func (a RuleActionType) IsValid() bool {
	switch a {
	case RuleActionAutoMatch, RuleActionAutoCategorize:
		return true
	}
	return false
}

/* Outbox */

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

// ReconReferenceType identifies which record an outbox event refers to.
type ReconReferenceType string

const (
	ReconReferenceTypeSession       ReconReferenceType = "RS"
	ReconReferenceTypeMatch         ReconReferenceType = "RM"
	ReconReferenceTypeRule          ReconReferenceType = "RR"
	ReconReferenceTypeStatementLine ReconReferenceType = "SL"
	ReconReferenceTypeLedgerEntry   ReconReferenceType = "LE"
)
