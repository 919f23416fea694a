package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Audit hooks. Each one runs inside the caller's transaction, so the
// History row commits or rolls back together with the change itself.

func (s *ReconciliationSession) AfterCreate(tx *gorm.DB) error {
	description := fmt.Sprintf("Reconciliation session %q opened for account %d.", s.Name, s.AccountId)
	return SaveHistoryCreate(tx, s.ID, s, description)
}

func (s *ReconciliationSession) BeforeUpdate(tx *gorm.DB) error {
	if s.ID == 0 {
		return nil
	}
	description := fmt.Sprintf("Reconciliation session %q updated.", s.Name)
	if tx.Statement.Changed("Status") {
		if dest, ok := tx.Statement.Dest.(map[string]interface{}); ok {
			if newStatus, ok := dest["Status"]; ok {
				description = fmt.Sprintf("Reconciliation session %q moved from %s to %v.", s.Name, s.Status, newStatus)
			}
		}
	}
	return SaveHistoryUpdate(tx, s.ID, s, description)
}

func (m *Match) AfterCreate(tx *gorm.DB) error {
	// engine proposals arrive in bulk and are replaced wholesale; only
	// user-confirmed creations are worth a trail entry
	if m.Status != MatchStatusConfirmed {
		return nil
	}
	description := fmt.Sprintf("Match confirmed between ledger entry %d and statement line %d (%s).",
		m.LedgerEntryId, m.StatementLineId, m.MatchedBy)
	return SaveHistoryCreate(tx, m.ID, m, description)
}

func (m *Match) BeforeUpdate(tx *gorm.DB) error {
	if m.ID == 0 {
		return nil
	}
	description := fmt.Sprintf("Match %d updated.", m.ID)
	if tx.Statement.Changed("Status") {
		if dest, ok := tx.Statement.Dest.(map[string]interface{}); ok {
			if newStatus, ok := dest["Status"]; ok {
				description = fmt.Sprintf("Match %d moved from %s to %v.", m.ID, m.Status, newStatus)
			}
		}
	}
	return SaveHistoryUpdate(tx, m.ID, m, description)
}

func (r *ReconciliationRule) AfterCreate(tx *gorm.DB) error {
	description := fmt.Sprintf("Reconciliation rule %q created with priority %d.", r.Name, r.Priority)
	return SaveHistoryCreate(tx, r.ID, r, description)
}

func (r *ReconciliationRule) BeforeUpdate(tx *gorm.DB) error {
	if r.ID == 0 {
		return nil
	}
	return SaveHistoryUpdate(tx, r.ID, r, fmt.Sprintf("Reconciliation rule %q updated.", r.Name))
}

func (r *ReconciliationRule) AfterDelete(tx *gorm.DB) error {
	if r.ID == 0 {
		return nil
	}
	return SaveHistoryDelete(tx, r.ID, r, fmt.Sprintf("Reconciliation rule %q deleted.", r.Name))
}

func (a *BankAccount) AfterCreate(tx *gorm.DB) error {
	return SaveHistoryCreate(tx, a.ID, a, fmt.Sprintf("Bank account %q created.", a.Name))
}

func (a *BankAccount) AfterDelete(tx *gorm.DB) error {
	if a.ID == 0 {
		return nil
	}
	return SaveHistoryDelete(tx, a.ID, a, fmt.Sprintf("Bank account %q deleted.", a.Name))
}
