package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Match links one ledger entry to one statement line within a session. The
// score breakdown is kept for auditing why the engine proposed the pair.
//
// Invariants (guarded inside DB transactions holding the business reconcile
// lock):
//   - at most one confirmed match per ledger entry
//   - at most one confirmed match per statement line
//   - a confirmed match is immutable except for reversal
type Match struct {
	ID              int         `gorm:"primary_key" json:"id"`
	BusinessId      string      `gorm:"size:64;index;not null" json:"business_id"`
	SessionId       int         `gorm:"index;not null;index:uniq_match_pair,unique,priority:1" json:"session_id"`
	LedgerEntryId   int         `gorm:"index;not null;index:uniq_match_pair,unique,priority:2" json:"ledger_entry_id"`
	StatementLineId int         `gorm:"index;not null;index:uniq_match_pair,unique,priority:3" json:"statement_line_id"`
	Confidence      float64     `gorm:"not null;default:0" json:"confidence"`
	AmountScore     float64     `gorm:"not null;default:0" json:"amount_score"`
	DateScore       float64     `gorm:"not null;default:0" json:"date_score"`
	TextScore       float64     `gorm:"not null;default:0" json:"text_score"`
	Status          MatchStatus `gorm:"type:enum('proposed','confirmed','rejected');default:proposed;index" json:"status"`
	MatchedBy       MatchedBy   `gorm:"type:enum('rule','ai','manual');default:ai" json:"matched_by"`
	RuleId          *int        `gorm:"index" json:"rule_id"`
	ConfirmedBy     string      `gorm:"size:100" json:"confirmed_by"`
	ConfirmedAt     *time.Time  `json:"confirmed_at"`
	RejectedAt      *time.Time  `json:"rejected_at"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (match Match) GetBusinessId() string {
	return match.BusinessId
}

func (match Match) GetId() int {
	return match.ID
}

// ReplaceProposedMatches clears previous engine proposals for the session and
// stores the new set inside the caller's transaction. Confirmed and rejected
// matches are untouched.
func ReplaceProposedMatches(ctx context.Context, tx *gorm.DB, sessionId int, proposals []*Match) error {
	if err := tx.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionId, MatchStatusProposed).
		Delete(&Match{}).Error; err != nil {
		return err
	}
	if len(proposals) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&proposals).Error
}

func ListSessionMatches(ctx context.Context, sessionId int, status *MatchStatus) ([]*Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	// session must belong to the requester
	if err := utils.ValidateResourceId[ReconciliationSession](ctx, businessId, sessionId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ? AND session_id = ?", businessId, sessionId)
	if status != nil {
		if !status.IsValid() {
			return nil, errors.New("invalid match status")
		}
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*Match
	if err := dbCtx.Order("confidence DESC, id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetMatch(ctx context.Context, id int) (*Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	return utils.FetchModel[Match](ctx, businessId, id)
}

// confirmedSideInUse reports whether either side already has a confirmed
// match. Must run inside the reconcile-locked transaction.
func confirmedSideInUse(ctx context.Context, tx *gorm.DB, ledgerEntryId int, statementLineId int, exceptMatchId int) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&Match{}).
		Where("status = ?", MatchStatusConfirmed).
		Where("ledger_entry_id = ? OR statement_line_id = ?", ledgerEntryId, statementLineId).
		Not("id = ?", exceptMatchId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConfirmMatch moves a proposed match to confirmed. It marks both sides as
// reconciled, rolls the confirmed amount into the session total, and moves an
// open session to in_progress.
func ConfirmMatch(ctx context.Context, id int) (*Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	username, _ := utils.GetUsernameFromContext(ctx)

	db := config.GetDB()
	tx := db.Begin()

	if err := AcquireBusinessReconcileLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}

	var match Match
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&match, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	oldMatch := match

	if match.Status == MatchStatusConfirmed {
		// confirming twice is a no-op, not an error
		tx.Rollback()
		return &match, nil
	}
	if match.Status != MatchStatusProposed {
		tx.Rollback()
		return nil, errors.New("only proposed matches can be confirmed")
	}

	var session ReconciliationSession
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&session, match.SessionId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}
	if session.Status.IsTerminal() {
		tx.Rollback()
		return nil, errors.New("session is " + string(session.Status))
	}

	inUse, err := confirmedSideInUse(ctx, tx, match.LedgerEntryId, match.StatementLineId, match.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if inUse {
		tx.Rollback()
		return nil, errors.New("ledger entry or statement line already reconciled")
	}

	var entry LedgerEntry
	if err := tx.WithContext(ctx).First(&entry, match.LedgerEntryId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	now := time.Now()
	match.Status = MatchStatusConfirmed
	match.ConfirmedBy = username
	match.ConfirmedAt = &now
	if err := tx.WithContext(ctx).Save(&match).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// mark both sides
	if err := tx.WithContext(ctx).Model(&LedgerEntry{}).
		Where("id = ?", match.LedgerEntryId).
		Updates(map[string]interface{}{"is_reconciled": true, "reconciled_at": now}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&StatementLine{}).
		Where("id = ?", match.StatementLineId).
		UpdateColumn("is_matched", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// roll the reconciled ledger amount into the session total
	session.MatchedTotal = session.MatchedTotal.Add(entry.Amount)
	if err := tx.WithContext(ctx).Model(&ReconciliationSession{}).
		Where("id = ?", session.ID).
		UpdateColumn("matched_total", session.MatchedTotal).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := session.MarkInProgress(ctx, tx); err != nil {
		tx.Rollback()
		return nil, err
	}

	// rules earn a use count when their proposal is accepted
	if match.MatchedBy == MatchedByRule && match.RuleId != nil {
		if err := IncrementRuleUseCount(ctx, tx, *match.RuleId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := PublishToReconciliation(ctx, tx, businessId, now, match.ID,
		ReconReferenceTypeMatch, &match, &oldMatch, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(session); err != nil {
		return nil, err
	}
	return &match, nil
}

// RejectMatch marks a match rejected. Rejecting a proposed match just frees
// the pair for other candidates. Rejecting a confirmed match is the reversal
// path: both sides are released and the session total is reduced.
func RejectMatch(ctx context.Context, id int) (*Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := AcquireBusinessReconcileLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}

	var match Match
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&match, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	oldMatch := match

	if match.Status == MatchStatusRejected {
		tx.Rollback()
		return &match, nil
	}

	var session ReconciliationSession
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&session, match.SessionId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}
	if session.Status == ReconciliationSessionStatusCompleted {
		tx.Rollback()
		return nil, errors.New("session is completed")
	}

	wasConfirmed := match.Status == MatchStatusConfirmed

	now := time.Now()
	match.Status = MatchStatusRejected
	match.RejectedAt = &now
	if err := tx.WithContext(ctx).Save(&match).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if wasConfirmed {
		if err := tx.WithContext(ctx).Model(&LedgerEntry{}).
			Where("id = ?", match.LedgerEntryId).
			Updates(map[string]interface{}{"is_reconciled": false, "reconciled_at": nil}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Model(&StatementLine{}).
			Where("id = ?", match.StatementLineId).
			UpdateColumn("is_matched", false).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		var entry LedgerEntry
		if err := tx.WithContext(ctx).First(&entry, match.LedgerEntryId).Error; err != nil {
			tx.Rollback()
			return nil, utils.ErrorRecordNotFound
		}
		session.MatchedTotal = session.MatchedTotal.Sub(entry.Amount)
		if err := tx.WithContext(ctx).Model(&ReconciliationSession{}).
			Where("id = ?", session.ID).
			UpdateColumn("matched_total", session.MatchedTotal).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := PublishToReconciliation(ctx, tx, businessId, now, match.ID,
		ReconReferenceTypeMatch, &match, &oldMatch, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(session); err != nil {
		return nil, err
	}
	return &match, nil
}

type NewManualMatch struct {
	LedgerEntryId   int `json:"ledger_entry_id" binding:"required"`
	StatementLineId int `json:"statement_line_id" binding:"required"`
}

// CreateManualMatch records a user-picked pair and confirms it immediately,
// subject to the same side-exclusivity guards as engine proposals.
func CreateManualMatch(ctx context.Context, sessionId int, input *NewManualMatch) (*Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	username, _ := utils.GetUsernameFromContext(ctx)

	if err := utils.ValidateResourceId[LedgerEntry](ctx, businessId, input.LedgerEntryId); err != nil {
		return nil, errors.New("ledger entry not found")
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := AcquireBusinessReconcileLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}

	var session ReconciliationSession
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&session, sessionId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}
	if session.Status.IsTerminal() {
		tx.Rollback()
		return nil, errors.New("session is " + string(session.Status))
	}

	var line StatementLine
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND session_id = ?", businessId, sessionId).
		First(&line, input.StatementLineId).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("statement line not found in session")
	}
	var entry LedgerEntry
	if err := tx.WithContext(ctx).First(&entry, input.LedgerEntryId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	inUse, err := confirmedSideInUse(ctx, tx, input.LedgerEntryId, input.StatementLineId, 0)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if inUse {
		tx.Rollback()
		return nil, errors.New("ledger entry or statement line already reconciled")
	}

	now := time.Now()
	match := Match{
		BusinessId:      businessId,
		SessionId:       sessionId,
		LedgerEntryId:   input.LedgerEntryId,
		StatementLineId: input.StatementLineId,
		Confidence:      1,
		Status:          MatchStatusConfirmed,
		MatchedBy:       MatchedByManual,
		ConfirmedBy:     username,
		ConfirmedAt:     &now,
	}
	if err := tx.WithContext(ctx).Create(&match).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&LedgerEntry{}).
		Where("id = ?", match.LedgerEntryId).
		Updates(map[string]interface{}{"is_reconciled": true, "reconciled_at": now}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&StatementLine{}).
		Where("id = ?", match.StatementLineId).
		UpdateColumn("is_matched", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	session.MatchedTotal = session.MatchedTotal.Add(entry.Amount)
	if err := tx.WithContext(ctx).Model(&ReconciliationSession{}).
		Where("id = ?", session.ID).
		UpdateColumn("matched_total", session.MatchedTotal).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := session.MarkInProgress(ctx, tx); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishToReconciliation(ctx, tx, businessId, now, match.ID,
		ReconReferenceTypeMatch, &match, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(session); err != nil {
		return nil, err
	}
	return &match, nil
}

// sumConfirmedMatches totals the ledger entry amounts of the session's
// confirmed matches inside the caller's transaction. The session difference
// is the statement balance minus this total.
func sumConfirmedMatches(ctx context.Context, tx *gorm.DB, businessId string, sessionId int) (total decimal.Decimal, err error) {
	err = tx.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(le.amount), 0)
		FROM matches m
		JOIN ledger_entries le ON le.id = m.ledger_entry_id
		WHERE m.business_id = ? AND m.session_id = ? AND m.status = ?`,
		businessId, sessionId, MatchStatusConfirmed).Scan(&total).Error
	return total, err
}

// releaseSessionMatches frees both sides of every confirmed match in the
// session and rejects all non-rejected matches. Used when abandoning.
func releaseSessionMatches(ctx context.Context, tx *gorm.DB, businessId string, sessionId int) error {
	var confirmed []*Match
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND session_id = ? AND status = ?", businessId, sessionId, MatchStatusConfirmed).
		Find(&confirmed).Error; err != nil {
		return err
	}

	for _, match := range confirmed {
		if err := tx.WithContext(ctx).Model(&LedgerEntry{}).
			Where("id = ?", match.LedgerEntryId).
			Updates(map[string]interface{}{"is_reconciled": false, "reconciled_at": nil}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Model(&StatementLine{}).
			Where("id = ?", match.StatementLineId).
			UpdateColumn("is_matched", false).Error; err != nil {
			return err
		}
	}

	now := time.Now()
	return tx.WithContext(ctx).Model(&Match{}).
		Where("business_id = ? AND session_id = ?", businessId, sessionId).
		Not("status = ?", MatchStatusRejected).
		Updates(map[string]interface{}{"status": MatchStatusRejected, "rejected_at": now}).Error
}
