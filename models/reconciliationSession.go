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

// ReconciliationSession is one reconciliation run for a bank account over a
// statement period.
//
// Status transitions:
//
//	open -> in_progress   (first confirmed match or matching run)
//	in_progress -> completed   (difference is zero, explicit finalize)
//	open|in_progress -> abandoned
//
// completed and abandoned are terminal.
type ReconciliationSession struct {
	ID               int                         `gorm:"primary_key;index:idx_rs_biz_date,priority:3" json:"id"`
	BusinessId       string                      `gorm:"size:64;index;not null;index:idx_rs_biz_date,priority:1" json:"business_id"`
	UserId           int                         `gorm:"index;not null" json:"user_id"`
	AccountId        int                         `gorm:"index;not null" json:"account_id" binding:"required"`
	Name             string                      `gorm:"size:100;not null" json:"name" binding:"required"`
	Type             ReconciliationSessionType   `gorm:"type:enum('bank_statement','manual');default:bank_statement" json:"type"`
	StartDate        time.Time                   `gorm:"not null;index:idx_rs_biz_date,priority:2" json:"start_date"`
	EndDate          time.Time                   `gorm:"not null" json:"end_date"`
	StatementBalance decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"statement_balance"`
	MatchedTotal     decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"matched_total"`
	Status           ReconciliationSessionStatus `gorm:"type:enum('open','in_progress','completed','abandoned');default:open;index" json:"status"`
	CompletedAt      *time.Time                  `json:"completed_at"`
	CreatedAt        time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReconciliationSession struct {
	AccountId        int                       `json:"account_id" binding:"required"`
	Name             string                    `json:"name" binding:"required"`
	Type             ReconciliationSessionType `json:"type"`
	StartDate        time.Time                 `json:"start_date" binding:"required"`
	EndDate          time.Time                 `json:"end_date" binding:"required"`
	StatementBalance decimal.Decimal           `json:"statement_balance"`
}

func (session ReconciliationSession) GetBusinessId() string {
	return session.BusinessId
}

func (session ReconciliationSession) GetId() int {
	return session.ID
}

func (session ReconciliationSession) GetCursor() string {
	return session.StartDate.Format("2006-01-02 15:04:05")
}

func (session ReconciliationSession) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[ReconciliationSession](session.ID)
}

func (session ReconciliationSession) RemoveAllRedis() error {
	return utils.RemoveRedisList[ReconciliationSession](session.BusinessId)
}

// Difference is the statement balance minus the confirmed matched total.
// Completion requires this to be zero.
func (session ReconciliationSession) Difference() decimal.Decimal {
	return session.StatementBalance.Sub(session.MatchedTotal)
}

func (input NewReconciliationSession) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateResourceId[BankAccount](ctx, businessId, input.AccountId); err != nil {
		return errors.New("bank account not found")
	}
	if input.Type != "" && !input.Type.IsValid() {
		return errors.New("invalid session type")
	}
	if input.EndDate.Before(input.StartDate) {
		return errors.New("end date must not be before start date")
	}
	// sessions inside the locked period cannot be created
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	if !business.ReconciliationLockDate.IsZero() && !input.EndDate.After(business.ReconciliationLockDate) {
		return errors.New("reconciliation period has been locked")
	}
	return nil
}

func CreateReconciliationSession(ctx context.Context, input *NewReconciliationSession) (*ReconciliationSession, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	sessionType := input.Type
	if sessionType == "" {
		sessionType = ReconciliationSessionTypeBankStatement
	}

	session := ReconciliationSession{
		BusinessId:       businessId,
		UserId:           userId,
		AccountId:        input.AccountId,
		Name:             input.Name,
		Type:             sessionType,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		StatementBalance: input.StatementBalance,
		MatchedTotal:     decimal.Zero,
		Status:           ReconciliationSessionStatusOpen,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&session).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishToReconciliation(ctx, tx, businessId, session.StartDate, session.ID,
		ReconReferenceTypeSession, &session, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(session); err != nil {
		return nil, err
	}
	return &session, nil
}

func GetReconciliationSession(ctx context.Context, id int) (*ReconciliationSession, error) {
	return GetResource[ReconciliationSession](ctx, id)
}

func ListReconciliationSessions(ctx context.Context, accountId int, status *ReconciliationSessionStatus) ([]*ReconciliationSession, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if accountId != 0 {
		dbCtx = dbCtx.Where("account_id = ?", accountId)
	}
	if status != nil {
		if !status.IsValid() {
			return nil, errors.New("invalid session status")
		}
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*ReconciliationSession
	if err := dbCtx.Order("start_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkInProgress moves an open session to in_progress inside the caller's
// transaction. No-op when the session is already in_progress.
func (session *ReconciliationSession) MarkInProgress(ctx context.Context, tx *gorm.DB) error {
	if session.Status == ReconciliationSessionStatusInProgress {
		return nil
	}
	if session.Status != ReconciliationSessionStatusOpen {
		return errors.New("session is " + string(session.Status))
	}
	session.Status = ReconciliationSessionStatusInProgress
	return tx.WithContext(ctx).Model(&ReconciliationSession{}).
		Where("id = ?", session.ID).
		UpdateColumn("status", ReconciliationSessionStatusInProgress).Error
}

// CompleteReconciliationSession finalizes a session. The difference between
// the statement balance and the confirmed matched total must be zero.
func CompleteReconciliationSession(ctx context.Context, id int) (*ReconciliationSession, error) {
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

	var session ReconciliationSession
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&session, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	oldSession := session

	if session.Status != ReconciliationSessionStatusInProgress {
		tx.Rollback()
		return nil, errors.New("only in_progress sessions can be completed")
	}

	// recompute the matched total from confirmed matches rather than trusting
	// the cached column
	matchedTotal, err := sumConfirmedMatches(ctx, tx, businessId, session.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if !session.StatementBalance.Equal(matchedTotal) {
		tx.Rollback()
		return nil, errors.New("difference must be zero to complete: " +
			session.StatementBalance.Sub(matchedTotal).String() + " remaining")
	}

	now := time.Now()
	session.MatchedTotal = matchedTotal
	session.Status = ReconciliationSessionStatusCompleted
	session.CompletedAt = &now
	if err := tx.WithContext(ctx).Save(&session).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishToReconciliation(ctx, tx, businessId, now, session.ID,
		ReconReferenceTypeSession, &session, &oldSession, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(session); err != nil {
		return nil, err
	}
	return &session, nil
}

// AbandonReconciliationSession cancels a session. Proposed matches are
// discarded; confirmed matches are released so both sides become matchable
// again.
func AbandonReconciliationSession(ctx context.Context, id int) (*ReconciliationSession, error) {
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

	var session ReconciliationSession
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&session, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	oldSession := session

	if session.Status.IsTerminal() {
		tx.Rollback()
		return nil, errors.New("session is " + string(session.Status))
	}

	// release ledger entries held by this session's confirmed matches
	if err := releaseSessionMatches(ctx, tx, businessId, session.ID); err != nil {
		tx.Rollback()
		return nil, err
	}

	session.Status = ReconciliationSessionStatusAbandoned
	session.MatchedTotal = decimal.Zero
	if err := tx.WithContext(ctx).Save(&session).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishToReconciliation(ctx, tx, businessId, time.Now(), session.ID,
		ReconReferenceTypeSession, &session, &oldSession, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(session); err != nil {
		return nil, err
	}
	return &session, nil
}
