package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one side of the matching problem: a transaction recorded in
// the books for a bank account. Entries become reconciled when a confirmed
// match references them.
type LedgerEntry struct {
	ID              int             `gorm:"primary_key;index:idx_le_biz_date,priority:3" json:"id"`
	BusinessId      string          `gorm:"size:64;index;not null;index:idx_le_biz_date,priority:1" json:"business_id"`
	AccountId       int             `gorm:"index;not null" json:"account_id" binding:"required"`
	TransactionDate time.Time       `gorm:"index;not null;index:idx_le_biz_date,priority:2" json:"transaction_date"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Description     string          `gorm:"size:255" json:"description"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number"`
	IsReconciled    *bool           `gorm:"not null;default:false;index" json:"is_reconciled"`
	ReconciledAt    *time.Time      `json:"reconciled_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLedgerEntry struct {
	AccountId       int             `json:"account_id" binding:"required"`
	TransactionDate time.Time       `json:"transaction_date" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"reference_number"`
}

func (entry LedgerEntry) GetBusinessId() string {
	return entry.BusinessId
}

func (entry LedgerEntry) GetId() int {
	return entry.ID
}

func (entry LedgerEntry) GetCursor() string {
	return entry.TransactionDate.Format("2006-01-02 15:04:05")
}

func (input NewLedgerEntry) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateResourceId[BankAccount](ctx, businessId, input.AccountId); err != nil {
		return errors.New("bank account not found")
	}
	return nil
}

func CreateLedgerEntry(ctx context.Context, input *NewLedgerEntry) (*LedgerEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	entry := LedgerEntry{
		BusinessId:      businessId,
		AccountId:       input.AccountId,
		TransactionDate: input.TransactionDate,
		Amount:          input.Amount,
		Description:     input.Description,
		ReferenceNumber: input.ReferenceNumber,
		IsReconciled:    utils.NewFalse(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishToReconciliation(ctx, tx, businessId, entry.TransactionDate, entry.ID,
		ReconReferenceTypeLedgerEntry, &entry, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func GetLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	return utils.FetchModel[LedgerEntry](ctx, businessId, id)
}

// fetch entries of an account within the session window that have no
// confirmed match yet
func ListUnreconciledLedgerEntries(ctx context.Context, accountId int, startDate time.Time, endDate time.Time) ([]*LedgerEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	var results []*LedgerEntry
	err := db.WithContext(ctx).
		Where("business_id = ? AND account_id = ?", businessId, accountId).
		Where("transaction_date >= ? AND transaction_date <= ?", startDate, endDate).
		Where("is_reconciled = ?", false).
		Order("transaction_date, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

type LedgerEntryConnection struct {
	Edges    []Edge[LedgerEntry] `json:"edges"`
	PageInfo *PageInfo           `json:"pageInfo"`
}

func PaginateLedgerEntry(ctx context.Context, accountId int, limit *int, after *string) (*LedgerEntryConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&LedgerEntry{}).
		Where("business_id = ?", businessId)
	if accountId != 0 {
		dbCtx.Where("account_id = ?", accountId)
	}

	pageLimit := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}
	edges, pageInfo, err := FetchPageCompositeCursor[LedgerEntry](dbCtx, pageLimit, after, "transaction_date", "<")
	if err != nil {
		return nil, fmt.Errorf("paginate ledger entries: %w", err)
	}
	return &LedgerEntryConnection{Edges: edges, PageInfo: pageInfo}, nil
}
