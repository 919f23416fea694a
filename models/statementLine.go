package models

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/shopspring/decimal"
)

// StatementLine is one row of an imported bank statement, scoped to the
// session it was imported into.
type StatementLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;index;not null" json:"business_id"`
	SessionId       int             `gorm:"index;not null;index:idx_sl_session_date,priority:1" json:"session_id"`
	TransactionDate time.Time       `gorm:"index;not null;index:idx_sl_session_date,priority:2" json:"transaction_date"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Description     string          `gorm:"size:255" json:"description"`
	Reference       string          `gorm:"size:100" json:"reference"`
	IsMatched       *bool           `gorm:"not null;default:false;index" json:"is_matched"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStatementLine struct {
	TransactionDate time.Time       `json:"transaction_date" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference"`
}

func (line StatementLine) GetBusinessId() string {
	return line.BusinessId
}

func (line StatementLine) GetId() int {
	return line.ID
}

func (line StatementLine) GetCursor() string {
	return line.TransactionDate.Format("2006-01-02 15:04:05")
}

// ImportStatementLines inserts statement rows into an open session. The
// session must not be completed or abandoned.
func ImportStatementLines(ctx context.Context, sessionId int, inputs []NewStatementLine) ([]*StatementLine, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	if len(inputs) == 0 {
		return nil, errors.New("no statement lines to import")
	}

	session, err := utils.FetchModel[ReconciliationSession](ctx, businessId, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, errors.New("session is " + string(session.Status))
	}

	lines := make([]*StatementLine, 0, len(inputs))
	for _, input := range inputs {
		lines = append(lines, &StatementLine{
			BusinessId:      businessId,
			SessionId:       session.ID,
			TransactionDate: input.TransactionDate,
			Amount:          input.Amount,
			Description:     input.Description,
			Reference:       input.Reference,
			IsMatched:       utils.NewFalse(),
		})
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishToReconciliation(ctx, tx, businessId, time.Now(), session.ID,
		ReconReferenceTypeStatementLine, lines, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// ParseStatementCSV reads statement rows from a CSV stream. Expected columns:
// date, amount, description, reference (header row optional). The business
// timezone resolves date-only values.
func ParseStatementCSV(reader io.Reader, timezone string) ([]NewStatementLine, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	var lines []NewStatementLine
	rowNum := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", rowNum+1, err)
		}
		rowNum++

		if len(record) < 2 {
			return nil, fmt.Errorf("csv row %d: expected at least date and amount", rowNum)
		}
		// skip a header row
		if rowNum == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		date, err := ParseDateString(strings.TrimSpace(record[0]), timezone)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", rowNum, err)
		}
		amount, err := utils.ParseDecimal(record[1])
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid amount %q", rowNum, record[1])
		}

		line := NewStatementLine{
			TransactionDate: date,
			Amount:          amount,
		}
		if len(record) > 2 {
			line.Description = strings.TrimSpace(record[2])
		}
		if len(record) > 3 {
			line.Reference = strings.TrimSpace(record[3])
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return nil, errors.New("statement file has no rows")
	}
	return lines, nil
}

// fetch lines of a session that have no confirmed match yet
func ListUnmatchedStatementLines(ctx context.Context, sessionId int) ([]*StatementLine, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	var results []*StatementLine
	err := db.WithContext(ctx).
		Where("business_id = ? AND session_id = ?", businessId, sessionId).
		Where("is_matched = ?", false).
		Order("transaction_date, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListStatementLines(ctx context.Context, sessionId int) ([]*StatementLine, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	db := config.GetDB()
	var results []*StatementLine
	err := db.WithContext(ctx).
		Where("business_id = ? AND session_id = ?", businessId, sessionId).
		Order("transaction_date, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetStatementLine(ctx context.Context, id int) (*StatementLine, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	return utils.FetchModel[StatementLine](ctx, businessId, id)
}
