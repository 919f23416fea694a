package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunReconciliationChecks writes mismatch rows to reconciliation_reports.
// This is intended to be run on a schedule (nightly) or via an admin trigger.
func RunReconciliationChecks(ctx context.Context, businessId string) (correlationId string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return "", fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	now := time.Now().UTC()

	// 1) Side exclusivity: a ledger entry or statement line must not carry
	// more than one confirmed match.
	type dupRow struct {
		SideId int
		Count  int
	}
	var dupEntries []dupRow
	if err := db.WithContext(ctx).Raw(`
		SELECT m.ledger_entry_id AS side_id, COUNT(*) AS count
		FROM matches m
		WHERE m.business_id = ? AND m.status = 'confirmed'
		GROUP BY m.ledger_entry_id
		HAVING COUNT(*) > 1
	`, businessId).Scan(&dupEntries).Error; err != nil {
		return cid, err
	}
	for _, d := range dupEntries {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			BusinessId:    businessId,
			CheckType:     "MATCH_EXCLUSIVITY",
			EntityType:    "LedgerEntry",
			EntityId:      d.SideId,
			Details:       fmt.Sprintf("ledger entry has %d confirmed matches", d.Count),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	var dupLines []dupRow
	if err := db.WithContext(ctx).Raw(`
		SELECT m.statement_line_id AS side_id, COUNT(*) AS count
		FROM matches m
		WHERE m.business_id = ? AND m.status = 'confirmed'
		GROUP BY m.statement_line_id
		HAVING COUNT(*) > 1
	`, businessId).Scan(&dupLines).Error; err != nil {
		return cid, err
	}
	for _, d := range dupLines {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			BusinessId:    businessId,
			CheckType:     "MATCH_EXCLUSIVITY",
			EntityType:    "StatementLine",
			EntityId:      d.SideId,
			Details:       fmt.Sprintf("statement line has %d confirmed matches", d.Count),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 2) Completed sessions must have zero difference and a matched_total
	// that agrees with their confirmed matches.
	type sessionMismatch struct {
		SessionId   int
		CachedTotal string
		ActualTotal string
		Balance     string
	}
	var mismatches []sessionMismatch
	if err := db.WithContext(ctx).Raw(`
		SELECT
			rs.id AS session_id,
			CAST(rs.matched_total AS CHAR) AS cached_total,
			CAST(COALESCE(SUM(le.amount), 0) AS CHAR) AS actual_total,
			CAST(rs.statement_balance AS CHAR) AS balance
		FROM reconciliation_sessions rs
		LEFT JOIN matches m
		  ON m.session_id = rs.id AND m.status = 'confirmed'
		LEFT JOIN ledger_entries le
		  ON le.id = m.ledger_entry_id
		WHERE rs.business_id = ? AND rs.status = 'completed'
		GROUP BY rs.id
		HAVING ROUND(rs.matched_total, 4) <> ROUND(COALESCE(SUM(le.amount), 0), 4)
		    OR ROUND(rs.statement_balance, 4) <> ROUND(COALESCE(SUM(le.amount), 0), 4)
	`, businessId).Scan(&mismatches).Error; err != nil {
		return cid, err
	}
	for _, m := range mismatches {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			BusinessId:    businessId,
			CheckType:     "SESSION_BALANCE",
			EntityType:    "ReconciliationSession",
			EntityId:      m.SessionId,
			Details: fmt.Sprintf("completed session matched_total=%s actual=%s statement_balance=%s",
				m.CachedTotal, m.ActualTotal, m.Balance),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 3) Side flags must agree with confirmed matches.
	type flagRow struct{ ID int }
	var staleEntries []flagRow
	if err := db.WithContext(ctx).Raw(`
		SELECT le.id
		FROM ledger_entries le
		WHERE le.business_id = ? AND le.is_reconciled = 1
		  AND NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.ledger_entry_id = le.id AND m.status = 'confirmed'
		  )
	`, businessId).Scan(&staleEntries).Error; err != nil {
		return cid, err
	}
	for _, e := range staleEntries {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			BusinessId:    businessId,
			CheckType:     "SIDE_FLAG",
			EntityType:    "LedgerEntry",
			EntityId:      e.ID,
			Details:       "ledger entry flagged reconciled without a confirmed match",
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	logger.WithFields(logrus.Fields{
		"module":        "models",
		"funcName":      "RunReconciliationChecks",
		"businessId":    businessId,
		"correlationId": cid,
	}).Info("reconciliation checks completed")

	return cid, nil
}
