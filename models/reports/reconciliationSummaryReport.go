package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/shopspring/decimal"
)

type ReconciliationSummaryResponse struct {
	SessionId          int             `json:"SessionId"`
	SessionName        string          `json:"SessionName"`
	AccountName        *string         `json:"AccountName,omitempty"`
	Status             string          `json:"Status"`
	StartDate          time.Time       `json:"StartDate"`
	EndDate            time.Time       `json:"EndDate"`
	StatementBalance   decimal.Decimal `json:"StatementBalance"`
	MatchedTotal       decimal.Decimal `json:"MatchedTotal"`
	Difference         decimal.Decimal `json:"Difference"`
	ConfirmedCount     int             `json:"ConfirmedCount"`
	ProposedCount      int             `json:"ProposedCount"`
	UnmatchedLineCount int             `json:"UnmatchedLineCount"`
}

// GetReconciliationSummaryReport returns one row per session for the
// business, with match counts and the running difference against the
// statement balance. accountId narrows to one bank account when non-zero.
func GetReconciliationSummaryReport(ctx context.Context, accountId *int, fromDate models.MyDateString, toDate models.MyDateString) ([]*ReconciliationSummaryResponse, error) {

	sqlT := `
SELECT
    rs.id AS session_id,
    rs.name AS session_name,
    bank_accounts.name AS account_name,
    rs.status,
    rs.start_date,
    rs.end_date,
    rs.statement_balance,
    rs.matched_total,
    rs.statement_balance - rs.matched_total AS difference,
    COALESCE(m.confirmed_count, 0) AS confirmed_count,
    COALESCE(m.proposed_count, 0) AS proposed_count,
    COALESCE(sl.unmatched_count, 0) AS unmatched_line_count
FROM
    reconciliation_sessions AS rs
        LEFT JOIN
    bank_accounts ON bank_accounts.id = rs.account_id
        LEFT JOIN
    (SELECT
        session_id,
            SUM(status = 'confirmed') AS confirmed_count,
            SUM(status = 'proposed') AS proposed_count
    FROM
        matches
    WHERE
        business_id = @businessId
    GROUP BY session_id) AS m ON m.session_id = rs.id
        LEFT JOIN
    (SELECT
        session_id, COUNT(*) AS unmatched_count
    FROM
        statement_lines
    WHERE
        business_id = @businessId AND (is_matched IS NULL OR is_matched = 0)
    GROUP BY session_id) AS sl ON sl.session_id = rs.id
WHERE
    rs.business_id = @businessId
        AND rs.start_date BETWEEN @fromDate AND @toDate
	{{- if .accountId }} AND rs.account_id = @accountId {{- end }}
ORDER BY rs.start_date DESC , rs.id DESC;
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	business, err := models.GetBusiness(ctx)
	if err != nil {
		return nil, errors.New("business id is required")
	}
	if err := fromDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	if accountId != nil && *accountId != 0 {
		if err := utils.ValidateResourceId[models.BankAccount](ctx, businessId, accountId); err != nil {
			return nil, errors.New("bank account not found")
		}
	}

	started := time.Now()
	cacheKey := fmt.Sprintf("Report:ReconciliationSummary:%s:%v:%s:%s", businessId, utils.DereferencePtr(accountId),
		cacheDateKey(fromDate), cacheDateKey(toDate))
	if reportCacheEnabled() {
		var cached []*ReconciliationSummaryResponse
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	sql, err := utils.ExecTemplate("reconciliationSummary", sqlT, map[string]interface{}{
		"accountId": utils.DereferencePtr(accountId),
	})
	if err != nil {
		return nil, err
	}

	var records []*ReconciliationSummaryResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
		"fromDate":   fromDate,
		"toDate":     toDate,
		"accountId":  accountId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, records, reportCacheTTL())
	}
	logSlowReport(ctx, "reconciliation_summary", started, map[string]any{"rows": len(records)})

	return records, nil
}

func (r ReconciliationSummaryResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.SessionName,
		utils.DereferencePtr(r.AccountName, ""),
		r.Status,
		r.StartDate.Format("2006-01-02"),
		r.EndDate.Format("2006-01-02"),
		r.StatementBalance,
		r.MatchedTotal,
		r.Difference,
		r.ConfirmedCount,
		r.ProposedCount,
		r.UnmatchedLineCount,
	}
}
