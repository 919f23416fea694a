package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type SessionMatchDetailResponse struct {
	MatchId              int             `json:"MatchId"`
	Status               string          `json:"Status"`
	MatchedBy            string          `json:"MatchedBy"`
	Confidence           float64         `json:"Confidence"`
	RuleName             *string         `json:"RuleName,omitempty"`
	StatementDate        time.Time       `json:"StatementDate"`
	StatementAmount      decimal.Decimal `json:"StatementAmount"`
	StatementDescription string          `json:"StatementDescription"`
	LedgerDate           time.Time       `json:"LedgerDate"`
	LedgerAmount         decimal.Decimal `json:"LedgerAmount"`
	LedgerDescription    string          `json:"LedgerDescription"`
	LedgerReference      string          `json:"LedgerReference"`
}

// GetSessionMatchDetailReport returns every match of a session with both
// sides of the pair expanded, ordered by confidence.
func GetSessionMatchDetailReport(ctx context.Context, sessionId int) ([]*SessionMatchDetailResponse, error) {

	sql := `
SELECT
    matches.id AS match_id,
    matches.status,
    matches.matched_by,
    matches.confidence,
    reconciliation_rules.name AS rule_name,
    sl.transaction_date AS statement_date,
    sl.amount AS statement_amount,
    sl.description AS statement_description,
    le.transaction_date AS ledger_date,
    le.amount AS ledger_amount,
    le.description AS ledger_description,
    le.reference_number AS ledger_reference
FROM
    matches
        JOIN
    statement_lines AS sl ON sl.id = matches.statement_line_id
        JOIN
    ledger_entries AS le ON le.id = matches.ledger_entry_id
        LEFT JOIN
    reconciliation_rules ON reconciliation_rules.id = matches.rule_id
WHERE
    matches.business_id = @businessId
        AND matches.session_id = @sessionId
ORDER BY matches.confidence DESC , matches.id;
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	// ownership check rides on the session lookup
	if _, err := models.GetReconciliationSession(ctx, sessionId); err != nil {
		return nil, err
	}

	started := time.Now()
	var records []*SessionMatchDetailResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
		"sessionId":  sessionId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}
	logSlowReport(ctx, "session_match_detail", started, map[string]any{"session_id": sessionId, "rows": len(records)})

	return records, nil
}

func (r SessionMatchDetailResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.Status,
		r.MatchedBy,
		r.Confidence,
		utils.DereferencePtr(r.RuleName, ""),
		r.StatementDate.Format("2006-01-02"),
		r.StatementAmount,
		r.StatementDescription,
		r.LedgerDate.Format("2006-01-02"),
		r.LedgerAmount,
		r.LedgerDescription,
		r.LedgerReference,
	}
}

var sessionMatchHeadings = []string{
	"Status", "Matched By", "Confidence", "Rule",
	"Statement Date", "Statement Amount", "Statement Description",
	"Ledger Date", "Ledger Amount", "Ledger Description", "Ledger Reference",
}

// ExportSessionMatchesExcel streams the match detail report as an xlsx
// workbook.
func ExportSessionMatchesExcel(ctx context.Context, sessionId int, w io.Writer) error {
	data, err := GetSessionMatchDetailReport(ctx, sessionId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	col := 'A'
	for _, h := range sessionMatchHeadings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	rowNo := 2
	for _, d := range data {
		col := 'A'
		for _, value := range d.GetCellValues() {
			switch v := value.(type) {
			case decimal.Decimal:
				amount, _ := v.Float64()
				f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), amount)
			default:
				f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), value)
			}
			col++
		}
		rowNo++
	}

	return f.Write(w)
}
