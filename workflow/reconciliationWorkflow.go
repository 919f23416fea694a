package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/llm"
	"bitbucket.org/mmdatafocus/recon_backend/matching"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

const moduleName = "workflow"

// SessionPolicy builds the engine policy from the environment, starting from
// the defaults.
func SessionPolicy() matching.Policy {
	policy := matching.DefaultPolicy()
	policy.MinConfidence = config.MatchingMinConfidence()
	policy.DateWindowDays = config.MatchingDateWindowDays()
	policy.AmountTolerancePercent = config.MatchingAmountTolerancePercent()
	return policy
}

// aiTextScorer adapts the llm judge to the engine's TextScorer. Judge
// failures fall back to edit distance so a flaky model never blocks a run.
type aiTextScorer struct {
	ctx      context.Context
	judge    llm.Judge
	fallback matching.LevenshteinScorer
}

func (s aiTextScorer) Score(a, b string) float64 {
	resp, err := s.judge.Similarity(s.ctx, llm.SimilarityRequest{
		StatementDescription: a,
		LedgerDescription:    b,
	})
	if err != nil {
		return s.fallback.Score(a, b)
	}
	return resp.Similarity
}

// RunSessionMatching executes the two matching passes for a session: the
// rule pass (priority order, first match wins) and then generic similarity
// scoring over whatever remains. Proposals replace the session's previous
// proposed set unless dryRun is set.
func RunSessionMatching(ctx context.Context, sessionId int, dryRun bool) ([]*models.Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	logger := config.GetLogger()

	session, err := models.GetReconciliationSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, errors.New("session is " + string(session.Status))
	}

	policy := SessionPolicy()

	lines, err := models.ListUnmatchedStatementLines(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	// widen the entry window by the date tolerance so near-boundary entries
	// remain candidates
	windowPad := time.Duration(policy.DateWindowDays) * 24 * time.Hour
	entries, err := models.ListUnreconciledLedgerEntries(ctx, session.AccountId,
		session.StartDate.Add(-windowPad), session.EndDate.Add(windowPad))
	if err != nil {
		return nil, err
	}

	proposals := make([]*models.Match, 0)
	usedEntries := make(map[int]bool, len(entries))
	usedLines := make(map[int]bool, len(lines))

	// rule pass
	rules, err := models.ListActiveReconciliationRules(ctx, session.AccountId)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if rule.Action != models.RuleActionAutoMatch {
			continue
		}
		for _, line := range lines {
			if usedLines[line.ID] {
				continue
			}
			ruleBroken := false
			for _, entry := range entries {
				if usedEntries[entry.ID] {
					continue
				}
				matched, ruleErr := rule.Matches(line, entry)
				if ruleErr != nil {
					// malformed rules are skipped with a warning, never fatal
					config.LogError(logger, moduleName, "RunSessionMatching",
						fmt.Sprintf("skipping rule %d", rule.ID), nil, ruleErr)
					ruleBroken = true
					break
				}
				if !matched {
					continue
				}
				ruleId := rule.ID
				proposals = append(proposals, &models.Match{
					BusinessId:      businessId,
					SessionId:       session.ID,
					LedgerEntryId:   entry.ID,
					StatementLineId: line.ID,
					Confidence:      1,
					AmountScore:     1,
					DateScore:       1,
					TextScore:       1,
					Status:          models.MatchStatusProposed,
					MatchedBy:       models.MatchedByRule,
					RuleId:          &ruleId,
				})
				usedLines[line.ID] = true
				usedEntries[entry.ID] = true
				break
			}
			if ruleBroken {
				break
			}
		}
	}

	// scoring pass over whatever the rules left unmatched
	var textScorer matching.TextScorer
	if config.AiJudgeEnabled() {
		textScorer = aiTextScorer{ctx: ctx, judge: llm.NewOpenAIJudge()}
	}
	engine, err := matching.NewEngine(policy, textScorer)
	if err != nil {
		return nil, err
	}

	lineTxns := make([]matching.Transaction, 0, len(lines))
	for _, line := range lines {
		if usedLines[line.ID] {
			continue
		}
		lineTxns = append(lineTxns, matching.Transaction{
			ID:          line.ID,
			Date:        line.TransactionDate,
			Amount:      line.Amount,
			Description: line.Description,
		})
	}
	entryTxns := make([]matching.Transaction, 0, len(entries))
	for _, entry := range entries {
		if usedEntries[entry.ID] {
			continue
		}
		entryTxns = append(entryTxns, matching.Transaction{
			ID:          entry.ID,
			Date:        entry.TransactionDate,
			Amount:      entry.Amount,
			Description: entry.Description,
		})
	}

	for _, p := range engine.Propose(lineTxns, entryTxns) {
		proposals = append(proposals, &models.Match{
			BusinessId:      businessId,
			SessionId:       session.ID,
			LedgerEntryId:   p.EntryId,
			StatementLineId: p.LineId,
			Confidence:      p.Confidence,
			AmountScore:     p.AmountScore,
			DateScore:       p.DateScore,
			TextScore:       p.TextScore,
			Status:          models.MatchStatusProposed,
			MatchedBy:       models.MatchedByAi,
		})
	}

	if dryRun {
		return proposals, nil
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := models.AcquireBusinessReconcileLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.ReplaceProposedMatches(ctx, tx, session.ID, proposals); err != nil {
		tx.Rollback()
		return nil, err
	}
	// proposing matches moves an open session forward
	if len(proposals) > 0 {
		if err := session.MarkInProgress(ctx, tx); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := models.RemoveRedisBoth(*session); err != nil {
		return nil, err
	}
	return proposals, nil
}

// ConfirmMatchIdempotent wraps match confirmation with a durable idempotency
// key so a retried request cannot double-apply.
func ConfirmMatchIdempotent(ctx context.Context, matchId int, idempotencyKey string) (*models.Match, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	if idempotencyKey == "" {
		return models.ConfirmMatch(ctx, matchId)
	}

	db := config.GetDB()
	handlerName := "ConfirmMatch"

	skip, err := BeginIdempotency(db.WithContext(ctx), businessId, handlerName, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if skip {
		return models.GetMatch(ctx, matchId)
	}

	match, err := models.ConfirmMatch(ctx, matchId)
	if err != nil {
		_ = MarkIdempotencyFailed(db.WithContext(ctx), businessId, handlerName, idempotencyKey, err)
		return nil, err
	}
	if err := MarkIdempotencySucceeded(db.WithContext(ctx), businessId, handlerName, idempotencyKey); err != nil {
		return nil, err
	}
	return match, nil
}
