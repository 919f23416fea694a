package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel   = openai.ChatModelGPT4oMini
	requestTimeout = 8 * time.Second
)

const systemPrompt = `You compare two bank transaction descriptions and judge whether they refer to the same real-world transaction.
Vendors often abbreviate, truncate, or reorder words; processors add prefixes and reference codes.
Respond ONLY with a JSON object, no prose, in this exact shape:
{"similarity": <number between 0.0 and 1.0>, "reasoning": "<one short sentence>"}`

// OpenAIJudge scores description similarity with a chat completion. The
// client is created lazily so construction never fails and the binary runs
// without credentials.
type OpenAIJudge struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *openai.Client
}

func NewOpenAIJudge() *OpenAIJudge {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &OpenAIJudge{
		apiKey: os.Getenv("OPENAI_API_KEY"),
		model:  model,
	}
}

func (j *OpenAIJudge) ensureClient() (*openai.Client, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.client != nil {
		return j.client, nil
	}
	if j.apiKey == "" {
		return nil, ErrorNoAPIKey
	}
	client := openai.NewClient(option.WithAPIKey(j.apiKey))
	j.client = &client
	return j.client, nil
}

func (j *OpenAIJudge) Similarity(ctx context.Context, req SimilarityRequest) (SimilarityResponse, error) {
	client, err := j.ensureClient()
	if err != nil {
		return SimilarityResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Statement description: %q\nLedger description: %q\nDays apart: %d\nAmount: %s",
		req.StatementDescription, req.LedgerDescription, req.DateDifferenceDays, req.Amount,
	)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: j.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return SimilarityResponse{}, fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return SimilarityResponse{}, fmt.Errorf("llm: empty completion")
	}

	return parseSimilarity(resp.Choices[0].Message.Content)
}

func parseSimilarity(content string) (SimilarityResponse, error) {
	content = strings.TrimSpace(content)
	// some models wrap JSON in a code fence despite instructions
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result SimilarityResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return SimilarityResponse{}, fmt.Errorf("llm: malformed judge response: %w", err)
	}
	result.Similarity = clamp01(result.Similarity)
	return result, nil
}
