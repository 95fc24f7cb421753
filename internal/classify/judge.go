package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mohammad-safakhou/vocabmatch/config"
)

// SentenceVerdict is one judgment inside a batch response: whether
// sentence Index used the target word correctly.
type SentenceVerdict struct {
	Index   int    `json:"index"`
	Correct bool   `json:"correct"`
	Note    string `json:"note,omitempty"`
}

// Judge is the external usage-judgment capability. Given a word and the
// sentences one student used it in, it returns one verdict per
// sentence. Implementations may be remote, rate-limited, and flaky;
// the classifier owns retries and fallback.
type Judge interface {
	ClassifyBatch(ctx context.Context, word string, sentences []string) ([]SentenceVerdict, error)
}

// ErrMalformed indicates the judgment service answered but its payload
// could not be parsed. Not retried; affected occurrences degrade to
// unverifiable.
var ErrMalformed = errors.New("malformed judgment response")

// apiError carries an HTTP status from the judgment service.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("judgment service returned %d: %s", e.status, e.body)
}

// IsTransient reports whether a judge error is worth retrying.
// Rate limits, server errors, and transport failures are transient;
// malformed payloads and client errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformed) || errors.Is(err, context.Canceled) {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusTooManyRequests || ae.status >= 500
	}
	// Transport-level failures (timeouts, resets) surface as plain
	// errors from the HTTP client.
	return true
}

// OpenAIJudge asks a chat-completions model to judge usage. Batching at
// the (student, word) level is the caller's job; this type only shapes
// the request and parses the structured response.
type OpenAIJudge struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewOpenAIJudge builds a judge from config.
func NewOpenAIJudge(cfg config.JudgeConfig) *OpenAIJudge {
	return &OpenAIJudge{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const judgeSystemPrompt = `You are a strict middle-school vocabulary evaluator.
You are given one vocabulary word and numbered sentences in which a student used it.
Judge, for each sentence, whether the student used the word correctly in context.
A homophone or near-homophone substitution (for example "through" where "thorough" was meant) is incorrect.

RESPONSE FORMAT:
Respond ONLY with valid JSON of the form:
{"verdicts":[{"index":0,"correct":true,"note":""}]}
One entry per sentence, index matching the sentence number, note briefly explaining any misuse.
Do not include any other text or explanation.`

// ClassifyBatch submits one (word, sentences) group for judgment.
func (j *OpenAIJudge) ClassifyBatch(ctx context.Context, word string, sentences []string) ([]SentenceVerdict, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "WORD: %q\n\nSENTENCES:\n", word)
	for i, s := range sentences {
		fmt.Fprintf(&sb, "%d. %s\n", i, s)
	}

	reqBody := chatRequest{
		Model:          j.model,
		Temperature:    j.temperature,
		MaxTokens:      j.maxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal judgment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create judgment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send judgment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &apiError{status: resp.StatusCode, body: string(b)}
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode judgment envelope: %w", ErrMalformed)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no choices in judgment response: %w", ErrMalformed)
	}

	var parsed struct {
		Verdicts []SentenceVerdict `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("parse verdicts: %w", ErrMalformed)
	}
	return parsed.Verdicts, nil
}

// RuleJudge is a deterministic judge driven by misuse patterns. It
// backs offline runs and tests: a sentence is correct unless one of the
// word's patterns matches.
type RuleJudge struct {
	Misuse map[string][]*regexp.Regexp
}

// NewRuleJudge returns a rule judge preloaded with the classic
// through/thorough confusion.
func NewRuleJudge() *RuleJudge {
	return &RuleJudge{Misuse: map[string][]*regexp.Regexp{
		"through": {
			regexp.MustCompile(`(?i)\b(?:more|very|so|quite|most|really)\s+through\b`),
			regexp.MustCompile(`(?i)\bbe(?:ing)?\s+through\s+(?:with|in|about)\s+(?:my|your|his|her|their|our|the)\s+\w+\s*(?:work|analysis|homework|notes|research)?`),
		},
	}}
}

// ClassifyBatch judges each sentence against the word's patterns.
func (j *RuleJudge) ClassifyBatch(_ context.Context, word string, sentences []string) ([]SentenceVerdict, error) {
	patterns := j.Misuse[strings.ToLower(word)]
	out := make([]SentenceVerdict, len(sentences))
	for i, s := range sentences {
		verdict := SentenceVerdict{Index: i, Correct: true}
		for _, p := range patterns {
			if p.MatchString(s) {
				verdict.Correct = false
				verdict.Note = fmt.Sprintf("likely misuse of %q", word)
				break
			}
		}
		out[i] = verdict
	}
	return out, nil
}

// NewJudge picks the judge implementation named in config.
func NewJudge(cfg config.JudgeConfig) (Judge, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIJudge(cfg), nil
	case "rule":
		return NewRuleJudge(), nil
	}
	return nil, fmt.Errorf("unknown judge provider %q", cfg.Provider)
}

// backoffDelay computes the exponential delay before the given retry
// attempt (0-based).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}
