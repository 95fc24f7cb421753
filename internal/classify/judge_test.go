package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/vocabmatch/config"
)

func testJudgeConfig(url string) config.JudgeConfig {
	return config.JudgeConfig{
		Provider:   "openai",
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "gpt-4o",
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	}
}

func TestOpenAIJudgeParsesVerdicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("unexpected model %q", req.Model)
		}
		content := `{"verdicts":[{"index":0,"correct":false,"note":"confused with thorough"},{"index":1,"correct":true}]}`
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	judge := NewOpenAIJudge(testJudgeConfig(srv.URL))
	verdicts, err := judge.ClassifyBatch(context.Background(), "through", []string{
		"I was very through with my notes.",
		"We walked through the door.",
	})
	if err != nil {
		t.Fatalf("ClassifyBatch: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].Correct || verdicts[0].Note == "" {
		t.Errorf("first verdict should be an annotated misuse: %+v", verdicts[0])
	}
	if !verdicts[1].Correct {
		t.Errorf("second verdict should be correct: %+v", verdicts[1])
	}
}

func TestOpenAIJudgeRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	judge := NewOpenAIJudge(testJudgeConfig(srv.URL))
	_, err := judge.ClassifyBatch(context.Background(), "endure", []string{"We endured."})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsTransient(err) {
		t.Errorf("429 should be transient, got %v", err)
	}
}

func TestOpenAIJudgeGarbageContentIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Sure! Here are my thoughts..."}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	judge := NewOpenAIJudge(testJudgeConfig(srv.URL))
	_, err := judge.ClassifyBatch(context.Background(), "endure", []string{"We endured."})
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsTransient(err) {
		t.Errorf("malformed content must not be retried, got %v", err)
	}
}
