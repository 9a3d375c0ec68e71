package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/providers"
)

func newTestPipeline() (*Pipeline, *providers.MockClient) {
	mock := providers.NewMockClient()
	return New(mock, prompts.NewResolver(), "test-model", nil), mock
}

func TestTranscribeSendsImageAndContext(t *testing.T) {
	pipe, mock := newTestPipeline()
	ctx := context.Background()

	out, err := pipe.Transcribe(ctx, []byte("page-2-png"), "Latin", "text of page one", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if out != "mock response" {
		t.Errorf("output = %q", out)
	}

	req := mock.LastRequest()
	if len(req.Messages) != 1 {
		t.Fatalf("got %d messages", len(req.Messages))
	}
	msg := req.Messages[0]
	if len(msg.Images) != 1 || string(msg.Images[0]) != "page-2-png" {
		t.Error("page image not attached to the request")
	}
	if !strings.Contains(msg.Content, "Latin") {
		t.Error("source language missing from prompt")
	}
	if !strings.Contains(msg.Content, "text of page one") {
		t.Error("previous-page context missing from prompt")
	}
}

func TestTranscribeTruncatesPreviousContext(t *testing.T) {
	pipe, mock := newTestPipeline()
	ctx := context.Background()

	previous := strings.Repeat("A", ContextCharLimit+500)
	if _, err := pipe.Transcribe(ctx, []byte("img"), "Latin", previous, ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	prompt := mock.LastRequest().Messages[0].Content
	want := strings.Repeat("A", ContextCharLimit)
	if !strings.Contains(prompt, want) {
		t.Error("truncated context missing from prompt")
	}
	if strings.Contains(prompt, want+"A") {
		t.Errorf("context exceeds %d characters", ContextCharLimit)
	}
}

func TestTruncateContext(t *testing.T) {
	t.Run("short passes through", func(t *testing.T) {
		if got := TruncateContext("short"); got != "short" {
			t.Errorf("got %q", got)
		}
	})
	t.Run("multibyte runes survive", func(t *testing.T) {
		s := strings.Repeat("æ", ContextCharLimit+10)
		got := TruncateContext(s)
		if len([]rune(got)) != ContextCharLimit {
			t.Errorf("got %d runes", len([]rune(got)))
		}
		if !strings.HasSuffix(got, "æ") {
			t.Error("truncation split a multi-byte character")
		}
	})
}

func TestStagePreconditions(t *testing.T) {
	pipe, _ := newTestPipeline()
	ctx := context.Background()

	t.Run("transcribe without image", func(t *testing.T) {
		_, err := pipe.Transcribe(ctx, nil, "Latin", "", "")
		if !errdefs.IsInvalidState(err) {
			t.Errorf("expected invalid-state error, got %v", err)
		}
	})
	t.Run("translate without transcription", func(t *testing.T) {
		_, err := pipe.Translate(ctx, "", "Latin", "English", "", "")
		if !errdefs.IsInvalidState(err) {
			t.Errorf("expected invalid-state error, got %v", err)
		}
	})
	t.Run("summarize without translation", func(t *testing.T) {
		_, err := pipe.Summarize(ctx, "", "English", "", "")
		if !errdefs.IsInvalidState(err) {
			t.Errorf("expected invalid-state error, got %v", err)
		}
	})
}

func TestPromptOverrides(t *testing.T) {
	pipe, mock := newTestPipeline()
	ctx := context.Background()

	override := "Transcribe this {language} folio exactly."
	if _, err := pipe.Transcribe(ctx, []byte("img"), "Greek", "", override); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	prompt := mock.LastRequest().Messages[0].Content
	if !strings.HasPrefix(prompt, "Transcribe this Greek folio exactly.") {
		t.Errorf("override not applied: %q", prompt)
	}
}

func TestServiceErrors(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		pipe, mock := newTestPipeline()
		mock.ShouldFail = true
		_, err := pipe.Transcribe(context.Background(), []byte("img"), "Latin", "", "")
		if !errdefs.IsService(err) {
			t.Errorf("expected service error, got %v", err)
		}
	})
	t.Run("empty output", func(t *testing.T) {
		pipe, mock := newTestPipeline()
		mock.ResponseText = ""
		_, err := pipe.Transcribe(context.Background(), []byte("img"), "Latin", "", "")
		if !errdefs.IsService(err) {
			t.Errorf("expected service error, got %v", err)
		}
	})
}

func TestProcessAllChainsStages(t *testing.T) {
	pipe, mock := newTestPipeline()
	ctx := context.Background()

	// Distinct outputs per call so chaining is observable.
	outputs := []string{"the transcription", "the translation", "the summary"}
	call := 0
	mock.ResponseFunc = func(req *providers.ChatRequest) (string, error) {
		out := outputs[call]
		call++
		return out, nil
	}

	results, err := pipe.ProcessAll(ctx, ProcessInput{
		Image:          []byte("img"),
		SourceLanguage: "Latin",
		TargetLanguage: "English",
		Previous: PreviousResults{
			Transcription: "prev transcription",
			Translation:   "prev translation",
			Summary:       "prev summary",
		},
	})
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if results.OCR != "the transcription" || results.Translation != "the translation" || results.Summary != "the summary" {
		t.Errorf("unexpected results: %+v", results)
	}

	reqs := mock.Requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d calls, want 3", len(reqs))
	}
	// Each stage chains against its own previous-page context and this
	// page's upstream output.
	if !strings.Contains(reqs[0].Messages[0].Content, "prev transcription") {
		t.Error("transcribe call missing previous transcription")
	}
	translatePrompt := reqs[1].Messages[0].Content
	if !strings.Contains(translatePrompt, "prev translation") || !strings.Contains(translatePrompt, "the transcription") {
		t.Error("translate call missing chained context")
	}
	summaryPrompt := reqs[2].Messages[0].Content
	if !strings.Contains(summaryPrompt, "prev summary") || !strings.Contains(summaryPrompt, "the translation") {
		t.Error("summarize call missing chained context")
	}
}

func TestProcessAllReturnsPartialResults(t *testing.T) {
	pipe, mock := newTestPipeline()
	mock.FailAfter = 1

	results, err := pipe.ProcessAll(context.Background(), ProcessInput{
		Image:          []byte("img"),
		SourceLanguage: "Latin",
		TargetLanguage: "English",
	})
	if err == nil {
		t.Fatal("expected error from failed translate stage")
	}
	if results.OCR == "" {
		t.Error("completed transcription dropped on later-stage failure")
	}
	if results.Translation != "" || results.Summary != "" {
		t.Errorf("stages after the failure produced output: %+v", results)
	}
}
