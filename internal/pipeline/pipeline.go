// Package pipeline produces ocr, translation, and summary stage results for
// a single page.
//
// Chaining runs along two independent axes that must not be conflated:
// per-stage cross-page (stage N of page P is seeded with stage N of page
// P-1, as continuity context only) and intra-page sequential (stage 2 of
// page P consumes stage 1's freshly produced output of the same page, never
// a cached prior value).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/providers"
)

// ContextCharLimit bounds how much of the previous page's stage output is
// appended to a prompt as continuity context. The bound is in runes and
// deterministic for reproducibility.
const ContextCharLimit = 2000

// Pipeline runs the transcription stages against the inference service.
type Pipeline struct {
	ai      providers.Client
	prompts *prompts.Resolver
	model   string
	logger  *slog.Logger
}

// New creates a pipeline. model may be empty to use the client default.
func New(ai providers.Client, resolver *prompts.Resolver, model string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = prompts.NewResolver()
	}
	return &Pipeline{ai: ai, prompts: resolver, model: model, logger: logger}
}

// Model returns the model name stage results should be attributed to.
func (p *Pipeline) Model() string {
	return p.model
}

// PreviousResults carries the preceding page's stage outputs, used purely as
// cross-page continuity context. All fields are optional; the first page of
// a book has none.
type PreviousResults struct {
	Transcription string
	Translation   string
	Summary       string
}

// PageResults holds whatever stages completed for one page. On stage
// failure, ProcessAll returns the completed prefix alongside the error;
// those earlier outputs are safe to persist.
type PageResults struct {
	OCR         string
	Translation string
	Summary     string
}

// Transcribe extracts the page text from its image. previous, when
// non-empty, is the preceding page's transcription and is appended
// (truncated to ContextCharLimit) as contextual grounding for running text,
// abbreviations, and recurring marginalia conventions.
func (p *Pipeline) Transcribe(ctx context.Context, image []byte, sourceLanguage, previous, override string) (string, error) {
	if len(image) == 0 {
		return "", errdefs.InvalidState("transcribe requires a page image")
	}

	prompt, err := p.prompts.Resolve(prompts.KeyTranscribe, override, map[string]string{
		"language": sourceLanguage,
	})
	if err != nil {
		return "", err
	}
	prompt = appendContext(prompt, "Transcription of the previous page, for continuity", previous)

	return p.callText(ctx, []providers.Message{
		{Role: "user", Content: prompt, Images: [][]byte{image}},
	}, "transcribe")
}

// Translate renders a transcription into the target language. A non-empty
// transcription is a precondition; the pipeline never infers one implicitly.
func (p *Pipeline) Translate(ctx context.Context, transcription, sourceLanguage, targetLanguage, previous, override string) (string, error) {
	if transcription == "" {
		return "", errdefs.InvalidState("translate requires a transcription")
	}

	prompt, err := p.prompts.Resolve(prompts.KeyTranslate, override, map[string]string{
		"source_language": sourceLanguage,
		"target_language": targetLanguage,
	})
	if err != nil {
		return "", err
	}
	prompt = appendContext(prompt, "Translation of the previous page, for continuity", previous)
	prompt += "\n\nTranscription:\n" + transcription

	return p.callText(ctx, []providers.Message{
		{Role: "user", Content: prompt},
	}, "translate")
}

// Summarize condenses a translated page. A non-empty translation is a
// precondition.
func (p *Pipeline) Summarize(ctx context.Context, translation, targetLanguage, previous, override string) (string, error) {
	if translation == "" {
		return "", errdefs.InvalidState("summarize requires a translation")
	}

	prompt, err := p.prompts.Resolve(prompts.KeySummarize, override, map[string]string{
		"target_language": targetLanguage,
	})
	if err != nil {
		return "", err
	}
	prompt = appendContext(prompt, "Summary of the previous page, for continuity", previous)
	prompt += "\n\nTranslation:\n" + translation

	return p.callText(ctx, []providers.Message{
		{Role: "user", Content: prompt},
	}, "summarize")
}

// ProcessInput bundles the arguments for ProcessAll.
type ProcessInput struct {
	Image          []byte
	SourceLanguage string
	TargetLanguage string
	Previous       PreviousResults
	Overrides      prompts.Overrides
}

// ProcessAll runs transcribe, translate, and summarize strictly in order,
// threading each stage's own output into the next. Any stage failure aborts
// the remaining stages; the completed prefix is returned with the error.
func (p *Pipeline) ProcessAll(ctx context.Context, in ProcessInput) (*PageResults, error) {
	results := &PageResults{}

	ocr, err := p.Transcribe(ctx, in.Image, in.SourceLanguage, in.Previous.Transcription, in.Overrides.Transcribe)
	if err != nil {
		return results, fmt.Errorf("transcribe stage: %w", err)
	}
	results.OCR = ocr

	translation, err := p.Translate(ctx, ocr, in.SourceLanguage, in.TargetLanguage, in.Previous.Translation, in.Overrides.Translate)
	if err != nil {
		return results, fmt.Errorf("translate stage: %w", err)
	}
	results.Translation = translation

	summary, err := p.Summarize(ctx, translation, in.TargetLanguage, in.Previous.Summary, in.Overrides.Summarize)
	if err != nil {
		return results, fmt.Errorf("summarize stage: %w", err)
	}
	results.Summary = summary

	return results, nil
}

// callText runs a chat request and enforces non-empty output. A transport
// failure or empty response is a ServiceError; partial or garbled output is
// never reported as success.
func (p *Pipeline) callText(ctx context.Context, messages []providers.Message, stage string) (string, error) {
	result, err := p.ai.Chat(ctx, &providers.ChatRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return "", errdefs.Service("%s call failed: %v", stage, err)
	}
	if result.Content == "" {
		return "", errdefs.Service("%s call returned empty output", stage)
	}

	p.logger.Debug("stage complete",
		"stage", stage,
		"model", result.ModelUsed,
		"tokens", result.TotalTokens)
	return result.Content, nil
}

// appendContext appends previous-page context to a prompt, truncated to
// ContextCharLimit runes.
func appendContext(prompt, label, previous string) string {
	if previous == "" {
		return prompt
	}
	return prompt + "\n\n" + label + ":\n" + TruncateContext(previous)
}

// TruncateContext bounds previous-page context to ContextCharLimit runes
// without splitting a multi-byte character.
func TruncateContext(s string) string {
	runes := []rune(s)
	if len(runes) <= ContextCharLimit {
		return s
	}
	return string(runes[:ContextCharLimit])
}
