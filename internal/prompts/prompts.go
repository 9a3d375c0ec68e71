// Package prompts holds the default stage prompt templates and resolves the
// effective prompt for a stage: the caller override if supplied, else the
// embedded default.
package prompts

import (
	"fmt"
	"sync"

	"github.com/jackzampolin/folio/internal/types"
)

// Prompt keys, one per pipeline stage plus spread geometry detection.
const (
	KeyTranscribe  = "transcribe"
	KeyTranslate   = "translate"
	KeySummarize   = "summarize"
	KeySplitDetect = "split_detect"
)

// EmbeddedPrompt is a compiled-in default prompt template.
type EmbeddedPrompt struct {
	Key       string
	Text      string
	Variables []string
}

// Overrides carries caller-supplied prompt overrides per stage. An empty
// string means "use the default template".
type Overrides struct {
	Transcribe string `json:"transcribe,omitempty"`
	Translate  string `json:"translate,omitempty"`
	Summarize  string `json:"summarize,omitempty"`
}

// For returns the override for a pipeline stage, or "".
func (o Overrides) For(stage types.Stage) string {
	switch stage {
	case types.StageOCR:
		return o.Transcribe
	case types.StageTranslation:
		return o.Translate
	case types.StageSummary:
		return o.Summarize
	}
	return ""
}

// Resolver resolves effective prompt text per stage.
type Resolver struct {
	mu       sync.RWMutex
	embedded map[string]EmbeddedPrompt
}

// NewResolver creates a resolver pre-loaded with the embedded defaults.
func NewResolver() *Resolver {
	r := &Resolver{embedded: make(map[string]EmbeddedPrompt)}
	for _, p := range defaultPrompts() {
		r.Register(p)
	}
	return r
}

// Register registers an embedded prompt, extracting its variables if unset.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}
	r.embedded[prompt.Key] = prompt
}

// Resolve returns the effective prompt for a key: the override if non-empty,
// else the embedded default rendered with vars. Overrides are rendered with
// the same vars so they may use the same placeholders.
func (r *Resolver) Resolve(key, override string, vars map[string]string) (string, error) {
	if override != "" {
		return Render(override, vars), nil
	}

	r.mu.RLock()
	embedded, ok := r.embedded[key]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("prompt not found: %s", key)
	}
	return Render(embedded.Text, vars), nil
}

// GetEmbedded returns the embedded default for a key.
func (r *Resolver) GetEmbedded(key string) (EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return p, ok
}
