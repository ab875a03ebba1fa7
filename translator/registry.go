package translator

import (
	"fmt"
	"sync"
)

// Registry resolves translators by (source, target) format pair.
type Registry struct {
	mu          sync.RWMutex
	translators map[string]Translator
}

// NewRegistry builds a registry with the built-in pairs registered in
// both directions.
func NewRegistry() *Registry {
	r := &Registry{translators: make(map[string]Translator)}
	r.Register(NewOpenAIToGemini())
	r.Register(NewGeminiToOpenAI())
	return r
}

func pairKey(source, target string) string {
	return source + ":" + target
}

// Register adds a translator under its format pair, replacing any earlier
// registration for the same pair.
func (r *Registry) Register(t Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[pairKey(t.SourceFormat(), t.TargetFormat())] = t
}

// Lookup returns the translator for the exact (source, target) pair.
func (r *Registry) Lookup(source, target string) (Translator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.translators[pairKey(source, target)]
	return t, ok
}

// TranslateRequest converts a request payload from source to target
// format. An unregistered pair yields a translator_not_found result.
func (r *Registry) TranslateRequest(source, target string, data map[string]any) *Result {
	t, ok := r.Lookup(source, target)
	if !ok {
		return errorResult(ErrCodeTranslatorNotFound,
			fmt.Sprintf("no translator found from %s to %s", source, target),
			source, target)
	}
	return t.TranslateRequest(data)
}

// TranslateResponse converts a response payload back to the caller's
// format. The request flowed source->target, so the response flows the
// other way and the reverse pair is resolved.
func (r *Registry) TranslateResponse(source, target string, data map[string]any) *Result {
	t, ok := r.Lookup(target, source)
	if !ok {
		return errorResult(ErrCodeTranslatorNotFound,
			fmt.Sprintf("no translator found from %s back to %s", target, source),
			target, source)
	}
	return t.TranslateResponse(data)
}

// Conversions lists the supported target formats per source format.
func (r *Registry) Conversions() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string)
	for _, t := range r.translators {
		out[t.SourceFormat()] = append(out[t.SourceFormat()], t.TargetFormat())
	}
	return out
}
