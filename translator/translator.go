// Package translator converts chat requests and responses between vendor
// wire formats.
//
// A Translator maps payloads from its source format to its target format,
// for requests and responses alike. The Registry resolves translators by
// (source, target) pair; response translation resolves the reverse pair,
// since responses flow opposite to requests: a request translated
// openai->gemini produces a gemini response, which the gemini->openai
// translator turns back into the caller's format.
//
// Payloads are handled as decoded JSON objects. Malformed input is
// reported through the typed Result, never by panicking.
package translator

// Wire-format identifiers shared with collaborators.
const (
	FormatOpenAI = "openai"
	FormatGemini = "gemini"
	FormatClaude = "claude"
	FormatQwen   = "qwen"
	FormatIFlow  = "iflow"
)

// Translator converts payloads from one wire format to another.
type Translator interface {
	SourceFormat() string
	TargetFormat() string

	// TranslateRequest converts a request payload from the source
	// format to the target format.
	TranslateRequest(data map[string]any) *Result

	// TranslateResponse converts a response payload from the source
	// format to the target format.
	TranslateResponse(data map[string]any) *Result
}
