package translator

// Error codes carried by failed translation results.
const (
	ErrCodeTranslationFailed  = "translation_failed"
	ErrCodeTranslatorNotFound = "translator_not_found"
)

// Result is the outcome of a translation. A success carries the
// translated payload; a failure carries an error message and one of the
// error codes above. Both record the format pair involved.
type Result struct {
	Success      bool           `json:"success"`
	Data         map[string]any `json:"translated_data,omitempty"`
	Error        string         `json:"error,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	SourceFormat string         `json:"source_format,omitempty"`
	TargetFormat string         `json:"target_format,omitempty"`
}

func successResult(data map[string]any, source, target string) *Result {
	return &Result{Success: true, Data: data, SourceFormat: source, TargetFormat: target}
}

func errorResult(code, msg, source, target string) *Result {
	return &Result{Error: msg, ErrorCode: code, SourceFormat: source, TargetFormat: target}
}
