package provider

import (
	"fmt"
	"strings"
)

// Feedback is the part of a generation response that explains why no
// content was produced.
type Feedback struct {
	BlockReason        string
	BlockReasonMessage string
	FinishReason       string
	FinishMessage      string
	Text               string
}

// normalFinishReasons end a generation without a refusal.
var normalFinishReasons = map[string]bool{
	"":                          true,
	"STOP":                      true,
	"FINISH_REASON_UNSPECIFIED": true,
	"MAX_TOKENS":                true,
}

// Explain returns the most specific refusal reason in f: the prompt block
// reason, then an abnormal finish reason, then any text the model returned.
func (f Feedback) Explain() (string, bool) {
	if f.BlockReason != "" {
		reason := fmt.Sprintf("The request was blocked for safety reasons (%s). "+
			"This can be caused by words in your prompt; try rephrasing the idea.", f.BlockReason)
		if f.BlockReasonMessage != "" {
			reason += " Details: " + f.BlockReasonMessage
		}
		return reason, true
	}

	if !normalFinishReasons[f.FinishReason] {
		reason := fmt.Sprintf("The request was stopped for safety reasons (%s). Try rephrasing the idea.", f.FinishReason)
		if f.FinishMessage != "" {
			reason += " Details: " + f.FinishMessage
		}
		return reason, true
	}

	if text := strings.TrimSpace(f.Text); text != "" && text != "```" && text != "```json" {
		return fmt.Sprintf("Model response: %q", text), true
	}

	return "", false
}

// Refusal converts f into a safety error, or returns fallback when f
// explains nothing.
func (f Feedback) Refusal(prefix string, fallback error) error {
	reason, ok := f.Explain()
	if !ok {
		return fallback
	}
	if prefix != "" {
		reason = prefix + " " + reason
	}
	return SafetyBlockError(reason)
}
