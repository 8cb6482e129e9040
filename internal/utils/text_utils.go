package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/k3a/html2text"
	"go.uber.org/zap"
)

// TextProcessor prepares message bodies before they are sent to a
// classifier: HTML-only bodies are reduced to text, oversized bodies are
// truncated, and the result is guaranteed valid UTF-8.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the cut does not split a UTF-8 sequence
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	return string(result)
}

// HTMLToText converts an HTML body to plain text. Returns the input
// unchanged when it contains no markup.
func (tp *TextProcessor) HTMLToText(body string) string {
	if !strings.Contains(body, "<") {
		return body
	}
	text := html2text.HTML2Text(body)
	if strings.TrimSpace(text) == "" {
		return body
	}
	return text
}

// ProcessBody converts, truncates and sanitizes a message body in one pass
func (tp *TextProcessor) ProcessBody(body string, maxSize int) string {
	text := tp.HTMLToText(body)
	text = tp.TruncateText(text, maxSize)
	return tp.SanitizeUTF8(text)
}
