// Package converter turns rendered page images into LaTeX source.
//
// The pipeline depends only on the Converter interface; concrete
// implementations (hosted model endpoint, offline dummy) are injected at
// construction time so the core can be exercised without network access.
package converter

import (
	"context"
	"regexp"
	"strings"
)

// Converter converts a rendered page image to LaTeX code
type Converter interface {
	// Convert transforms PNG image bytes into a LaTeX fragment. Failures
	// carry a conversion error class (see pkg/errors) used to decide
	// retryability.
	Convert(ctx context.Context, image []byte) (string, error)
	// Name identifies the converter implementation for logging
	Name() string
}

// DefaultPrompt is used when no custom prompt is configured
const DefaultPrompt = `Convert this handwritten mathematical content to LaTeX code.

Instructions:
- Output ONLY the LaTeX code, no explanations
- Use proper LaTeX math environments (equation, align, etc.)
- For inline math use $...$, for display math use $$...$$ or equation environments
- Preserve the structure and organization of the content
- If there are sections or titles, use appropriate LaTeX commands
- Be precise with mathematical notation

Output only the LaTeX code.`

var codeFenceRe = regexp.MustCompile("```(?:latex)?\\s*")

// CleanResponse strips markdown code fences the model sometimes wraps
// around its output
func CleanResponse(text string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(text, ""))
}
