// Package latex writes per-page section files and maintains the assembled
// main document.
package latex

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"notex/pkg/logger"
)

const mainPreamble = `\documentclass[12pt,a4paper]{article}
\usepackage[utf8]{inputenc}
\usepackage{amsmath}
\usepackage{amsfonts}
\usepackage{amssymb}
\usepackage{graphicx}
\usepackage{cancel}
\usepackage{arydshln}
\usepackage{geometry}
\geometry{margin=1in}
`

var (
	preambleRe   = regexp.MustCompile(`(?s)\\documentclass.*?\\begin\{document\}`)
	whitespaceRe = regexp.MustCompile(`\n{3,}`)
)

// Integrator saves LaTeX sections and keeps main.tex current.
// Safe for concurrent use; workers finishing out of order append through
// one mutex so main.tex is never written concurrently.
type Integrator struct {
	sectionDir string
	mu         sync.Mutex
	logger     logger.Logger
}

// NewIntegrator creates an integrator writing sections into sectionDir
func NewIntegrator(sectionDir string, log logger.Logger) *Integrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Integrator{
		sectionDir: sectionDir,
		logger:     log,
	}
}

// Clean strips any full-document wrapper the model may have produced and
// collapses excessive blank lines, leaving a fragment fit for \input
func Clean(raw string) string {
	raw = preambleRe.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, `\end{document}`, "")
	raw = whitespaceRe.ReplaceAllString(raw, "\n\n")
	return strings.TrimSpace(raw)
}

// SectionPath returns the section file path for a page
func (in *Integrator) SectionPath(prefix string, page int) string {
	return filepath.Join(in.sectionDir, fmt.Sprintf("%s_page%d.tex", prefix, page))
}

// SaveSection writes one page's LaTeX as a section file, wrapped in a
// \section heading. The write is atomic (tmp+rename).
func (in *Integrator) SaveSection(content, prefix string, page int) (string, error) {
	cleaned := Clean(content)
	section := fmt.Sprintf("\\section{Page %d}\n\n%s\n", page, cleaned)

	if err := os.MkdirAll(in.sectionDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create section directory: %w", err)
	}

	path := in.SectionPath(prefix, page)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(section), 0644); err != nil {
		return "", fmt.Errorf("failed to write section file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to replace section file: %w", err)
	}

	in.logger.DebugWithFields("section saved", map[string]interface{}{
		"page": page,
		"path": path,
	})
	return path, nil
}

// AppendToMain ensures the section file is \input into the main document,
// creating the main document with its preamble if missing. Appending is
// idempotent: a section already present is not duplicated.
func (in *Integrator) AppendToMain(sectionFile, mainPath, title string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	content, err := in.readOrCreateMain(mainPath, title)
	if err != nil {
		return err
	}

	relPath, err := filepath.Rel(filepath.Dir(mainPath), sectionFile)
	if err != nil {
		relPath = sectionFile
	}
	relPath = strings.TrimSuffix(relPath, ".tex")
	inputStatement := fmt.Sprintf("\\input{%s}", filepath.ToSlash(relPath))

	if strings.Contains(content, inputStatement) {
		return nil
	}

	endDocPos := strings.LastIndex(content, `\end{document}`)
	if endDocPos == -1 {
		return fmt.Errorf("invalid main document: missing \\end{document} in %s", mainPath)
	}

	updated := content[:endDocPos] + inputStatement + "\n\n" + content[endDocPos:]
	return writeAtomic(mainPath, []byte(updated))
}

// readOrCreateMain loads the main document, creating it with the standard
// preamble on first use. Caller must hold in.mu.
func (in *Integrator) readOrCreateMain(mainPath, title string) (string, error) {
	data, err := os.ReadFile(mainPath)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read main document: %w", err)
	}

	var b strings.Builder
	b.WriteString(mainPreamble)
	if title != "" {
		fmt.Fprintf(&b, "\n\\title{%s}\n", title)
	}
	b.WriteString("\n\\begin{document}\n\n")
	if title != "" {
		b.WriteString("\\maketitle\n\n")
	}
	b.WriteString("\\end{document}")

	if err := os.MkdirAll(filepath.Dir(mainPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeAtomic(mainPath, []byte(b.String())); err != nil {
		return "", err
	}

	in.logger.InfoWithFields("main document created", map[string]interface{}{
		"path": mainPath,
	})
	return b.String(), nil
}

func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
