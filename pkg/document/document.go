// Package document supplies the ordered sequence of rendered pages for a
// PDF. Enumeration is restartable: the same document yields the same page
// numbers and, content unchanged, the same rendered bytes on every run.
package document

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"

	"notex/pkg/logger"
)

// Page is one rendered page of the source document
type Page struct {
	// Number is the 1-based page ordinal, stable across runs
	Number int
	// PNG holds the rendered page image bytes
	PNG []byte
}

// Source produces rendered pages of a document
type Source interface {
	// PageCount returns the number of pages in the document
	PageCount() int
	// Render produces the image for one page
	Render(ctx context.Context, pageNum int) (*Page, error)
	// Close releases document resources
	Close() error
}

// PDFSource renders PDF pages to PNG images using MuPDF
type PDFSource struct {
	path   string
	dpi    int
	doc    *fitz.Document
	mu     sync.Mutex
	logger logger.Logger
}

// OpenPDF opens a PDF document for page rendering
func OpenPDF(path string, dpi int, log logger.Logger) (*PDFSource, error) {
	if dpi <= 0 {
		dpi = 300
	}
	if log == nil {
		log = logger.GetLogger()
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, fmt.Errorf("PDF has no pages: %s", path)
	}

	log.InfoWithFields("document opened", map[string]interface{}{
		"path":  path,
		"pages": doc.NumPage(),
		"dpi":   dpi,
	})

	return &PDFSource{
		path:   path,
		dpi:    dpi,
		doc:    doc,
		logger: log,
	}, nil
}

// PageCount returns the number of pages in the document
func (s *PDFSource) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.NumPage()
}

// Render produces the PNG image for the given 1-based page number. MuPDF
// handles are not goroutine-safe, so rendering is serialized internally.
func (s *PDFSource) Render(ctx context.Context, pageNum int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pageNum < 1 || pageNum > s.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageNum, s.doc.NumPage())
	}

	img, err := s.doc.ImageDPI(pageNum-1, float64(s.dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", pageNum, err)
	}

	return &Page{Number: pageNum, PNG: buf.Bytes()}, nil
}

// Close releases the underlying MuPDF document
func (s *PDFSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		err := s.doc.Close()
		s.doc = nil
		return err
	}
	return nil
}

// SavePage writes a rendered page image into dir for operator inspection.
// Written atomically so a crash never leaves a truncated image behind.
func SavePage(page *Page, dir, docName string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_page%d.png", docName, page.Number))
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, page.PNG, 0644); err != nil {
		return "", fmt.Errorf("failed to write page image: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to replace page image: %w", err)
	}
	return path, nil
}
