// Package workspace organizes conversion projects so a document can be
// reprocessed without re-specifying paths, and enforces the single-writer
// rule for each project's checkpoint state.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Workspace describes one document conversion project
type Workspace struct {
	Name         string    `json:"name"`
	PDFPath      string    `json:"pdf_path"`
	Dir          string    `json:"dir"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// ImagesDir returns the directory for cached page images
func (w *Workspace) ImagesDir() string { return filepath.Join(w.Dir, "images") }

// LatexDir returns the directory for per-page section files
func (w *Workspace) LatexDir() string { return filepath.Join(w.Dir, "latex") }

// MainDocPath returns the assembled document path
func (w *Workspace) MainDocPath() string { return filepath.Join(w.Dir, "main.tex") }

// CheckpointPath returns the checkpoint file path
func (w *Workspace) CheckpointPath() string { return filepath.Join(w.Dir, "checkpoint.json") }

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Manager maintains the workspace registry under a base directory
type Manager struct {
	baseDir    string
	configFile string
	workspaces map[string]*Workspace
}

// NewManager opens (or initializes) the workspace registry
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	m := &Manager{
		baseDir:    baseDir,
		configFile: filepath.Join(baseDir, "workspaces.json"),
		workspaces: make(map[string]*Workspace),
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read workspace registry: %w", err)
	}
	if err := json.Unmarshal(data, &m.workspaces); err != nil {
		return nil, fmt.Errorf("failed to parse workspace registry: %w", err)
	}
	return m, nil
}

// Create registers a new workspace for a PDF and builds its directory tree
func (m *Manager) Create(name, pdfPath, description string) (*Workspace, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("workspace name must contain only alphanumeric characters, dashes, and underscores")
	}
	if _, exists := m.workspaces[name]; exists {
		return nil, fmt.Errorf("workspace %q already exists", name)
	}

	absPDF, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PDF path: %w", err)
	}
	if _, err := os.Stat(absPDF); err != nil {
		return nil, fmt.Errorf("PDF file not found: %s", absPDF)
	}

	ws := &Workspace{
		Name:         name,
		PDFPath:      absPDF,
		Dir:          filepath.Join(m.baseDir, name),
		Description:  description,
		CreatedAt:    time.Now(),
		LastAccessed: time.Now(),
	}

	for _, dir := range []string{ws.Dir, ws.ImagesDir(), ws.LatexDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workspace directories: %w", err)
		}
	}

	m.workspaces[name] = ws
	if err := m.save(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Get returns a workspace by name, updating its last-accessed time
func (m *Manager) Get(name string) (*Workspace, error) {
	ws, ok := m.workspaces[name]
	if !ok {
		return nil, fmt.Errorf("workspace %q does not exist", name)
	}
	ws.LastAccessed = time.Now()
	if err := m.save(); err != nil {
		return nil, err
	}
	return ws, nil
}

// List returns all registered workspaces
func (m *Manager) List() []*Workspace {
	out := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		out = append(out, ws)
	}
	return out
}

// Remove unregisters a workspace. Files are deleted only when purge is set.
func (m *Manager) Remove(name string, purge bool) error {
	ws, ok := m.workspaces[name]
	if !ok {
		return fmt.Errorf("workspace %q does not exist", name)
	}

	if purge {
		if err := os.RemoveAll(ws.Dir); err != nil {
			return fmt.Errorf("failed to remove workspace files: %w", err)
		}
	}

	delete(m.workspaces, name)

	if current, _ := m.Current(); current == name {
		m.SetCurrent("")
	}
	return m.save()
}

// Current returns the name of the active workspace, if any
func (m *Manager) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.baseDir, ".current"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SetCurrent records the active workspace. Empty name clears it.
func (m *Manager) SetCurrent(name string) error {
	currentFile := filepath.Join(m.baseDir, ".current")
	if name == "" {
		if err := os.Remove(currentFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if _, ok := m.workspaces[name]; !ok {
		return fmt.Errorf("workspace %q does not exist", name)
	}
	return os.WriteFile(currentFile, []byte(name), 0644)
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.workspaces, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace registry: %w", err)
	}

	tempPath := m.configFile + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workspace registry: %w", err)
	}
	if err := os.Rename(tempPath, m.configFile); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace workspace registry: %w", err)
	}
	return nil
}
