package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Built-in template file names.
const (
	OutlineTemplate  = "outline.txt"
	DraftTemplate    = "draft.txt"
	ReviseTemplate   = "revise.txt"
	CritiqueTemplate = "critique.txt"
	SummaryTemplate  = "summary.txt"

	// DefaultConcept is the concept used when none is supplied.
	DefaultConcept = "example_story.txt"
)

//go:embed templates/*.txt concepts/*.txt
var builtin embed.FS

// Store resolves templates and concepts by file name. A file present in the
// override directory wins over the embedded default of the same name.
type Store struct {
	promptsDir  string
	conceptsDir string
}

// NewStore creates a store. Empty directories mean embedded defaults only.
func NewStore(promptsDir, conceptsDir string) *Store {
	return &Store{
		promptsDir:  promptsDir,
		conceptsDir: conceptsDir,
	}
}

// Template returns the raw text of the named template.
func (s *Store) Template(name string) (string, error) {
	content, err := s.read(s.promptsDir, "templates", name)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", name, err)
	}
	return content, nil
}

// Concept returns the named story concept with surrounding whitespace trimmed.
func (s *Store) Concept(name string) (string, error) {
	content, err := s.read(s.conceptsDir, "concepts", name)
	if err != nil {
		return "", fmt.Errorf("load concept %s: %w", name, err)
	}
	return strings.TrimSpace(content), nil
}

// MustTemplate returns the embedded template name and panics if it does not
// exist.
func MustTemplate(name string) string {
	content, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		panic(fmt.Sprintf("prompt: no builtin template %q", name))
	}
	return string(content)
}

// Builtin lists the names of the embedded templates.
func (s *Store) Builtin() ([]string, error) {
	entries, err := fs.ReadDir(builtin, "templates")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) read(dir, embedded, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	if dir != "" {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(content), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}

	content, err := builtin.ReadFile(embedded + "/" + name)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ReadConceptFile loads a concept from an arbitrary path.
func ReadConceptFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read concept file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func validName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name: %q", name)
	}
	return nil
}
