package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tweetloom/internal/services"
)

//go:embed default_prompt.txt
var defaultTemplate string

// DefaultTemplate returns the built-in generation template.
func DefaultTemplate() string {
	return defaultTemplate
}

// Loader reads prompt templates by name from a directory. Template names map
// to <name>.txt files.
type Loader struct {
	dir string
}

// NewLoader builds a Loader rooted at the prompts directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load returns the template text for a name.
func (l *Loader) Load(name string) (string, error) {
	path := filepath.Join(l.dir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "compose", "load template",
				fmt.Sprintf("template %q not found in %s", name, l.dir), nil)
		}
		return "", services.Wrap(services.ErrTemplate, "compose", "load template", "read template file", err)
	}
	return string(data), nil
}

// WriteDefault materializes the built-in template as <name>.txt so users have
// a starting point to edit. Existing files are left alone.
func (l *Loader) WriteDefault(name string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create prompts directory: %w", err)
	}
	path := filepath.Join(l.dir, name+".txt")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0o644); err != nil {
		return "", fmt.Errorf("write default template: %w", err)
	}
	return path, nil
}
