package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"validert/internal/util"
)

// Section is one named block of rule or instruction text given to the model.
type Section struct {
	Name string
	Text string
}

// Context is the ordered set of sections that shaped a model output. Its hash is
// the pipeline component of the cache key.
type Context struct {
	Sections []Section
}

func (c Context) Render() string {
	parts := make([]string, 0, len(c.Sections))
	for _, s := range c.Sections {
		parts = append(parts, "===== "+s.Name+" =====\n"+s.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (c Context) Hash() string {
	return util.SHA256HexString(c.Render())
}

// LoadDir reads *.md and *.txt files sorted by file name; each file becomes a section
// named after its upper-cased stem. The system prompt is always the first section.
func LoadDir(dir string) (Context, error) {
	ctx := Context{Sections: []Section{{Name: "SYSTEM", Text: SystemPrompt}}}
	if strings.TrimSpace(dir) == "" {
		return ctx, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Context{}, fmt.Errorf("read prompt context %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".md", ".txt":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return Context{}, fmt.Errorf("read prompt section %s: %w", name, err)
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		ctx.Sections = append(ctx.Sections, Section{Name: strings.ToUpper(stem), Text: string(b)})
	}
	return ctx, nil
}
