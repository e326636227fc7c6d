// Package scaffolding writes starter source trees and new source files for
// weft projects. Every file comes from a named template rendered against a
// small context, so the init and new commands share one mechanism.
package scaffolding

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/weft-dev/weft/internal/logging"
)

// starterTemplates are written by InitProject, in this order.
var starterTemplates = []string{"config", "page", "partial", "styles", "code", "folder-settings"}

// Generator renders file templates into a project root.
type Generator struct {
	root        string
	projectName string
	templates   map[string]FileTemplate
	logger      logging.Logger
	now         func() time.Time
	titler      cases.Caser
}

// InitOptions controls InitProject.
type InitOptions struct {
	// Force overwrites files that already exist.
	Force bool
}

// New creates a generator rooted at the given project directory.
func New(root, projectName string, logger logging.Logger) *Generator {
	return &Generator{
		root:        root,
		projectName: projectName,
		templates:   Builtin(),
		logger:      logger.WithComponent("scaffolding"),
		now:         time.Now,
		titler:      cases.Title(language.English),
	}
}

// InitProject writes the starter tree: configuration, an index page, the
// shared header partial, a base stylesheet, and a sample code source with its
// folder settings. Returns the paths written. Without Force an existing file
// aborts the whole run before anything is written.
func (g *Generator) InitProject(ctx context.Context, opts InitOptions) ([]string, error) {
	base := g.context()

	type rendered struct {
		path    string
		content string
	}
	var files []rendered

	for _, name := range starterTemplates {
		tc := base
		switch name {
		case "page":
			tc.Name = "index"
			tc.Title = g.titleFor(g.projectName)
		case "partial":
			tc.Name = "header"
		}

		path, content, err := g.render(name, tc)
		if err != nil {
			return nil, err
		}

		if !opts.Force {
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%s already exists, re-run with --force to overwrite", path)
			}
		}

		files = append(files, rendered{path: path, content: content})
	}

	var written []string
	for _, f := range files {
		if err := writeFile(f.path, f.content); err != nil {
			return written, err
		}
		written = append(written, f.path)
		g.logger.Info(ctx, "wrote starter file", "path", f.path)
	}

	return written, nil
}

// NewPage writes a page source named after the slug, titled from it, wired to
// the shared header partial. Returns the path written.
func (g *Generator) NewPage(ctx context.Context, name string) (string, error) {
	return g.newSource(ctx, "page", name)
}

// NewPartial writes a partial under _partials/ with the underscore naming
// convention. Returns the path written.
func (g *Generator) NewPartial(ctx context.Context, name string) (string, error) {
	return g.newSource(ctx, "partial", name)
}

func (g *Generator) newSource(ctx context.Context, templateName, name string) (string, error) {
	name = strings.TrimSuffix(name, ".weft")
	if err := ValidateName(name); err != nil {
		return "", err
	}

	tc := g.context()
	tc.Name = name
	tc.Title = g.titleFor(name)

	path, content, err := g.render(templateName, tc)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	if err := writeFile(path, content); err != nil {
		return "", err
	}
	g.logger.Info(ctx, "wrote source file", "template", templateName, "path", path)

	return path, nil
}

// Templates lists the available file templates.
func (g *Generator) Templates() []FileTemplate {
	var out []FileTemplate
	for _, name := range starterTemplates {
		out = append(out, g.templates[name])
	}

	return out
}

// render expands a template's path and content against the context. The
// returned path is absolute under the generator root.
func (g *Generator) render(name string, tc TemplateContext) (string, string, error) {
	ft, ok := g.templates[name]
	if !ok {
		return "", "", fmt.Errorf("template %q not found", name)
	}

	rel, err := renderString(name+"/path", ft.RelPath, tc)
	if err != nil {
		return "", "", err
	}

	content, err := renderString(name, ft.Content, tc)
	if err != nil {
		return "", "", err
	}

	return filepath.Join(g.root, filepath.FromSlash(rel)), content, nil
}

func (g *Generator) context() TemplateContext {
	now := g.now()

	return TemplateContext{
		ProjectName: g.projectName,
		Date:        now.Format("2006-01-02"),
		Year:        now.Format("2006"),
	}
}

// titleFor derives a human title from a file slug: "release-notes" becomes
// "Release Notes".
func (g *Generator) titleFor(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		words[i] = g.titler.String(strings.ToLower(w))
	}
	if len(words) == 0 {
		return slug
	}

	return strings.Join(words, " ")
}

func renderString(name, text string, tc TemplateContext) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tc); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}

	return buf.String(), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// ValidateName accepts file slugs: letters, digits, hyphens and underscores,
// starting with a letter. Everything else risks surprising paths or broken
// links.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !isLetter(name[0]) {
		return fmt.Errorf("name must start with a letter: %q", name)
	}

	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isLetter(c) && !isDigit(c) && c != '-' && c != '_' {
			return fmt.Errorf("name contains %q, only letters, digits, '-' and '_' are allowed", c)
		}
	}

	return nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
