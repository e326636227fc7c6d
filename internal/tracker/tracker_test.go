package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/logging"
)

func newTestTracker(t *testing.T, cfg *config.Config) *Tracker {
	t.Helper()

	logger := logging.NewTestLogger()
	p, err := engine.NewProcessor(cfg, logger)
	require.NoError(t, err)

	set := engine.NewSet(
		engine.NewPageEngine(p),
		engine.NewCodeEngine(p),
		engine.NewSassEngine(p, cfg.Sass.Command, cfg.Sass.Args, logger),
		engine.NewStaticEngine(p),
	)

	tr, err := New(cfg, set, logger)
	require.NoError(t, err)

	return tr
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()

	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestTracker_Referencers(t *testing.T) {
	root := t.TempDir()
	header := writeFile(t, root, "header.weft", "<!--@ partial @-->\n<h1>x</h1>")
	index := writeFile(t, root, "index.weft", "<!--@ include header.weft @-->")
	about := writeFile(t, root, "about.weft", "<!--@ include header.weft:print @-->")
	writeFile(t, root, "plain.weft", "no includes here")

	cfg := &config.Config{Source: config.SourceConfig{Root: root}, Sass: config.SassConfig{Command: "sass"}}
	tr := newTestTracker(t, cfg)

	require.NoError(t, tr.Rebuild(context.Background()))

	assert.Equal(t, []string{about, index}, tr.Referencers(header),
		"profile gates do not hide a reference")
	assert.Empty(t, tr.Referencers(index))
	assert.Equal(t, []string{header}, tr.References(index))
}

func TestTracker_SassReferences(t *testing.T) {
	root := t.TempDir()
	vars := writeFile(t, root, "_vars.scss", "$accent: #f00;")
	main := writeFile(t, root, "main.scss", "@use 'vars';\nbody {}")

	cfg := &config.Config{Source: config.SourceConfig{Root: root}, Sass: config.SassConfig{Command: "sass"}}
	tr := newTestTracker(t, cfg)

	require.NoError(t, tr.Rebuild(context.Background()))

	assert.Equal(t, []string{main}, tr.Referencers(vars))
}

// TestTracker_MissingIncludeStillTracked pins that references are textual:
// an include of a file that does not exist yet is recorded, so creating the
// file later regenerates the page that wants it.
func TestTracker_MissingIncludeStillTracked(t *testing.T) {
	root := t.TempDir()
	page := writeFile(t, root, "page.weft", "<!--@ include gone.weft @-->")

	cfg := &config.Config{Source: config.SourceConfig{Root: root}}
	tr := newTestTracker(t, cfg)

	require.NoError(t, tr.Rebuild(context.Background()))

	assert.Equal(t, []string{page}, tr.Referencers(filepath.Join(root, "gone.weft")))
}

func TestTracker_SkipsIgnoredAndGenerated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "header.weft", "x")
	keep := writeFile(t, root, "index.weft", "<!--@ include header.weft @-->")
	writeFile(t, root, filepath.Join("drafts", "skip.weft"), "<!--@ include ../header.weft @-->")
	writeFile(t, root, filepath.Join("dist", "copy.weft"), "<!--@ include ../header.weft @-->")
	writeFile(t, root, filepath.Join(".cache", "tmp.weft"), "<!--@ include ../header.weft @-->")
	writeFile(t, root, "notes.bak", "junk")

	cfg := &config.Config{
		Source: config.SourceConfig{Root: root, Ignore: []string{"drafts", "*.bak"}},
		Output: config.OutputConfig{Dir: "dist"},
	}
	tr := newTestTracker(t, cfg)

	sources, err := tr.Sources(context.Background())
	require.NoError(t, err)

	assert.Contains(t, sources, keep)
	for _, s := range sources {
		assert.NotContains(t, s, "drafts")
		assert.NotContains(t, s, "dist")
		assert.NotContains(t, s, ".cache")
		assert.NotContains(t, s, ".bak")
	}

	require.NoError(t, tr.Rebuild(context.Background()))
	assert.Equal(t, []string{keep}, tr.Referencers(filepath.Join(root, "header.weft")))
}

// TestTracker_RebuildReplacesGraph checks that edges disappear when the
// including file stops including.
func TestTracker_RebuildReplacesGraph(t *testing.T) {
	root := t.TempDir()
	header := writeFile(t, root, "header.weft", "x")
	writeFile(t, root, "index.weft", "<!--@ include header.weft @-->")
	about := writeFile(t, root, "about.weft", "<!--@ include header.weft @-->")

	cfg := &config.Config{Source: config.SourceConfig{Root: root}}
	tr := newTestTracker(t, cfg)

	require.NoError(t, tr.Rebuild(context.Background()))
	require.Len(t, tr.Referencers(header), 2)

	writeFile(t, root, "index.weft", "no include anymore")
	require.NoError(t, tr.Rebuild(context.Background()))

	assert.Equal(t, []string{about}, tr.Referencers(header))
}

func TestTracker_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.weft", "x")

	cfg := &config.Config{Source: config.SourceConfig{Root: root}}
	tr := newTestTracker(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, tr.Rebuild(ctx))
}
