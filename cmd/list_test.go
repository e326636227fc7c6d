package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/logging"
)

// newTestProject wires a project directly from a config value, bypassing the
// config file and environment lookup the CLI entry points do.
func newTestProject(t *testing.T, root string) *project {
	t.Helper()

	cfg := &config.Config{
		Source: config.SourceConfig{Root: root, Ignore: []string{".git", "node_modules"}},
		Output: config.OutputConfig{Dir: "dist", Static: true},
		Server: config.ServerConfig{Host: "localhost", Port: 8080},
		Watch:  config.WatchConfig{Debounce: 100},
		Sass:   config.SassConfig{Command: "sass"},
	}

	p, err := wireProject(cfg, logging.NewTestLogger())
	require.NoError(t, err)

	return p
}

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestListRows(t *testing.T) {
	root := t.TempDir()

	writeTestFile(t, filepath.Join(root, "index.weft"),
		"<html><body><h1>$$title$$</h1></body></html>\n<!--$ <Data><Variable Name=\"title\">Home</Variable></Data> $-->\n")
	writeTestFile(t, filepath.Join(root, "_partials", "header.weft"),
		"<!--@ partial @-->\n<header>Site</header>\n")
	writeTestFile(t, filepath.Join(root, "site", "site.goweft"),
		"package site\n\n<!--# properties group=Site #-->\n<!--$ <Data><Group Name=\"Site\"><Variable Name=\"app-name\">demo</Variable></Group></Data> $-->\n")
	writeTestFile(t, filepath.Join(root, "styles.scss"),
		"body { color: black }\n")
	writeTestFile(t, filepath.Join(root, "assets", "logo.txt"),
		"logo\n")

	p := newTestProject(t, root)

	rows, err := listRows(context.Background(), p, false)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	header := rows[0]
	assert.Equal(t, "_partials/header.weft", header.Source)
	assert.Equal(t, "page", header.Engine)
	assert.True(t, header.Partial)
	assert.Empty(t, header.Outputs)
	assert.Empty(t, header.Error)

	logo := rows[1]
	assert.Equal(t, "assets/logo.txt", logo.Source)
	assert.Equal(t, "static", logo.Engine)
	assert.Equal(t, []string{"dist/assets/logo.txt"}, logo.Outputs)

	index := rows[2]
	assert.Equal(t, "index.weft", index.Source)
	assert.Equal(t, "page", index.Engine)
	assert.False(t, index.Partial)
	assert.Equal(t, []string{"dist/index.html"}, index.Outputs)
	assert.Equal(t, []string{"(default)"}, index.Profiles)
	assert.Equal(t, []string{"title"}, index.Variables)
	assert.Empty(t, index.Error)

	code := rows[3]
	assert.Equal(t, "site/site.goweft", code.Source)
	assert.Equal(t, "code", code.Engine)
	assert.Equal(t, []string{"dist/site/site.go"}, code.Outputs)
	assert.Contains(t, code.Variables, "app-name")
	assert.Empty(t, code.Error)

	sheet := rows[4]
	assert.Equal(t, "styles.scss", sheet.Source)
	assert.Equal(t, "sass", sheet.Engine)
	assert.Equal(t, []string{"dist/styles.css"}, sheet.Outputs)
	assert.Equal(t, []string{"(default)"}, sheet.Profiles)
	assert.Empty(t, sheet.Error, "listing a sheet must not require the compiler")
}

func TestListRowsWithReferences(t *testing.T) {
	root := t.TempDir()

	writeTestFile(t, filepath.Join(root, "index.weft"),
		"<!--@ include _partials/header.weft @-->\n<main>$$title$$</main>\n<!--$ <Data><Variable Name=\"title\">Home</Variable></Data> $-->\n")
	writeTestFile(t, filepath.Join(root, "_partials", "header.weft"),
		"<!--@ partial @-->\n<header>Site</header>\n")

	p := newTestProject(t, root)

	rows, err := listRows(context.Background(), p, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "_partials/header.weft", rows[0].Source)
	assert.Empty(t, rows[0].References)

	assert.Equal(t, "index.weft", rows[1].Source)
	assert.Equal(t, []string{"_partials/header.weft"}, rows[1].References)
}

func TestListRowsReportsBrokenSource(t *testing.T) {
	root := t.TempDir()

	// The token has no matching variable, so processing fails.
	writeTestFile(t, filepath.Join(root, "index.weft"),
		"<h1>$$missing$$</h1>\n")

	p := newTestProject(t, root)

	rows, err := listRows(context.Background(), p, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "index.weft", rows[0].Source)
	assert.NotEmpty(t, rows[0].Error)
}

func sampleRows() []listRow {
	return []listRow{
		{
			Source:    "index.weft",
			Engine:    "page",
			Outputs:   []string{"dist/index.html"},
			Profiles:  []string{"(default)"},
			Variables: []string{"title", "author"},
		},
		{
			Source:  "_partials/header.weft",
			Engine:  "page",
			Partial: true,
		},
		{
			Source: "broken.weft",
			Engine: "page",
			Error:  "unresolved token",
		},
	}
}

func TestRenderListTable(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderList(&buf, sampleRows(), "table", false))

	out := buf.String()
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "VARS")
	assert.Contains(t, out, "index.weft")
	assert.Contains(t, out, "dist/index.html")
	assert.Contains(t, out, "(partial)")
	assert.Contains(t, out, "error: unresolved token")
	assert.Contains(t, out, "Total: 3 source(s)")
	assert.NotContains(t, out, "title", "variable names stay hidden without --with-vars")
}

func TestRenderListTableWithVars(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderList(&buf, sampleRows(), "table", true))

	out := buf.String()
	assert.Contains(t, out, "VARIABLES")
	assert.Contains(t, out, "title, author")
}

func TestRenderListTableEmpty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderList(&buf, nil, "table", false))

	assert.Contains(t, buf.String(), "no sources found")
}

func TestRenderListJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderList(&buf, sampleRows(), "json", false))

	var decoded []listRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "index.weft", decoded[0].Source)
	assert.Equal(t, []string{"title", "author"}, decoded[0].Variables)
	assert.True(t, decoded[1].Partial)
	assert.Equal(t, "unresolved token", decoded[2].Error)
}

func TestRenderListYAML(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderList(&buf, sampleRows(), "yaml", false))

	out := buf.String()
	assert.Contains(t, out, "- source: index.weft")
	assert.Contains(t, out, "engine: page")
	assert.Contains(t, out, "partial: true")
	assert.Contains(t, out, "error: unresolved token")
}

func TestProfileNames(t *testing.T) {
	assert.Equal(t, []string{"(default)", "print"}, profileNames([]string{"", "print"}))
	assert.Empty(t, profileNames(nil))
}

func TestRelTo(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "project")

	assert.Equal(t, "site/index.weft", relTo(root, filepath.Join(root, "site", "index.weft")))
	assert.Equal(t, "index.weft", relTo(root, filepath.Join(root, "index.weft")))

	outside := filepath.Join(string(filepath.Separator), "elsewhere", "file.txt")
	assert.Equal(t, outside, relTo(root, outside))
}
