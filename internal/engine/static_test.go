package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEngine_Match(t *testing.T) {
	e := NewStaticEngine(nil)

	assert.True(t, e.Match("images/photo.png"))
	assert.True(t, e.Match("robots.txt"))
	assert.True(t, e.Match("LICENSE"))
	assert.False(t, e.Match(".weft.yml"))
	assert.False(t, e.Match("blog/.weft-folder.yml"))
	assert.False(t, e.Match(".DS_Store"))
}

// TestStaticEngine_NoMirrorWithoutOverride checks that with no output
// directory the mirror destination equals the source, so nothing is emitted.
func TestStaticEngine_NoMirrorWithoutOverride(t *testing.T) {
	root := t.TempDir()
	path := writeSource(t, root, "logo.svg", "<svg/>")

	p := newTestProcessor(t, sourceConfig(root))
	file := NewStaticEngine(p).Process(context.Background(), path)

	require.NoError(t, file.Err)
	assert.Empty(t, file.Outputs)
}

// TestStaticEngine_MirrorsIntoOutputDir checks the copy: same bytes, same
// relative location under the output directory.
func TestStaticEngine_MirrorsIntoOutputDir(t *testing.T) {
	root := t.TempDir()
	path := writeSource(t, root, filepath.Join("assets", "logo.svg"), "<svg/>")

	cfg := sourceConfig(root)
	cfg.Output.Dir = "dist"
	p := newTestProcessor(t, cfg)

	file := NewStaticEngine(p).Process(context.Background(), path)

	require.NoError(t, file.Err)
	require.Len(t, file.Outputs, 1)

	target := file.Outputs[0]
	assert.Equal(t, filepath.Join(root, "dist", "assets", "logo.svg"), target.Path)
	assert.Equal(t, "<svg/>", target.Compiled)
}

func TestStaticEngine_References(t *testing.T) {
	assert.Nil(t, NewStaticEngine(nil).References("a.png", "anything"))
}
