package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/types"
)

func TestIsReserved(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"builtin date", "weft.date", true},
		{"uppercase prefix", "WEFT.Anything", true},
		{"surrounding space", "  weft.date  ", true},
		{"bare prefix word", "weft", false},
		{"no dot", "weftdate", false},
		{"ordinary name", "Title", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReserved(tt.in))
		})
	}
}

func TestBuiltinsResolve(t *testing.T) {
	b := NewBuiltins("/proj")
	b.Now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 9, 2, 0, time.UTC)
	}
	file := &types.SourceFile{Path: "/proj/pages/index.weft"}

	t.Run("date with default layout", func(t *testing.T) {
		got, err := b.Resolve("weft.date", file)

		require.NoError(t, err)
		assert.Equal(t, "2026-03-14", got)
	})

	t.Run("date with explicit layout", func(t *testing.T) {
		got, err := b.Resolve("weft.date(Jan 2 2006)", file)

		require.NoError(t, err)
		assert.Equal(t, "Mar 14 2026", got)
	})

	t.Run("date with empty layout falls back", func(t *testing.T) {
		got, err := b.Resolve("weft.date()", file)

		require.NoError(t, err)
		assert.Equal(t, "2026-03-14", got)
	})

	t.Run("base name is case-insensitive", func(t *testing.T) {
		got, err := b.Resolve("WEFT.Date(2006)", file)

		require.NoError(t, err)
		assert.Equal(t, "2026", got)
	})

	t.Run("projectpath", func(t *testing.T) {
		got, err := b.Resolve("weft.projectpath", file)

		require.NoError(t, err)
		assert.Equal(t, "/proj", got)
	})

	t.Run("projectpath rejects an argument", func(t *testing.T) {
		_, err := b.Resolve("weft.projectpath(x)", file)

		assert.Error(t, err)
	})

	t.Run("filepath", func(t *testing.T) {
		got, err := b.Resolve("weft.filepath", file)

		require.NoError(t, err)
		assert.Equal(t, "/proj/pages/index.weft", got)
	})

	t.Run("unknown reserved name", func(t *testing.T) {
		_, err := b.Resolve("weft.nope", file)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "weft.nope")
	})

	t.Run("unterminated argument list", func(t *testing.T) {
		_, err := b.Resolve("weft.date(2006", file)

		assert.Error(t, err)
	})
}
