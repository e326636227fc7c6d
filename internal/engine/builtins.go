package engine

import (
	"strings"
	"time"

	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/types"
)

// ReservedPrefix marks substitution tokens resolved by weft itself. Data
// blocks may not declare variables under it.
const ReservedPrefix = "weft."

// defaultDateLayout is used by $$weft.date$$ when no layout is given.
const defaultDateLayout = "2006-01-02"

// Builtins resolves reserved substitution tokens.
type Builtins struct {
	// Root is the absolute source root, the value of weft.projectpath.
	Root string
	// Now supplies the clock for weft.date. Tests pin it.
	Now func() time.Time
}

// NewBuiltins creates the reserved token resolver for the given source root.
func NewBuiltins(root string) *Builtins {
	return &Builtins{
		Root: root,
		Now:  time.Now,
	}
}

// IsReserved reports whether a token name belongs to the reserved namespace.
// The check is case-insensitive like all name matching.
func IsReserved(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < len(ReservedPrefix) {
		return false
	}

	return strings.EqualFold(name[:len(ReservedPrefix)], ReservedPrefix)
}

// Resolve returns the replacement text for a reserved token. Reserved names
// never fall through to user variables; an unknown one is an error.
func (b *Builtins) Resolve(name string, file *types.SourceFile) (string, error) {
	trimmed := strings.TrimSpace(name)

	base := trimmed
	arg := ""
	hasArg := false
	if open := strings.Index(trimmed, "("); open >= 0 {
		if !strings.HasSuffix(trimmed, ")") {
			return "", errors.ErrUnresolvedVariable(name, "")
		}
		base = trimmed[:open]
		arg = trimmed[open+1 : len(trimmed)-1]
		hasArg = true
	}

	switch strings.ToLower(base) {
	case "weft.date":
		layout := arg
		if !hasArg || strings.TrimSpace(layout) == "" {
			layout = defaultDateLayout
		}
		return b.Now().Format(layout), nil

	case "weft.projectpath":
		if hasArg {
			return "", errors.ErrUnresolvedVariable(name, "")
		}
		return b.Root, nil

	case "weft.filepath":
		if hasArg {
			return "", errors.ErrUnresolvedVariable(name, "")
		}
		return file.Path, nil

	default:
		return "", errors.ErrUnresolvedVariable(name, "")
	}
}
