package engine

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/tags"
	"github.com/weft-dev/weft/internal/types"
)

// CodeEngine generates Go source from .goweft files. On top of the directive
// pipeline it expands the secondary properties tag into a generated constant
// block, so string tables and tunables declared in a data block surface as
// ordinary Go identifiers.
type CodeEngine struct {
	processor *Processor
	titler    cases.Caser
}

// NewCodeEngine creates the code engine on top of a shared processor.
func NewCodeEngine(p *Processor) *CodeEngine {
	return &CodeEngine{
		processor: p,
		titler:    cases.Title(language.English),
	}
}

func (e *CodeEngine) Name() string {
	return "code"
}

func (e *CodeEngine) Match(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".goweft")
}

func (e *CodeEngine) OutputExt() string {
	return ".go"
}

func (e *CodeEngine) Process(ctx context.Context, path string) *types.SourceFile {
	return e.processor.Process(ctx, path, e.OutputExt(), e.expandRegions)
}

func (e *CodeEngine) References(path, contents string) []string {
	return directiveReferences(path, contents)
}

// expandRegions rewrites every secondary tag in the target buffer. Only the
// properties keyword exists; anything else fails the file.
func (e *CodeEngine) expandRegions(file *types.SourceFile, target *types.OutputTarget) error {
	for {
		m, ok := tags.Secondary.First(target.Contents)
		if !ok {
			break
		}

		if m.Keyword != "properties" {
			line, col := tags.LineAt(target.Contents, m.Start)
			return errors.ErrUnknownDirective(m.Keyword).WithLocation(file.Path, line, col)
		}

		group, ok := propertiesGroup(m.Arg)
		if !ok {
			line, col := tags.LineAt(target.Contents, m.Start)
			return errors.ErrMissingArgument("properties group=NAME").WithLocation(file.Path, line, col)
		}

		region := e.renderProperties(target, group, lineIndent(target.Contents, m.Start))
		target.Contents = tags.Replace(target.Contents, m, region, false)
	}

	if off, bad := tags.Secondary.Malformed(target.Contents); bad {
		line, col := tags.LineAt(target.Contents, off)
		return errors.NewParseError(errors.ErrCodeMalformedTag, "unterminated secondary tag").
			WithLocation(file.Path, line, col)
	}

	return nil
}

// propertiesGroup extracts the group=NAME argument of a properties tag.
func propertiesGroup(arg string) (string, bool) {
	for _, field := range strings.Fields(arg) {
		if name, ok := strings.CutPrefix(field, "group="); ok && name != "" {
			return strings.Trim(name, `"'`), true
		}
	}

	return "", false
}

// renderProperties generates the constant block for a group, one declaration
// per variable in declaration order. A name redeclared across profiles keeps
// its first declaration. Every line after the first carries the tag line's
// indentation so the block sits where the tag sat.
func (e *CodeEngine) renderProperties(target *types.OutputTarget, group, indent string) string {
	vars := target.GroupVariables(group)
	if len(vars) == 0 {
		return "// no properties declared in group " + group
	}

	lines := []string{
		"// " + group + " properties, generated from the source data block.",
		"const (",
	}

	declared := map[string]bool{}
	for _, v := range vars {
		key := strings.ToLower(v.Name)
		if declared[key] {
			continue
		}
		declared[key] = true

		ident := e.identifier(v.Name)
		if v.Comment != "" {
			lines = append(lines, "\t// "+ident+": "+v.Comment)
		}
		lines = append(lines, "\t"+ident+" = "+propertyLiteral(v))
	}

	lines = append(lines, ")")

	return strings.Join(lines, "\n"+indent)
}

// propertyLiteral renders a variable's value as a Go literal: quoted for
// string-typed (or untyped) variables, bare otherwise.
func propertyLiteral(v types.Variable) string {
	if v.Type == "" || v.Type == "string" {
		return strconv.Quote(v.Value)
	}

	return v.Value
}

// identifier derives an exported Go identifier from a variable name:
// non-alphanumeric runs split words, each word is title-cased, and a name
// that would start with a digit gets a V prefix.
func (e *CodeEngine) identifier(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, w := range words {
		b.WriteString(e.titler.String(strings.ToLower(w)))
	}

	ident := b.String()
	if ident == "" || unicode.IsDigit(rune(ident[0])) {
		ident = "V" + ident
	}

	return ident
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(buf string, offset int) string {
	start := strings.LastIndexByte(buf[:offset], '\n') + 1

	end := start
	for end < len(buf) && (buf[end] == ' ' || buf[end] == '\t') {
		end++
	}

	return buf[start:end]
}
