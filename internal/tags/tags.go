// Package tags implements the comment tag grammars recognized inside source
// files and the buffer rewriting primitives built on them.
//
// Three tag families exist. Directive tags drive processing:
//
//	<!--@ keyword argument @-->
//
// Data tags embed an XML variable block:
//
//	<!--$ <Variable>...</Variable> $-->
//
// Secondary tags mark engine-specific regions inside generated code:
//
//	<!--# keyword argument #-->
//
// Substitution tokens are not tags but share the scanning machinery:
//
//	$$name$$
//
// Tags are processed one at a time. A caller locates the first match,
// rewrites the buffer, and scans again from the top, so content spliced into
// the buffer is itself visible to the next scan.
package tags

import (
	"regexp"
	"strings"
)

var (
	directivePattern = regexp.MustCompile(`(?s)<!--@\s*(\w+)(.*?)@-->`)
	dataPattern      = regexp.MustCompile(`(?s)<!--\$(.*?)\$-->`)
	secondaryPattern = regexp.MustCompile(`(?s)<!--#\s*(\w+)(.*?)#-->`)
	tokenPattern     = regexp.MustCompile(`\$\$([^$\r\n]+?)\$\$`)
)

// Grammar is one compiled tag family.
type Grammar struct {
	name       string
	opener     string
	pattern    *regexp.Regexp
	hasKeyword bool
}

var (
	// Directive matches processing directives: <!--@ keyword arg @-->
	Directive = &Grammar{
		name:       "directive",
		opener:     "<!--@",
		pattern:    directivePattern,
		hasKeyword: true,
	}
	// Data matches embedded variable blocks: <!--$ xml $-->
	Data = &Grammar{
		name:       "data",
		opener:     "<!--$",
		pattern:    dataPattern,
		hasKeyword: false,
	}
	// Secondary matches engine region markers: <!--# keyword arg #-->
	Secondary = &Grammar{
		name:       "secondary",
		opener:     "<!--#",
		pattern:    secondaryPattern,
		hasKeyword: true,
	}
)

// Name returns the grammar's name for error reporting.
func (g *Grammar) Name() string {
	return g.name
}

// Match is one located tag occurrence.
type Match struct {
	// Keyword is the directive keyword, lowercased. Empty for data tags.
	Keyword string
	// Arg is the raw argument text between keyword and closer, untrimmed.
	Arg string
	// Start is the byte offset of the tag opener.
	Start int
	// End is the byte offset just past the tag closer.
	End int
}

// Raw returns the full tag text of the match within buf.
func (m Match) Raw(buf string) string {
	return buf[m.Start:m.End]
}

// First returns the first tag of this grammar in buf.
func (g *Grammar) First(buf string) (Match, bool) {
	idx := g.pattern.FindStringSubmatchIndex(buf)
	if idx == nil {
		return Match{}, false
	}

	return g.toMatch(buf, idx), true
}

// All returns every tag of this grammar in buf, in document order. The
// buffer is not modified; All is for read-only discovery scans.
func (g *Grammar) All(buf string) []Match {
	idxs := g.pattern.FindAllStringSubmatchIndex(buf, -1)
	if idxs == nil {
		return nil
	}

	matches := make([]Match, 0, len(idxs))
	for _, idx := range idxs {
		matches = append(matches, g.toMatch(buf, idx))
	}

	return matches
}

func (g *Grammar) toMatch(buf string, idx []int) Match {
	m := Match{Start: idx[0], End: idx[1]}
	if g.hasKeyword {
		m.Keyword = strings.ToLower(buf[idx[2]:idx[3]])
		m.Arg = buf[idx[4]:idx[5]]
	} else {
		m.Arg = buf[idx[2]:idx[3]]
	}

	return m
}

// Malformed reports the offset of the first tag opener that does not begin a
// well-formed tag of this grammar. A stray opener means the closer was lost
// or mistyped, and processing the file would silently leave the tag text in
// the output, so callers treat it as an error.
func (g *Grammar) Malformed(buf string) (int, bool) {
	matches := g.All(buf)

	from := 0
	for {
		rel := strings.Index(buf[from:], g.opener)
		if rel < 0 {
			return 0, false
		}
		at := from + rel

		if !coveredBy(matches, at) {
			return at, true
		}

		from = at + len(g.opener)
	}
}

// coveredBy reports whether the offset falls inside any matched tag,
// including an opener that begins one.
func coveredBy(matches []Match, at int) bool {
	for _, m := range matches {
		if at >= m.Start && at < m.End {
			return true
		}
	}

	return false
}

// Replace splices repl into buf in place of the matched tag. When
// dropNewline is true, one newline immediately following the tag is consumed
// as well, so a tag alone on its line vanishes without leaving a blank line.
// A "\r\n" pair counts as one newline.
func Replace(buf string, m Match, repl string, dropNewline bool) string {
	end := m.End
	if dropNewline {
		end = consumeNewline(buf, end)
	}

	return buf[:m.Start] + repl + buf[end:]
}

func consumeNewline(buf string, at int) int {
	if at < len(buf) && buf[at] == '\r' {
		at++
	}
	if at < len(buf) && buf[at] == '\n' {
		at++
	}

	return at
}

// Token is one substitution token occurrence: $$name$$.
type Token struct {
	// Name is the token text between the delimiters, untrimmed.
	Name string
	// Start is the byte offset of the leading delimiter.
	Start int
	// End is the byte offset just past the trailing delimiter.
	End int
}

// FirstToken returns the first substitution token in buf.
func FirstToken(buf string) (Token, bool) {
	idx := tokenPattern.FindStringSubmatchIndex(buf)
	if idx == nil {
		return Token{}, false
	}

	return Token{
		Name:  buf[idx[2]:idx[3]],
		Start: idx[0],
		End:   idx[1],
	}, true
}

// ReplaceToken splices repl into buf in place of the token. Tokens never
// consume trailing newlines; their replacement is inline text.
func ReplaceToken(buf string, t Token, repl string) string {
	return buf[:t.Start] + repl + buf[t.End:]
}

// LineAt returns the 1-based line and column of a byte offset in buf, for
// error reporting.
func LineAt(buf string, offset int) (line, col int) {
	if offset > len(buf) {
		offset = len(buf)
	}

	line = 1
	col = 1
	for _, b := range []byte(buf[:offset]) {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return line, col
}
