package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/tags"
	"github.com/weft-dev/weft/internal/types"
)

// maxSubstitutions bounds the substitution rescan loop. A variable whose
// value contains its own token would otherwise rewrite forever.
const maxSubstitutions = 10000

// PostProcessFunc hooks engine-specific rewriting into the pipeline between
// data extraction and variable substitution.
type PostProcessFunc func(file *types.SourceFile, target *types.OutputTarget) error

// Processor runs the directive phase pipeline shared by the page and code
// engines: output discovery, main-tag processing, data extraction, the
// engine post-process hook, and variable substitution, in that order, never
// going back.
type Processor struct {
	root      string
	outputDir string
	profile   string
	builtins  *Builtins
	logger    logging.Logger
}

// NewProcessor creates a processor for the configured project. The source
// root and output directory are resolved to absolute paths once, up front.
func NewProcessor(cfg *config.Config, logger logging.Logger) (*Processor, error) {
	root, err := filepath.Abs(cfg.Source.Root)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot resolve source root: "+err.Error())
	}

	outputDir := ""
	if cfg.Output.Dir != "" {
		if filepath.IsAbs(cfg.Output.Dir) {
			outputDir = filepath.Clean(cfg.Output.Dir)
		} else {
			outputDir = filepath.Join(root, cfg.Output.Dir)
		}
	}

	return &Processor{
		root:      root,
		outputDir: outputDir,
		profile:   cfg.Output.Profile,
		builtins:  NewBuiltins(root),
		logger:    logger.WithComponent("engine"),
	}, nil
}

// Root returns the absolute source root.
func (p *Processor) Root() string {
	return p.root
}

// OutputDir returns the absolute project output directory, or "" when
// outputs stay beside their sources.
func (p *Processor) OutputDir() string {
	return p.outputDir
}

// Builtins returns the reserved token resolver, shared so tests can pin its
// clock.
func (p *Processor) Builtins() *Builtins {
	return p.builtins
}

// Process runs the full pipeline on one source file. The returned SourceFile
// is never nil. Processing stops at the first error, which is recorded on
// the file; a failed file writes no outputs.
func (p *Processor) Process(ctx context.Context, path, outputExt string, post PostProcessFunc) *types.SourceFile {
	abs := absPath(path)
	file := &types.SourceFile{Path: abs}

	contents, err := ReadSourceFile(ctx, abs)
	if err != nil {
		file.AddError(err)
		return file
	}
	file.Contents = contents

	if err := p.discoverOutputs(ctx, file, outputExt); err != nil {
		file.AddError(err)
		return file
	}

	if file.Partial {
		p.logger.Debug(ctx, "partial source, no outputs", "path", abs)
		return file
	}

	for _, target := range file.Outputs {
		if err := p.processTarget(ctx, file, target); err != nil {
			target.Fail(err)
			file.AddError(err)
			return file
		}
		if err := p.extractData(file, target); err != nil {
			target.Fail(err)
			file.AddError(err)
			return file
		}
		if post != nil {
			if err := post(file, target); err != nil {
				target.Fail(err)
				file.AddError(err)
				return file
			}
		}
		if err := p.substitute(file, target); err != nil {
			target.Fail(err)
			file.AddError(err)
			return file
		}
	}

	return file
}

// discoverOutputs scans the original buffer for partial and output
// directives and fills file.Outputs. Unknown keywords are ignored here; a
// later include can legitimately splice tags this phase has no business
// judging. A partial flag is honored only on the file's first tag so that
// spliced content can never mark its host partial.
func (p *Processor) discoverOutputs(ctx context.Context, file *types.SourceFile, outputExt string) error {
	buf := file.Contents

	if off, bad := tags.Directive.Malformed(buf); bad {
		line, col := tags.LineAt(buf, off)
		return errors.NewParseError(errors.ErrCodeMalformedTag, "unterminated directive tag").
			WithLocation(file.Path, line, col)
	}

	srcDir := filepath.Dir(file.Path)
	base, defaultProfile, err := p.resolveBase(srcDir)
	if err != nil {
		return err
	}

	for i, m := range tags.Directive.All(buf) {
		switch m.Keyword {
		case "partial":
			if i == 0 {
				file.Partial = true
				return nil
			}

		case "output":
			pathArg, profile := splitPathProfile(strings.TrimSpace(m.Arg))
			if pathArg == "" {
				line, col := tags.LineAt(buf, m.Start)
				return errors.ErrMissingArgument("output").WithLocation(file.Path, line, col)
			}
			if profile == "" {
				profile = defaultProfile
			}

			dest := filepath.FromSlash(pathArg)
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(base, dest)
			}
			if !within(p.root, dest) && (p.outputDir == "" || !within(p.outputDir, dest)) {
				logging.LogSecurityEvent(p.logger, ctx, "output outside project tree", map[string]interface{}{
					"source": file.Path,
					"output": dest,
				})
			}

			file.Outputs = append(file.Outputs, &types.OutputTarget{Path: dest, Profile: profile})
		}
	}

	if len(file.Outputs) == 0 {
		name := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path)) + outputExt
		file.Outputs = append(file.Outputs, &types.OutputTarget{
			Path:    filepath.Join(base, name),
			Profile: defaultProfile,
		})
	}

	return nil
}

// DefaultOutput synthesizes the target a source file gets when it declares
// no output directive: same base name, the engine's output extension, under
// the resolved output base, carrying the folder or project default profile.
// The sass engine uses this directly since its sources carry no directives.
func (p *Processor) DefaultOutput(path, outputExt string) (*types.OutputTarget, error) {
	abs := absPath(path)

	base, profile, err := p.resolveBase(filepath.Dir(abs))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)) + outputExt

	return &types.OutputTarget{Path: filepath.Join(base, name), Profile: profile}, nil
}

// resolveBase determines the directory outputs of sources in srcDir resolve
// against, and the profile applied to outputs that declare none. A folder
// settings override wins over the project output directory, which wins over
// the source's own directory. Overrides preserve the tree structure below
// the point they apply to.
func (p *Processor) resolveBase(srcDir string) (base, profile string, err error) {
	settings, settingsDir, err := config.FindFolderSettings(srcDir, p.root)
	if err != nil {
		return "", "", errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
	}

	profile = p.profile
	if settings != nil && settings.Profile != "" {
		profile = settings.Profile
	}

	if settings != nil && settings.Output != "" {
		base = filepath.FromSlash(settings.Output)
		if !filepath.IsAbs(base) {
			base = filepath.Join(settingsDir, base)
		}
		if sub, relErr := filepath.Rel(settingsDir, srcDir); relErr == nil && sub != "." && !strings.HasPrefix(sub, "..") {
			base = filepath.Join(base, sub)
		}
		return base, profile, nil
	}

	if p.outputDir != "" {
		base = p.outputDir
		if sub, relErr := filepath.Rel(p.root, srcDir); relErr == nil && sub != "." && !strings.HasPrefix(sub, "..") {
			base = filepath.Join(base, sub)
		}
		return base, profile, nil
	}

	return srcDir, profile, nil
}

// processTarget runs the main-tag phase: one directive at a time, first
// match wins, rescan from the top after every rewrite so spliced include
// content is itself processed. Unknown keywords are hard errors here, the
// counterpart of discovery's leniency.
func (p *Processor) processTarget(ctx context.Context, file *types.SourceFile, target *types.OutputTarget) error {
	target.Contents = file.Contents
	srcDir := filepath.Dir(file.Path)
	seen := map[string]bool{}

	for {
		m, ok := tags.Directive.First(target.Contents)
		if !ok {
			break
		}

		switch m.Keyword {
		case "partial", "output":
			target.Contents = tags.Replace(target.Contents, m, "", true)

		case "include":
			if err := p.applyInclude(ctx, file, target, m, srcDir, seen); err != nil {
				return err
			}

		case "inline":
			applyInline(target, m)

		default:
			line, col := tags.LineAt(target.Contents, m.Start)
			return errors.ErrUnknownDirective(m.Keyword).WithLocation(file.Path, line, col)
		}
	}

	if off, bad := tags.Directive.Malformed(target.Contents); bad {
		line, col := tags.LineAt(target.Contents, off)
		return errors.NewParseError(errors.ErrCodeMalformedTag, "unterminated directive tag").
			WithLocation(file.Path, line, col)
	}

	return nil
}

// applyInclude resolves one include directive against the target's profile.
// A gated-off include is stripped with its line; an applied one splices the
// included file's text verbatim in place of the tag.
func (p *Processor) applyInclude(ctx context.Context, file *types.SourceFile, target *types.OutputTarget, m tags.Match, srcDir string, seen map[string]bool) error {
	pathArg, gate := splitPathProfile(strings.TrimSpace(m.Arg))
	if pathArg == "" {
		line, col := tags.LineAt(target.Contents, m.Start)
		return errors.ErrMissingArgument("include").WithLocation(file.Path, line, col)
	}

	if !profileApplies(gate, target.Profile) {
		target.Contents = tags.Replace(target.Contents, m, "", true)
		return nil
	}

	key := strings.ToLower(pathArg)
	if seen[key] {
		line, col := tags.LineAt(target.Contents, m.Start)
		return errors.ErrCircularReference(pathArg).WithLocation(file.Path, line, col)
	}
	seen[key] = true

	resolved := filepath.FromSlash(pathArg)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(srcDir, resolved)
	}
	if !within(p.root, resolved) {
		logging.LogSecurityEvent(p.logger, ctx, "include outside source root", map[string]interface{}{
			"source":  file.Path,
			"include": pathArg,
		})
	}

	included, err := ReadSourceFile(ctx, resolved)
	if err != nil {
		line, col := tags.LineAt(target.Contents, m.Start)
		return errors.ErrFileNotFound(pathArg, err).WithLocation(file.Path, line, col)
	}

	p.logger.Debug(ctx, "include applied", "source", file.Path, "include", resolved, "profile", target.Profile)
	target.Contents = tags.Replace(target.Contents, m, included, false)

	return nil
}

// applyInline rewrites one inline directive. The argument is an optional
// leading ":profile" token followed by the literal content.
func applyInline(target *types.OutputTarget, m tags.Match) {
	arg := strings.TrimSpace(m.Arg)

	gate := ""
	content := arg
	if strings.HasPrefix(arg, ":") {
		rest := arg[1:]
		if cut := strings.IndexAny(rest, " \t\r\n"); cut >= 0 {
			gate, content = rest[:cut], strings.TrimSpace(rest[cut+1:])
		} else {
			gate, content = rest, ""
		}
	}

	if !profileApplies(gate, target.Profile) {
		target.Contents = tags.Replace(target.Contents, m, "", true)
		return
	}

	target.Contents = tags.Replace(target.Contents, m, content, false)
}

// extractData pulls every data block out of the target buffer into its
// variable list. Blocks are stripped with their line whether or not they
// parse; a parse failure fails the file naming the offending block.
func (p *Processor) extractData(file *types.SourceFile, target *types.OutputTarget) error {
	for {
		m, ok := tags.Data.First(target.Contents)
		if !ok {
			break
		}

		vars, err := ExtractVariables(m.Arg)
		if err != nil {
			if we, ok := err.(*errors.WeftError); ok {
				line, col := tags.LineAt(target.Contents, m.Start)
				we.WithLocation(file.Path, line, col)
			}
			return err
		}

		for _, v := range vars {
			target.AddVariable(v)
		}

		target.Contents = tags.Replace(target.Contents, m, "", true)
	}

	if off, bad := tags.Data.Malformed(target.Contents); bad {
		line, col := tags.LineAt(target.Contents, off)
		return errors.NewParseError(errors.ErrCodeMalformedTag, "unterminated data tag").
			WithLocation(file.Path, line, col)
	}

	return nil
}

// substitute rewrites variable tokens until none remain, then publishes the
// buffer as the target's compiled text. Replacement values are rescanned,
// so a value may itself use other variables.
func (p *Processor) substitute(file *types.SourceFile, target *types.OutputTarget) error {
	buf := target.Contents

	for count := 0; ; count++ {
		if count >= maxSubstitutions {
			return errors.NewInternalError(errors.ErrCodeInternalError,
				fmt.Sprintf("variable substitution did not settle after %d rewrites", maxSubstitutions), nil).
				WithFile(file.Path)
		}

		tok, ok := tags.FirstToken(buf)
		if !ok {
			break
		}

		name := strings.TrimSpace(tok.Name)

		var repl string
		if IsReserved(name) {
			r, err := p.builtins.Resolve(name, file)
			if err != nil {
				if we, ok := err.(*errors.WeftError); ok {
					line, col := tags.LineAt(buf, tok.Start)
					we.WithLocation(file.Path, line, col)
				}
				return err
			}
			repl = r
		} else {
			v, found := target.LookupVariable(name)
			if !found {
				line, col := tags.LineAt(buf, tok.Start)
				return errors.ErrUnresolvedVariable(name, target.Profile).WithLocation(file.Path, line, col)
			}
			repl = v.Value
		}

		buf = tags.ReplaceToken(buf, tok, repl)
	}

	target.Compiled = buf

	return nil
}

// splitPathProfile splits a directive argument of the form path[:profile].
// Only the last colon can begin a profile, and a suffix containing a path
// separator is part of the path, which keeps Windows drive letters and
// colons inside directory names intact.
func splitPathProfile(arg string) (string, string) {
	idx := strings.LastIndex(arg, ":")
	if idx < 0 {
		return arg, ""
	}

	suffix := arg[idx+1:]
	if strings.ContainsAny(suffix, `/\`) {
		return arg, ""
	}

	return strings.TrimSpace(arg[:idx]), strings.TrimSpace(suffix)
}

// profileApplies implements the gate law shared by include and inline: an
// empty gate always applies, "!" applies only to the default no-profile
// target, and anything else must equal the target's profile
// case-insensitively.
func profileApplies(gate, profile string) bool {
	switch gate {
	case "":
		return true
	case "!":
		return profile == ""
	default:
		return strings.EqualFold(gate, profile)
	}
}

// within reports whether path lies inside base once both are absolute.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}
