// Package types provides common type definitions used throughout the weft
// preprocessor. This package contains shared types to avoid circular
// dependencies between packages.
package types

import (
	"errors"
	"strings"
)

// SourceFile represents one source file for the duration of a single
// processing pass. It is created by an engine when the file is processed and
// discarded afterwards; nothing in it is persisted between passes.
type SourceFile struct {
	// Path is the absolute path of the source file
	Path string
	// Contents is the working text buffer; phases mutate it in place
	Contents string
	// Partial marks a file that never produces its own outputs and is only
	// consumed through include directives
	Partial bool
	// Outputs holds every destination produced from this file; a non-partial
	// file always has at least one after output discovery
	Outputs []*OutputTarget
	// Err records the processing failure for this file, nil on success.
	// Save failures are joined onto it without discarding earlier errors.
	Err error
}

// Failed reports whether processing of this file produced an error.
func (f *SourceFile) Failed() bool {
	return f.Err != nil
}

// AddError attaches an error to the file result, joining it with any error
// already recorded.
func (f *SourceFile) AddError(err error) {
	if err == nil {
		return
	}
	f.Err = errors.Join(f.Err, err)
}

// OutputTarget is one concrete destination file derived from a source file,
// together with its own profile and variable context. A source file can
// declare several targets with distinct paths and/or profiles.
type OutputTarget struct {
	// Path is the absolute destination path
	Path string
	// Profile selects conditional content for this target; empty means the
	// default, unconditional profile
	Profile string
	// Contents is the evolving text buffer for this specific target
	Contents string
	// Compiled is the final text after variable substitution; cleared when
	// substitution fails so a partially substituted file is never written
	Compiled string
	// Variables holds the records extracted from data blocks for this target
	Variables []Variable
	// Err records the first processing failure for this target; a failed
	// target is never saved
	Err error
}

// Fail marks the target failed, keeps the first error, and clears Compiled
// so partial text cannot reach disk.
func (t *OutputTarget) Fail(err error) {
	if t.Err == nil {
		t.Err = err
	}
	t.Compiled = ""
}

// Variable is one name/value record parsed from an embedded data block. It
// lives only while its OutputTarget is being processed.
type Variable struct {
	// Name is the substitution token name, required and non-empty
	Name string
	// Value is the replacement text, possibly multi-line
	Value string
	// Profile scopes the record to one profile; empty applies regardless of
	// the requested profile unless a profile-specific override exists
	Profile string
	// Group collects variables for code generation regions
	Group string
	// Type is the declared value type for code generation; empty means string
	Type string
	// Comment carries documentation attached to the declaration
	Comment string
}

// AddVariable appends a variable to the target, overwriting the value of an
// existing record with the same (name, profile) pair instead of duplicating
// it. Names and profiles compare case-insensitively.
func (t *OutputTarget) AddVariable(v Variable) {
	for i := range t.Variables {
		if strings.EqualFold(t.Variables[i].Name, v.Name) &&
			strings.EqualFold(t.Variables[i].Profile, v.Profile) {
			t.Variables[i] = v
			return
		}
	}
	t.Variables = append(t.Variables, v)
}

// LookupVariable resolves a name against the target's variable list. An
// exact (name, target-profile) match wins; when the target has a non-empty
// profile and no exact match exists, the record with no profile is used.
func (t *OutputTarget) LookupVariable(name string) (Variable, bool) {
	for _, v := range t.Variables {
		if strings.EqualFold(v.Name, name) && strings.EqualFold(v.Profile, t.Profile) {
			return v, true
		}
	}
	if t.Profile != "" {
		for _, v := range t.Variables {
			if strings.EqualFold(v.Name, name) && v.Profile == "" {
				return v, true
			}
		}
	}
	return Variable{}, false
}

// GroupVariables returns the variables belonging to the named group in
// declaration order. Group names compare case-insensitively.
func (t *OutputTarget) GroupVariables(group string) []Variable {
	var out []Variable
	for _, v := range t.Variables {
		if strings.EqualFold(v.Group, group) {
			out = append(out, v)
		}
	}
	return out
}
