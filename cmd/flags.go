package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// listFormats are the renderings the list command supports.
var listFormats = []string{"table", "json", "yaml"}

// outputFormat is a pflag.Value that only accepts known format names, so an
// unsupported --format fails at flag parsing with the alternatives spelled
// out instead of surfacing later as an empty report.
type outputFormat struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*outputFormat)(nil)

func newOutputFormat(def string, allowed []string) *outputFormat {
	return &outputFormat{value: def, allowed: allowed}
}

func (f *outputFormat) String() string {
	return f.value
}

func (f *outputFormat) Set(val string) error {
	val = strings.ToLower(strings.TrimSpace(val))
	for _, a := range f.allowed {
		if val == a {
			f.value = val
			return nil
		}
	}

	return fmt.Errorf("unsupported format %q, expected one of: %s", val, strings.Join(f.allowed, ", "))
}

func (f *outputFormat) Type() string {
	return "format"
}
