// Package validation vets every value weft hands to the operating system or
// the browser: the sass binary and its arguments, paths taken from
// configuration, and the URLs and origins the development server works with.
// Checks are allowlist-first; a value with an unexpected shape is rejected,
// never escaped.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// shellMeta holds the characters that change the meaning of a command line
// once a value reaches a shell or an argv.
const shellMeta = ";&|$`()<>\\\"'"

// systemBinaryPrefixes are the only absolute locations accepted in
// subprocess arguments.
var systemBinaryPrefixes = []string{"/usr/bin/", "/bin/"}

// restrictedPathPrefixes are system locations a preprocessor has no business
// reading regardless of what the configuration says.
var restrictedPathPrefixes = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/proc/",
	"/sys/",
	"/dev/",
	"/root/",
	"/boot/",
}

// ValidateArgument vets one subprocess argument. Shell metacharacters and
// traversal sequences are rejected outright; absolute paths are accepted
// only under the system binary directories.
func ValidateArgument(arg string) error {
	if idx := strings.IndexAny(arg, shellMeta); idx >= 0 {
		return fmt.Errorf("contains dangerous character: %s", string(arg[idx]))
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	if filepath.IsAbs(arg) && !hasAnyPrefix(arg, systemBinaryPrefixes) {
		return fmt.Errorf("absolute path not allowed: %s", arg)
	}

	return nil
}

// ValidateCommand vets a command name against the caller's allowlist, then
// applies the argument rules to the name itself so an allowlisted name
// cannot smuggle metacharacters.
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if !allowedCommands[command] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidatePath vets a user-supplied path: no traversal once cleaned, no
// restricted system locations, no shell metacharacters. Parentheses and
// quotes stay legal because they appear in real file names.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	if hasAnyPrefix(strings.ToLower(cleaned), restrictedPathPrefixes) {
		return fmt.Errorf("access to restricted path denied: %s", path)
	}

	if idx := strings.IndexAny(path, ";&|$`<>"); idx >= 0 {
		return fmt.Errorf("path contains dangerous character: %s", string(path[idx]))
	}

	return nil
}

// ValidateOrigin vets a websocket Origin header against the allowed list. A
// missing header is rejected: browsers always send one, so its absence means
// the request did not come from a page this server served.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", parsed.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || parsed.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// SanitizeInput strips null bytes and control characters from interactive
// input, keeping ordinary whitespace. The filter works on bytes: control
// characters are single bytes, so multi-byte sequences pass through intact.
func SanitizeInput(input string) string {
	var out strings.Builder
	out.Grow(len(input))
	for i := 0; i < len(input); i++ {
		b := input[i]
		if b >= 32 || b == '\t' || b == '\n' || b == '\r' {
			out.WriteByte(b)
		}
	}

	return out.String()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
