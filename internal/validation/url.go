package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// urlMeta extends the shell metacharacter set with whitespace and line
// breaks: the URL is handed to a platform open command, so anything that
// could split or terminate that command line is refused.
const urlMeta = shellMeta + " \n\r"

// ValidateURL vets a URL before it reaches the platform browser-open
// command. Only plain http/https URLs with a hostname and no shell-relevant
// characters pass.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if idx := strings.IndexAny(rawURL, urlMeta); idx >= 0 {
		return fmt.Errorf("URL contains dangerous character: %q", rawURL[idx])
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
