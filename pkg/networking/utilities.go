package networking

import (
	"net/url"
	"strings"
)

// IsURL reports whether the input is an absolute http or https URL.
func IsURL(input string) bool {
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	return parsed.Host != ""
}

// IsLocalhost reports whether a host (with optional port) refers to the
// local machine.
func IsLocalhost(host string) bool {
	for _, prefix := range []string{"localhost", "127.0.0.1", "[::1]"} {
		if host == prefix || strings.HasPrefix(host, prefix+":") {
			return true
		}
	}
	return false
}
