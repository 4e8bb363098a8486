// Package safeurl vets URLs taken from user configuration before any
// component fetches them: playlist URLs on event groups and the manager
// base URL.
package safeurl

import "net/url"

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Rejects file://, ftp://, and other schemes that could reach local files.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}
