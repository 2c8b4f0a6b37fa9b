package gate

import "strings"

// Exclusion prefixes: infrastructure endpoints the gate never touches.
// They must stay reachable while every backing store is down.
var excludedPrefixes = []string{
	"/healthz",
	"/metrics",
	"/static",
	"/favicon.ico",
}

// Excluded reports whether the gate should pass the request through
// untouched, with no session work and no tenant lookup.
func Excluded(path string) bool {
	for _, prefix := range excludedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Protected reports whether anonymous access to the path must redirect to
// the login page. Dashboard pages at any nesting depth and the API surface
// are protected; auth endpoints themselves are not, or nobody could ever
// log in.
func Protected(path string) bool {
	if strings.HasPrefix(path, "/api/auth/") {
		return false
	}
	if strings.HasPrefix(path, "/api/") {
		return true
	}
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "dashboard" {
			return true
		}
	}
	return false
}
