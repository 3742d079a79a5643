// Package exclude decides which modules must never be rewritten or patched.
package exclude

import "strings"

// HelperPrefix is the package of the patch tool's own runtime helpers.
const HelperPrefix = "com/demo/patch"

// platformMarker matches the platform runtime and its support libraries
// (android/..., androidx/..., and anything else carrying the name).
const platformMarker = "android"

// Policy matches logical paths ('/'-separated, e.g. "com/app/App.class").
type Policy struct {
	// AppPath is the application entry class as a path prefix; it is loaded
	// before any patch can be applied. Empty disables the rule.
	AppPath string
	// Prefixes are additional excluded path prefixes.
	Prefixes []string
}

// New returns the default policy for the fully qualified application class
// name (e.g. "com.app.App").
func New(applicationName string) *Policy {
	return &Policy{
		AppPath:  strings.ReplaceAll(applicationName, ".", "/"),
		Prefixes: []string{HelperPrefix},
	}
}

// Excluded reports whether path must be left alone.
func (p *Policy) Excluded(path string) bool {
	return p.Reason(path) != ""
}

// Reason names the rule that excludes path, or returns "" when none does.
func (p *Policy) Reason(path string) string {
	if p == nil {
		return ""
	}
	switch {
	case p.AppPath != "" && strings.HasPrefix(path, p.AppPath):
		return "application class"
	case strings.Contains(path, platformMarker):
		return "platform runtime"
	}
	for _, prefix := range p.Prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return "helper package " + prefix
		}
	}
	return ""
}
