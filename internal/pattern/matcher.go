// Package pattern compiles the user's search expression and decides which
// textual view of a key candidate it is tested against.
package pattern

import (
	"fmt"
	"regexp"
)

// Target selects the representation of a candidate that is matched.
type Target int

const (
	// TargetPublicKey matches against "ssh-ed25519 <base64>".
	TargetPublicKey Target = iota
	// TargetFingerprint matches against the rendered SHA256 fingerprint.
	TargetFingerprint
)

// String returns the name used in flags and config files.
func (t Target) String() string {
	switch t {
	case TargetPublicKey:
		return "public-key"
	case TargetFingerprint:
		return "fingerprint"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// TargetFor maps the fingerprint flag to a Target.
func TargetFor(fingerprint bool) Target {
	if fingerprint {
		return TargetFingerprint
	}
	return TargetPublicKey
}

// Matcher is an immutable compiled pattern. It holds no mutable state and
// is safe for concurrent use by any number of workers.
type Matcher struct {
	re          *regexp.Regexp
	expr        string
	target      Target
	insensitive bool
}

// Compile builds a Matcher. When insensitive is set the whole expression is
// prefixed with the (?i) flag before compilation. An expression that fails
// to compile is a configuration error and no Matcher is returned.
func Compile(expr string, insensitive bool, target Target) (*Matcher, error) {
	if target != TargetPublicKey && target != TargetFingerprint {
		return nil, fmt.Errorf("unknown match target %v", target)
	}
	full := expr
	if insensitive {
		full = "(?i)" + expr
	}
	re, err := regexp.Compile(full)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", expr, err)
	}
	return &Matcher{re: re, expr: full, target: target, insensitive: insensitive}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string, insensitive bool, target Target) *Matcher {
	m, err := Compile(expr, insensitive, target)
	if err != nil {
		panic(err)
	}
	return m
}

// Matches reports whether the candidate representation matches.
func (m *Matcher) Matches(s string) bool {
	return m.re.MatchString(s)
}

// Target returns the representation this matcher is meant for.
func (m *Matcher) Target() Target { return m.target }

// Insensitive reports whether case-insensitive matching was requested.
func (m *Matcher) Insensitive() bool { return m.insensitive }

// String returns the expression as compiled, including any (?i) prefix.
func (m *Matcher) String() string { return m.expr }
