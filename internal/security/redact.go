// Package security redacts secrets from text that bitsmith logs or reports,
// such as the output of pipeline tasks.
package security

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder replaces every redacted secret.
const Placeholder = "[REDACTED]"

// minSecretLen is the shortest environment value treated as a secret.
// Shorter values ("1", "true") would redact unrelated output.
const minSecretLen = 8

// Common credential formats that show up in build logs.
var sensitivePatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// GitHub tokens: ghp_..., gho_..., ghs_..., ghr_...
	{regexp.MustCompile(`\bgh[posr]_[a-zA-Z0-9]{36,}\b`), Placeholder},
	// npm automation and publish tokens
	{regexp.MustCompile(`\bnpm_[a-zA-Z0-9]{36}\b`), Placeholder},
	// AWS access key ids
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), Placeholder},
	// Generic bearer tokens
	{regexp.MustCompile(`\bBearer\s+[a-zA-Z0-9_.-]{20,}\b`), Placeholder},
	// Basic auth with password in URL
	{regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`), "://" + Placeholder + "@"},
	// _authToken lines of .npmrc files
	{regexp.MustCompile(`_authToken=\S+`), "_authToken=" + Placeholder},
}

// secretEnvMarkers flag environment variables whose values are secrets.
var secretEnvMarkers = []string{"TOKEN", "SECRET", "PASSWORD", "PASSWD", "API_KEY", "PRIVATE_KEY", "CREDENTIALS"}

// Redactor replaces known secret values and credential patterns.
// The zero value only applies the patterns.
type Redactor struct {
	literals []string
}

// NewRedactor creates a redactor for the given literal secrets.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	seen := make(map[string]bool)
	for _, s := range secrets {
		if len(s) < minSecretLen || seen[s] {
			continue
		}
		seen[s] = true
		r.literals = append(r.literals, s)
	}
	// Longest first so a secret containing another is replaced whole.
	sort.Slice(r.literals, func(i, j int) bool { return len(r.literals[i]) > len(r.literals[j]) })
	return r
}

// FromEnviron creates a redactor for the values of the variables in environ
// ("KEY=value" pairs) whose names look like credentials.
func FromEnviron(environ []string) *Redactor {
	var secrets []string
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !isSecretName(name) {
			continue
		}
		secrets = append(secrets, value)
	}
	return NewRedactor(secrets...)
}

func isSecretName(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range secretEnvMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Redact returns s with secrets replaced by Placeholder. A nil Redactor
// applies the patterns only.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	if r != nil {
		for _, lit := range r.literals {
			s = strings.ReplaceAll(s, lit, Placeholder)
		}
	}
	for _, p := range sensitivePatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
