package validation

import (
	"regexp"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
//
// Examples valid: mcp:read, mcp:write, profile, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "".
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScopeString valida un scope space-delimited completo (RFC 6749 §3.3).
// El string vacío es válido (el caller aplica el default).
func ValidScopeString(scope string) bool {
	for _, s := range strings.Fields(scope) {
		if !ValidScopeName(s) {
			return false
		}
	}
	return true
}
