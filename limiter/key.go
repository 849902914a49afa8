package limiter

import "fmt"

// ScopeKind names the dimension a limit is tracked against.
type ScopeKind string

const (
	// ScopeGlobal one shared counter for every caller
	ScopeGlobal ScopeKind = "global"

	// ScopeIP per client address
	ScopeIP ScopeKind = "ip"

	// ScopeUser per authenticated user id
	ScopeUser ScopeKind = "user"

	// ScopeEndpoint per route (method + path)
	ScopeEndpoint ScopeKind = "endpoint"

	// ScopeCredential per API credential
	ScopeCredential ScopeKind = "api_credential"
)

// Valid reports whether k is a known scope kind.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeGlobal, ScopeIP, ScopeUser, ScopeEndpoint, ScopeCredential:
		return true
	}
	return false
}

// BuildKey returns the counter identity "{scope}:{id}". Identical logical
// requests under the same scope always resolve to the same key; the global
// scope collapses every id onto one key.
func BuildKey(kind ScopeKind, id string) string {
	if kind == ScopeGlobal {
		return string(ScopeGlobal) + ":*"
	}
	if id == "" {
		id = "anonymous"
	}
	return fmt.Sprintf("%s:%s", kind, id)
}
