package types

// TenantID identifies the owner of every entity in the engine. It is an
// opaque, non-empty string; cross-tenant reads are disallowed except for
// the explicitly marked admin fetches (AllTriggers and friends).
type TenantID string

// Valid reports whether t is a non-empty tenant identifier.
func (t TenantID) Valid() bool {
	return t != ""
}

func (t TenantID) String() string {
	return string(t)
}
