package schedule

import "fmt"

// Scope is the memory level a tensor is staged in.
type Scope uint8

const (
	ScopeNone Scope = iota
	// ScopeGM is the off-chip backing store.
	ScopeGM
	// ScopeL1 is the mid-level on-chip staging buffer.
	ScopeL1
	ScopeL0A
	ScopeL0B
	// ScopeL0C holds the accumulator.
	ScopeL0C
	// ScopeUB is the near-compute vector buffer that fused stages run in.
	ScopeUB
)

var scopeNames = [...]string{
	ScopeNone: "",
	ScopeGM:   "global",
	ScopeL1:   "local.L1",
	ScopeL0A:  "local.L0A",
	ScopeL0B:  "local.L0B",
	ScopeL0C:  "local.L0C",
	ScopeUB:   "local.UB",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return fmt.Sprintf("scope(%d)", uint8(s))
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalText(b []byte) error {
	v, err := ParseScope(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScope maps a scope name back to its value.
func ParseScope(name string) (Scope, error) {
	for i, n := range scopeNames {
		if n == name {
			return Scope(i), nil
		}
	}
	return ScopeNone, fmt.Errorf("unknown memory scope %q", name)
}
