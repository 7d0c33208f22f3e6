package mode

import "fmt"

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Default lets the backend pick its preferred strategy.
	Default Mode = ""
	Vector  Mode = "vector"
	Keyword Mode = "keyword"
	// Hybrid fuses vector and keyword rankings.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Default || m == Vector || m == Keyword || m == Hybrid
}

// Parse converts a user-supplied string into a Mode.
func Parse(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid search mode: %q", s)
	}
	return m, nil
}

// String returns the wire name, "default" for Default.
func (m Mode) String() string {
	if m == Default {
		return "default"
	}
	return string(m)
}
