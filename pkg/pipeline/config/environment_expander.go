// This file defines an interface and implementation for expanding environment
// variables within configuration data before it is unmarshaled.
package config

import (
	"os"
)

// EnvironmentExpander provides functionality to expand environment variable
// placeholders within an input byte slice.
type EnvironmentExpander interface {
	// Expand takes a byte slice as input, expands any environment variable
	// placeholders (e.g., ${VAR} or $VAR) within it, and returns the expanded
	// byte slice.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander is an EnvironmentExpander backed by the standard
// library's os.ExpandEnv.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand replaces ${VAR} or $VAR in the input with the value of the
// environment variable VAR. Unset variables expand to the empty string.
// os.ExpandEnv itself cannot fail, so the returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.ExpandEnv(string(input))), nil
}
