// Package role defines the sender roles of a conversation turn.
package role

import "fmt"

// Role represents the sender of a message in a conversation.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant, Tool:
		return true
	}
	return false
}

// String returns the underlying string value of the role.
func (r Role) String() string {
	return string(r)
}

// Parse converts s to a Role. An empty string yields User, which is what
// callers mean when they omit the role of an out-of-band message.
func Parse(s string) (Role, error) {
	if s == "" {
		return User, nil
	}

	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("role: unknown role %q", s)
	}

	return r, nil
}
