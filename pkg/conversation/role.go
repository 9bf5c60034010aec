package conversation

import "encoding/json"

type roleKind int

const (
	roleSystem roleKind = iota
	roleUser
	roleAssistant
	roleCharacter
)

// Role identifies the speaker of a message. Besides the three fixed protocol
// roles, a role can name an arbitrary character for multi-party dialogue.
// Roles are comparable values: two character roles are equal iff their names
// match.
type Role struct {
	kind roleKind
	name string
}

var (
	RoleSystem    = Role{kind: roleSystem}
	RoleUser      = Role{kind: roleUser}
	RoleAssistant = Role{kind: roleAssistant}
)

// CharacterRole returns a role for a named character.
func CharacterRole(name string) Role {
	return Role{kind: roleCharacter, name: name}
}

// ParseRole maps a role string to a Role. Unknown strings become character
// roles carrying the string as the character name.
func ParseRole(s string) Role {
	switch s {
	case "system":
		return RoleSystem
	case "user":
		return RoleUser
	case "assistant":
		return RoleAssistant
	default:
		return CharacterRole(s)
	}
}

func (r Role) IsCharacter() bool {
	return r.kind == roleCharacter
}

// CharacterName returns the character name, or "" for fixed roles.
func (r Role) CharacterName() string {
	return r.name
}

func (r Role) String() string {
	switch r.kind {
	case roleSystem:
		return "system"
	case roleUser:
		return "user"
	case roleAssistant:
		return "assistant"
	default:
		return r.name
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}
