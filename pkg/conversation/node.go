package conversation

import (
	"encoding/json"

	"github.com/google/uuid"
)

type NodeID uuid.UUID

func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

var NilNode = NodeID(uuid.Nil)

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *NodeID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

// MarshalText lets NodeID serve as a JSON map key.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *NodeID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

// MessageNode is a single turn in a branching dialogue tree. Nodes live in a
// Session's arena and reference their parent and children by ID only; the
// node's display path is derived from those links on demand.
type MessageNode struct {
	ID       NodeID   `json:"id"`
	ParentID NodeID   `json:"parentID"`
	Role     Role     `json:"role"`
	Content  string   `json:"content"`
	Children []NodeID `json:"children,omitempty"`
}

// WireMessage is the provider message format produced by context assembly.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireMessage maps a node to the provider format under the lens of the
// currently speaking role. Character turns by anyone other than the current
// speaker are presented as third-person user input.
func (mn *MessageNode) wireMessage(currentSpeaker Role) WireMessage {
	if !mn.Role.IsCharacter() {
		return WireMessage{Role: mn.Role.String(), Content: mn.Content}
	}
	if mn.Role == currentSpeaker {
		return WireMessage{Role: "assistant", Content: mn.Content}
	}
	return WireMessage{
		Role:    "user",
		Content: mn.Role.CharacterName() + " said: " + mn.Content,
	}
}
