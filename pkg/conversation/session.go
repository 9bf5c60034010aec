package conversation

import (
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session owns a forest of conversation trees and a cursor pointing at the
// most recently appended node.
//
// Nodes are stored in an arena keyed by NodeID; parent/child relationships
// are ID references. The public API is entirely path-addressed: a path is a
// sequence of child indices, with the first element indexing the session's
// root list. Paths are never stored on nodes — they are derived from the
// arena on demand, so deleting a sibling never requires a renumbering pass.
type Session struct {
	Nodes  map[NodeID]*MessageNode `json:"nodes"`
	Roots  []NodeID                `json:"roots"`
	Cursor NodeID                  `json:"cursor"`
}

func NewSession() *Session {
	return &Session{
		Nodes: make(map[NodeID]*MessageNode),
	}
}

// DefaultPath returns the path of the last-written node, or an empty path if
// the session is empty.
func (s *Session) DefaultPath() []int {
	if s.Cursor == NilNode {
		return nil
	}
	path, err := s.PathOf(s.Cursor)
	if err != nil {
		return nil
	}
	return path
}

// GetNode resolves a path to its node. The first path element indexes the
// session roots, every further element indexes the previous node's children.
func (s *Session) GetNode(path []int) (*MessageNode, error) {
	if len(path) == 0 {
		return nil, errors.Wrap(ErrInvalidPath, "empty path")
	}
	if path[0] < 0 || path[0] >= len(s.Roots) {
		return nil, errors.Wrapf(ErrInvalidPath, "root index %d out of range", path[0])
	}
	node := s.Nodes[s.Roots[path[0]]]
	for depth, idx := range path[1:] {
		if node == nil {
			return nil, errors.Wrapf(ErrInvalidPath, "dangling node at %v", path[:depth+1])
		}
		if idx < 0 || idx >= len(node.Children) {
			return nil, errors.Wrapf(ErrInvalidPath, "index %d out of range at %v", idx, path[:depth+1])
		}
		node = s.Nodes[node.Children[idx]]
	}
	if node == nil {
		return nil, errors.Wrapf(ErrInvalidPath, "dangling node at %v", path)
	}
	return node, nil
}

// Add appends a new leaf under the node at parentPath and returns the new
// node's path. An empty parent path starts a new root tree. The session
// cursor moves to the new node.
func (s *Session) Add(parentPath []int, role Role, content string) ([]int, error) {
	node := &MessageNode{
		ID:      NewNodeID(),
		Role:    role,
		Content: content,
	}

	var newPath []int
	if len(parentPath) == 0 {
		node.ParentID = NilNode
		s.Nodes[node.ID] = node
		s.Roots = append(s.Roots, node.ID)
		newPath = []int{len(s.Roots) - 1}
	} else {
		parent, err := s.GetNode(parentPath)
		if err != nil {
			return nil, err
		}
		node.ParentID = parent.ID
		s.Nodes[node.ID] = node
		parent.Children = append(parent.Children, node.ID)
		newPath = make([]int, 0, len(parentPath)+1)
		newPath = append(newPath, parentPath...)
		newPath = append(newPath, len(parent.Children)-1)
	}

	s.Cursor = node.ID
	log.Trace().
		Str("node_id", node.ID.String()).
		Str("role", role.String()).
		Ints("path", newPath).
		Msg("added message node")
	return newPath, nil
}

// UpdateContent replaces the content of the node at path in place.
func (s *Session) UpdateContent(path []int, content string) error {
	node, err := s.GetNode(path)
	if err != nil {
		return err
	}
	node.Content = content
	return nil
}

// Delete removes the node at path and its whole subtree. Deleting with an
// empty path is not supported. Later siblings implicitly shift left; since
// paths are derived rather than stored, no renumbering is needed.
func (s *Session) Delete(path []int) error {
	if len(path) == 0 {
		return errors.Wrap(ErrUnsupportedOperation, "cannot delete with empty path")
	}

	idx := path[len(path)-1]
	var siblings *[]NodeID
	if len(path) == 1 {
		siblings = &s.Roots
	} else {
		parent, err := s.GetNode(path[:len(path)-1])
		if err != nil {
			return err
		}
		siblings = &parent.Children
	}
	if idx < 0 || idx >= len(*siblings) {
		return errors.Wrapf(ErrInvalidIndex, "index %d out of range", idx)
	}

	removed := (*siblings)[idx]
	*siblings = append((*siblings)[:idx], (*siblings)[idx+1:]...)

	// Drop the whole subtree from the arena, iteratively.
	parentOfRemoved := s.Nodes[removed].ParentID
	queue := []NodeID{removed}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if node, ok := s.Nodes[id]; ok {
			queue = append(queue, node.Children...)
			if s.Cursor == id {
				s.Cursor = parentOfRemoved
			}
			delete(s.Nodes, id)
		}
	}

	log.Trace().Ints("path", path).Int("arena_size", len(s.Nodes)).Msg("deleted subtree")
	return nil
}

// PathOf derives the display path of a node by walking its parent links up
// to a session root.
func (s *Session) PathOf(id NodeID) ([]int, error) {
	var reversed []int
	for {
		node, ok := s.Nodes[id]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidPath, "node %s not in session", id)
		}
		if node.ParentID == NilNode {
			idx := indexOf(s.Roots, id)
			if idx < 0 {
				return nil, errors.Wrapf(ErrInvalidPath, "root %s not in root list", id)
			}
			reversed = append(reversed, idx)
			break
		}
		parent, ok := s.Nodes[node.ParentID]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidPath, "node %s has dangling parent", id)
		}
		idx := indexOf(parent.Children, id)
		if idx < 0 {
			return nil, errors.Wrapf(ErrInvalidPath, "node %s not among parent children", id)
		}
		reversed = append(reversed, idx)
		id = node.ParentID
	}

	path := make([]int, len(reversed))
	for i, v := range reversed {
		path[len(reversed)-1-i] = v
	}
	return path, nil
}

// Clone returns a deep copy of the session, sharing nothing with the
// original. Useful for forking a conversation branch experimentally.
func (s *Session) Clone() *Session {
	return clone.Clone(s).(*Session)
}

func indexOf(ids []NodeID, id NodeID) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}
