package conversation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRootAndChild(t *testing.T) {
	s := NewSession()

	rootPath, err := s.Add(nil, RoleSystem, "You are helpful.")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, rootPath)

	childPath, err := s.Add(rootPath, RoleUser, "Hello")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, childPath)

	node, err := s.GetNode(childPath)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, node.Role)
	assert.Equal(t, "Hello", node.Content)

	assert.Equal(t, childPath, s.DefaultPath())
}

func TestAddEmptyParentStartsNewTree(t *testing.T) {
	s := NewSession()

	first, err := s.Add(nil, RoleSystem, "a")
	require.NoError(t, err)
	second, err := s.Add(nil, RoleSystem, "b")
	require.NoError(t, err)

	assert.Equal(t, []int{0}, first)
	assert.Equal(t, []int{1}, second)
	assert.Len(t, s.Roots, 2)
}

func TestGetNodeInvalidPaths(t *testing.T) {
	s := NewSession()
	_, err := s.Add(nil, RoleSystem, "root")
	require.NoError(t, err)

	_, err = s.GetNode(nil)
	assert.True(t, errors.Is(err, ErrInvalidPath))

	_, err = s.GetNode([]int{3})
	assert.True(t, errors.Is(err, ErrInvalidPath))

	_, err = s.GetNode([]int{0, 0})
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestUpdateContent(t *testing.T) {
	s := NewSession()
	path, err := s.Add(nil, RoleUser, "draft")
	require.NoError(t, err)

	require.NoError(t, s.UpdateContent(path, "final"))

	node, err := s.GetNode(path)
	require.NoError(t, err)
	assert.Equal(t, "final", node.Content)
}

func TestDeleteShiftsSiblingPaths(t *testing.T) {
	s := NewSession()
	root, err := s.Add(nil, RoleSystem, "root")
	require.NoError(t, err)

	_, err = s.Add(root, RoleUser, "first")
	require.NoError(t, err)
	_, err = s.Add(root, RoleUser, "second")
	require.NoError(t, err)
	_, err = s.Add(root, RoleUser, "third")
	require.NoError(t, err)

	require.NoError(t, s.Delete([]int{0, 1}))

	// the former third child is now addressable at the vacated index
	node, err := s.GetNode([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, "third", node.Content)

	_, err = s.GetNode([]int{0, 2})
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestDeleteRemovesSubtreeFromArena(t *testing.T) {
	s := NewSession()
	root, err := s.Add(nil, RoleSystem, "root")
	require.NoError(t, err)
	mid, err := s.Add(root, RoleUser, "mid")
	require.NoError(t, err)
	_, err = s.Add(mid, RoleAssistant, "leaf")
	require.NoError(t, err)

	require.Len(t, s.Nodes, 3)
	require.NoError(t, s.Delete(mid))
	assert.Len(t, s.Nodes, 1)

	// cursor falls back to the deleted subtree's parent
	assert.Equal(t, root, s.DefaultPath())
}

func TestDeleteErrors(t *testing.T) {
	s := NewSession()
	root, err := s.Add(nil, RoleSystem, "root")
	require.NoError(t, err)

	err = s.Delete(nil)
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))

	err = s.Delete(append(root, 5))
	assert.True(t, errors.Is(err, ErrInvalidIndex))
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSession()
	path, err := s.Add(nil, RoleUser, "original")
	require.NoError(t, err)

	c := s.Clone()
	require.NoError(t, c.UpdateContent(path, "changed"))
	_, err = c.Add(path, RoleAssistant, "reply")
	require.NoError(t, err)

	node, err := s.GetNode(path)
	require.NoError(t, err)
	assert.Equal(t, "original", node.Content)
	assert.Empty(t, node.Children)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleSystem, ParseRole("system"))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleAssistant, ParseRole("assistant"))

	alice := ParseRole("Alice")
	assert.True(t, alice.IsCharacter())
	assert.Equal(t, "Alice", alice.CharacterName())
	assert.Equal(t, CharacterRole("Alice"), alice)
}
