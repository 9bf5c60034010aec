package conversation

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// AssembleContext linearizes the conversation between two branches into the
// wire message list sent to a model.
//
// The walk starts at the deepest common ancestor of startPath and endPath,
// first collects the remainder of the start branch, then the remainder of
// the end branch, skipping any node already collected. Each node is mapped
// through the character lens of currentSpeaker: the speaker's own lines
// become "assistant" turns, other characters' lines become attributed
// "user" turns.
func (s *Session) AssembleContext(startPath, endPath []int, currentSpeaker Role) ([]WireMessage, error) {
	prefix := commonPrefixLen(startPath, endPath)

	var collected []*MessageNode
	seen := map[string]bool{}

	appendNode := func(path []int) error {
		node, err := s.GetNode(path)
		if err != nil {
			return err
		}
		key := fmt.Sprint(path)
		if seen[key] {
			return nil
		}
		seen[key] = true
		collected = append(collected, node)
		return nil
	}

	if prefix < len(startPath) {
		// Walk down the start branch from the fork point.
		for i := prefix; i < len(startPath); i++ {
			cur := make([]int, i+1)
			copy(cur, startPath[:i+1])
			if err := appendNode(cur); err != nil {
				return nil, err
			}
		}
	} else {
		// startPath is an ancestor of endPath; include it as the anchor.
		if err := appendNode(startPath); err != nil {
			return nil, err
		}
	}

	for i := prefix; i < len(endPath); i++ {
		cur := make([]int, i+1)
		copy(cur, endPath[:i+1])
		if err := appendNode(cur); err != nil {
			return nil, err
		}
	}

	messages := make([]WireMessage, 0, len(collected))
	for _, node := range collected {
		messages = append(messages, node.wireMessage(currentSpeaker))
	}

	log.Trace().
		Ints("start", startPath).
		Ints("end", endPath).
		Int("messages", len(messages)).
		Msg("assembled context")
	return messages, nil
}

func commonPrefixLen(a, b []int) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
