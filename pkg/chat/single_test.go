package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/tools"
)

// staticAssembler renders fixed prompts, standing in for the prompt
// package in chat-level tests.
type staticAssembler struct{}

func (staticAssembler) AssembleOutputDescription(any) (string, error) {
	return "Answer with the described fields.", nil
}

func (staticAssembler) AssembleToolsPrompt([]openai.Tool) (string, error) {
	return "Wrap tool calls in <ToolUse> tags.", nil
}

func TestSingleChatGetAnswerRecordsTurns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(unaryBody("the answer", 5)))
	}))
	t.Cleanup(server.Close)

	reg := newTestRegistry(t, server.URL, 1)
	s, err := NewSingleChat(reg, "default", "", false, staticAssembler{})
	require.NoError(t, err)

	answer, err := s.GetAnswer(context.Background(), "the question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	// question and answer are both in the tree, cursor on the answer
	answerPath := s.Session.DefaultPath()
	require.Equal(t, []int{0, 0}, answerPath)
	node, err := s.Session.GetNode(answerPath)
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleAssistant, node.Role)
	assert.Equal(t, "the answer", node.Content)
}

func TestSingleChatFailedRequestLeavesNoAnswerNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	reg := newTestRegistry(t, server.URL, 1)
	s, err := NewSingleChat(reg, "default", "", false, staticAssembler{})
	require.NoError(t, err)

	_, err = s.GetAnswer(context.Background(), "the question")
	require.Error(t, err)

	// the question stays, ready for a retry
	questionPath := s.Session.DefaultPath()
	require.Equal(t, []int{0}, questionPath)
	node, err := s.Session.GetNode(questionPath)
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleUser, node.Role)
}

func TestSingleChatGetAnswerAgainBranches(t *testing.T) {
	answers := []string{"first answer", "second answer"}
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(unaryBody(answers[calls], 1)))
		calls++
	}))
	t.Cleanup(server.Close)

	reg := newTestRegistry(t, server.URL, 1)
	s, err := NewSingleChat(reg, "default", "", false, staticAssembler{})
	require.NoError(t, err)

	_, err = s.GetAnswer(context.Background(), "question")
	require.NoError(t, err)

	questionPath := []int{0}
	again, err := s.GetAnswerAgain(context.Background(), questionPath)
	require.NoError(t, err)
	assert.Equal(t, "second answer", again)

	// both answers hang off the question as siblings
	question, err := s.Session.GetNode(questionPath)
	require.NoError(t, err)
	assert.Len(t, question.Children, 2)

	first, err := s.Session.GetNode([]int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, "first answer", first.Content)
	second, err := s.Session.GetNode([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, "second answer", second.Content)
}

// toolFlowHandler emulates an endpoint that answers the primary question
// with <ToolUse> blocks and resolves tool calls on the secondary requests.
func toolFlowHandler(t *testing.T, answer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if len(req.Tools) > 0 {
			rawCall := req.Messages[len(req.Messages)-1].Content
			var call openai.FunctionCall
			require.NoError(t, json.Unmarshal([]byte(rawCall), &call))
			_, _ = fmt.Fprintf(w,
				`{"choices":[{"message":{"role":"assistant","tool_calls":[{"type":"function","function":{"name":%q,"arguments":%q}}]}}],"usage":{"total_tokens":2}}`,
				call.Name, call.Arguments)
			return
		}
		_, _ = w.Write([]byte(unaryBody(answer, 5)))
	}
}

func TestSingleChatGetToolAnswer(t *testing.T) {
	answer := "Let me check.\n" +
		"<ToolUse>{\"name\": \"add\", \"arguments\": \"{\\\"a\\\": 19, \\\"b\\\": 23}\"}</ToolUse>"
	server := httptest.NewServer(toolFlowHandler(t, answer))
	t.Cleanup(server.Close)

	reg := newTestRegistry(t, server.URL, 2)
	s, err := NewSingleChat(reg, "default", "", false, staticAssembler{})
	require.NoError(t, err)

	toolReg := tools.NewRegistry()
	require.NoError(t, toolReg.RegisterFunc("add", "Add two numbers", func(in struct {
		A int `json:"a"`
		B int `json:"b"`
	}) (int, error) {
		return in.A + in.B, nil
	}))
	require.NoError(t, s.SetTools(toolReg))

	clean, results, err := s.GetToolAnswer(context.Background(), "what is 19+23?")
	require.NoError(t, err)

	assert.Equal(t, "Let me check.", clean)
	require.Len(t, results, 1)
	assert.Equal(t, "42", results[0])
}

func TestSingleChatGetStructuredAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.ResponseFormat != nil {
			_, _ = w.Write([]byte(unaryBody(`{"name": "Ada", "age": 36}`, 2)))
			return
		}
		_, _ = w.Write([]byte(unaryBody("Her name is Ada and she is 36.", 5)))
	}))
	t.Cleanup(server.Close)

	reg := newTestRegistry(t, server.URL, 2)
	s, err := NewSingleChat(reg, "default", "", false, staticAssembler{})
	require.NoError(t, err)

	schema := map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name": "person",
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
					"age":  map[string]any{"type": "integer"},
				},
				"required": []string{"name", "age"},
			},
		},
	}

	var out struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	require.NoError(t, s.GetStructuredAnswer(context.Background(), schema, "who is she?", &out))
	assert.Equal(t, "Ada", out.Name)
	assert.Equal(t, 36, out.Age)
}

func TestMultiChatDialogue(t *testing.T) {
	var lastMessages []conversation.WireMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastMessages = req.Messages
		_, _ = w.Write([]byte(unaryBody("Arr, aye!", 3)))
	}))
	t.Cleanup(server.Close)

	reg := newTestRegistry(t, server.URL, 1)
	m, err := NewMultiChat(reg, "default", map[string]string{
		"Pirate": "You are a pirate.",
		"Judge":  "You are a judge.",
	}, false, staticAssembler{})
	require.NoError(t, err)

	answer, err := m.Dialogue(context.Background(), "Pirate", "do you agree?")
	require.NoError(t, err)
	assert.Equal(t, "Arr, aye!", answer)

	// the character prompt leads the request
	require.NotEmpty(t, lastMessages)
	assert.Equal(t, conversation.WireMessage{Role: "system", Content: "You are a pirate."}, lastMessages[0])

	// the answer is recorded under the character's role
	node, err := m.Session.GetNode(m.Session.DefaultPath())
	require.NoError(t, err)
	assert.Equal(t, conversation.CharacterRole("Pirate"), node.Role)

	// other characters see the line as attributed user speech
	messages, err := m.Session.AssembleContext([]int{0}, m.Session.DefaultPath(), conversation.CharacterRole("Judge"))
	require.NoError(t, err)
	last := messages[len(messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Pirate said: Arr, aye!", last.Content)
}

func TestMultiChatErrors(t *testing.T) {
	reg := newTestRegistry(t, "http://unused", 1)

	_, err := NewMultiChat(reg, "default", nil, false, staticAssembler{})
	assert.ErrorIs(t, err, ErrNoCharacterPrompts)

	m, err := NewMultiChat(reg, "default", map[string]string{"Pirate": "x"}, false, staticAssembler{})
	require.NoError(t, err)

	_, err = m.GetAnswer(context.Background())
	assert.ErrorIs(t, err, ErrNoCharacterSelected)

	err = m.SetCharacter("Ghost")
	var undefined *UndefinedCharacterError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, "Ghost", undefined.Name)
}
