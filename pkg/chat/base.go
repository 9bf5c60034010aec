// Package chat implements the request pipeline against OpenAI-compatible
// chat completion endpoints: context assembly from a conversation session,
// endpoint-gated unary and streaming requests, SSE reduction and token
// usage accounting. SingleChat and MultiChat build turn-taking flows on
// top of BaseChat; tool calling plugs in through the tools package.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/events"
	"github.com/go-go-golems/burattino/pkg/gate"
	"github.com/go-go-golems/burattino/pkg/profiles"
)

const (
	ssePrefix = "data: "
	sseDone   = "[DONE]"

	// streams can carry long single-line payloads
	scannerBufferSize = 1024 * 1024
)

// BaseChat sends chat completion requests for one model profile. It owns
// the conversation session the requests draw their context from and the
// running token usage total.
type BaseChat struct {
	Model   string
	BaseURL string
	apiKey  string

	// CharacterPrompt, when set, leads every assembled request as a
	// system message. MultiChat swaps it per speaking character.
	CharacterPrompt string

	needStream bool
	client     *http.Client
	gate       *gate.Gate

	Session *conversation.Session
	Usage   int

	sinks []events.Sink
	meta  events.EventMetadata
}

type Option func(*BaseChat)

func WithHTTPClient(client *http.Client) Option {
	return func(b *BaseChat) {
		b.client = client
	}
}

func WithSink(sink events.Sink) Option {
	return func(b *BaseChat) {
		b.sinks = append(b.sinks, sink)
	}
}

func WithCharacterPrompt(prompt string) Option {
	return func(b *BaseChat) {
		b.CharacterPrompt = prompt
	}
}

func WithSession(session *conversation.Session) Option {
	return func(b *BaseChat) {
		b.Session = session
	}
}

// NewBaseChat builds a chat client for the given profile. The profile's
// endpoint must already be registered in the registry, so its base URL has
// a concurrency gate.
func NewBaseChat(reg *profiles.Registry, profile profiles.Profile, needStream bool, opts ...Option) (*BaseChat, error) {
	ep, err := reg.EndpointOf(profile)
	if err != nil {
		return nil, err
	}

	b := &BaseChat{
		Model:      profile.Model,
		BaseURL:    ep.BaseURL,
		apiKey:     profile.APIKey,
		needStream: needStream,
		client:     http.DefaultClient,
		gate:       reg.Gate(),
		Session:    conversation.NewSession(),
		meta: events.EventMetadata{
			ID:       uuid.New(),
			Model:    profile.Model,
			Endpoint: ep.Name,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func NewBaseChatWithName(reg *profiles.Registry, name string, needStream bool, opts ...Option) (*BaseChat, error) {
	profile, err := reg.ByName(name)
	if err != nil {
		return nil, err
	}
	return NewBaseChat(reg, profile, needStream, opts...)
}

func NewBaseChatWithCapability(reg *profiles.Registry, c profiles.Capability, needStream bool, opts ...Option) (*BaseChat, error) {
	profile, err := reg.ByCapability(c)
	if err != nil {
		return nil, err
	}
	return NewBaseChat(reg, profile, needStream, opts...)
}

// AddMessage appends a message under the session cursor and returns the new
// node's path.
func (b *BaseChat) AddMessage(role conversation.Role, content string) ([]int, error) {
	return b.Session.Add(b.Session.DefaultPath(), role, content)
}

func (b *BaseChat) AddMessageWithParentPath(parentPath []int, role conversation.Role, content string) ([]int, error) {
	return b.Session.Add(parentPath, role, content)
}

// BuildRequestBody assembles the request for the branch ending at endPath,
// viewed through speaker's character lens. An empty endPath produces a
// request without messages.
func (b *BaseChat) BuildRequestBody(endPath []int, speaker conversation.Role) (*Request, error) {
	body := &Request{
		Model:    b.Model,
		Messages: []conversation.WireMessage{},
		Stream:   b.needStream,
	}
	if b.CharacterPrompt != "" {
		body.Messages = append(body.Messages, conversation.WireMessage{
			Role:    "system",
			Content: b.CharacterPrompt,
		})
	}
	if len(endPath) == 0 {
		return body, nil
	}

	messages, err := b.Session.AssembleContext(endPath[:1], endPath, speaker)
	if err != nil {
		return nil, err
	}
	body.Messages = append(body.Messages, messages...)
	return body, nil
}

// sendRequest posts the body and classifies transport and status failures.
// The caller owns the response body on success.
func (b *BaseChat) sendRequest(ctx context.Context, body *Request) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &urlErr) && urlErr.Timeout()) {
			return nil, errors.Wrap(ErrTimeout, err.Error())
		}
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// GetResponse performs a unary completion. The endpoint permit is released
// as soon as the response arrives; decoding happens outside the gate.
func (b *BaseChat) GetResponse(ctx context.Context, body *Request) (*Response, error) {
	permit, err := b.gate.Acquire(ctx, b.BaseURL)
	if err != nil {
		return nil, err
	}
	defer permit.Release()

	resp, err := b.sendRequest(ctx, body)
	permit.Release()
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(ErrParseResponse, err.Error())
	}
	if parsed.Usage == nil {
		return nil, ErrMissingUsageData
	}
	b.Usage += parsed.Usage.TotalTokens

	log.Debug().Str("model", b.Model).Int("total_tokens", parsed.Usage.TotalTokens).
		Int("accumulated", b.Usage).Msg("completed unary request")
	return &parsed, nil
}

// GetStreamResponse performs the request half of a streaming completion.
// The returned permit stays held until the stream is drained; pass both to
// ReadStreamContent.
func (b *BaseChat) GetStreamResponse(ctx context.Context, body *Request) (io.ReadCloser, *gate.Permit, error) {
	permit, err := b.gate.Acquire(ctx, b.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	resp, err := b.sendRequest(ctx, body)
	if err != nil {
		permit.Release()
		return nil, nil, err
	}
	return resp.Body, permit, nil
}

// ReadStreamContent folds an SSE stream into the full completion text,
// publishing partial events along the way. Empty lines and the [DONE]
// sentinel are skipped; any other malformed line aborts the stream and the
// partial text is discarded.
func (b *BaseChat) ReadStreamContent(stream io.ReadCloser, permit *gate.Permit) (string, error) {
	defer func() { _ = stream.Close() }()
	defer permit.Release()

	events.PublishToSinks(b.sinks, events.NewStartEvent(b.meta))

	var sb strings.Builder
	var usage *openai.Usage

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		payload := strings.TrimPrefix(line, ssePrefix)
		if payload == sseDone {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			err = errors.Wrapf(ErrParseResponse, "malformed stream line: %v", err)
			events.PublishToSinks(b.sinks, events.NewErrorEvent(b.meta, err))
			return "", err
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			sb.WriteString(choice.Delta.Content)
			events.PublishToSinks(b.sinks,
				events.NewPartialCompletionEvent(b.meta, choice.Delta.Content, sb.String()))
		}
		if chunk.Usage != nil {
			// last usage payload wins
			usage = chunk.Usage
		}
	}
	if err := scanner.Err(); err != nil {
		err = errors.Wrap(ErrNetwork, err.Error())
		events.PublishToSinks(b.sinks, events.NewErrorEvent(b.meta, err))
		return "", err
	}

	if usage != nil {
		b.Usage += usage.TotalTokens
	}

	content := sb.String()
	events.PublishToSinks(b.sinks, events.NewFinalEvent(b.meta, content))
	log.Debug().Str("model", b.Model).Int("accumulated", b.Usage).
		Int("chars", len(content)).Msg("drained stream")
	return content, nil
}

// fetchContent runs the request in whichever mode the chat was built for
// and returns the completion text.
func (b *BaseChat) fetchContent(ctx context.Context, body *Request) (string, error) {
	if b.needStream {
		stream, permit, err := b.GetStreamResponse(ctx, body)
		if err != nil {
			return "", err
		}
		return b.ReadStreamContent(stream, permit)
	}

	resp, err := b.GetResponse(ctx, body)
	if err != nil {
		return "", err
	}
	return resp.Content()
}
