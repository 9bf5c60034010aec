package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/burattino/pkg/events"
)

var toolUsePattern = regexp.MustCompile(`(?s)<ToolUse>(.*?)</ToolUse>`)

// ExtractToolUses returns the trimmed inner text of every <ToolUse> block
// in the answer, in order of appearance.
func ExtractToolUses(text string) []string {
	matches := toolUsePattern.FindAllStringSubmatch(text, -1)
	uses := make([]string, 0, len(matches))
	for _, m := range matches {
		uses = append(uses, strings.TrimSpace(m[1]))
	}
	return uses
}

// StripToolUses removes every <ToolUse> block from the answer.
func StripToolUses(text string) string {
	return strings.TrimSpace(toolUsePattern.ReplaceAllString(text, ""))
}

// Resolver turns the free-form text inside a <ToolUse> block into a
// structured function call, typically by asking a tool-capable model.
type Resolver interface {
	ResolveFunctionCall(ctx context.Context, rawCall string, schemas []openai.Tool) (*openai.FunctionCall, error)
}

// Dispatcher runs the tool calls found in a model answer.
type Dispatcher struct {
	registry *Registry
	resolver Resolver
	sinks    []events.Sink
}

func NewDispatcher(registry *Registry, resolver Resolver, sinks ...events.Sink) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		resolver: resolver,
		sinks:    sinks,
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch extracts every <ToolUse> block from answer, resolves and executes
// the calls in parallel, and returns the answer with the blocks stripped
// plus one result string per call in the order the calls appeared. A failed
// call never fails the batch; its slot carries a JSON error object instead.
func (d *Dispatcher) Dispatch(ctx context.Context, meta events.EventMetadata, answer string) (string, []string, error) {
	calls := ExtractToolUses(answer)
	clean := StripToolUses(answer)
	if len(calls) == 0 {
		return clean, nil, nil
	}

	results := make([]string, len(calls))
	var wg sync.WaitGroup
	for i, rawCall := range calls {
		wg.Add(1)
		go func(i int, rawCall string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = errorResult(fmt.Errorf("tool call #%d panicked: %v", i, r))
				}
			}()

			result, err := d.executeCall(ctx, meta, rawCall)
			if err != nil {
				log.Warn().Err(err).Int("call", i).Msg("tool call failed")
				result = errorResult(errors.Wrap(err, "tool call failed"))
			}
			results[i] = result
		}(i, rawCall)
	}
	wg.Wait()

	return clean, results, nil
}

func (d *Dispatcher) executeCall(ctx context.Context, meta events.EventMetadata, rawCall string) (string, error) {
	call, err := d.resolver.ResolveFunctionCall(ctx, rawCall, d.registry.OpenAITools())
	if err != nil {
		return "", errors.Wrap(ErrParseFunctionCall, err.Error())
	}
	if call.Name == "" {
		return "", &MissingFieldError{Field: "name"}
	}
	if call.Arguments == "" {
		return "", &MissingFieldError{Field: "arguments"}
	}

	events.PublishToSinks(d.sinks, events.NewToolCallEvent(meta, events.ToolCall{
		Name:  call.Name,
		Input: call.Arguments,
	}))

	def, ok := d.registry.Get(call.Name)
	if !ok {
		// the model asked for something we never offered, degrade to text
		result := fmt.Sprintf("cannot find function named %q", call.Name)
		d.publishResult(meta, call.Name, result)
		return result, nil
	}

	value, err := def.Call(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		var execErr *FunctionExecutionError
		if errors.As(err, &execErr) {
			// handler errors are model-visible feedback, not batch failures
			result := execErr.Error()
			d.publishResult(meta, call.Name, result)
			return result, nil
		}
		return "", err
	}

	serialized, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", errors.Wrapf(ErrSerializeResult, "%s: %v", call.Name, err)
	}

	result := string(serialized)
	d.publishResult(meta, call.Name, result)
	return result, nil
}

func (d *Dispatcher) publishResult(meta events.EventMetadata, name, result string) {
	events.PublishToSinks(d.sinks, events.NewToolResultEvent(meta, events.ToolResult{
		Name:   name,
		Result: result,
	}))
}

func errorResult(err error) string {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(payload)
}
