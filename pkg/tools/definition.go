// Package tools exposes Go functions to language models. A Definition wraps
// a plain function with a generated JSON schema; the Dispatcher extracts
// <ToolUse> blocks from model answers, resolves them into structured calls
// and executes them in parallel.
package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"runtime"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Definition is a callable tool. Parameters is the JSON schema of the
// function's input struct, generated once at registration.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`

	fn        reflect.Value
	inputType reflect.Type
	takesCtx  bool
}

// NewDefinitionFromFunc builds a Definition from fn, which must look like
// func(Input) (Result, error) or func(context.Context, Input) (Result,
// error) with Input a struct. An empty name defaults to the snake_cased
// function name.
func NewDefinitionFromFunc(name, description string, fn interface{}) (*Definition, error) {
	funcValue := reflect.ValueOf(fn)
	funcType := funcValue.Type()
	if funcType.Kind() != reflect.Func {
		return nil, errors.New("tool must be a function")
	}
	if funcType.NumOut() != 2 || !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("tool function must return (Result, error)")
	}

	var inputType reflect.Type
	takesCtx := false
	switch funcType.NumIn() {
	case 1:
		inputType = funcType.In(0)
	case 2:
		if funcType.In(0) != contextType {
			return nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		inputType = funcType.In(1)
		takesCtx = true
	default:
		return nil, errors.New("tool function must take (Input) or (context.Context, Input)")
	}
	if inputType.Kind() != reflect.Struct {
		return nil, errors.Errorf("tool input must be a struct, got %s", inputType)
	}

	if name == "" {
		name = defaultName(funcValue)
	}

	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(reflect.New(inputType).Elem().Interface())
	schema.Version = ""
	if description == "" {
		description = schema.Description
	}

	return &Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		fn:          funcValue,
		inputType:   inputType,
		takesCtx:    takesCtx,
	}, nil
}

// Call decodes args into the tool's input struct and invokes the function.
func (d *Definition) Call(ctx context.Context, args json.RawMessage) (interface{}, error) {
	input := reflect.New(d.inputType)
	if len(args) > 0 {
		if err := json.Unmarshal(args, input.Interface()); err != nil {
			return nil, &DeserializeArgumentsError{Name: d.Name, Err: err}
		}
	}

	var in []reflect.Value
	if d.takesCtx {
		in = []reflect.Value{reflect.ValueOf(ctx), input.Elem()}
	} else {
		in = []reflect.Value{input.Elem()}
	}

	out := d.fn.Call(in)
	if errValue := out[1]; !errValue.IsNil() {
		return nil, &FunctionExecutionError{Name: d.Name, Err: errValue.Interface().(error)}
	}
	return out[0].Interface(), nil
}

// OpenAITool renders the definition in the wire format used by the tools
// field of chat completion requests.
func (d *Definition) OpenAITool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		},
	}
}

func defaultName(funcValue reflect.Value) string {
	full := runtime.FuncForPC(funcValue.Pointer()).Name()
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		full = full[idx+1:]
	}
	full = strings.TrimSuffix(full, "-fm")
	return strcase.ToSnake(full)
}
