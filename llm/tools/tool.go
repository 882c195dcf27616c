package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/vivekverma239/superfast-ai/types"
)

// Category groups tools for listing and filtering.
type Category string

const (
	CategoryMemory    Category = "memory"
	CategoryTodo      Category = "todo"
	CategoryArtifact  Category = "artifact"
	CategoryWeb       Category = "web"
	CategoryKnowledge Category = "knowledge"
	CategoryFile      Category = "file"
	CategoryUtility   Category = "utility"
)

// Func executes a tool with its raw JSON input.
type Func func(ctx context.Context, input json.RawMessage) (any, error)

// Tool is a callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Category    Category
	Execute     Func

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
}

// Schema returns the function-calling definition sent to the model.
func (t *Tool) Schema() types.ToolSchema {
	params := t.InputSchema
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return types.ToolSchema{Name: t.Name, Description: t.Description, Parameters: params}
}

// Invoke validates input against the tool's schema, runs it and encodes the
// output. Validation failures are non-retryable VALIDATION_ERRORs; execution
// failures are wrapped as tool execution errors.
func (t *Tool) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	if t.Execute == nil {
		return nil, types.NewToolExecutionError(t.Name, "tool has no executor", nil)
	}
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := t.validate(input); err != nil {
		return nil, types.NewError(types.ErrValidation, fmt.Sprintf("invalid input for tool %s", t.Name)).
			WithCause(err).
			WithContext("toolName", t.Name)
	}

	out, err := t.Execute(ctx, input)
	if err != nil {
		return nil, types.NewToolExecutionError(t.Name, "tool execution failed", err)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, types.NewToolExecutionError(t.Name, "encode tool output", err)
	}
	return raw, nil
}

func (t *Tool) validate(input json.RawMessage) error {
	if len(t.InputSchema) == 0 {
		return nil
	}
	t.schemaOnce.Do(func() {
		t.schema, t.schemaErr = compileSchema(t.Name, t.InputSchema)
	})
	if t.schemaErr != nil {
		return t.schemaErr
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(input))
	if err != nil {
		return err
	}
	return t.schema.Validate(inst)
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	url := "mem://tools/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Factory defers tool construction until an execution context of type C is
// bound. The registry memoizes the materialized tool.
type Factory[C any] struct {
	Name         string
	Category     Category
	Dependencies []string
	Create       func(c C) (*Tool, error)
}

// ParseInput decodes raw tool input into T.
func ParseInput[T any](input json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(input, &v); err != nil {
		return v, fmt.Errorf("invalid input: %w", err)
	}
	return v, nil
}
