package tools

import "context"

// NoopToolClient advertises no tools. The agent uses it when tool calling is
// disabled.
type NoopToolClient struct{}

func (NoopToolClient) List(context.Context) ([]ToolDefinition, error) {
	return nil, nil
}

func (NoopToolClient) Call(_ context.Context, name string, _ ToolArguments) (Result, error) {
	return Result{}, ErrToolNotFound
}

func (NoopToolClient) Close() error {
	return nil
}
