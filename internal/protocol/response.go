package protocol

// Response is what a model provider returns for one request. It is either a
// TextResponse or a ToolCallsResponse; provider adapters convert their native
// shapes into one of the two before returning.
type Response interface {
	isResponse()
}

// TextResponse is a final answer. Text may be empty.
type TextResponse struct {
	Text string
}

// ToolCallsResponse asks the client to run Calls, in order. Text holds any
// prose the model emitted alongside the calls.
type ToolCallsResponse struct {
	Text  string
	Calls []ToolCall
}

func (TextResponse) isResponse()      {}
func (ToolCallsResponse) isResponse() {}

// NewResponse picks the variant matching what the provider produced.
func NewResponse(text string, calls []ToolCall) Response {
	if len(calls) == 0 {
		return TextResponse{Text: text}
	}
	return ToolCallsResponse{Text: text, Calls: calls}
}
