package dispatcher

// Status of the response envelope
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Envelope is the uniform response returned for every invocation.
type Envelope struct {
	Status Status `json:"status"`
	// Text carries the labeled backend result on success,
	// or the "Error: " prefixed diagnostic on failure.
	Text string `json:"text"`
}

// IsError returns true if the envelope reports a failure.
func (e *Envelope) IsError() bool {
	return e.Status == StatusError
}

// Invocation is a single request to execute a tool.
type Invocation struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ResolvedArguments are the invocation arguments after defaults are applied.
type ResolvedArguments struct {
	Query           string  `json:"query"`
	ImageReference  string  `json:"image_reference,omitempty"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

func okEnvelope(label, text string) *Envelope {
	return &Envelope{
		Status: StatusOK,
		Text:   label + ":\n" + text,
	}
}

func errorEnvelope(err error) *Envelope {
	return &Envelope{
		Status: StatusError,
		Text:   "Error: " + err.Error(),
	}
}
