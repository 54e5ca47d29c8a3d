package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/pkg/llms"
	"github.com/effective-security/askmodel/pkg/llmutils"
	"github.com/effective-security/askmodel/pkg/metricskey"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/askmodel", "backend")

var (
	// ErrBackend marks failures of the remote model call.
	ErrBackend = errors.New("backend error")
	// ErrResource marks failures to read the referenced image.
	ErrResource = errors.New("resource error")
	// ErrEmptyResponse is returned when the model replied with no choices.
	ErrEmptyResponse = errors.New("model returned empty response")
	// ErrUnsupported is returned when the model provider lacks the capability for the call.
	ErrUnsupported = errors.New("not supported by the model provider")
)

// System prompts
const (
	TextSystemPrompt   = "You are a helpful assistant."
	VisionSystemPrompt = "You are a helpful assistant that can analyze images."
)

// Client answers questions with the LLM model.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	model        llms.Model
	httpClient   *http.Client
	maxImageSize int64
	allowRemote  bool
	resolveModel func(model string) string
}

// New returns a Client for the model.
func New(model llms.Model, opts ...Option) (*Client, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	c := &Client{
		model:        model,
		httpClient:   http.DefaultClient,
		maxImageSize: DefaultMaxImageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AnswerText answers a text query.
func (c *Client) AnswerText(ctx context.Context, query, model string, temperature float64, maxTokens int) (string, error) {
	if err := c.checkCapability(llms.CapabilityText, "text"); err != nil {
		return "", err
	}
	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, TextSystemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, query),
	}
	return c.generate(ctx, messages, model, temperature, maxTokens)
}

// AnswerImage reads the image at imageRef and answers the query about it.
func (c *Client) AnswerImage(ctx context.Context, query, imageRef, model string, temperature float64, maxTokens int) (string, error) {
	if err := c.checkCapability(llms.CapabilityVision, "images"); err != nil {
		return "", err
	}
	mimeType, data, err := c.LoadImage(ctx, imageRef)
	if err != nil {
		return "", err
	}

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, VisionSystemPrompt),
		llms.MessageFromParts(llms.RoleHuman,
			llms.TextPart(query),
			llms.BinaryPart(mimeType, data),
		),
	}
	return c.generate(ctx, messages, model, temperature, maxTokens)
}

func (c *Client) checkCapability(capability llms.Capability, what string) error {
	provider := c.model.GetProviderType()
	if provider.Supports(capability) {
		return nil
	}
	return errors.Mark(errors.WithMessagef(ErrUnsupported, "%s: %s", what, provider), ErrBackend)
}

func (c *Client) generate(ctx context.Context, messages []llms.Message, model string, temperature float64, maxTokens int) (string, error) {
	if c.resolveModel != nil {
		model = c.resolveModel(model)
	}
	modelName := values.StringsCoalesce(model, c.model.GetName())
	provider := string(c.model.GetProviderType())

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "querying_model",
		"provider", provider,
		"model", modelName,
		"prompt", messages[len(messages)-1].GetContent(),
	)

	started := time.Now()
	bytesSent := llmutils.CountMessagesContentSize(messages)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), provider, modelName)

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithModel(modelName),
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	metricskey.PerfLLMCall.MeasureSince(started, provider, modelName)
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, provider, modelName)
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "failed_to_query_model",
			"provider", provider,
			"model", modelName,
			"err", err.Error(),
		)
		return "", errors.Mark(err, ErrBackend)
	}

	if resp == nil || len(resp.Choices) == 0 {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, provider, modelName)
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "empty_choices",
			"provider", provider,
			"model", modelName,
		)
		return "", errors.Mark(ErrEmptyResponse, ErrBackend)
	}

	metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), provider, modelName)
	tokensIn, tokensOut := resp.CountTokens()
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), provider, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), provider, modelName)

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "model_replied",
		"provider", provider,
		"model", modelName,
		"input_tokens", tokensIn,
		"output_tokens", tokensOut,
		"elapsed", time.Since(started).String(),
	)

	return resp.Choices[0].Content, nil
}
