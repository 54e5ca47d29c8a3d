package openai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var (
	ErrEmptyResponse   = errors.New("openai: no response")
	ErrMissingToken    = errors.New("openai: missing API key")
	ErrUnsupportedPart = errors.New("openai: unsupported content part")
)

// LLM is an OpenAI Chat Completions model.
type LLM struct {
	client openai.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithBaseURL(values.StringsCoalesce(o.baseURL, DefaultBaseURL)),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}
	if o.timeout > 0 {
		sdkOpts = append(sdkOpts, option.WithRequestTimeout(o.timeout))
	}

	return &LLM{
		client: openai.NewClient(sdkOpts...),
		model:  values.StringsCoalesce(o.model, DefaultModel),
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: o.model}, options...)

	chatMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		msg, err := toChatMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.Temperature != nil {
		req.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	result, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
				"ID":           result.ID,
				"Model":        result.Model,
			},
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func toChatMessage(mc llms.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch mc.Role {
	case llms.RoleSystem:
		return openai.SystemMessage(mc.GetText()), nil
	case llms.RoleAI:
		return openai.AssistantMessage(mc.GetText()), nil
	case llms.RoleHuman:
		if isTextOnly(mc.Parts) {
			return openai.UserMessage(mc.GetText()), nil
		}
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(mc.Parts))
		for _, part := range mc.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				parts = append(parts, openai.TextContentPart(p.Text))
			case llms.BinaryContent:
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: p.String(),
				}))
			default:
				return openai.ChatCompletionMessageParamUnion{}, errors.WithMessagef(ErrUnsupportedPart, "%T", part)
			}
		}
		return openai.UserMessage(parts), nil
	}
	return openai.ChatCompletionMessageParamUnion{}, errors.WithMessagef(llms.ErrUnexpectedRole, "openai: role %v not supported", mc.Role)
}

func isTextOnly(parts []llms.ContentPart) bool {
	for _, part := range parts {
		if _, ok := part.(llms.TextContent); !ok {
			return false
		}
	}
	return true
}
