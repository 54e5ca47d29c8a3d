package openai

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/effective-security/askmodel/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts ...Option) llms.Model {
	t.Helper()
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" || openaiKey == "fakekey" {
		t.Skip("OPENAI_API_KEY not set")
		return nil
	}

	llm, err := New(append([]Option{WithToken(openaiKey)}, opts...)...)
	require.NoError(t, err)
	return llm
}

func TestIntegrationText(t *testing.T) {
	t.Parallel()
	llm := newTestClient(t)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant."),
		llms.MessageFromTextParts(llms.RoleHuman, "I'm a pomeranian. What kind of mammal am I?"),
	}

	rsp, err := llm.GenerateContent(context.Background(), content, llms.WithMaxTokens(100))
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "dog|canid", strings.ToLower(rsp.Choices[0].Content))
}
