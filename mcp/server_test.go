package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/effective-security/askmodel/dispatcher"
	"github.com/effective-security/askmodel/mcp"
	"github.com/effective-security/askmodel/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test-host","version":"1.0.0"}}}`

type stubBackend struct {
	reply string
	err   error
}

func (s *stubBackend) AnswerText(ctx context.Context, query, model string, temperature float64, maxTokens int) (string, error) {
	return s.reply, s.err
}

func (s *stubBackend) AnswerImage(ctx context.Context, query, imageRef, model string, temperature float64, maxTokens int) (string, error) {
	return s.reply, s.err
}

func newServer(t *testing.T, b dispatcher.Backend) *mcp.Server {
	catalog := tools.DefaultCatalog()
	d, err := dispatcher.New(catalog, b)
	require.NoError(t, err)

	s, err := mcp.NewServer("openai-server", "0.1.0", catalog, d)
	require.NoError(t, err)
	return s
}

func handle(t *testing.T, s *mcp.Server, msg string) gjson.Result {
	resp := s.HandleMessage(context.Background(), json.RawMessage(msg))
	require.NotNil(t, resp)
	js, err := json.Marshal(resp)
	require.NoError(t, err)
	return gjson.ParseBytes(js)
}

func TestNewServer(t *testing.T) {
	_, err := mcp.NewServer("openai-server", "0.1.0", nil, nil)
	assert.EqualError(t, err, "catalog and dispatcher are required")
}

func TestInitialize(t *testing.T) {
	s := newServer(t, &stubBackend{})

	res := handle(t, s, initializeRequest)
	assert.Equal(t, "openai-server", res.Get("result.serverInfo.name").String())
	assert.Equal(t, "0.1.0", res.Get("result.serverInfo.version").String())
	assert.True(t, res.Get("result.capabilities.tools").Exists())
}

func TestListTools(t *testing.T) {
	s := newServer(t, &stubBackend{})
	handle(t, s, initializeRequest)

	res := handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	list := res.Get("result.tools").Array()
	require.Len(t, list, 2)

	byName := map[string]gjson.Result{}
	for _, tool := range list {
		byName[tool.Get("name").String()] = tool
	}

	ask := byName[tools.AskModel]
	require.True(t, ask.Exists())
	assert.Equal(t, "Ask my assistant models a direct question", ask.Get("description").String())
	assert.Equal(t, "object", ask.Get("inputSchema.type").String())
	assert.Equal(t, `["query"]`, ask.Get("inputSchema.required").Raw)
	assert.Equal(t, `["gpt-4","gpt-3.5-turbo"]`, ask.Get("inputSchema.properties.model.enum").Raw)
	assert.Equal(t, int64(500), ask.Get("inputSchema.properties.max_output_tokens.default").Int())

	vision := byName[tools.AskModelVision]
	require.True(t, vision.Exists())
	assert.Equal(t, `["query","image_reference"]`, vision.Get("inputSchema.required").Raw)
	assert.Equal(t, "gpt-4o", vision.Get("inputSchema.properties.model.default").String())
}

func TestCallTool(t *testing.T) {
	s := newServer(t, &stubBackend{reply: "4"})
	handle(t, s, initializeRequest)

	res := handle(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ask-model","arguments":{"query":"2+2?"}}}`)
	content := res.Get("result.content").Array()
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0].Get("type").String())
	assert.Equal(t, "OpenAI Response:\n4", content[0].Get("text").String())
	assert.False(t, res.Get("result.isError").Bool())

	// failures are returned as text content with the Error prefix
	res = handle(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"ask-model-vision","arguments":{"query":"what is this?"}}}`)
	content = res.Get("result.content").Array()
	require.Len(t, content, 1)
	assert.Equal(t, "Error: missing required argument: image_reference", content[0].Get("text").String())
	assert.False(t, res.Get("result.isError").Bool())

	res = handle(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"ask-model"}}`)
	assert.Equal(t, "Error: No arguments provided", res.Get("result.content.0.text").String())

	// unknown tools are answered with the error envelope
	res = handle(t, s, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"bogus","arguments":{"query":"x"}}}`)
	assert.False(t, res.Get("error").Exists())
	assert.Equal(t, int64(6), res.Get("id").Int())
	content = res.Get("result.content").Array()
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0].Get("type").String())
	assert.Equal(t, "Error: Unknown tool: bogus", content[0].Get("text").String())

	res = handle(t, s, `{"jsonrpc":"2.0","id":"seven","method":"tools/call","params":{"name":"bogus"}}`)
	assert.Equal(t, "seven", res.Get("id").String())
	assert.Equal(t, "Error: Unknown tool: bogus", res.Get("result.content.0.text").String())
}

func TestServeStdio(t *testing.T) {
	s := newServer(t, &stubBackend{reply: "4"})

	in := strings.NewReader(initializeRequest + "\n" +
		`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	err := s.ServeStdio(context.Background(), in, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "openai-server", gjson.Get(lines[0], "result.serverInfo.name").String())
	assert.Len(t, gjson.Get(lines[1], "result.tools").Array(), 2)
}

func TestServeStdio_ToolCalls(t *testing.T) {
	s := newServer(t, &stubBackend{reply: "4"})

	// the last line has no trailing newline
	in := strings.NewReader(initializeRequest + "\n" +
		"not json\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"bogus","arguments":{"query":"x"}}}` + "\n" +
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ask-model","arguments":{"query":"2+2?"}}}`)
	var out bytes.Buffer

	err := s.ServeStdio(context.Background(), in, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, int64(-32700), gjson.Get(lines[1], "error.code").Int())
	assert.Equal(t, "Error: Unknown tool: bogus", gjson.Get(lines[2], "result.content.0.text").String())
	assert.Equal(t, "OpenAI Response:\n4", gjson.Get(lines[3], "result.content.0.text").String())
}

func TestServeStdio_Canceled(t *testing.T) {
	s := newServer(t, &stubBackend{reply: "4"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := s.ServeStdio(ctx, strings.NewReader(""), &out)
	assert.NoError(t, err)
}
