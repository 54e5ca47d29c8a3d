package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/backend"
	"github.com/effective-security/askmodel/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	lock     sync.Mutex
	provider llms.ProviderType
	reply    string
	err      error
	empty    bool
	messages []llms.Message
	opts     llms.CallOptions
	calls    int
}

func (f *fakeLLM) GetName() string {
	return "gpt-4"
}

func (f *fakeLLM) GetProviderType() llms.ProviderType {
	if f.provider != "" {
		return f.provider
	}
	return llms.ProviderOpenAI
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	f.messages = messages
	f.opts = llms.NewCallOptions(llms.CallOptions{}, options...)
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: f.reply,
				GenerationInfo: map[string]any{
					"InputTokens":  int64(10),
					"OutputTokens": int64(1),
				},
			},
		},
	}, nil
}

func TestNew(t *testing.T) {
	_, err := backend.New(nil)
	assert.EqualError(t, err, "model is required")
}

func TestAnswerText(t *testing.T) {
	llm := &fakeLLM{reply: "4"}
	c, err := backend.New(llm)
	require.NoError(t, err)

	res, err := c.AnswerText(context.Background(), "2+2?", "gpt-3.5-turbo", 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, "4", res)

	require.Len(t, llm.messages, 2)
	assert.Equal(t, llms.RoleSystem, llm.messages[0].Role)
	assert.Equal(t, backend.TextSystemPrompt, llm.messages[0].GetText())
	assert.Equal(t, llms.RoleHuman, llm.messages[1].Role)
	assert.Equal(t, "2+2?", llm.messages[1].GetText())

	assert.Equal(t, "gpt-3.5-turbo", llm.opts.Model)
	assert.Equal(t, 100, llm.opts.MaxTokens)
	require.NotNil(t, llm.opts.Temperature)
	assert.Equal(t, 0.2, *llm.opts.Temperature)
}

func TestAnswerText_ModelResolver(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	c, err := backend.New(llm, backend.WithModelResolver(func(model string) string {
		if model == "gpt-4" {
			return "gpt-4.1"
		}
		return model
	}))
	require.NoError(t, err)

	_, err = c.AnswerText(context.Background(), "hi", "gpt-4", 0.7, 500)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", llm.opts.Model)
}

func TestAnswerText_Errors(t *testing.T) {
	llm := &fakeLLM{err: errors.New("401 Unauthorized")}
	c, err := backend.New(llm)
	require.NoError(t, err)

	_, err = c.AnswerText(context.Background(), "hi", "gpt-4", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrBackend))
	assert.False(t, errors.Is(err, backend.ErrResource))
	assert.Equal(t, "401 Unauthorized", err.Error())

	llm = &fakeLLM{empty: true}
	c, err = backend.New(llm)
	require.NoError(t, err)

	_, err = c.AnswerText(context.Background(), "hi", "gpt-4", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrBackend))
	assert.True(t, errors.Is(err, backend.ErrEmptyResponse))
}

func TestAnswer_UnsupportedProvider(t *testing.T) {
	llm := &fakeLLM{reply: "4", provider: "TEXTONLY"}
	c, err := backend.New(llm)
	require.NoError(t, err)

	_, err = c.AnswerText(context.Background(), "2+2?", "gpt-4", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrBackend))
	assert.True(t, errors.Is(err, backend.ErrUnsupported))
	assert.Equal(t, "text: TEXTONLY: not supported by the model provider", err.Error())

	_, err = c.AnswerImage(context.Background(), "what is this?", "/missing.jpg", "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrUnsupported))
	assert.Equal(t, "images: TEXTONLY: not supported by the model provider", err.Error())
	assert.Equal(t, 0, llm.calls)
}

func TestAnswerImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "cat.png")
	require.NoError(t, os.WriteFile(png, []byte("pngdata"), 0o600))

	llm := &fakeLLM{reply: "a cat"}
	c, err := backend.New(llm)
	require.NoError(t, err)

	res, err := c.AnswerImage(context.Background(), "what is this?", png, "gpt-4o", 0.7, 500)
	require.NoError(t, err)
	assert.Equal(t, "a cat", res)

	require.Len(t, llm.messages, 2)
	assert.Equal(t, backend.VisionSystemPrompt, llm.messages[0].GetText())
	require.Len(t, llm.messages[1].Parts, 2)
	assert.Equal(t, llms.TextPart("what is this?"), llm.messages[1].Parts[0])
	assert.Equal(t, llms.BinaryPart("image/png", []byte("pngdata")), llm.messages[1].Parts[1])
	assert.Equal(t, "gpt-4o", llm.opts.Model)
}

func TestAnswerImage_Errors(t *testing.T) {
	llm := &fakeLLM{reply: "a cat"}
	c, err := backend.New(llm, backend.WithMaxImageSize(4))
	require.NoError(t, err)

	_, err = c.AnswerImage(context.Background(), "what is this?", "/missing.jpg", "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrResource))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, "open /missing.jpg: no such file or directory", err.Error())

	big := filepath.Join(t.TempDir(), "big.jpg")
	require.NoError(t, os.WriteFile(big, []byte("0123456789"), 0o600))
	_, err = c.AnswerImage(context.Background(), "what is this?", big, "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrResource))
	assert.True(t, errors.Is(err, backend.ErrImageTooLarge))

	// the model is never called when the image cannot be read
	assert.Equal(t, 0, llm.calls)

	_, err = c.AnswerImage(context.Background(), "what is this?", "https://example.com/cat.png", "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrResource))
	assert.Contains(t, err.Error(), "remote images are not allowed")

	bmp := filepath.Join(t.TempDir(), "cat.bmp")
	require.NoError(t, os.WriteFile(bmp, []byte("bmp"), 0o600))
	_, err = c.AnswerImage(context.Background(), "what is this?", bmp, "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrResource))
	assert.True(t, errors.Is(err, backend.ErrUnsupportedImage))
	assert.Equal(t, "BMP: "+bmp+": unsupported image format", err.Error())
	assert.Equal(t, 0, llm.calls)
}

func TestAnswerImage_Canceled(t *testing.T) {
	img := filepath.Join(t.TempDir(), "cat.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpg"), 0o600))

	llm := &fakeLLM{reply: "a cat"}
	c, err := backend.New(llm)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.AnswerImage(ctx, "what is this?", img, "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, llm.calls)
}

func TestAnswerImage_Remote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.webp" && r.URL.Path != "/cat.bmp" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/cat.bmp" {
			w.Header().Set("Content-Type", "image/bmp")
			_, _ = w.Write([]byte("bmpdata"))
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webpdata"))
	}))
	defer server.Close()

	llm := &fakeLLM{reply: "a cat"}
	c, err := backend.New(llm,
		backend.WithRemoteImages(true),
		backend.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	res, err := c.AnswerImage(context.Background(), "what is this?", server.URL+"/cat.webp", "gpt-4o", 0.7, 500)
	require.NoError(t, err)
	assert.Equal(t, "a cat", res)
	assert.Equal(t, llms.BinaryPart("image/webp", []byte("webpdata")), llm.messages[1].Parts[1])

	_, err = c.AnswerImage(context.Background(), "what is this?", server.URL+"/missing.png", "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrResource))

	_, err = c.AnswerImage(context.Background(), "what is this?", server.URL+"/cat.bmp", "gpt-4o", 0.7, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrResource))
	assert.True(t, errors.Is(err, backend.ErrUnsupportedImage))
}

func TestMIMEType(t *testing.T) {
	tcases := map[string]string{
		"/tmp/a.jpg":  "image/jpeg",
		"/tmp/a.JPEG": "image/jpeg",
		"/tmp/a.png":  "image/png",
		"/tmp/a.gif":  "image/gif",
		"/tmp/a.webp": "image/webp",
		"/tmp/a.heic": "image/jpeg",
		"/tmp/a":      "image/jpeg",
	}
	for name, exp := range tcases {
		mimeType, err := backend.MIMEType(name)
		require.NoError(t, err, name)
		assert.Equal(t, exp, mimeType, name)
	}

	for _, name := range []string{"/tmp/a.bmp", "/tmp/a.tif", "/tmp/a.TIFF"} {
		_, err := backend.MIMEType(name)
		assert.True(t, errors.Is(err, backend.ErrUnsupportedImage), name)
	}
}
