package llmutils

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrImageTooLarge is returned when the downloaded content exceeds the limit.
var ErrImageTooLarge = errors.New("image exceeds the size limit")

// DownloadImageData downloads the content from the given URL and returns the
// MIME type and data. If limit is positive, the content must not exceed limit bytes.
func DownloadImageData(ctx context.Context, client *http.Client, url string, limit int64) (string, []byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create image request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to fetch image from url")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, errors.Newf("failed to fetch image from url: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}

	urlData, err := io.ReadAll(body)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read image bytes")
	}
	if limit > 0 && int64(len(urlData)) > limit {
		return "", nil, errors.WithMessagef(ErrImageTooLarge, "%s is larger than %d bytes", url, limit)
	}

	mimeType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.Contains(mimeType, "/") {
		return "", nil, errors.Newf("invalid mime type %q", resp.Header.Get("Content-Type"))
	}

	return mimeType, urlData, nil
}
