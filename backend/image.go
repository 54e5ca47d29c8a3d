package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"
	"github.com/effective-security/askmodel/pkg/llmutils"
)

var (
	// ErrImageTooLarge is returned when the image exceeds the configured size limit.
	ErrImageTooLarge = llmutils.ErrImageTooLarge
	// ErrUnsupportedImage is returned for image formats the models do not accept.
	ErrUnsupportedImage = errors.New("unsupported image format")
)

var supportedMIMETypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// LoadImage reads the image at imageRef, a filesystem path or,
// when remote images are allowed, an http(s) URL.
// It returns the content type and the image bytes.
func (c *Client) LoadImage(ctx context.Context, imageRef string) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	if isRemote(imageRef) {
		if !c.allowRemote {
			return "", nil, errors.Mark(errors.Newf("remote images are not allowed: %s", imageRef), ErrResource)
		}
		mimeType, data, err := llmutils.DownloadImageData(ctx, c.httpClient, imageRef, c.maxImageSize)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			return "", nil, errors.Mark(err, ErrResource)
		}
		if !slices.Contains(supportedMIMETypes, mimeType) {
			return "", nil, errors.Mark(errors.WithMessagef(ErrUnsupportedImage, "%s: %s", mimeType, imageRef), ErrResource)
		}
		return mimeType, data, nil
	}

	mimeType, err := MIMEType(imageRef)
	if err != nil {
		return "", nil, errors.Mark(err, ErrResource)
	}
	data, err := c.readFile(ctx, imageRef)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

func (c *Client) readFile(ctx context.Context, name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Mark(err, ErrResource)
	}
	defer f.Close()

	var r io.Reader = &contextReader{ctx: ctx, r: f}
	if c.maxImageSize > 0 {
		r = io.LimitReader(r, c.maxImageSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrapf(err, "failed to read %s", name), ErrResource)
	}
	if c.maxImageSize > 0 && int64(len(data)) > c.maxImageSize {
		return nil, errors.Mark(
			errors.WithMessagef(ErrImageTooLarge, "%s is larger than %d bytes", name, c.maxImageSize),
			ErrResource)
	}
	return data, nil
}

// MIMEType returns the image content type by the file extension,
// image/jpeg if the extension is not recognized.
// Formats known to be rejected by the models, such as BMP and TIFF,
// return ErrUnsupportedImage.
func MIMEType(name string) (string, error) {
	if strings.EqualFold(filepath.Ext(name), ".webp") {
		return "image/webp", nil
	}
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return "image/jpeg", nil
	}
	switch format {
	case imaging.JPEG:
		return "image/jpeg", nil
	case imaging.PNG:
		return "image/png", nil
	case imaging.GIF:
		return "image/gif", nil
	}
	return "", errors.WithMessagef(ErrUnsupportedImage, "%s: %s", format, name)
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
