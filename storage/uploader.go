package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// PublicURLResolver turns a stored object key (for example a user's avatar_key) into a public URL.
type PublicURLResolver interface {
	GetPublicURL(key string) string
}

type FileUploader interface {
	PublicURLResolver
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
}

// StaticURLResolver resolves keys against a fixed base URL without touching object storage.
type StaticURLResolver struct {
	BaseURL string
}

func (r StaticURLResolver) GetPublicURL(key string) string {
	return joinPublicURL(r.BaseURL, key)
}

func joinPublicURL(base, key string) string {
	if base == "" || key == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	pathURL, err := url.Parse(strings.TrimPrefix(key, "/"))
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(pathURL).String()
}
