package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrInvalidDataURL is returned for strings that are not base64 data URLs.
var ErrInvalidDataURL = errors.New("storage: invalid data url")

// maxFetchBytes bounds remote downloads of illustrations.
const maxFetchBytes = 64 << 20

// IsDataURL reports whether raw looks like a data URL.
func IsDataURL(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "data:")
}

// ParseDataURL decodes "data:<mime>;base64,<payload>".
func ParseDataURL(raw string) (string, []byte, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(raw[len("data:"):], ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, encoding, ok := strings.Cut(header, ";")
	if !ok || !strings.EqualFold(strings.TrimSpace(encoding), "base64") {
		return "", nil, ErrInvalidDataURL
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return "", nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}
	return mime, data, nil
}

// EncodeDataURL is the inverse of ParseDataURL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Fetch loads a blob by key from store, or from rawURL when no key is set.
// rawURL may be an http(s) URL or a data URL.
func Fetch(ctx context.Context, store BlobStore, client *http.Client, key, rawURL string) ([]byte, string, error) {
	if key = strings.TrimSpace(key); key != "" && store != nil {
		data, mime, err := store.Get(ctx, key)
		if err == nil {
			return data, mime, nil
		}
		if strings.TrimSpace(rawURL) == "" {
			return nil, "", err
		}
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, "", ErrObjectNotFound
	}
	if IsDataURL(rawURL) {
		mime, data, err := ParseDataURL(rawURL)
		return data, mime, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: create fetch request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("storage: fetch status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, "", fmt.Errorf("storage: read fetched body: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}
