package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object describes a stored blob.
type Object struct {
	Key         string
	URL         string
	ContentType string
}

// BlobStore persists binary artifacts and hands out URLs for them.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Sign returns a time-limited URL for key. Stores without access
	// control return their public URL.
	Sign(ctx context.Context, key string) (string, error)
}

// NewKey builds a collision-free key under prefix with an extension derived
// from contentType, e.g. "animations/<uuid>.mp4".
func NewKey(prefix, contentType string) string {
	ext := extensionForMIME(contentType)
	if ext == "" {
		ext = ".bin"
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return uuid.NewString() + ext
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
}

// ResolveURL signs key when present and falls back to storedURL when signing
// is impossible or fails.
func ResolveURL(ctx context.Context, store BlobStore, key, storedURL string) string {
	key = strings.TrimSpace(key)
	if key != "" && store != nil {
		if signed, err := store.Sign(ctx, key); err == nil && signed != "" {
			return signed
		}
	}
	return strings.TrimSpace(storedURL)
}

func extensionForMIME(mime string) string {
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ""
	}
}

func mimeForExtension(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return "application/octet-stream"
	}
	switch strings.ToLower(key[idx:]) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
