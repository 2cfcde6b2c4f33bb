package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"
)

const defaultExtension = "jpg"

// Sniffed types that are never photos; anything else is stored even when it
// cannot be decoded here (AVIF and HEIC, for instance).
var rejectedTypePrefixes = []string{
	"text/",
	"application/pdf",
	"application/zip",
	"application/x-gzip",
	"application/postscript",
	"audio/",
	"video/",
	"font/",
}

// inspectPayload checks that data can plausibly be served as a photo and picks
// the file extension for it.
// Returns:
//   - string: jpg, png, gif or webp. Undecodable payloads get jpg.
//   - error: non-nil if data is empty or sniffs as a known non-image type.
func inspectPayload(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("payload is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && cfg.Width > 0 && cfg.Height > 0 {
		return extensionFor(format), nil
	}

	contentType := http.DetectContentType(data)
	for _, prefix := range rejectedTypePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return "", fmt.Errorf("payload is %s, not an image", contentType)
		}
	}

	if format, ok := strings.CutPrefix(contentType, "image/"); ok {
		return extensionFor(format), nil
	}
	return defaultExtension, nil
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "png", "gif", "webp":
		return format
	default:
		return defaultExtension
	}
}
