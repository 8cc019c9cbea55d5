package artifacts

import (
	"encoding/base64"
	"mime"
	"strings"

	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

const dataURIPrefix = "data:"

// inlinePayload is a decoded base64 data URI.
type inlinePayload struct {
	MimeType string
	Data     []byte
}

var extensionsByMime = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
	"video/mp4":  "mp4",
	"video/webm": "webm",
	"text/plain": "txt",
}

// isInline reports whether ref carries base64 bytes that must be uploaded.
func isInline(ref string) bool {
	if !strings.HasPrefix(ref, dataURIPrefix) {
		return false
	}
	header, _, ok := strings.Cut(ref, ",")
	return ok && strings.HasSuffix(header, ";base64")
}

func parseDataURI(ref string) (*inlinePayload, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, dataURIPrefix), ",")
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed data uri")
	}
	mediaType := strings.TrimSuffix(header, ";base64")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	mimeType, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed data uri media type")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed data uri payload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "data uri payload is empty")
	}
	return &inlinePayload{MimeType: mimeType, Data: data}, nil
}

func extensionFor(mimeType string) string {
	if ext, ok := extensionsByMime[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
