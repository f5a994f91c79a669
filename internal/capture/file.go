package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/h2non/bimg"

	"github.com/fleveque/ecosort/internal/model"
)

// DefaultMaxBytes bounds file and upload reads when no limit is configured.
const DefaultMaxBytes int64 = 10 << 20

// bimg type names mapped to the MIME types the classifier accepts.
var acceptedTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"heif": "image/heif",
	"avif": "image/avif",
	"gif":  "image/gif",
}

// LoadFromFile reads an image file from disk.
func LoadFromFile(path string, maxBytes int64) (model.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: %w", ErrReadFailure, err)
	}
	defer f.Close()

	return LoadFromReader(f, maxBytes)
}

// LoadFromReader reads an uploaded image, rejecting empty input, non-images and
// anything larger than maxBytes.
func LoadFromReader(r io.Reader, maxBytes int64) (model.Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	// Read one byte past the limit so an oversized input is detected rather
	// than silently truncated.
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: reading: %w", ErrReadFailure, err)
	}
	if int64(len(data)) > maxBytes {
		return model.Image{}, fmt.Errorf("%w: image larger than %d bytes", ErrReadFailure, maxBytes)
	}
	if len(data) == 0 {
		return model.Image{}, fmt.Errorf("%w: empty file", ErrReadFailure)
	}

	mime, err := DetectMIMEType(data)
	if err != nil {
		return model.Image{}, err
	}
	return model.Image{Data: data, MIMEType: mime}, nil
}

// LoadFromDataURL decodes a "data:<mime>;base64,<payload>" string, or bare
// base64, as sent by the browser capture page. The declared MIME type is
// ignored; the bytes are sniffed like any other upload.
func LoadFromDataURL(s string, maxBytes int64) (model.Image, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		i := strings.Index(payload, ",")
		if i < 0 || !strings.HasSuffix(payload[:i], ";base64") {
			return model.Image{}, fmt.Errorf("%w: malformed data URL", ErrReadFailure)
		}
		payload = payload[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: decoding base64: %w", ErrReadFailure, err)
	}
	return LoadFromReader(bytes.NewReader(data), maxBytes)
}

// DetectMIMEType sniffs the image format from magic bytes. libvips (via bimg)
// knows HEIF and AVIF, which http.DetectContentType does not.
func DetectMIMEType(data []byte) (string, error) {
	if mime, ok := acceptedTypes[bimg.DetermineImageTypeName(data)]; ok {
		return mime, nil
	}

	// Fallback for formats this libvips build was compiled without.
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return ct, nil
	}
	if isHEIC(data) {
		return "image/heic", nil
	}
	return "", fmt.Errorf("%w: not a supported image type", ErrReadFailure)
}

// isHEIC checks the ISO-BMFF "ftyp" box brand used by iPhone photos.
func isHEIC(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "mif1", "msf1", "heim", "heis":
		return true
	}
	return false
}
