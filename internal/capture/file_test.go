package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Minimal PNG header: enough for magic-byte sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestLoadFromReader_PNG(t *testing.T) {
	img, err := LoadFromReader(bytes.NewReader(pngHeader), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("expected image/png, got %s", img.MIMEType)
	}
}

func TestLoadFromReader_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		max  int64
	}{
		{"empty", nil, 0},
		{"text file", []byte("hello, this is not an image"), 0},
		{"too large", bytes.Repeat([]byte{0xFF}, 64), 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(bytes.NewReader(tt.data), tt.max)
			if !errors.Is(err, ErrReadFailure) {
				t.Errorf("expected ErrReadFailure, got %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, pngHeader, 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	img, err := LoadFromFile(path, DefaultMaxBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(img.Data, pngHeader) {
		t.Error("expected file bytes to be returned unchanged")
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.jpg"), 0); !errors.Is(err, ErrReadFailure) {
		t.Errorf("expected ErrReadFailure for missing file, got %v", err)
	}
}

func TestIsHEIC(t *testing.T) {
	heic := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic")...)
	if !isHEIC(heic) {
		t.Error("expected HEIC brand to be recognised")
	}
	if isHEIC(pngHeader) {
		t.Error("PNG is not HEIC")
	}
}

func TestLoadFromDataURL(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	for _, in := range []string{"data:image/png;base64," + encoded, encoded, "  " + encoded + "\n"} {
		img, err := LoadFromDataURL(in, 0)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if img.MIMEType != "image/png" || !bytes.Equal(img.Data, pngHeader) {
			t.Errorf("%q: unexpected image %+v", in, img)
		}
	}

	for _, bad := range []string{"", "data:image/png,rawbytes", "data:image/png;base64", "not base64 at all!"} {
		if _, err := LoadFromDataURL(bad, 0); !errors.Is(err, ErrReadFailure) {
			t.Errorf("%q: expected ErrReadFailure, got %v", bad, err)
		}
	}
}
