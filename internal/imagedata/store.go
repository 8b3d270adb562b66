package imagedata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks an embedded image payload that is absent, not valid
// base64, or not a decodable image.
var ErrDecode = errors.New("image payload decode failed")

// Size is the pixel size of a decoded image.
type Size struct {
	Width  int
	Height int
}

// PNGStore decodes embedded image payloads and persists them as PNG files.
type PNGStore struct {
	// Compression applied by the PNG encoder, png.DefaultCompression when zero.
	Compression png.CompressionLevel
}

// NewPNGStore creates a store using the default PNG compression.
func NewPNGStore() *PNGStore {
	return &PNGStore{Compression: png.DefaultCompression}
}

// Save decodes payload and writes it to path as PNG, returning its size.
func (s *PNGStore) Save(payload, path string) (Size, error) {
	img, format, err := Decode(payload)
	if err != nil {
		return Size{}, err
	}

	bounds := img.Bounds()
	size := Size{Width: bounds.Dx(), Height: bounds.Dy()}

	if err := s.writePNG(img, path); err != nil {
		return Size{}, err
	}

	slog.Debug("Image saved", "path", path, "source_format", format, "width", size.Width, "height", size.Height)
	return size, nil
}

func (s *PNGStore) writePNG(img image.Image, path string) error {
	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	tempPath := out.Name()

	enc := png.Encoder{CompressionLevel: s.Compression}
	if err := enc.Encode(out, img); err != nil {
		out.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close image file: %w", err)
	}

	// CreateTemp uses 0600
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set image file mode: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move image file: %w", err)
	}
	return nil
}

// Decode turns a base64 payload into an image. The returned format is the
// name the image package registered the decoder under ("png", "jpeg", ...).
func Decode(payload string) (image.Image, string, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, "", fmt.Errorf("%w: empty payload", ErrDecode)
	}

	data, err := base64.StdEncoding.DecodeString(stripWhitespace(payload))
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64: %w", ErrDecode, err)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", fmt.Errorf("%w: payload is %s, not an image", ErrDecode, mtype.String())
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s payload: %w", ErrDecode, mtype.String(), err)
	}

	return img, format, nil
}

// stripWhitespace drops line breaks some tools insert into long base64 strings.
func stripWhitespace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), "")
}

// FileName returns the image file name for a source annotation file:
// its base name with the extension replaced by ".png".
func FileName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}
