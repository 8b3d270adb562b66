package convert

import (
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/labelme2coco/internal/imagedata"
	"github.com/lehigh-university-libraries/labelme2coco/internal/labelme"
)

var (
	// ErrMalformedInput covers unreadable files, invalid JSON and missing fields.
	ErrMalformedInput = labelme.ErrMalformed

	// ErrDecode covers an absent or corrupt embedded image payload.
	ErrDecode = imagedata.ErrDecode

	// ErrDuplicateImageID is reported when a file's image id is already
	// used by a file merged before it.
	ErrDuplicateImageID = errors.New("duplicate image id")
)

// FileError is the failure of one source file. The file contributes nothing
// to the dataset.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Kind names the failure class for reports.
func (e *FileError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrDecode):
		return "decode"
	case errors.Is(e.Err, ErrDuplicateImageID):
		return "duplicate_image_id"
	case errors.Is(e.Err, ErrMalformedInput):
		return "malformed_input"
	default:
		return "io"
	}
}
