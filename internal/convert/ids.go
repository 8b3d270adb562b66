package convert

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxHashedID keeps hashed ids within the integer range a float64 represents
// exactly, so JSON consumers in any language read them back unchanged.
const maxHashedID = 1<<53 - 1

// ImageID derives the image id for a source file from its base name without
// extension. Decimal names are used as-is ("12.json" -> 12). Other names are
// hashed with xxhash64 truncated to 53 bits, which is stable across runs and
// machines. Two names can still hash to the same id, and a hashed id can
// equal a numeric file name; the batch driver rejects such duplicates before
// converting them and Merge rejects any that reach it.
func ImageID(sourcePath string) int64 {
	name := baseName(sourcePath)
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		return id
	}
	return HashID(name)
}

// HashID is the fallback id for a non-numeric name.
func HashID(name string) int64 {
	return int64(xxhash.Sum64String(name) & maxHashedID)
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
