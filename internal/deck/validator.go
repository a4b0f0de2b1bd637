package deck

import (
	"fmt"
	"os"
	"strings"

	"github.com/spherical/deck-narrator/internal/domain"
)

const largeDeckBytes = 100 * 1024 * 1024

// ValidateSource checks that path is a readable regular file whose
// extension matches format. It returns the file size.
func ValidateSource(path string, format domain.DeckFormat) (int64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return 0, domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return 0, domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	detected, err := Detect(path)
	if err != nil {
		return 0, err
	}
	if detected != format {
		return 0, domain.ValidationError(fmt.Sprintf("file %s is %s, not %s", path, detected, format), nil)
	}

	if info.Size() == 0 {
		return 0, domain.ValidationError(fmt.Sprintf("file is empty: %s", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return info.Size(), nil
}

// IsLarge reports whether a deck of size bytes is expected to render slowly.
func IsLarge(size int64) bool {
	return size > largeDeckBytes
}
