package fat

import (
	"path/filepath"
	"strings"

	"github.com/arthurlm/atariserialdisk/internal/errs"
)

// ToDOSName splits a host filename into its 8.3 stem and extension,
// truncating each to its wire-format width. It rejects non-ASCII names and
// names with no stem (e.g. "." or "").
//
// Splitting follows the same rule as a path's file stem/extension: the
// extension is whatever follows the last dot, unless that dot is the first
// character, in which case the whole name is the stem (a dotfile has no
// extension).
func ToDOSName(name string) (stem string, ext string, err errs.DriverError) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", "", errs.ErrInvalidFilename.WithMessage("no filename in path " + name)
	}

	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		stem, ext = base, ""
	} else {
		stem, ext = base[:idx], base[idx+1:]
	}

	if !isASCII(stem) || !isASCII(ext) {
		return "", "", errs.ErrInvalidChars.WithMessage("non-ASCII characters in " + name)
	}

	stem = truncate(stem, 8)
	ext = truncate(ext, 3)
	return stem, ext, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

func truncate(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s
}
