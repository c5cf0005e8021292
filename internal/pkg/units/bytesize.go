package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Decimal byte size multipliers.
const (
	KB = 1000
	MB = 1000 * KB
	GB = 1000 * MB
	TB = 1000 * GB
	PB = 1000 * TB
)

var decimalAbbrs = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

var decimalMultipliers = map[byte]int64{
	'k': KB,
	'm': MB,
	'g': GB,
	't': TB,
	'p': PB,
}

// HumanSize returns a human-readable approximation of a size
// with up to 4 significant digits (e.g. "2.746MB", "796kB").
func HumanSize(size float64) string {
	return HumanSizeWithPrecision(size, 4)
}

// HumanSizeWithPrecision is HumanSize with a configurable number of significant digits.
func HumanSizeWithPrecision(size float64, precision int) string {
	i := 0
	for size >= 1000.0 && i < len(decimalAbbrs)-1 {
		size /= 1000.0
		i++
	}

	return fmt.Sprintf("%.*g%s", precision, size, decimalAbbrs[i])
}

// FromHumanSize parses a human-readable size string ("32kB", "1.5 MB", "300")
// into a number of bytes. A single space is allowed between the number
// and the unit suffix; negative sizes are rejected.
func FromHumanSize(size string) (int64, error) {
	sep := strings.LastIndexAny(size, "0123456789. ")
	if sep == -1 {
		return -1, fmt.Errorf("invalid size: %q", size)
	}

	num, sfx := size[:sep+1], size[sep+1:]
	if size[sep] == ' ' {
		num = size[:sep]
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return -1, fmt.Errorf("parse size %q: %w", size, err)
	}
	if n < 0 {
		return -1, fmt.Errorf("invalid size: %q", size)
	}

	if sfx == "" {
		return int64(n), nil
	}
	if len(sfx) > 3 {
		return -1, fmt.Errorf("invalid suffix: %q", sfx)
	}

	sfx = strings.ToLower(sfx)
	if sfx[0] == 'b' {
		if len(sfx) > 1 {
			return -1, fmt.Errorf("invalid suffix: %q", sfx)
		}
		return int64(n), nil
	}

	mul, ok := decimalMultipliers[sfx[0]]
	if !ok {
		return -1, fmt.Errorf("invalid suffix: %q", sfx)
	}

	switch {
	case len(sfx) == 2 && sfx[1] != 'b':
		return -1, fmt.Errorf("invalid suffix: %q", sfx)
	case len(sfx) == 3 && sfx[1:] != "ib":
		return -1, fmt.Errorf("invalid suffix: %q", sfx)
	}

	return int64(n * float64(mul)), nil
}
