package fsutil

import (
	"fmt"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Platform selects which set of rules SanitizeName applies.
type Platform string

const (
	PlatformAuto      Platform = "auto"
	PlatformPOSIX     Platform = "posix"
	PlatformWindows   Platform = "windows"
	PlatformUniversal Platform = "universal"
)

// maxNameBytes is the common filename length limit of ext4, APFS and NTFS.
const maxNameBytes = 255

const windowsInvalidChars = `\/:*?"<>|`

var windowsReservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ParsePlatform validates a platform name read from configuration.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlatformAuto, nil
	case PlatformAuto, PlatformPOSIX, PlatformWindows, PlatformUniversal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown filename platform %q", s)
	}
}

// Resolve replaces PlatformAuto with the platform the binary runs on.
func (p Platform) Resolve() Platform {
	if p != PlatformAuto && p != "" {
		return p
	}
	if runtime.GOOS == "windows" {
		return PlatformWindows
	}
	return PlatformPOSIX
}

// SanitizeName turns arbitrary text into a single valid path segment.
// Control characters and path separators are always removed; the windows
// and universal platforms also drop characters Windows refuses in names
// and rename reserved device names. The result may be empty.
func SanitizeName(name string, platform Platform) string {
	platform = platform.Resolve()
	strict := platform == PlatformWindows || platform == PlatformUniversal

	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r):
			continue
		case r == '/':
			continue
		case strict && strings.ContainsRune(windowsInvalidChars, r):
			continue
		}
		sb.WriteRune(r)
	}

	out := strings.TrimSpace(sb.String())
	if strict {
		out = strings.TrimRight(out, ". ")
		stem, _, _ := strings.Cut(out, ".")
		if _, ok := windowsReservedNames[strings.ToUpper(stem)]; ok {
			out = "_" + out
		}
	}

	if out == "." || out == ".." {
		return ""
	}

	return truncateBytes(out, maxNameBytes)
}

// BaseName strips any directory components a sender may have put into a
// declared attachment name, treating both slash kinds as separators.
func BaseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
