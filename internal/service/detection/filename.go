package detection

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"crowdwatch/internal/repository/file"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidFilename = errors.New("invalid filename")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	// Files the server itself keeps in the upload directory.
	reservedNames = map[string]bool{
		file.ImageSnapshotFile: true,
		file.VideoSnapshotFile: true,
	}
)

// SanitizeFilename reduces a client supplied name to a safe base name made of
// ASCII letters, digits, dots, dashes and underscores. Accented letters keep
// their base letter.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = toASCII(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name == "" {
		return "", ErrInvalidFilename
	}
	return name, nil
}

func toASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// uploadName sanitizes name and refuses the files the server keeps next to
// the uploads.
func uploadName(name string) (string, error) {
	safe, err := SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	if reservedNames[strings.ToLower(safe)] {
		return "", ErrInvalidFilename
	}
	return safe, nil
}

// AnnotatedName is the name of the annotated copy of an uploaded file.
func AnnotatedName(name string) string {
	return "det_" + name
}

// AnnotatedVideoName replaces the extension of name with ext and adds the
// annotated prefix.
func AnnotatedVideoName(name, ext string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return AnnotatedName(stem + ext)
}
