package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/olivier-w/beatframe/internal/encode"
)

var invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)

// DefaultProjectName is used when a project identifier sanitizes to nothing.
const DefaultProjectName = "beatframe"

// SanitizeFilename strips characters invalid in filenames and trims
// whitespace and dots.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(strings.TrimSpace(name), ".")
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultProjectName
	}
	return name
}

// OutputName is the download name for a project's container.
func OutputName(projectID string, format encode.Format) string {
	return SanitizeFilename(projectID) + format.Ext()
}

// SaveContainer writes data as name inside dir and returns the path. It
// refuses to overwrite an existing file.
func SaveContainer(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	dest := filepath.Join(dir, name)
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("file %q already exists", dest)
		}
		return "", fmt.Errorf("creating output: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("writing output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("writing output: %w", err)
	}
	return dest, nil
}
