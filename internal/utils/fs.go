package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// MaxFilenameLength is the maximum length for a filename
const MaxFilenameLength = 200

// Windows reserved names
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// invalidCharsRegex matches invalid filename characters
var invalidCharsRegex = regexp.MustCompile(`[<>:"|?*\\/]`)

// multipleSpacesRegex matches multiple consecutive spaces/dashes
var multipleSpacesRegex = regexp.MustCompile(`[-_\s]+`)

// SanitizeFilename sanitizes a string for use as a filename
func SanitizeFilename(name string) string {
	original := name

	// Remove invalid characters
	name = invalidCharsRegex.ReplaceAllString(name, "-")

	// Replace multiple spaces/dashes with single dash
	name = multipleSpacesRegex.ReplaceAllString(name, "-")

	// Separate extension from base name
	ext := filepath.Ext(name)
	baseName := strings.TrimSuffix(name, ext)

	// Trim leading/trailing dashes and spaces from base name
	baseName = strings.Trim(baseName, "- ")

	// Check if we had invalid character substitutions
	// If original had invalid chars that created dashes before extension,
	// and the extension exists, preserve one dash before extension
	hadSubstitutions := (original != name) && invalidCharsRegex.MatchString(original)
	if hadSubstitutions && ext != "" && strings.HasSuffix(name, "-."+ext[1:]) {
		// Reconstruct with dash before extension
		name = baseName + "-" + ext
	} else {
		// Reconstruct normally
		if ext != "" {
			name = baseName + ext
		} else {
			name = baseName
		}
	}

	// Check for Windows reserved names
	upper := strings.ToUpper(name)
	baseNameUpper := strings.TrimSuffix(upper, filepath.Ext(upper))
	if windowsReserved[baseNameUpper] {
		name = "_" + name
	}

	// Limit length
	if len(name) > MaxFilenameLength {
		ext := filepath.Ext(name)
		name = name[:MaxFilenameLength-len(ext)] + ext
	}

	// Ensure the name is not empty
	if name == "" {
		name = "untitled"
	}

	return name
}

// IsValidFilename checks if a filename is valid
func IsValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	// Check for invalid characters
	if invalidCharsRegex.MatchString(name) {
		return false
	}

	// Check for Windows reserved names
	upper := strings.ToUpper(name)
	baseName := strings.TrimSuffix(upper, filepath.Ext(upper))
	if windowsReserved[baseName] {
		return false
	}

	// Check for control characters
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}

	return true
}

// EnsureDir ensures a directory exists, creating it if necessary
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// CopyFile copies src to dst, creating dst's parent directory. The copy is
// a full overwrite of dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := EnsureDir(dst); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
