package errors

import (
	"strings"
	"unicode"
)

const (
	maxFilenameLength   = 255
	maxIdentifierLength = 128
)

// ValidateFilename validates an uploaded filename before it becomes part of a
// storage key. The name must be a plain basename.
//
// Validation rules:
//   - No empty names
//   - Maximum length of 255 bytes
//   - No control characters or null bytes
//   - No path separators (/ or \)
//   - Not "." or ".."
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}

	if len(name) > maxFilenameLength {
		return New(ErrCodeInvalidInput, "filename too long (max %d characters)", maxFilenameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "filename contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators")
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidInput, "filename cannot be %q", name)
	}

	return nil
}

// ValidateIdentifier validates a file ID, template ID or template display name.
// kind names the value in the error message (e.g. "file_id").
func ValidateIdentifier(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return New(ErrCodeInvalidInput, "%s cannot be empty", kind)
	}

	if len(value) > maxIdentifierLength {
		return New(ErrCodeInvalidInput, "%s too long (max %d characters)", kind, maxIdentifierLength)
	}

	for _, r := range value {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s contains invalid control characters", kind)
		}
	}

	if value == "." || value == ".." {
		return New(ErrCodeInvalidInput, "%s cannot be %q", kind, value)
	}

	dangerousPatterns := []string{
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(value, pattern) {
			return New(ErrCodeInvalidInput, "%s contains invalid characters: %q", kind, pattern)
		}
	}

	return nil
}

// ValidatePath validates a storage key derived from user input.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No ".." path segments
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
