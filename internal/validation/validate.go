// Package validation checks user-supplied input before it reaches the
// network: invalid input short-circuits with a ValidationError and the
// remote service is never called.
package validation

import (
	"path/filepath"
	"regexp"
	"strings"

	"assetmirror/pkg/domain"
)

const (
	// MaxUploadSize bounds bulk-import files.
	MaxUploadSize = 10 << 20 // 10 MiB

	maxIdentifierLen = 64
	maxNameLen       = 255
)

// identifierPattern matches the business identifier shape the service
// accepts: uppercase alphanumeric segments joined by dashes.
var identifierPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// allowedUploadExtensions lists the bulk-import file types the service accepts.
var allowedUploadExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
}

// ValidateNewAsset checks a creation payload. Returns nil when valid.
func ValidateNewAsset(input domain.NewAssetInput) error {
	ident := strings.TrimSpace(input.Identifier)
	switch {
	case ident == "":
		return domain.ValidationError{Field: "identifier", Reason: "required"}
	case len(ident) > maxIdentifierLen:
		return domain.ValidationError{Field: "identifier", Reason: "exceeds 64 characters"}
	case !identifierPattern.MatchString(ident):
		return domain.ValidationError{Field: "identifier", Reason: "must be uppercase alphanumeric segments joined by dashes"}
	}
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return domain.ValidationError{Field: "name", Reason: "required"}
	case len(name) > maxNameLen:
		return domain.ValidationError{Field: "name", Reason: "exceeds 255 characters"}
	}
	if !domain.KnownType(input.Type) {
		return domain.ValidationError{Field: "type", Reason: "unknown asset type"}
	}
	return nil
}

// ValidateUploadFile checks a bulk-import file's name and size before any
// byte is sent.
func ValidateUploadFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		return domain.ValidationError{Field: "file", Reason: "unsupported file type (want .csv or .xlsx)"}
	}
	if size <= 0 {
		return domain.ValidationError{Field: "file", Reason: "empty file"}
	}
	if size > MaxUploadSize {
		return domain.ValidationError{Field: "file", Reason: "exceeds 10 MiB limit"}
	}
	return nil
}
