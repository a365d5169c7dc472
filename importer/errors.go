package importer

import "errors"

// Failure kinds recorded for skipped images. All of them are recovered inside
// Run; callers only see them in Result.Skipped.
var (
	ErrParse        = errors.New("parse failure")
	ErrTransport    = errors.New("transport failure")
	ErrStorage      = errors.New("storage failure")
	ErrRegistration = errors.New("registration failure")
)

// Skip reasons that are not failures: the image is left alone on purpose.
var (
	ErrAlreadyLocal = errors.New("already local")
	ErrNotAllowed   = errors.New("host not in allowlist")
)
