package binder

import "errors"

var (
	// ErrBinderNotApplicable is returned by binders with nothing to read
	// from the request.
	ErrBinderNotApplicable = errors.New("binder not applicable")

	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrRequestTooLarge      = errors.New("request body too large")
	ErrInvalidPath          = errors.New("invalid path parameter")
	ErrInvalidQuery         = errors.New("invalid query parameter")
)

// IsBindError reports whether err is caused by a malformed request.
func IsBindError(err error) bool {
	return errors.Is(err, ErrUnsupportedMediaType) ||
		errors.Is(err, ErrMissingContentType) ||
		errors.Is(err, ErrInvalidJSON) ||
		errors.Is(err, ErrRequestTooLarge) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidQuery)
}
