package notify

import "errors"

var (
	ErrUnknownKind    = errors.New("unknown notification kind")
	ErrEnqueueFailed  = errors.New("failed to enqueue notification")
	ErrRenderTemplate = errors.New("failed to render notification")
)
