package queue

import "errors"

var (
	ErrRepositoryNil        = errors.New("queue: repository cannot be nil")
	ErrPayloadNil           = errors.New("queue: payload cannot be nil")
	ErrPayloadMarshal       = errors.New("queue: failed to marshal payload")
	ErrInvalidPriority      = errors.New("queue: priority must be between 0 and 100")
	ErrHandlerNotFound      = errors.New("queue: no handler registered for task")
	ErrNoHandlers           = errors.New("queue: no task handlers registered")
	ErrNoTaskToClaim        = errors.New("queue: no task to claim")
	ErrTaskNotFound         = errors.New("queue: task not found")
	ErrWorkerAlreadyRunning = errors.New("queue: worker already running")
)
