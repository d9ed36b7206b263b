package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/saasbilling/binder"
)

// JSONResponse is the response envelope.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorClassifier maps an error to the HTTPError it is reported as. The
// message is taken from the error itself for client errors and hidden for
// server errors.
type ErrorClassifier func(err error) HTTPError

type jsonResponse struct {
	status int
	body   JSONResponse
	err    error
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// WithClassifier selects how JSONError maps an error to a status.
func WithClassifier(c ErrorClassifier) JSONOption {
	return func(r *jsonResponse) {
		if r.err != nil && c != nil {
			r.body.Error, r.status = errorDetail(r.err, c)
		}
	}
}

// JSON renders v as {"data": v} with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err as {"error": {...}}.
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{err: err}
	r.body.Error, r.status = errorDetail(err, DefaultClassifier)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultClassifier recognizes HTTPError and binder failures; anything else
// is an internal error.
func DefaultClassifier(err error) HTTPError {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, binder.ErrRequestTooLarge):
		return ErrRequestEntityTooLarge
	case binder.IsBindError(err):
		return ErrBadRequest
	}
	return ErrInternalServerError
}

func errorDetail(err error, classify ErrorClassifier) (*ErrorDetail, int) {
	httpErr := classify(err)
	msg := err.Error()
	if httpErr.Code >= http.StatusInternalServerError {
		msg = http.StatusText(httpErr.Code)
	}
	return &ErrorDetail{Code: httpErr.Key, Message: msg}, httpErr.Code
}
