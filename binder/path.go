package binder

import (
	"fmt"
	"net/http"
)

// Path binds `path` tagged fields using extractor, usually chi.URLParam.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor is nil", ErrInvalidPath)
		}
		err := bindFields(v, "path", func(name string) (string, bool) {
			return extractor(r, name), true
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPath, err)
		}
		return nil
	}
}
