package binder

import (
	"fmt"
	"net/http"
)

// Query binds `query` tagged fields from the URL query string. Only the
// first value of repeated parameters is used.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		values := r.URL.Query()
		if len(values) == 0 {
			return ErrBinderNotApplicable
		}
		err := bindFields(v, "query", func(name string) (string, bool) {
			if !values.Has(name) {
				return "", false
			}
			return values.Get(name), true
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		return nil
	}
}
