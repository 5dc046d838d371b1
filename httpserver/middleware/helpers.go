/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// WrapResponseWriterIfNeeded wraps an http.ResponseWriter (if it is not already wrapped), returning a proxy
// that allows to get the status code written by the next handler.
func WrapResponseWriterIfNeeded(rw http.ResponseWriter, protoMajor int) chimiddleware.WrapResponseWriter {
	if wrw, ok := rw.(chimiddleware.WrapResponseWriter); ok {
		return wrw
	}
	return chimiddleware.NewWrapResponseWriter(rw, protoMajor)
}

// responseStatus returns the status code written to the wrapped writer.
// Handlers that never call WriteHeader implicitly respond with 200.
func responseStatus(wrw chimiddleware.WrapResponseWriter) int {
	if status := wrw.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}
