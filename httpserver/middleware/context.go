/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"

	"github.com/acronis/go-sawtooth/log"
)

type ctxKey int

const (
	ctxKeyLogger ctxKey = iota
	ctxKeyOperationID
)

// NewContextWithLogger creates a new context with logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext extracts logger from the context.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	value := ctx.Value(ctxKeyLogger)
	if value == nil {
		return nil
	}
	return value.(log.FieldLogger)
}

// NewContextWithOperationID creates a new context with the ID the request was admitted under by the limiter.
func NewContextWithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, ctxKeyOperationID, operationID)
}

// GetOperationIDFromContext extracts the limiter operation ID from the context.
func GetOperationIDFromContext(ctx context.Context) string {
	operationID, _ := ctx.Value(ctxKeyOperationID).(string)
	return operationID
}
