/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides an in-memory log.FieldLogger (Recorder) for checking
// what limiters, middlewares and the stress harness log.
package logtest
