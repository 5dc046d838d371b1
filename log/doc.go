/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package log provides structured logging on top of github.com/ssgreg/logf.
// Messages are written in JSON or text format to stdout, stderr or a rotated file.
// Library code accepts FieldLogger and falls back to NewDisabledLogger when nothing is passed.
package log
