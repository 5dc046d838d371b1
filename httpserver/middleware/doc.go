/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package middleware contains HTTP server middlewares that guard handlers with adaptive concurrency limiters.
package middleware
