// Package httpapi is the gin transport of bizAuth.
//
// Handlers decode JSON bodies and cookies, call the engine, and translate
// results into cookies and JSON. Engine errors are mapped to statuses by
// middleware.AbortWithError; no handler inspects an error beyond its kind.
package httpapi
