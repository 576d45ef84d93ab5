// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing. It is the single
// place where the shared error taxonomy is mapped to transport codes.
package httputil
