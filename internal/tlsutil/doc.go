// Package tlsutil centralizes TLS configuration so the HTTP server and any
// outbound client share one hardened baseline instead of each picking
// Go's defaults independently.
package tlsutil
