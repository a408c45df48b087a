// Package middleware contains HTTP middleware for the Fiber control API.
//
// # Components
//
//   - Auth: API key validation protecting every endpoint.
//   - RayID: a unique request id stored in the context and echoed in the
//     response headers for tracing.
package middleware
