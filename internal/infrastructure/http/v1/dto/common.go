// Package dto holds request and response bodies of the HTTP API.
package dto

// IDResponse carries the id of a created resource.
type IDResponse struct {
	ID string `json:"id"`
}

// ErrorResponse documents the body written by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
