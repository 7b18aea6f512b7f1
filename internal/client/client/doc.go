// Package client talks to the BuildLog project backend.
//
// # Overview
//
// Client is the transport-agnostic contract the pipelines depend on:
// Categories, CreateProject, UpdateProject, GetProject and Ping. HTTPClient
// implements it over REST+JSON, attaching the bearer token obtained from a
// TokenSource to every call.
//
// # Error Handling
//
// Response statuses are mapped to sentinel errors that callers match with
// errors.Is: ErrUnauthorized (401/403), ErrNotFound (404), ErrRejected
// (other 4xx), ErrUnavailable (5xx and transport failures).
package client
