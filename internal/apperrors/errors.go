package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindInvalidRequest      Kind = "invalid_request"
	KindJobNotFound         Kind = "job_not_found"
	KindInvalidTransition   Kind = "invalid_transition"
	KindUpstreamReference   Kind = "upstream_reference"
	KindUnsupportedProtocol Kind = "unsupported_protocol"
	KindConnection          Kind = "connection"
	KindQueryExecution      Kind = "query_execution"
	KindEmptyResult         Kind = "empty_result"
	KindEmbeddingAPI        Kind = "embedding_api"
	KindStorage             Kind = "storage"
)

// Error is the typed error every pipeline stage returns. Message is the
// human-readable text recorded on the job.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Configuration(msg string) *Error {
	return New(KindConfiguration, msg)
}

func InvalidRequest(msg string) *Error {
	return New(KindInvalidRequest, msg)
}

func JobNotFound(jobID string) *Error {
	return New(KindJobNotFound, fmt.Sprintf("Job not found: %s", jobID))
}

func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, fmt.Sprintf("invalid job status transition %s -> %s", from, to))
}

func UpstreamReference(msg string, cause error) *Error {
	return Wrap(KindUpstreamReference, cause, msg)
}

func UnsupportedProtocol(protocol string) *Error {
	return New(KindUnsupportedProtocol, fmt.Sprintf("Unsupported database type: %s", protocol))
}

func Connection(cause error) *Error {
	return Wrap(KindConnection, cause, "Failed to connect to database")
}

func EmptyResult(msg string) *Error {
	return New(KindEmptyResult, msg)
}

func Storage(msg string, cause error) *Error {
	return Wrap(KindStorage, cause, msg)
}

// QueryExecutionError is returned when a page of the paginated query fails.
type QueryExecutionError struct {
	Offset int
	Cause  error
}

func (e *QueryExecutionError) Error() string {
	return e.Cause.Error()
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Cause
}

// QueryExecution wraps a page failure into the taxonomy.
func QueryExecution(offset int, cause error) *Error {
	qe := &QueryExecutionError{Offset: offset, Cause: cause}
	return &Error{Kind: KindQueryExecution, Message: fmt.Sprintf("Query execution failed at offset %d", offset), Cause: qe}
}

// EmbeddingAPIError carries the provider's non-success response.
type EmbeddingAPIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *EmbeddingAPIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Body)
}

func EmbeddingAPI(statusCode int, status, body string) *Error {
	ae := &EmbeddingAPIError{StatusCode: statusCode, Status: status, Body: body}
	return &Error{Kind: KindEmbeddingAPI, Message: "Embedding API error", Cause: ae}
}

// EmbeddingAPIMessage is used for provider failures that are not an HTTP status,
// such as malformed responses.
func EmbeddingAPIMessage(msg string, cause error) *Error {
	return Wrap(KindEmbeddingAPI, cause, msg)
}
