package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrRateLimited indicates rate limiting was encountered
	ErrRateLimited = errors.New("rate limited")

	// ErrBlocked indicates the request was blocked (e.g., by Cloudflare)
	ErrBlocked = errors.New("request blocked")

	// ErrTimeout indicates a timeout occurred
	ErrTimeout = errors.New("timeout")

	// ErrRenderFailed indicates browser rendering failed
	ErrRenderFailed = errors.New("render failed")

	// ErrBrowserNotFound indicates Chrome/Chromium was not found
	ErrBrowserNotFound = errors.New("browser not found")

	// ErrDetailsIncomplete indicates a detail page is missing required fields
	ErrDetailsIncomplete = errors.New("item details incomplete")

	// ErrFetchUnavailable indicates the artifact could not be retrieved for this run
	ErrFetchUnavailable = errors.New("artifact unavailable")

	// ErrNoAccounts indicates every downloader account has been exhausted
	ErrNoAccounts = errors.New("no downloader accounts left")

	// ErrTooManyFailures indicates the per-run failure budget was exceeded
	ErrTooManyFailures = errors.New("too many item failures")
)

// FetchError represents an error during fetching
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err        error
	RetryAfter int // Seconds to wait before retry, 0 if unknown
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %ds): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case 429, 503, 502, 504:
			return true
		}
		// Cloudflare errors
		if fetchErr.StatusCode >= 520 && fetchErr.StatusCode <= 530 {
			return true
		}
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// IOError represents a file read or write failure
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(op, path string, err error) *IOError {
	return &IOError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// Item processing stages, used to tag ItemError
const (
	StageDetails  = "details"
	StageFetch    = "fetch"
	StageRecord   = "record"
	StageBackup   = "backup"
	StageMetadata = "metadata"
)

// ItemError is a failure local to one catalog item. The run converts it
// into a skip rather than aborting.
type ItemError struct {
	ID    string
	Stage string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// NewItemError creates a new ItemError
func NewItemError(id, stage string, err error) *ItemError {
	return &ItemError{
		ID:    id,
		Stage: stage,
		Err:   err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
