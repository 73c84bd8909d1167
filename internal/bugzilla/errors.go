package bugzilla

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch is wrapped by every error returned from FetchBugs.
	ErrFetch = errors.New("failed to fetch bugs")

	// ErrInvalidURL is returned when the tracker URL is not an absolute
	// http or https URL.
	ErrInvalidURL = errors.New("invalid tracker URL")

	// ErrInvalidProxyAddress is returned when the proxy address is not
	// in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// FetchError describes a failed tracker request.
type FetchError struct {
	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Code is the Bugzilla error code from the response body, if any.
	Code int

	// Message is the Bugzilla error message from the response body, if any.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(ErrFetch.Error())
	b.WriteString(": GET ")
	b.WriteString(e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
		if e.Code != 0 {
			fmt.Fprintf(&b, " (code %d)", e.Code)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns ErrFetch and the underlying error.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// errorResponse is the body Bugzilla returns for failed REST calls.
type errorResponse struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
