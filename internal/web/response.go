package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// outOfScopeStatus is the status code of synthetic scope-violation responses.
const outOfScopeStatus = http.StatusInternalServerError

// Response is the result of a dispatched request.
//
// A Response is either a genuine network result or a synthetic
// scope-violation result. The two are told apart by OutOfScope; a genuine
// response never has it set, even when the server answers 500.
type Response struct {
	// URL is the final request URL including merged query parameters.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response body, truncated to the Dispatcher's limit.
	Body []byte

	// Truncated is true when the body was longer than the limit and Body
	// holds only its first bytes.
	Truncated bool

	// Elapsed is the time from sending the request to reading the body.
	Elapsed time.Duration

	// OutOfScope is true for synthetic responses to out-of-scope targets.
	// No network traffic was produced for them.
	OutOfScope bool

	// JSON holds the decoded body for pages fetched in JSON mode.
	JSON any
}

// newOutOfScopeResponse builds the synthetic scope-violation result.
func newOutOfScopeResponse(target string) *Response {
	return &Response{
		URL:        target,
		StatusCode: outOfScopeStatus,
		Header:     make(http.Header),
		OutOfScope: true,
	}
}

// Text returns the body decoded as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// OK reports whether r is a genuine response with a 2xx status.
func (r *Response) OK() bool {
	return !r.OutOfScope && r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns an error wrapping ErrOutOfScope for scope violations and nil
// for genuine responses, whatever their status.
func (r *Response) Err() error {
	if r.OutOfScope {
		return fmt.Errorf("%w: %s", ErrOutOfScope, r.URL)
	}
	return nil
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}
