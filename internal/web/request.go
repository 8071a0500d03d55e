package web

import (
	"maps"
	"net/http"
	"net/url"
)

// Request describes one outbound HTTP request.
// It is built per call and not retained by the Dispatcher.
type Request struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// URL is the absolute http or https URL.
	URL string

	// Headers override the Dispatcher's default headers key by key.
	// Keys are case-insensitive.
	Headers map[string]string

	// Params are appended to the query string of URL.
	Params url.Values

	// Body is sent as the request body when non-nil.
	Body []byte
}

// RequestOption customizes a Request built by Dispatcher.Request.
type RequestOption func(*Request)

// WithMethod sets the HTTP method.
func WithMethod(method string) RequestOption {
	return func(r *Request) {
		r.Method = method
	}
}

// WithBody sets the request body.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		r.Body = body
	}
}

// WithParams adds query parameters.
func WithParams(params url.Values) RequestOption {
	return func(r *Request) {
		if r.Params == nil {
			r.Params = url.Values{}
		}
		for k, vs := range params {
			for _, v := range vs {
				r.Params.Add(k, v)
			}
		}
	}
}

// WithHeaders adds custom headers. Later options win over earlier ones.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(r.Headers, headers)
	}
}

// WithHeader adds a single custom header.
func WithHeader(key, value string) RequestOption {
	return WithHeaders(map[string]string{key: value})
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}
