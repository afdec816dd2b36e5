/*
Copyright 2024 Henri Remonen

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package web0

import (
	"errors"
	"sort"
	"strings"
)

// ErrAborted is reported when a background fetch finished without producing a result.
var ErrAborted = errors.New("request aborted before a result was available")

// FailureKind classifies a TransportError.
type FailureKind int

const (
	// FailureRequest means the request could not be built (bad URL or method).
	FailureRequest FailureKind = iota
	// FailureConnect covers DNS, connect, TLS and other I/O failures of the round trip.
	FailureConnect
	// FailureBody means the response arrived but its body could not be read.
	FailureBody
	// FailurePolicy means the URL was refused by the fetcher's URL filters or robots.txt.
	FailurePolicy
	// FailureAborted means the background fetch ended without delivering a result.
	FailureAborted
)

func (k FailureKind) String() string {
	switch k {
	case FailureRequest:
		return "request"
	case FailureConnect:
		return "connect"
	case FailureBody:
		return "body"
	case FailurePolicy:
		return "policy"
	case FailureAborted:
		return "aborted"
	}

	return "unknown"
}

// TransportError is a fetch failure below the HTTP layer. HTTP error statuses
// are never TransportErrors.
type TransportError struct {
	Kind FailureKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}

	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RawResponse is a completed HTTP response with its body fully read.
type RawResponse struct {
	// URL is the final URL after redirects.
	URL        string
	Status     int
	StatusText string
	// Headers holds one value per header. Names are lower-case.
	Headers map[string]string
	Bytes   []byte
}

// Header looks up a header value by name, ignoring case.
func (r *RawResponse) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// HeaderNames returns the header names in sorted order.
func (r *RawResponse) HeaderNames() []string {
	return sortedNames(r.Headers)
}

func sortedNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// FetchOutcome is the result of one request: exactly one of Response and Err is set.
type FetchOutcome struct {
	Response *RawResponse
	Err      *TransportError
}

// Succeeded wraps a response in a FetchOutcome.
func Succeeded(res *RawResponse) FetchOutcome {
	return FetchOutcome{Response: res}
}

// Failed wraps err in a FetchOutcome with the given kind.
func Failed(kind FailureKind, err error) FetchOutcome {
	return FetchOutcome{Err: &TransportError{Kind: kind, Err: err}}
}

// OK reports whether the outcome carries a response.
func (o FetchOutcome) OK() bool {
	return o.Err == nil && o.Response != nil
}
