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
	"fmt"
	"net/http"
	"strings"
)

// Method is the HTTP method of a Request. Only GET and POST are supported.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

const (
	// HTTPBinPostURL is the target of the "POST to httpbin.org" preset.
	HTTPBinPostURL = "https://httpbin.org/post"
	// DefaultImageSide is the side length requested by the random image preset.
	DefaultImageSide = 640
)

// ParseMethod returns the Method for s, ignoring case.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodGet:
		return MethodGet, nil
	case MethodPost:
		return MethodPost, nil
	}

	return "", fmt.Errorf("unsupported method %q", s)
}

// Request is a single HTTP request as entered by the user. A Request is
// immutable once it has been handed to a Controller.
type Request struct {
	URL    string
	Method Method
	// Body is only sent with POST requests.
	Body []byte
}

// NewRequest creates a Request, copying body so later edits to the caller's
// buffer do not leak into a dispatched request. GET requests never carry a body.
func NewRequest(method Method, u string, body []byte) Request {
	req := Request{
		URL:    strings.TrimSpace(u),
		Method: method,
	}

	if method == MethodPost && len(body) > 0 {
		req.Body = append([]byte(nil), body...)
	}

	return req
}

// RandomImageRequest returns a GET for a random picsum.photos image. The seed
// is part of the URL so every distinct seed yields a distinct texture.
func RandomImageRequest(seed string, side int) Request {
	if side <= 0 {
		side = DefaultImageSide
	}

	return NewRequest(MethodGet, fmt.Sprintf("https://picsum.photos/seed/%s/%d", seed, side), nil)
}

// HTTPBinPostRequest returns a POST to httpbin.org echoing body.
func HTTPBinPostRequest(body []byte) Request {
	return NewRequest(MethodPost, HTTPBinPostURL, body)
}

func (r Request) String() string {
	return string(r.Method) + " " + r.URL
}
