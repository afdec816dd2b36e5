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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
)

var (
	// ErrForbiddenURL is returned when a URL is not allowed by the AllowedURLs or DisallowedURLs settings.
	ErrForbiddenURL = func(u string) error {
		return fmt.Errorf("URL %s is forbidden", u)
	}
	// ErrRobotsDisallowed is returned when a URL is disallowed by robots.txt.
	ErrRobotsDisallowed = func(u string) error {
		return fmt.Errorf("URL %s is disallowed by robots.txt", u)
	}
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = func(u string) error {
		return fmt.Errorf("URL %s must use http or https", u)
	}
)

// robotsAgent is the user agent matched against robots.txt groups.
const robotsAgent = "web0"

// Performer executes a Request and reports its outcome. Implementations must
// not panic across the call and must report every failure in the FetchOutcome.
type Performer interface {
	Perform(ctx context.Context, req Request) FetchOutcome
}

// Options is a type for functional options that can be used to configure a Fetcher.
type Options func(f *Fetcher)

// ReqMiddleware is a type for request middlewares that can be used to modify an http.Request before it is sent.
type ReqMiddleware func(req *http.Request)

// ResMiddleware is a type for response middlewares that are run on every RawResponse after its body was read.
type ResMiddleware func(res *RawResponse)

// Fetcher is the HTTP client adapter. It uses an http.Client to perform
// requests and turns every result, including failures, into a FetchOutcome.
type Fetcher struct {
	// Client is the http.Client used to perform requests.
	Client *http.Client
	// AllowedURLs is a list of URL prefixes that are allowed to be fetched. Empty means everything is allowed.
	AllowedURLs []string
	// DisallowedURLs is a list of URL prefixes that are never fetched.
	DisallowedURLs []string
	// UserAgent is sent with every request when not empty.
	UserAgent string
	// log receives debug information about performed requests.
	log zerolog.Logger
	// requestMiddlewares are applied to each request before it is sent. Added with RequestDo.
	requestMiddlewares []ReqMiddleware
	// responseMiddlewares are applied to each response after its body was read. Added with ResponseDo.
	responseMiddlewares []ResMiddleware
	// respectRobots enables robots.txt checks, defaults to false.
	respectRobots bool
	// robotsMap caches robots.txt files by host.
	robotsMap map[string]*robotstxt.RobotsData
	// mu guards the middlewares and robotsMap; Perform runs on background goroutines.
	mu sync.RWMutex
}

var _ Performer = (*Fetcher)(nil)

// NewFetcher creates a new Fetcher. Without options it uses http.DefaultClient.
func NewFetcher(options ...Options) *Fetcher {
	f := &Fetcher{
		Client:              http.DefaultClient,
		AllowedURLs:         []string{},
		DisallowedURLs:      []string{},
		log:                 zerolog.Nop(),
		requestMiddlewares:  make([]ReqMiddleware, 0, 4),
		responseMiddlewares: make([]ResMiddleware, 0, 4),
		respectRobots:       false,
		robotsMap:           make(map[string]*robotstxt.RobotsData),
	}

	for _, option := range options {
		option(f)
	}

	return f
}

// WithClient is a functional option that sets the http.Client for the Fetcher.
func WithClient(client *http.Client) Options {
	return func(f *Fetcher) {
		f.Client = client
	}
}

// WithAllowedURLs is a functional option that sets the allowed URL prefixes for the Fetcher.
func WithAllowedURLs(urls []string) Options {
	return func(f *Fetcher) {
		f.AllowedURLs = urls
	}
}

// WithDisallowedURLs is a functional option that sets the disallowed URL prefixes for the Fetcher.
func WithDisallowedURLs(urls []string) Options {
	return func(f *Fetcher) {
		f.DisallowedURLs = urls
	}
}

// WithUserAgent is a functional option that sets the User-Agent header sent by the Fetcher.
func WithUserAgent(ua string) Options {
	return func(f *Fetcher) {
		f.UserAgent = ua
	}
}

// WithRespectRobots is a functional option that makes the Fetcher refuse URLs disallowed by robots.txt.
func WithRespectRobots(respect bool) Options {
	return func(f *Fetcher) {
		f.respectRobots = respect
	}
}

// WithLogger is a functional option that sets the logger of the Fetcher.
func WithLogger(logger zerolog.Logger) Options {
	return func(f *Fetcher) {
		f.log = logger
	}
}

// RequestDo adds a request middleware, triggered for each request before it is sent.
func (f *Fetcher) RequestDo(mw ReqMiddleware) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requestMiddlewares = append(f.requestMiddlewares, mw)
}

// ResponseDo adds a response middleware, triggered for each response after its body was read.
func (f *Fetcher) ResponseDo(mw ResMiddleware) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responseMiddlewares = append(f.responseMiddlewares, mw)
}

// Perform executes req and returns its outcome. A response with an HTTP
// error status is a successful outcome. Perform never panics; a panic in the
// client or a middleware is reported as an aborted request.
func (f *Fetcher) Perform(ctx context.Context, req Request) (outcome FetchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			f.log.WithLevel(zerolog.PanicLevel).Interface("error", r).Str("url", req.URL).Msg("Panic while performing request")
			outcome = Failed(FailureAborted, fmt.Errorf("%w: %v", ErrAborted, r))
		}
	}()

	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return Failed(FailureRequest, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Failed(FailureRequest, ErrUnsupportedScheme(req.URL))
	}

	if err := f.checkFilters(parsedURL); err != nil {
		return Failed(FailurePolicy, err)
	}

	if err := f.checkRobots(ctx, parsedURL); err != nil {
		return f.robotsOutcome(err)
	}

	var body io.Reader = http.NoBody
	if req.Method == MethodPost {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), parsedURL.String(), body)
	if err != nil {
		return Failed(FailureRequest, err)
	}

	if f.UserAgent != "" {
		httpReq.Header.Set("User-Agent", f.UserAgent)
	}

	f.handleRequestDo(httpReq)

	return f.fetch(httpReq)
}

func (f *Fetcher) fetch(req *http.Request) FetchOutcome {
	res, err := f.Client.Do(req)
	if err != nil {
		return Failed(FailureConnect, err)
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			f.log.Warn().Err(err).Stringer("url", req.URL).Msg("Error closing response body")
		}
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return Failed(FailureBody, err)
	}

	response := &RawResponse{
		URL:        finalURL(res, req),
		Status:     res.StatusCode,
		StatusText: statusText(res),
		Headers:    lowerHeaders(res.Header),
		Bytes:      b,
	}

	f.log.Debug().
		Str("method", req.Method).
		Str("url", response.URL).
		Int("status", response.Status).
		Int("bytes", len(b)).
		Msg("Request completed")

	f.handleResponseDo(response)

	return Succeeded(response)
}

func (f *Fetcher) handleRequestDo(req *http.Request) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, m := range f.requestMiddlewares {
		m(req)
	}
}

func (f *Fetcher) handleResponseDo(res *RawResponse) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, m := range f.responseMiddlewares {
		m(res)
	}
}

func (f *Fetcher) robotsOutcome(err error) FetchOutcome {
	var robotsErr *robotsFetchError
	if errors.As(err, &robotsErr) {
		return Failed(FailureConnect, robotsErr.err)
	}

	return Failed(FailurePolicy, err)
}

// robotsFetchError marks a failure to download robots.txt, as opposed to a URL refused by it.
type robotsFetchError struct {
	err error
}

func (e *robotsFetchError) Error() string {
	return e.err.Error()
}

func (f *Fetcher) checkRobots(ctx context.Context, parsedURL *url.URL) error {
	if !f.respectRobots {
		return nil
	}

	f.mu.RLock()
	robot, ok := f.robotsMap[parsedURL.Host]
	f.mu.RUnlock()

	if !ok {
		robotURL := parsedURL.Scheme + "://" + parsedURL.Host + "/robots.txt"

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotURL, http.NoBody)
		if err != nil {
			return &robotsFetchError{err: err}
		}

		res, err := f.Client.Do(req)
		if err != nil {
			return &robotsFetchError{err: err}
		}

		defer func() {
			if err := res.Body.Close(); err != nil {
				f.log.Warn().Err(err).Str("url", robotURL).Msg("Error closing robots.txt body")
			}
		}()

		robot, err = robotstxt.FromResponse(res)
		if err != nil {
			return &robotsFetchError{err: err}
		}

		f.mu.Lock()
		f.robotsMap[parsedURL.Host] = robot
		f.mu.Unlock()
	}

	if !robot.TestAgent(parsedURL.Path, robotsAgent) {
		return ErrRobotsDisallowed(parsedURL.String())
	}

	return nil
}

func (f *Fetcher) checkFilters(parsedURL *url.URL) error {
	u := parsedURL.String()

	if !f.isURLAllowed(u) {
		return ErrForbiddenURL(u)
	}

	return nil
}

// isURLAllowed checks if the given URL is allowed to be fetched.
func (f *Fetcher) isURLAllowed(u string) bool {
	for _, disallowed := range f.DisallowedURLs {
		if strings.HasPrefix(u, disallowed) {
			return false
		}
	}

	if len(f.AllowedURLs) == 0 {
		return true
	}

	for _, allowed := range f.AllowedURLs {
		if strings.HasPrefix(u, allowed) {
			return true
		}
	}

	return false
}

// lowerHeaders flattens h into a map keyed by lower-case header name. When a
// header has several values the last one wins.
func lowerHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		headers[strings.ToLower(name)] = values[len(values)-1]
	}

	return headers
}

// finalURL is the URL of the request that produced res, after any redirects.
func finalURL(res *http.Response, req *http.Request) string {
	if res.Request != nil && res.Request.URL != nil {
		return res.Request.URL.String()
	}

	return req.URL.String()
}

// statusText returns the reason phrase sent by the server, falling back to
// the standard text for the code.
func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}

	return text
}
