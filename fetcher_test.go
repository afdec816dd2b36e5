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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var helloBytes = []byte("Hello, client\n")

func newUnstartedTestServer() *httptest.Server {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(helloBytes)
	})

	r.Get("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	r.Get("/error", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	})

	r.Get("/404", http.NotFound)

	r.Get("/allowed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Allowed"))
	})

	r.Get("/disallowed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Disallowed"))
	})

	r.Get("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /disallowed"))
	})

	r.Get("/user_agent", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(r.Header.Get("User-Agent")))
	})

	r.Get("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom-Header", "custom")
		w.Header().Add("X-Multi", "first")
		w.Header().Add("X-Multi", "last")
		w.WriteHeader(http.StatusTeapot)
	})

	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s %s", r.Method, b)
	})

	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return httptest.NewUnstartedServer(r)
}

func newTestServer(t *testing.T) *httptest.Server {
	server := newUnstartedTestServer()
	server.Start()
	t.Cleanup(server.Close)

	return server
}

func newTestFetcher(t *testing.T, options ...Options) *Fetcher {
	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)

	client := &http.Client{
		Timeout:   time.Second * 10,
		Transport: transport,
	}

	return NewFetcher(
		append(options, WithClient(client))...,
	)
}

func TestFetcher_Perform(t *testing.T) {
	server := newTestServer(t)

	requestDoCalled := false
	responseDoCalled := false

	f := newTestFetcher(t)

	f.RequestDo(func(req *http.Request) {
		requestDoCalled = true
		req.Header.Set("X-Test", "yes")
	})

	f.ResponseDo(func(res *RawResponse) {
		responseDoCalled = true
		assert.Equal(t, http.StatusOK, res.Status)
	})

	outcome := f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/", nil))
	require.True(t, outcome.OK())

	res := outcome.Response
	assert.Equal(t, server.URL+"/", res.URL)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "OK", res.StatusText)
	assert.Equal(t, helloBytes, res.Bytes)

	contentType, ok := res.Header("Content-Type")
	assert.True(t, ok)
	assert.Equal(t, "text/plain; charset=utf-8", contentType)

	assert.True(t, requestDoCalled, "RequestDo middleware was not called")
	assert.True(t, responseDoCalled, "ResponseDo middleware was not called")
}

func TestFetcher_PerformFollowsRedirect(t *testing.T) {
	server := newTestServer(t)

	outcome := newTestFetcher(t).Perform(context.Background(), NewRequest(MethodGet, server.URL+"/redirect", nil))
	require.True(t, outcome.OK())

	assert.Equal(t, server.URL+"/", outcome.Response.URL)
	assert.Equal(t, helloBytes, outcome.Response.Bytes)
}

func TestFetcher_PerformErrorStatusIsNotAFailure(t *testing.T) {
	server := newTestServer(t)
	f := newTestFetcher(t)

	outcome := f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/404", nil))
	require.True(t, outcome.OK())
	assert.Equal(t, http.StatusNotFound, outcome.Response.Status)
	assert.Equal(t, "Not Found", outcome.Response.StatusText)
	assert.Equal(t, "404 page not found\n", string(outcome.Response.Bytes))

	outcome = f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/error", nil))
	require.True(t, outcome.OK())
	assert.Equal(t, http.StatusInternalServerError, outcome.Response.Status)
}

func TestFetcher_PerformLowerCasesHeaders(t *testing.T) {
	server := newTestServer(t)

	outcome := newTestFetcher(t).Perform(context.Background(), NewRequest(MethodGet, server.URL+"/headers", nil))
	require.True(t, outcome.OK())

	res := outcome.Response
	assert.Equal(t, http.StatusTeapot, res.Status)
	assert.Equal(t, "custom", res.Headers["x-custom-header"])
	assert.Equal(t, "last", res.Headers["x-multi"])

	for name := range res.Headers {
		assert.Equal(t, name, strings.ToLower(name))
	}
	assert.IsIncreasing(t, res.HeaderNames())
}

func TestFetcher_PerformPost(t *testing.T) {
	server := newTestServer(t)

	outcome := newTestFetcher(t).Perform(context.Background(), NewRequest(MethodPost, server.URL+"/echo", []byte(`{"a":1}`)))
	require.True(t, outcome.OK())
	assert.Equal(t, `POST {"a":1}`, string(outcome.Response.Bytes))
}

func TestFetcher_PerformUserAgent(t *testing.T) {
	server := newTestServer(t)

	outcome := newTestFetcher(t, WithUserAgent("web0-test")).Perform(context.Background(), NewRequest(MethodGet, server.URL+"/user_agent", nil))
	require.True(t, outcome.OK())
	assert.Equal(t, "web0-test", string(outcome.Response.Bytes))
}

func TestFetcher_PerformWithAllowedURLs(t *testing.T) {
	server := newTestServer(t)

	allowed := []string{
		server.URL + "/allowed",
	}

	f := newTestFetcher(t, WithAllowedURLs(allowed))

	url := server.URL + "/"
	outcome := f.Perform(context.Background(), NewRequest(MethodGet, url, nil))
	require.NotNil(t, outcome.Err)
	assert.Equal(t, FailurePolicy, outcome.Err.Kind)
	assert.EqualError(t, outcome.Err, fmt.Sprintf("URL %s is forbidden", url))

	outcome = f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/allowed", nil))
	assert.True(t, outcome.OK())
}

func TestFetcher_PerformWithDisallowedURLs(t *testing.T) {
	server := newTestServer(t)

	f := newTestFetcher(t, WithDisallowedURLs([]string{server.URL + "/allowed"}))

	url := server.URL + "/allowed"
	outcome := f.Perform(context.Background(), NewRequest(MethodGet, url, nil))
	require.NotNil(t, outcome.Err)
	assert.EqualError(t, outcome.Err, fmt.Sprintf("URL %s is forbidden", url))

	outcome = f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/", nil))
	assert.True(t, outcome.OK())
}

func TestFetcher_PerformRespectRobots(t *testing.T) {
	server := newTestServer(t)

	f := newTestFetcher(t, WithRespectRobots(true))

	url := server.URL + "/disallowed"
	outcome := f.Perform(context.Background(), NewRequest(MethodGet, url, nil))
	require.NotNil(t, outcome.Err)
	assert.Equal(t, FailurePolicy, outcome.Err.Kind)
	assert.EqualError(t, outcome.Err, fmt.Sprintf("URL %s is disallowed by robots.txt", url))

	outcome = f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/allowed", nil))
	assert.True(t, outcome.OK())

	outcome = newTestFetcher(t).Perform(context.Background(), NewRequest(MethodGet, url, nil))
	assert.True(t, outcome.OK(), "robots.txt is ignored by default")
}

func TestFetcher_PerformConnectFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	outcome := newTestFetcher(t).Perform(context.Background(), NewRequest(MethodGet, "http://"+addr+"/", nil))
	require.NotNil(t, outcome.Err)
	assert.Nil(t, outcome.Response)
	assert.Equal(t, FailureConnect, outcome.Err.Kind)

	var opErr *net.OpError
	assert.True(t, errors.As(outcome.Err, &opErr))
}

func TestFetcher_PerformInvalidRequest(t *testing.T) {
	f := newTestFetcher(t)

	outcome := f.Perform(context.Background(), NewRequest(MethodGet, "ftp://example.com/file", nil))
	require.NotNil(t, outcome.Err)
	assert.Equal(t, FailureRequest, outcome.Err.Kind)

	outcome = f.Perform(context.Background(), NewRequest(MethodGet, "http://[::1", nil))
	require.NotNil(t, outcome.Err)
	assert.Equal(t, FailureRequest, outcome.Err.Kind)
}

func TestFetcher_PerformRecoversFromPanics(t *testing.T) {
	server := newTestServer(t)

	f := newTestFetcher(t)
	f.ResponseDo(func(res *RawResponse) {
		panic("boom")
	})

	outcome := f.Perform(context.Background(), NewRequest(MethodGet, server.URL+"/panic", nil))
	require.NotNil(t, outcome.Err)
	assert.Equal(t, FailureAborted, outcome.Err.Kind)
	assert.ErrorIs(t, outcome.Err, ErrAborted)
}

func TestFetcher_PerformWithContext(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := newTestFetcher(t).Perform(ctx, NewRequest(MethodGet, server.URL+"/", nil))
	require.NotNil(t, outcome.Err)
	assert.Equal(t, FailureConnect, outcome.Err.Kind)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}
