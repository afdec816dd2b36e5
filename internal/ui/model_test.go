package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wusyong/web0"
	"github.com/wusyong/web0/internal/terminal"
)

// recordingPerformer answers every request with a text body and remembers it.
type recordingPerformer struct {
	requests chan web0.Request
}

func (p *recordingPerformer) Perform(ctx context.Context, req web0.Request) web0.FetchOutcome {
	p.requests <- req
	return web0.Succeeded(&web0.RawResponse{
		URL:        req.URL,
		Status:     200,
		StatusText: "OK",
		Headers:    map[string]string{"content-type": "text/plain"},
		Bytes:      []byte("body of " + req.URL),
	})
}

func newTestModel(t *testing.T, opts Options) (*Model, *recordingPerformer) {
	t.Helper()

	p := &recordingPerformer{requests: make(chan web0.Request, 8)}
	textures := terminal.NewAllocator()
	state := web0.NewState(web0.NewController(p), web0.NewTextureSlot(textures), zerolog.Nop())

	return New(state, textures, opts), p
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func waitIdle(t *testing.T, m *Model) {
	t.Helper()

	require.Eventually(t, func() bool {
		m.Update(RepaintMsg{})
		return !m.state.Busy()
	}, 5*time.Second, time.Millisecond)
}

func TestModel_TypeAndFetch(t *testing.T) {
	m, p := newTestModel(t, Options{})

	typeText(m, "http://x/ok")
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	typeText(m, "k")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	req := <-p.requests
	assert.Equal(t, web0.MethodGet, req.Method)
	assert.Equal(t, "http://x/ok", req.URL)

	waitIdle(t, m)

	view := m.View()
	assert.Contains(t, view, "status:       200 (OK)")
	assert.Contains(t, view, "body of http://x/ok")
}

func TestModel_LoadingView(t *testing.T) {
	block := make(chan struct{})
	textures := terminal.NewAllocator()
	p := performer(func(ctx context.Context, req web0.Request) web0.FetchOutcome {
		<-block
		return web0.Failed(web0.FailureConnect, errors.New("connect refused"))
	})
	state := web0.NewState(web0.NewController(p), web0.NewTextureSlot(textures), zerolog.Nop())
	m := New(state, textures, Options{URL: "http://x/slow"})

	m.Init()
	assert.Contains(t, m.View(), "Loading…")

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "A request is already in flight")

	close(block)
	waitIdle(t, m)
	assert.Contains(t, m.View(), "connect refused")
}

func TestModel_PostPreset(t *testing.T) {
	m, p := newTestModel(t, Options{})

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "payload")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})

	req := <-p.requests
	assert.Equal(t, web0.MethodPost, req.Method)
	assert.Equal(t, web0.HTTPBinPostURL, req.URL)
	assert.Equal(t, "payload", string(req.Body))
	assert.Equal(t, web0.HTTPBinPostURL, m.url)

	waitIdle(t, m)
}

func TestModel_RandomImagePreset(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	m, p := newTestModel(t, Options{ImageSide: 320, Now: func() time.Time { return now }})

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})

	req := <-p.requests
	assert.Equal(t, "https://picsum.photos/seed/1700000000123/320", req.URL)
	assert.Equal(t, req.URL, m.url)

	waitIdle(t, m)
}

func TestModel_CopyBody(t *testing.T) {
	var copied string
	m, p := newTestModel(t, Options{URL: "http://x/text", Copy: func(s string) error {
		copied = s
		return nil
	}})

	m.Init()
	<-p.requests
	waitIdle(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "body of http://x/text", copied)
	assert.Contains(t, m.View(), "Copied the response body")
}

func TestModel_HeadersToggle(t *testing.T) {
	m, p := newTestModel(t, Options{URL: "http://x/text"})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 40})

	m.Init()
	<-p.requests
	waitIdle(t, m)

	assert.Contains(t, m.View(), "▸ Response headers (1)")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	view := m.View()
	assert.Contains(t, view, "▾ Response headers")
	assert.True(t, strings.Contains(view, "content-type  text/plain"))
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, Options{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

type performer func(ctx context.Context, req web0.Request) web0.FetchOutcome

func (f performer) Perform(ctx context.Context, req web0.Request) web0.FetchOutcome {
	return f(ctx, req)
}
