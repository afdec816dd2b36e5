// Package ui is the terminal front end of web0. It owns the presentation
// state and drives it from the bubbletea event loop: every tick polls for a
// finished request, every frame renders the last result.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wusyong/web0"
	"github.com/wusyong/web0/internal/terminal"
)

const (
	red   = "\x1b[31m"
	bold  = "\x1b[1m"
	faint = "\x1b[2m"
	reset = "\x1b[0m"
)

type tickMsg time.Time

type focus int

const (
	focusURL focus = iota
	focusBody
)

// Options configures a Model.
type Options struct {
	URL    string
	Method web0.Method
	Body   string
	// TickInterval is how often the model polls for a finished request.
	TickInterval time.Duration
	// ImageSide is the size of images requested by the random image preset.
	ImageSide int
	// Copy writes text to the clipboard.
	Copy func(text string) error
	// Now is the clock used to seed random images.
	Now func() time.Time
}

// Model is the bubbletea model of the probe.
type Model struct {
	state    *web0.State
	textures *terminal.Allocator
	opts     Options

	url    string
	method web0.Method
	body   string
	focus  focus

	showHeaders bool
	scroll      int
	width       int
	height      int
	notice      string
}

var _ tea.Model = (*Model)(nil)

// New creates a Model that renders state and draws images with textures.
func New(state *web0.State, textures *terminal.Allocator, opts Options) *Model {
	if opts.Method == "" {
		opts.Method = web0.MethodGet
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 50 * time.Millisecond
	}
	if opts.ImageSide <= 0 {
		opts.ImageSide = web0.DefaultImageSide
	}
	if opts.Copy == nil {
		opts.Copy = func(string) error { return nil }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Model{
		state:    state,
		textures: textures,
		opts:     opts,
		url:      opts.URL,
		method:   opts.Method,
		body:     opts.Body,
		width:    80,
		height:   24,
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the tick loop and fetches the initial URL, if any.
func (m *Model) Init() tea.Cmd {
	if m.url != "" {
		m.trigger()
	}

	return m.tick()
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.poll()
		return m, m.tick()
	case RepaintMsg:
		m.poll()
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) poll() {
	if m.state.Tick() {
		m.scroll = 0
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	m.notice = ""

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.state.Clear()
		return tea.Quit
	case tea.KeyEnter:
		m.trigger()
	case tea.KeyTab, tea.KeyShiftTab:
		if m.method == web0.MethodPost && m.focus == focusURL {
			m.focus = focusBody
		} else {
			m.focus = focusURL
		}
	case tea.KeyCtrlT:
		m.toggleMethod()
	case tea.KeyCtrlR:
		m.randomImage()
	case tea.KeyCtrlP:
		m.postToHTTPBin()
	case tea.KeyCtrlY:
		m.copyBody()
	case tea.KeyCtrlE:
		m.showHeaders = !m.showHeaders
	case tea.KeyUp:
		m.scrollBy(-1)
	case tea.KeyDown:
		m.scrollBy(1)
	case tea.KeyPgUp:
		m.scrollBy(-m.pageSize())
	case tea.KeyPgDown:
		m.scrollBy(m.pageSize())
	case tea.KeyBackspace:
		m.editField(func(s string) string {
			r := []rune(s)
			if len(r) == 0 {
				return s
			}
			return string(r[:len(r)-1])
		})
	case tea.KeySpace:
		m.editField(func(s string) string { return s + " " })
	case tea.KeyRunes:
		m.editField(func(s string) string { return s + string(msg.Runes) })
	}

	return nil
}

func (m *Model) editField(fn func(string) string) {
	if m.focus == focusBody {
		m.body = fn(m.body)
	} else {
		m.url = fn(m.url)
	}
}

func (m *Model) toggleMethod() {
	if m.method == web0.MethodGet {
		m.method = web0.MethodPost
	} else {
		m.method = web0.MethodGet
		m.focus = focusURL
	}
}

func (m *Model) trigger() {
	if strings.TrimSpace(m.url) == "" {
		return
	}

	if !m.state.Trigger(web0.NewRequest(m.method, m.url, []byte(m.body))) {
		m.notice = "A request is already in flight"
	}
}

func (m *Model) randomImage() {
	seed := strconv.FormatInt(m.opts.Now().UnixMilli(), 10)
	req := web0.RandomImageRequest(seed, m.opts.ImageSide)

	if m.state.Trigger(req) {
		m.method = web0.MethodGet
		m.url = req.URL
		m.focus = focusURL
	}
}

func (m *Model) postToHTTPBin() {
	req := web0.HTTPBinPostRequest([]byte(m.body))

	if m.state.Trigger(req) {
		m.method = web0.MethodPost
		m.url = req.URL
	}
}

func (m *Model) copyBody() {
	last := m.state.Last()
	if last == nil || last.Resource == nil {
		return
	}

	text, ok := last.Resource.Text()
	if !ok {
		return
	}

	if err := m.opts.Copy(text); err != nil {
		m.notice = "Copy failed: " + err.Error()
		return
	}

	m.notice = "Copied the response body"
}

func (m *Model) pageSize() int {
	return max(m.height/2, 1)
}

func (m *Model) scrollBy(n int) {
	m.scroll = max(m.scroll+n, 0)
}

// View renders the input bar and the last result.
func (m *Model) View() string {
	var sb strings.Builder

	m.viewBar(&sb)
	sb.WriteString(strings.Repeat("─", max(m.width, 1)))
	sb.WriteByte('\n')

	used := strings.Count(sb.String(), "\n")
	content := m.viewResult()

	lines := strings.Split(content, "\n")
	if m.scroll > len(lines)-1 {
		m.scroll = max(len(lines)-1, 0)
	}
	lines = lines[m.scroll:]
	if room := m.height - used; room > 0 && len(lines) > room {
		lines = lines[:room]
	}

	sb.WriteString(strings.Join(lines, "\n"))

	return sb.String()
}

func (m *Model) viewBar(sb *strings.Builder) {
	cursor := func(f focus) string {
		if m.focus == f {
			return "█"
		}
		return ""
	}

	fmt.Fprintf(sb, "URL: %s%s\n", m.url, cursor(focusURL))

	get, post := " GET ", " POST "
	if m.method == web0.MethodGet {
		get = bold + "[GET]" + reset
	} else {
		post = bold + "[POST]" + reset
	}
	fmt.Fprintf(sb, "Method: %s %s\n", get, post)

	if m.method == web0.MethodPost {
		fmt.Fprintf(sb, "POST Body: %s%s\n", m.body, cursor(focusBody))
	}

	sb.WriteString(faint + "enter fetch · ctrl+t method · ctrl+r random image · ctrl+p POST to httpbin.org · ctrl+e headers · ctrl+y copy · esc quit" + reset + "\n")

	if m.notice != "" {
		sb.WriteString(m.notice + "\n")
	}
}

func (m *Model) viewResult() string {
	v := m.state.View(m.width)

	switch {
	case v.Loading:
		return "Loading…"
	case v.Empty:
		return ""
	case v.Error != "":
		return red + v.Error + reset
	}

	var sb strings.Builder

	contentType := v.ContentType
	if contentType == "" {
		contentType = "(none)"
	}

	fmt.Fprintf(&sb, "url:          %s\n", v.URL)
	fmt.Fprintf(&sb, "status:       %s\n", v.Status)
	fmt.Fprintf(&sb, "content-type: %s\n", contentType)
	fmt.Fprintf(&sb, "size:         %s\n", v.Size)
	sb.WriteString(strings.Repeat("─", max(m.width, 1)) + "\n")

	if m.showHeaders {
		sb.WriteString("▾ Response headers\n")
		width := 0
		for _, h := range v.Headers {
			width = max(width, len(h.Name))
		}
		for _, h := range v.Headers {
			fmt.Fprintf(&sb, "  %-*s  %s\n", width, h.Name, h.Value)
		}
	} else {
		fmt.Fprintf(&sb, "▸ Response headers (%d)\n", len(v.Headers))
	}
	sb.WriteString(strings.Repeat("─", max(m.width, 1)) + "\n")

	switch v.Kind {
	case web0.KindImage:
		sb.WriteString(m.textures.Draw(v.Texture, v.Width, v.Height))
	case web0.KindText:
		sb.WriteString(faint + "[ctrl+y] copy the response body" + reset + "\n")
		if v.Title != "" || len(v.Links) > 0 {
			fmt.Fprintf(&sb, "title: %s\n", v.Title)
			fmt.Fprintf(&sb, "links: %d\n", len(v.Links))
			for _, link := range v.Links {
				sb.WriteString("  " + link + "\n")
			}
		}
		sb.WriteString(strings.Repeat("─", max(m.width, 1)) + "\n")
		sb.WriteString(v.Text)
	}

	return sb.String()
}
