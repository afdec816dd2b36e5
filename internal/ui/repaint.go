package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// RepaintMsg asks the program to poll for a finished request right away
// instead of waiting for the next tick.
type RepaintMsg struct{}

// Repainter forwards repaint requests from background goroutines to a
// running program. Requests made before Attach are dropped.
type Repainter struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach sets the program that receives repaint requests.
func (r *Repainter) Attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.program = p
}

// Repaint sends a RepaintMsg without waiting for the program to receive it.
func (r *Repainter) Repaint() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()

	if p != nil {
		go p.Send(RepaintMsg{})
	}
}
