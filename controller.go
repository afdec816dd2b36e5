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
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// ControllerOptions is a type for functional options that can be used to configure a Controller.
type ControllerOptions func(c *Controller)

// inFlight is the single outstanding request of a Controller.
type inFlight struct {
	id      xid.ID
	request Request
	started time.Time
	// done receives at most one outcome and is closed when the background work ends.
	done <-chan FetchOutcome
}

// Controller owns at most one in-flight request. Requests run on their own
// goroutine and their outcome is collected with the non-blocking Poll.
//
// A Controller is meant to be driven from a single foreground loop; Start,
// Poll and Busy must not be called concurrently.
type Controller struct {
	// Context is passed to every performed request. Can be set with the WithContext functional option.
	Context context.Context
	// performer does the blocking HTTP work on the background goroutine.
	performer Performer
	// repaint is called from the background goroutine once an outcome has been delivered.
	repaint func()
	// log receives lifecycle events of dispatched requests.
	log zerolog.Logger
	// current is nil when the Controller is idle.
	current *inFlight
}

// NewController creates an idle Controller that performs requests with p.
func NewController(p Performer, options ...ControllerOptions) *Controller {
	c := &Controller{
		Context:   context.Background(),
		performer: p,
		repaint:   func() {},
		log:       zerolog.Nop(),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// WithContext is a functional option that sets the context used for requests.
func WithContext(ctx context.Context) ControllerOptions {
	return func(c *Controller) {
		c.Context = ctx
	}
}

// WithRepaint is a functional option that sets a fire-and-forget notification
// invoked after a background request has delivered its outcome. It must not block.
func WithRepaint(fn func()) ControllerOptions {
	return func(c *Controller) {
		if fn != nil {
			c.repaint = fn
		}
	}
}

// WithControllerLogger is a functional option that sets the logger of the Controller.
func WithControllerLogger(logger zerolog.Logger) ControllerOptions {
	return func(c *Controller) {
		c.log = logger
	}
}

// Start dispatches req on a new goroutine and returns immediately. A request
// that is still in flight is abandoned: it runs to completion but its outcome
// can no longer be observed.
func (c *Controller) Start(req Request) {
	if c.current != nil {
		c.log.Debug().
			Str("request_id", c.current.id.String()).
			Stringer("request", c.current.request).
			Msg("Abandoning in-flight request")
	}

	req.Body = append([]byte(nil), req.Body...)

	done := make(chan FetchOutcome, 1)
	flight := &inFlight{
		id:      xid.New(),
		request: req,
		started: time.Now(),
		done:    done,
	}
	c.current = flight

	c.log.Debug().
		Str("request_id", flight.id.String()).
		Stringer("request", req).
		Msg("Dispatching request")

	go c.run(c.Context, c.performer, c.repaint, flight.id, req, done)
}

// run is the background unit of work. The outcome is delivered before done is
// closed, so a closed channel without a message means the work was aborted.
func (c *Controller) run(ctx context.Context, p Performer, repaint func(), id xid.ID, req Request, done chan<- FetchOutcome) {
	log := c.log.With().Str("request_id", id.String()).Logger()

	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.WithLevel(zerolog.PanicLevel).Interface("error", r).Msg("Panic in background request")
		}
	}()

	outcome := p.Perform(ctx, req)
	if outcome.Err == nil && outcome.Response == nil {
		outcome = Failed(FailureAborted, ErrAborted)
	}

	done <- outcome

	if outcome.Err != nil {
		log.Debug().Err(outcome.Err).Stringer("kind", outcome.Err.Kind).Msg("Request failed")
	} else {
		log.Debug().Int("status", outcome.Response.Status).Msg("Request delivered")
	}

	repaint()
}

// Poll returns the outcome of the in-flight request if it is ready. When it
// is, the Controller becomes idle. Poll never blocks and has no effect when
// nothing is ready.
func (c *Controller) Poll() (FetchOutcome, bool) {
	if c.current == nil {
		return FetchOutcome{}, false
	}

	select {
	case outcome, ok := <-c.current.done:
		flight := c.current
		c.current = nil

		if !ok {
			outcome = Failed(FailureAborted, ErrAborted)
		}

		c.log.Debug().
			Str("request_id", flight.id.String()).
			Dur("elapsed", time.Since(flight.started)).
			Msg("Collected request outcome")

		return outcome, true
	default:
		return FetchOutcome{}, false
	}
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	return c.current != nil
}
