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
	"math"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// FetchController is the part of a Controller that State drives.
type FetchController interface {
	Start(req Request)
	Poll() (FetchOutcome, bool)
	Busy() bool
}

var _ FetchController = (*Controller)(nil)

// Result is the last completed fetch: either a Resource or an error.
type Result struct {
	Resource *Resource
	Err      error
}

// ErrorText is the message shown for a failed result. Empty messages become "Error".
func (r *Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}

	if msg := r.Err.Error(); msg != "" {
		return msg
	}

	return "Error"
}

// State is the presentation state of the probe. It is owned by the render
// loop and passed to it by pointer; nothing in it is shared with background
// goroutines.
type State struct {
	controller FetchController
	textures   *TextureSlot
	last       *Result
	log        zerolog.Logger
}

// NewState creates a State that starts requests with controller and keeps
// image textures in textures.
func NewState(controller FetchController, textures *TextureSlot, logger zerolog.Logger) *State {
	return &State{
		controller: controller,
		textures:   textures,
		log:        logger,
	}
}

// Busy reports whether a request is in flight.
func (s *State) Busy() bool {
	return s.controller.Busy()
}

// Trigger starts req unless a request is already in flight. It reports whether req was started.
func (s *State) Trigger(req Request) bool {
	if s.controller.Busy() {
		s.log.Debug().Stringer("request", req).Msg("Ignoring trigger while busy")
		return false
	}

	s.controller.Start(req)

	return true
}

// Tick collects a finished request, if any, and stores its classified
// result. It reports whether the last result changed.
func (s *State) Tick() bool {
	if !s.controller.Busy() {
		return false
	}

	outcome, ok := s.controller.Poll()
	if !ok {
		return false
	}

	resource, err := Classify(outcome)
	s.last = &Result{Resource: resource, Err: err}

	if err != nil {
		s.log.Info().Err(err).Msg("Fetch failed")
	} else {
		s.log.Info().
			Str("url", resource.URL).
			Int("status", resource.Status).
			Stringer("kind", resource.Kind()).
			Msg("Fetch completed")
	}

	return true
}

// Last returns the last completed result, or nil.
func (s *State) Last() *Result {
	return s.last
}

// Clear forgets the last result and releases its texture.
func (s *State) Clear() {
	s.last = nil
	s.textures.Release()
}

// HeaderField is one row of the header table.
type HeaderField struct {
	Name  string
	Value string
}

// View is everything the display needs to draw one frame.
type View struct {
	// Loading is set while a request is in flight; nothing else is filled in then.
	Loading bool
	// Empty is set when there is no result yet.
	Empty bool
	// Error is the message of a failed fetch.
	Error string

	URL         string
	Status      string
	ContentType string
	Size        string
	Headers     []HeaderField
	Kind        Kind

	// Text is the body of a text resource. Copyable marks it for the clipboard action.
	Text     string
	Copyable bool
	// Title and Links summarise HTML documents.
	Title string
	Links []string

	// Texture is set for image resources, with the on-screen size.
	Texture    TextureHandle
	HasTexture bool
	Width      int
	Height     int
}

// View builds the frame for availableWidth units of horizontal space. For an
// image result it makes sure the texture for the resource's URL is resident.
func (s *State) View(availableWidth int) View {
	if s.controller.Busy() {
		return View{Loading: true}
	}

	if s.last == nil {
		return View{Empty: true}
	}

	if s.last.Err != nil {
		return View{Error: s.last.ErrorText()}
	}

	res := s.last.Resource
	v := View{
		URL:         res.URL,
		Status:      fmt.Sprintf("%d (%s)", res.Status, res.StatusText),
		ContentType: res.ContentType(),
		Size:        humanize.Bytes(uint64(res.Size)),
		Kind:        res.Kind(),
	}

	for _, name := range sortedNames(res.Headers) {
		v.Headers = append(v.Headers, HeaderField{Name: name, Value: res.Headers[name]})
	}

	switch res.Kind() {
	case KindText:
		v.Text, _ = res.Text()
		v.Copyable = true
		if doc := res.Document(); doc != nil {
			v.Title = doc.Title
			v.Links = doc.Links
		}
	case KindImage:
		img, _ := res.Image()
		v.Texture = s.textures.Ensure(res.URL, img)
		v.HasTexture = true
		v.Width, v.Height = ScaleToFit(img.Width, img.Height, availableWidth)
	}

	return v
}

// ScaleToFit scales width x height down to fit availableWidth, keeping the
// aspect ratio. Images are never scaled up.
func ScaleToFit(width, height, availableWidth int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}

	scale := math.Min(float64(availableWidth)/float64(width), 1.0)
	if scale <= 0 {
		return 0, 0
	}

	return int(math.Round(float64(width) * scale)), int(math.Round(float64(height) * scale))
}
