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
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wusyong/web0/internal/parser"
)

// maxImagePixels bounds the size of images that are decoded.
const maxImagePixels = 64 << 20

// Kind is the closed set of resource kinds.
type Kind int

const (
	// KindOpaque is a response that is neither text nor a decodable image.
	KindOpaque Kind = iota
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	}

	return "opaque"
}

// PixelBuffer is a decoded image in RGBA.
type PixelBuffer struct {
	Pixels *image.RGBA
	Width  int
	Height int
}

// Resource is the display-ready form of a completed response.
type Resource struct {
	// URL is the final URL after redirects.
	URL        string
	Status     int
	StatusText string
	// Headers holds the response headers keyed by lower-case name.
	Headers map[string]string
	// Size is the length of the body in bytes.
	Size int

	kind     Kind
	text     string
	image    *PixelBuffer
	document *parser.Document
}

// Kind returns the kind of the resource.
func (r *Resource) Kind() Kind {
	return r.kind
}

// Text returns the body of a text resource.
func (r *Resource) Text() (string, bool) {
	return r.text, r.kind == KindText
}

// Image returns the pixels of an image resource.
func (r *Resource) Image() (*PixelBuffer, bool) {
	return r.image, r.kind == KindImage
}

// Document returns the HTML summary of a text/html resource, or nil.
func (r *Resource) Document() *parser.Document {
	return r.document
}

// ContentType returns the content-type header, or "" when missing.
func (r *Resource) ContentType() string {
	return r.Headers["content-type"]
}

// Classify turns a FetchOutcome into a Resource. Transport failures are
// returned as errors; any delivered response, whatever its status, is a
// Resource.
func Classify(outcome FetchOutcome) (*Resource, error) {
	if outcome.Err != nil {
		return nil, outcome.Err
	}

	if outcome.Response == nil {
		return nil, &TransportError{Kind: FailureAborted, Err: ErrAborted}
	}

	res := outcome.Response
	resource := &Resource{
		URL:        res.URL,
		Status:     res.Status,
		StatusText: res.StatusText,
		Headers:    lowerKeys(res.Headers),
		Size:       len(res.Bytes),
	}

	contentType, ok := resource.Headers["content-type"]
	if !ok {
		resource.kind = KindOpaque
		return resource, nil
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))

	switch {
	case strings.HasPrefix(contentType, "image/"):
		if img, ok := decodeImage(res.Bytes); ok {
			resource.kind = KindImage
			resource.image = img
		} else {
			resource.kind = KindOpaque
		}
	default:
		resource.kind = KindText
		resource.text = strings.ToValidUTF8(string(res.Bytes), "\uFFFD")

		if strings.HasPrefix(contentType, "text/html") {
			if doc, err := parser.Inspect(res.Bytes, res.URL); err == nil {
				resource.document = doc
			}
		}
	}

	return resource, nil
}

// lowerKeys copies headers, lower-casing every name so lookups never depend on
// how the adapter spelled them.
func lowerKeys(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		out[strings.ToLower(name)] = value
	}

	return out
}

// decodeImage decodes b, detecting the format from the bytes themselves.
func decodeImage(b []byte) (*PixelBuffer, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, false
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &PixelBuffer{
		Pixels: rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, true
}
