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
	"image"
	"image/color"
	"image/png"
	"testing"
)

// performerFunc adapts a function to the Performer interface.
type performerFunc func(ctx context.Context, req Request) FetchOutcome

func (f performerFunc) Perform(ctx context.Context, req Request) FetchOutcome {
	return f(ctx, req)
}

func newPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func textResponse(status int, body string) *RawResponse {
	return &RawResponse{
		URL:        "http://x/ok",
		Status:     status,
		StatusText: "",
		Headers:    map[string]string{"content-type": "text/plain"},
		Bytes:      []byte(body),
	}
}
