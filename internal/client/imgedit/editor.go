// Package imgedit prepares an image for hosting: crop, zoom and quadrant
// rotation are flattened into a single raster which is then uploaded. On
// upload failure the locally rendered bytes are kept as a data URL so the
// document field never ends up empty.
package imgedit

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
)

// State identifies where the editor is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateFileSelected
	StateEditing
	StateUploading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFileSelected:
		return "file selected"
	case StateEditing:
		return "editing"
	case StateUploading:
		return "uploading"
	default:
		return "unknown"
	}
}

// CropSpec describes the edit applied when the raster is flattened.
//
// Rect selects the source region in pixels of the decoded image. Zoom scales
// the selected region; 1.0 keeps it as is, 2.0 doubles each dimension.
// Quadrants rotates the result clockwise in 90 degree steps.
type CropSpec struct {
	Rect      image.Rectangle
	Zoom      float64
	Quadrants int
}

// uploader is the slice of the HTTP client the editor needs.
type uploader interface {
	UploadAsset(ctx context.Context, folder, fileName string, data []byte) (string, error)
}

// Result is the outcome of a finished edit session.
type Result struct {
	// URL is the hosted asset URL, or a data URL when the upload failed.
	URL string
	// Local is true when URL is a data URL rather than a hosted asset.
	Local bool
}

// Editor drives one image through select, edit and upload. Not safe for
// concurrent use; each edit session owns its Editor.
type Editor struct {
	api uploader

	state    State
	fileName string
	src      image.Image
	format   string
	prevURL  string
}

// NewEditor creates an Editor uploading through api.
func NewEditor(api uploader) *Editor {
	return &Editor{api: api, state: StateIdle}
}

// State returns the current lifecycle state.
func (e *Editor) State() State {
	return e.state
}

// Select decodes the picked file and moves to FileSelected. prevURL is the
// field's current value, restored on cancel.
func (e *Editor) Select(fileName string, data []byte, prevURL string) error {
	if e.state != StateIdle {
		return fmt.Errorf("cannot select a file while %s", e.state)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	e.fileName = fileName
	e.src = img
	e.format = format
	e.prevURL = prevURL
	e.state = StateFileSelected
	return nil
}

// Edit moves from FileSelected to Editing.
func (e *Editor) Edit() error {
	if e.state != StateFileSelected {
		return fmt.Errorf("cannot edit while %s", e.state)
	}
	e.state = StateEditing
	return nil
}

// Cancel abandons the session and returns the field's previous value.
func (e *Editor) Cancel() string {
	prev := e.prevURL
	e.reset()
	return prev
}

// Finish flattens the raster per spec, uploads it, and returns the hosted
// URL. When the upload fails the locally rendered image is returned as a
// data URL together with the upload error so the caller can surface it.
func (e *Editor) Finish(ctx context.Context, folder string, spec CropSpec) (Result, error) {
	if e.state != StateEditing {
		return Result{}, fmt.Errorf("cannot finish while %s", e.state)
	}

	flattened := Render(e.src, spec)

	data, contentType, err := encode(flattened, e.format)
	if err != nil {
		e.reset()
		return Result{}, err
	}

	e.state = StateUploading

	url, err := e.api.UploadAsset(ctx, folder, e.fileName, data)
	if err != nil {
		dataURL := toDataURL(contentType, data)
		e.reset()
		if errors.Is(err, common.ErrUpload) {
			return Result{URL: dataURL, Local: true}, err
		}
		return Result{URL: dataURL, Local: true}, fmt.Errorf("%w: %s", common.ErrUpload, err.Error())
	}

	e.reset()
	return Result{URL: url}, nil
}

func (e *Editor) reset() {
	e.state = StateIdle
	e.fileName = ""
	e.src = nil
	e.format = ""
	e.prevURL = ""
}

// Render flattens crop, zoom and rotation into one raster.
func Render(src image.Image, spec CropSpec) image.Image {
	rect := spec.Rect
	if rect.Empty() {
		rect = src.Bounds()
	} else {
		rect = rect.Intersect(src.Bounds())
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), src, rect.Min, draw.Src)

	scaled := scale(cropped, spec.Zoom)
	return rotate(scaled, spec.Quadrants)
}

// scale resizes by a positive factor using nearest-neighbour sampling.
func scale(src *image.RGBA, zoom float64) *image.RGBA {
	if zoom <= 0 || zoom == 1.0 {
		return src
	}

	b := src.Bounds()
	w := int(float64(b.Dx()) * zoom)
	h := int(float64(b.Dy()) * zoom)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := int(float64(y) / zoom)
		for x := 0; x < w; x++ {
			sx := int(float64(x) / zoom)
			dst.Set(x, y, src.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return dst
}

// rotate turns the image clockwise in 90 degree steps.
func rotate(src *image.RGBA, quadrants int) image.Image {
	quadrants = ((quadrants % 4) + 4) % 4
	if quadrants == 0 {
		return src
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if quadrants%2 == 1 {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			switch quadrants {
			case 1:
				dst.Set(h-1-y, x, c)
			case 2:
				dst.Set(w-1-x, h-1-y, c)
			case 3:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}

// encode serializes the raster in the source file's format. Anything that is
// not PNG is written as JPEG.
func encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

func toDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
