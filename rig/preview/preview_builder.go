package preview

import (
	"image/color"
	"os"

	"github.com/charmbracelet/log"
)

const (
	defaultSize        = 512
	defaultSupersample = 4
)

// RendererBuilderOption is a function which modifies the renderer
// configuration.
type RendererBuilderOption func(*rendererImpl)

// WithSize is an option builder that sets the output image size in pixels.
//
// Parameters:
//   - size: the output width and height
//
// Returns:
//   - RendererBuilderOption: the option function
func WithSize(size int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if size > 0 {
			r.size = size
		}
	}
}

// WithSupersample is an option builder that sets the supersampling factor.
// Rendering happens at factor times the output size before downscaling.
//
// Parameters:
//   - factor: the supersampling factor, minimum 1
//
// Returns:
//   - RendererBuilderOption: the option function
func WithSupersample(factor int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if factor > 0 {
			r.supersample = factor
		}
	}
}

// WithBackground is an option builder that sets the background color.
//
// Parameters:
//   - c: the background fill color
//
// Returns:
//   - RendererBuilderOption: the option function
func WithBackground(c color.NRGBA) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.background = c
	}
}

// WithBoneColor is an option builder that sets the bone segment color.
//
// Parameters:
//   - c: the bone color
//
// Returns:
//   - RendererBuilderOption: the option function
func WithBoneColor(c color.NRGBA) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.boneColor = c
	}
}

// WithJointColor is an option builder that sets the joint disc color.
//
// Parameters:
//   - c: the joint color
//
// Returns:
//   - RendererBuilderOption: the option function
func WithJointColor(c color.NRGBA) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.jointColor = c
	}
}

// WithRendererLogger is an option builder that sets the logger used by the
// renderer.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - RendererBuilderOption: the option function
func WithRendererLogger(logger *log.Logger) RendererBuilderOption {
	return func(r *rendererImpl) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer creates a preview renderer with the provided options applied
// over the defaults: 512 pixels, 4x supersampling, transparent background.
//
// Parameters:
//   - options: optional configuration functions
//
// Returns:
//   - Renderer: the configured renderer
func NewRenderer(options ...RendererBuilderOption) Renderer {
	r := &rendererImpl{
		size:        defaultSize,
		supersample: defaultSupersample,
		background:  color.NRGBA{},
		boneColor:   color.NRGBA{R: 198, G: 200, B: 206, A: 255},
		jointColor:  color.NRGBA{R: 235, G: 164, B: 54, A: 255},
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{
			Level:  log.WarnLevel,
			Prefix: "preview",
		})
	}
	return r
}
