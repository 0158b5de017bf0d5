// Package preview renders skeletons to images without a GPU, for quick
// visual checks of an imported rig. Joints draw as filled discs sized by
// their display radius, bones as segments to the parent joint, framed by an
// orthographic front-view fit.
package preview

import (
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig"
)

// Renderer draws skeleton previews.
type Renderer interface {
	// Render draws the skeleton's rest pose.
	//
	// Parameters:
	//   - skel: the imported skeleton
	//
	// Returns:
	//   - *image.NRGBA: the rendered image at the configured size
	//   - error: if the skeleton carries no joints
	Render(skel *rig.ImportedSkeleton) (*image.NRGBA, error)

	// RenderAt draws the skeleton posed by the live graph at time t, so
	// animated rigs can be checked at any frame.
	//
	// Parameters:
	//   - skel: the imported skeleton
	//   - t: the evaluation time
	//
	// Returns:
	//   - *image.NRGBA: the rendered image at the configured size
	//   - error: if the skeleton carries no joints
	RenderAt(skel *rig.ImportedSkeleton, t float64) (*image.NRGBA, error)

	// Encode renders the rest pose and writes it as WebP.
	//
	// Parameters:
	//   - w: destination writer
	//   - skel: the imported skeleton
	//
	// Returns:
	//   - error: any render or encode error
	Encode(w io.Writer, skel *rig.ImportedSkeleton) error

	// EncodeFile renders the rest pose into a WebP file.
	//
	// Parameters:
	//   - path: destination file path
	//   - skel: the imported skeleton
	//
	// Returns:
	//   - error: any render, create, or encode error
	EncodeFile(path string, skel *rig.ImportedSkeleton) error
}

var _ Renderer = &rendererImpl{}

type rendererImpl struct {
	size        int
	supersample int
	background  color.NRGBA
	boneColor   color.NRGBA
	jointColor  color.NRGBA
	logger      *log.Logger
}

func (r *rendererImpl) Render(skel *rig.ImportedSkeleton) (*image.NRGBA, error) {
	positions, radii, parents, err := restPose(skel)
	if err != nil {
		return nil, err
	}
	return r.rasterize(positions, radii, parents), nil
}

func (r *rendererImpl) RenderAt(skel *rig.ImportedSkeleton, t float64) (*image.NRGBA, error) {
	positions, radii, parents, err := restPose(skel)
	if err != nil {
		return nil, err
	}
	for i, joint := range skel.Joints {
		if joint == nil {
			continue
		}
		positions[i] = common.TranslationOf(joint.WorldMatrixAt(t))
	}
	return r.rasterize(positions, radii, parents), nil
}

func (r *rendererImpl) Encode(w io.Writer, skel *rig.ImportedSkeleton) error {
	img, err := r.Render(skel)
	if err != nil {
		return err
	}
	return encodeWebP(w, img)
}

func (r *rendererImpl) EncodeFile(path string, skel *rig.ImportedSkeleton) error {
	img, err := r.Render(skel)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	if err := encodeWebP(f, img); err != nil {
		return err
	}
	r.logger.Debug("wrote skeleton preview", "path", path, "size", r.size)
	return nil
}

// restPose collects drawable joints: rest positions, display radii, and the
// index of each joint's parent joint (-1 when the parent is not a joint).
// Placeholder slots stay in the arrays with a NaN position so indices still
// line up with the skeleton's joint list.
func restPose(skel *rig.ImportedSkeleton) ([]mgl64.Vec3, []float64, []int, error) {
	if skel == nil || len(skel.Joints) == 0 {
		return nil, nil, nil, errors.New("skeleton has no joints to draw")
	}
	if len(skel.RestSkelTransforms) != len(skel.Joints) {
		return nil, nil, nil, errors.Errorf("skeleton carries %d rest transforms for %d joints",
			len(skel.RestSkelTransforms), len(skel.Joints))
	}

	indexOf := make(map[string]int, len(skel.Joints))
	for i, joint := range skel.Joints {
		if joint != nil {
			indexOf[joint.UUID().String()] = i
		}
	}

	positions := make([]mgl64.Vec3, len(skel.Joints))
	radii := make([]float64, len(skel.Joints))
	parents := make([]int, len(skel.Joints))
	drawable := 0
	for i, joint := range skel.Joints {
		parents[i] = -1
		if joint == nil {
			positions[i] = mgl64.Vec3{math.NaN(), math.NaN(), math.NaN()}
			continue
		}
		drawable++
		positions[i] = common.TranslationOf(skel.RestSkelTransforms[i])
		radii[i] = 1
		if v, err := joint.Plug("radius").Float(); err == nil {
			radii[i] = v
		}
		if parent := joint.Parent(); parent != nil {
			if pi, ok := indexOf[parent.UUID().String()]; ok {
				parents[i] = pi
			}
		}
	}
	if drawable == 0 {
		return nil, nil, nil, errors.New("skeleton has no joints to draw")
	}
	return positions, radii, parents, nil
}

// rasterize draws bones then joints at supersampled resolution and scales
// the result down to the configured size.
func (r *rendererImpl) rasterize(positions []mgl64.Vec3, radii []float64, parents []int) *image.NRGBA {
	renderSize := r.size * r.supersample
	canvas := newCanvas(renderSize, r.background)

	px, py, scale := projectOrtho(positions, renderSize)
	halfWidth := float64(r.supersample)

	for i, pi := range parents {
		if pi < 0 || math.IsNaN(px[i]) || math.IsNaN(px[pi]) {
			continue
		}
		canvas.segment(px[i], py[i], px[pi], py[pi], halfWidth, r.boneColor)
	}
	for i := range positions {
		if math.IsNaN(px[i]) {
			continue
		}
		pr := common.Clamp(radii[i]*scale, 2*float64(r.supersample), float64(renderSize)/4)
		canvas.disc(px[i], py[i], pr, r.jointColor)
	}

	if r.supersample <= 1 {
		return canvas.img
	}
	return downsample(canvas.img, r.size)
}

// projectOrtho maps world positions onto pixel coordinates with a front
// view: X right, Y up, the whole skeleton centered and fit with a margin.
// It returns the pixel coordinates and the world-to-pixel scale.
func projectOrtho(positions []mgl64.Vec3, renderSize int) ([]float64, []float64, float64) {
	bounds := common.NewBounds3()
	for _, p := range positions {
		if math.IsNaN(p.X()) {
			continue
		}
		bounds.Extend(p)
	}

	size := bounds.Size()
	span := math.Max(size.X(), size.Y())
	if span < 0.001 {
		span = 0.001
	}
	margin := renderSize / 8
	scale := float64(renderSize-2*margin) / span
	center := bounds.Center()
	half := float64(renderSize) / 2

	px := make([]float64, len(positions))
	py := make([]float64, len(positions))
	for i, p := range positions {
		if math.IsNaN(p.X()) {
			px[i], py[i] = math.NaN(), math.NaN()
			continue
		}
		px[i] = (p.X()-center.X())*scale + half
		py[i] = half - (p.Y()-center.Y())*scale
	}
	return px, py, scale
}

// canvas is a flat NRGBA target with solid-fill primitives; edge quality
// comes from supersampling rather than per-primitive coverage.
type canvas struct {
	img  *image.NRGBA
	size int
}

func newCanvas(size int, background color.NRGBA) *canvas {
	c := &canvas{img: image.NewNRGBA(image.Rect(0, 0, size, size)), size: size}
	for y := 0; y < size; y++ {
		off := y * c.img.Stride
		for x := 0; x < size; x++ {
			i := off + x*4
			c.img.Pix[i] = background.R
			c.img.Pix[i+1] = background.G
			c.img.Pix[i+2] = background.B
			c.img.Pix[i+3] = background.A
		}
	}
	return c
}

func (c *canvas) set(x, y int, col color.NRGBA) {
	if x < 0 || y < 0 || x >= c.size || y >= c.size {
		return
	}
	i := y*c.img.Stride + x*4
	c.img.Pix[i] = col.R
	c.img.Pix[i+1] = col.G
	c.img.Pix[i+2] = col.B
	c.img.Pix[i+3] = col.A
}

// disc fills a circle by bounding-box scan with a squared-distance test.
func (c *canvas) disc(cx, cy, radius float64, col color.NRGBA) {
	r2 := radius * radius
	x0 := int(math.Floor(cx - radius))
	x1 := int(math.Ceil(cx + radius))
	y0 := int(math.Floor(cy - radius))
	y1 := int(math.Ceil(cy + radius))
	for y := y0; y <= y1; y++ {
		dy := float64(y) + 0.5 - cy
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx+dy*dy <= r2 {
				c.set(x, y, col)
			}
		}
	}
}

// segment fills every pixel within halfWidth of the line between the two
// endpoints, scanning the segment's expanded bounding box.
func (c *canvas) segment(ax, ay, bx, by, halfWidth float64, col color.NRGBA) {
	x0 := int(math.Floor(math.Min(ax, bx) - halfWidth))
	x1 := int(math.Ceil(math.Max(ax, bx) + halfWidth))
	y0 := int(math.Floor(math.Min(ay, by) - halfWidth))
	y1 := int(math.Ceil(math.Max(ay, by) + halfWidth))

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	w2 := halfWidth * halfWidth
	for y := y0; y <= y1; y++ {
		pyc := float64(y) + 0.5
		for x := x0; x <= x1; x++ {
			pxc := float64(x) + 0.5
			if distSqToSegment(pxc, pyc, ax, ay, dx, dy, lenSq) <= w2 {
				c.set(x, y, col)
			}
		}
	}
}

// distSqToSegment returns the squared distance from point p to the segment
// starting at a with direction d and squared length lenSq.
func distSqToSegment(px, py, ax, ay, dx, dy, lenSq float64) float64 {
	t := 0.0
	if lenSq > 0 {
		t = common.Clamp(((px-ax)*dx+(py-ay)*dy)/lenSq, 0, 1)
	}
	ex := ax + t*dx - px
	ey := ay + t*dy - py
	return ex*ex + ey*ey
}
