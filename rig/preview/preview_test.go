package preview

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Carmen-Shannon/skelport-go/rig"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
)

// stickFigure is a minimal skeleton source for render tests.
type stickFigure struct {
	paths  []string
	topo   model.Topology
	locals []mgl64.Mat4
}

var _ rig.SkeletonQuery = &stickFigure{}

func (s *stickFigure) Name() string             { return "stick" }
func (s *stickFigure) JointPaths() []string     { return s.paths }
func (s *stickFigure) Topology() model.Topology { return s.topo }
func (s *stickFigure) HasAnimation() bool       { return false }

func (s *stickFigure) JointLocalTransforms(float64, bool) ([]mgl64.Mat4, error) {
	out := make([]mgl64.Mat4, len(s.locals))
	copy(out, s.locals)
	return out, nil
}

func (s *stickFigure) JointSkelTransforms(t float64, atRest bool) ([]mgl64.Mat4, error) {
	locals, err := s.JointLocalTransforms(t, atRest)
	if err != nil {
		return nil, err
	}
	out := make([]mgl64.Mat4, len(locals))
	for i, lm := range locals {
		if p := s.topo.Parent(i); p >= 0 {
			out[i] = out[p].Mul4(lm)
		} else {
			out[i] = lm
		}
	}
	return out, nil
}

func (s *stickFigure) TimeSamples(*model.TimeRange) ([]float64, error) { return nil, nil }

func (s *stickFigure) RootTransform(float64) (mgl64.Mat4, bool, error) {
	return mgl64.Ident4(), false, nil
}

// upright is a three joint column: hip at the origin, chest and head each
// two units above their parent.
func upright() *stickFigure {
	return &stickFigure{
		paths: []string{"/skel/hip", "/skel/hip/chest", "/skel/hip/chest/head"},
		topo:  model.Topology{-1, 0, 1},
		locals: []mgl64.Mat4{
			mgl64.Ident4(),
			mgl64.Translate3D(0, 2, 0),
			mgl64.Translate3D(0, 2, 0),
		},
	}
}

func importFigure(t *testing.T, q rig.SkeletonQuery) (rig.Importer, *rig.ImportedSkeleton) {
	t.Helper()
	imp := rig.NewImporter(rig.WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(q)
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	return imp, skel
}

func TestRenderSkeleton(t *testing.T) {
	_, skel := importFigure(t, upright())
	bone := color.NRGBA{R: 10, G: 200, B: 10, A: 255}
	joint := color.NRGBA{R: 200, G: 10, B: 10, A: 255}
	r := NewRenderer(WithSize(64), WithSupersample(1), WithBoneColor(bone), WithJointColor(joint))

	img, err := r.Render(skel)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("bounds:\nhave %v\nwant 64x64", img.Bounds())
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{}) {
		t.Fatalf("corner:\nhave %v\nwant transparent background", got)
	}
	// The column fits to x 32 with the head joint at y 8 and a bone
	// between hip and chest crossing y 44.
	if got := img.NRGBAAt(32, 8); got != joint {
		t.Fatalf("head pixel:\nhave %v\nwant joint color", got)
	}
	if got := img.NRGBAAt(32, 44); got != bone {
		t.Fatalf("bone pixel:\nhave %v\nwant bone color", got)
	}
}

func TestRenderRequiresJoints(t *testing.T) {
	r := NewRenderer(WithSize(16), WithSupersample(1))
	if _, err := r.Render(nil); err == nil {
		t.Fatalf("nil skeleton: no error")
	}
	if _, err := r.Render(&rig.ImportedSkeleton{}); err == nil {
		t.Fatalf("empty skeleton: no error")
	}
}

func TestRenderSkipsPlaceholderJoints(t *testing.T) {
	_, skel := importFigure(t, &stickFigure{
		paths: []string{"", "/skel/a", "/skel/a/b"},
		topo:  model.Topology{-1, -1, 1},
		locals: []mgl64.Mat4{
			mgl64.Ident4(),
			mgl64.Translate3D(1, 0, 0),
			mgl64.Translate3D(1, 0, 0),
		},
	})
	bg := color.NRGBA{R: 20, G: 20, B: 40, A: 255}
	r := NewRenderer(WithSize(32), WithSupersample(1), WithBackground(bg))
	img, err := r.Render(skel)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Fatalf("bounds:\nhave %v\nwant 32x32", img.Bounds())
	}
	if got := img.NRGBAAt(0, 0); got != bg {
		t.Fatalf("corner:\nhave %v\nwant configured background", got)
	}
}

func TestRenderAtFollowsLivePose(t *testing.T) {
	_, skel := importFigure(t, upright())
	r := NewRenderer(WithSize(64), WithSupersample(1))

	rest, err := r.Render(skel)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// Bend the chest sideways in the live graph; the rest render must not
	// move, the posed render must.
	if err := skel.Joints[1].Plug("translateX").Set(3.0); err != nil {
		t.Fatalf("bend chest: %v", err)
	}
	restAgain, err := r.Render(skel)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(rest.Pix, restAgain.Pix) {
		t.Fatalf("rest render changed after a pose edit")
	}
	posed, err := r.RenderAt(skel, 0)
	if err != nil {
		t.Fatalf("RenderAt: %v", err)
	}
	if bytes.Equal(rest.Pix, posed.Pix) {
		t.Fatalf("posed render identical to rest")
	}
}

func TestDownsampleTargetSize(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for i := 3; i < len(big.Pix); i += 4 {
		big.Pix[i] = 255
	}
	small := downsample(big, 32)
	if small.Bounds().Dx() != 32 || small.Bounds().Dy() != 32 {
		t.Fatalf("bounds:\nhave %v\nwant 32x32", small.Bounds())
	}

	same := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	if got := downsample(same, 32); got != same {
		t.Fatalf("small image should pass through untouched")
	}
}

func TestEncodeWritesWebP(t *testing.T) {
	_, skel := importFigure(t, upright())
	r := NewRenderer(WithSize(16), WithSupersample(1))

	var buf bytes.Buffer
	if err := r.Encode(&buf, skel); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b := buf.Bytes()
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		t.Fatalf("output:\nhave % x\nwant a RIFF WebP container", b[:min(len(b), 12)])
	}
}

func TestEncodeFile(t *testing.T) {
	_, skel := importFigure(t, upright())
	r := NewRenderer(WithSize(16), WithSupersample(1))

	path := filepath.Join(t.TempDir(), "stick.webp")
	if err := r.EncodeFile(path, skel); err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < 4 || string(data[0:4]) != "RIFF" {
		t.Fatalf("file content:\nhave % x\nwant RIFF header", data[:min(len(data), 4)])
	}

	bad := filepath.Join(t.TempDir(), "no", "such", "dir", "stick.webp")
	if err := r.EncodeFile(bad, skel); err == nil {
		t.Fatalf("unwritable path: no error")
	}
}
