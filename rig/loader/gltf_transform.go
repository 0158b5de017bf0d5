package loader

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

var gltfIdentityMatrix = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// nodeTRS is a node's local transform split into translate, rotate and
// scale so animation channels can override each part independently.
type nodeTRS struct {
	translation mgl64.Vec3
	rotation    mgl64.Quat
	scale       mgl64.Vec3
}

func (x nodeTRS) matrix() mgl64.Mat4 {
	m := mgl64.Translate3D(x.translation[0], x.translation[1], x.translation[2])
	m = m.Mul4(x.rotation.Mat4())
	return m.Mul4(mgl64.Scale3D(x.scale[0], x.scale[1], x.scale[2]))
}

// nodeRestTRS extracts a node's rest transform. A matrix-authored node is
// decomposed; otherwise the TRS fields are used directly, with zeroed
// rotation and scale read as identity since hand-built documents skip the
// parser's default fill-in.
func nodeRestTRS(node *gltf.Node) nodeTRS {
	out := nodeTRS{
		rotation: mgl64.QuatIdent(),
		scale:    mgl64.Vec3{1, 1, 1},
	}
	if node == nil {
		return out
	}
	if node.Matrix != gltfIdentityMatrix && node.Matrix != ([16]float32{}) {
		return decomposeMat4(mat4FromGLTF(node.Matrix))
	}
	out.translation = mgl64.Vec3{
		float64(node.Translation[0]),
		float64(node.Translation[1]),
		float64(node.Translation[2]),
	}
	if node.Rotation != ([4]float32{}) {
		// glTF stores quaternions as XYZW.
		out.rotation = mgl64.Quat{
			W: float64(node.Rotation[3]),
			V: mgl64.Vec3{
				float64(node.Rotation[0]),
				float64(node.Rotation[1]),
				float64(node.Rotation[2]),
			},
		}.Normalize()
	}
	if node.Scale != ([3]float32{}) {
		out.scale = mgl64.Vec3{
			float64(node.Scale[0]),
			float64(node.Scale[1]),
			float64(node.Scale[2]),
		}
	}
	return out
}

// mat4FromGLTF widens a column-major glTF matrix to mgl64, which uses the
// same layout.
func mat4FromGLTF(v [16]float32) mgl64.Mat4 {
	var m mgl64.Mat4
	for i := range v {
		m[i] = float64(v[i])
	}
	return m
}

// decomposeMat4 splits a transform into TRS parts. Scale comes from the
// basis column lengths, rotation from the normalized basis. Degenerate
// columns fall back to unit scale to keep the quaternion extraction sane.
func decomposeMat4(m mgl64.Mat4) nodeTRS {
	out := nodeTRS{
		translation: mgl64.Vec3{m[12], m[13], m[14]},
		rotation:    mgl64.QuatIdent(),
		scale:       mgl64.Vec3{1, 1, 1},
	}
	rot := mgl64.Ident4()
	for c := 0; c < 3; c++ {
		col := mgl64.Vec3{m[c*4], m[c*4+1], m[c*4+2]}
		length := col.Len()
		if length > 1e-12 {
			out.scale[c] = length
			col = col.Mul(1 / length)
		}
		rot[c*4] = col[0]
		rot[c*4+1] = col[1]
		rot[c*4+2] = col[2]
	}
	out.rotation = mgl64.Mat4ToQuat(rot).Normalize()
	return out
}

// keyedVec3 is one sampled vector track, already reduced to plain keyframes.
type keyedVec3 struct {
	times  []float32
	values [][3]float32
	step   bool
}

func (k *keyedVec3) sample(t float64, def mgl64.Vec3) mgl64.Vec3 {
	if len(k.times) == 0 {
		return def
	}
	i, frac := locateKey(k.times, t)
	a := vec3From(k.values[i])
	if frac <= 0 || k.step || i+1 >= len(k.values) {
		return a
	}
	b := vec3From(k.values[i+1])
	return a.Add(b.Sub(a).Mul(frac))
}

// keyedQuat is one sampled rotation track.
type keyedQuat struct {
	times  []float32
	values [][4]float32
	step   bool
}

func (k *keyedQuat) sample(t float64, def mgl64.Quat) mgl64.Quat {
	if len(k.times) == 0 {
		return def
	}
	i, frac := locateKey(k.times, t)
	a := quatFrom(k.values[i])
	if frac <= 0 || k.step || i+1 >= len(k.values) {
		return a
	}
	b := quatFrom(k.values[i+1])
	// Keep the pair in the same hemisphere so slerp takes the short arc.
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, frac).Normalize()
}

// locateKey finds the key interval containing t, clamping outside the
// track's range. frac is the normalized position within the interval, 0
// when t sits on or before the key.
func locateKey(times []float32, t float64) (int, float64) {
	if t <= float64(times[0]) {
		return 0, 0
	}
	last := len(times) - 1
	if t >= float64(times[last]) {
		return last, 0
	}
	i := sort.Search(len(times), func(i int) bool { return float64(times[i]) > t }) - 1
	t0, t1 := float64(times[i]), float64(times[i+1])
	if t1 <= t0 {
		return i, 0
	}
	return i, (t - t0) / (t1 - t0)
}

func vec3From(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func quatFrom(v [4]float32) mgl64.Quat {
	q := mgl64.Quat{
		W: float64(v[3]),
		V: mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])},
	}
	if q.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// trsChannels bundles the animation tracks targeting one node.
type trsChannels struct {
	translation keyedVec3
	rotation    keyedQuat
	scale       keyedVec3
}

func (c *trsChannels) empty() bool {
	return len(c.translation.times) == 0 && len(c.rotation.times) == 0 && len(c.scale.times) == 0
}

func (c *trsChannels) eachTimes(fn func([]float32)) {
	if len(c.translation.times) > 0 {
		fn(c.translation.times)
	}
	if len(c.rotation.times) > 0 {
		fn(c.rotation.times)
	}
	if len(c.scale.times) > 0 {
		fn(c.scale.times)
	}
}

// sample evaluates the channels at time t; tracks without keys keep the
// rest value for their part.
func (c *trsChannels) sample(t float64, rest nodeTRS) nodeTRS {
	return nodeTRS{
		translation: c.translation.sample(t, rest.translation),
		rotation:    c.rotation.sample(t, rest.rotation),
		scale:       c.scale.sample(t, rest.scale),
	}
}

// load reads one animation sampler into the matching track. Cubic spline
// samplers are reduced to their value points, dropping the tangents.
func (c *trsChannels) load(doc *gltf.Document, sampler *gltf.AnimationSampler, path gltf.TRSProperty) error {
	if sampler == nil || sampler.Input == nil || sampler.Output == nil {
		return nil
	}
	times, err := readScalarAccessor(doc, *sampler.Input)
	if err != nil {
		return errors.Wrap(err, "sampler input")
	}
	if len(times) == 0 {
		return nil
	}
	cubic := sampler.Interpolation == gltf.InterpolationCubicSpline
	step := sampler.Interpolation == gltf.InterpolationStep

	switch path {
	case gltf.TRSTranslation, gltf.TRSScale:
		values, err := readVec3Accessor(doc, *sampler.Output)
		if err != nil {
			return errors.Wrap(err, "sampler output")
		}
		if cubic {
			values = cubicValuePoints3(values, len(times))
		}
		if len(values) < len(times) {
			return errors.Errorf("sampler output has %d values for %d keys", len(values), len(times))
		}
		track := keyedVec3{times: times, values: values[:len(times)], step: step}
		if path == gltf.TRSTranslation {
			c.translation = track
		} else {
			c.scale = track
		}
	case gltf.TRSRotation:
		values, err := readVec4Accessor(doc, int(*sampler.Output))
		if err != nil {
			return errors.Wrap(err, "sampler output")
		}
		if cubic {
			values = cubicValuePoints4(values, len(times))
		}
		if len(values) < len(times) {
			return errors.Errorf("sampler output has %d values for %d keys", len(values), len(times))
		}
		c.rotation = keyedQuat{times: times, values: values[:len(times)], step: step}
	}
	return nil
}

// cubicValuePoints3 keeps the value element of each in/value/out triple.
func cubicValuePoints3(values [][3]float32, keys int) [][3]float32 {
	if len(values) < keys*3 {
		return values
	}
	out := make([][3]float32, keys)
	for i := 0; i < keys; i++ {
		out[i] = values[i*3+1]
	}
	return out
}

func cubicValuePoints4(values [][4]float32, keys int) [][4]float32 {
	if len(values) < keys*3 {
		return values
	}
	out := make([][4]float32, keys)
	for i := 0; i < keys; i++ {
		out[i] = values[i*3+1]
	}
	return out
}
