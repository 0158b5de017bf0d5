package loader

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// accessorBytes returns the tightly packed bytes of a float accessor,
// de-striding interleaved buffer views. Sparse accessors are not supported.
func accessorBytes(doc *gltf.Document, index uint32, elemSize uint32) ([]byte, uint32, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, 0, errors.Errorf("accessor %d out of range", index)
	}
	acc := doc.Accessors[index]
	if acc.Count == 0 {
		return nil, 0, nil
	}
	if acc.BufferView == nil {
		return nil, 0, errors.Errorf("accessor %d has no buffer view", index)
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, 0, errors.Errorf("accessor %d: buffer view %d out of range", index, *acc.BufferView)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, 0, errors.Errorf("accessor %d: buffer %d out of range", index, view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data

	start := view.ByteOffset + acc.ByteOffset
	stride := view.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	need := uint64(start) + uint64(stride)*uint64(acc.Count-1) + uint64(elemSize)
	if need > uint64(len(data)) {
		return nil, 0, errors.Errorf("accessor %d overruns buffer data", index)
	}

	if stride == elemSize {
		return data[start : start+elemSize*acc.Count], acc.Count, nil
	}
	packed := make([]byte, elemSize*acc.Count)
	for i := uint32(0); i < acc.Count; i++ {
		src := start + i*stride
		copy(packed[i*elemSize:(i+1)*elemSize], data[src:src+elemSize])
	}
	return packed, acc.Count, nil
}

func checkFloatAccessor(doc *gltf.Document, index uint32, want gltf.AccessorType) error {
	if int(index) >= len(doc.Accessors) {
		return errors.Errorf("accessor %d out of range", index)
	}
	acc := doc.Accessors[index]
	if acc.ComponentType != gltf.ComponentFloat {
		return errors.Errorf("accessor %d: component type %v, want float", index, acc.ComponentType)
	}
	if acc.Type != want {
		return errors.Errorf("accessor %d: accessor type %v, want %v", index, acc.Type, want)
	}
	return nil
}

func floatAt(data []byte, offset uint32) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
}

// readScalarAccessor reads a SCALAR float accessor, such as animation
// keyframe times.
func readScalarAccessor(doc *gltf.Document, index uint32) ([]float32, error) {
	if err := checkFloatAccessor(doc, index, gltf.AccessorScalar); err != nil {
		return nil, err
	}
	data, count, err := accessorBytes(doc, index, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, count)
	for i := uint32(0); i < count; i++ {
		out[i] = floatAt(data, i*4)
	}
	return out, nil
}

// readVec3Accessor reads a VEC3 float accessor, such as translation or scale
// keyframe values.
func readVec3Accessor(doc *gltf.Document, index uint32) ([][3]float32, error) {
	if err := checkFloatAccessor(doc, index, gltf.AccessorVec3); err != nil {
		return nil, err
	}
	data, count, err := accessorBytes(doc, index, 12)
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, count)
	for i := uint32(0); i < count; i++ {
		base := i * 12
		out[i] = [3]float32{floatAt(data, base), floatAt(data, base+4), floatAt(data, base+8)}
	}
	return out, nil
}

// readVec4Accessor reads a VEC4 float accessor, such as rotation quaternion
// keyframe values.
func readVec4Accessor(doc *gltf.Document, index uint32) ([][4]float32, error) {
	if err := checkFloatAccessor(doc, index, gltf.AccessorVec4); err != nil {
		return nil, err
	}
	data, count, err := accessorBytes(doc, index, 16)
	if err != nil {
		return nil, err
	}
	out := make([][4]float32, count)
	for i := uint32(0); i < count; i++ {
		base := i * 16
		out[i] = [4]float32{floatAt(data, base), floatAt(data, base+4), floatAt(data, base+8), floatAt(data, base+12)}
	}
	return out, nil
}

// readMat4Accessor reads a MAT4 float accessor, such as inverse bind
// matrices. Matrices are returned in column-major order as stored.
func readMat4Accessor(doc *gltf.Document, index uint32) ([][16]float32, error) {
	if err := checkFloatAccessor(doc, index, gltf.AccessorMat4); err != nil {
		return nil, err
	}
	data, count, err := accessorBytes(doc, index, 64)
	if err != nil {
		return nil, err
	}
	out := make([][16]float32, count)
	for i := uint32(0); i < count; i++ {
		base := i * 64
		for j := uint32(0); j < 16; j++ {
			out[i][j] = floatAt(data, base+j*4)
		}
	}
	return out, nil
}
