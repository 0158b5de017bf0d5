package graph

import "fmt"

// ValueKind is the data type carried by an attribute.
type ValueKind int

const (
	// KindFloat is a float64 scalar.
	KindFloat ValueKind = iota
	// KindInt is an int scalar.
	KindInt
	// KindBool is a boolean flag.
	KindBool
	// KindString is a string value.
	KindString
	// KindMatrix is an mgl64.Mat4 value.
	KindMatrix
	// KindPoints is a []mgl64.Vec3 geometry stream.
	KindPoints
	// KindMessage carries no value; message plugs exist only to be connected.
	KindMessage
	// KindCompound groups child attributes and carries no value of its own.
	KindCompound
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindMatrix:
		return "matrix"
	case KindPoints:
		return "points"
	case KindMessage:
		return "message"
	case KindCompound:
		return "compound"
	}
	return "unknown"
}

// attrSpec describes one attribute in a node type's schema. Array attributes
// materialize elements on demand by logical index; compound attributes carry
// child specs instead of a value.
type attrSpec struct {
	name     string
	kind     ValueKind
	array    bool
	source   bool
	dest     bool
	def      any
	children []*attrSpec
}

func channelSpecs() []*attrSpec {
	specs := make([]*attrSpec, 0, 9)
	for _, ch := range [...]struct {
		name string
		def  float64
	}{
		{"translateX", 0}, {"translateY", 0}, {"translateZ", 0},
		{"rotateX", 0}, {"rotateY", 0}, {"rotateZ", 0},
		{"scaleX", 1}, {"scaleY", 1}, {"scaleZ", 1},
	} {
		specs = append(specs, &attrSpec{name: ch.name, kind: KindFloat, dest: true, source: true, def: ch.def})
	}
	return specs
}

var nodeSchemas = buildSchemas()

func buildSchemas() map[NodeType][]*attrSpec {
	message := &attrSpec{name: "message", kind: KindMessage, source: true}

	transform := append(channelSpecs(),
		message,
		&attrSpec{name: "inheritsTransform", kind: KindBool, def: true},
		&attrSpec{name: "worldMatrix", kind: KindMatrix, array: true, source: true},
	)

	joint := append(channelSpecs(),
		message,
		&attrSpec{name: "inheritsTransform", kind: KindBool, def: true},
		&attrSpec{name: "worldMatrix", kind: KindMatrix, array: true, source: true},
		&attrSpec{name: "radius", kind: KindFloat, def: 1.0},
		&attrSpec{name: "segmentScaleCompensate", kind: KindBool, def: true},
		&attrSpec{name: "bindPose", kind: KindMatrix, source: true},
	)

	mesh := []*attrSpec{
		message,
		{name: "points", kind: KindPoints},
		{name: "inMesh", kind: KindPoints, dest: true},
		{name: "outMesh", kind: KindPoints, source: true},
		{name: "intermediateObject", kind: KindBool, def: false},
		{name: "instObjGroups", kind: KindCompound, array: true, children: []*attrSpec{
			{name: "objectGroups", kind: KindCompound, array: true, children: []*attrSpec{
				{name: "objectGroupId", kind: KindInt, dest: true},
			}},
		}},
	}

	skinDeformer := []*attrSpec{
		message,
		{name: "input", kind: KindCompound, array: true, children: []*attrSpec{
			{name: "inputGeometry", kind: KindPoints, dest: true},
			{name: "groupId", kind: KindInt, dest: true},
		}},
		{name: "outputGeometry", kind: KindPoints, array: true, source: true},
		{name: "matrix", kind: KindMatrix, array: true, dest: true},
		{name: "bindPreMatrix", kind: KindMatrix, array: true},
		{name: "geomMatrix", kind: KindMatrix},
		{name: "weightList", kind: KindCompound, array: true, children: []*attrSpec{
			{name: "weights", kind: KindFloat, array: true},
		}},
		{name: "normalizeWeights", kind: KindInt, def: 1},
		{name: "bindPose", kind: KindMessage, dest: true},
	}

	groupID := []*attrSpec{
		message,
		{name: "groupId", kind: KindInt, source: true},
	}

	groupParts := []*attrSpec{
		message,
		{name: "inputGeometry", kind: KindPoints, dest: true},
		{name: "outputGeometry", kind: KindPoints, source: true},
		{name: "inputComponents", kind: KindString, def: ""},
		{name: "groupId", kind: KindInt, dest: true},
	}

	bindPose := []*attrSpec{
		message,
		{name: "members", kind: KindMessage, array: true, source: true, dest: true},
		{name: "parents", kind: KindMessage, array: true, dest: true},
		{name: "worldMatrix", kind: KindMatrix, array: true, dest: true},
		{name: "xformMatrix", kind: KindMatrix, array: true},
		{name: "world", kind: KindMessage, source: true},
		{name: "bindPose", kind: KindBool, def: false},
	}

	animCurve := []*attrSpec{
		message,
		{name: "output", kind: KindFloat, source: true},
	}

	return map[NodeType][]*attrSpec{
		NodeTypeTransform:    transform,
		NodeTypeJoint:        joint,
		NodeTypeMesh:         mesh,
		NodeTypeSkinDeformer: skinDeformer,
		NodeTypeGroupID:      groupID,
		NodeTypeGroupParts:   groupParts,
		NodeTypeBindPose:     bindPose,
		NodeTypeAnimCurve:    animCurve,
	}
}

func schemaFor(t NodeType) []*attrSpec {
	return nodeSchemas[t]
}

func knownNodeType(t NodeType) bool {
	_, ok := nodeSchemas[t]
	return ok
}

func wrapAttrErr(t NodeType, attrName string) error {
	return fmt.Errorf("%w: %q has no attribute %q", errUnknownAttr, t, attrName)
}
