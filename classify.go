package coinmesh

import (
	"math"

	"github.com/soypat/coinmesh/cad"
	"gonum.org/v1/gonum/spatial/r3"
)

// Classifier tags boundary faces from their geometry so the result does not
// depend on the identifiers a kernel assigns.
type Classifier struct {
	// InletNormal and PlateNormal are the outward normals of the domain
	// faces tagged inlet and plate.
	InletNormal r3.Vec
	PlateNormal r3.Vec
	// Tolerance is the largest accepted 1-cos(angle) between a face normal
	// and a reference normal.
	Tolerance float64
}

// DefaultClassifier tags the -x face as inlet and the -z face, the plane
// the coin rests on, as plate.
func DefaultClassifier() Classifier {
	return Classifier{
		InletNormal: r3.Vec{X: -1},
		PlateNormal: r3.Vec{Z: -1},
		Tolerance:   1e-6,
	}
}

// Classify returns the coin, inlet and plate faces of a fluid volume's
// boundary. Coin faces are those created by coinBody. Inlet and plate are
// planar faces of any other body whose normal matches the reference normal.
// Every group must be non-empty.
func (c Classifier) Classify(faces []cad.Face, coinBody cad.BodyID) (coin, inlet, plate FaceSet, err error) {
	const op = "classify"
	if r3.Norm(c.InletNormal) == 0 || r3.Norm(c.PlateNormal) == 0 {
		return nil, nil, nil, geometryErrorf(op, "reference normals must be non-zero")
	}
	inletN, plateN := r3.Unit(c.InletNormal), r3.Unit(c.PlateNormal)
	coin, inlet, plate = NewFaceSet(), NewFaceSet(), NewFaceSet()
	for _, f := range faces {
		switch {
		case f.Source == coinBody:
			coin[f.ID] = struct{}{}
		case f.Kind != cad.Planar:
		case c.aligned(f.Normal, inletN):
			inlet[f.ID] = struct{}{}
		case c.aligned(f.Normal, plateN):
			plate[f.ID] = struct{}{}
		}
	}
	for _, g := range []struct {
		name string
		set  FaceSet
	}{{"coin", coin}, {"inlet", inlet}, {"plate", plate}} {
		if g.set.Len() == 0 {
			return nil, nil, nil, partitionErrorf(op, "no boundary face classified as %s", g.name)
		}
	}
	return coin, inlet, plate, nil
}

func (c Classifier) aligned(n, ref r3.Vec) bool {
	if r3.Norm(n) == 0 {
		return false
	}
	return 1-r3.Dot(r3.Unit(n), ref) <= math.Max(c.Tolerance, 0)
}
