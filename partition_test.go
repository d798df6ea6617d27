package coinmesh

import (
	"math/rand"
	"testing"

	"github.com/soypat/coinmesh/cad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func faceRange(lo, hi int) FaceSet {
	s := NewFaceSet()
	for i := lo; i <= hi; i++ {
		s[i] = struct{}{}
	}
	return s
}

func TestPartitionReference(t *testing.T) {
	g, err := PartitionBoundaryFaces(faceRange(1, 10), NewFaceSet(2, 9, 10), NewFaceSet(4), NewFaceSet(7))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5, 6, 8}, g.Outlet.Sorted())
	assert.Equal(t, []int{2, 9, 10}, g.Coin.Sorted())
	assert.Equal(t, []int{4}, g.Inlet.Sorted())
	assert.Equal(t, []int{7}, g.Plate.Sorted())
}

func TestPartitionOverlap(t *testing.T) {
	_, err := PartitionBoundaryFaces(faceRange(1, 10), NewFaceSet(2, 4), NewFaceSet(4, 5), NewFaceSet(7))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartition)
	assert.Contains(t, err.Error(), "{4}")
}

func TestPartitionNotSubset(t *testing.T) {
	_, err := PartitionBoundaryFaces(faceRange(1, 10), NewFaceSet(2), NewFaceSet(4), NewFaceSet(99))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPartition))
}

func TestPartitionCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(30)
		all := faceRange(1, n)
		sets := [3]FaceSet{NewFaceSet(), NewFaceSet(), NewFaceSet()}
		for id := range all {
			// 0..2 select a named group, 3 leaves the face to outlet.
			if k := rng.Intn(4); k < 3 {
				sets[k][id] = struct{}{}
			}
		}
		g, err := PartitionBoundaryFaces(all, sets[0], sets[1], sets[2])
		require.NoError(t, err)
		assert.True(t, g.All().Equal(all), "groups do not cover all faces")
		parts := []FaceSet{g.Coin, g.Inlet, g.Plate, g.Outlet}
		total := 0
		for i := range parts {
			total += parts[i].Len()
			for j := i + 1; j < len(parts); j++ {
				assert.Zero(t, parts[i].Intersect(parts[j]).Len(), "groups %d and %d overlap", i, j)
			}
		}
		assert.Equal(t, all.Len(), total)

		// partitioning again is a no-op.
		again, err := PartitionBoundaryFaces(all, g.Coin, g.Inlet, g.Plate)
		require.NoError(t, err)
		assert.True(t, again.Outlet.Equal(g.Outlet))
	}
}

func TestFaceSetOps(t *testing.T) {
	a, b := NewFaceSet(1, 2, 3), NewFaceSet(3, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, a.Union(b).Sorted())
	assert.Equal(t, []int{1, 2}, a.Difference(b).Sorted())
	assert.Equal(t, []int{3}, a.Intersect(b).Sorted())
	assert.True(t, NewFaceSet(1, 3).SubsetOf(a))
	assert.False(t, b.SubsetOf(a))
	assert.Equal(t, "{1,2,3}", a.String())
	assert.True(t, a.Contains(2))
	assert.False(t, a.Contains(4))
}

// fluidFaces mimics the boundary of a box with a coin cut out of it.
func fluidFaces(firstID int, coin cad.BodyID) []cad.Face {
	normals := []r3.Vec{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1}}
	var faces []cad.Face
	id := firstID
	for _, n := range normals {
		faces = append(faces, cad.Face{ID: id, Source: coin + 1, Kind: cad.Planar, Normal: n, Centroid: r3.Scale(0.15, n)})
		id++
	}
	faces = append(faces,
		cad.Face{ID: id, Source: coin, Kind: cad.Cylindrical},
		cad.Face{ID: id + 1, Source: coin, Kind: cad.Planar, Normal: r3.Vec{X: -0.5, Z: -0.866}},
		cad.Face{ID: id + 2, Source: coin, Kind: cad.Planar, Normal: r3.Vec{X: 0.5, Z: 0.866}},
	)
	return faces
}

func TestClassify(t *testing.T) {
	const coin = cad.BodyID(1)
	faces := fluidFaces(1, coin)
	c, inlet, plate, err := DefaultClassifier().Classify(faces, coin)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9}, c.Sorted())
	assert.Equal(t, []int{1}, inlet.Sorted())
	assert.Equal(t, []int{5}, plate.Sorted())
}

func TestClassifyRenumbered(t *testing.T) {
	const coin = cad.BodyID(7)
	faces := fluidFaces(1, coin)
	renumbered := fluidFaces(101, coin)
	rand.New(rand.NewSource(3)).Shuffle(len(renumbered), func(i, j int) {
		renumbered[i], renumbered[j] = renumbered[j], renumbered[i]
	})
	cls := DefaultClassifier()
	c1, i1, p1, err := cls.Classify(faces, coin)
	require.NoError(t, err)
	c2, i2, p2, err := cls.Classify(renumbered, coin)
	require.NoError(t, err)
	shift := func(s FaceSet) FaceSet {
		out := NewFaceSet()
		for id := range s {
			out[id+100] = struct{}{}
		}
		return out
	}
	assert.True(t, shift(c1).Equal(c2))
	assert.True(t, shift(i1).Equal(i2))
	assert.True(t, shift(p1).Equal(p2))
}

func TestClassifyEmptyGroup(t *testing.T) {
	faces := fluidFaces(1, 1)
	// coin body that contributed no faces.
	_, _, _, err := DefaultClassifier().Classify(faces, 42)
	assert.ErrorIs(t, err, ErrPartition)

	cls := DefaultClassifier()
	cls.InletNormal = r3.Vec{X: 1, Y: 1}
	_, _, _, err = cls.Classify(faces, 1)
	assert.ErrorIs(t, err, ErrPartition, "no face is aligned with the inlet normal")

	cls.InletNormal = r3.Vec{}
	_, _, _, err = cls.Classify(faces, 1)
	assert.ErrorIs(t, err, ErrGeometry)
}
