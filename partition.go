package coinmesh

// Groups is the partition of a fluid volume's boundary faces.
type Groups struct {
	Coin   FaceSet
	Inlet  FaceSet
	Plate  FaceSet
	Outlet FaceSet
}

// All returns the union of the four groups.
func (g Groups) All() FaceSet {
	return g.Coin.Union(g.Inlet).Union(g.Plate).Union(g.Outlet)
}

// PartitionBoundaryFaces assigns every face of all to exactly one group.
// coin, inlet and plate are kept as given and outlet receives the rest.
// It fails with a partition error when a supplied group is not a subset of
// all or when two supplied groups intersect.
func PartitionBoundaryFaces(all, coin, inlet, plate FaceSet) (Groups, error) {
	const op = "partition"
	named := []struct {
		name string
		set  FaceSet
	}{{"coin", coin}, {"inlet", inlet}, {"plate", plate}}
	for _, g := range named {
		if extra := g.set.Difference(all); extra.Len() > 0 {
			return Groups{}, partitionErrorf(op, "%s faces %v are not boundary faces of the volume", g.name, extra)
		}
	}
	for i := range named {
		for j := i + 1; j < len(named); j++ {
			if common := named[i].set.Intersect(named[j].set); common.Len() > 0 {
				return Groups{}, partitionErrorf(op, "faces %v are in both %s and %s", common, named[i].name, named[j].name)
			}
		}
	}
	return Groups{
		Coin:   coin,
		Inlet:  inlet,
		Plate:  plate,
		Outlet: all.Difference(coin).Difference(inlet).Difference(plate),
	}, nil
}
