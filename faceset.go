package coinmesh

import (
	"sort"
	"strconv"
	"strings"
)

// FaceSet is a set of boundary face identifiers.
type FaceSet map[int]struct{}

// NewFaceSet returns a set holding ids.
func NewFaceSet(ids ...int) FaceSet {
	s := make(FaceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s FaceSet) Len() int { return len(s) }

func (s FaceSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Union returns the identifiers in s or b.
func (s FaceSet) Union(b FaceSet) FaceSet {
	u := make(FaceSet, len(s)+len(b))
	for id := range s {
		u[id] = struct{}{}
	}
	for id := range b {
		u[id] = struct{}{}
	}
	return u
}

// Difference returns the identifiers in s and not in b.
func (s FaceSet) Difference(b FaceSet) FaceSet {
	d := make(FaceSet, len(s))
	for id := range s {
		if !b.Contains(id) {
			d[id] = struct{}{}
		}
	}
	return d
}

// Intersect returns the identifiers in both s and b.
func (s FaceSet) Intersect(b FaceSet) FaceSet {
	if len(b) < len(s) {
		s, b = b, s
	}
	in := make(FaceSet)
	for id := range s {
		if b.Contains(id) {
			in[id] = struct{}{}
		}
	}
	return in
}

// SubsetOf reports whether every identifier of s is in b.
func (s FaceSet) SubsetOf(b FaceSet) bool {
	for id := range s {
		if !b.Contains(id) {
			return false
		}
	}
	return true
}

// Equal reports whether s and b hold the same identifiers.
func (s FaceSet) Equal(b FaceSet) bool {
	return len(s) == len(b) && s.SubsetOf(b)
}

// Sorted returns the identifiers in increasing order.
func (s FaceSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s FaceSet) String() string {
	ids := s.Sorted()
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	return "{" + strings.Join(strs, ",") + "}"
}
