package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// gmshTriangle is the Gmsh element type of a 3-node triangle.
const gmshTriangle = 2

// PhysicalName names a Gmsh physical group of a given dimension.
type PhysicalName struct {
	Dim  int
	Tag  int
	Name string
}

// MeshGroup is a set of triangles belonging to one physical surface group
// and one elementary (geometric) entity.
type MeshGroup struct {
	Physical   int
	Elementary int
	Triangles  []Triangle3
}

// WriteMSH writes a Gmsh 2.2 ASCII mesh file. Nodes shared by triangles are
// written once; names lists the $PhysicalNames section in the order given.
func WriteMSH(w io.Writer, names []PhysicalName, groups []MeshGroup) error {
	nodeID := make(map[r3.Vec]int)
	var nodes []r3.Vec
	nElem := 0
	for _, g := range groups {
		nElem += len(g.Triangles)
		for _, t := range g.Triangles {
			for _, v := range t.V {
				if _, ok := nodeID[v]; !ok {
					nodes = append(nodes, v)
					nodeID[v] = len(nodes)
				}
			}
		}
	}
	if nElem == 0 {
		return errors.New("no triangles to write")
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("$MeshFormat\n2.2 0 8\n$EndMeshFormat\n")
	if len(names) > 0 {
		fmt.Fprintf(bw, "$PhysicalNames\n%d\n", len(names))
		for _, pn := range names {
			fmt.Fprintf(bw, "%d %d %q\n", pn.Dim, pn.Tag, pn.Name)
		}
		bw.WriteString("$EndPhysicalNames\n")
	}
	fmt.Fprintf(bw, "$Nodes\n%d\n", len(nodes))
	var buf []byte
	for i, v := range nodes {
		buf = strconv.AppendInt(buf[:0], int64(i+1), 10)
		buf = append(buf, ' ')
		buf = append(appendVec(buf, v), '\n')
		bw.Write(buf)
	}
	bw.WriteString("$EndNodes\n")
	fmt.Fprintf(bw, "$Elements\n%d\n", nElem)
	elem := 1
	for _, g := range groups {
		for _, t := range g.Triangles {
			// elm-number elm-type number-of-tags physical elementary node-list
			fmt.Fprintf(bw, "%d %d 2 %d %d %d %d %d\n", elem, gmshTriangle, g.Physical, g.Elementary,
				nodeID[t.V[0]], nodeID[t.V[1]], nodeID[t.V[2]])
			elem++
		}
	}
	bw.WriteString("$EndElements\n")
	return bw.Flush()
}

// ReadMSH reads the physical names and triangle elements of a Gmsh 2.2
// ASCII file. Triangles are grouped by (physical, elementary) tag pair in
// order of first appearance. Elements other than triangles are skipped.
func ReadMSH(r io.Reader) ([]PhysicalName, []MeshGroup, error) {
	scanner := bufio.NewScanner(r)
	var (
		names  []PhysicalName
		nodes  = make(map[int]r3.Vec)
		groups []MeshGroup
		index  = make(map[[2]int]int)
	)
	next := func(section string) ([]string, error) {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF in %s", section)
		}
		return strings.Fields(scanner.Text()), nil
	}
	count := func(section string) (int, error) {
		f, err := next(section)
		if err != nil {
			return 0, err
		}
		if len(f) != 1 {
			return 0, fmt.Errorf("invalid %s count line", section)
		}
		return strconv.Atoi(f[0])
	}
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "$MeshFormat":
			f, err := next("MeshFormat")
			if err != nil {
				return nil, nil, err
			}
			if len(f) < 3 || f[0] != "2.2" || f[1] != "0" {
				return nil, nil, fmt.Errorf("unsupported mesh format %q", strings.Join(f, " "))
			}
		case "$PhysicalNames":
			n, err := count("PhysicalNames")
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < n; i++ {
				f, err := next("PhysicalNames")
				if err != nil {
					return nil, nil, err
				}
				if len(f) < 3 {
					return nil, nil, errors.New("invalid physical name line")
				}
				dim, err1 := strconv.Atoi(f[0])
				tag, err2 := strconv.Atoi(f[1])
				if err := errors.Join(err1, err2); err != nil {
					return nil, nil, err
				}
				name := strings.Trim(strings.Join(f[2:], " "), "\"")
				names = append(names, PhysicalName{Dim: dim, Tag: tag, Name: name})
			}
		case "$Nodes":
			n, err := count("Nodes")
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < n; i++ {
				f, err := next("Nodes")
				if err != nil {
					return nil, nil, err
				}
				if len(f) != 4 {
					return nil, nil, errors.New("invalid node line")
				}
				id, err := strconv.Atoi(f[0])
				if err != nil {
					return nil, nil, err
				}
				v, err := parseVec(f[1:])
				if err != nil {
					return nil, nil, err
				}
				nodes[id] = v
			}
		case "$Elements":
			n, err := count("Elements")
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < n; i++ {
				f, err := next("Elements")
				if err != nil {
					return nil, nil, err
				}
				ints := make([]int, len(f))
				for j := range f {
					if ints[j], err = strconv.Atoi(f[j]); err != nil {
						return nil, nil, err
					}
				}
				if len(ints) < 3 || ints[1] != gmshTriangle {
					continue
				}
				ntags := ints[2]
				if len(ints) != 3+ntags+3 || ntags < 2 {
					return nil, nil, fmt.Errorf("invalid triangle element %d", ints[0])
				}
				var t Triangle3
				for j, id := range ints[3+ntags:] {
					v, ok := nodes[id]
					if !ok {
						return nil, nil, fmt.Errorf("element %d references missing node %d", ints[0], id)
					}
					t.V[j] = v
				}
				key := [2]int{ints[3], ints[4]}
				gi, ok := index[key]
				if !ok {
					gi = len(groups)
					index[key] = gi
					groups = append(groups, MeshGroup{Physical: key[0], Elementary: key[1]})
				}
				groups[gi].Triangles = append(groups[gi].Triangles, t)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner error: %w", err)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if names[i].Dim != names[j].Dim {
			return names[i].Dim < names[j].Dim
		}
		return names[i].Tag < names[j].Tag
	})
	return names, groups, nil
}
