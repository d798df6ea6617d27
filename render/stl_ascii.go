package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Solid is a named group of triangles. An ASCII STL file holds one or more
// solids, which is how OpenFOAM's triSurface tools receive patch names.
type Solid struct {
	Name      string
	Triangles []Triangle3
}

// WriteSTLSolids writes solids to w in ASCII STL format. Coordinates are
// written with the shortest representation that parses back to the same float64.
func WriteSTLSolids(w io.Writer, solids []Solid) error {
	if len(solids) == 0 {
		return errors.New("no solids to write")
	}
	bw := bufio.NewWriter(w)
	var buf []byte
	for _, s := range solids {
		if s.Name == "" || strings.ContainsAny(s.Name, " \t\r\n") {
			return fmt.Errorf("invalid solid name %q", s.Name)
		}
		bw.WriteString("solid " + s.Name + "\n")
		for _, t := range s.Triangles {
			buf = appendVec(append(buf[:0], "  facet normal "...), t.Normal())
			buf = append(buf, "\n    outer loop\n"...)
			for _, v := range t.V {
				buf = appendVec(append(buf, "      vertex "...), v)
				buf = append(buf, '\n')
			}
			buf = append(buf, "    endloop\n  endfacet\n"...)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		bw.WriteString("endsolid " + s.Name + "\n")
	}
	return bw.Flush()
}

func appendVec(b []byte, v r3.Vec) []byte {
	b = strconv.AppendFloat(b, v.X, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, v.Y, 'g', -1, 64)
	b = append(b, ' ')
	return strconv.AppendFloat(b, v.Z, 'g', -1, 64)
}

// ReadSTLSolids reads every solid of an ASCII STL. Facet normals are not
// kept; triangle orientation is given by vertex order.
func ReadSTLSolids(r io.Reader) ([]Solid, error) {
	scanner := bufio.NewScanner(r)
	var (
		solids  []Solid
		current *Solid
		verts   []r3.Vec
		line    int
	)
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if current != nil {
				return nil, fmt.Errorf("line %d: nested solid", line)
			}
			name := ""
			if len(fields) > 1 {
				name = fields[1]
			}
			solids = append(solids, Solid{Name: name})
			current = &solids[len(solids)-1]
		case "endsolid":
			if current == nil {
				return nil, fmt.Errorf("line %d: endsolid without solid", line)
			}
			current = nil
		case "facet", "endfacet", "outer":
			verts = verts[:0]
		case "vertex":
			if current == nil {
				return nil, fmt.Errorf("line %d: vertex outside solid", line)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			verts = append(verts, v)
		case "endloop":
			if current == nil {
				return nil, fmt.Errorf("line %d: endloop outside solid", line)
			}
			if len(verts) != 3 {
				return nil, fmt.Errorf("line %d: facet with %d vertices", line, len(verts))
			}
			current.Triangles = append(current.Triangles, Triangle3{V: [3]r3.Vec{verts[0], verts[1], verts[2]}})
			verts = verts[:0]
		default:
			return nil, fmt.Errorf("line %d: unexpected keyword %q", line, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("solid %q missing endsolid", current.Name)
	}
	if len(solids) == 0 {
		return nil, errors.New("no solids found")
	}
	return solids, nil
}

func parseVec(fields []string) (v r3.Vec, err error) {
	if len(fields) != 3 {
		return v, fmt.Errorf("expected 3 coordinates, got %d", len(fields))
	}
	var f [3]float64
	for i := range f {
		f[i], err = strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, err
		}
	}
	return r3.Vec{X: f[0], Y: f[1], Z: f[2]}, nil
}
