// Package cad provides a scoped solid modelling session on top of the sdf
// kernel: bodies are created from primitives, moved rigidly and combined by
// boolean difference while the session keeps track of which faces bound each
// body. Faces can be grouped into named physical groups, meshed and written
// to STL or Gmsh files.
package cad

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime/debug"
	"sort"

	"github.com/soypat/coinmesh/internal/d3"
	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// BodyID identifies a solid body within a Session.
type BodyID int

// FaceKind is the geometric type of a face.
type FaceKind int

const (
	Planar FaceKind = iota
	Cylindrical
)

func (k FaceKind) String() string {
	switch k {
	case Planar:
		return "planar"
	case Cylindrical:
		return "cylindrical"
	}
	return "FaceKind(" + fmt.Sprint(int(k)) + ")"
}

// Face is a boundary face of a body.
type Face struct {
	// ID is unique within the session. Boolean operations assign new IDs.
	ID int
	// Source is the primitive body the face was created with.
	Source BodyID
	Kind   FaceKind
	// Centroid is the face's center of mass.
	Centroid r3.Vec
	// Normal points out of the body the face bounds. It is zero for
	// cylindrical faces.
	Normal r3.Vec
}

type face struct {
	id     int
	source BodyID
	kind   FaceKind
	surf   surface
}

func (f *face) export() Face {
	return Face{ID: f.id, Source: f.source, Kind: f.kind, Centroid: f.surf.centroid(), Normal: f.surf.normal()}
}

type body struct {
	id    BodyID
	s     sdf.SDF3
	faces []*face
}

type physicalGroup struct {
	dim  int
	tag  int
	name string
	tags []int
}

// Session holds the bodies, physical groups and mesh of one modelling task.
// A Session is not safe for concurrent use.
type Session struct {
	name      string
	closed    bool
	log       *slog.Logger
	maxCells  int
	nextBody  BodyID
	nextFace  int
	bodies    map[BodyID]*body
	groups    []physicalGroup
	meshSize  float64
	faceSizes map[int]float64
	mesh      *Mesh
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger. Sessions log to a discarding
// handler by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxCells caps the number of mesh cells along the longest axis of
// a meshed body. Zero or negative leaves the resolution uncapped.
func WithMaxCells(n int) Option {
	return func(s *Session) { s.maxCells = n }
}

// Open starts a new named session.
func Open(name string, opts ...Option) (*Session, error) {
	if name == "" {
		return nil, opErr("open", errors.New("empty session name"))
	}
	s := &Session{
		name:      name,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		nextBody:  1,
		nextFace:  1,
		bodies:    make(map[BodyID]*body),
		faceSizes: make(map[int]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session", name)
	s.log.Debug("cad.open")
	return s, nil
}

// Close releases the session. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.bodies = nil
	s.mesh = nil
	s.log.Debug("cad.close")
	return nil
}

// Name returns the name the session was opened with.
func (s *Session) Name() string { return s.name }

// Run opens a session, calls fn with it and closes it whatever fn's outcome.
// A panic inside fn is recovered and returned as an *Error.
func Run(name string, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(name, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if a := recover(); a != nil {
			s.log.Error("cad.panic", "panic", a, "stack", string(debug.Stack()))
			err = opErrf("run", "panic: %v", a)
		}
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func (s *Session) check(op string) error {
	if s.closed {
		return opErr(op, ErrClosed)
	}
	return nil
}

func (s *Session) body(op string, id BodyID) (*body, error) {
	if err := s.check(op); err != nil {
		return nil, err
	}
	b, ok := s.bodies[id]
	if !ok {
		return nil, opErrf(op, "body %d: %w", id, ErrNoEntity)
	}
	return b, nil
}

func (s *Session) addBody(sd sdf.SDF3, surfs []surface, kinds []FaceKind) BodyID {
	id := s.nextBody
	s.nextBody++
	b := &body{id: id, s: sd}
	for i, surf := range surfs {
		b.faces = append(b.faces, &face{id: s.nextFace, source: id, kind: kinds[i], surf: surf})
		s.nextFace++
	}
	s.bodies[id] = b
	s.mesh = nil
	return id
}

// AddCylinder adds a solid cylinder whose bottom face is centered at base and
// whose top face is centered at base+axis.
func (s *Session) AddCylinder(base, axis r3.Vec, radius float64) (BodyID, error) {
	const op = "add cylinder"
	if err := s.check(op); err != nil {
		return 0, err
	}
	h := r3.Norm(axis)
	if !d3.IsFinite(base) || !d3.IsFinite(axis) {
		return 0, opErr(op, errors.New("non-finite cylinder placement"))
	}
	cyl, err := sdf.Cylinder(h, radius, 0)
	if err != nil {
		return 0, opErr(op, err)
	}
	a := r3.Unit(axis)
	m := sdf.Translate3D(r3.Add(base, r3.Scale(0.5, axis))).Mul(sdf.RotateToVec(r3.Vec{Z: 1}, a))
	id := s.addBody(sdf.Transform3D(cyl, m),
		[]surface{
			tube{base: base, a: a, h: h, r: radius},
			disk{c: r3.Add(base, axis), n: a, r: radius},
			disk{c: base, n: r3.Scale(-1, a), r: radius},
		},
		[]FaceKind{Cylindrical, Planar, Planar},
	)
	s.log.Debug("cad.cylinder", "body", id, "base", base, "axis", axis, "radius", radius)
	return id, nil
}

// AddBox adds an axis aligned box with minimum corner min. Faces are created
// in the order -x, +x, -y, +y, -z, +z.
func (s *Session) AddBox(min, size r3.Vec) (BodyID, error) {
	const op = "add box"
	if err := s.check(op); err != nil {
		return 0, err
	}
	if !d3.IsFinite(min) {
		return 0, opErr(op, errors.New("non-finite box corner"))
	}
	bx, err := sdf.Box(size, 0)
	if err != nil {
		return 0, opErr(op, err)
	}
	h := r3.Scale(0.5, size)
	c := r3.Add(min, h)
	x, y, z := r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}
	surfs := []surface{
		rect{c: r3.Sub(c, r3.Vec{X: h.X}), n: r3.Scale(-1, x), u: y, v: z, hu: h.Y, hv: h.Z},
		rect{c: r3.Add(c, r3.Vec{X: h.X}), n: x, u: y, v: z, hu: h.Y, hv: h.Z},
		rect{c: r3.Sub(c, r3.Vec{Y: h.Y}), n: r3.Scale(-1, y), u: z, v: x, hu: h.Z, hv: h.X},
		rect{c: r3.Add(c, r3.Vec{Y: h.Y}), n: y, u: z, v: x, hu: h.Z, hv: h.X},
		rect{c: r3.Sub(c, r3.Vec{Z: h.Z}), n: r3.Scale(-1, z), u: x, v: y, hu: h.X, hv: h.Y},
		rect{c: r3.Add(c, r3.Vec{Z: h.Z}), n: z, u: x, v: y, hu: h.X, hv: h.Y},
	}
	id := s.addBody(sdf.Transform3D(bx, sdf.Translate3D(c)), surfs,
		[]FaceKind{Planar, Planar, Planar, Planar, Planar, Planar})
	s.log.Debug("cad.box", "body", id, "min", min, "size", size)
	return id, nil
}

func (s *Session) apply(op string, id BodyID, m sdf.M44) error {
	b, err := s.body(op, id)
	if err != nil {
		return err
	}
	b.s = sdf.Transform3D(b.s, m)
	for _, f := range b.faces {
		f.surf = f.surf.transform(m)
	}
	s.mesh = nil
	return nil
}

// Rotate rotates a body by angle radians about the line through center
// with direction axis.
func (s *Session) Rotate(id BodyID, center, axis r3.Vec, angle float64) error {
	const op = "rotate"
	if err := s.check(op); err != nil {
		return err
	}
	if r3.Norm(axis) == 0 || math.IsNaN(angle) || math.IsInf(angle, 0) {
		return opErrf(op, "invalid rotation axis %v angle %g", axis, angle)
	}
	s.log.Debug("cad.rotate", "body", id, "axis", axis, "angle", angle)
	return s.apply(op, id, sdf.RotateAbout3D(center, axis, angle))
}

// Translate moves a body by d.
func (s *Session) Translate(id BodyID, d r3.Vec) error {
	const op = "translate"
	if err := s.check(op); err != nil {
		return err
	}
	if !d3.IsFinite(d) {
		return opErrf(op, "non-finite translation %v", d)
	}
	s.log.Debug("cad.translate", "body", id, "d", d)
	return s.apply(op, id, sdf.Translate3D(d))
}

// BoundingBox returns a box containing the body.
func (s *Session) BoundingBox(id BodyID) (r3.Box, error) {
	b, err := s.body("bounding box", id)
	if err != nil {
		return r3.Box{}, err
	}
	return b.s.Bounds(), nil
}

// Cut subtracts tool from object and returns the resulting body. Both input
// bodies are removed from the session. Faces of the result are renumbered;
// faces of either input that no longer touch the result's boundary are dropped.
func (s *Session) Cut(object, tool BodyID) (BodyID, error) {
	const op = "cut"
	obj, err := s.body(op, object)
	if err != nil {
		return 0, err
	}
	tl, err := s.body(op, tool)
	if err != nil {
		return 0, err
	}
	if object == tool {
		return 0, opErr(op, errors.New("object and tool are the same body"))
	}
	if !d3.Box(obj.s.Bounds()).Overlaps(d3.Box(tl.s.Bounds())) {
		s.log.Warn("cad.cut.disjoint", "object", object, "tool", tool)
	}
	result := sdf.Difference3D(obj.s, tl.s)
	tol := boundaryTolerance(result)
	var faces []*face
	for _, f := range obj.faces {
		if onBoundary(result, f.surf, tol) {
			faces = append(faces, &face{source: f.source, kind: f.kind, surf: f.surf})
		}
	}
	for _, f := range tl.faces {
		if onBoundary(result, f.surf, tol) {
			// tool faces bound the result from the other side.
			faces = append(faces, &face{source: f.source, kind: f.kind, surf: f.surf.flip()})
		}
	}
	if len(faces) == 0 {
		return 0, opErr(op, errors.New("difference is empty"))
	}
	delete(s.bodies, object)
	delete(s.bodies, tool)
	id := s.nextBody
	s.nextBody++
	for _, f := range faces {
		f.id = s.nextFace
		s.nextFace++
	}
	s.bodies[id] = &body{id: id, s: result, faces: faces}
	s.mesh = nil
	s.log.Debug("cad.cut", "object", object, "tool", tool, "result", id, "faces", len(faces))
	return id, nil
}

func boundaryTolerance(s sdf.SDF3) float64 {
	return 1e-9 * (1 + d3.Box(s.Bounds()).Diagonal())
}

// onBoundary reports whether any sample of surf lies on the zero set of s.
func onBoundary(s sdf.SDF3, surf surface, tol float64) bool {
	for _, p := range surf.samples() {
		if math.Abs(s.Evaluate(p)) <= tol {
			return true
		}
	}
	return false
}

// Boundary returns the faces bounding a body ordered by ID.
func (s *Session) Boundary(id BodyID) ([]Face, error) {
	b, err := s.body("boundary", id)
	if err != nil {
		return nil, err
	}
	faces := make([]Face, len(b.faces))
	for i, f := range b.faces {
		faces[i] = f.export()
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].ID < faces[j].ID })
	return faces, nil
}

// Bodies returns the identifiers of the bodies currently in the session.
func (s *Session) Bodies() []BodyID {
	ids := make([]BodyID, 0, len(s.bodies))
	for id := range s.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SDF returns the signed distance function of a body.
func (s *Session) SDF(id BodyID) (sdf.SDF3, error) {
	b, err := s.body("sdf", id)
	if err != nil {
		return nil, err
	}
	return b.s, nil
}

func (s *Session) findFace(id int) (*face, bool) {
	for _, b := range s.bodies {
		for _, f := range b.faces {
			if f.id == id {
				return f, true
			}
		}
	}
	return nil, false
}

// AddPhysicalGroup registers a named group of entities of dimension dim:
// face IDs when dim is 2 and body IDs when dim is 3. Tags must be unique
// per dimension.
func (s *Session) AddPhysicalGroup(dim int, tags []int, tag int, name string) error {
	const op = "add physical group"
	if err := s.check(op); err != nil {
		return err
	}
	if dim != 2 && dim != 3 {
		return opErrf(op, "unsupported dimension %d", dim)
	}
	if tag <= 0 {
		return opErrf(op, "group %q: tag must be positive, got %d", name, tag)
	}
	if name == "" {
		return opErrf(op, "group tag %d: empty name", tag)
	}
	for _, g := range s.groups {
		if g.dim == dim && (g.tag == tag || g.name == name) {
			return opErrf(op, "group %q (dim %d tag %d) already defined", name, dim, tag)
		}
	}
	for _, t := range tags {
		var ok bool
		if dim == 2 {
			_, ok = s.findFace(t)
		} else {
			_, ok = s.bodies[BodyID(t)]
		}
		if !ok {
			return opErrf(op, "group %q entity %d: %w", name, t, ErrNoEntity)
		}
	}
	s.groups = append(s.groups, physicalGroup{dim: dim, tag: tag, name: name, tags: append([]int(nil), tags...)})
	s.log.Debug("cad.group", "dim", dim, "tag", tag, "name", name, "entities", tags)
	return nil
}

// SetMeshSize sets the target element size for all entities.
func (s *Session) SetMeshSize(size float64) error {
	const op = "set mesh size"
	if err := s.check(op); err != nil {
		return err
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return opErrf(op, "invalid size %g", size)
	}
	s.meshSize = size
	return nil
}

// SetFaceMeshSize sets the target element size on the given faces.
// The finest size requested on a body drives its sampling resolution.
func (s *Session) SetFaceMeshSize(faceIDs []int, size float64) error {
	const op = "set face mesh size"
	if err := s.check(op); err != nil {
		return err
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return opErrf(op, "invalid size %g", size)
	}
	for _, id := range faceIDs {
		if _, ok := s.findFace(id); !ok {
			return opErrf(op, "face %d: %w", id, ErrNoEntity)
		}
		s.faceSizes[id] = size
	}
	return nil
}
