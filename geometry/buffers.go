// Package geometry parses the supported mesh and material text formats
// into flat buffers consumable by the scene asset builder.
package geometry

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Buffers holds parsed geometry in parse order. Positions are indexed by
// the zero-based ids that Indices refer to; Indices is always a multiple
// of three after triangulation.
type Buffers struct {
	Positions [][3]float32
	UVs       [][2]float32
	Normals   [][3]float32
	Indices   []int32
}

// TriangleCount returns the number of triangles after triangulation.
func (b *Buffers) TriangleCount() int {
	return len(b.Indices) / 3
}

// IsEmpty reports whether the buffers carry no renderable geometry.
func (b *Buffers) IsEmpty() bool {
	return len(b.Positions) == 0 || len(b.Indices) == 0
}

// Validate checks that every face index resolves to a parsed position.
func (b *Buffers) Validate() error {
	n := int32(len(b.Positions))
	for _, idx := range b.Indices {
		if idx < 0 || idx >= n {
			return fmt.Errorf("face index %d out of range [0, %d)", idx, n)
		}
	}
	if len(b.Indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(b.Indices))
	}
	return nil
}

// Extent returns the axis-aligned bounding box over all positions.
// ok is false when there are no positions.
func (b *Buffers) Extent() (min, max [3]float32, ok bool) {
	if len(b.Positions) == 0 {
		return min, max, false
	}
	min = b.Positions[0]
	max = b.Positions[0]
	for _, p := range b.Positions[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return min, max, true
}

// GenerateNormals fills Normals with one face normal per face-vertex
// (face-varying layout) computed from the triangle winding. It is a no-op
// when the source file already carried normals or the buffers are empty.
func (b *Buffers) GenerateNormals() {
	if len(b.Normals) > 0 || b.IsEmpty() {
		return
	}
	b.Normals = make([][3]float32, 0, len(b.Indices))
	for i := 0; i+2 < len(b.Indices); i += 3 {
		n := faceNormal(
			b.Positions[b.Indices[i]],
			b.Positions[b.Indices[i+1]],
			b.Positions[b.Indices[i+2]],
		)
		b.Normals = append(b.Normals, n, n, n)
	}
}

func faceNormal(a, b, c [3]float32) [3]float32 {
	u := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float32{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	length := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		// Degenerate triangle, point the normal up so the value stays finite.
		return [3]float32{0, 1, 0}
	}
	return [3]float32{n[0] / length, n[1] / length, n[2] / length}
}
