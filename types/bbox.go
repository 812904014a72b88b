package types

import "github.com/chewxy/math32"

// BBox is an axis-aligned bounding box. The zero value is a degenerate box at
// the origin; use EmptyBBox for the identity element of Extend/Union.
type BBox struct {
	Min Vec3
	Max Vec3
}

// Create an empty bbox (min = +inf, max = -inf).
func EmptyBBox() BBox {
	inf := math32.Inf(1)
	return BBox{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// Create a bbox that encloses a single point.
func PointBBox(p Vec3) BBox {
	return BBox{Min: p, Max: p}
}

// Returns true if the bbox encloses no points.
func (b BBox) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Grow the bbox so it encloses point p.
func (b BBox) ExtendPoint(p Vec3) BBox {
	return BBox{Min: MinVec3(b.Min, p), Max: MaxVec3(b.Max, p)}
}

// Grow the bbox so it encloses o.
func (b BBox) Union(o BBox) BBox {
	return BBox{Min: MinVec3(b.Min, o.Min), Max: MaxVec3(b.Max, o.Max)}
}

// Extent along each axis. Empty boxes report a zero extent.
func (b BBox) Diagonal() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Box center.
func (b BBox) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Half of the box surface area. The SAH only compares ratios of areas so the
// factor 2 is dropped everywhere.
func (b BBox) HalfArea() float32 {
	d := b.Diagonal()
	return d[0]*d[1] + d[1]*d[2] + d[0]*d[2]
}

// Returns true if o lies fully inside b. An empty o is contained in anything.
func (b BBox) Contains(o BBox) bool {
	if o.IsEmpty() {
		return true
	}
	return b.Min[0] <= o.Min[0] && b.Min[1] <= o.Min[1] && b.Min[2] <= o.Min[2] &&
		b.Max[0] >= o.Max[0] && b.Max[1] >= o.Max[1] && b.Max[2] >= o.Max[2]
}

// Longest axis of the box.
func (b BBox) LargestAxis() Axis {
	return b.Diagonal().MaxAxis()
}
