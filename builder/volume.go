package builder

import (
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/types"
)

// The BoundedVolume interface is implemented by all primitives that can be
// partitioned by the bvh builders.
type BoundedVolume interface {
	BBox() types.BBox
	Center() types.Vec3
}

// The BoundedVolumeSet interface is implemented by primitive collections.
// BBox and Center must be pure functions of the index; the builders call them
// concurrently.
type BoundedVolumeSet interface {
	Len() int
	BBox(index int) types.BBox
	Center(index int) types.Vec3
}

// Volumes adapts a slice of bounded volumes to a BoundedVolumeSet.
type Volumes []BoundedVolume

func (v Volumes) Len() int                  { return len(v) }
func (v Volumes) BBox(index int) types.BBox { return v[index].BBox() }
func (v Volumes) Center(index int) types.Vec3 {
	return v[index].Center()
}

// Query the bounds and centroid of every primitive once.
func summarize(prims BoundedVolumeSet, exec *parallel.Executor) []types.PrimitiveSummary {
	summaries := make([]types.PrimitiveSummary, prims.Len())
	exec.For(len(summaries), func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			summaries[i] = types.PrimitiveSummary{
				BBox:   prims.BBox(i),
				Center: prims.Center(i),
			}
		}
	})
	return summaries
}

// Bounds and centroid bounds of the summaries referenced by indices.
func bounds(prims []types.PrimitiveSummary, indices []uint32, exec *parallel.Executor) (bbox, cbox types.BBox) {
	chunks := exec.Chunks(len(indices))
	partial := make([][2]types.BBox, len(chunks))
	exec.Run(chunks, func(chunk int, r parallel.Range) {
		b, c := types.EmptyBBox(), types.EmptyBBox()
		for _, index := range indices[r.Begin:r.End] {
			b = b.Union(prims[index].BBox)
			c = c.ExtendPoint(prims[index].Center)
		}
		partial[chunk] = [2]types.BBox{b, c}
	})

	bbox, cbox = types.EmptyBBox(), types.EmptyBBox()
	for _, p := range partial {
		bbox = bbox.Union(p[0])
		cbox = cbox.Union(p[1])
	}
	return bbox, cbox
}

func identity(n int) []uint32 {
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return indices
}
