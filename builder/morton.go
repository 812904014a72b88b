package builder

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"

	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/types"
)

// Spread the low 10 bits of v so that there are two zero bits between each
// of them.
func expand3(v uint32) uint32 {
	v = (v | (v << 16)) & 0x030000FF
	v = (v | (v << 8)) & 0x0300F00F
	v = (v | (v << 4)) & 0x030C30C3
	v = (v | (v << 2)) & 0x09249249
	return v
}

// 64-bit version of expand3 for the low 21 bits of v.
func expand3Wide(v uint64) uint64 {
	v &= 0x1FFFFF
	v = (v | (v << 32)) & 0x1F00000000FFFF
	v = (v | (v << 16)) & 0x1F0000FF0000FF
	v = (v | (v << 8)) & 0x100F00F00F00F00F
	v = (v | (v << 4)) & 0x10C30C30C30C30C3
	v = (v | (v << 2)) & 0x1249249249249249
	return v
}

// Interleave quantized coordinates into a Morton code: 10 bits per axis for
// 32-bit codes and 21 bits per axis for 64-bit codes.
func mortonEncode(x, y, z uint32, width int) uint64 {
	if width == 32 {
		return uint64(expand3(x) | expand3(y)<<1 | expand3(z)<<2)
	}
	return expand3Wide(uint64(x)) | expand3Wide(uint64(y))<<1 | expand3Wide(uint64(z))<<2
}

// Number of significant bits in a Morton code of the given width.
func mortonKeyBits(width int) int {
	return 3 * (width / 3)
}

// Morton codes of the primitive centroids normalized to the centroid bounds
// of the whole set. Axes with zero extent quantize to 0.
func mortonCodes[K constraints.Unsigned](prims []types.PrimitiveSummary, width int, exec *parallel.Executor) []K {
	cbox := types.EmptyBBox()
	chunks := exec.Chunks(len(prims))
	partial := make([]types.BBox, len(chunks))
	exec.Run(chunks, func(chunk int, r parallel.Range) {
		box := types.EmptyBBox()
		for i := r.Begin; i < r.End; i++ {
			box = box.ExtendPoint(prims[i].Center)
		}
		partial[chunk] = box
	})
	for _, box := range partial {
		cbox = cbox.Union(box)
	}

	levels := float32(uint32(1) << uint(width/3))
	extent := cbox.Diagonal()
	var scale types.Vec3
	for axis := range scale {
		if extent[axis] > 0 {
			scale[axis] = levels / extent[axis]
		}
	}

	codes := make([]K, len(prims))
	exec.For(len(prims), func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			var q [3]uint32
			for axis := range q {
				v := (prims[i].Center[axis] - cbox.Min[axis]) * scale[axis]
				q[axis] = uint32(math32.Max(0, math32.Min(v, levels-1)))
			}
			codes[i] = K(mortonEncode(q[0], q[1], q[2], width))
		}
	})
	return codes
}

// radixSort stable sorts keys and carries values along using 8-bit LSD
// passes. Only the low keyBits bits of each key are considered. Each pass
// builds per chunk histograms in parallel, turns them into scatter offsets
// and then scatters chunks in parallel. The returned slices may alias either
// the inputs or internal buffers.
func radixSort[K constraints.Unsigned](keys []K, values []uint32, keyBits int, exec *parallel.Executor) ([]K, []uint32) {
	n := len(keys)
	keysTmp := make([]K, n)
	valuesTmp := make([]uint32, n)
	chunks := exec.Chunks(n)
	hist := make([][256]int, len(chunks))

	for shift := 0; shift < keyBits; shift += 8 {
		exec.Run(chunks, func(chunk int, r parallel.Range) {
			h := &hist[chunk]
			*h = [256]int{}
			for _, key := range keys[r.Begin:r.End] {
				h[(uint64(key)>>uint(shift))&0xFF]++
			}
		})

		// Digit-major, chunk-minor offsets keep equal digits in input order
		offset := 0
		for digit := 0; digit < 256; digit++ {
			for chunk := range hist {
				count := hist[chunk][digit]
				hist[chunk][digit] = offset
				offset += count
			}
		}

		exec.Run(chunks, func(chunk int, r parallel.Range) {
			h := &hist[chunk]
			for i := r.Begin; i < r.End; i++ {
				digit := (uint64(keys[i]) >> uint(shift)) & 0xFF
				dst := h[digit]
				h[digit]++
				keysTmp[dst] = keys[i]
				valuesTmp[dst] = values[i]
			}
		})

		keys, keysTmp = keysTmp, keys
		values, valuesTmp = valuesTmp, values
	}
	return keys, values
}

// Sort the primitives along a Morton curve of the given width. Returns the
// sorted codes widened to 64 bits and the matching primitive order.
func mortonOrder(prims []types.PrimitiveSummary, width int, exec *parallel.Executor) ([]uint64, []uint32) {
	if width == 32 {
		return sortCodes(mortonCodes[uint32](prims, width, exec), width, exec)
	}
	return sortCodes(mortonCodes[uint64](prims, width, exec), width, exec)
}

func sortCodes[K constraints.Unsigned](codes []K, width int, exec *parallel.Executor) ([]uint64, []uint32) {
	sorted, order := radixSort(codes, identity(len(codes)), mortonKeyBits(width), exec)
	wide := make([]uint64, len(sorted))
	exec.For(len(sorted), func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			wide[i] = uint64(sorted[i])
		}
	})
	return wide, order
}
