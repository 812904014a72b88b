package types

// PrimitiveSummary is what the builders know about a primitive: its bounds and
// the point used to sort and bin it.
type PrimitiveSummary struct {
	BBox   BBox
	Center Vec3
}

// Summarize a bbox using its center as the centroid.
func SummaryFromBBox(b BBox) PrimitiveSummary {
	return PrimitiveSummary{BBox: b, Center: b.Center()}
}
