package io

// Contains the minimal data needed by a consumer to process a contiguous run of items,
// i.e. the indices in [Start, End)
type WorkUnit struct {
	Start int
	End   int
}

func (w *WorkUnit) Len() int {
	return w.End - w.Start
}
