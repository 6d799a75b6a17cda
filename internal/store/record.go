package store

// Record is one stored Green's-function trace: float32 samples starting at
// sample index Itmin (time Itmin*deltat).
type Record struct {
	Itmin int
	Data  []float32
}

// NewRecord converts float64 samples to a Record.
func NewRecord(itmin int, samples []float64) Record {
	data := make([]float32, len(samples))
	for i, v := range samples {
		data[i] = float32(v)
	}
	return Record{Itmin: itmin, Data: data}
}

// Len returns the number of samples.
func (r Record) Len() int { return len(r.Data) }

// Itmax returns the index of the last sample.
func (r Record) Itmax() int { return r.Itmin + len(r.Data) - 1 }

// Begin returns the first sample, used to pad before Itmin.
func (r Record) Begin() float32 {
	if len(r.Data) == 0 {
		return 0
	}
	return r.Data[0]
}

// End returns the last sample, used to pad after Itmax.
func (r Record) End() float32 {
	if len(r.Data) == 0 {
		return 0
	}
	return r.Data[len(r.Data)-1]
}

// IsZero reports whether every sample is zero.
func (r Record) IsZero() bool {
	for _, v := range r.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// At returns the sample at absolute index it, holding the edge values
// outside the stored window.
func (r Record) At(it int) float32 {
	if len(r.Data) == 0 {
		return 0
	}
	switch {
	case it < r.Itmin:
		return r.Data[0]
	case it > r.Itmax():
		return r.Data[len(r.Data)-1]
	}
	return r.Data[it-r.Itmin]
}

// Node addresses a record within one source-depth partition.
type Node struct {
	IX, IC int
}

// NodeRecord pairs a record with its position in a partition.
type NodeRecord struct {
	Node
	Record Record
}

// classify returns the inline entry for zero and short records, or false
// when the samples must go to the traces file.
func classify(r Record) (entry, bool) {
	e := entry{Itmin: int32(r.Itmin), NSamples: int32(len(r.Data))}
	if r.IsZero() {
		e.Offset = offsetZero
		return e, true
	}
	if len(r.Data) <= 2 {
		e.Offset = offsetShort
		e.Begin = r.Begin()
		e.End = r.End()
		return e, true
	}
	e.Begin = r.Begin()
	e.End = r.End()
	return e, false
}
