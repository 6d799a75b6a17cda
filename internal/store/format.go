package store

import (
	"encoding/binary"
	"math"
)

// File names inside a store directory.
const (
	configFile  = "config"
	indexFile   = "index"
	tracesFile  = "traces"
	phasesDir   = "phases"
	extraDir    = "extra"
	lockFile    = "lock"
	journalFile = "build.db"
	phaseSuffix = ".phase"
)

const (
	indexMagic    = "GFSTIDX1"
	tracesMagic   = "GFSTTRC1"
	formatVersion = uint32(1)

	// magic, version, nrecords, config digest, deltat
	indexHeaderSize  = 8 + 4 + 4 + 32 + 8
	entrySize        = 24
	tracesHeaderSize = 16
)

// Reserved entry offsets. Any other value is a byte offset into traces.
const (
	offsetMissing = uint64(0)
	offsetZero    = uint64(1)
	offsetShort   = uint64(2)
)

type indexHeader struct {
	Version  uint32
	NRecords uint32
	Digest   [32]byte
	Deltat   float64
}

func (h indexHeader) encode() []byte {
	b := make([]byte, indexHeaderSize)
	copy(b[0:8], indexMagic)
	binary.LittleEndian.PutUint32(b[8:12], h.Version)
	binary.LittleEndian.PutUint32(b[12:16], h.NRecords)
	copy(b[16:48], h.Digest[:])
	binary.LittleEndian.PutUint64(b[48:56], math.Float64bits(h.Deltat))
	return b
}

func decodeIndexHeader(path string, b []byte) (indexHeader, error) {
	var h indexHeader
	if len(b) < indexHeaderSize {
		return h, corrupt(path, "truncated header")
	}
	if string(b[0:8]) != indexMagic {
		return h, corrupt(path, "bad magic %q", b[0:8])
	}
	h.Version = binary.LittleEndian.Uint32(b[8:12])
	if h.Version != formatVersion {
		return h, corrupt(path, "unsupported format version %d", h.Version)
	}
	h.NRecords = binary.LittleEndian.Uint32(b[12:16])
	copy(h.Digest[:], b[16:48])
	h.Deltat = math.Float64frombits(binary.LittleEndian.Uint64(b[48:56]))
	return h, nil
}

// entry is one fixed-size index slot.
type entry struct {
	Offset   uint64
	Itmin    int32
	NSamples int32
	Begin    float32
	End      float32
}

func (e entry) built() bool { return e.Offset != offsetMissing }

func (e entry) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], e.Offset)
	binary.LittleEndian.PutUint32(b[8:12], uint32(e.Itmin))
	binary.LittleEndian.PutUint32(b[12:16], uint32(e.NSamples))
	binary.LittleEndian.PutUint32(b[16:20], math.Float32bits(e.Begin))
	binary.LittleEndian.PutUint32(b[20:24], math.Float32bits(e.End))
}

func decodeEntry(b []byte) entry {
	return entry{
		Offset:   binary.LittleEndian.Uint64(b[0:8]),
		Itmin:    int32(binary.LittleEndian.Uint32(b[8:12])),
		NSamples: int32(binary.LittleEndian.Uint32(b[12:16])),
		Begin:    math.Float32frombits(binary.LittleEndian.Uint32(b[16:20])),
		End:      math.Float32frombits(binary.LittleEndian.Uint32(b[20:24])),
	}
}

func tracesHeader() []byte {
	b := make([]byte, tracesHeaderSize)
	copy(b, tracesMagic)
	return b
}

func encodeSamples(data []float32) []byte {
	b := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func decodeSamples(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
