package ingest

import "unsafe"

// Complex is a single-precision complex visibility sample, stored as
// two float32s rather than complex64 so the in-memory layout matches
// the wire layout byte-for-byte (complex64 has the same layout in
// practice, but we spell it out because correctness here depends on
// an exact, documented byte size).
type Complex struct {
	Re, Im float32
}

// DataType is one visibility record: four polarisation products, each
// a complex correlation sample. 4 * 2 * 4 bytes = 32 bytes, matching
// the "8 floats, 32 bytes" record the spec describes.
type DataType struct {
	Vis [4]Complex
}

// BlockSize is the size in bytes of a single DataType record.
const BlockSize = 32

func init() {
	var d DataType
	if sz := int(unsafe.Sizeof(d)); sz != BlockSize {
		panic("ingest: DataType size drifted from the documented wire layout")
	}
}
