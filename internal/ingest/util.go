package ingest

import "unsafe"

// asBytes reinterprets a DataType tensor slice as its raw bytes, for
// the zero-copy memcpy the decoder performs into the buffer's tensor
// and the raw-file writer performs out of it. Safe because DataType
// has no pointers and its size is fixed and verified at init time
// (datatype.go).
func asBytes(vis []DataType) []byte {
	if len(vis) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vis[0])), len(vis)*BlockSize)
}
