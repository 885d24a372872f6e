package ingest

import (
	"encoding/binary"
	"math/bits"
)

// SPEAD v4 item identifiers recognized by the decoder (§3 "Recognized
// item IDs"). Unknown ids are ignored rather than rejected — SPEAD
// senders may include item descriptors and other metadata the
// decoder has no use for.
const (
	itemNull               = 0x0
	itemHeapCounter        = 0x1
	itemHeapSize           = 0x2
	itemHeapOffset         = 0x3
	itemPacketPayloadLen   = 0x4
	itemNestedDescriptor   = 0x5
	itemStreamControl      = 0x6
	itemDescriptorNameLo   = 0x10
	itemDescriptorTypeHi   = 0x15
	itemTimestampCount     = 0x6000
	itemTimestampFraction  = 0x6001
	itemChannelID          = 0x6002
	itemChannelCount       = 0x6003
	itemPolarisationID     = 0x6004
	itemBaselineCount      = 0x6005
	itemScanID             = 0x6008
	itemVisDataOffset      = 0x600A

	streamControlEndOfStream = 2

	headerLen = 8
)

// packetHeader is the parsed fixed 8-byte SPEAD header plus the
// item-pointer geometry derived from it.
type packetHeader struct {
	magicOK          bool
	itemIDBits       uint
	heapAddrBits     uint
	numItems         int
}

// parseHeader reads the fixed 8-byte SPEAD header. magicOK is false if
// the first two bytes don't match the expected 'S', 4 — the caller
// should then treat the datagram as non-SPEAD and resync by skipping
// headerLen bytes (§4.1 Validation).
func parseHeader(data []byte) packetHeader {
	if len(data) < headerLen {
		return packetHeader{}
	}
	h := packetHeader{
		magicOK:      data[0] == 'S' && data[1] == 4,
		itemIDBits:   uint(data[2])*8 - 1,
		heapAddrBits: uint(data[3]) * 8,
		numItems:     int(data[7]),
	}
	return h
}

// itemPointer is one decoded 64-bit item pointer: either an immediate
// value (address holds the value itself) or an absolute offset into
// the packet payload, depending on the item id's documented addressing
// mode (§3).
type itemPointer struct {
	id      uint64
	address uint64
}

// parseItemPointers decodes num_items big-endian 64-bit item pointers
// starting at byte offset headerLen.
func parseItemPointers(data []byte, h packetHeader) []itemPointer {
	items := make([]itemPointer, h.numItems)
	maskAddr := uint64(1)<<h.heapAddrBits - 1
	maskID := uint64(1)<<h.itemIDBits - 1

	for i := 0; i < h.numItems; i++ {
		off := headerLen + 8*i
		raw := binary.BigEndian.Uint64(data[off : off+8])
		items[i] = itemPointer{
			id:      (raw >> h.heapAddrBits) & maskID,
			address: raw & maskAddr,
		}
	}
	return items
}

// decodedPacket collects everything the item-pointer walk latches,
// mirroring stream_decode's local variables in the original source.
type decodedPacket struct {
	hasStreamControl  bool
	endOfStream       bool
	heapOffset        uint64
	packetPayloadLen  uint64
	visDataHeapOffset uint64
	visDataStart      uint64
	hasVisData        bool

	timestampCount uint32
	numBaselines   uint32
	heapCounter    uint64
	haveTimestamp  bool
	haveBaselines  bool
	haveHeapCounter bool
}

// applyItems walks the decoded item pointers and applies the item
// table from §3. Values shared across streams (timestamp count,
// baseline count) are returned so the caller can latch them onto the
// Receiver; everything else is purely local to this packet/stream.
func applyItems(items []itemPointer) decodedPacket {
	var p decodedPacket

	for _, it := range items {
		switch it.id {
		case itemNull:
			// ignored
		case itemHeapCounter:
			p.heapCounter = it.address
			p.haveHeapCounter = true
		case itemHeapSize:
			// advisory only; heap_offset/packet_payload_length drive placement
		case itemHeapOffset:
			p.heapOffset = it.address
		case itemPacketPayloadLen:
			p.packetPayloadLen = it.address
		case itemNestedDescriptor:
			// nested item descriptors are not interpreted (§1 Non-goals)
		case itemStreamControl:
			p.hasStreamControl = true
			if it.address == streamControlEndOfStream {
				p.endOfStream = true
			}
		case itemTimestampCount:
			p.timestampCount = be32toh(uint32(it.address))
			p.haveTimestamp = true
		case itemChannelID, itemChannelCount, itemPolarisationID, itemScanID:
			// not position-critical (§4.1 "Why this shape"); not stored
		case itemBaselineCount:
			p.numBaselines = be32toh(uint32(it.address))
			p.haveBaselines = true
		case itemVisDataOffset:
			p.visDataHeapOffset = it.address
			p.visDataStart = it.address
			p.hasVisData = true
		default:
			if it.id >= itemDescriptorNameLo && it.id <= itemDescriptorTypeHi {
				// item descriptors, ignored
				continue
			}
			// unrecognized id: ignored per §4.1
		}
	}

	return p
}

// be32toh undoes the byte-reversal the 0x6000/0x6005 immediates carry:
// unlike every other item pointer, the 32-bit value packed into the
// low bits of these two addresses is itself written in the sender's
// native byte order rather than big-endian, so the big-endian item
// pointer decode that already ran leaves it reversed on a little-endian
// receiver. Mirrors the original decoder's explicit be32toh() call on
// these two item ids.
func be32toh(v uint32) uint32 {
	return bits.ReverseBytes32(v)
}

// packetLen returns the total number of bytes the packet occupies in
// the datagram: the header, the item pointers, and the payload.
func packetLen(h packetHeader, payloadLen uint64) int {
	return headerLen + 8*h.numItems + int(payloadLen)
}
