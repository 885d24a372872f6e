package ingest

import (
	"fmt"
	"net"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"

	"github.com/ska-sa/vis-ingest/internal/logging"
)

// requestedSocketRecvBuf is the SO_RCVBUF size requested for each
// stream's UDP socket, matching the original's 16 MiB request.
const requestedSocketRecvBuf = 16 * datasize.MB

// Stream owns one UDP port's worth of SPEAD traffic: one channel
// subset of the overall visibility tensor (§3 "Stream").
type Stream struct {
	conn *net.UDPConn

	streamID int
	port     int

	recvBuf []byte

	heapCount         int
	done              bool
	visDataHeapOffset uint64
	haveVisDataOffset bool

	recvByteCounter uint64
	dumpByteCounter uint64
	memcpyTimer     *Timer

	log *zap.SugaredLogger
}

// newStream binds a non-blocking UDP socket on port and requests a 16
// MiB receive buffer, per §3's Stream attributes. verifyRecvBuf reads
// back the actual buffer the kernel reports, for the size-check log
// the original performed in stream_create.
func newStream(port, streamID int, log *zap.SugaredLogger) (*Stream, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp port %d: %w", port, err)
	}

	if err := conn.SetReadBuffer(int(requestedSocketRecvBuf)); err != nil {
		logging.Critical(log, "failed to size socket receive buffer", "port", port, "error", err)
	}
	verifyRecvBuf(conn, port, log)

	s := &Stream{
		conn:        conn,
		streamID:    streamID,
		port:        port,
		recvBuf:     make([]byte, requestedSocketRecvBuf),
		memcpyTimer: NewTimer(),
		log:         logging.WithThread(log, 0).With("stream", streamID, "port", port),
	}
	return s, nil
}

// verifyRecvBuf reads back the socket's actual receive buffer size and
// warns if the kernel gave us materially less than requested — the
// original stream_create did the same getsockopt-after-setsockopt
// check because some kernels silently cap or round the value.
func verifyRecvBuf(conn *net.UDPConn, port int, log *zap.SugaredLogger) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return
	}
	var actual int
	cerr := sc.Control(func(fd uintptr) {
		actual = readSockRecvBuf(fd)
	})
	if cerr != nil || actual <= 0 {
		return
	}
	// Linux reports back double what was configured; halve before comparing.
	if datasize.ByteSize(actual/2) < requestedSocketRecvBuf {
		log.Warnw("requested socket buffer not honoured in full",
			"port", port,
			"requested", requestedSocketRecvBuf.String(),
			"actual", datasize.ByteSize(actual/2).String(),
		)
	}
}

// Close releases the stream's socket.
func (s *Stream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Done reports whether this stream has seen its end-of-stream item.
func (s *Stream) Done() bool { return s.done }

// StreamID returns the channel index this stream occupies in the
// shared visibility tensor.
func (s *Stream) StreamID() int { return s.streamID }

// drainCounters reads and resets the throughput counters the
// housekeeping pass aggregates every report interval. It uses plain
// field access; housekeeping runs between the two barrier waits, while
// no receive goroutine touches the stream.
func (s *Stream) drainCounters() (recv, dump uint64, memcpyElapsed time.Duration) {
	recv, dump = s.recvByteCounter, s.dumpByteCounter
	s.recvByteCounter, s.dumpByteCounter = 0, 0
	memcpyElapsed = s.memcpyTimer.Elapsed()
	s.memcpyTimer.Clear()
	return
}

// receive performs a single non-blocking read and walks every SPEAD
// packet coalesced into the datagram, per §4.2. It never blocks:
// absence of data returns immediately.
func (s *Stream) receive(recv buffers) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return
	}
	n, _, err := s.conn.ReadFromUDP(s.recvBuf)
	if err != nil || n < headerLen {
		return
	}

	data := s.recvBuf[:n]
	offset := 0
	for len(data)-offset >= headerLen {
		offset += s.decodePacket(data[offset:], recv)
	}
}

// decodePacket decodes exactly one SPEAD packet at the start of data
// and returns the number of bytes consumed, per the decode(stream,
// bytes) -> bytes_consumed contract in §4.1.
func (s *Stream) decodePacket(data []byte, recv buffers) int {
	h := parseHeader(data)
	if !h.magicOK {
		return headerLen
	}

	need := headerLen + 8*h.numItems
	if len(data) < need {
		return len(data)
	}

	items := parseItemPointers(data, h)
	p := applyItems(items)

	if p.haveHeapCounter {
		s.heapCount = int(p.heapCounter)
	}
	if p.haveTimestamp {
		recv.setTimestampCount(p.timestampCount)
	}
	if p.haveBaselines {
		recv.setNumBaselines(p.numBaselines)
	}

	total := packetLen(h, p.packetPayloadLen)
	if total > len(data) {
		total = len(data)
	}

	if p.endOfStream {
		s.done = true
		return total
	}
	if p.hasStreamControl {
		return total
	}

	if p.hasVisData {
		s.visDataHeapOffset = p.visDataHeapOffset
		s.haveVisDataOffset = true
	}

	if s.haveVisDataOffset && s.visDataHeapOffset > 0 && recv.numBaselines() > 0 {
		s.deposit(data, h, p, recv)
	}

	return total
}

// deposit copies the visibility payload into the owning buffer's
// tensor, per §4.1's placement arithmetic, or counts it as dumped if
// no buffer will accept it.
func (s *Stream) deposit(data []byte, h packetHeader, p decodedPacket, recv buffers) {
	payloadStart := headerLen + 8*h.numItems
	visDataLen := int(p.packetPayloadLen) - int(p.visDataStart)
	if visDataLen <= 0 {
		return
	}

	now := time.Now()
	buf := recv.acquireBuffer(s.heapCount, visDataLen, now)
	if buf == nil {
		s.dumpByteCounter += uint64(visDataLen)
		return
	}

	srcOff := payloadStart + int(p.visDataStart)
	if srcOff+visDataLen > len(data) {
		visDataLen = len(data) - srcOff
		if visDataLen <= 0 {
			return
		}
	}
	src := data[srcOff : srcOff+visDataLen]

	iTime := s.heapCount - buf.HeapIDStart()
	dstOff := int(p.heapOffset) - int(s.visDataHeapOffset) + int(p.visDataStart) +
		BlockSize*(iTime*buf.numChannels+s.streamID)

	dst := asBytes(buf.VisData())
	if dstOff < 0 || dstOff+visDataLen > len(dst) {
		// Placement landed outside the tensor: a malformed or stale
		// packet slipped past acquireBuffer's window check. Drop it
		// rather than corrupt memory.
		s.dumpByteCounter += uint64(visDataLen)
		return
	}

	s.memcpyTimer.Resume()
	copy(dst[dstOff:dstOff+visDataLen], src)
	s.memcpyTimer.Pause()

	s.recvByteCounter += uint64(visDataLen)
}

// buffers is the subset of Receiver the decoder needs: buffer
// arbitration plus the shared, advisory observation state. Kept as an
// interface so spead/stream tests can exercise decode logic against a
// fake without a real Receiver.
type buffers interface {
	acquireBuffer(heapID, length int, now time.Time) *Buffer
	setTimestampCount(uint32)
	setNumBaselines(uint32)
	numBaselines() uint32
}
