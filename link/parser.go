package link

import (
	"github.com/brodyxchen/framerpc/crc8"
	"github.com/brodyxchen/framerpc/log"
	"github.com/brodyxchen/framerpc/statistics"
)

type state int

const (
	stWaitSOF state = iota
	stReadLen1
	stReadLen2
	stReadHdrCRC
	stWaitSOD
	stReadPayload
	stReadPktCRC
	stWaitEOF
)

// Parser is the inbound state machine. It is owned by a single RX
// goroutine; completed payloads are handed to emit, which may block
// (backpressure into RX).
type Parser struct {
	st      state
	length  int
	hdr     [3]byte
	pos     int
	payload [MaxPayloadSize]byte

	emit func([]byte)
}

func NewParser(emit func([]byte)) *Parser {
	return &Parser{st: stWaitSOF, emit: emit}
}

func (p *Parser) reset() {
	p.st = stWaitSOF
	p.length = 0
	p.pos = 0
}

// Feed runs every byte through the state machine. A violation resets
// the parser; it resynchronizes on the next SOF, no lookahead.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.feedByte(b)
	}
}

func (p *Parser) feedByte(b byte) {
	switch p.st {
	case stWaitSOF:
		if b != SOF {
			// Line noise between frames; debug so a noisy line
			// does not flood the log.
			log.Debugf("link: waiting for SOF, got 0x%02X", b)
			statistics.FrameErrors.WithLabelValues("noise").Inc()
			return
		}
		p.hdr[0] = b
		p.st = stReadLen1

	case stReadLen1:
		p.hdr[1] = b
		p.st = stReadLen2

	case stReadLen2:
		p.hdr[2] = b
		p.length = int(p.hdr[2])<<8 | int(p.hdr[1])
		if p.length < minPktLen || p.length > maxPktLen {
			log.Debugf("link: invalid packet length %v", p.length)
			statistics.FrameErrors.WithLabelValues("length").Inc()
			p.reset()
			return
		}
		p.st = stReadHdrCRC

	case stReadHdrCRC:
		if crc8.Compute(p.hdr[:], crc8.Init, crc8.Poly) != b {
			log.Debugf("link: header crc mismatch")
			statistics.FrameErrors.WithLabelValues("hdr_crc").Inc()
			p.reset()
			return
		}
		p.st = stWaitSOD

	case stWaitSOD:
		if b != SOD {
			log.Debugf("link: expected SOD, got 0x%02X", b)
			statistics.FrameErrors.WithLabelValues("sod").Inc()
			p.reset()
			return
		}
		p.pos = 0
		p.st = stReadPayload

	case stReadPayload:
		p.payload[p.pos] = b
		p.pos++
		if p.pos == p.length-3 {
			p.st = stReadPktCRC
		}

	case stReadPktCRC:
		crc := crc8.Compute([]byte{SOD}, crc8.Init, crc8.Poly)
		crc = crc8.Compute(p.payload[:p.pos], crc, crc8.Poly)
		if crc != b {
			log.Debugf("link: packet crc mismatch")
			statistics.FrameErrors.WithLabelValues("pkt_crc").Inc()
			p.reset()
			return
		}
		p.st = stWaitEOF

	case stWaitEOF:
		if b == EOF {
			out := make([]byte, p.pos)
			copy(out, p.payload[:p.pos])
			statistics.FramesReceived.Inc()
			p.emit(out)
		} else {
			log.Debugf("link: expected EOF, got 0x%02X", b)
			statistics.FrameErrors.WithLabelValues("eof").Inc()
		}
		p.reset()
	}
}
