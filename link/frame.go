// Package link frames payloads for the wire and parses the inbound
// byte stream back into payloads.
//
// Frame layout:
//
//	[SOF][len_lo][len_hi][hdr_crc] [SOD] payload[..] [pkt_crc] [EOF]
//
// len counts the segment [SOD] payload [pkt_crc] [EOF], so the payload
// is len-3 bytes. hdr_crc covers SOF+len_lo+len_hi, pkt_crc covers
// SOD+payload.
package link

import (
	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/crc8"
	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/phy"
	"github.com/brodyxchen/framerpc/statistics"
)

const (
	SOF byte = 0xFA
	SOD byte = 0xFB
	EOF byte = 0xFE

	headerSize = 4 // SOF + len_lo + len_hi + hdr_crc

	// MinPayloadSize is type + seq + shortest name + NUL.
	MinPayloadSize = 1 + 1 + constant.MinNameLen + 1

	// MaxPayloadSize is type + seq + longest name + NUL + max args.
	MaxPayloadSize = 1 + 1 + constant.MaxNameLen + 1 + constant.MaxArgsSize

	minPktLen = 1 + MinPayloadSize + 1 + 1 // SOD + payload + pkt_crc + EOF
	maxPktLen = 1 + MaxPayloadSize + 1 + 1
)

// BuildFrame wraps payload into a complete wire frame.
func BuildFrame(payload []byte) ([]byte, error) {
	if payload == nil || len(payload) < MinPayloadSize || len(payload) > MaxPayloadSize {
		return nil, errors.ErrInvalidArgs
	}

	frame := make([]byte, 0, headerSize+len(payload)+3)

	length := uint16(len(payload) + 3)
	frame = append(frame, SOF, byte(length&0xFF), byte(length>>8))
	frame = append(frame, crc8.Compute(frame, crc8.Init, crc8.Poly))

	frame = append(frame, SOD)
	frame = append(frame, payload...)
	frame = append(frame, crc8.Compute(frame[headerSize:], crc8.Init, crc8.Poly))
	frame = append(frame, EOF)

	return frame, nil
}

// BuildAndSend frames payload and writes it to the PHY in a single
// contiguous write. No retry.
func BuildAndSend(ph phy.PHY, payload []byte) error {
	frame, err := BuildFrame(payload)
	if err != nil {
		return err
	}

	n, err := ph.Send(frame)
	if err != nil {
		return errors.Wrap(errors.ErrSend, err)
	}
	if n < len(frame) {
		return errors.ErrSend
	}

	statistics.FramesSent.Inc()
	return nil
}
