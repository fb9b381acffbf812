// Package transport serializes typed messages, keeps the function
// registry and waiter table, and runs the goroutines that move
// messages between the link layer and callers/handlers.
package transport

import (
	"bytes"

	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/link"
)

type MsgType byte

const (
	MsgReq    MsgType = 0x0B
	MsgStream MsgType = 0x0C
	MsgResp   MsgType = 0x16
	MsgErr    MsgType = 0x21
)

func (t MsgType) valid() bool {
	return t == MsgReq || t == MsgStream || t == MsgResp || t == MsgErr
}

func (t MsgType) String() string {
	switch t {
	case MsgReq:
		return "REQ"
	case MsgStream:
		return "STREAM"
	case MsgResp:
		return "RESP"
	case MsgErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// Message is the parsed view of a link payload:
//
//	[type:1][seq:1][name...][NUL:1][args...]
//
// Name and Args alias the input buffer; the buffer stays owned by the
// caller.
type Message struct {
	Type MsgType
	Seq  uint8
	Name []byte
	Args []byte
}

// BuildMessage serializes a typed message into dst and returns the
// written size, 0 on any violation.
func BuildMessage(typ MsgType, seq uint8, name string, args []byte, dst []byte) (int, error) {
	if !typ.valid() {
		return 0, errors.ErrInvalidArgs
	}
	if len(name) < constant.MinNameLen || len(name) > constant.MaxNameLen {
		return 0, errors.ErrInvalidArgs
	}
	if len(args) > constant.MaxArgsSize {
		return 0, errors.ErrInvalidArgs
	}

	need := 1 + 1 + len(name) + 1 + len(args)
	if need < link.MinPayloadSize || need > link.MaxPayloadSize || need > len(dst) {
		return 0, errors.ErrInvalidArgs
	}

	pos := 0
	dst[pos] = byte(typ)
	pos++
	dst[pos] = seq
	pos++
	pos += copy(dst[pos:], name)
	dst[pos] = 0
	pos++
	pos += copy(dst[pos:], args)

	return pos, nil
}

// ParseMessage validates a link payload and returns views into it.
// No partial results: on any violation the message is nil.
func ParseMessage(in []byte) (*Message, error) {
	if len(in) < link.MinPayloadSize || len(in) > link.MaxPayloadSize {
		return nil, errors.ErrBadMessage
	}

	typ := MsgType(in[0])
	if !typ.valid() {
		return nil, errors.ErrBadMessage
	}

	term := bytes.IndexByte(in[2:], 0)
	if term < 0 {
		return nil, errors.ErrBadMessage
	}
	if term < constant.MinNameLen || term > constant.MaxNameLen {
		return nil, errors.ErrBadMessage
	}

	args := in[2+term+1:]
	if len(args) > constant.MaxArgsSize {
		return nil, errors.ErrBadMessage
	}

	return &Message{
		Type: typ,
		Seq:  in[1],
		Name: in[2 : 2+term],
		Args: args,
	}, nil
}
