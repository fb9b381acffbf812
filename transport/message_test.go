package transport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/link"
)

func TestBuildParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  MsgType
		seq  uint8
		fn   string
		args []byte
	}{
		{name: "req no args", typ: MsgReq, seq: 1, fn: "ping"},
		{name: "req with args", typ: MsgReq, seq: 42, fn: "echo", args: []byte{1, 2, 3}},
		{name: "stream", typ: MsgStream, seq: 0, fn: "log", args: []byte{0x01, 0x02}},
		{name: "resp", typ: MsgResp, seq: 255, fn: "ping", args: []byte("pong")},
		{name: "err", typ: MsgErr, seq: 7, fn: "nope", args: []byte("NOFUNC")},
		{name: "single char name", typ: MsgReq, seq: 1, fn: "a"},
		{name: "max name max args", typ: MsgReq, seq: 9, fn: strings.Repeat("n", 32), args: bytes.Repeat([]byte{0xAB}, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, link.MaxPayloadSize)
			n, err := BuildMessage(tt.typ, tt.seq, tt.fn, tt.args, buf)
			if err != nil {
				t.Fatalf("BuildMessage() err = %v", err)
			}
			want := 1 + 1 + len(tt.fn) + 1 + len(tt.args)
			if n != want {
				t.Fatalf("BuildMessage() size = %v, want %v", n, want)
			}

			msg, err := ParseMessage(buf[:n])
			if err != nil {
				t.Fatalf("ParseMessage() err = %v", err)
			}
			if msg.Type != tt.typ || msg.Seq != tt.seq {
				t.Errorf("type/seq = %v/%v, want %v/%v", msg.Type, msg.Seq, tt.typ, tt.seq)
			}
			if string(msg.Name) != tt.fn {
				t.Errorf("name = %q, want %q", msg.Name, tt.fn)
			}
			if !bytes.Equal(msg.Args, tt.args) && len(tt.args) > 0 {
				t.Errorf("args mismatch")
			}
		})
	}
}

func TestBuildMessageInvalid(t *testing.T) {
	buf := make([]byte, link.MaxPayloadSize)
	tests := []struct {
		name string
		typ  MsgType
		fn   string
		args []byte
		dst  []byte
	}{
		{name: "bad type", typ: MsgType(0x00), fn: "ping", dst: buf},
		{name: "empty name", typ: MsgReq, fn: "", dst: buf},
		{name: "name too long", typ: MsgReq, fn: strings.Repeat("x", 33), dst: buf},
		{name: "args too long", typ: MsgReq, fn: "f", args: bytes.Repeat([]byte{1}, 65), dst: buf},
		{name: "dst too small", typ: MsgReq, fn: "ping", dst: make([]byte, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := BuildMessage(tt.typ, 1, tt.fn, tt.args, tt.dst)
			if n != 0 || !errors.Is(err, errors.ErrInvalidArgs) {
				t.Errorf("BuildMessage() = (%v, %v), want (0, ErrInvalidArgs)", n, err)
			}
		})
	}
}

func TestParseMessageInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{name: "nil", in: nil},
		{name: "too short", in: []byte{0x0B, 0x01, 0x00}},
		{name: "too long", in: bytes.Repeat([]byte{0x0B}, link.MaxPayloadSize+1)},
		{name: "bad type", in: []byte{0x7F, 0x01, 'a', 0x00}},
		{name: "no terminator", in: []byte{0x0B, 0x01, 'a', 'b'}},
		{name: "empty name", in: []byte{0x0B, 0x01, 0x00, 0x00}},
		{
			name: "name too long",
			in: append(append([]byte{0x0B, 0x01}, bytes.Repeat([]byte{'n'}, 33)...), 0x00),
		},
		{
			// Short name leaves room for more trailing bytes than the
			// args cap allows.
			name: "args too long",
			in: append([]byte{0x0B, 0x01, 'a', 0x00}, bytes.Repeat([]byte{0xCD}, 95)...),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage(tt.in)
			if msg != nil || !errors.Is(err, errors.ErrBadMessage) {
				t.Errorf("ParseMessage() = (%v, %v), want (nil, ErrBadMessage)", msg, err)
			}
		})
	}
}
