package phy

import "io"

// Mem is one end of an in-process duplex channel built from two
// io.Pipes. Used by tests.
type Mem struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// NewMemPair returns two cross-wired endpoints: bytes sent on one are
// received on the other.
func NewMemPair() (*Mem, *Mem) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &Mem{r: ar, w: aw}, &Mem{r: br, w: bw}
}

func (m *Mem) Init() error {
	return nil
}

func (m *Mem) Send(data []byte) (int, error) {
	return m.w.Write(data)
}

func (m *Mem) Receive(buf []byte) (int, error) {
	return m.r.Read(buf)
}

func (m *Mem) Deinit() error {
	_ = m.w.Close()
	return m.r.Close()
}
