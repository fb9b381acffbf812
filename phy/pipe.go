package phy

import (
	"os"

	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/log"
	"golang.org/x/sys/unix"
)

// Pipe is the named-pipe (FIFO) reference backend. Two paths are
// configured; the peer endpoint cross-wires them so that one side's
// SendPath is the other side's RecvPath.
type Pipe struct {
	SendPath string
	RecvPath string

	sendFile *os.File
	recvFile *os.File
}

func mkfifo(path string) error {
	err := unix.Mkfifo(path, 0666)
	if err != nil && err != unix.EEXIST {
		return err
	}
	return nil
}

func (p *Pipe) Init() error {
	if p.SendPath == "" || p.RecvPath == "" {
		return errors.ErrInvalidArgs
	}

	if err := mkfifo(p.SendPath); err != nil {
		return errors.Wrap(errors.ErrSend, err)
	}
	if err := mkfifo(p.RecvPath); err != nil {
		return errors.Wrap(errors.ErrReceive, err)
	}

	// O_RDWR so open never blocks waiting for the peer.
	sendFile, err := os.OpenFile(p.SendPath, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(errors.ErrSend, err)
	}
	recvFile, err := os.OpenFile(p.RecvPath, os.O_RDWR, 0)
	if err != nil {
		_ = sendFile.Close()
		return errors.Wrap(errors.ErrReceive, err)
	}

	p.sendFile = sendFile
	p.recvFile = recvFile

	log.Debugf("pipe phy ready: send=%v recv=%v", p.SendPath, p.RecvPath)
	return nil
}

func (p *Pipe) Send(data []byte) (int, error) {
	return p.sendFile.Write(data)
}

func (p *Pipe) Receive(buf []byte) (int, error) {
	return p.recvFile.Read(buf)
}

func (p *Pipe) Deinit() error {
	var first error
	if p.sendFile != nil {
		first = p.sendFile.Close()
	}
	if p.recvFile != nil {
		if err := p.recvFile.Close(); first == nil {
			first = err
		}
	}
	return first
}
