package phy

import (
	"net"
	"sync"

	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/log"
	"github.com/mdlayher/vsock"
)

// Sock is a stream-socket backend for point-to-point use. Exactly one
// of DialAddr or ListenAddr must be set: the dialing side connects to
// the peer, the listening side accepts a single connection.
type Sock struct {
	DialAddr   Addr
	ListenAddr Addr

	mu   sync.Mutex
	conn net.Conn
	ln   net.Listener
}

func (s *Sock) Init() error {
	switch {
	case s.DialAddr != nil:
		return s.dial()
	case s.ListenAddr != nil:
		return s.listen()
	default:
		return errors.ErrInvalidArgs
	}
}

func (s *Sock) dial() error {
	var (
		conn net.Conn
		err  error
	)
	switch ad := s.DialAddr.(type) {
	case *VSockAddr:
		conn, err = vsock.Dial(ad.ContextID, ad.Port, nil)
	case *TCPAddr:
		conn, err = net.Dial("tcp", ad.GetAddr())
	default:
		return errors.ErrInvalidArgs
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	log.Debugf("sock phy dialed %v", s.DialAddr.GetAddr())
	return nil
}

func (s *Sock) listen() error {
	var (
		ln  net.Listener
		err error
	)
	switch ad := s.ListenAddr.(type) {
	case *VSockAddr:
		ln, err = vsock.ListenContextID(ad.ContextID, ad.Port, nil)
	case *TCPAddr:
		ln, err = net.Listen("tcp", ad.GetAddr())
	default:
		return errors.ErrInvalidArgs
	}
	if err != nil {
		return err
	}

	log.Debugf("sock phy listening on %v", s.ListenAddr.GetAddr())

	conn, err := ln.Accept()
	if err != nil {
		_ = ln.Close()
		return err
	}

	s.mu.Lock()
	s.ln = ln
	s.conn = conn
	s.mu.Unlock()

	log.Debugf("sock phy accepted %v", conn.RemoteAddr())
	return nil
}

func (s *Sock) Send(data []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return -1, errors.ErrClosed
	}
	return conn.Write(data)
}

func (s *Sock) Receive(buf []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return -1, errors.ErrClosed
	}
	return conn.Read(buf)
}

func (s *Sock) Deinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	if s.conn != nil {
		first = s.conn.Close()
		s.conn = nil
	}
	if s.ln != nil {
		if err := s.ln.Close(); first == nil {
			first = err
		}
		s.ln = nil
	}
	return first
}
