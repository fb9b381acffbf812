// Package framerpc is a lightweight point-to-point RPC endpoint. Each
// endpoint can both initiate calls and serve handlers over a single
// duplex byte channel. Two call flavors exist: Request blocks the
// caller until the response arrives or a timeout elapses; Stream is
// fire and forget.
package framerpc

import (
	"time"

	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/log"
	"github.com/brodyxchen/framerpc/phy"
	"github.com/brodyxchen/framerpc/transport"
)

// Handler serves one inbound call. See transport.Handler.
type Handler = transport.Handler

type Config struct {
	// PHY is the byte channel this endpoint runs over. Required.
	PHY phy.PHY

	WorkerCount int
	QueueDepth  int

	RequestTimeout time.Duration
	HandlerTimeout time.Duration
}

// Node is one endpoint: the owning context for the transport, its
// queues, and its goroutines. Construct with New, then Register
// handlers, then Start.
type Node struct {
	trans *transport.Transport
	phy   phy.PHY
}

// New opens the PHY and builds the endpoint. Nothing runs until Start.
func New(cfg *Config) (*Node, error) {
	if cfg == nil || cfg.PHY == nil {
		return nil, errors.ErrInvalidArgs
	}

	if err := cfg.PHY.Init(); err != nil {
		log.Errorf("phy init: %v", err)
		return nil, err
	}

	trans := transport.New(&transport.Config{
		PHY:              cfg.PHY,
		WorkerCount:      cfg.WorkerCount,
		RxQueueDepth:     cfg.QueueDepth,
		TxQueueDepth:     cfg.QueueDepth,
		WorkerQueueDepth: cfg.QueueDepth,
		RequestTimeout:   cfg.RequestTimeout,
		HandlerTimeout:   cfg.HandlerTimeout,
	})

	return &Node{trans: trans, phy: cfg.PHY}, nil
}

// Start launches the endpoint goroutines: dispatcher, workers, TX and
// RX. Handlers may still be registered afterwards.
func (nd *Node) Start() {
	nd.trans.Start()
}

// Register makes fn callable by the peer under name. The name must be
// 1..32 bytes. Duplicates are not rejected; the first wins.
func (nd *Node) Register(name string, fn Handler) error {
	return nd.trans.Register(name, fn)
}

// Request calls name on the peer and blocks for the response. respBuf
// must hold at least 64 bytes (the response size cap) no matter how
// small the expected response is; the response is copied into it and
// its length returned. A zero timeout means Config.RequestTimeout, which
// is 200ms when left unset.
func (nd *Node) Request(name string, args, respBuf []byte, timeout time.Duration) (int, error) {
	return nd.trans.Request(name, args, respBuf, timeout)
}

// Stream sends a one-way message to the peer. No response is expected
// and handler errors on the far side are not reported.
func (nd *Node) Stream(name string, args []byte) error {
	return nd.trans.Stream(name, args)
}

// Close stops the goroutines and closes the PHY. Outstanding requests
// fail with ErrClosed.
func (nd *Node) Close() error {
	return nd.trans.Close()
}
