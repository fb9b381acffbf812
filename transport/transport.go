package transport

import (
	"sync"
	"time"

	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/link"
	"github.com/brodyxchen/framerpc/log"
	"github.com/brodyxchen/framerpc/phy"
	"github.com/brodyxchen/framerpc/statistics"
)

type Config struct {
	PHY phy.PHY

	WorkerCount int

	RxQueueDepth     int
	TxQueueDepth     int
	WorkerQueueDepth int

	RequestTimeout time.Duration
	HandlerTimeout time.Duration
}

func (cfg *Config) withDefaults() {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = constant.DefaultWorkerCount
	}
	if cfg.RxQueueDepth <= 0 {
		cfg.RxQueueDepth = constant.RxQueueDepth
	}
	if cfg.TxQueueDepth <= 0 {
		cfg.TxQueueDepth = constant.TxQueueDepth
	}
	if cfg.WorkerQueueDepth <= 0 {
		cfg.WorkerQueueDepth = constant.WorkerQueueDepth
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constant.DefaultRequestTimeout
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = constant.DefaultHandlerTimeout
	}
}

// workItem is one inbound REQ or STREAM handed to a worker. Name and
// args are bounded copies; nothing aliases the parser buffers.
type workItem struct {
	typ  MsgType
	seq  uint8
	name string
	args []byte
}

// Transport owns the queues and goroutines between one PHY and many
// callers. All state lives here; there are no package globals.
type Transport struct {
	cfg Config
	phy phy.PHY

	reg     registry
	waiters *waiterTable

	rxq   chan []byte   // link -> dispatcher
	txq   chan []byte   // callers/workers -> tx
	workq chan workItem // dispatcher -> workers

	parser *link.Parser

	workerMu  sync.Mutex
	workerNum int

	closeOnce sync.Once
	closeCh   chan struct{}
}

func New(cfg *Config) *Transport {
	cfg.withDefaults()

	t := &Transport{
		cfg:     *cfg,
		phy:     cfg.PHY,
		waiters: newWaiterTable(),
		rxq:     make(chan []byte, cfg.RxQueueDepth),
		txq:     make(chan []byte, cfg.TxQueueDepth),
		workq:   make(chan workItem, cfg.WorkerQueueDepth),
		closeCh: make(chan struct{}),
	}
	t.parser = link.NewParser(t.emitPayload)
	return t
}

// emitPayload is the parser's sink: a blocking enqueue so a full RX
// queue backpressures into the RX goroutine.
func (t *Transport) emitPayload(payload []byte) {
	select {
	case t.rxq <- payload:
	case <-t.closeCh:
	}
}

// Start launches the dispatcher, the workers, and the TX/RX
// goroutines. They run until Close.
func (t *Transport) Start() {
	go t.dispatchLoop()
	for i := 0; i < t.cfg.WorkerCount; i++ {
		go t.workerLoop()
	}
	go t.txLoop()
	go t.rxLoop()
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
	})
	return t.phy.Deinit()
}

// Register adds a handler under name. Names are matched byte for byte;
// duplicates are not rejected, the first registration wins on lookup.
func (t *Transport) Register(name string, fn Handler) error {
	if len(name) < constant.MinNameLen || len(name) > constant.MaxNameLen || fn == nil {
		return errors.ErrInvalidArgs
	}
	if err := t.reg.register(name, fn); err != nil {
		log.Errorf("register %v: %v", name, err)
		return err
	}
	log.Infof("registered function: %v", name)
	return nil
}

// Request sends a REQ message and blocks until the matching RESP/ERR
// arrives or timeout elapses (zero means the default). respBuf must
// hold at least MaxArgsSize bytes regardless of the expected response
// size; the dispatcher copies into it without allocating. Returns the
// delivered byte count.
func (t *Transport) Request(name string, args, respBuf []byte, timeout time.Duration) (int, error) {
	if len(name) < constant.MinNameLen || len(name) > constant.MaxNameLen {
		return 0, errors.ErrInvalidArgs
	}
	if respBuf == nil || len(respBuf) < constant.MaxArgsSize {
		return 0, errors.ErrInvalidArgs
	}

	w, err := t.waiters.alloc(respBuf)
	if err != nil {
		log.Errorf("request %v: %v", name, err)
		return 0, err
	}
	seq := w.seq
	log.Debugf("request %v: seq=%v", name, seq)

	payload := make([]byte, link.MaxPayloadSize)
	n, err := BuildMessage(MsgReq, seq, name, args, payload)
	if err != nil {
		t.waiters.free(w)
		return 0, err
	}

	done := w.done
	if err := t.sendTx(payload[:n]); err != nil {
		t.waiters.free(w)
		return 0, err
	}

	if timeout <= 0 {
		timeout = t.cfg.RequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		rn, rerr := w.respN, w.result
		t.waiters.free(w)
		return rn, rerr
	case <-timer.C:
		t.waiters.free(w)
		log.Errorf("request %v: seq=%v timeout after %v", name, seq, timeout)
		return 0, errors.ErrTimeout
	case <-t.closeCh:
		t.waiters.free(w)
		return 0, errors.ErrClosed
	}
}

// Stream sends a fire-and-forget STREAM message with seq 0.
func (t *Transport) Stream(name string, args []byte) error {
	if len(name) < constant.MinNameLen || len(name) > constant.MaxNameLen {
		return errors.ErrInvalidArgs
	}

	payload := make([]byte, link.MaxPayloadSize)
	n, err := BuildMessage(MsgStream, 0, name, args, payload)
	if err != nil {
		return err
	}
	return t.sendTx(payload[:n])
}

// sendTx enqueues an outbound payload, blocking until the TX queue
// accepts it.
func (t *Transport) sendTx(payload []byte) error {
	select {
	case <-t.closeCh:
		return errors.ErrClosed
	default:
	}
	select {
	case t.txq <- payload:
		return nil
	case <-t.closeCh:
		return errors.ErrClosed
	}
}

// dispatchLoop demultiplexes inbound payloads: responses wake waiters,
// requests go to the worker queue.
func (t *Transport) dispatchLoop() {
	log.Info("transport dispatcher started")
	for {
		select {
		case <-t.closeCh:
			return
		case payload := <-t.rxq:
			t.handleIncoming(payload)
		}
	}
}

func (t *Transport) handleIncoming(payload []byte) {
	msg, err := ParseMessage(payload)
	if err != nil {
		log.Errorf("drop malformed payload (%v bytes): %v", len(payload), err)
		statistics.MessagesDropped.WithLabelValues("malformed").Inc()
		return
	}
	log.Debugf("inbound %v seq=%v name=%s args_len=%v", msg.Type, msg.Seq, msg.Name, len(msg.Args))

	switch msg.Type {
	case MsgResp, MsgErr:
		w, gen, ok := t.waiters.find(msg.Seq)
		if !ok {
			log.Errorf("no waiter for %v seq=%v, drop", msg.Type, msg.Seq)
			statistics.MessagesDropped.WithLabelValues("no_waiter").Inc()
			return
		}

		var result error
		if msg.Type == MsgErr {
			result = errors.Remote(string(msg.Args))
		}
		if !t.waiters.complete(w, gen, msg.Args, result) {
			log.Debugf("stale delivery for seq=%v, drop", msg.Seq)
			statistics.MessagesDropped.WithLabelValues("stale").Inc()
		}

	case MsgReq, MsgStream:
		item := workItem{
			typ:  msg.Type,
			seq:  msg.Seq,
			name: string(msg.Name),
			args: append([]byte(nil), msg.Args...),
		}
		select {
		case t.workq <- item:
		default:
			// No retry under overload; the remote caller times out.
			log.Errorf("worker queue full, drop %v %v", msg.Type, item.name)
			statistics.MessagesDropped.WithLabelValues("overload").Inc()
		}
	}
}

// workerLoop pulls requests, invokes the registered handler, and for
// REQ messages produces the RESP or ERR.
func (t *Transport) workerLoop() {
	t.workerMu.Lock()
	t.workerNum++
	num := t.workerNum
	t.workerMu.Unlock()

	log.Infof("worker %v started", num)

	for {
		select {
		case <-t.closeCh:
			return
		case item := <-t.workq:
			t.serveItem(num, item)
		}
	}
}

func (t *Transport) serveItem(num int, item workItem) {
	log.Debugf("worker %v: %v %v seq=%v", num, item.typ, item.name, item.seq)

	out := make([]byte, constant.MaxArgsSize)
	n := 0

	fn := t.reg.find(item.name)
	err := errors.ErrNoFunc
	if fn != nil {
		begin := time.Now()
		n, err = fn(item.args, out, t.cfg.HandlerTimeout)
		statistics.HandlerDuration.Observe(time.Since(begin).Seconds())

		if n > len(out) {
			log.Errorf("worker %v: handler %v returned n=%v > cap=%v", num, item.name, n, len(out))
			err = errors.ErrOverflow
			n = 0
		}
		if n < 0 {
			n = 0
		}
	}

	if item.typ != MsgReq {
		// STREAM produces no output; handler errors are swallowed.
		if err != nil {
			log.Debugf("worker %v: stream %v: %v", num, item.name, err)
		}
		return
	}

	payload := make([]byte, link.MaxPayloadSize)
	var (
		size     int
		buildErr error
	)
	if err == nil {
		size, buildErr = BuildMessage(MsgResp, item.seq, item.name, out[:n], payload)
	} else {
		tag := errors.WireTag(err)
		log.Errorf("worker %v: %v seq=%v failed: %v (tag %v)", num, item.name, item.seq, err, tag)
		size, buildErr = BuildMessage(MsgErr, item.seq, item.name, []byte(tag), payload)
	}
	if buildErr != nil {
		log.Errorf("worker %v: build response for %v: %v", num, item.name, buildErr)
		return
	}

	if err := t.sendTx(payload[:size]); err != nil {
		log.Errorf("worker %v: enqueue response seq=%v: %v", num, item.seq, err)
	}
}

// txLoop is the only writer to the PHY send direction.
func (t *Transport) txLoop() {
	log.Info("tx started")
	for {
		select {
		case <-t.closeCh:
			return
		case payload := <-t.txq:
			if err := link.BuildAndSend(t.phy, payload); err != nil {
				log.Errorf("tx: %v", err)
			}
		}
	}
}

// rxLoop is the only reader of the PHY receive direction. Bytes feed
// the parser, which hands complete payloads to the dispatcher.
func (t *Transport) rxLoop() {
	log.Info("rx started")
	buf := make([]byte, 64)
	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		n, err := t.phy.Receive(buf)
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			log.Errorf("rx: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n > 0 {
			t.parser.Feed(buf[:n])
		}
	}
}
