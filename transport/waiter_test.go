package transport

import (
	"bytes"
	"testing"

	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/errors"
)

func TestWaiterUniqueSeq(t *testing.T) {
	tbl := newWaiterTable()

	seen := make(map[uint8]bool)
	ws := make([]*waiter, 0, constant.WaiterTableSize)
	for i := 0; i < constant.WaiterTableSize; i++ {
		w, err := tbl.alloc(make([]byte, constant.MaxArgsSize))
		if err != nil {
			t.Fatalf("alloc[%v] err = %v", i, err)
		}
		if w.seq == 0 {
			t.Fatal("seq 0 assigned to a waiter; it is reserved for streams")
		}
		if seen[w.seq] {
			t.Fatalf("duplicate live seq %v", w.seq)
		}
		seen[w.seq] = true
		ws = append(ws, w)
	}

	for _, w := range ws {
		tbl.free(w)
	}
}

func TestWaiterSeqSkipsZero(t *testing.T) {
	tbl := newWaiterTable()
	tbl.nextSeq = 254

	buf := make([]byte, constant.MaxArgsSize)
	for i := 0; i < 4; i++ {
		w, err := tbl.alloc(buf)
		if err != nil {
			t.Fatalf("alloc err = %v", err)
		}
		if w.seq == 0 {
			t.Fatal("seq wrapped through 0")
		}
		tbl.free(w)
	}
}

func TestWaiterExhaustion(t *testing.T) {
	tbl := newWaiterTable()

	buf := make([]byte, constant.MaxArgsSize)
	ws := make([]*waiter, 0, constant.WaiterTableSize)
	for i := 0; i < constant.WaiterTableSize; i++ {
		w, _ := tbl.alloc(buf)
		ws = append(ws, w)
	}

	if _, err := tbl.alloc(buf); !errors.Is(err, errors.ErrNoWaiter) {
		t.Fatalf("alloc on full table err = %v, want ErrNoWaiter", err)
	}

	// A freed slot becomes allocatable again.
	tbl.free(ws[0])
	w, err := tbl.alloc(buf)
	if err != nil {
		t.Fatalf("alloc after free err = %v", err)
	}
	tbl.free(w)
	for _, prev := range ws[1:] {
		tbl.free(prev)
	}
}

func TestWaiterCompleteAtMostOnce(t *testing.T) {
	tbl := newWaiterTable()

	buf := make([]byte, constant.MaxArgsSize)
	w, _ := tbl.alloc(buf)

	fw, gen, ok := tbl.find(w.seq)
	if !ok {
		t.Fatal("find() did not locate the live waiter")
	}

	if !tbl.complete(fw, gen, []byte("pong"), nil) {
		t.Fatal("first complete rejected")
	}
	if tbl.complete(fw, gen, []byte("again"), nil) {
		t.Fatal("second complete accepted; semaphore must fire at most once")
	}

	select {
	case <-w.done:
	default:
		t.Fatal("done not signaled")
	}
	select {
	case <-w.done:
		t.Fatal("done signaled twice")
	default:
	}

	if w.respN != 4 || !bytes.Equal(buf[:4], []byte("pong")) {
		t.Errorf("resp = %q (%v bytes), want pong", buf[:w.respN], w.respN)
	}
	tbl.free(w)
}

func TestWaiterOverflowSafety(t *testing.T) {
	tbl := newWaiterTable()

	buf := bytes.Repeat([]byte{0xEE}, 8)
	w, _ := tbl.alloc(buf)

	fw, gen, _ := tbl.find(w.seq)
	big := bytes.Repeat([]byte{0x11}, len(buf)+1)
	if !tbl.complete(fw, gen, big, nil) {
		t.Fatal("complete rejected")
	}

	if !errors.Is(w.result, errors.ErrOverflow) {
		t.Errorf("result = %v, want ErrOverflow", w.result)
	}
	if w.respN != 0 {
		t.Errorf("respN = %v, want 0", w.respN)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xEE}, 8)) {
		t.Error("resp buffer was written despite overflow")
	}
	tbl.free(w)
}

func TestWaiterStaleGeneration(t *testing.T) {
	tbl := newWaiterTable()
	buf := make([]byte, constant.MaxArgsSize)

	w, _ := tbl.alloc(buf)
	_, gen, _ := tbl.find(w.seq)

	// Caller times out: slot freed and immediately reallocated.
	tbl.free(w)
	w2, _ := tbl.alloc(buf)

	if tbl.complete(w, gen, []byte("stale"), nil) {
		t.Fatal("stale delivery accepted after slot reuse")
	}
	select {
	case <-w2.done:
		t.Fatal("new allocation saw the stale signal")
	default:
	}
	tbl.free(w2)
}

func TestWaiterFindMiss(t *testing.T) {
	tbl := newWaiterTable()
	if _, _, ok := tbl.find(9); ok {
		t.Fatal("find() located a waiter in an empty table")
	}

	w, _ := tbl.alloc(make([]byte, constant.MaxArgsSize))
	seq := w.seq
	tbl.free(w)
	if _, _, ok := tbl.find(seq); ok {
		t.Fatal("find() located a freed waiter")
	}
}
