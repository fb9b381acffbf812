package framerpc

import (
	"testing"
	"time"

	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/phy"
)

func launchPair(t *testing.T) (*Node, *Node) {
	t.Helper()

	pa, pb := phy.NewMemPair()
	na, err := New(&Config{PHY: pa})
	if err != nil {
		t.Fatalf("New(a) err = %v", err)
	}
	nb, err := New(&Config{PHY: pb})
	if err != nil {
		t.Fatalf("New(b) err = %v", err)
	}

	na.Start()
	nb.Start()
	t.Cleanup(func() {
		_ = na.Close()
		_ = nb.Close()
	})
	return na, nb
}

func TestNodePingPong(t *testing.T) {
	cli, srv := launchPair(t)

	err := srv.Register("ping", func(args []byte, out []byte, timeout time.Duration) (int, error) {
		return copy(out, "pong"), nil
	})
	if err != nil {
		t.Fatalf("Register err = %v", err)
	}

	resp := make([]byte, 100)
	n, err := cli.Request("ping", nil, resp, time.Second)
	if err != nil {
		t.Fatalf("Request err = %v", err)
	}
	if string(resp[:n]) != "pong" {
		t.Errorf("response = %q, want pong", resp[:n])
	}
}

func TestNodeBothDirections(t *testing.T) {
	// Each endpoint both serves and calls.
	na, nb := launchPair(t)

	err := na.Register("whoami", func(args []byte, out []byte, timeout time.Duration) (int, error) {
		return copy(out, "a"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = nb.Register("whoami", func(args []byte, out []byte, timeout time.Duration) (int, error) {
		return copy(out, "b"), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	resp := make([]byte, constant.MaxArgsSize)
	n, err := na.Request("whoami", nil, resp, time.Second)
	if err != nil {
		t.Fatalf("a->b err = %v", err)
	}
	if string(resp[:n]) != "b" {
		t.Errorf("a->b response = %q, want b", resp[:n])
	}

	n, err = nb.Request("whoami", nil, resp, time.Second)
	if err != nil {
		t.Fatalf("b->a err = %v", err)
	}
	if string(resp[:n]) != "a" {
		t.Errorf("b->a response = %q, want a", resp[:n])
	}
}

func TestNodeStream(t *testing.T) {
	cli, srv := launchPair(t)

	got := make(chan string, 1)
	err := srv.Register("log", func(args []byte, out []byte, timeout time.Duration) (int, error) {
		got <- string(args)
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := cli.Stream("log", []byte("hello")); err != nil {
		t.Fatalf("Stream err = %v", err)
	}
	select {
	case msg := <-got:
		if msg != "hello" {
			t.Errorf("stream args = %q, want hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("stream handler not invoked")
	}
}

func TestNodeClosed(t *testing.T) {
	cli, _ := launchPair(t)
	_ = cli.Close()

	resp := make([]byte, constant.MaxArgsSize)
	if _, err := cli.Request("ping", nil, resp, time.Second); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("Request on closed node err = %v, want ErrClosed", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, errors.ErrInvalidArgs) {
		t.Errorf("New(nil) err = %v, want ErrInvalidArgs", err)
	}
	if _, err := New(&Config{}); !errors.Is(err, errors.ErrInvalidArgs) {
		t.Errorf("New(no phy) err = %v, want ErrInvalidArgs", err)
	}
}
