package session

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newPipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return New(server, zap.NewNop()), client
}

func TestNewAssignsID(t *testing.T) {
	a, _ := newPipeSession(t)
	b, _ := newPipeSession(t)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.Rate() != 0 {
		t.Errorf("expected rate 0 before negotiation, got %d", a.Rate())
	}
}

func TestNegotiate(t *testing.T) {
	for _, want := range []uint8{0, 10, 200, 255} {
		sess, client := newPipeSession(t)
		go client.Write([]byte{want})

		got, err := sess.Negotiate()
		if err != nil {
			t.Fatalf("negotiate %d: %v", want, err)
		}
		if got != want || sess.Rate() != want {
			t.Errorf("expected rate %d, got %d (stored %d)", want, got, sess.Rate())
		}
	}
}

func TestNegotiateFailsOnDisconnect(t *testing.T) {
	sess, client := newPipeSession(t)
	client.Close()

	_, err := sess.Negotiate()
	if !errors.Is(err, ErrNegotiate) {
		t.Fatalf("expected ErrNegotiate, got %v", err)
	}
}

func TestSendWritesRawPayload(t *testing.T) {
	sess, client := newPipeSession(t)
	frame := []byte("0123456789")

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(frame))
		io.ReadFull(client, buf)
		got <- buf
	}()

	if err := sess.Send(frame); err != nil {
		t.Fatalf("send: %v", err)
	}
	if b := <-got; !bytes.Equal(b, frame) {
		t.Errorf("expected %q, got %q", frame, b)
	}

	info := sess.Info()
	if info.FramesSent != 1 || info.BytesSent != uint64(len(frame)) {
		t.Errorf("unexpected counters %+v", info)
	}
}

func TestSendSkipsEmptyFrame(t *testing.T) {
	sess, _ := newPipeSession(t)

	done := make(chan error, 1)
	go func() { done <- sess.Send(nil) }()

	// net.Pipe writes block until read; an empty frame must not touch the conn.
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("empty frame was written to the connection")
	}
	if sess.Info().FramesSent != 0 {
		t.Error("empty frame should not count as sent")
	}
}

func TestSendFailsAfterPeerClose(t *testing.T) {
	sess, client := newPipeSession(t)
	client.Close()

	err := sess.Send([]byte("frame"))
	if !errors.Is(err, ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	sess, _ := newPipeSession(t)
	if err := sess.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
