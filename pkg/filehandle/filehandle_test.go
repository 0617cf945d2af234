package filehandle

import (
	"bytes"
	"net"
	"testing"

	"github.com/strada-lang/runtime/pkg/value"
)

func TestMemReadWriteRoundTrip(t *testing.T) {
	v := OpenMemRead([]byte("hello"))
	buf := make([]byte, 5)
	n, err := Read(v, buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("unexpected read result: n=%d err=%v buf=%q", n, err, buf)
	}
	Close(v)
}

func TestMemWriteAccumulates(t *testing.T) {
	v := OpenMemWrite()
	Write(v, []byte("ab"))
	Write(v, []byte("cd"))
	e, _ := lookup(v)
	if e.writeBuf.String() != "abcd" {
		t.Fatalf("expected accumulated buffer \"abcd\", got %q", e.writeBuf.String())
	}
	Close(v)
}

func TestMemWriteRefFlushesOnClose(t *testing.T) {
	target := value.NewStr("")
	v := OpenMemWriteRef(target)
	Write(v, []byte("captured"))
	Close(v)
	if target.ToStr() != "captured" {
		t.Fatalf("expected target updated on close, got %q", target.ToStr())
	}
}

func TestCloseUnlinksEntry(t *testing.T) {
	v := OpenMemWrite()
	Close(v)
	if KindOf(v) != Normal {
		t.Fatalf("expected missing entry to default to Normal after close")
	}
}

func TestSocketBufferedReadWrite(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	v := OpenSocket(a)
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 5)
		b.Read(buf)
		if !bytes.Equal(buf, []byte("hello")) {
			t.Errorf("expected to receive hello, got %q", buf)
		}
		close(done)
	}()
	Write(v, []byte("hello"))
	<-done
	Close(v)
}

func TestFileHandleDestructorRoutesThroughClose(t *testing.T) {
	v := OpenMemWrite()
	value.Decref(v)
	if KindOf(v) != Normal {
		t.Fatalf("expected decref to zero to close and unlink the handle")
	}
}
