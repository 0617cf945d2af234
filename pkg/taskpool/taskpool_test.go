package taskpool

import (
	"errors"
	"testing"
	"time"

	"github.com/strada-lang/runtime/pkg/sequence"
	"github.com/strada-lang/runtime/pkg/value"
)

func TestSubmitAwaitResult(t *testing.T) {
	p := NewPool(2)
	defer p.Shutdown()
	f := p.Submit(func() (*value.Value, error) {
		return value.NewInt(42), nil
	})
	result, err := f.Await()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToInt() != 42 {
		t.Fatalf("expected 42, got %d", result.ToInt())
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	p := NewPool(2)
	defer p.Shutdown()
	wantErr := errors.New("boom")
	f := p.Submit(func() (*value.Value, error) {
		return nil, wantErr
	})
	_, err := f.Await()
	if err != wantErr {
		t.Fatalf("expected propagated error, got %v", err)
	}
}

func TestCancelPendingTaskNeverRuns(t *testing.T) {
	p := NewPool(1)
	defer p.Shutdown()

	block := make(chan struct{})
	// occupy the single worker so the second task stays PENDING
	busy := p.Submit(func() (*value.Value, error) {
		<-block
		return value.NewInt(1), nil
	})
	ran := false
	pending := p.Submit(func() (*value.Value, error) {
		ran = true
		return value.NewInt(2), nil
	})
	pending.Cancel()
	close(block)
	busy.Await()

	_, err := pending.Await()
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if ran {
		t.Fatalf("cancelled pending task should never have run")
	}
}

func TestAwaitTimeout(t *testing.T) {
	p := NewPool(1)
	defer p.Shutdown()
	f := p.Submit(func() (*value.Value, error) {
		time.Sleep(50 * time.Millisecond)
		return value.NewInt(1), nil
	})
	_, err := f.AwaitTimeout(1 * time.Millisecond)
	if err != ErrTimedOut {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
}

func TestAllAwaitsInOrder(t *testing.T) {
	p := NewPool(4)
	defer p.Shutdown()
	futures := []*Future{
		p.Submit(func() (*value.Value, error) { return value.NewInt(1), nil }),
		p.Submit(func() (*value.Value, error) { return value.NewInt(2), nil }),
		p.Submit(func() (*value.Value, error) { return value.NewInt(3), nil }),
	}
	result, err := All(futures)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := sequence.Payload(result)
	if seq.Length() != 3 {
		t.Fatalf("expected 3 results, got %d", seq.Length())
	}
	for i := 0; i < 3; i++ {
		if seq.Get(i).ToInt() != int64(i+1) {
			t.Fatalf("expected ordered results, got %d at %d", seq.Get(i).ToInt(), i)
		}
	}
}

func TestRaceReturnsFirstAndCancelsRest(t *testing.T) {
	p := NewPool(4)
	defer p.Shutdown()
	fast := p.Submit(func() (*value.Value, error) {
		return value.NewStr("fast"), nil
	})
	slowBlock := make(chan struct{})
	slow := p.Submit(func() (*value.Value, error) {
		<-slowBlock
		return value.NewStr("slow"), nil
	})
	defer close(slowBlock)

	winner, err := Race([]*Future{fast, slow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.ToStr() != "fast" {
		t.Fatalf("expected fast to win, got %q", winner.ToStr())
	}
}

// TestFutureAllAndRaceWithCancellation exercises All, Race, and Cancel
// together against a shared pool: an All() group that must wait for its
// slowest member, a Race() group where the loser is cancelled mid-flight,
// and a still-pending task cancelled before it is ever scheduled.
func TestFutureAllAndRaceWithCancellation(t *testing.T) {
	p := NewPool(2)
	defer p.Shutdown()

	allFutures := []*Future{
		p.Submit(func() (*value.Value, error) { return value.NewInt(10), nil }),
		p.Submit(func() (*value.Value, error) {
			time.Sleep(5 * time.Millisecond)
			return value.NewInt(20), nil
		}),
	}
	allResult, err := All(allFutures)
	if err != nil {
		t.Fatalf("All: unexpected error: %v", err)
	}
	allSeq := sequence.Payload(allResult)
	if allSeq.Length() != 2 || allSeq.Get(0).ToInt() != 10 || allSeq.Get(1).ToInt() != 20 {
		t.Fatalf("All: unexpected ordered result %v", allSeq)
	}

	// the loser is already RUNNING (blocked on raceBlock) when Race cancels
	// it, so per Future.Cancel's cooperative contract it finishes normally
	// once unblocked rather than resolving to ErrCancelled — a pending (not
	// yet dispatched) cancellation is covered separately below.
	raceBlock := make(chan struct{})
	fast := p.Submit(func() (*value.Value, error) { return value.NewStr("winner"), nil })
	loser := p.Submit(func() (*value.Value, error) {
		<-raceBlock
		return value.NewStr("loser"), nil
	})
	winner, err := Race([]*Future{fast, loser})
	if err != nil {
		t.Fatalf("Race: unexpected error: %v", err)
	}
	if winner.ToStr() != "winner" {
		t.Fatalf("Race: expected winner, got %q", winner.ToStr())
	}
	close(raceBlock)
	if _, err := loser.Await(); err != nil {
		t.Fatalf("Race: expected loser to finish normally once unblocked, got %v", err)
	}

	neverRan := false
	occupy := p.Submit(func() (*value.Value, error) {
		time.Sleep(5 * time.Millisecond)
		return value.NewInt(0), nil
	})
	occupy2 := p.Submit(func() (*value.Value, error) {
		time.Sleep(5 * time.Millisecond)
		return value.NewInt(0), nil
	})
	pending := p.Submit(func() (*value.Value, error) {
		neverRan = true
		return value.NewInt(0), nil
	})
	pending.Cancel()
	occupy.Await()
	occupy2.Await()
	if _, err := pending.Await(); err != ErrCancelled {
		t.Fatalf("expected cancelled pending task, got %v", err)
	}
	if neverRan {
		t.Fatalf("cancelled pending task should never have run")
	}
}
