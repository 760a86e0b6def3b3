package pace

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestWait_SpacesCalls(t *testing.T) {
	p := New(10*time.Millisecond, 0, rand.New(rand.NewSource(1)))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// First call is immediate, three more at 10ms apart.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("4 calls took %v, want at least 30ms", elapsed)
	}
}

func TestWait_Cancellation(t *testing.T) {
	p := New(time.Minute, 0, rand.New(rand.NewSource(1)))
	ctx, cancel := context.WithCancel(context.Background())

	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if err := p.Wait(ctx); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWait_NilAndDisabled(t *testing.T) {
	ctx := context.Background()
	var nilPacer *Pacer
	if err := nilPacer.Wait(ctx); err != nil {
		t.Errorf("nil pacer should be a no-op, got %v", err)
	}
	disabled := New(0, 0, rand.New(rand.NewSource(1)))
	if err := disabled.Wait(ctx); err != nil {
		t.Errorf("zero interval should be a no-op, got %v", err)
	}
}
