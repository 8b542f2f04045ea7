package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/estop-monitor/internal/logic"
)

func TestFakeDriverEmit(t *testing.T) {
	f := NewFakeDriver()

	var got []logic.EdgeEvent
	_, err := f.Watch(WatchConfig{Pin: 17, Pull: logic.PullUp}, func(e logic.EdgeEvent) {
		got = append(got, e)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := f.Emit(17, logic.EdgeEvent{Level: logic.Low, Timestamp: time.Second})
	if n != 1 {
		t.Errorf("expected 1 handler called, got %d", n)
	}
	if n := f.Emit(18, logic.EdgeEvent{Level: logic.Low}); n != 0 {
		t.Errorf("expected no handler on other pin, got %d", n)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Level != logic.Low || got[0].Timestamp != time.Second {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestFakeDriverClose(t *testing.T) {
	f := NewFakeDriver()
	calls := 0
	sub, _ := f.Watch(WatchConfig{Pin: 17}, func(logic.EdgeEvent) { calls++ })

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.Emit(17, logic.EdgeEvent{Level: logic.Low})

	if calls != 0 {
		t.Errorf("closed subscription should not receive edges, got %d calls", calls)
	}
	if len(f.Open()) != 0 {
		t.Errorf("expected no open subscriptions, got %d", len(f.Open()))
	}
}

func TestFakeDriverWatchError(t *testing.T) {
	f := NewFakeDriver()
	f.WatchError = errors.New("line busy")

	_, err := f.Watch(WatchConfig{Pin: 17}, func(logic.EdgeEvent) {})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.Watches) != 1 {
		t.Errorf("failed watch should still be recorded, got %d", len(f.Watches))
	}
}

func TestSample(t *testing.T) {
	f := NewFakeDriver()
	f.CurrentLevel = logic.Low

	level, err := Sample(f, WatchConfig{Pin: 17, Pull: logic.PullUp})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if level != logic.Low {
		t.Errorf("expected LOW, got %s", level)
	}
	if len(f.Open()) != 0 {
		t.Error("Sample should close its subscription")
	}
}

func TestSampleWatchError(t *testing.T) {
	f := NewFakeDriver()
	f.WatchError = ErrUnsupported

	if _, err := Sample(f, WatchConfig{Pin: 17}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestLevelOf(t *testing.T) {
	if levelOf(0) != logic.Low {
		t.Error("0 should be LOW")
	}
	if levelOf(1) != logic.High {
		t.Error("1 should be HIGH")
	}
}
