package events

import (
	"sync"
	"testing"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	e := NewEmitter(WithSessionID("s1"))
	var mu sync.Mutex
	var got []Event
	e.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	e.Emit(Event{Type: TypeIteration, Iteration: 1})
	e.Emit(Event{Type: TypeToolFinished, ToolName: "http_get", ElapsedMs: 12})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].SessionID != "s1" || got[0].ID == "" {
		t.Fatalf("event not stamped: %+v", got[0])
	}
	if got[1].ToolName != "http_get" {
		t.Fatalf("tool name lost: %+v", got[1])
	}
}

func TestSubscribeTypeFilter(t *testing.T) {
	e := NewEmitter()
	var mu sync.Mutex
	count := 0
	e.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, TypeCheckpoint)

	e.Emit(Event{Type: TypeIteration})
	e.Emit(Event{Type: TypeCheckpoint})
	e.Emit(Event{Type: TypeToolStarted})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("count=%d want 1", count)
	}
}

func TestSubscribeCustomFilter(t *testing.T) {
	e := NewEmitter()
	var mu sync.Mutex
	count := 0
	e.SubscribeWithFilter(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, func(ev Event) bool { return ev.Iteration >= 3 })

	for i := 1; i <= 5; i++ {
		e.Emit(Event{Type: TypeIteration, Iteration: i})
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 3 {
		t.Fatalf("count=%d want 3", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	e := NewEmitter()
	id := e.Subscribe(func(Event) { t.Error("handler called after unsubscribe") })
	if !e.Unsubscribe(id) {
		t.Fatal("unsubscribe returned false")
	}
	if e.Unsubscribe(id) {
		t.Fatal("second unsubscribe returned true")
	}
	e.Emit(Event{Type: TypeIteration})
}

func TestBufferRing(t *testing.T) {
	e := NewEmitter(WithBufferSize(3))
	for i := 1; i <= 5; i++ {
		e.Emit(Event{Type: TypeIteration, Iteration: i})
	}
	buf := e.Buffer()
	if len(buf) != 3 {
		t.Fatalf("len=%d want 3", len(buf))
	}
	if buf[0].Iteration != 3 || buf[2].Iteration != 5 {
		t.Fatalf("ring kept wrong events: %d..%d", buf[0].Iteration, buf[2].Iteration)
	}
}

func TestBufferByType(t *testing.T) {
	e := NewEmitter()
	e.Emit(Event{Type: TypeIteration, Iteration: 1})
	e.Emit(Event{Type: TypeCheckpoint, Iteration: 5})
	e.Emit(Event{Type: TypeIteration, Iteration: 2})

	got := e.BufferByType(TypeCheckpoint)
	if len(got) != 1 || got[0].Iteration != 5 {
		t.Fatalf("got %+v want one checkpoint at iteration 5", got)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	e := NewEmitter()
	e.Subscribe(func(Event) { panic("boom") })
	var mu sync.Mutex
	delivered := false
	e.Subscribe(func(Event) {
		mu.Lock()
		delivered = true
		mu.Unlock()
	})

	e.Emit(Event{Type: TypeIteration})

	mu.Lock()
	defer mu.Unlock()
	if !delivered {
		t.Fatal("panic in one handler blocked another")
	}
}
