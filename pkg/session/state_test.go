package session

import (
	"testing"
)

func TestStateCell(t *testing.T) {
	var c StateCell

	if st := c.Get(); st.State != StateNew {
		t.Fatalf("initial state = %s", st.State)
	}

	first, _ := c.Subscribe()
	second, unsubscribe := c.Subscribe()

	c.Set(Status{State: StateChecking})
	unsubscribe()
	c.Set(Status{State: StateConnected})

	if st := <-first; st.State != StateChecking {
		t.Fatalf("first = %s", st.State)
	}

	if st := <-first; st.State != StateConnected {
		t.Fatalf("first = %s", st.State)
	}

	if st := <-second; st.State != StateChecking {
		t.Fatalf("second = %s", st.State)
	}

	if _, ok := <-second; ok {
		t.Fatal("second still subscribed")
	}

	c.Close(Status{State: StateClosed})
	c.Set(Status{State: StateConnected})

	if st := <-first; st.State != StateClosed {
		t.Fatalf("first = %s", st.State)
	}

	if _, ok := <-first; ok {
		t.Fatal("first not released on close")
	}

	if st := c.Get(); st.State != StateClosed {
		t.Fatalf("state after close = %s", st.State)
	}

	late, _ := c.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("subscription after close not released")
	}
}

func TestStateCellSlowSubscriber(t *testing.T) {
	var c StateCell

	ch, _ := c.Subscribe()

	for i := 0; i < subscriberBuffer*2; i++ {
		c.Set(Status{State: StateChecking})
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestConnectionStateString(t *testing.T) {
	if s := StateConnected.String(); s != "connected" {
		t.Fatalf("String() = %s", s)
	}

	if s := ConnectionState(42).String(); s != "unknown" {
		t.Fatalf("String() = %s", s)
	}
}
