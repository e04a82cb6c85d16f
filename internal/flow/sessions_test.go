package flow

import (
	"testing"
	"time"
)

func TestSessionsCreateAndAcquire(t *testing.T) {
	s := NewSessions()
	sess, release := s.Create()
	if sess.ID == "" {
		t.Fatal("Expected a session id")
	}
	release()

	got, release, err := s.Acquire(sess.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer release()
	if got != sess {
		t.Error("Expected the same session back")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 live session, got %d", s.Len())
	}
}

func TestSessionsAcquireUnknown(t *testing.T) {
	s := NewSessions()
	if _, _, err := s.Acquire("nope"); err == nil {
		t.Error("Expected an error for an unknown session")
	}
}

func TestSessionsSerializeTurns(t *testing.T) {
	s := NewSessions()
	sess, release := s.Create()
	id := sess.ID
	release()

	// The second acquire must wait for the first release: interleaved turns
	// on one session would corrupt the turn counters.
	_, release1, err := s.Acquire(id)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_, release2, err := s.Acquire(id)
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
			return
		}
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("Expected the second acquire to block while the first turn holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	<-acquired
}
