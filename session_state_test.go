package goSession

import (
	"testing"
)

func TestSessionStateStartsLoading(t *testing.T) {
	s := newSessionState()
	if !s.IsLoading() || s.IsAuthenticated() {
		t.Fatalf("expected loading, got %s", s.Status())
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("no identity before init")
	}
}

func TestSessionStateTransitionsNotifyOnChange(t *testing.T) {
	s := newSessionState()

	var got []Status
	cancel := s.Subscribe(func(st Status) { got = append(got, st) })

	s.setAuthenticated(&Identity{ID: "u1"})
	s.setAuthenticated(&Identity{ID: "u2"})
	s.setUnauthenticated()
	s.setUnauthenticated()

	if len(got) != 2 || got[0] != StatusAuthenticated || got[1] != StatusUnauthenticated {
		t.Fatalf("unexpected notifications %v", got)
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("identity must be dropped when unauthenticated")
	}

	cancel()
	cancel()
	s.setAuthenticated(nil)
	if len(got) != 2 {
		t.Fatal("cancelled subscriber must not be notified")
	}
}

func TestSessionStateSubscribersInRegistrationOrder(t *testing.T) {
	s := newSessionState()

	var order []int
	for i := 0; i < 5; i++ {
		s.Subscribe(func(Status) { order = append(order, i) })
	}
	s.setUnauthenticated()

	for i, v := range order {
		if v != i {
			t.Fatalf("unexpected order %v", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("expected 5 notifications, got %d", len(order))
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusLoading:         "loading",
		StatusAuthenticated:   "authenticated",
		StatusUnauthenticated: "unauthenticated",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Fatalf("expected %q, got %q", want, st.String())
		}
	}
	if StateIdle.String() != "idle" || StateRefreshing.String() != "refreshing" {
		t.Fatal("unexpected coordinator state names")
	}
}
