package notify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMultiplexer(t *testing.T) {
	s, m := NewMultiplexerSender[int]("test")
	defer s.Close()
	a := make(chan int, 8)
	b := make(chan int, 8)
	m.Subscribe("a", a)
	m.Subscribe("b", b)
	s.Send(1)
	s.Send(2)
	got := []int{<-a, <-a, <-b, <-b}
	if diff := cmp.Diff([]int{1, 2, 1, 2}, got); diff != "" {
		t.Fatalf("received: %s", diff)
	}

	m.Unsubscribe(a)
	s.Send(3)
	if v := m.Current(); v != 3 {
		t.Fatalf("current: expected 3, got %d", v)
	}
	if v := <-b; v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
	select {
	case v := <-a:
		t.Fatalf("unsubscribed channel received %d", v)
	default:
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	_, m := NewMultiplexerSender[int]("test")
	c := make(chan int)
	m.Subscribe("c", c)
	m.Unsubscribe(c)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	m.Unsubscribe(c)
}
