package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"holdem/broker/internal/envelope"
)

func buildMessage(t *testing.T, messageType, source string) envelope.Message {
	t.Helper()
	msg, err := envelope.NewBuilder().WithType(messageType).WithSource(source).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return msg
}

func TestPublishDeliversToMatchingSubscribersOnly(t *testing.T) {
	dir := NewDirectory()
	tr := New("table-1", dir)
	defer tr.Close()

	var gotTyped, gotAll int
	var mu sync.Mutex
	tr.Subscribe(ByType("PlayerAction"), func(envelope.Message) {
		mu.Lock()
		gotTyped++
		mu.Unlock()
	})
	tr.Subscribe(All(), func(envelope.Message) {
		mu.Lock()
		gotAll++
		mu.Unlock()
	})

	msg := buildMessage(t, "PlayerAction", "seat-1")
	if !tr.Publish(context.Background(), msg) {
		t.Fatal("expected Publish to report success")
	}
	other := buildMessage(t, "Ping", "seat-1")
	tr.Publish(context.Background(), other)

	mu.Lock()
	defer mu.Unlock()
	if gotTyped != 1 {
		t.Fatalf("expected typed subscriber to see 1 message, got %d", gotTyped)
	}
	if gotAll != 2 {
		t.Fatalf("expected all-subscriber to see 2 messages, got %d", gotAll)
	}
}

func TestSendDeliversAcrossTransports(t *testing.T) {
	dir := NewDirectory()
	t1 := New("t1", dir, WithAckTimeout(time.Second))
	t2 := New("t2", dir)
	defer t1.Close()
	defer t2.Close()

	var got envelope.Message
	done := make(chan struct{})
	t2.Subscribe(ByType("Ping"), func(msg envelope.Message) {
		got = msg
		close(done)
	})

	msg, err := envelope.NewBuilder().
		WithType("Ping").
		WithSource(t1.ID()).
		WithRequireAcknowledgement(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !t1.Send(context.Background(), t2.ID(), msg) {
		t.Fatal("expected Send to report acknowledgement")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for t2's handler")
	}
	if got.MessageID != msg.MessageID {
		t.Fatalf("expected t2 to receive message %s, got %s", msg.MessageID, got.MessageID)
	}
}

func TestSendWithoutAcknowledgementReturnsImmediately(t *testing.T) {
	dir := NewDirectory()
	t1 := New("t1", dir)
	t2 := New("t2", dir, WithAckTimeout(20*time.Millisecond))
	defer t1.Close()
	defer t2.Close()

	blocked := make(chan struct{})
	t2.Subscribe(All(), func(envelope.Message) {
		<-blocked
	})
	defer close(blocked)

	msg := buildMessage(t, "Ping", t1.ID())
	if !t1.Send(context.Background(), t2.ID(), msg) {
		t.Fatal("expected Send without RequireAcknowledgement to report success without waiting")
	}
}

func TestSendReportsAckTimeout(t *testing.T) {
	dir := NewDirectory()
	t1 := New("t1", dir, WithAckTimeout(20*time.Millisecond))
	t2 := New("t2", dir)
	defer t1.Close()
	defer t2.Close()

	// Subscriber never returns within the ack timeout, so the auto-ack never
	// fires in time.
	block := make(chan struct{})
	t2.Subscribe(All(), func(envelope.Message) { <-block })
	defer close(block)

	msg, err := envelope.NewBuilder().
		WithType("PlayerAction").
		WithSource(t1.ID()).
		WithRequireAcknowledgement(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if t1.Send(context.Background(), t2.ID(), msg) {
		t.Fatal("expected Send to report an ack timeout")
	}
}

func TestSendReportsFalseForUnknownDestination(t *testing.T) {
	dir := NewDirectory()
	t1 := New("t1", dir)
	defer t1.Close()

	msg := buildMessage(t, "Ping", t1.ID())
	if t1.Send(context.Background(), "nowhere", msg) {
		t.Fatal("expected Send to report false for an unknown destination")
	}
}

func TestDeliverLocalAutoAcksPositivelyWhenHandlersSucceed(t *testing.T) {
	dir := NewDirectory()
	t1 := New("t1", dir, WithAckTimeout(time.Second))
	t2 := New("t2", dir)
	defer t1.Close()
	defer t2.Close()

	t2.Subscribe(All(), func(envelope.Message) {})

	msg, err := envelope.NewBuilder().
		WithType("Ping").
		WithSource(t1.ID()).
		WithRequireAcknowledgement(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !t1.Send(context.Background(), t2.ID(), msg) {
		t.Fatal("expected the receiver to auto-ack positively once its handler returns")
	}
}

func TestDeliverLocalAutoAcksNegativelyWhenAHandlerPanics(t *testing.T) {
	dir := NewDirectory()
	t1 := New("t1", dir, WithAckTimeout(20*time.Millisecond))
	t2 := New("t2", dir)
	defer t1.Close()
	defer t2.Close()

	t2.Subscribe(All(), func(envelope.Message) { panic("boom") })

	msg, err := envelope.NewBuilder().
		WithType("Ping").
		WithSource(t1.ID()).
		WithRequireAcknowledgement(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if t1.Send(context.Background(), t2.ID(), msg) {
		t.Fatal("expected a panicking handler to turn the auto-ack negative")
	}
}

func TestAcknowledgeIsSingleConsumer(t *testing.T) {
	dir := NewDirectory()
	tr := New("table-1", dir)
	defer tr.Close()

	done := make(chan struct{})
	tr.Subscribe(All(), func(msg envelope.Message) {
		close(done)
	})
	msg := buildMessage(t, "Ping", "seat-1")
	go tr.Publish(context.Background(), msg)
	<-done

	if tr.Acknowledge(msg.MessageID) {
		t.Fatal("expected Acknowledge to report false when no Send is waiting on this message id")
	}
}

func TestBroadcastExcludesSelf(t *testing.T) {
	dir := NewDirectory()
	a := New("a", dir)
	b := New("b", dir)
	c := New("c", dir)
	defer a.Close()
	defer b.Close()
	defer c.Close()

	var mu sync.Mutex
	seen := make(map[string]bool)
	b.Subscribe(All(), func(envelope.Message) { mu.Lock(); seen["b"] = true; mu.Unlock() })
	c.Subscribe(All(), func(envelope.Message) { mu.Lock(); seen["c"] = true; mu.Unlock() })
	a.Subscribe(All(), func(envelope.Message) { mu.Lock(); seen["a"] = true; mu.Unlock() })

	msg := buildMessage(t, "GameStateUpdated", "a")
	if !a.Broadcast(context.Background(), msg) {
		t.Fatal("expected Broadcast to report success")
	}

	mu.Lock()
	defer mu.Unlock()
	if !seen["b"] || !seen["c"] {
		t.Fatalf("expected siblings to receive the broadcast, got %#v", seen)
	}
	if seen["a"] {
		t.Fatal("expected the originating transport to be excluded from its own broadcast")
	}
}

func TestConnectResolvesInprocTransports(t *testing.T) {
	dir := NewDirectory()
	first, err := Connect("inproc://lobby", dir)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	second, err := Connect("inproc://lobby", dir)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if first != second {
		t.Fatal("expected Connect to return the same transport for the same id")
	}
	defer first.Close()

	if _, err := Connect("tcp://example.com:1234", dir); err != ErrUnsupportedScheme {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestHandlerPanicDoesNotCrashDelivery(t *testing.T) {
	dir := NewDirectory()
	tr := New("table-1", dir)
	defer tr.Close()

	var ranSecond bool
	tr.Subscribe(All(), func(envelope.Message) { panic("boom") })
	done := make(chan struct{})
	tr.Subscribe(All(), func(envelope.Message) {
		ranSecond = true
		close(done)
	})

	tr.Publish(context.Background(), buildMessage(t, "Ping", "seat-1"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second handler")
	}
	if !ranSecond {
		t.Fatal("expected the non-panicking handler to still run")
	}
}
