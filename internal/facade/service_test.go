package facade

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"holdem/broker/internal/engine"
	"holdem/broker/internal/envelope"
	"holdem/broker/internal/transport"
	"holdem/broker/internal/uiport"
)

type recordingUI struct {
	mu       sync.Mutex
	messages []string
	states   int
}

func (r *recordingUI) ShowMessage(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingUI) ShowState(view uiport.EngineView) {
	r.mu.Lock()
	r.states++
	r.mu.Unlock()
}

func (r *recordingUI) GetPlayerAction(uiport.PlayerView, uiport.EngineView) (string, int64, bool) {
	return "", 0, false
}

func (r *recordingUI) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func newServiceWithUI(t *testing.T, ui uiport.UI) (*Service, *engine.Engine, *transport.Transport) {
	t.Helper()
	e, err := engine.NewEngine([]string{"seat-0", "seat-1"}, 1000, engine.WithRNG(rand.New(rand.NewSource(3))), engine.WithBlinds(5, 10))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	dir := transport.NewDirectory()
	tr := transport.New("table-1", dir)
	svc, err := New(e, tr, ui, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	return svc, e, tr
}

func newService(t *testing.T) (*Service, *engine.Engine, *transport.Transport) {
	t.Helper()
	return newServiceWithUI(t, nil)
}

func TestHandlePlayerActionAcceptsCurrentPlayer(t *testing.T) {
	svc, e, tr := newService(t)
	defer svc.Close()
	defer tr.Close()

	current, ok := e.CurrentPlayer()
	if !ok {
		t.Fatal("expected a current player")
	}

	var gotUpdate bool
	tr.Subscribe(transport.ByType(MessageTypeGameStateUpdated), func(envelope.Message) { gotUpdate = true })

	msg, err := envelope.NewBuilder().
		WithType(MessageTypePlayerAction).
		WithSource("conn-1").
		WithPayload(playerActionPayload{PlayerID: current.ID, Action: engine.ActionFold, Sequence: 1}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), msg)

	deadline := time.After(time.Second)
	for !gotUpdate {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for GameStateUpdated")
		default:
		}
	}
}

func TestHandlePlayerActionRejectsWrongSeat(t *testing.T) {
	svc, e, tr := newService(t)
	defer svc.Close()
	defer tr.Close()

	current, _ := e.CurrentPlayer()
	var wrongSeat string
	for _, p := range e.Players() {
		if p.ID != current.ID {
			wrongSeat = p.ID
		}
	}

	rejected := make(chan struct{})
	tr.Subscribe(transport.ByType(MessageTypeProtocolViolation), func(envelope.Message) { close(rejected) })

	msg, err := envelope.NewBuilder().
		WithType(MessageTypePlayerAction).
		WithSource("conn-1").
		WithPayload(playerActionPayload{PlayerID: wrongSeat, Action: engine.ActionCheck, Sequence: 1}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), msg)

	select {
	case <-rejected:
	case <-time.After(time.Second):
		t.Fatal("expected a ProtocolViolation for the wrong seat")
	}
}

func TestHandlePlayerActionRejectsStaleSequence(t *testing.T) {
	svc, e, tr := newService(t)
	defer svc.Close()
	defer tr.Close()

	current, _ := e.CurrentPlayer()
	msg, err := envelope.NewBuilder().
		WithType(MessageTypePlayerAction).
		WithSource("conn-1").
		WithPayload(playerActionPayload{PlayerID: current.ID, Action: engine.ActionFold, Sequence: 5}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), msg)

	rejected := make(chan struct{})
	tr.Subscribe(transport.ByType(MessageTypeProtocolViolation), func(envelope.Message) { close(rejected) })

	replay, err := envelope.NewBuilder().
		WithType(MessageTypePlayerAction).
		WithSource("conn-1").
		WithPayload(playerActionPayload{PlayerID: current.ID, Action: engine.ActionFold, Sequence: 5}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), replay)

	select {
	case <-rejected:
	case <-time.After(time.Second):
		t.Fatal("expected the replayed sequence to be rejected")
	}
}

func TestHandlePlayerActionDrivesUICallbacks(t *testing.T) {
	ui := &recordingUI{}
	svc, e, tr := newServiceWithUI(t, ui)
	defer svc.Close()
	defer tr.Close()

	if ui.states == 0 {
		t.Fatal("expected StartHand to have already published an initial state to the UI")
	}

	current, _ := e.CurrentPlayer()
	msg, err := envelope.NewBuilder().
		WithType(MessageTypePlayerAction).
		WithSource("conn-1").
		WithPayload(playerActionPayload{PlayerID: current.ID, Action: engine.ActionFold, Sequence: 1}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), msg)

	deadline := time.After(time.Second)
	for ui.states < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a second ShowState call")
		default:
		}
	}
	if got := ui.messageCount(); got != 0 {
		t.Fatalf("expected no ShowMessage calls for an accepted action, got %d", got)
	}
}

func TestStartHandMessageTriggersHandStartedAndPlayerTurn(t *testing.T) {
	e, err := engine.NewEngine([]string{"seat-0", "seat-1"}, 1000, engine.WithRNG(rand.New(rand.NewSource(3))), engine.WithBlinds(5, 10))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	dir := transport.NewDirectory()
	tr := transport.New("table-1", dir)
	svc, err := New(e, tr, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()
	defer tr.Close()

	started := make(chan struct{})
	turn := make(chan struct{})
	tr.Subscribe(transport.ByType(MessageTypeHandStarted), func(envelope.Message) { close(started) })
	tr.Subscribe(transport.ByType(MessageTypePlayerTurn), func(envelope.Message) { close(turn) })

	msg, err := envelope.NewBuilder().WithType(MessageTypeStartHand).WithSource("conn-1").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), msg)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("expected a HandStarted event from a StartHand message")
	}
	select {
	case <-turn:
	case <-time.After(time.Second):
		t.Fatal("expected a PlayerTurn event once the hand is dealt")
	}
	if _, ok := e.CurrentPlayer(); !ok {
		t.Fatal("expected StartHand message to actually start the hand")
	}
}

func TestFoldingHeadsUpPublishesHandComplete(t *testing.T) {
	svc, e, tr := newService(t)
	defer svc.Close()
	defer tr.Close()

	current, _ := e.CurrentPlayer()
	complete := make(chan struct{})
	tr.Subscribe(transport.ByType(MessageTypeHandComplete), func(envelope.Message) { close(complete) })

	msg, err := envelope.NewBuilder().
		WithType(MessageTypePlayerAction).
		WithSource("conn-1").
		WithPayload(playerActionPayload{PlayerID: current.ID, Action: engine.ActionFold, Sequence: 1}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tr.Publish(context.Background(), msg)

	select {
	case <-complete:
	case <-time.After(time.Second):
		t.Fatal("expected folding heads-up to publish HandComplete")
	}
}

func TestServiceSatisfiesUIPortAsANoopTarget(t *testing.T) {
	svc, _, tr := newService(t)
	defer svc.Close()
	defer tr.Close()

	var ui uiport.UI = svc
	ui.ShowMessage("ignored")
	ui.ShowState(nil)
	if _, _, ok := ui.GetPlayerAction(uiport.PlayerView{}, nil); ok {
		t.Fatal("expected the façade's GetPlayerAction to report ok false")
	}
}

func TestNewRejectsNilEngine(t *testing.T) {
	dir := transport.NewDirectory()
	tr := transport.New("table-1", dir)
	defer tr.Close()
	if _, err := New(nil, tr, nil, nil); err != errNilEngine {
		t.Fatalf("expected errNilEngine, got %v", err)
	}
}
