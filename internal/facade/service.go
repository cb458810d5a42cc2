// Package facade bridges a messaging transport to a game engine: it decodes
// inbound command messages, enforces turn order and connection sequencing
// before the engine ever sees an action, applies accepted actions, and
// publishes resulting state as outbound events. It also implements
// uiport.UI so a UI layer can be driven from the same event stream without
// either side importing the engine directly.
package facade

import (
	"context"
	"errors"

	"holdem/broker/internal/engine"
	"holdem/broker/internal/envelope"
	"holdem/broker/internal/logging"
	"holdem/broker/internal/transport"
	"holdem/broker/internal/uiport"
)

// Message types exchanged over the transport for a table. StartHand is a
// command accepted by the façade; the rest are events it publishes.
const (
	MessageTypeStartHand         = "StartHand"
	MessageTypePlayerAction      = "PlayerAction"
	MessageTypeGameStateUpdated  = "GameStateUpdated"
	MessageTypeHandStarted       = "HandStarted"
	MessageTypePlayerTurn        = "PlayerTurn"
	MessageTypeHandComplete      = "HandComplete"
	MessageTypeProtocolViolation = "ProtocolViolation"
)

// playerActionPayload is the JSON shape carried by a PlayerAction message.
type playerActionPayload struct {
	PlayerID string            `json:"player_id"`
	Action   engine.ActionType `json:"action"`
	Amount   int64             `json:"amount"`
	Sequence uint64            `json:"sequence"`
}

// Service owns a single table: an engine instance, the transport it listens
// and publishes on, and any UI driven from the same events.
type Service struct {
	engine    *engine.Engine
	transport *transport.Transport
	ui        uiport.UI
	gate      *actionGate
	logger    *logging.Logger

	subID        string
	startHandSub string
}

// New wires engine e to transport t. If ui is non-nil it receives
// ShowState/ShowMessage callbacks alongside the normal event publication.
func New(e *engine.Engine, t *transport.Transport, ui uiport.UI, logger *logging.Logger) (*Service, error) {
	if err := validate(e, t); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.L()
	}
	s := &Service{
		engine:    e,
		transport: t,
		ui:        ui,
		gate:      newActionGate(),
		logger:    logger,
	}
	s.subID = t.Subscribe(transport.ByType(MessageTypePlayerAction), s.handlePlayerAction)
	s.startHandSub = t.Subscribe(transport.ByType(MessageTypeStartHand), s.handleStartHand)
	return s, nil
}

// Close unsubscribes the service from its transport.
func (s *Service) Close() {
	if s.transport != nil {
		s.transport.Unsubscribe(s.subID)
		s.transport.Unsubscribe(s.startHandSub)
	}
}

// StartHand begins a new hand in-process and publishes the resulting
// HandStarted, GameStateUpdated, and PlayerTurn events.
func (s *Service) StartHand() error {
	if err := s.engine.StartHand(); err != nil {
		return err
	}
	s.publishHandStarted("")
	s.publishState("")
	return nil
}

func (s *Service) handleStartHand(msg envelope.Message) {
	if err := s.engine.StartHand(); err != nil {
		s.reject(msg, err.Error())
		return
	}
	s.publishHandStarted(msg.MessageID)
	s.publishState(msg.MessageID)
}

func (s *Service) handlePlayerAction(msg envelope.Message) {
	var payload playerActionPayload
	if err := msg.DecodePayload(&payload); err != nil {
		s.reject(msg, "malformed PlayerAction payload: "+err.Error())
		return
	}

	if !s.gate.Admit(msg.Source, payload.Sequence) {
		s.reject(msg, "stale or duplicate action sequence")
		return
	}

	current, ok := s.engine.CurrentPlayer()
	if !ok || current.ID != payload.PlayerID {
		s.reject(msg, "action received for a seat that is not currently acting")
		return
	}

	if err := s.engine.ProcessPlayerAction(payload.PlayerID, payload.Action, payload.Amount); err != nil {
		s.reject(msg, err.Error())
		return
	}

	s.publishState(msg.MessageID)
}

func (s *Service) reject(msg envelope.Message, reason string) {
	if s.ui != nil {
		s.ui.ShowMessage(reason)
	}
	out, err := envelope.NewBuilder().
		WithType(MessageTypeProtocolViolation).
		WithSource(s.transport.ID()).
		WithDestination(msg.Source).
		WithCorrelationID(msg.MessageID).
		WithPayload(map[string]string{"reason": reason}).
		Build()
	if err != nil {
		s.logger.Error("failed to build ProtocolViolation message", logging.Error(err))
		return
	}
	s.transport.Publish(context.Background(), out)
}

func (s *Service) publishState(correlationID string) {
	view := engineView{e: s.engine}
	if s.ui != nil {
		s.ui.ShowState(view)
	}
	out, err := envelope.NewBuilder().
		WithType(MessageTypeGameStateUpdated).
		WithSource(s.transport.ID()).
		WithCorrelationID(correlationID).
		WithPayload(stateSnapshot(view)).
		Build()
	if err != nil {
		s.logger.Error("failed to build GameStateUpdated message", logging.Error(err))
		return
	}
	s.transport.Publish(context.Background(), out)

	if view.State() == string(engine.HandComplete) {
		s.publishHandComplete(correlationID, view)
		return
	}
	if current, ok := view.CurrentPlayer(); ok {
		s.publishPlayerTurn(correlationID, current)
	}
}

// publishHandStarted announces that a new hand has begun, distinct from the
// generic GameStateUpdated event every action also produces.
func (s *Service) publishHandStarted(correlationID string) {
	out, err := envelope.NewBuilder().
		WithType(MessageTypeHandStarted).
		WithSource(s.transport.ID()).
		WithCorrelationID(correlationID).
		WithPayload(stateSnapshot(engineView{e: s.engine})).
		Build()
	if err != nil {
		s.logger.Error("failed to build HandStarted message", logging.Error(err))
		return
	}
	s.transport.Publish(context.Background(), out)
}

// publishPlayerTurn announces which seat the engine is now waiting on.
func (s *Service) publishPlayerTurn(correlationID string, current uiport.PlayerView) {
	out, err := envelope.NewBuilder().
		WithType(MessageTypePlayerTurn).
		WithSource(s.transport.ID()).
		WithCorrelationID(correlationID).
		WithPayload(map[string]string{"player_id": current.ID}).
		Build()
	if err != nil {
		s.logger.Error("failed to build PlayerTurn message", logging.Error(err))
		return
	}
	s.transport.Publish(context.Background(), out)
}

// publishHandComplete announces that the hand has reached showdown/payout
// and no further actions will be accepted until the next StartHand.
func (s *Service) publishHandComplete(correlationID string, view engineView) {
	out, err := envelope.NewBuilder().
		WithType(MessageTypeHandComplete).
		WithSource(s.transport.ID()).
		WithCorrelationID(correlationID).
		WithPayload(stateSnapshot(view)).
		Build()
	if err != nil {
		s.logger.Error("failed to build HandComplete message", logging.Error(err))
		return
	}
	s.transport.Publish(context.Background(), out)
}

// ShowState satisfies uiport.UI so the façade itself can stand in for a UI
// driven by another façade or test harness. The façade's own state delivery
// already happens through publishState, so this is a no-op.
func (s *Service) ShowState(uiport.EngineView) {}

// ShowMessage satisfies uiport.UI for the same reason as ShowState.
func (s *Service) ShowMessage(string) {}

// GetPlayerAction satisfies uiport.UI's three-operation contract. The
// façade always takes player actions from its transport subscription, never
// from a direct synchronous call, so it reports ok false.
func (s *Service) GetPlayerAction(uiport.PlayerView, uiport.EngineView) (string, int64, bool) {
	return "", 0, false
}

func stateSnapshot(view engineView) map[string]any {
	currentPlayerID := ""
	if p, ok := view.CurrentPlayer(); ok {
		currentPlayerID = p.ID
	}
	return map[string]any{
		"state":          view.State(),
		"pot":            view.Pot(),
		"current_bet":    view.CurrentBet(),
		"players":        view.Players(),
		"current_player": currentPlayerID,
	}
}

var errNilEngine = errors.New("facade: engine must not be nil")

func validate(e *engine.Engine, t *transport.Transport) error {
	if e == nil {
		return errNilEngine
	}
	if t == nil {
		return errors.New("facade: transport must not be nil")
	}
	return nil
}
