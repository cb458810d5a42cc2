// Package uiport declares the narrow read-only view the façade exposes to a
// UI layer, and the UI-facing callback surface the façade drives. Declaring
// both here, rather than importing the engine package directly, keeps the
// engine and any UI implementation decoupled: the façade adapts
// *engine.Engine to EngineView, so neither package imports the other.
package uiport

import "holdem/broker/internal/cards"

// PlayerView is a read-only projection of a seat's state for display.
type PlayerView struct {
	ID         string
	Name       string
	Chips      int64
	CurrentBet int64
	HasFolded  bool
	IsAllIn    bool
}

// EngineView exposes the read accessors a UI needs without granting it any
// way to mutate engine state.
type EngineView interface {
	Players() []PlayerView
	CommunityCards() []cards.Card
	Pot() int64
	CurrentBet() int64
	State() string
	CurrentPlayer() (PlayerView, bool)
}

// UI is the callback surface a façade drives in response to engine events.
// Implementations must not block for long periods; ShowMessage in
// particular is used to surface ProtocolViolation rejections that never
// touched engine state.
type UI interface {
	ShowState(view EngineView)
	ShowMessage(message string)

	// GetPlayerAction requests an action from player given the current table
	// state. It is the synchronous counterpart to the PlayerAction messages a
	// transport-driven façade accepts: a direct-embedding UI (one that is not
	// going through a transport) answers the request and returns ok true; a
	// UI whose input arrives only as a message returns ok false, signalling
	// the caller to keep waiting on its message subscription instead.
	// action uses engine.ActionType's string values ("Fold", "Check", "Call",
	// "Bet", "Raise").
	GetPlayerAction(player PlayerView, view EngineView) (action string, amount int64, ok bool)
}
