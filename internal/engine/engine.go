// Package engine implements the Texas Hold'em betting round state machine:
// dealing, blinds, turn order, betting validation, phase advancement, and
// showdown with pot distribution.
package engine

import (
	"errors"
	"fmt"
	"math/rand"

	"holdem/broker/internal/cards"
	"holdem/broker/internal/handeval"
	"holdem/broker/internal/logging"
)

var (
	// ErrProtocolViolation is returned when an action arrives out of turn or
	// otherwise violates the betting protocol without mutating engine state.
	ErrProtocolViolation = errors.New("engine: protocol violation")
	// ErrHandNotInProgress is returned by StartHand when a new hand cannot be
	// started: one is already under way, or fewer than two players have chips.
	ErrHandNotInProgress = errors.New("engine: hand not in progress")
	// ErrInvalidPlayerCount is returned by NewEngine when the player list
	// falls outside the table's configured bounds.
	ErrInvalidPlayerCount = errors.New("engine: invalid player count")
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithBlinds overrides the default small/big blind amounts.
func WithBlinds(small, big int64) Option {
	return func(e *Engine) {
		if small > 0 && big > 0 {
			e.smallBlind = small
			e.bigBlind = big
		}
	}
}

// WithMaxBet bounds the size of any single bet or raise.
func WithMaxBet(maxBet int64) Option {
	return func(e *Engine) {
		if maxBet > 0 {
			e.maxBet = maxBet
		}
	}
}

// WithMaxTableLimit bounds the chip stack a player may sit down with.
func WithMaxTableLimit(limit int64) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.maxTableLimit = limit
		}
	}
}

// WithMaxPlayers overrides the default seat cap.
func WithMaxPlayers(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxPlayers = max
		}
	}
}

// WithRNG injects the random source used to shuffle the deck. Tests should
// pass a seeded *rand.Rand for determinism.
func WithRNG(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

const (
	defaultSmallBlind    = 5
	defaultBigBlind      = 10
	defaultMaxBet        = 1_000_000
	defaultMaxTableLimit = 1_000_000
	defaultMaxPlayers    = 9
)

// Engine owns the betting state machine for a single table. It has no
// internal mutex: the spec's concurrency model makes the façade the single
// writer, so concurrent access from multiple goroutines is the façade's
// responsibility, not the engine's.
type Engine struct {
	players     []*Player
	dealerIndex int
	currentIdx  int

	pot        int64
	currentBet int64

	deck           *cards.Deck
	communityCards []cards.Card

	state GameState

	smallBlind    int64
	bigBlind      int64
	maxBet        int64
	maxTableLimit int64
	maxPlayers    int

	rng    *rand.Rand
	logger *logging.Logger

	handComplete bool
	lastWinners  []string
	lastPayouts  map[string]int64
}

// NewEngine seats the given player names with startingChips each and
// returns a table ready for StartHand. Names must number between 2 and the
// configured max player count; a stack above the configured max table limit
// is capped to that limit with a warning logged, rather than rejected.
func NewEngine(names []string, startingChips int64, opts ...Option) (*Engine, error) {
	e := &Engine{
		state:         WaitingToStart,
		smallBlind:    defaultSmallBlind,
		bigBlind:      defaultBigBlind,
		maxBet:        defaultMaxBet,
		maxTableLimit: defaultMaxTableLimit,
		maxPlayers:    defaultMaxPlayers,
		rng:           rand.New(rand.NewSource(1)),
		logger:        logging.L(),
		dealerIndex:   -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if len(names) < 2 || len(names) > e.maxPlayers {
		return nil, fmt.Errorf("%w: got %d players, table allows 2-%d", ErrInvalidPlayerCount, len(names), e.maxPlayers)
	}

	chips := startingChips
	if e.maxTableLimit > 0 && chips > e.maxTableLimit {
		e.logger.Warn("capping starting chips to table limit",
			logging.Int64("requested", chips),
			logging.Int64("max_table_limit", e.maxTableLimit),
		)
		chips = e.maxTableLimit
	}

	for i, name := range names {
		e.players = append(e.players, &Player{
			ID:    fmt.Sprintf("seat-%d", i),
			Name:  name,
			Chips: chips,
		})
	}
	return e, nil
}

// Players returns the current seats in dealing order.
func (e *Engine) Players() []*Player { return e.players }

// CommunityCards returns the cards dealt to the board so far.
func (e *Engine) CommunityCards() []cards.Card { return e.communityCards }

// Pot returns the total chips currently at stake.
func (e *Engine) Pot() int64 { return e.pot }

// CurrentBet returns the amount every active player must match to stay in
// the hand.
func (e *Engine) CurrentBet() int64 { return e.currentBet }

// State returns the current phase of the hand.
func (e *Engine) State() GameState { return e.state }

// CurrentPlayer returns the player whose turn it is, if any.
func (e *Engine) CurrentPlayer() (*Player, bool) {
	if !e.state.isBettingRound() || e.currentIdx < 0 || e.currentIdx >= len(e.players) {
		return nil, false
	}
	return e.players[e.currentIdx], true
}

// LastWinners reports the winning player ids from the most recently
// completed hand.
func (e *Engine) LastWinners() []string { return e.lastWinners }

// LastPayouts reports the chip amounts awarded to each winner in the most
// recently completed hand.
func (e *Engine) LastPayouts() map[string]int64 { return e.lastPayouts }

// StartHand deals a new hand: it rotates the dealer button, shuffles a fresh
// deck, deals two hole cards per active player, posts blinds, and sets the
// first player to act at dealer+3 (unconditionally, independent of table
// size, per the betting order rule).
func (e *Engine) StartHand() error {
	if e.state != WaitingToStart && e.state != HandComplete {
		return fmt.Errorf("%w: cannot start a hand from state %s", ErrHandNotInProgress, e.state)
	}

	seated := 0
	for _, p := range e.players {
		if p.Chips > 0 {
			seated++
		}
	}
	if seated < 2 {
		return fmt.Errorf("%w: fewer than 2 players have chips", ErrHandNotInProgress)
	}

	for _, p := range e.players {
		p.resetForHand()
	}
	e.pot = 0
	e.currentBet = 0
	e.communityCards = nil
	e.handComplete = false
	e.lastWinners = nil
	e.lastPayouts = nil

	e.deck = cards.NewDeck(e.rng)
	e.deck.Shuffle()

	n := len(e.players)
	e.dealerIndex = (e.dealerIndex + 1) % n

	for range [2]struct{}{} {
		for i := 0; i < n; i++ {
			p := e.players[i]
			if !p.IsActive {
				continue
			}
			card, err := e.deck.Draw()
			if err != nil {
				return err
			}
			p.HoleCards = append(p.HoleCards, card)
		}
	}

	sbIdx := (e.dealerIndex + 1) % n
	bbIdx := (e.dealerIndex + 2) % n
	e.postBlind(sbIdx, e.smallBlind)
	e.postBlind(bbIdx, e.bigBlind)
	e.currentBet = e.bigBlind

	e.currentIdx = (e.dealerIndex + 3) % n
	e.state = PreFlop
	if !e.players[e.currentIdx].canAct() {
		e.advanceToNextActor()
	}
	return nil
}

func (e *Engine) postBlind(idx int, amount int64) {
	p := e.players[idx]
	if !p.IsActive {
		return
	}
	posted := amount
	if posted >= p.Chips {
		posted = p.Chips
		p.IsAllIn = true
	}
	p.Chips -= posted
	p.CurrentBet += posted
	e.pot += posted
}

// ProcessPlayerAction validates and applies a player's action. It returns
// ErrProtocolViolation, wrapped with the specific reason, for any action
// that arrives for the wrong seat or otherwise breaks the betting protocol;
// engine state is left unchanged in that case.
func (e *Engine) ProcessPlayerAction(playerID string, action ActionType, amount int64) error {
	if !e.state.isBettingRound() {
		return fmt.Errorf("%w: no betting round in progress (state %s)", ErrProtocolViolation, e.state)
	}
	current, ok := e.CurrentPlayer()
	if !ok || current.ID != playerID {
		return fmt.Errorf("%w: it is not %s's turn", ErrProtocolViolation, playerID)
	}
	if !current.canAct() {
		return fmt.Errorf("%w: %s cannot act", ErrProtocolViolation, playerID)
	}

	switch action {
	case ActionFold:
		current.HasFolded = true
		current.HasActed = true
	case ActionCheck:
		if current.CurrentBet != e.currentBet {
			return fmt.Errorf("%w: cannot check while facing a bet", ErrProtocolViolation)
		}
		current.HasActed = true
	case ActionCall:
		e.applyChips(current, e.currentBet-current.CurrentBet)
		current.HasActed = true
	case ActionBet, ActionRaise:
		if amount <= e.currentBet {
			return fmt.Errorf("%w: %s amount must exceed current bet", ErrProtocolViolation, action)
		}
		if amount < e.currentBet+e.bigBlind {
			return fmt.Errorf("%w: %s amount %d is below the minimum raise of %d", ErrProtocolViolation, action, amount, e.currentBet+e.bigBlind)
		}
		if e.maxBet > 0 && amount > e.maxBet {
			return fmt.Errorf("%w: amount %d exceeds max bet %d", ErrProtocolViolation, amount, e.maxBet)
		}
		delta := amount - current.CurrentBet
		e.applyChips(current, delta)
		e.currentBet = current.CurrentBet
		current.HasActed = true
		for _, p := range e.players {
			if p.ID != current.ID && p.canAct() {
				p.HasActed = false
			}
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrProtocolViolation, action)
	}

	e.advanceRound()
	return nil
}

func (e *Engine) applyChips(p *Player, amount int64) {
	if amount <= 0 {
		return
	}
	if amount >= p.Chips {
		amount = p.Chips
		p.IsAllIn = true
	}
	p.Chips -= amount
	p.CurrentBet += amount
	e.pot += amount
}

// advanceRound moves the turn to the next player, or advances the hand's
// phase (and eventually to showdown) once every still-contesting player has
// acted and matched the current bet.
func (e *Engine) advanceRound() {
	remaining := e.activePlayers()
	if len(remaining) <= 1 {
		e.completeByFold(remaining)
		return
	}

	if e.bettingRoundComplete() {
		e.progressPhase()
		return
	}

	e.advanceToNextActor()
}

func (e *Engine) activePlayers() []*Player {
	out := make([]*Player, 0, len(e.players))
	for _, p := range e.players {
		if p.IsActive && !p.HasFolded {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) bettingRoundComplete() bool {
	for _, p := range e.players {
		if !p.canAct() {
			continue
		}
		if !p.HasActed || p.CurrentBet != e.currentBet {
			return false
		}
	}
	return true
}

func (e *Engine) advanceToNextActor() {
	n := len(e.players)
	for i := 1; i <= n; i++ {
		idx := (e.currentIdx + i) % n
		if e.players[idx].canAct() {
			e.currentIdx = idx
			return
		}
	}
	// No one left who can act: force the round forward.
	e.progressPhase()
}

func (e *Engine) completeByFold(remaining []*Player) {
	winnerID := ""
	if len(remaining) == 1 {
		winnerID = remaining[0].ID
	}
	if winnerID != "" {
		remaining[0].Chips += e.pot
		e.lastWinners = []string{winnerID}
		e.lastPayouts = map[string]int64{winnerID: e.pot}
	}
	e.pot = 0
	e.state = HandComplete
	e.currentIdx = -1
}

func (e *Engine) progressPhase() {
	for _, p := range e.players {
		p.resetForBettingRound()
	}
	e.currentBet = 0

	switch e.state {
	case PreFlop:
		e.burnAndDeal(3)
		e.state = Flop
	case Flop:
		e.burnAndDeal(1)
		e.state = Turn
	case Turn:
		e.burnAndDeal(1)
		e.state = River
	case River:
		e.state = Showdown
		e.runShowdown()
		return
	default:
		return
	}

	n := len(e.players)
	e.currentIdx = (e.dealerIndex + 1) % n
	if !e.players[e.currentIdx].canAct() {
		e.advanceToNextActor()
	}
}

func (e *Engine) burnAndDeal(count int) {
	if e.deck == nil {
		return
	}
	if _, err := e.deck.Draw(); err != nil {
		return
	}
	for i := 0; i < count; i++ {
		card, err := e.deck.Draw()
		if err != nil {
			return
		}
		e.communityCards = append(e.communityCards, card)
	}
}

func (e *Engine) runShowdown() {
	contenders := e.activePlayers()
	hands := make(map[string][]cards.Card, len(contenders))
	for _, p := range contenders {
		hands[p.ID] = append(append([]cards.Card(nil), p.HoleCards...), e.communityCards...)
	}

	winners, err := handeval.DetermineWinners(hands)
	if err != nil || len(winners) == 0 {
		e.state = HandComplete
		return
	}

	seatOrder := make([]string, len(e.players))
	for i, p := range e.players {
		seatOrder[i] = p.ID
	}
	payouts := splitPot(e.pot, winners, seatOrder, e.dealerIndex)
	for _, p := range e.players {
		if amount, ok := payouts[p.ID]; ok {
			p.Chips += amount
		}
	}

	e.lastWinners = winners
	e.lastPayouts = payouts
	e.pot = 0
	e.state = HandComplete
	e.currentIdx = -1
}
