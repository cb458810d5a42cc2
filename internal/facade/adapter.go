package facade

import (
	"holdem/broker/internal/cards"
	"holdem/broker/internal/engine"
	"holdem/broker/internal/uiport"
)

// engineView adapts *engine.Engine to uiport.EngineView. It lives in facade
// rather than engine or uiport so neither of those packages has to import
// the other.
type engineView struct {
	e *engine.Engine
}

func (v engineView) Players() []uiport.PlayerView {
	players := v.e.Players()
	out := make([]uiport.PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, uiport.PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			Chips:      p.Chips,
			CurrentBet: p.CurrentBet,
			HasFolded:  p.HasFolded,
			IsAllIn:    p.IsAllIn,
		})
	}
	return out
}

func (v engineView) CommunityCards() []cards.Card { return v.e.CommunityCards() }
func (v engineView) Pot() int64                   { return v.e.Pot() }
func (v engineView) CurrentBet() int64            { return v.e.CurrentBet() }
func (v engineView) State() string                { return string(v.e.State()) }

func (v engineView) CurrentPlayer() (uiport.PlayerView, bool) {
	p, ok := v.e.CurrentPlayer()
	if !ok {
		return uiport.PlayerView{}, false
	}
	return uiport.PlayerView{
		ID:         p.ID,
		Name:       p.Name,
		Chips:      p.Chips,
		CurrentBet: p.CurrentBet,
		HasFolded:  p.HasFolded,
		IsAllIn:    p.IsAllIn,
	}, true
}
