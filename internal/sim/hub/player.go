package hub

import "tpahub/internal/protocol"

type Vec3 struct{ X, Y, Z int }

type Player struct {
	ID   string
	Name string
	Pos  Vec3

	Events []protocol.Event

	rl map[string]*rateWindow
}

func (p *Player) AddEvent(e protocol.Event) {
	p.Events = append(p.Events, e)
}

func (p *Player) TakeEvents() []protocol.Event {
	ev := p.Events
	p.Events = nil
	return ev
}

type rateWindow struct {
	StartTick uint64
	Window    uint64
	Max       int
	Count     int
}

// RateLimitAllow enforces a fixed-window limit per command kind. A max of
// zero or below disables the limit for that kind.
func (p *Player) RateLimitAllow(kind string, nowTick, window uint64, max int) (ok bool, cooldownTicks uint64) {
	if max <= 0 || window == 0 {
		return true, 0
	}
	if p.rl == nil {
		p.rl = make(map[string]*rateWindow)
	}
	w, found := p.rl[kind]
	if !found {
		w = &rateWindow{StartTick: nowTick, Window: window, Max: max}
		p.rl[kind] = w
	}
	w.Window = window
	w.Max = max
	if nowTick >= w.StartTick+w.Window {
		w.StartTick = nowTick
		w.Count = 0
	}
	if w.Count >= w.Max {
		return false, w.StartTick + w.Window - nowTick
	}
	w.Count++
	return true, 0
}
