package hub

import (
	"tpahub/internal/protocol"
	"tpahub/internal/sim/sched"
	"tpahub/internal/sim/tpa"
)

// Adapters binding the teleport-request registry's collaborator interfaces to
// hub state. All of them run on the hub loop goroutine.

type hubDirectory struct{ h *Hub }

func (d hubDirectory) Resolve(name string) (tpa.PlayerRef, bool) {
	id, ok := d.h.names[normalizeName(name)]
	if !ok {
		return tpa.PlayerRef{}, false
	}
	return d.h.playerRef(id)
}

func (d hubDirectory) ByID(id string) (tpa.PlayerRef, bool) {
	return d.h.playerRef(id)
}

func (h *Hub) playerRef(id string) (tpa.PlayerRef, bool) {
	p, ok := h.players[id]
	if !ok {
		return tpa.PlayerRef{}, false
	}
	return tpa.PlayerRef{ID: p.ID, Name: p.Name}, true
}

type hubMessenger struct{ h *Hub }

func (m hubMessenger) SendMessage(playerID, text string) {
	p, ok := m.h.players[playerID]
	if !ok {
		return
	}
	p.AddEvent(protocol.Event{
		"t":    m.h.tick.Load(),
		"type": "SYSTEM",
		"text": text,
	})
}

type hubTeleporter struct{ h *Hub }

func (t hubTeleporter) Teleport(srcID, dstID string) {
	src := t.h.players[srcID]
	dst := t.h.players[dstID]
	if src == nil || dst == nil {
		return
	}
	src.Pos = dst.Pos
	nowTick := t.h.tick.Load()
	ev := protocol.Event{
		"t":      nowTick,
		"type":   "TELEPORT",
		"player": src.Name,
		"to":     dst.Name,
		"pos":    []int{dst.Pos.X, dst.Pos.Y, dst.Pos.Z},
	}
	src.AddEvent(ev)
	dst.AddEvent(ev)
	if t.h.log != nil {
		t.h.log.Printf("teleport %s -> %s tick=%d", src.ID, dst.ID, nowTick)
	}
}

type hubScheduler struct{ s *sched.Scheduler }

func (s hubScheduler) ScheduleAt(dueTick uint64, fn func()) tpa.Handle {
	return tpa.Handle(s.s.ScheduleAt(dueTick, fn))
}

func (s hubScheduler) Cancel(h tpa.Handle) {
	s.s.Cancel(sched.Handle(h))
}

type hubAuditSink struct{ h *Hub }

func (a hubAuditSink) RecordRequest(event string, target, requester tpa.PlayerRef) {
	if a.h.audit == nil {
		return
	}
	a.h.audit.Record(AuditEntry{
		Tick:          a.h.tick.Load(),
		Event:         event,
		TargetID:      target.ID,
		TargetName:    target.Name,
		RequesterID:   requester.ID,
		RequesterName: requester.Name,
	})
}
