package hub

import (
	"fmt"
	"strings"

	"tpahub/internal/protocol"
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// spawnPos scatters players deterministically around the origin.
func spawnPos(idNum uint64) Vec3 {
	return Vec3{
		X: int(idNum%16) * 4,
		Y: 64,
		Z: int((idNum/16)%16) * 4,
	}
}

func (h *Hub) handleJoin(req JoinRequest, nowTick uint64) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "player"
	}
	// Display names stay as sent; the lookup key is case-insensitive and must
	// be unique, so a taken name gets a numeric suffix.
	base := name
	for n := 2; ; n++ {
		if _, taken := h.names[normalizeName(name)]; !taken {
			break
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}

	idNum := h.nextPlayerNum.Add(1)
	id := fmt.Sprintf("P%06d", idNum)

	p := &Player{ID: id, Name: name, Pos: spawnPos(idNum)}
	h.players[id] = p
	h.names[normalizeName(name)] = id
	if req.Out != nil {
		h.clients[id] = &clientState{Out: req.Out}
	}

	h.broadcast(protocol.Event{
		"t":    nowTick,
		"type": "SYSTEM",
		"text": fmt.Sprintf("%s joined the game.", name),
	})
	if h.log != nil {
		h.log.Printf("join id=%s name=%q tick=%d", id, name, nowTick)
	}

	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			PlayerID:        id,
			PlayerName:      name,
			HubParams: protocol.HubParams{
				TickRateHz:         h.cfg.TickRateHz,
				RequestExpiryTicks: h.cfg.RequestExpiryTicks,
			},
		}}
	}
}

func (h *Hub) handleLeave(id string, nowTick uint64) {
	p := h.players[id]
	if p == nil {
		return
	}
	delete(h.clients, id)
	delete(h.players, id)
	delete(h.names, normalizeName(p.Name))

	// The registry sees the player as already gone: lookups fail and messages
	// to them drop, which is what its disconnect contract expects.
	h.requests.HandleDisconnect(id)

	h.broadcast(protocol.Event{
		"t":    nowTick,
		"type": "SYSTEM",
		"text": fmt.Sprintf("%s left the game.", p.Name),
	})
	if h.log != nil {
		h.log.Printf("leave id=%s name=%q tick=%d", id, p.Name, nowTick)
	}
}
