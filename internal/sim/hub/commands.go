package hub

import (
	"fmt"
	"sort"
	"strings"

	"tpahub/internal/protocol"
	"tpahub/internal/sim/tpa"
)

func cmdResult(nowTick uint64, ref string, ok bool, code string) protocol.Event {
	e := protocol.Event{"t": nowTick, "type": "CMD_RESULT", "ref": ref, "ok": ok}
	if code != "" {
		e["code"] = code
	}
	return e
}

func outcomeCode(o tpa.Outcome) (ok bool, code string) {
	switch o {
	case tpa.OutcomeSent, tpa.OutcomeAccepted, tpa.OutcomeDenied:
		return true, ""
	case tpa.OutcomePlayerNotFound:
		return false, protocol.ErrPlayerNotFound
	case tpa.OutcomeSelfRequest:
		return false, protocol.ErrSelfRequest
	case tpa.OutcomeDuplicateOwn, tpa.OutcomeDuplicateOther:
		return false, protocol.ErrPendingExists
	case tpa.OutcomeNoPending:
		return false, protocol.ErrNoPending
	}
	return false, protocol.ErrInternal
}

func (h *Hub) applyCmd(env CommandEnvelope, nowTick uint64) {
	p := h.players[env.PlayerID]
	if p == nil {
		return
	}
	cmd := env.Cmd
	switch cmd.Name {
	case "tpa":
		h.cmdTpa(p, cmd, nowTick)
	case "tpaccept":
		ok, code := outcomeCode(h.requests.Accept(p.ID))
		p.AddEvent(cmdResult(nowTick, cmd.ID, ok, code))
	case "tpdeny":
		ok, code := outcomeCode(h.requests.Deny(p.ID))
		p.AddEvent(cmdResult(nowTick, cmd.ID, ok, code))
	case "say":
		h.cmdSay(p, cmd, nowTick)
	case "who":
		h.cmdWho(p, cmd, nowTick)
	default:
		p.AddEvent(cmdResult(nowTick, cmd.ID, false, protocol.ErrUnknownCommand))
	}
}

func (h *Hub) cmdTpa(p *Player, cmd protocol.CmdMsg, nowTick uint64) {
	if len(cmd.Args) != 1 {
		hubMessenger{h}.SendMessage(p.ID, "Usage: /tpa <player>")
		p.AddEvent(cmdResult(nowTick, cmd.ID, false, protocol.ErrBadRequest))
		return
	}
	if ok, cd := p.RateLimitAllow("TPA", nowTick, h.cfg.RateLimits.TpaWindowTicks, h.cfg.RateLimits.TpaMax); !ok {
		hubMessenger{h}.SendMessage(p.ID, "Too many teleport requests. Try again shortly.")
		ev := cmdResult(nowTick, cmd.ID, false, protocol.ErrRateLimit)
		ev["cooldown_ticks"] = cd
		p.AddEvent(ev)
		return
	}
	outcome := h.requests.Submit(nowTick, tpa.PlayerRef{ID: p.ID, Name: p.Name}, cmd.Args[0])
	ok, code := outcomeCode(outcome)
	p.AddEvent(cmdResult(nowTick, cmd.ID, ok, code))
}

func (h *Hub) cmdSay(p *Player, cmd protocol.CmdMsg, nowTick uint64) {
	text := strings.TrimSpace(strings.Join(cmd.Args, " "))
	if text == "" {
		p.AddEvent(cmdResult(nowTick, cmd.ID, false, protocol.ErrBadRequest))
		return
	}
	if ok, cd := p.RateLimitAllow("SAY", nowTick, h.cfg.RateLimits.SayWindowTicks, h.cfg.RateLimits.SayMax); !ok {
		ev := cmdResult(nowTick, cmd.ID, false, protocol.ErrRateLimit)
		ev["cooldown_ticks"] = cd
		p.AddEvent(ev)
		return
	}
	h.broadcast(protocol.Event{
		"t":    nowTick,
		"type": "CHAT",
		"from": p.Name,
		"text": text,
	})
	p.AddEvent(cmdResult(nowTick, cmd.ID, true, ""))
}

func (h *Hub) cmdWho(p *Player, cmd protocol.CmdMsg, nowTick uint64) {
	names := make([]string, 0, len(h.players))
	for _, other := range h.players {
		names = append(names, other.Name)
	}
	sort.Strings(names)
	hubMessenger{h}.SendMessage(p.ID, fmt.Sprintf("Online (%d): %s", len(names), strings.Join(names, ", ")))
	p.AddEvent(cmdResult(nowTick, cmd.ID, true, ""))
}
