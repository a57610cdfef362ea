package hub

import (
	"strings"
	"testing"

	"tpahub/internal/protocol"
	"tpahub/internal/sim/tuning"
)

func newTestHub(expiryTicks uint64) *Hub {
	return New(Config{
		TickRateHz:         20,
		RequestExpiryTicks: expiryTicks,
		RateLimits: tuning.RateLimits{
			TpaWindowTicks: 100,
			TpaMax:         3,
			SayWindowTicks: 100,
			SayMax:         10,
		},
	}, nil, nil)
}

func join(t *testing.T, h *Hub, name string) *Player {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	h.step([]JoinRequest{{Name: name, Resp: resp}}, nil, nil)
	j := <-resp
	p := h.players[j.Welcome.PlayerID]
	if p == nil {
		t.Fatalf("join %q: no player", name)
	}
	return p
}

func cmd(h *Hub, p *Player, name string, args ...string) {
	h.step(nil, nil, []CommandEnvelope{{
		PlayerID: p.ID,
		Cmd: protocol.CmdMsg{
			Type:            protocol.TypeCmd,
			ProtocolVersion: protocol.Version,
			ID:              "C_" + name,
			Name:            name,
			Args:            args,
		},
	}})
}

func countEvents(p *Player, evType, substr string) int {
	n := 0
	for _, e := range p.Events {
		if e["type"] != evType {
			continue
		}
		text, _ := e["text"].(string)
		if substr == "" || strings.Contains(text, substr) {
			n++
		}
	}
	return n
}

func lastResultCode(p *Player, ref string) (ok bool, code string) {
	for i := len(p.Events) - 1; i >= 0; i-- {
		e := p.Events[i]
		if e["type"] == "CMD_RESULT" && e["ref"] == ref {
			okVal, _ := e["ok"].(bool)
			codeVal, _ := e["code"].(string)
			return okVal, codeVal
		}
	}
	return false, "<none>"
}

func TestTpaAcceptFlow(t *testing.T) {
	h := newTestHub(1200)
	alice := join(t, h, "alice")
	bob := join(t, h, "bob")

	cmd(h, alice, "tpa", "bob")
	if got := countEvents(bob, "SYSTEM", "requested to teleport to you"); got != 1 {
		t.Fatalf("bob prompt events=%d want 1", got)
	}

	cmd(h, bob, "tpaccept")
	if ok, code := lastResultCode(bob, "C_tpaccept"); !ok {
		t.Fatalf("tpaccept failed code=%q", code)
	}
	if alice.Pos != bob.Pos {
		t.Fatalf("alice pos=%v bob pos=%v, want equal after teleport", alice.Pos, bob.Pos)
	}
	if got := countEvents(alice, "TELEPORT", ""); got != 1 {
		t.Fatalf("alice teleport events=%d want 1", got)
	}
	if h.requests.Pending() != 0 {
		t.Fatalf("pending=%d after accept", h.requests.Pending())
	}
}

func TestTpaExpiresThroughTickLoop(t *testing.T) {
	h := newTestHub(3)
	alice := join(t, h, "alice")
	bob := join(t, h, "bob")

	cmd(h, alice, "tpa", "bob")
	// Submit ran at tick 2 (two joins first), so expiry is due at tick 5.
	for h.Tick() <= 5 {
		h.step(nil, nil, nil)
	}
	if h.requests.Pending() != 0 {
		t.Fatalf("pending=%d after expiry ticks", h.requests.Pending())
	}
	if got := countEvents(alice, "SYSTEM", "Your teleport request has expired."); got != 1 {
		t.Fatalf("alice expiry events=%d want 1", got)
	}
	if got := countEvents(bob, "SYSTEM", "Teleport request expired."); got != 1 {
		t.Fatalf("bob expiry events=%d want 1", got)
	}
}

func TestTpaRequesterLeavesThroughHub(t *testing.T) {
	h := newTestHub(1200)
	alice := join(t, h, "alice")
	bob := join(t, h, "bob")

	cmd(h, alice, "tpa", "bob")
	h.step(nil, []string{alice.ID}, nil)

	if h.requests.Pending() != 0 {
		t.Fatalf("pending=%d after requester left", h.requests.Pending())
	}
	if got := countEvents(bob, "SYSTEM", "alice left the game. Teleport request cancelled."); got != 1 {
		t.Fatalf("bob cancel events=%d want 1", got)
	}

	cmd(h, bob, "tpaccept")
	if ok, code := lastResultCode(bob, "C_tpaccept"); ok || code != protocol.ErrNoPending {
		t.Fatalf("tpaccept after cancel ok=%v code=%q want %q", ok, code, protocol.ErrNoPending)
	}
}

func TestTpaUsageAndUnknownTarget(t *testing.T) {
	h := newTestHub(1200)
	alice := join(t, h, "alice")

	cmd(h, alice, "tpa")
	if ok, code := lastResultCode(alice, "C_tpa"); ok || code != protocol.ErrBadRequest {
		t.Fatalf("bare tpa ok=%v code=%q want %q", ok, code, protocol.ErrBadRequest)
	}
	if got := countEvents(alice, "SYSTEM", "Usage: /tpa <player>"); got != 1 {
		t.Fatalf("usage events=%d want 1", got)
	}

	cmd(h, alice, "tpa", "nosuch")
	if ok, code := lastResultCode(alice, "C_tpa"); ok || code != protocol.ErrPlayerNotFound {
		t.Fatalf("unknown target ok=%v code=%q want %q", ok, code, protocol.ErrPlayerNotFound)
	}
}

func TestTpaRateLimit(t *testing.T) {
	h := newTestHub(1200)
	alice := join(t, h, "alice")
	names := []string{"b1", "b2", "b3", "b4"}
	for _, n := range names {
		join(t, h, n)
	}

	for _, n := range names {
		cmd(h, alice, "tpa", n)
	}
	if ok, code := lastResultCode(alice, "C_tpa"); ok || code != protocol.ErrRateLimit {
		t.Fatalf("4th tpa ok=%v code=%q want %q", ok, code, protocol.ErrRateLimit)
	}
	// The first three went through.
	if h.requests.Pending() != 3 {
		t.Fatalf("pending=%d want 3", h.requests.Pending())
	}
}

func TestSayBroadcast(t *testing.T) {
	h := newTestHub(1200)
	alice := join(t, h, "alice")
	bob := join(t, h, "bob")

	cmd(h, alice, "say", "hello", "there")
	for _, p := range []*Player{alice, bob} {
		got := 0
		for _, e := range p.Events {
			if e["type"] == "CHAT" && e["text"] == "hello there" && e["from"] == "alice" {
				got++
			}
		}
		if got != 1 {
			t.Fatalf("%s chat events=%d want 1", p.Name, got)
		}
	}
}

func TestDuplicateNameGetsSuffix(t *testing.T) {
	h := newTestHub(1200)
	first := join(t, h, "steve")
	second := join(t, h, "Steve")
	if first.Name != "steve" || second.Name != "Steve_2" {
		t.Fatalf("names=%q,%q want steve,Steve_2", first.Name, second.Name)
	}
	// /tpa resolves case-insensitively against the first holder.
	cmd(h, second, "tpa", "STEVE")
	if ok, _ := lastResultCode(second, "C_tpa"); !ok {
		t.Fatalf("tpa against case-folded name failed")
	}
	if req, found := h.requests.PendingFor(first.ID); !found || req.ID != second.ID {
		t.Fatalf("pending entry=%+v found=%v", req, found)
	}
}

func TestAuditRecorderStampsTick(t *testing.T) {
	var entries []AuditEntry
	h := New(Config{TickRateHz: 20, RequestExpiryTicks: 1200}, nil, recorderFunc(func(e AuditEntry) {
		entries = append(entries, e)
	}))
	alice := join(t, h, "alice")
	bob := join(t, h, "bob")

	cmd(h, alice, "tpa", "bob")
	cmd(h, bob, "tpdeny")

	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	if entries[0].Event != "sent" || entries[1].Event != "denied" {
		t.Fatalf("events=%q,%q want sent,denied", entries[0].Event, entries[1].Event)
	}
	if entries[0].RequesterName != "alice" || entries[0].TargetName != "bob" {
		t.Fatalf("entry parties=%+v", entries[0])
	}
	if entries[1].Tick <= entries[0].Tick {
		t.Fatalf("ticks not increasing: %d then %d", entries[0].Tick, entries[1].Tick)
	}
}

type recorderFunc func(AuditEntry)

func (f recorderFunc) Record(e AuditEntry) { f(e) }
