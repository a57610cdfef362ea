// Package hub runs the single-threaded game hub: player sessions, chat-style
// commands, the tick loop, and the teleport-request registry wired to it.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"tpahub/internal/protocol"
	"tpahub/internal/sim/sched"
	"tpahub/internal/sim/tpa"
	"tpahub/internal/sim/tuning"
)

type Config struct {
	TickRateHz         int
	RequestExpiryTicks uint64
	RateLimits         tuning.RateLimits
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type CommandEnvelope struct {
	PlayerID string
	Cmd      protocol.CmdMsg
}

// AuditEntry is one resolved request-lifecycle record, forwarded to the
// configured sinks off-thread.
type AuditEntry struct {
	Tick          uint64 `json:"tick"`
	Event         string `json:"event"`
	TargetID      string `json:"target_id"`
	TargetName    string `json:"target_name"`
	RequesterID   string `json:"requester_id"`
	RequesterName string `json:"requester_name"`
}

// AuditRecorder receives audit entries. Implementations must not block the
// caller; writes happen on the hub loop goroutine.
type AuditRecorder interface {
	Record(e AuditEntry)
}

type clientState struct {
	Out chan []byte
}

// Hub is a single-threaded authoritative hub.
// All state must be accessed only from the hub loop goroutine.
type Hub struct {
	cfg Config
	log *log.Logger

	tick          atomic.Uint64
	nextPlayerNum atomic.Uint64

	players map[string]*Player
	names   map[string]string // normalized name -> player id
	clients map[string]*clientState

	sched    *sched.Scheduler
	requests *tpa.Registry

	audit AuditRecorder // may be nil

	inbox chan CommandEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}
}

func New(cfg Config, logger *log.Logger, audit AuditRecorder) *Hub {
	h := &Hub{
		cfg:     cfg,
		log:     logger,
		players: make(map[string]*Player),
		names:   make(map[string]string),
		clients: make(map[string]*clientState),
		sched:   sched.New(),
		audit:   audit,
		inbox:   make(chan CommandEnvelope, 256),
		join:    make(chan JoinRequest, 16),
		leave:   make(chan string, 16),
		stop:    make(chan struct{}),
	}
	deps := tpa.Deps{
		Directory:  hubDirectory{h},
		Messenger:  hubMessenger{h},
		Teleporter: hubTeleporter{h},
		Scheduler:  hubScheduler{h.sched},
	}
	if audit != nil {
		deps.Audit = hubAuditSink{h}
	}
	h.requests = tpa.New(deps, cfg.RequestExpiryTicks)
	return h
}

func (h *Hub) Inbox() chan<- CommandEnvelope { return h.inbox }
func (h *Hub) Join() chan<- JoinRequest      { return h.join }
func (h *Hub) Leave() chan<- string          { return h.leave }
func (h *Hub) Tick() uint64                  { return h.tick.Load() }

func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

// Run drives the hub until ctx is canceled or Stop is called. Joins, leaves
// and commands are buffered between ticks and applied at the tick boundary,
// so all mutations happen on this goroutine.
func (h *Hub) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(h.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer h.shutdown()

	var pendingCmds []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stop:
			return nil
		case req := <-h.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-h.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-h.inbox:
			pendingCmds = append(pendingCmds, env)
		case <-ticker.C:
			h.step(pendingJoins, pendingLeaves, pendingCmds)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
		}
	}
}

func (h *Hub) step(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) {
	nowTick := h.tick.Load()

	// Leaves before joins, so a reconnecting player never sees stale state.
	for _, id := range leaves {
		h.handleLeave(id, nowTick)
	}
	for _, req := range joins {
		h.handleJoin(req, nowTick)
	}

	// Apply commands in receive order.
	for _, env := range cmds {
		h.applyCmd(env, nowTick)
	}

	// Due timers (request expiries) fire after commands, at the boundary.
	h.sched.Advance(nowTick)

	h.flushEvents(nowTick)
	h.tick.Add(1)
}

func (h *Hub) shutdown() {
	h.requests.Shutdown()
	h.sched.Clear()
	if h.log != nil {
		h.log.Printf("hub stopped at tick %d", h.tick.Load())
	}
}

func (h *Hub) flushEvents(nowTick uint64) {
	for id, p := range h.players {
		cl := h.clients[id]
		if cl == nil {
			continue
		}
		events := p.TakeEvents()
		if len(events) == 0 {
			continue
		}
		batch := protocol.EventBatchMsg{
			Type:            protocol.TypeEventBatch,
			ProtocolVersion: protocol.Version,
			Tick:            nowTick,
			Events:          events,
		}
		b, err := json.Marshal(batch)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}
}

// sendLatest never blocks the loop: if the client's queue is full the oldest
// batch is dropped to make room.
func sendLatest(out chan []byte, b []byte) {
	for {
		select {
		case out <- b:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

func (h *Hub) broadcast(e protocol.Event) {
	for _, p := range h.players {
		p.AddEvent(e)
	}
}
