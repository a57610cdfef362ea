// Package tpa implements the pending teleport-request registry: at most one
// inbound request per target player, resolved by accept, deny, expiry, or
// either party disconnecting.
package tpa

import (
	"fmt"
	"sort"
)

// PlayerRef identifies a connected player. Messages use Name; all registry
// keys and lookups use ID.
type PlayerRef struct {
	ID   string
	Name string
}

// Directory resolves connected players. A player that has disconnected must
// not resolve.
type Directory interface {
	Resolve(name string) (PlayerRef, bool)
	ByID(id string) (PlayerRef, bool)
}

// Messenger delivers a chat message to a player. Delivery to a player that is
// no longer connected must be a silent no-op.
type Messenger interface {
	SendMessage(playerID, text string)
}

// Teleporter moves src to dst's current location.
type Teleporter interface {
	Teleport(srcID, dstID string)
}

// Handle is an opaque token for one scheduled expiry callback.
type Handle uint64

// Scheduler runs callbacks at a future tick. Cancel must be idempotent and
// must guarantee a canceled callback never runs; the registry still
// re-validates inside the callback in case a scheduler is laxer than that.
type Scheduler interface {
	ScheduleAt(dueTick uint64, fn func()) Handle
	Cancel(h Handle)
}

// AuditSink receives one record per request lifecycle event. Implementations
// must not block; a nil sink disables auditing.
type AuditSink interface {
	RecordRequest(event string, target, requester PlayerRef)
}

// Audit event names.
const (
	AuditSent          = "sent"
	AuditAccepted      = "accepted"
	AuditDenied        = "denied"
	AuditExpired       = "expired"
	AuditTargetLeft    = "cancelled_target_left"
	AuditRequesterLeft = "cancelled_requester_left"
)

// Outcome reports how a registry operation resolved.
type Outcome string

const (
	OutcomeSent           Outcome = "SENT"
	OutcomePlayerNotFound Outcome = "PLAYER_NOT_FOUND"
	OutcomeSelfRequest    Outcome = "SELF_REQUEST"
	OutcomeDuplicateOwn   Outcome = "DUPLICATE_OWN"
	OutcomeDuplicateOther Outcome = "DUPLICATE_OTHER"
	OutcomeAccepted       Outcome = "ACCEPTED"
	OutcomeDenied         Outcome = "DENIED"
	OutcomeNoPending      Outcome = "NO_PENDING"
)

// PendingRequest is one outstanding teleport ask, keyed by Target.ID.
type PendingRequest struct {
	Target    PlayerRef
	Requester PlayerRef

	expiry Handle
}

// Deps are the host collaborators the registry calls out to.
type Deps struct {
	Directory  Directory
	Messenger  Messenger
	Teleporter Teleporter
	Scheduler  Scheduler
	Audit      AuditSink // optional
}

// Registry owns the target -> PendingRequest table.
//
// All methods must be called from the single hub loop goroutine; the registry
// has no internal locking and relies on the host serializing command
// handling, disconnect events, and scheduler callbacks.
type Registry struct {
	deps        Deps
	expiryTicks uint64

	pending map[string]*PendingRequest
}

func New(deps Deps, expiryTicks uint64) *Registry {
	return &Registry{
		deps:        deps,
		expiryTicks: expiryTicks,
		pending:     make(map[string]*PendingRequest),
	}
}

// Pending reports the number of outstanding requests.
func (r *Registry) Pending() int {
	return len(r.pending)
}

// PendingFor returns the requester of the request targeting targetID, if any.
func (r *Registry) PendingFor(targetID string) (PlayerRef, bool) {
	cur, ok := r.pending[targetID]
	if !ok {
		return PlayerRef{}, false
	}
	return cur.Requester, true
}

// Submit handles /tpa: requester asks to teleport to the player named
// targetName. Validation short-circuits in order: target connected, not a
// self-request, no request already pending on the target.
func (r *Registry) Submit(nowTick uint64, requester PlayerRef, targetName string) Outcome {
	target, ok := r.deps.Directory.Resolve(targetName)
	if !ok {
		r.deps.Messenger.SendMessage(requester.ID, "Player not found.")
		return OutcomePlayerNotFound
	}
	if target.ID == requester.ID {
		r.deps.Messenger.SendMessage(requester.ID, "You cannot send a request to yourself.")
		return OutcomeSelfRequest
	}
	if cur, ok := r.pending[target.ID]; ok {
		if cur.Requester.ID == requester.ID {
			r.deps.Messenger.SendMessage(requester.ID, "You already have a pending request to this player.")
			return OutcomeDuplicateOwn
		}
		r.deps.Messenger.SendMessage(requester.ID, "This player already has a pending request.")
		return OutcomeDuplicateOther
	}

	req := &PendingRequest{Target: target, Requester: requester}
	// The callback carries its own (target, requester) copy and re-validates
	// against the live table, so a fire after the entry was replaced or
	// removed is a no-op.
	targetID, requesterID := target.ID, requester.ID
	req.expiry = r.deps.Scheduler.ScheduleAt(nowTick+r.expiryTicks, func() {
		r.expire(targetID, requesterID)
	})
	r.pending[target.ID] = req

	r.deps.Messenger.SendMessage(requester.ID, fmt.Sprintf("Teleport request sent to %s.", target.Name))
	r.deps.Messenger.SendMessage(target.ID, fmt.Sprintf("%s has requested to teleport to you. Use /tpaccept to accept or /tpdeny to deny.", requester.Name))
	r.record(AuditSent, target, requester)
	return OutcomeSent
}

// Accept handles /tpaccept: the sender is the target of the pending request.
func (r *Registry) Accept(targetID string) Outcome {
	cur, ok := r.pending[targetID]
	if !ok {
		r.deps.Messenger.SendMessage(targetID, "You have no pending request.")
		return OutcomeNoPending
	}
	delete(r.pending, targetID)
	r.deps.Scheduler.Cancel(cur.expiry)

	r.deps.Messenger.SendMessage(cur.Requester.ID, fmt.Sprintf("%s accepted your teleport request.", cur.Target.Name))
	r.deps.Messenger.SendMessage(cur.Target.ID, fmt.Sprintf("You accepted %s's teleport request.", cur.Requester.Name))
	r.deps.Teleporter.Teleport(cur.Requester.ID, cur.Target.ID)
	r.record(AuditAccepted, cur.Target, cur.Requester)
	return OutcomeAccepted
}

// Deny handles /tpdeny: same removal as Accept, no teleport.
func (r *Registry) Deny(targetID string) Outcome {
	cur, ok := r.pending[targetID]
	if !ok {
		r.deps.Messenger.SendMessage(targetID, "You have no pending request.")
		return OutcomeNoPending
	}
	delete(r.pending, targetID)
	r.deps.Scheduler.Cancel(cur.expiry)

	r.deps.Messenger.SendMessage(cur.Requester.ID, fmt.Sprintf("%s denied your teleport request.", cur.Target.Name))
	r.deps.Messenger.SendMessage(cur.Target.ID, fmt.Sprintf("You denied %s's teleport request.", cur.Requester.Name))
	r.record(AuditDenied, cur.Target, cur.Requester)
	return OutcomeDenied
}

// HandleDisconnect clears every request the departing player was a party to.
// The player may be the target of at most one request and the requester of
// any number of others; both passes run.
func (r *Registry) HandleDisconnect(playerID string) {
	if cur, ok := r.pending[playerID]; ok {
		delete(r.pending, playerID)
		r.deps.Scheduler.Cancel(cur.expiry)
		r.deps.Messenger.SendMessage(cur.Requester.ID, fmt.Sprintf("%s left the game. Teleport request cancelled.", cur.Target.Name))
		r.record(AuditTargetLeft, cur.Target, cur.Requester)
	}

	var targets []string
	for targetID, cur := range r.pending {
		if cur.Requester.ID == playerID {
			targets = append(targets, targetID)
		}
	}
	sort.Strings(targets)
	for _, targetID := range targets {
		cur := r.pending[targetID]
		delete(r.pending, targetID)
		r.deps.Scheduler.Cancel(cur.expiry)
		if _, connected := r.deps.Directory.ByID(targetID); connected {
			r.deps.Messenger.SendMessage(targetID, fmt.Sprintf("%s left the game. Teleport request cancelled.", cur.Requester.Name))
		}
		r.record(AuditRequesterLeft, cur.Target, cur.Requester)
	}
}

// Shutdown cancels every outstanding timer and clears the table without
// notifying anyone. The host is tearing down.
func (r *Registry) Shutdown() {
	for _, cur := range r.pending {
		r.deps.Scheduler.Cancel(cur.expiry)
	}
	r.pending = make(map[string]*PendingRequest)
}

// expire runs as the scheduled callback. The entry must still exist and still
// belong to the same requester, otherwise the fire is stale and ignored.
func (r *Registry) expire(targetID, requesterID string) {
	cur, ok := r.pending[targetID]
	if !ok || cur.Requester.ID != requesterID {
		return
	}
	delete(r.pending, targetID)
	r.deps.Messenger.SendMessage(cur.Requester.ID, "Your teleport request has expired.")
	r.deps.Messenger.SendMessage(cur.Target.ID, "Teleport request expired.")
	r.record(AuditExpired, cur.Target, cur.Requester)
}

func (r *Registry) record(event string, target, requester PlayerRef) {
	if r.deps.Audit == nil {
		return
	}
	r.deps.Audit.RecordRequest(event, target, requester)
}
