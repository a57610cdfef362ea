package indexdb

import (
	"path/filepath"
	"testing"

	"tpahub/internal/sim/hub"
)

func TestSQLiteIndex_RecordAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.Record(hub.AuditEntry{Tick: 10, Event: "sent", TargetID: "P000002", TargetName: "bob", RequesterID: "P000001", RequesterName: "alice"})
	idx.Record(hub.AuditEntry{Tick: 20, Event: "accepted", TargetID: "P000002", TargetName: "bob", RequesterID: "P000001", RequesterName: "alice"})
	idx.Record(hub.AuditEntry{Tick: 30, Event: "sent", TargetID: "P000001", TargetName: "alice", RequesterID: "P000002", RequesterName: "bob"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	counts, err := reopened.CountByEvent()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["sent"] != 2 || counts["accepted"] != 1 {
		t.Fatalf("counts=%v want sent=2 accepted=1", counts)
	}

	recent, err := reopened.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent len=%d want 2", len(recent))
	}
	if recent[0].Tick != 30 || recent[0].RequesterName != "bob" {
		t.Fatalf("recent[0]=%+v want the tick-30 entry first", recent[0])
	}
}

func TestSQLiteIndex_RecordAfterCloseIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Must not panic on the closed channel.
	idx.Record(hub.AuditEntry{Tick: 1, Event: "sent"})
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
