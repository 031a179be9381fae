package database

import (
	"database/sql"
	"testing"
	"time"

	"ft-go/internal/ft"
)

// newTestRegistry creates a new in-memory registry with schema applied.
func newTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()

	reg, err := NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	t.Cleanup(func() {
		reg.Close()
	})

	return reg
}

func draft(id, path string, size int64, quickHash string) *ft.FileRecord {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &ft.FileRecord{
		ID:           id,
		OriginalPath: path,
		SizeBytes:    size,
		QuickHash:    sql.NullString{String: quickHash, Valid: quickHash != ""},
		State:        ft.StatePending,
		FirstSeenAt:  now,
		ModifiedAt:   now,
	}
}

func TestSQLiteRegistry_UpsertScanned(t *testing.T) {
	t.Run("inserts new records", func(t *testing.T) {
		reg := newTestRegistry(t)

		created, err := reg.UpsertScanned([]*ft.FileRecord{
			draft("file-1", "/docs/a.txt", 10, "qh1"),
			draft("file-2", "/docs/b.txt", 20, "qh2"),
		})
		if err != nil {
			t.Fatalf("UpsertScanned() error = %v", err)
		}
		if created != 2 {
			t.Errorf("created = %d, want 2", created)
		}
	})

	t.Run("unchanged file does not create a new record", func(t *testing.T) {
		reg := newTestRegistry(t)

		if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
			t.Fatalf("UpsertScanned() error = %v", err)
		}

		created, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-9", "/docs/a.txt", 10, "qh1")})
		if err != nil {
			t.Fatalf("UpsertScanned() error = %v", err)
		}
		if created != 0 {
			t.Errorf("created = %d, want 0", created)
		}

		rec, err := reg.FindByOriginalPath("/docs/a.txt")
		if err != nil {
			t.Fatalf("FindByOriginalPath() error = %v", err)
		}
		if rec == nil || rec.ID != "file-1" {
			t.Errorf("record = %+v, want ID file-1", rec)
		}
	})

	t.Run("changed content creates a new record", func(t *testing.T) {
		reg := newTestRegistry(t)

		if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
			t.Fatalf("UpsertScanned() error = %v", err)
		}

		changed := draft("file-2", "/docs/a.txt", 11, "qh2")
		changed.FirstSeenAt = changed.FirstSeenAt.Add(time.Hour)
		created, err := reg.UpsertScanned([]*ft.FileRecord{changed})
		if err != nil {
			t.Fatalf("UpsertScanned() error = %v", err)
		}
		if created != 1 {
			t.Errorf("created = %d, want 1", created)
		}

		// Newest record wins the path lookup
		rec, err := reg.FindByOriginalPath("/docs/a.txt")
		if err != nil {
			t.Fatalf("FindByOriginalPath() error = %v", err)
		}
		if rec == nil || rec.ID != "file-2" {
			t.Errorf("record ID = %v, want file-2", rec)
		}
	})
}

func TestSQLiteRegistry_GetFile(t *testing.T) {
	t.Run("returns nil when not found", func(t *testing.T) {
		reg := newTestRegistry(t)

		rec, err := reg.GetFile("missing")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if rec != nil {
			t.Errorf("GetFile() = %v, want nil", rec)
		}
	})

	t.Run("round-trips all fields", func(t *testing.T) {
		reg := newTestRegistry(t)

		if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
			t.Fatalf("UpsertScanned() error = %v", err)
		}

		rec, err := reg.GetFile("file-1")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if rec == nil {
			t.Fatal("GetFile() returned nil, want record")
		}
		if rec.OriginalPath != "/docs/a.txt" {
			t.Errorf("OriginalPath = %v, want /docs/a.txt", rec.OriginalPath)
		}
		if rec.State != ft.StatePending {
			t.Errorf("State = %v, want pending", rec.State)
		}
		if rec.SizeBytes != 10 {
			t.Errorf("SizeBytes = %d, want 10", rec.SizeBytes)
		}
	})
}

func TestSQLiteRegistry_UpdateClassification(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}

	if err := reg.UpdateClassification("file-1", "invoice", 0.92, ft.MethodMLModel); err != nil {
		t.Fatalf("UpdateClassification() error = %v", err)
	}

	rec, err := reg.GetFile("file-1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if rec.State != ft.StateClassified {
		t.Errorf("State = %v, want classified", rec.State)
	}
	if !rec.DocumentType.Valid || rec.DocumentType.String != "invoice" {
		t.Errorf("DocumentType = %v, want invoice", rec.DocumentType)
	}
	if !rec.Confidence.Valid || rec.Confidence.Float64 != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", rec.Confidence)
	}
}

func TestSQLiteRegistry_ApplyDuplicateGroups(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{
		draft("file-1", "/docs/a.txt", 10, "qh1"),
		draft("file-2", "/docs/b.txt", 10, "qh1"),
		draft("file-3", "/docs/c.txt", 10, "qh1"),
	}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}

	now := time.Now().UTC()
	group := &ft.DuplicateGroup{
		ID:              "group-1",
		CanonicalFileID: "file-1",
		DetectionMethod: ft.DetectionFullHash,
		MemberFileIDs:   []string{"file-1", "file-2", "file-3"},
		CreatedAt:       now,
	}
	if err := reg.ApplyDuplicateGroups([]*ft.DuplicateGroup{group}); err != nil {
		t.Fatalf("ApplyDuplicateGroups() error = %v", err)
	}

	// Canonical member keeps its flags clear
	canonical, err := reg.GetFile("file-1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if canonical.IsDuplicate {
		t.Error("canonical member marked as duplicate")
	}

	// Other members point at the canonical
	dup, err := reg.GetFile("file-2")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if !dup.IsDuplicate {
		t.Error("member not marked as duplicate")
	}
	if !dup.DuplicateOf.Valid || dup.DuplicateOf.String != "file-1" {
		t.Errorf("DuplicateOf = %v, want file-1", dup.DuplicateOf)
	}
	if dup.State != ft.StateDuplicate {
		t.Errorf("State = %v, want duplicate", dup.State)
	}

	t.Run("reapplying replaces the grouping", func(t *testing.T) {
		smaller := &ft.DuplicateGroup{
			ID:              "group-2",
			CanonicalFileID: "file-2",
			DetectionMethod: ft.DetectionFullHash,
			MemberFileIDs:   []string{"file-2", "file-3"},
			CreatedAt:       now,
		}
		if err := reg.ApplyDuplicateGroups([]*ft.DuplicateGroup{smaller}); err != nil {
			t.Fatalf("ApplyDuplicateGroups() error = %v", err)
		}

		groups, err := reg.ListDuplicateGroups()
		if err != nil {
			t.Fatalf("ListDuplicateGroups() error = %v", err)
		}
		if len(groups) != 1 || groups[0].ID != "group-2" {
			t.Fatalf("groups = %v, want only group-2", groups)
		}
		if len(groups[0].MemberFileIDs) != 2 {
			t.Errorf("members = %v, want 2", groups[0].MemberFileIDs)
		}

		// file-1 left the grouping and is cleared
		rec, err := reg.GetFile("file-1")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if rec.IsDuplicate || rec.DuplicateOf.Valid {
			t.Errorf("file-1 still flagged: %+v", rec)
		}
	})
}

func TestSQLiteRegistry_Plans(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}

	now := time.Now().UTC()
	plan := &ft.MigrationPlan{
		ID:        "plan-1",
		CreatedAt: now,
		Status:    ft.PlanPending,
		Actions: []*ft.MigrationAction{
			{
				ID:         "act-1",
				PlanID:     "plan-1",
				Seq:        1,
				FileID:     "file-1",
				SourcePath: "/docs/a.txt",
				TargetPath: "/Organized/Invoices/a.txt",
				Type:       ft.ActionMove,
				Reason:     "classified as invoice",
				Status:     ft.ActionPending,
			},
		},
	}
	if err := reg.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}

	t.Run("get returns actions in sequence order", func(t *testing.T) {
		got, err := reg.GetPlan("plan-1")
		if err != nil {
			t.Fatalf("GetPlan() error = %v", err)
		}
		if got == nil {
			t.Fatal("GetPlan() returned nil, want plan")
		}
		if got.Approved {
			t.Error("new plan should not be approved")
		}
		if len(got.Actions) != 1 || got.Actions[0].ID != "act-1" {
			t.Errorf("Actions = %v, want act-1", got.Actions)
		}
	})

	t.Run("approve flips a pending plan", func(t *testing.T) {
		if err := reg.ApprovePlan("plan-1"); err != nil {
			t.Fatalf("ApprovePlan() error = %v", err)
		}
		got, err := reg.GetPlan("plan-1")
		if err != nil {
			t.Fatalf("GetPlan() error = %v", err)
		}
		if !got.Approved || got.Status != ft.PlanApproved {
			t.Errorf("plan = %+v, want approved", got)
		}

		// A second approval must fail: the plan is no longer pending.
		if err := reg.ApprovePlan("plan-1"); err == nil {
			t.Error("ApprovePlan() on approved plan expected error, got nil")
		}
	})

	t.Run("finish action records status and error", func(t *testing.T) {
		if err := reg.FinishAction("act-1", ft.ActionFailed, "disk full"); err != nil {
			t.Fatalf("FinishAction() error = %v", err)
		}
		got, err := reg.GetPlan("plan-1")
		if err != nil {
			t.Fatalf("GetPlan() error = %v", err)
		}
		action := got.Actions[0]
		if action.Status != ft.ActionFailed {
			t.Errorf("Status = %v, want failed", action.Status)
		}
		if !action.Error.Valid || action.Error.String != "disk full" {
			t.Errorf("Error = %v, want disk full", action.Error)
		}
	})
}

func TestSQLiteRegistry_Checkpoints(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}
	plan := &ft.MigrationPlan{ID: "plan-1", CreatedAt: time.Now().UTC(), Status: ft.PlanPending}
	if err := reg.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}

	cp := &ft.Checkpoint{
		ID:        "cp-1",
		PlanID:    "plan-1",
		CreatedAt: time.Now().UTC(),
		Entries: []ft.CheckpointEntry{
			{FileID: "file-1", State: ft.StatePending},
		},
	}
	if err := reg.CreateCheckpoint(cp); err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	got, err := reg.FindCheckpointForPlan("plan-1")
	if err != nil {
		t.Fatalf("FindCheckpointForPlan() error = %v", err)
	}
	if got == nil || got.ID != "cp-1" {
		t.Fatalf("checkpoint = %v, want cp-1", got)
	}
	if len(got.Entries) != 1 || got.Entries[0].FileID != "file-1" {
		t.Errorf("Entries = %v, want file-1", got.Entries)
	}

	t.Run("restore resets the record", func(t *testing.T) {
		now := time.Now().UTC()
		if err := reg.RecordMove("file-1", "/docs/a.txt", "/Organized/a.txt", "plan-1", now); err != nil {
			t.Fatalf("RecordMove() error = %v", err)
		}

		if err := reg.RestoreCheckpointEntry(got.Entries[0]); err != nil {
			t.Fatalf("RestoreCheckpointEntry() error = %v", err)
		}
		rec, err := reg.GetFile("file-1")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if rec.State != ft.StatePending {
			t.Errorf("State = %v, want pending", rec.State)
		}
		if rec.CanonicalPath.Valid {
			t.Errorf("CanonicalPath = %v, want unset", rec.CanonicalPath)
		}
	})
}

func TestSQLiteRegistry_RecordMove(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}
	plan := &ft.MigrationPlan{ID: "plan-1", CreatedAt: time.Now().UTC(), Status: ft.PlanPending}
	if err := reg.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := reg.RecordMove("file-1", "/docs/a.txt", "/Organized/a.txt", "plan-1", now); err != nil {
		t.Fatalf("RecordMove() error = %v", err)
	}

	rec, err := reg.GetFile("file-1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if rec.State != ft.StateOrganized {
		t.Errorf("State = %v, want organized", rec.State)
	}
	if !rec.CanonicalPath.Valid || rec.CanonicalPath.String != "/Organized/a.txt" {
		t.Errorf("CanonicalPath = %v, want /Organized/a.txt", rec.CanonicalPath)
	}
	if rec.MoveCount != 1 {
		t.Errorf("MoveCount = %d, want 1", rec.MoveCount)
	}

	t.Run("external move does not bump move count", func(t *testing.T) {
		if err := reg.RecordExternalMove("file-1", "/Organized/a.txt", "/Elsewhere/a.txt", now.Add(time.Hour)); err != nil {
			t.Fatalf("RecordExternalMove() error = %v", err)
		}
		rec, err := reg.GetFile("file-1")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if rec.MoveCount != 1 {
			t.Errorf("MoveCount = %d, want 1", rec.MoveCount)
		}
		if !rec.CanonicalPath.Valid || rec.CanonicalPath.String != "/Elsewhere/a.txt" {
			t.Errorf("CanonicalPath = %v, want /Elsewhere/a.txt", rec.CanonicalPath)
		}

		events, err := reg.ListMoveHistory("file-1")
		if err != nil {
			t.Fatalf("ListMoveHistory() error = %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("events = %d, want 2", len(events))
		}
		if events[0].External || !events[1].External {
			t.Errorf("external flags = %v/%v, want false/true", events[0].External, events[1].External)
		}
		if !events[0].PlanID.Valid || events[0].PlanID.String != "plan-1" {
			t.Errorf("PlanID = %v, want plan-1", events[0].PlanID)
		}
	})
}

func TestSQLiteRegistry_RecordCorrection(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{draft("file-1", "/docs/a.txt", 10, "qh1")}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}
	if err := reg.UpdateClassification("file-1", "invoice", 0.6, ft.MethodExtension); err != nil {
		t.Fatalf("UpdateClassification() error = %v", err)
	}

	now := time.Now().UTC()
	if err := reg.RecordCorrection("file-1", "receipt", "mislabelled", now); err != nil {
		t.Fatalf("RecordCorrection() error = %v", err)
	}

	rec, err := reg.GetFile("file-1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if !rec.DocumentType.Valid || rec.DocumentType.String != "receipt" {
		t.Errorf("DocumentType = %v, want receipt", rec.DocumentType)
	}
	if !rec.Method.Valid || rec.Method.String != ft.MethodManual {
		t.Errorf("Method = %v, want manual", rec.Method)
	}

	corrections, err := reg.ListCorrections()
	if err != nil {
		t.Fatalf("ListCorrections() error = %v", err)
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	c := corrections[0]
	if !c.OldType.Valid || c.OldType.String != "invoice" {
		t.Errorf("OldType = %v, want invoice", c.OldType)
	}
	if c.NewType != "receipt" {
		t.Errorf("NewType = %v, want receipt", c.NewType)
	}

	t.Run("unknown file is rejected", func(t *testing.T) {
		if err := reg.RecordCorrection("nope", "receipt", "", now); err == nil {
			t.Error("RecordCorrection() expected error for unknown file, got nil")
		}
	})
}

func TestSQLiteRegistry_Runs(t *testing.T) {
	reg := newTestRegistry(t)

	run, err := reg.CreateRun("scan", "roots=/docs")
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID == 0 {
		t.Error("run ID not assigned")
	}
	if run.Status != "running" {
		t.Errorf("Status = %v, want running", run.Status)
	}

	if err := reg.FinishRun(run.ID, "completed"); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err := reg.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != "completed" {
		t.Errorf("Status = %v, want completed", runs[0].Status)
	}
	if !runs[0].FinishedAt.Valid {
		t.Error("FinishedAt not set")
	}
}

func TestSQLiteRegistry_Stats(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertScanned([]*ft.FileRecord{
		draft("file-1", "/docs/a.txt", 10, "qh1"),
		draft("file-2", "/docs/b.txt", 10, "qh1"),
	}); err != nil {
		t.Fatalf("UpsertScanned() error = %v", err)
	}
	group := &ft.DuplicateGroup{
		ID:              "group-1",
		CanonicalFileID: "file-1",
		DetectionMethod: ft.DetectionFullHash,
		MemberFileIDs:   []string{"file-1", "file-2"},
		CreatedAt:       time.Now().UTC(),
	}
	if err := reg.ApplyDuplicateGroups([]*ft.DuplicateGroup{group}); err != nil {
		t.Fatalf("ApplyDuplicateGroups() error = %v", err)
	}

	stats, err := reg.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", stats.TotalFiles)
	}
	if stats.DuplicateFiles != 1 {
		t.Errorf("DuplicateFiles = %d, want 1", stats.DuplicateFiles)
	}
	if stats.TotalBytes != 20 {
		t.Errorf("TotalBytes = %d, want 20", stats.TotalBytes)
	}
	if stats.DuplicateBytes != 10 {
		t.Errorf("DuplicateBytes = %d, want 10", stats.DuplicateBytes)
	}
}
