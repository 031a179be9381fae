package ft_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ft-go/internal/ft"
)

// organize scans, classifies and executes a plan, returning the canonical
// root the files now live under.
func organize(t *testing.T, e *env, paths ...string) string {
	t.Helper()
	plan, target := planMoves(t, e, paths...)
	approve(t, e, plan.ID)
	result, err := e.svc.Execute(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("setup execution failed %d actions", result.Failed)
	}
	return target
}

func TestReorganize(t *testing.T) {
	t.Run("a converged tree plans nothing twice in a row", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		b := e.write("inbox/b.pdf", "b body, distinct")
		root := organize(t, e, a, b)

		for run := 1; run <= 2; run++ {
			result, err := e.svc.Reorganize(context.Background(), root, invoiceStructure(), false)
			if err != nil {
				t.Fatalf("Reorganize() run %d error = %v", run, err)
			}
			if len(result.Plan.Actions) != 0 {
				t.Errorf("run %d planned %d actions, want 0", run, len(result.Plan.Actions))
			}
			if result.Sync.Discovered != 0 || result.Sync.ExternalMoves != 0 || result.Sync.Missing != 0 {
				t.Errorf("run %d sync = %+v, want no drift", run, result.Sync)
			}
			if result.Sync.Errors != 0 {
				t.Errorf("run %d sync errors = %d, want 0", run, result.Sync.Errors)
			}
		}
	})

	t.Run("hand-moved file is recorded and put back", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		root := organize(t, e, a)

		rec := e.record(a)
		canonical := rec.CanonicalPath.String
		stray := filepath.Join(root, "misplaced", "a.pdf")
		if err := os.MkdirAll(filepath.Dir(stray), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(canonical, stray); err != nil {
			t.Fatalf("moving file by hand: %v", err)
		}

		result, err := e.svc.Reorganize(context.Background(), root, invoiceStructure(), false)
		if err != nil {
			t.Fatalf("Reorganize() error = %v", err)
		}
		if result.Sync.ExternalMoves != 1 {
			t.Fatalf("ExternalMoves = %d, want 1", result.Sync.ExternalMoves)
		}
		if result.Sync.Discovered != 0 {
			t.Errorf("Discovered = %d, hand-moved file must not become a new record", result.Sync.Discovered)
		}
		if !exists(canonical) {
			t.Error("file not moved back to its canonical path")
		}
		if exists(stray) {
			t.Error("stray copy left behind")
		}

		// The hand move is drift, not a system move, so it does not inflate
		// the move counter. The corrective move does.
		after, err := e.reg.GetFile(rec.ID)
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if after.MoveCount != rec.MoveCount+1 {
			t.Errorf("MoveCount = %d, want %d", after.MoveCount, rec.MoveCount+1)
		}

		history, err := e.reg.ListMoveHistory(rec.ID)
		if err != nil {
			t.Fatalf("ListMoveHistory() error = %v", err)
		}
		var external int
		for _, h := range history {
			if h.External {
				external++
			}
		}
		if external != 1 {
			t.Errorf("external history entries = %d, want 1", external)
		}
	})

	t.Run("unknown files are registered where they stand", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		root := organize(t, e, a)

		dropped := filepath.Join(root, "Misc", "dropped.txt")
		if err := os.MkdirAll(filepath.Dir(dropped), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(dropped, []byte("never scanned"), 0o644); err != nil {
			t.Fatal(err)
		}

		result, err := e.svc.Reorganize(context.Background(), root, invoiceStructure(), false)
		if err != nil {
			t.Fatalf("Reorganize() error = %v", err)
		}
		if result.Sync.Discovered != 1 {
			t.Fatalf("Discovered = %d, want 1", result.Sync.Discovered)
		}

		rec := e.record(dropped)
		if rec.State != ft.StateOrganized {
			t.Errorf("State = %v, want organized", rec.State)
		}
		if !rec.ContentHash.Valid {
			t.Error("discovered file has no content hash")
		}
		// Unclassified, so it stays where it was found.
		if !exists(dropped) {
			t.Error("unclassified discovery was moved")
		}
	})

	t.Run("deleted files are marked missing", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		b := e.write("inbox/b.pdf", "b body, distinct")
		root := organize(t, e, a, b)

		rec := e.record(a)
		if err := os.Remove(rec.CanonicalPath.String); err != nil {
			t.Fatal(err)
		}

		result, err := e.svc.Reorganize(context.Background(), root, invoiceStructure(), false)
		if err != nil {
			t.Fatalf("Reorganize() error = %v", err)
		}
		if result.Sync.Missing != 1 {
			t.Fatalf("Missing = %d, want 1", result.Sync.Missing)
		}

		after, err := e.reg.GetFile(rec.ID)
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if after.State != ft.StateMissing {
			t.Errorf("State = %v, want missing", after.State)
		}
	})

	t.Run("missing file that reappears elsewhere is revived", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		root := organize(t, e, a)

		rec := e.record(a)
		canonical := rec.CanonicalPath.String
		stashed := filepath.Join(e.root, "outside", "a.pdf")
		if err := os.MkdirAll(filepath.Dir(stashed), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(canonical, stashed); err != nil {
			t.Fatal(err)
		}

		if _, err := e.svc.SyncRegistry(context.Background(), root); err != nil {
			t.Fatalf("SyncRegistry() error = %v", err)
		}
		if got := mustGet(t, e, rec.ID).State; got != ft.StateMissing {
			t.Fatalf("State = %v, want missing", got)
		}

		// Bring it back inside the canonical root and sync again.
		if err := os.Rename(stashed, canonical); err != nil {
			t.Fatal(err)
		}
		result, err := e.svc.SyncRegistry(context.Background(), root)
		if err != nil {
			t.Fatalf("SyncRegistry() error = %v", err)
		}
		if result.Missing != 0 {
			t.Errorf("Missing = %d, want 0", result.Missing)
		}
		if got := mustGet(t, e, rec.ID).State; got != ft.StateOrganized {
			t.Errorf("State = %v, want organized again", got)
		}
	})

	t.Run("dry run reports the plan without touching disk", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		scanAll(t, e)
		e.classify(a, "receipt")
		root := filepath.Join(e.root, "organized")
		if err := os.MkdirAll(root, 0o755); err != nil {
			t.Fatal(err)
		}

		result, err := e.svc.Reorganize(context.Background(), root, invoiceStructure(), true)
		if err != nil {
			t.Fatalf("Reorganize() error = %v", err)
		}
		if !result.DryRun {
			t.Error("DryRun flag not set")
		}
		if len(result.Plan.Actions) != 1 {
			t.Fatalf("planned actions = %d, want 1", len(result.Plan.Actions))
		}
		if result.Execution != nil {
			t.Error("dry run must not execute")
		}
		if !exists(a) {
			t.Error("dry run moved a file")
		}
	})

	t.Run("corrective moves prune the directories they empty", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("inbox/a.pdf", "a body")
		root := organize(t, e, a)

		rec := e.record(a)
		canonical := rec.CanonicalPath.String
		stray := filepath.Join(root, "Old", "Depths", "a.pdf")
		if err := os.MkdirAll(filepath.Dir(stray), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(canonical, stray); err != nil {
			t.Fatal(err)
		}

		result, err := e.svc.Reorganize(context.Background(), root, invoiceStructure(), false)
		if err != nil {
			t.Fatalf("Reorganize() error = %v", err)
		}
		if result.PrunedDirs == 0 {
			t.Error("emptied directories were not pruned")
		}
		if exists(filepath.Join(root, "Old")) {
			t.Error("empty directory Old/ survived the prune")
		}
	})
}

func mustGet(t *testing.T, e *env, id string) *ft.FileRecord {
	t.Helper()
	rec, err := e.reg.GetFile(id)
	if err != nil {
		t.Fatalf("GetFile(%s) error = %v", id, err)
	}
	if rec == nil {
		t.Fatalf("GetFile(%s) = nil", id)
	}
	return rec
}
