package ft_test

import (
	"context"
	"path/filepath"
	"testing"

	"ft-go/internal/ft"
)

func invoiceStructure() *ft.Structure {
	return &ft.Structure{
		Types: map[string]ft.TypeRule{
			"financial_invoice": {Template: "Financial/Invoices/{YYYY}/{MM}/{filename}"},
			"receipt":           {Template: "Financial/Receipts/{filename}"},
		},
	}
}

func TestBuildPlan(t *testing.T) {
	t.Run("plans one move per classified file", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		path := e.write("inbox/invoice.pdf", "invoice bytes")
		scanAll(t, e)
		e.classify(path, "financial_invoice")

		target := filepath.Join(e.root, "organized")
		plan, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), target, ft.PlanOptions{})
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		if plan.Approved {
			t.Error("new plans must not be pre-approved")
		}
		if len(plan.Actions) != 1 {
			t.Fatalf("actions = %d, want 1", len(plan.Actions))
		}

		action := plan.Actions[0]
		if action.Type != ft.ActionMove {
			t.Errorf("Type = %v, want move", action.Type)
		}
		if action.SourcePath != path {
			t.Errorf("SourcePath = %v, want %v", action.SourcePath, path)
		}
		// No extracted date: fallback to discovery year/month, flagged.
		want := filepath.Join(target, "Financial/Invoices/2024/01/invoice.pdf")
		if action.TargetPath != want {
			t.Errorf("TargetPath = %v, want %v", action.TargetPath, want)
		}
		if !action.RequiresReview {
			t.Error("fallback substitution must flag the action for review")
		}
	})

	t.Run("pending and duplicate records generate no moves", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		e.write("inbox/pending.pdf", "never classified")
		dupA := e.write("inbox/dup.pdf", "identical")
		dupB := e.write("elsewhere/dup.pdf", "identical")
		scanAll(t, e)
		if _, err := e.svc.AnalyzeDuplicates(context.Background(), &ft.Structure{}); err != nil {
			t.Fatalf("AnalyzeDuplicates() error = %v", err)
		}
		e.classify(dupA, "receipt")
		e.classify(dupB, "receipt")

		plan, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), filepath.Join(e.root, "organized"), ft.PlanOptions{})
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		// Only the canonical copy of the pair moves.
		if len(plan.Actions) != 1 {
			t.Fatalf("actions = %d, want 1", len(plan.Actions))
		}
	})

	t.Run("collisions are renamed deterministically", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("from-a/doc.pdf", "contents a")
		b := e.write("from-b/doc.pdf", "contents b are longer")
		scanAll(t, e)
		e.classify(a, "receipt")
		e.classify(b, "receipt")

		target := filepath.Join(e.root, "organized")
		plan, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), target, ft.PlanOptions{})
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		if len(plan.Actions) != 2 {
			t.Fatalf("actions = %d, want 2", len(plan.Actions))
		}

		targets := map[string]bool{}
		for _, action := range plan.Actions {
			if targets[action.TargetPath] {
				t.Fatalf("duplicate target path %s", action.TargetPath)
			}
			targets[action.TargetPath] = true
		}
		if !targets[filepath.Join(target, "Financial/Receipts/doc.pdf")] {
			t.Error("plain target missing")
		}
		if !targets[filepath.Join(target, "Financial/Receipts/doc_1.pdf")] {
			t.Error("renamed target doc_1.pdf missing")
		}
	})

	t.Run("files already in place generate nothing", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		target := filepath.Join(e.root, "organized")
		path := e.write("organized/Financial/Receipts/done.pdf", "settled")
		scanAll(t, e)
		e.classify(path, "receipt")

		plan, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), target, ft.PlanOptions{})
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		if len(plan.Actions) != 0 {
			t.Errorf("actions = %d, want 0 for correctly placed file", len(plan.Actions))
		}
	})

	t.Run("unknown document type without default is skipped", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		path := e.write("inbox/odd.bin", "odd")
		scanAll(t, e)
		e.classify(path, "mystery_type")

		plan, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), filepath.Join(e.root, "organized"), ft.PlanOptions{})
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		if len(plan.Actions) != 0 {
			t.Errorf("actions = %d, want 0", len(plan.Actions))
		}
	})

	t.Run("malformed template aborts the invocation", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		path := e.write("inbox/x.pdf", "x")
		scanAll(t, e)
		e.classify(path, "broken")

		structure := &ft.Structure{Types: map[string]ft.TypeRule{
			"broken": {Template: "Oops/{YYYY/{filename}"},
		}}
		_, err := e.svc.BuildPlan(context.Background(), structure, filepath.Join(e.root, "organized"), ft.PlanOptions{})
		if err == nil {
			t.Fatal("BuildPlan() with malformed template expected error, got nil")
		}
	})

	t.Run("planning twice yields an empty second plan", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		path := e.write("inbox/invoice.pdf", "invoice bytes")
		scanAll(t, e)
		e.classify(path, "financial_invoice")
		target := filepath.Join(e.root, "organized")

		first, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), target, ft.PlanOptions{})
		if err != nil {
			t.Fatalf("first BuildPlan() error = %v", err)
		}
		if len(first.Actions) != 1 {
			t.Fatalf("first plan actions = %d, want 1", len(first.Actions))
		}
		if err := e.reg.ApprovePlan(first.ID); err != nil {
			t.Fatalf("ApprovePlan() error = %v", err)
		}
		if _, err := e.svc.Execute(context.Background(), first.ID); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		second, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), target, ft.PlanOptions{})
		if err != nil {
			t.Fatalf("second BuildPlan() error = %v", err)
		}
		if len(second.Actions) != 0 {
			t.Errorf("second plan actions = %d, want 0", len(second.Actions))
		}
	})

	t.Run("duplicates can be planned for archiving", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		a := e.write("one/same.txt", "duplicated body")
		b := e.write("two/same.txt", "duplicated body")
		scanAll(t, e)
		if _, err := e.svc.AnalyzeDuplicates(context.Background(), &ft.Structure{}); err != nil {
			t.Fatalf("AnalyzeDuplicates() error = %v", err)
		}

		plan, err := e.svc.BuildPlan(context.Background(), invoiceStructure(), filepath.Join(e.root, "organized"),
			ft.PlanOptions{DuplicateAction: ft.ActionArchive})
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		if len(plan.Actions) != 1 {
			t.Fatalf("actions = %d, want 1 archive action", len(plan.Actions))
		}
		action := plan.Actions[0]
		if action.Type != ft.ActionArchive {
			t.Errorf("Type = %v, want archive", action.Type)
		}
		dup := e.record(a)
		if !dup.IsDuplicate {
			dup = e.record(b)
		}
		if action.FileID != dup.ID {
			t.Errorf("archive action targets %s, want the duplicate %s", action.FileID, dup.ID)
		}
	})
}
