package ft_test

import (
	"context"
	"testing"

	"ft-go/internal/ft"
)

func TestScan(t *testing.T) {
	t.Run("registers every regular file", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		e.write("docs/a.txt", "alpha")
		e.write("docs/sub/b.txt", "beta")
		e.write("c.txt", "gamma")

		result, err := e.svc.Scan(context.Background(), []string{e.root}, nil, nil)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if result.Discovered != 3 {
			t.Errorf("Discovered = %d, want 3", result.Discovered)
		}
		if result.Created != 3 {
			t.Errorf("Created = %d, want 3", result.Created)
		}
		if result.Errors != 0 {
			t.Errorf("Errors = %d, want 0", result.Errors)
		}

		rec := e.record(e.write("docs/a.txt", "alpha"))
		if rec.State != ft.StatePending {
			t.Errorf("State = %v, want pending", rec.State)
		}
		if !rec.QuickHash.Valid {
			t.Error("quick hash not recorded")
		}
		if rec.ContentHash.Valid {
			t.Error("full hash computed eagerly; it should be lazy")
		}
		if rec.SizeBytes != int64(len("alpha")) {
			t.Errorf("SizeBytes = %d, want %d", rec.SizeBytes, len("alpha"))
		}
	})

	t.Run("rescanning unchanged files creates no records", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		e.write("a.txt", "alpha")
		e.write("b.txt", "beta")

		if _, err := e.svc.Scan(context.Background(), []string{e.root}, nil, nil); err != nil {
			t.Fatalf("first Scan() error = %v", err)
		}
		second, err := e.svc.Scan(context.Background(), []string{e.root}, nil, nil)
		if err != nil {
			t.Fatalf("second Scan() error = %v", err)
		}
		if second.Created != 0 {
			t.Errorf("Created = %d, want 0", second.Created)
		}
	})

	t.Run("changed content creates a fresh record", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		path := e.write("a.txt", "alpha")

		if _, err := e.svc.Scan(context.Background(), []string{e.root}, nil, nil); err != nil {
			t.Fatalf("first Scan() error = %v", err)
		}
		e.write("a.txt", "alpha v2 with different bytes")
		second, err := e.svc.Scan(context.Background(), []string{e.root}, nil, nil)
		if err != nil {
			t.Fatalf("second Scan() error = %v", err)
		}
		if second.Created != 1 {
			t.Errorf("Created = %d, want 1", second.Created)
		}

		all, err := e.reg.AllFiles()
		if err != nil {
			t.Fatalf("AllFiles() error = %v", err)
		}
		count := 0
		for _, rec := range all {
			if rec.OriginalPath == path {
				count++
			}
		}
		if count != 2 {
			t.Errorf("records for %s = %d, want 2", path, count)
		}
	})

	t.Run("exclusion patterns are honored", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		e.write("keep.txt", "keep")
		e.write("skip.tmp", "skip")
		e.write("node_modules/dep.js", "dep")

		result, err := e.svc.Scan(context.Background(), []string{e.root}, []string{"*.tmp", "node_modules"}, nil)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if result.Created != 1 {
			t.Errorf("Created = %d, want 1", result.Created)
		}
	})

	t.Run("cancelled context stops the scan without corrupting state", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		e.write("a.txt", "alpha")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.svc.Scan(ctx, []string{e.root}, nil, nil)
		if err == nil {
			t.Fatal("Scan() with cancelled context expected error, got nil")
		}

		// The registry is still usable and a retry completes.
		result, err := e.svc.Scan(context.Background(), []string{e.root}, nil, nil)
		if err != nil {
			t.Fatalf("retry Scan() error = %v", err)
		}
		if result.Created+result.Errors == 0 && result.Discovered == 0 {
			t.Error("retry scan found nothing")
		}
	})

	t.Run("missing root fails", func(t *testing.T) {
		e := newEnv(t, ft.Tuning{})
		if _, err := e.svc.Scan(context.Background(), []string{e.root + "/nope"}, nil, nil); err == nil {
			t.Error("Scan() on missing root expected error, got nil")
		}
	})
}
