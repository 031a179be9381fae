package ft_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ft-go/internal/fs"
	"ft-go/internal/ft"
	"ft-go/internal/testutil"
)

// env wires a service against a real in-memory registry, a real filesystem
// under a temp dir, and an in-memory vault.
type env struct {
	t     *testing.T
	svc   *ft.FTService
	reg   ft.Registry
	vault ft.Vault
	clock *testutil.StubClock
	root  string
}

func newEnv(t *testing.T, tuning ft.Tuning) *env {
	return newEnvWith(t, tuning, nil)
}

// newEnvWith is newEnv with a classifier collaborator plugged in.
func newEnvWith(t *testing.T, tuning ft.Tuning, classifier ft.Classifier) *env {
	t.Helper()

	reg := testutil.NewTestRegistry(t)
	vault := testutil.NewTestVault()
	clock := testutil.FixedClock()
	svc := ft.NewFTService(reg, fs.NewOSFilesystemManager(), vault, nil,
		classifier, nil, ft.NewNopLogger(), clock, testutil.NewStubIDGenerator(), tuning)

	return &env{
		t:     t,
		svc:   svc,
		reg:   reg,
		vault: vault,
		clock: clock,
		root:  t.TempDir(),
	}
}

// write creates a file under the scratch root and returns its absolute path.
func (e *env) write(rel string, content string) string {
	e.t.Helper()
	path := filepath.Join(e.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.t.Fatalf("creating parent dirs: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.t.Fatalf("writing %s: %v", rel, err)
	}
	return path
}

// record looks up the newest registry record for an absolute path.
func (e *env) record(path string) *ft.FileRecord {
	e.t.Helper()
	rec, err := e.reg.FindByOriginalPath(path)
	if err != nil {
		e.t.Fatalf("FindByOriginalPath(%s): %v", path, err)
	}
	if rec == nil {
		e.t.Fatalf("no record for %s", path)
	}
	return rec
}

// classify marks a scanned file as classified with the given type.
func (e *env) classify(path string, docType string) *ft.FileRecord {
	e.t.Helper()
	rec := e.record(path)
	if err := e.reg.UpdateClassification(rec.ID, docType, 0.9, ft.MethodPattern); err != nil {
		e.t.Fatalf("UpdateClassification: %v", err)
	}
	return rec
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// chmodNoRead drops all permissions on path. It reports an error when the
// file remains readable (for instance when tests run as root), so callers
// can skip instead of asserting on a permission model that isn't there.
func chmodNoRead(path string) error {
	if err := os.Chmod(path, 0); err != nil {
		return err
	}
	if f, err := os.Open(path); err == nil {
		f.Close()
		return fmt.Errorf("file still readable after chmod 0")
	}
	return nil
}

func chmodRestore(path string) {
	os.Chmod(path, 0644)
}
