package ft

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"ft-go/internal/hash"
)

// scanDraft carries one walked file from a hashing worker to the batch
// collector. info is nil for entries the walker could not read.
type scanDraft struct {
	path string
	info fs.FileInfo
	err  error
}

// Scan walks the given roots and upserts a draft record for every regular
// file not matched by an exclusion pattern. Quick hashes are computed by a
// worker pool; full hashes are left for the analyzer to compute lazily.
// Unreadable files become error-state records and the scan continues.
// Cancelling ctx flushes the in-flight batch and returns, leaving the
// registry valid and the scan resumable.
func (s *FTService) Scan(ctx context.Context, roots []string, exclusions []string, progress *ScanProgress) (*ScanResult, error) {
	if progress == nil {
		progress = &ScanProgress{}
	}
	exclude := NewExcludeMatcher(exclusions)

	paths := make(chan scanDraft)
	drafts := make(chan *FileRecord)

	// Hashing workers: disjoint files, one sequential stream read each.
	var wg sync.WaitGroup
	for i := 0; i < s.tuning.ScanWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range paths {
				rec := s.buildDraft(d, progress)
				if rec == nil {
					continue
				}
				select {
				case drafts <- rec:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Collector: batches registry writes to bound lock contention.
	var (
		collectorWg sync.WaitGroup
		collectErr  error
	)
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		batch := make([]*FileRecord, 0, s.tuning.ScanBatchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			created, err := s.registry.UpsertScanned(batch)
			if err != nil {
				if collectErr == nil {
					collectErr = err
				}
				s.logger.Error("scan batch write failed", "error", err)
			} else {
				progress.RecordsCreated.Add(int64(created))
			}
			batch = batch[:0]
		}
		for rec := range drafts {
			batch = append(batch, rec)
			if len(batch) >= s.tuning.ScanBatchSize {
				flush()
			}
		}
		flush()
	}()

	walkErr := s.walkRoots(ctx, roots, exclude, paths, progress)

	close(paths)
	wg.Wait()
	close(drafts)
	collectorWg.Wait()

	result := progress.Snapshot()
	s.logger.Info("scan finished",
		"discovered", result.Discovered,
		"created", result.Created,
		"errors", result.Errors)

	if walkErr != nil {
		return &result, walkErr
	}
	if collectErr != nil {
		return &result, fmt.Errorf("writing scan results: %w", collectErr)
	}
	return &result, nil
}

// walkRoots feeds discovered files into the worker channel, honoring
// cancellation between entries.
func (s *FTService) walkRoots(ctx context.Context, roots []string, exclude *ExcludeMatcher, paths chan<- scanDraft, progress *ScanProgress) error {
	for _, raw := range roots {
		root, err := s.fsmgr.Resolve(raw)
		if err != nil {
			return fmt.Errorf("resolving scan root %s: %w", raw, err)
		}
		if !root.IsDir() {
			return fmt.Errorf("scan root is not a directory: %s", root.String())
		}

		err = s.fsmgr.Walk(root.String(), exclude, func(path string, info fs.FileInfo) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			progress.FilesDiscovered.Add(1)
			var walkErr error
			if info == nil {
				walkErr = fmt.Errorf("unreadable entry")
			}
			select {
			case paths <- scanDraft{path: path, info: info, err: walkErr}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", root.String(), err)
		}
	}
	return nil
}

// buildDraft turns one walked entry into a draft record, quick-hashing the
// leading bytes. Failures produce an error-state record instead of aborting
// the scan.
func (s *FTService) buildDraft(d scanDraft, progress *ScanProgress) *FileRecord {
	now := s.clock.Now().UTC()
	rec := &FileRecord{
		ID:           s.idgen.New(),
		OriginalPath: d.path,
		State:        StatePending,
		FirstSeenAt:  now,
		ModifiedAt:   now,
	}

	fail := func(cause error) *FileRecord {
		progress.Errors.Add(1)
		s.logger.Warn("file skipped", "path", d.path, "error", cause)
		rec.State = StateError
		rec.LastError = sql.NullString{String: cause.Error(), Valid: true}
		return rec
	}

	if d.err != nil {
		return fail(d.err)
	}

	rec.SizeBytes = d.info.Size()
	rec.ModifiedAt = d.info.ModTime().UTC()
	if atime, ok := s.fsmgr.Atime(d.info); ok {
		rec.AccessedAt = sql.NullTime{Time: atime.UTC(), Valid: true}
	}

	f, err := s.fsmgr.Open(d.path)
	if err != nil {
		return fail(fmt.Errorf("opening: %w", err))
	}
	defer f.Close()

	quick, err := hash.Quick(f)
	if err != nil {
		return fail(fmt.Errorf("hashing: %w", err))
	}
	rec.QuickHash = sql.NullString{String: quick, Valid: true}

	progress.FilesHashed.Add(1)
	if rec.SizeBytes < hash.QuickWindow {
		progress.BytesRead.Add(rec.SizeBytes)
	} else {
		progress.BytesRead.Add(hash.QuickWindow)
	}
	return rec
}
