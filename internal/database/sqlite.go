package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ft-go/internal/database/migrations"
	"ft-go/internal/ft"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const fileRecordColumns = `id, original_path, canonical_path, size_bytes, quick_hash, content_hash,
	state, document_type, confidence, classification_method, is_duplicate, duplicate_of,
	move_count, requires_review, first_seen_at, modified_at, accessed_at, last_moved_at, last_error`

// SQLiteRegistry implements the Registry interface using SQLite.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// NewSQLiteRegistry opens (or creates) a registry database at path and brings
// its schema up to date. path can be a file path or ":memory:" for an
// in-memory registry.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating registry schema: %w", err)
	}

	return &SQLiteRegistry{db: db, path: path}, nil
}

// NewSQLiteRegistryFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured
// and the schema is current.
func NewSQLiteRegistryFromDB(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; a one-connection pool avoids lock
	// contention and keeps an in-memory database alive between queries.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (s *SQLiteRegistry) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// File record operations

func (s *SQLiteRegistry) UpsertScanned(records []*ft.FileRecord) (int, error) {
	created := 0
	err := s.withTx(func(tx *sql.Tx) error {
		for _, rec := range records {
			existing, err := findByOriginalPathTx(tx, rec.OriginalPath)
			if err != nil {
				return err
			}
			if existing != nil && existing.SizeBytes == rec.SizeBytes &&
				existing.QuickHash.Valid && rec.QuickHash.Valid &&
				existing.QuickHash.String == rec.QuickHash.String {
				// Unchanged since last scan; just refresh the timestamps.
				_, err := tx.Exec(
					"UPDATE file_records SET modified_at = ?, accessed_at = ? WHERE id = ?",
					rec.ModifiedAt, rec.AccessedAt, existing.ID)
				if err != nil {
					return fmt.Errorf("refreshing record %s: %w", existing.ID, err)
				}
				continue
			}
			if err := insertFileRecordTx(tx, rec); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func insertFileRecordTx(tx *sql.Tx, rec *ft.FileRecord) error {
	_, err := tx.Exec(`INSERT INTO file_records (`+fileRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OriginalPath, rec.CanonicalPath, rec.SizeBytes, rec.QuickHash, rec.ContentHash,
		rec.State, rec.DocumentType, rec.Confidence, rec.Method, rec.IsDuplicate, rec.DuplicateOf,
		rec.MoveCount, rec.RequiresReview, rec.FirstSeenAt, rec.ModifiedAt, rec.AccessedAt,
		rec.LastMovedAt, rec.LastError)
	if err != nil {
		return fmt.Errorf("inserting file record %s: %w", rec.OriginalPath, err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(row rowScanner) (*ft.FileRecord, error) {
	var rec ft.FileRecord
	err := row.Scan(
		&rec.ID, &rec.OriginalPath, &rec.CanonicalPath, &rec.SizeBytes, &rec.QuickHash,
		&rec.ContentHash, &rec.State, &rec.DocumentType, &rec.Confidence, &rec.Method,
		&rec.IsDuplicate, &rec.DuplicateOf, &rec.MoveCount, &rec.RequiresReview,
		&rec.FirstSeenAt, &rec.ModifiedAt, &rec.AccessedAt, &rec.LastMovedAt, &rec.LastError)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteRegistry) GetFile(id string) (*ft.FileRecord, error) {
	row := s.db.QueryRow("SELECT "+fileRecordColumns+" FROM file_records WHERE id = ?", id)
	rec, err := scanFileRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting file %s: %w", id, err)
	}
	return rec, nil
}

func findByOriginalPathTx(tx *sql.Tx, path string) (*ft.FileRecord, error) {
	row := tx.QueryRow("SELECT "+fileRecordColumns+` FROM file_records
		WHERE original_path = ? ORDER BY first_seen_at DESC, id DESC LIMIT 1`, path)
	rec, err := scanFileRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding record by path %s: %w", path, err)
	}
	return rec, nil
}

func (s *SQLiteRegistry) FindByOriginalPath(path string) (*ft.FileRecord, error) {
	row := s.db.QueryRow("SELECT "+fileRecordColumns+` FROM file_records
		WHERE original_path = ? ORDER BY first_seen_at DESC, id DESC LIMIT 1`, path)
	rec, err := scanFileRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding record by path %s: %w", path, err)
	}
	return rec, nil
}

func (s *SQLiteRegistry) queryFileRecords(query string, args ...any) ([]*ft.FileRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying file records: %w", err)
	}
	defer rows.Close()

	var records []*ft.FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file records: %w", err)
	}
	return records, nil
}

func (s *SQLiteRegistry) FindByState(state ft.FileState) ([]*ft.FileRecord, error) {
	return s.queryFileRecords(
		"SELECT "+fileRecordColumns+" FROM file_records WHERE state = ? ORDER BY id", state)
}

func (s *SQLiteRegistry) FindByContentHash(hash string) ([]*ft.FileRecord, error) {
	return s.queryFileRecords(
		"SELECT "+fileRecordColumns+" FROM file_records WHERE content_hash = ? ORDER BY id", hash)
}

func (s *SQLiteRegistry) AllFiles() ([]*ft.FileRecord, error) {
	return s.queryFileRecords("SELECT " + fileRecordColumns + " FROM file_records ORDER BY id")
}

func (s *SQLiteRegistry) SetContentHash(id string, hash string) error {
	if _, err := s.db.Exec("UPDATE file_records SET content_hash = ? WHERE id = ?", hash, id); err != nil {
		return fmt.Errorf("setting content hash for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteRegistry) SetFileError(id string, cause string) error {
	_, err := s.db.Exec(
		"UPDATE file_records SET state = ?, last_error = ? WHERE id = ?",
		ft.StateError, cause, id)
	if err != nil {
		return fmt.Errorf("recording error for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteRegistry) UpdateClassification(id string, docType string, confidence float64, method string) error {
	_, err := s.db.Exec(`UPDATE file_records
		SET document_type = ?, confidence = ?, classification_method = ?, state = ?
		WHERE id = ?`,
		docType, confidence, method, ft.StateClassified, id)
	if err != nil {
		return fmt.Errorf("updating classification for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteRegistry) SetFileState(id string, state ft.FileState) error {
	if _, err := s.db.Exec("UPDATE file_records SET state = ? WHERE id = ?", state, id); err != nil {
		return fmt.Errorf("setting state for %s: %w", id, err)
	}
	return nil
}

// Duplicate operations

func (s *SQLiteRegistry) ApplyDuplicateGroups(groups []*ft.DuplicateGroup) error {
	return s.withTx(func(tx *sql.Tx) error {
		// Rewrite the grouping wholesale; member flags are derived state.
		if _, err := tx.Exec("DELETE FROM duplicate_group_members"); err != nil {
			return fmt.Errorf("clearing duplicate group members: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM duplicate_groups"); err != nil {
			return fmt.Errorf("clearing duplicate groups: %w", err)
		}
		_, err := tx.Exec(`UPDATE file_records
			SET is_duplicate = 0, duplicate_of = NULL,
			    state = CASE WHEN state = ? THEN ? ELSE state END
			WHERE is_duplicate = 1 OR duplicate_of IS NOT NULL`,
			ft.StateDuplicate, ft.StateClassified)
		if err != nil {
			return fmt.Errorf("resetting duplicate flags: %w", err)
		}

		for _, group := range groups {
			_, err := tx.Exec(`INSERT INTO duplicate_groups (id, canonical_file_id, detection_method, created_at)
				VALUES (?, ?, ?, ?)`,
				group.ID, group.CanonicalFileID, group.DetectionMethod, group.CreatedAt)
			if err != nil {
				return fmt.Errorf("inserting duplicate group %s: %w", group.ID, err)
			}
			for _, fileID := range group.MemberFileIDs {
				_, err := tx.Exec(
					"INSERT INTO duplicate_group_members (group_id, file_id) VALUES (?, ?)",
					group.ID, fileID)
				if err != nil {
					return fmt.Errorf("inserting group member %s: %w", fileID, err)
				}
				if fileID == group.CanonicalFileID {
					continue
				}
				_, err = tx.Exec(`UPDATE file_records
					SET is_duplicate = 1, duplicate_of = ?, state = ?
					WHERE id = ?`,
					group.CanonicalFileID, ft.StateDuplicate, fileID)
				if err != nil {
					return fmt.Errorf("marking duplicate %s: %w", fileID, err)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteRegistry) ListDuplicateGroups() ([]*ft.DuplicateGroup, error) {
	rows, err := s.db.Query(`SELECT id, canonical_file_id, detection_method, created_at
		FROM duplicate_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []*ft.DuplicateGroup
	for rows.Next() {
		var g ft.DuplicateGroup
		if err := rows.Scan(&g.ID, &g.CanonicalFileID, &g.DetectionMethod, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning duplicate group: %w", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating duplicate groups: %w", err)
	}

	for _, g := range groups {
		memberRows, err := s.db.Query(
			"SELECT file_id FROM duplicate_group_members WHERE group_id = ? ORDER BY file_id", g.ID)
		if err != nil {
			return nil, fmt.Errorf("listing members of group %s: %w", g.ID, err)
		}
		for memberRows.Next() {
			var fileID string
			if err := memberRows.Scan(&fileID); err != nil {
				memberRows.Close()
				return nil, fmt.Errorf("scanning group member: %w", err)
			}
			g.MemberFileIDs = append(g.MemberFileIDs, fileID)
		}
		if err := memberRows.Err(); err != nil {
			memberRows.Close()
			return nil, fmt.Errorf("iterating group members: %w", err)
		}
		memberRows.Close()
	}
	return groups, nil
}

func (s *SQLiteRegistry) AddNearDuplicates(pairs []*ft.NearDuplicate) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, pair := range pairs {
			_, err := tx.Exec(`INSERT INTO near_duplicates (id, file_id_a, file_id_b, similarity, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				pair.ID, pair.FileIDA, pair.FileIDB, pair.Similarity, pair.CreatedAt)
			if err != nil {
				return fmt.Errorf("inserting near-duplicate %s: %w", pair.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteRegistry) ListNearDuplicates() ([]*ft.NearDuplicate, error) {
	rows, err := s.db.Query(`SELECT id, file_id_a, file_id_b, similarity, created_at
		FROM near_duplicates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing near-duplicates: %w", err)
	}
	defer rows.Close()

	var pairs []*ft.NearDuplicate
	for rows.Next() {
		var p ft.NearDuplicate
		if err := rows.Scan(&p.ID, &p.FileIDA, &p.FileIDB, &p.Similarity, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning near-duplicate: %w", err)
		}
		pairs = append(pairs, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating near-duplicates: %w", err)
	}
	return pairs, nil
}

// Plan operations

func (s *SQLiteRegistry) CreatePlan(plan *ft.MigrationPlan) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO migration_plans (id, created_at, approved, status)
			VALUES (?, ?, ?, ?)`,
			plan.ID, plan.CreatedAt, plan.Approved, plan.Status)
		if err != nil {
			return fmt.Errorf("inserting plan %s: %w", plan.ID, err)
		}
		for _, action := range plan.Actions {
			_, err := tx.Exec(`INSERT INTO migration_actions
				(id, plan_id, seq, file_id, source_path, target_path, action_type,
				 reason, requires_review, status, error, rollback_data)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				action.ID, action.PlanID, action.Seq, action.FileID, action.SourcePath,
				action.TargetPath, action.Type, action.Reason, action.RequiresReview,
				action.Status, action.Error, action.RollbackData)
			if err != nil {
				return fmt.Errorf("inserting action %s: %w", action.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteRegistry) GetPlan(id string) (*ft.MigrationPlan, error) {
	var plan ft.MigrationPlan
	row := s.db.QueryRow(
		"SELECT id, created_at, approved, status FROM migration_plans WHERE id = ?", id)
	if err := row.Scan(&plan.ID, &plan.CreatedAt, &plan.Approved, &plan.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting plan %s: %w", id, err)
	}

	rows, err := s.db.Query(`SELECT id, plan_id, seq, file_id, source_path, target_path,
		action_type, reason, requires_review, status, error, rollback_data
		FROM migration_actions WHERE plan_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("listing actions for plan %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a ft.MigrationAction
		err := rows.Scan(&a.ID, &a.PlanID, &a.Seq, &a.FileID, &a.SourcePath, &a.TargetPath,
			&a.Type, &a.Reason, &a.RequiresReview, &a.Status, &a.Error, &a.RollbackData)
		if err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		plan.Actions = append(plan.Actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return &plan, nil
}

func (s *SQLiteRegistry) ListPlans(limit int) ([]*ft.MigrationPlan, error) {
	rows, err := s.db.Query(`SELECT id, created_at, approved, status
		FROM migration_plans ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var plans []*ft.MigrationPlan
	for rows.Next() {
		var p ft.MigrationPlan
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.Approved, &p.Status); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		plans = append(plans, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plans: %w", err)
	}
	return plans, nil
}

func (s *SQLiteRegistry) ApprovePlan(id string) error {
	res, err := s.db.Exec(
		"UPDATE migration_plans SET approved = 1, status = ? WHERE id = ? AND status = ?",
		ft.PlanApproved, id, ft.PlanPending)
	if err != nil {
		return fmt.Errorf("approving plan %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approving plan %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("plan %s is not pending approval", id)
	}
	return nil
}

func (s *SQLiteRegistry) SetPlanStatus(id string, status string) error {
	if _, err := s.db.Exec("UPDATE migration_plans SET status = ? WHERE id = ?", status, id); err != nil {
		return fmt.Errorf("setting status of plan %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteRegistry) FinishAction(actionID string, status string, cause string) error {
	actionErr := sql.NullString{String: cause, Valid: cause != ""}
	_, err := s.db.Exec(
		"UPDATE migration_actions SET status = ?, error = ? WHERE id = ?",
		status, actionErr, actionID)
	if err != nil {
		return fmt.Errorf("finishing action %s: %w", actionID, err)
	}
	return nil
}

func (s *SQLiteRegistry) SetActionRollbackData(actionID string, data string) error {
	_, err := s.db.Exec(
		"UPDATE migration_actions SET rollback_data = ? WHERE id = ?", data, actionID)
	if err != nil {
		return fmt.Errorf("setting rollback data for action %s: %w", actionID, err)
	}
	return nil
}

// Checkpoint operations

func (s *SQLiteRegistry) CreateCheckpoint(cp *ft.Checkpoint) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"INSERT INTO checkpoints (id, plan_id, created_at) VALUES (?, ?, ?)",
			cp.ID, cp.PlanID, cp.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting checkpoint %s: %w", cp.ID, err)
		}
		for _, entry := range cp.Entries {
			_, err := tx.Exec(`INSERT INTO checkpoint_entries
				(checkpoint_id, file_id, canonical_path, state, content_hash, document_type)
				VALUES (?, ?, ?, ?, ?, ?)`,
				cp.ID, entry.FileID, entry.CanonicalPath, entry.State, entry.ContentHash, entry.DocumentType)
			if err != nil {
				return fmt.Errorf("inserting checkpoint entry for %s: %w", entry.FileID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteRegistry) GetCheckpoint(id string) (*ft.Checkpoint, error) {
	var cp ft.Checkpoint
	row := s.db.QueryRow("SELECT id, plan_id, created_at FROM checkpoints WHERE id = ?", id)
	if err := row.Scan(&cp.ID, &cp.PlanID, &cp.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting checkpoint %s: %w", id, err)
	}
	if err := s.loadCheckpointEntries(&cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *SQLiteRegistry) FindCheckpointForPlan(planID string) (*ft.Checkpoint, error) {
	var cp ft.Checkpoint
	row := s.db.QueryRow(`SELECT id, plan_id, created_at FROM checkpoints
		WHERE plan_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, planID)
	if err := row.Scan(&cp.ID, &cp.PlanID, &cp.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding checkpoint for plan %s: %w", planID, err)
	}
	if err := s.loadCheckpointEntries(&cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *SQLiteRegistry) loadCheckpointEntries(cp *ft.Checkpoint) error {
	rows, err := s.db.Query(`SELECT file_id, canonical_path, state, content_hash, document_type
		FROM checkpoint_entries WHERE checkpoint_id = ? ORDER BY file_id`, cp.ID)
	if err != nil {
		return fmt.Errorf("listing entries of checkpoint %s: %w", cp.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ft.CheckpointEntry
		if err := rows.Scan(&e.FileID, &e.CanonicalPath, &e.State, &e.ContentHash, &e.DocumentType); err != nil {
			return fmt.Errorf("scanning checkpoint entry: %w", err)
		}
		cp.Entries = append(cp.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating checkpoint entries: %w", err)
	}
	return nil
}

// Move operations

func (s *SQLiteRegistry) RecordMove(fileID string, fromPath string, toPath string, planID string, at time.Time) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE file_records
			SET canonical_path = ?, state = ?, move_count = move_count + 1, last_moved_at = ?
			WHERE id = ?`,
			toPath, ft.StateOrganized, at, fileID)
		if err != nil {
			return fmt.Errorf("updating record %s after move: %w", fileID, err)
		}
		planRef := sql.NullString{String: planID, Valid: planID != ""}
		_, err = tx.Exec(`INSERT INTO move_history (file_id, from_path, to_path, plan_id, external, moved_at)
			VALUES (?, ?, ?, ?, 0, ?)`,
			fileID, fromPath, toPath, planRef, at)
		if err != nil {
			return fmt.Errorf("recording move of %s: %w", fileID, err)
		}
		return nil
	})
}

func (s *SQLiteRegistry) RecordExternalMove(fileID string, fromPath string, toPath string, at time.Time) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"UPDATE file_records SET canonical_path = ? WHERE id = ?", toPath, fileID)
		if err != nil {
			return fmt.Errorf("updating record %s after external move: %w", fileID, err)
		}
		_, err = tx.Exec(`INSERT INTO move_history (file_id, from_path, to_path, plan_id, external, moved_at)
			VALUES (?, ?, ?, NULL, 1, ?)`,
			fileID, fromPath, toPath, at)
		if err != nil {
			return fmt.Errorf("recording external move of %s: %w", fileID, err)
		}
		return nil
	})
}

func (s *SQLiteRegistry) RestoreCheckpointEntry(entry ft.CheckpointEntry) error {
	_, err := s.db.Exec(`UPDATE file_records
		SET canonical_path = ?, state = ?, last_error = NULL
		WHERE id = ?`,
		entry.CanonicalPath, entry.State, entry.FileID)
	if err != nil {
		return fmt.Errorf("restoring record %s: %w", entry.FileID, err)
	}
	return nil
}

func (s *SQLiteRegistry) ListMoveHistory(fileID string) ([]*ft.MoveEvent, error) {
	rows, err := s.db.Query(`SELECT id, file_id, from_path, to_path, plan_id, external, moved_at
		FROM move_history WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing move history for %s: %w", fileID, err)
	}
	defer rows.Close()

	var events []*ft.MoveEvent
	for rows.Next() {
		var e ft.MoveEvent
		if err := rows.Scan(&e.ID, &e.FileID, &e.FromPath, &e.ToPath, &e.PlanID, &e.External, &e.MovedAt); err != nil {
			return nil, fmt.Errorf("scanning move event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating move events: %w", err)
	}
	return events, nil
}

// Correction operations

func (s *SQLiteRegistry) RecordCorrection(fileID string, newType string, reason string, at time.Time) error {
	return s.withTx(func(tx *sql.Tx) error {
		var oldType sql.NullString
		err := tx.QueryRow("SELECT document_type FROM file_records WHERE id = ?", fileID).Scan(&oldType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("no record with id %s", fileID)
			}
			return fmt.Errorf("reading record %s: %w", fileID, err)
		}
		_, err = tx.Exec(`UPDATE file_records
			SET document_type = ?, confidence = 1.0, classification_method = ?, requires_review = 0
			WHERE id = ?`,
			newType, ft.MethodManual, fileID)
		if err != nil {
			return fmt.Errorf("applying correction to %s: %w", fileID, err)
		}
		_, err = tx.Exec(`INSERT INTO corrections (file_id, old_type, new_type, reason, corrected_at)
			VALUES (?, ?, ?, ?, ?)`,
			fileID, oldType, newType, reason, at)
		if err != nil {
			return fmt.Errorf("recording correction for %s: %w", fileID, err)
		}
		return nil
	})
}

func (s *SQLiteRegistry) ListCorrections() ([]*ft.Correction, error) {
	rows, err := s.db.Query(`SELECT id, file_id, old_type, new_type, reason, corrected_at
		FROM corrections ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	defer rows.Close()

	var corrections []*ft.Correction
	for rows.Next() {
		var c ft.Correction
		if err := rows.Scan(&c.ID, &c.FileID, &c.OldType, &c.NewType, &c.Reason, &c.CorrectedAt); err != nil {
			return nil, fmt.Errorf("scanning correction: %w", err)
		}
		corrections = append(corrections, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corrections: %w", err)
	}
	return corrections, nil
}

// Run operations

func (s *SQLiteRegistry) CreateRun(operation string, parameters string) (*ft.Run, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO runs (started_at, operation, parameters, status)
		VALUES (?, ?, ?, 'running')`,
		now, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return &ft.Run{
		ID:         id,
		StartedAt:  now,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
	}, nil
}

func (s *SQLiteRegistry) FinishRun(id int64, status string) error {
	_, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, status = ? WHERE id = ?",
		time.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteRegistry) ListRuns(limit int) ([]*ft.Run, error) {
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, operation, parameters, status
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*ft.Run
	for rows.Next() {
		var r ft.Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Operation, &r.Parameters, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Stats

func (s *SQLiteRegistry) Stats() (*ft.RegistryStats, error) {
	stats := &ft.RegistryStats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM file_records", &stats.TotalFiles},
		{"SELECT COUNT(*) FROM file_records WHERE state = 'organized'", &stats.OrganizedFiles},
		{"SELECT COUNT(*) FROM file_records WHERE is_duplicate = 1", &stats.DuplicateFiles},
		{"SELECT COUNT(*) FROM file_records WHERE state = 'missing'", &stats.MissingFiles},
		{"SELECT COUNT(*) FROM file_records WHERE state = 'error'", &stats.ErrorFiles},
		{"SELECT COUNT(*) FROM file_records WHERE requires_review = 1", &stats.ReviewFiles},
		{"SELECT COALESCE(SUM(size_bytes), 0) FROM file_records", &stats.TotalBytes},
		{"SELECT COALESCE(SUM(size_bytes), 0) FROM file_records WHERE is_duplicate = 1", &stats.DuplicateBytes},
		{"SELECT COUNT(*) FROM move_history WHERE external = 0", &stats.TotalMoves},
		{"SELECT COUNT(*) FROM move_history WHERE external = 1", &stats.ExternalMoves},
		{"SELECT COUNT(*) FROM corrections", &stats.Corrections},
		{"SELECT COUNT(*) FROM file_records WHERE document_type IS NOT NULL", &stats.ClassifiedFiles},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("computing registry stats: %w", err)
		}
	}
	return stats, nil
}

// BackupTo writes a consistent snapshot of the registry to destPath using
// VACUUM INTO. Not available for in-memory registries opened without a path.
func (s *SQLiteRegistry) BackupTo(destPath string) error {
	if strings.Contains(destPath, "'") {
		return fmt.Errorf("invalid backup path %q", destPath)
	}
	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("backing up registry to %s: %w", destPath, err)
	}
	return nil
}

func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteRegistry implements the Registry interface
var _ ft.Registry = (*SQLiteRegistry)(nil)
