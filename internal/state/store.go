// Package state persists adaptation snapshots and router weights in SQLite.
// Nothing is persisted unless a caller opens a Store.
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// ErrNoActive is returned by GetCurrent before any snapshot was committed.
var ErrNoActive = errors.New("no active snapshot")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshot_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	band          TEXT NOT NULL,
	snapshot_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	committed_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);

CREATE TABLE IF NOT EXISTS weight_vectors (
	router        TEXT PRIMARY KEY,
	weights_json  TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT,
	kind          TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	detail_json   TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages versioned snapshots and weight vectors in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region commit-snapshot
// CommitSnapshot inserts snap and makes it the active version atomically.
// Malformed snapshots are rejected before touching the database.
func (s *Store) CommitSnapshot(snap selector.Snapshot) error {
	if err := selector.ValidateSnapshot(snap); err != nil {
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr any
	if snap.ParentVersion != "" {
		parentPtr = snap.ParentVersion
	}

	_, err = tx.Exec(
		`INSERT INTO snapshot_versions (version_id, parent_id, band, snapshot_json, created_at, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Version, parentPtr, snap.Band.String(), string(body),
		snap.CreatedAt.UTC().Format(time.RFC3339Nano), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		snap.Version,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return tx.Commit()
}

// #endregion commit-snapshot

// #region get-current
// GetCurrent reads the active snapshot. It returns ErrNoActive when nothing
// has been committed.
func (s *Store) GetCurrent() (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_snapshot WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, ErrNoActive
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific snapshot by version ID.
func (s *Store) GetVersion(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT snapshot_json, committed_at FROM snapshot_versions WHERE version_id = ?`, id,
	)
	rec, err := scanSnapshot(row)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM snapshot_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recently committed snapshots first.
func (s *Store) ListVersions(limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT snapshot_json, committed_at FROM snapshot_versions
		 ORDER BY committed_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-versions

// #region weights
// SaveWeights stores the weight vector of a named router, replacing any
// previous one.
func (s *Store) SaveWeights(router string, weights map[string]float64) error {
	body, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO weight_vectors (router, weights_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(router) DO UPDATE SET weights_json = excluded.weights_json, updated_at = excluded.updated_at`,
		router, string(body), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save weights %s: %w", router, err)
	}
	return nil
}

// LoadWeights returns the saved weight vector of a named router. ok is false
// when none was saved.
func (s *Store) LoadWeights(router string) (rec WeightRecord, ok bool, err error) {
	var body, updated string
	err = s.db.QueryRow(
		`SELECT weights_json, updated_at FROM weight_vectors WHERE router = ?`, router,
	).Scan(&body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return WeightRecord{}, false, nil
	}
	if err != nil {
		return WeightRecord{}, false, fmt.Errorf("load weights %s: %w", router, err)
	}

	rec.Router = router
	if err := json.Unmarshal([]byte(body), &rec.Weights); err != nil {
		return WeightRecord{}, false, fmt.Errorf("unmarshal weights %s: %w", router, err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, true, nil
}

// #endregion weights

// #region decisions
// RecentDecisions returns the newest decision_log rows first.
func (s *Store) RecentDecisions(limit int) ([]DecisionRow, error) {
	rows, err := s.db.Query(
		`SELECT id, version_id, kind, decision, reason, detail_json, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var r DecisionRow
		var version, reason, detail sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &version, &r.Kind, &r.Decision, &reason, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.VersionID = version.String
		r.Reason = reason.String
		r.DetailJSON = detail.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion decisions

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (SnapshotRecord, error) {
	var body, committed string
	if err := sc.Scan(&body, &committed); err != nil {
		return SnapshotRecord{}, err
	}
	var rec SnapshotRecord
	if err := json.Unmarshal([]byte(body), &rec.Snapshot); err != nil {
		return SnapshotRecord{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	rec.CommittedAt, _ = time.Parse(time.RFC3339Nano, committed)
	return rec, nil
}

// #endregion scan
