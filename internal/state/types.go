package state

import (
	"time"

	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// #region snapshot-record
// SnapshotRecord is a stored adaptation snapshot.
type SnapshotRecord struct {
	selector.Snapshot
	CommittedAt time.Time
}

// #endregion snapshot-record

// #region weight-record
// WeightRecord is the last saved weight vector of a named router.
type WeightRecord struct {
	Router    string
	Weights   map[string]float64
	UpdatedAt time.Time
}

// #endregion weight-record

// #region decision-row
// DecisionRow is a decision_log row as read back by inspection tools.
type DecisionRow struct {
	ID         int64
	VersionID  string
	Kind       string
	Decision   string
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}

// #endregion decision-row
