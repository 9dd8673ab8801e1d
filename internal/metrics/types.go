package metrics

import (
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
)

// #region config

// ProducerConfig holds tuning knobs for metric aggregation.
type ProducerConfig struct {
	Window int `toml:"window"` // observations retained; older ones are evicted (default 100)
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{Window: 100}
}

// #endregion config

// #region observation

// Observation is one routed value as seen by the caller.
type Observation struct {
	Primary  band.Type // band the classifier put the value in
	Selected band.Type // band the selector routed it to
	Err      error     // non-nil when processing in the selected band failed
	Optimal  bool      // caller judged the selection optimal after the fact
	At       time.Time
}

// #endregion observation
