// Package config defines the configuration structures shared by the molfilter
// tools.  No I/O lives here, only plain data types and validation; loading is
// in loader.go and defaults in defaults.go.
package config

import (
	"fmt"
	"strings"

	"github.com/turtacn/molfilter/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string `mapstructure:"level"`  // debug | info | warn | error
	Format  string `mapstructure:"format"` // console | json
	NoColor bool   `mapstructure:"no_color"`
}

// FilterConfig holds settings of the streaming record filter and its
// predicates.
type FilterConfig struct {
	// Workers is the number of parallel evaluators.  1 means sequential.
	Workers int `mapstructure:"workers"`

	// MaxMatches caps the substructure mappings enumerated per molecule.
	MaxMatches int `mapstructure:"max_matches"`

	// RMSDThreshold is the binding-mode pass threshold in Ångström.
	RMSDThreshold float64 `mapstructure:"rmsd_threshold"`

	// Policy is the binding-mode tie-break policy: any | first | all.
	Policy string `mapstructure:"policy"`

	// MaxWeight rejects molecules heavier than this (Da) in the pattern
	// filter.  0 disables the check.
	MaxWeight float64 `mapstructure:"max_weight"`
}

// InteractionConfig holds the geometric criteria used to perceive
// protein–ligand interactions.  Distances are in Ångström, angles in degrees.
type InteractionConfig struct {
	HBondDistance           float64 `mapstructure:"hbond_distance"`
	SaltBridgeDistance      float64 `mapstructure:"salt_bridge_distance"`
	StackingDistance        float64 `mapstructure:"stacking_distance"`
	StackingParallelAngle   float64 `mapstructure:"stacking_parallel_angle"`
	StackingTShapedAngle    float64 `mapstructure:"stacking_tshaped_angle"`
	StackingTShapedDistance float64 `mapstructure:"stacking_tshaped_distance"`
	CationPiDistance        float64 `mapstructure:"cation_pi_distance"`
	HalogenDistance         float64 `mapstructure:"halogen_distance"`
	HalogenAngle            float64 `mapstructure:"halogen_angle"`
	HydrophobicDistance     float64 `mapstructure:"hydrophobic_distance"`
}

// MetricsConfig holds run-metrics export settings.  Both sinks are optional.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile-collector path written at exit.
	Textfile string `mapstructure:"textfile"`

	// PushgatewayURL, when set, receives the run metrics at exit.
	PushgatewayURL string `mapstructure:"pushgateway_url"`

	// Job is the Pushgateway job label.
	Job string `mapstructure:"job"`
}

// S3Config holds S3-compatible object storage parameters used for s3:// paths.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// StorageConfig groups storage back-ends.
type StorageConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object shared by all three binaries.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Interaction InteractionConfig `mapstructure:"interaction"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Storage     StorageConfig     `mapstructure:"storage"`
}

// Tie-break policies for the binding-mode predicate.
const (
	PolicyAny   = "any"
	PolicyFirst = "first"
	PolicyAll   = "all"
)

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem as a CodeInvalidParam error.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return invalid("log.format %q is invalid; expected console|json", c.Log.Format)
	}

	if c.Filter.Workers < 1 {
		return invalid("filter.workers must be >= 1, got %d", c.Filter.Workers)
	}
	if c.Filter.MaxMatches < 1 {
		return invalid("filter.max_matches must be >= 1, got %d", c.Filter.MaxMatches)
	}
	if c.Filter.RMSDThreshold < 0 {
		return invalid("filter.rmsd_threshold must be non-negative, got %g", c.Filter.RMSDThreshold)
	}
	if c.Filter.MaxWeight < 0 {
		return invalid("filter.max_weight must be non-negative, got %g", c.Filter.MaxWeight)
	}
	if !ValidPolicy(c.Filter.Policy) {
		return invalid("filter.policy %q is invalid; expected any|first|all", c.Filter.Policy)
	}

	if err := c.Interaction.Validate(); err != nil {
		return err
	}

	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return invalid("metrics.job is required when metrics.pushgateway_url is set")
	}
	return nil
}

// Validate checks that every distance is positive and every angle lies in
// [0, 180].
func (ic InteractionConfig) Validate() error {
	distances := map[string]float64{
		"hbond_distance":            ic.HBondDistance,
		"salt_bridge_distance":      ic.SaltBridgeDistance,
		"stacking_distance":         ic.StackingDistance,
		"stacking_tshaped_distance": ic.StackingTShapedDistance,
		"cation_pi_distance":        ic.CationPiDistance,
		"halogen_distance":          ic.HalogenDistance,
		"hydrophobic_distance":      ic.HydrophobicDistance,
	}
	for key, d := range distances {
		if d <= 0 {
			return invalid("interaction.%s must be positive, got %g", key, d)
		}
	}
	angles := map[string]float64{
		"stacking_parallel_angle": ic.StackingParallelAngle,
		"stacking_tshaped_angle":  ic.StackingTShapedAngle,
		"halogen_angle":           ic.HalogenAngle,
	}
	for key, a := range angles {
		if a < 0 || a > 180 {
			return invalid("interaction.%s must lie in [0, 180], got %g", key, a)
		}
	}
	if ic.StackingParallelAngle >= ic.StackingTShapedAngle {
		return invalid("interaction.stacking_parallel_angle (%g) must be below stacking_tshaped_angle (%g)",
			ic.StackingParallelAngle, ic.StackingTShapedAngle)
	}
	return nil
}

// ValidPolicy reports whether p names a tie-break policy.
func ValidPolicy(p string) bool {
	switch p {
	case PolicyAny, PolicyFirst, PolicyAll:
		return true
	}
	return false
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.CodeInvalidParam, "config: "+fmt.Sprintf(format, args...))
}
