package config

import "github.com/spf13/viper"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultWorkers       = 1
	DefaultMaxMatches    = 1000
	DefaultRMSDThreshold = 2.0
	DefaultPolicy        = PolicyAny

	DefaultHBondDistance           = 3.5
	DefaultSaltBridgeDistance      = 4.0
	DefaultStackingDistance        = 5.5
	DefaultStackingParallelAngle   = 30.0
	DefaultStackingTShapedAngle    = 60.0
	DefaultStackingTShapedDistance = 6.5
	DefaultCationPiDistance        = 6.0
	DefaultHalogenDistance         = 3.5
	DefaultHalogenAngle            = 140.0
	DefaultHydrophobicDistance     = 4.0

	DefaultMetricsJob = "molfilter"
	DefaultS3Region   = "us-east-1"
)

// setDefaults registers every default with v.  Registering the keys also makes
// AutomaticEnv see them during Unmarshal, which is what lets
// MOLFILTER_FILTER_WORKERS reach a config that has no file at all.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.no_color", false)

	v.SetDefault("filter.workers", DefaultWorkers)
	v.SetDefault("filter.max_matches", DefaultMaxMatches)
	v.SetDefault("filter.rmsd_threshold", DefaultRMSDThreshold)
	v.SetDefault("filter.policy", DefaultPolicy)
	v.SetDefault("filter.max_weight", 0.0)

	v.SetDefault("interaction.hbond_distance", DefaultHBondDistance)
	v.SetDefault("interaction.salt_bridge_distance", DefaultSaltBridgeDistance)
	v.SetDefault("interaction.stacking_distance", DefaultStackingDistance)
	v.SetDefault("interaction.stacking_parallel_angle", DefaultStackingParallelAngle)
	v.SetDefault("interaction.stacking_tshaped_angle", DefaultStackingTShapedAngle)
	v.SetDefault("interaction.stacking_tshaped_distance", DefaultStackingTShapedDistance)
	v.SetDefault("interaction.cation_pi_distance", DefaultCationPiDistance)
	v.SetDefault("interaction.halogen_distance", DefaultHalogenDistance)
	v.SetDefault("interaction.halogen_angle", DefaultHalogenAngle)
	v.SetDefault("interaction.hydrophobic_distance", DefaultHydrophobicDistance)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", DefaultMetricsJob)

	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("storage.s3.region", DefaultS3Region)
}

// ApplyDefaults fills zero-value fields of cfg for which zero is never a
// meaningful setting.  Fields where zero is legal (the RMSD threshold, the
// weight cap, the metrics sinks) are left alone.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Filter.Workers == 0 {
		cfg.Filter.Workers = DefaultWorkers
	}
	if cfg.Filter.MaxMatches == 0 {
		cfg.Filter.MaxMatches = DefaultMaxMatches
	}
	if cfg.Filter.Policy == "" {
		cfg.Filter.Policy = DefaultPolicy
	}

	ic := &cfg.Interaction
	fill := func(dst *float64, def float64) {
		if *dst == 0 {
			*dst = def
		}
	}
	fill(&ic.HBondDistance, DefaultHBondDistance)
	fill(&ic.SaltBridgeDistance, DefaultSaltBridgeDistance)
	fill(&ic.StackingDistance, DefaultStackingDistance)
	fill(&ic.StackingParallelAngle, DefaultStackingParallelAngle)
	fill(&ic.StackingTShapedAngle, DefaultStackingTShapedAngle)
	fill(&ic.StackingTShapedDistance, DefaultStackingTShapedDistance)
	fill(&ic.CationPiDistance, DefaultCationPiDistance)
	fill(&ic.HalogenDistance, DefaultHalogenDistance)
	fill(&ic.HalogenAngle, DefaultHalogenAngle)
	fill(&ic.HydrophobicDistance, DefaultHydrophobicDistance)

	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = DefaultS3Region
	}
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	v := newViper()
	cfg, err := unmarshalAndFinalize(v)
	if err != nil {
		// Defaults are static and always validate.
		panic(err)
	}
	return cfg
}
