// Package config loads the system's configuration from a YAML file plus
// environment variable overrides, exposing every option enumerated in
// spec §6 as typed fields with defaults. Grounded on the teacher's
// envutil.GetEnv*-family lookups (no config file in the teacher itself,
// which reads everything from the environment directly) plus yaml.v3,
// the one config-parsing dependency already declared in the teacher's
// go.mod but left essentially unused there.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rivergate/mediareef/internal/index/lexical"
	"github.com/rivergate/mediareef/internal/index/vector"
	"github.com/rivergate/mediareef/internal/ingest/video"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
	"github.com/rivergate/mediareef/internal/platform/breaker"
	"github.com/rivergate/mediareef/internal/platform/envutil"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/platform/watcher"
)

type WatchConfig struct {
	QuietPeriodMs     int      `yaml:"quiet_period_ms"`
	StabilityWindowMs int      `yaml:"stability_window_ms"`
	StabilitySamples  int      `yaml:"stability_samples"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	RetryInitialMs    int      `yaml:"retry_initial_ms"`
	RetryFactor       float64  `yaml:"retry_factor"`
	RetryMaxMs        int      `yaml:"retry_max_ms"`
	RetryMaxAttempts  int      `yaml:"retry_max_attempts"`
}

type VideoConfig struct {
	TargetFPS          float64 `yaml:"target_fps"`
	SceneSSIMThreshold float64 `yaml:"scene_ssim_threshold"`
	BestOfWindow       int     `yaml:"best_of_window"`
}

type SchedulerClassConfig struct {
	MaxInFlight int `yaml:"max_in_flight"`
}

type SchedulerConfig struct {
	Classes      map[string]SchedulerClassConfig `yaml:"classes"`
	QueueCap     int                             `yaml:"queue_cap"`
	JobTimeoutMs int                             `yaml:"job_timeout_ms"`
}

type BreakerConfig struct {
	FailureThreshold         int `yaml:"failure_threshold"`
	OpenTimeoutMs            int `yaml:"open_timeout_ms"`
	HalfOpenSuccessThreshold int `yaml:"half_open_success_threshold"`
}

type EnricherConfig struct {
	TimeoutMs int  `yaml:"timeout_ms"`
	Enabled   bool `yaml:"enabled"`
}

type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

type HNSWConfig struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

type VectorConfig struct {
	Oversample int        `yaml:"oversample"`
	HNSW       HNSWConfig `yaml:"hnsw"`
}

type RetrieverConfig struct {
	FusionDefault     string  `yaml:"fusion_default"`
	RRFConstant       float64 `yaml:"rrf_c"`
	ScopeProjectFirst bool    `yaml:"scope_project_first"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// Config is the root configuration document, fully defaulted by Load.
type Config struct {
	Watch     WatchConfig               `yaml:"watch"`
	Video     VideoConfig               `yaml:"video"`
	Scheduler SchedulerConfig           `yaml:"scheduler"`
	Breaker   BreakerConfig             `yaml:"breaker"`
	Enricher  map[string]EnricherConfig `yaml:"enricher"`
	BM25      BM25Config                `yaml:"bm25"`
	Vector    VectorConfig              `yaml:"vector"`
	Retriever RetrieverConfig           `yaml:"retriever"`
	Storage   StorageConfig             `yaml:"storage"`
}

func defaults() Config {
	return Config{
		Watch: WatchConfig{
			QuietPeriodMs:     500,
			StabilityWindowMs: 2000,
			StabilitySamples:  3,
			RetryInitialMs:    100,
			RetryFactor:       2,
			RetryMaxMs:        5000,
			RetryMaxAttempts:  5,
		},
		Video: VideoConfig{
			TargetFPS:          3,
			SceneSSIMThreshold: 0.55,
			BestOfWindow:       5,
		},
		Scheduler: SchedulerConfig{
			QueueCap:     64,
			JobTimeoutMs: 120000,
		},
		Breaker: BreakerConfig{
			FailureThreshold:         3,
			OpenTimeoutMs:            30000,
			HalfOpenSuccessThreshold: 2,
		},
		BM25: BM25Config{K1: 1.5, B: 0.75},
		Vector: VectorConfig{
			Oversample: 4,
			HNSW:       HNSWConfig{M: 16, EfConstruction: 100, EfSearch: 64},
		},
		Retriever: RetrieverConfig{
			FusionDefault:     "rrf",
			RRFConstant:       60,
			ScopeProjectFirst: true,
		},
	}
}

// Load reads path (if it exists) as YAML over the built-in defaults, then
// applies environment variable overrides — mirroring the teacher's
// convention of environment variables winning over any file-based default.
// A missing path is not an error: a deployment may run entirely off
// defaults plus env vars, matching the teacher's no-config-file norm.
func Load(path string, log *logger.Logger) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg, log)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, log *logger.Logger) {
	cfg.Watch.QuietPeriodMs = envutil.GetEnvAsInt("WATCH_QUIET_PERIOD_MS", cfg.Watch.QuietPeriodMs, log)
	cfg.Watch.StabilityWindowMs = envutil.GetEnvAsInt("WATCH_STABILITY_WINDOW_MS", cfg.Watch.StabilityWindowMs, log)
	cfg.Watch.StabilitySamples = envutil.GetEnvAsInt("WATCH_STABILITY_SAMPLES", cfg.Watch.StabilitySamples, log)
	cfg.Watch.RetryInitialMs = envutil.GetEnvAsInt("WATCH_RETRY_INITIAL_MS", cfg.Watch.RetryInitialMs, log)
	cfg.Watch.RetryFactor = envutil.GetEnvAsFloat("WATCH_RETRY_FACTOR", cfg.Watch.RetryFactor, log)
	cfg.Watch.RetryMaxMs = envutil.GetEnvAsInt("WATCH_RETRY_MAX_MS", cfg.Watch.RetryMaxMs, log)
	cfg.Watch.RetryMaxAttempts = envutil.GetEnvAsInt("WATCH_RETRY_MAX_ATTEMPTS", cfg.Watch.RetryMaxAttempts, log)

	cfg.Video.TargetFPS = envutil.GetEnvAsFloat("VIDEO_TARGET_FPS", cfg.Video.TargetFPS, log)
	cfg.Video.SceneSSIMThreshold = envutil.GetEnvAsFloat("VIDEO_SCENE_SSIM_THRESHOLD", cfg.Video.SceneSSIMThreshold, log)
	cfg.Video.BestOfWindow = envutil.GetEnvAsInt("VIDEO_BEST_OF_WINDOW", cfg.Video.BestOfWindow, log)

	cfg.Scheduler.QueueCap = envutil.GetEnvAsInt("SCHEDULER_QUEUE_CAP", cfg.Scheduler.QueueCap, log)
	cfg.Scheduler.JobTimeoutMs = envutil.GetEnvAsInt("SCHEDULER_JOB_TIMEOUT_MS", cfg.Scheduler.JobTimeoutMs, log)

	cfg.Breaker.FailureThreshold = envutil.GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", cfg.Breaker.FailureThreshold, log)
	cfg.Breaker.OpenTimeoutMs = envutil.GetEnvAsInt("BREAKER_OPEN_TIMEOUT_MS", cfg.Breaker.OpenTimeoutMs, log)
	cfg.Breaker.HalfOpenSuccessThreshold = envutil.GetEnvAsInt("BREAKER_HALF_OPEN_SUCCESS_THRESHOLD", cfg.Breaker.HalfOpenSuccessThreshold, log)

	cfg.BM25.K1 = envutil.GetEnvAsFloat("BM25_K1", cfg.BM25.K1, log)
	cfg.BM25.B = envutil.GetEnvAsFloat("BM25_B", cfg.BM25.B, log)

	cfg.Vector.Oversample = envutil.GetEnvAsInt("VECTOR_OVERSAMPLE", cfg.Vector.Oversample, log)
	cfg.Vector.HNSW.M = envutil.GetEnvAsInt("VECTOR_HNSW_M", cfg.Vector.HNSW.M, log)
	cfg.Vector.HNSW.EfConstruction = envutil.GetEnvAsInt("VECTOR_HNSW_EF_CONSTRUCTION", cfg.Vector.HNSW.EfConstruction, log)
	cfg.Vector.HNSW.EfSearch = envutil.GetEnvAsInt("VECTOR_HNSW_EF_SEARCH", cfg.Vector.HNSW.EfSearch, log)

	cfg.Retriever.FusionDefault = envutil.GetEnv("RETRIEVER_FUSION_DEFAULT", cfg.Retriever.FusionDefault, log)
	cfg.Retriever.RRFConstant = envutil.GetEnvAsFloat("RETRIEVER_RRF_C", cfg.Retriever.RRFConstant, log)
	cfg.Retriever.ScopeProjectFirst = envutil.GetEnvAsBool("RETRIEVER_SCOPE_PROJECT_FIRST", cfg.Retriever.ScopeProjectFirst, log)

	cfg.Storage.DSN = envutil.GetEnv("STORAGE_DSN", cfg.Storage.DSN, log)
}

// SchedulerJobTimeout converts JobTimeoutMs into the time.Duration
// jobs/scheduler.Config expects.
func (c Config) SchedulerJobTimeout() time.Duration {
	return time.Duration(c.Scheduler.JobTimeoutMs) * time.Millisecond
}

func (c Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.Breaker.OpenTimeoutMs) * time.Millisecond
}

func (c Config) EnricherTimeout(name string) time.Duration {
	if ec, ok := c.Enricher[name]; ok {
		return time.Duration(ec.TimeoutMs) * time.Millisecond
	}
	return 0
}

func (c Config) EnricherEnabled(name string) bool {
	ec, ok := c.Enricher[name]
	if !ok {
		return true
	}
	return ec.Enabled
}

// ToSchedulerConfig converts the YAML-keyed class map into the
// scheduler.JobClass-keyed shape scheduler.New expects.
func (c Config) ToSchedulerConfig() scheduler.Config {
	maxInFlight := make(map[scheduler.JobClass]int, len(c.Scheduler.Classes))
	for name, cc := range c.Scheduler.Classes {
		maxInFlight[scheduler.JobClass(name)] = cc.MaxInFlight
	}
	return scheduler.Config{
		MaxInFlight: maxInFlight,
		QueueCap:    c.Scheduler.QueueCap,
		JobTimeout:  c.SchedulerJobTimeout(),
	}
}

func (c Config) ToBreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold:         c.Breaker.FailureThreshold,
		OpenTimeout:              c.BreakerOpenTimeout(),
		HalfOpenSuccessThreshold: c.Breaker.HalfOpenSuccessThreshold,
	}
}

func (c Config) ToBM25Config() lexical.Config {
	return lexical.Config{K1: c.BM25.K1, B: c.BM25.B}
}

func (c Config) ToVectorConfig() vector.Config {
	return vector.Config{
		M:              c.Vector.HNSW.M,
		EfConstruction: c.Vector.HNSW.EfConstruction,
		EfSearch:       c.Vector.HNSW.EfSearch,
		Oversample:     c.Vector.Oversample,
	}
}

func (c Config) ToWatchConfig() watcher.Config {
	return watcher.Config{
		IgnorePatterns:    c.Watch.IgnorePatterns,
		QuietPeriod:       time.Duration(c.Watch.QuietPeriodMs) * time.Millisecond,
		StabilityWindow:   time.Duration(c.Watch.StabilityWindowMs) * time.Millisecond,
		StabilitySamples:  c.Watch.StabilitySamples,
		RetryInitialDelay: time.Duration(c.Watch.RetryInitialMs) * time.Millisecond,
		RetryFactor:       c.Watch.RetryFactor,
		RetryMaxDelay:     time.Duration(c.Watch.RetryMaxMs) * time.Millisecond,
		RetryMaxAttempts:  c.Watch.RetryMaxAttempts,
	}
}

func (c Config) ToVideoConfig() video.Config {
	return video.Config{
		TargetFPS:          c.Video.TargetFPS,
		SceneSSIMThreshold: c.Video.SceneSSIMThreshold,
		BestOfWindow:       c.Video.BestOfWindow,
	}
}
