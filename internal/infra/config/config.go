// Package config loads and hot-reloads the two process-wide knobs the
// engine consults on every selection: the contextual bandit's mode and
// the distribution-aware convergence feature's rollout (§6).
//
// Key concepts for beginners:
//
//   - Layered config: defaults are baked in, an optional TOML file on
//     disk overrides them, and environment variables override the file.
//     This lets an operator ship one binary and tune it per-environment
//     without a rebuild.
//
//   - Atomic snapshot: the engine reads config on the hot path (every
//     item selection). Rather than a mutex, we store a read-only struct
//     behind an atomic.Pointer so readers never block on a writer and a
//     writer never tears a reader's view mid-read.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/BurntSushi/toml"
)

// BanditMode selects which scoring path select_next takes (§4.11 step 7).
type BanditMode string

const (
	BanditModeDisabled BanditMode = "disabled"
	BanditModeLinUCB   BanditMode = "linucb"
	BanditModeHybrid   BanditMode = "hybrid"
	BanditModeIRTOnly  BanditMode = "irt-only"
)

// ContextualBanditConfig is the process-wide contextual-bandit switch
// (§6). TrafficPercent, like convergence's, buckets learners
// deterministically so a rollout can ramp without flip-flopping any one
// learner's experience.
type ContextualBanditConfig struct {
	Enabled        bool
	Mode           BanditMode
	TrafficPercent int
	Alpha          float64
	Verbose        bool
}

// DistributionAwareConvergenceConfig is the process-wide convergence
// switch (§4.10, §6). SEMQ1..SEMQ5 let an operator override the §4.10
// table's base SEM targets per quintile without a rebuild.
type DistributionAwareConvergenceConfig struct {
	Enabled        bool
	TrafficPercent int
	Verbose        bool
	SEMQ1          float64
	SEMQ2          float64
	SEMQ3          float64
	SEMQ4          float64
	SEMQ5          float64
}

// Snapshot bundles both configs as the unit the engine reads atomically.
type Snapshot struct {
	Bandit      ContextualBanditConfig
	Convergence DistributionAwareConvergenceConfig
}

// DefaultSnapshot returns conservative production defaults: the bandit
// on in hybrid mode at full traffic, convergence on at full traffic,
// using the §4.10 table's base SEM targets.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Bandit: ContextualBanditConfig{
			Enabled:        true,
			Mode:           BanditModeHybrid,
			TrafficPercent: 100,
			Alpha:          1.5,
			Verbose:        false,
		},
		Convergence: DistributionAwareConvergenceConfig{
			Enabled:        true,
			TrafficPercent: 100,
			Verbose:        false,
			SEMQ1:          0.50,
			SEMQ2:          0.35,
			SEMQ3:          0.35,
			SEMQ4:          0.35,
			SEMQ5:          0.50,
		},
	}
}

// Validate rejects the combinations §6 calls out explicitly: traffic
// outside [0,100], a non-positive LinUCB exploration alpha, and SEM
// thresholds outside (0, 1].
func (s Snapshot) Validate() error {
	if s.Bandit.TrafficPercent < 0 || s.Bandit.TrafficPercent > 100 {
		return fmt.Errorf("config: bandit traffic %d out of [0,100]", s.Bandit.TrafficPercent)
	}
	if s.Bandit.Alpha <= 0 {
		return fmt.Errorf("config: bandit alpha %v must be positive", s.Bandit.Alpha)
	}
	if s.Convergence.TrafficPercent < 0 || s.Convergence.TrafficPercent > 100 {
		return fmt.Errorf("config: convergence traffic %d out of [0,100]", s.Convergence.TrafficPercent)
	}
	for name, v := range map[string]float64{
		"SEM_Q1": s.Convergence.SEMQ1,
		"SEM_Q2": s.Convergence.SEMQ2,
		"SEM_Q3": s.Convergence.SEMQ3,
		"SEM_Q4": s.Convergence.SEMQ4,
		"SEM_Q5": s.Convergence.SEMQ5,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config: %s = %v out of (0,1]", name, v)
		}
	}
	return nil
}

// fileLayer is what an on-disk TOML config file may override. Any field
// the file does not set (nil) is left untouched by ApplyFile.
type fileLayer struct {
	Bandit struct {
		Enabled        *bool
		Mode           *string
		TrafficPercent *int `toml:"traffic_percent"`
		Alpha          *float64
		Verbose        *bool
	}
	Convergence struct {
		Enabled        *bool
		TrafficPercent *int `toml:"traffic_percent"`
		Verbose        *bool
		SEMQ1          *float64 `toml:"sem_q1"`
		SEMQ2          *float64 `toml:"sem_q2"`
		SEMQ3          *float64 `toml:"sem_q3"`
		SEMQ4          *float64 `toml:"sem_q4"`
		SEMQ5          *float64 `toml:"sem_q5"`
	}
}

// ApplyFile overrides s with any field set in the TOML file at path. A
// missing file is not an error — it just means "use defaults/env".
func ApplyFile(s Snapshot, path string) (Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	var f fileLayer
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return s, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if f.Bandit.Enabled != nil {
		s.Bandit.Enabled = *f.Bandit.Enabled
	}
	if f.Bandit.Mode != nil {
		s.Bandit.Mode = BanditMode(*f.Bandit.Mode)
	}
	if f.Bandit.TrafficPercent != nil {
		s.Bandit.TrafficPercent = *f.Bandit.TrafficPercent
	}
	if f.Bandit.Alpha != nil {
		s.Bandit.Alpha = *f.Bandit.Alpha
	}
	if f.Bandit.Verbose != nil {
		s.Bandit.Verbose = *f.Bandit.Verbose
	}
	if f.Convergence.Enabled != nil {
		s.Convergence.Enabled = *f.Convergence.Enabled
	}
	if f.Convergence.TrafficPercent != nil {
		s.Convergence.TrafficPercent = *f.Convergence.TrafficPercent
	}
	if f.Convergence.Verbose != nil {
		s.Convergence.Verbose = *f.Convergence.Verbose
	}
	if f.Convergence.SEMQ1 != nil {
		s.Convergence.SEMQ1 = *f.Convergence.SEMQ1
	}
	if f.Convergence.SEMQ2 != nil {
		s.Convergence.SEMQ2 = *f.Convergence.SEMQ2
	}
	if f.Convergence.SEMQ3 != nil {
		s.Convergence.SEMQ3 = *f.Convergence.SEMQ3
	}
	if f.Convergence.SEMQ4 != nil {
		s.Convergence.SEMQ4 = *f.Convergence.SEMQ4
	}
	if f.Convergence.SEMQ5 != nil {
		s.Convergence.SEMQ5 = *f.Convergence.SEMQ5
	}
	return s, nil
}

// ApplyEnv overrides s with CAT_BANDIT_* / CAT_CONVERGENCE_* environment
// variables, the outermost and highest-priority layer (§6).
func ApplyEnv(s Snapshot) (Snapshot, error) {
	if v, ok := os.LookupEnv("CAT_BANDIT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("config: CAT_BANDIT_ENABLED: %w", err)
		}
		s.Bandit.Enabled = b
	}
	if v, ok := os.LookupEnv("CAT_BANDIT_MODE"); ok {
		s.Bandit.Mode = BanditMode(v)
	}
	if v, ok := os.LookupEnv("CAT_BANDIT_TRAFFIC"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("config: CAT_BANDIT_TRAFFIC: %w", err)
		}
		s.Bandit.TrafficPercent = n
	}
	if v, ok := os.LookupEnv("CAT_BANDIT_ALPHA"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("config: CAT_BANDIT_ALPHA: %w", err)
		}
		s.Bandit.Alpha = f
	}
	if v, ok := os.LookupEnv("CAT_BANDIT_VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("config: CAT_BANDIT_VERBOSE: %w", err)
		}
		s.Bandit.Verbose = b
	}

	if v, ok := os.LookupEnv("CAT_CONVERGENCE_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("config: CAT_CONVERGENCE_ENABLED: %w", err)
		}
		s.Convergence.Enabled = b
	}
	if v, ok := os.LookupEnv("CAT_CONVERGENCE_TRAFFIC"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("config: CAT_CONVERGENCE_TRAFFIC: %w", err)
		}
		s.Convergence.TrafficPercent = n
	}
	if v, ok := os.LookupEnv("CAT_CONVERGENCE_VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("config: CAT_CONVERGENCE_VERBOSE: %w", err)
		}
		s.Convergence.Verbose = b
	}
	semEnvs := map[string]*float64{
		"CAT_CONVERGENCE_SEM_Q1": &s.Convergence.SEMQ1,
		"CAT_CONVERGENCE_SEM_Q2": &s.Convergence.SEMQ2,
		"CAT_CONVERGENCE_SEM_Q3": &s.Convergence.SEMQ3,
		"CAT_CONVERGENCE_SEM_Q4": &s.Convergence.SEMQ4,
		"CAT_CONVERGENCE_SEM_Q5": &s.Convergence.SEMQ5,
	}
	for name, dst := range semEnvs {
		if v, ok := os.LookupEnv(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return s, fmt.Errorf("config: %s: %w", name, err)
			}
			*dst = f
		}
	}
	return s, nil
}

// Load builds the layered snapshot: defaults, then an optional TOML file,
// then environment variables, validating the result.
func Load(tomlPath string) (Snapshot, error) {
	s := DefaultSnapshot()
	s, err := ApplyFile(s, tomlPath)
	if err != nil {
		return Snapshot{}, err
	}
	s, err = ApplyEnv(s)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Store is the atomic, hot-reloadable holder the engine reads from on
// every selection. Swap installs a new, pre-validated snapshot; readers
// never block and never observe a half-updated snapshot.
type Store struct {
	v atomic.Pointer[Snapshot]
}

// NewStore builds a Store seeded with the given snapshot.
func NewStore(initial Snapshot) *Store {
	s := &Store{}
	s.v.Store(&initial)
	return s
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	return *s.v.Load()
}

// Swap installs a new snapshot after validating it.
func (s *Store) Swap(next Snapshot) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.v.Store(&next)
	return nil
}
