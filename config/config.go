// Package config loads the core's flat, read-only-at-startup
// configuration surface, per spec.md §6.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"
)

// FieldGeometry mirrors spec.md §6's field dimensions, metres.
type FieldGeometry struct {
	Length            float64 `yaml:"length"`
	Width             float64 `yaml:"width"`
	LineWidth         float64 `yaml:"line_width"`
	GoalAreaWidth     float64 `yaml:"goal_area_width"`
	GoalAreaLength    float64 `yaml:"goal_area_length"`
	PenaltyAreaWidth  float64 `yaml:"penalty_area_width"`
	PenaltyAreaLength float64 `yaml:"penalty_area_length"`
	CentreCircleDiam  float64 `yaml:"centre_circle_diameter"`
}

// WalkParams mirrors motion/walk.Config's fields one-for-one; cmd
// wiring copies it into a walk.Config rather than embedding that type
// directly, so this package stays independent of motion/walk.
type WalkParams struct {
	BaseStepPeriod   time.Duration `yaml:"base_step_period"`
	BaseFootLift     float64       `yaml:"base_foot_lift"`
	FootLiftModifier struct {
		Forward float64 `yaml:"forward"`
		Left    float64 `yaml:"left"`
	} `yaml:"foot_lift_modifier"`
	MaxStepSize struct {
		Forward float64 `yaml:"forward"`
		Left    float64 `yaml:"left"`
		Turn    float64 `yaml:"turn"`
	} `yaml:"max_step_size"`
	HipHeight                float64 `yaml:"hip_height"`
	SittingHipHeight         float64 `yaml:"sitting_hip_height"`
	CopPressureThreshold     float64 `yaml:"cop_pressure_threshold"`
	LegStiffness             float64 `yaml:"leg_stiffness"`
	MinimumStepDurationRatio float64 `yaml:"minimum_step_duration_ratio"`
	Balancing                struct {
		FilteredGyroYMultiplier float64 `yaml:"filtered_gyro_y_multiplier"`
		FootLevelingPhaseShift  float64 `yaml:"foot_leveling_phase_shift"`
		FootLevelingDecay       float64 `yaml:"foot_leveling_decay"`
	} `yaml:"balancing"`
}

// PlannerParams mirrors motion/planning's velocity-reduction tunables.
type PlannerParams struct {
	// Strategy selects the path-finding strategy TargetPlanner runs
	// against the obstacle set: "astar" (the default, A* over straight segments and tangent arcs) or
	// "rrt" (RRT*, better suited to the sparser, more open obstacle
	// fields a penalty-box or crowded-midfield situation produces).
	Strategy                  string  `yaml:"strategy"`
	MaxWalkSpeed              float64 `yaml:"max_walk_speed"`
	MaxSideSpeed              float64 `yaml:"max_side_speed"`
	MaxTurnSpeed              float64 `yaml:"max_turn_speed"`
	AttractionGain            float64 `yaml:"attraction_gain"`
	RotationGain              float64 `yaml:"rotation_gain"`
	AngleThresholdForPureTurn float64 `yaml:"angle_threshold_for_pure_turn"`
}

// FilterParams mirrors the pose filter constants listed in spec.md §4.D.
type FilterParams struct {
	LineRejectionAngle   float64 `yaml:"line_rejection_angle"`
	CircleRejectionAngle float64 `yaml:"circle_rejection_angle"`
	FieldMargin          float64 `yaml:"field_margin"`
	ScoreBump            float64 `yaml:"score_bump"`
	ScoreBonus           float64 `yaml:"score_bonus"`
	ScoreDecay           float64 `yaml:"score_decay"`
	RetainFactor         float64 `yaml:"retain_factor"`
}

// CycleParams carries the scheduler's fixed-cycle timing.
type CycleParams struct {
	Period time.Duration `yaml:"period"`
}

// Config is the core's full, flat configuration surface, decoded once
// at startup and held immutable thereafter.
type Config struct {
	Field   FieldGeometry `yaml:"field"`
	Walk    WalkParams    `yaml:"walk"`
	Planner PlannerParams `yaml:"planner"`
	Filter  FilterParams  `yaml:"filter"`
	Cycle   CycleParams   `yaml:"cycle"`

	// Extra carries per-subsystem attribute bags for collaborator
	// config this core doesn't itself interpret (vision, behavior,
	// comms), keyed by subsystem name — shape grounded on
	// control/trapezoid_velocity_profile_test.go's
	// BlockConfig{Attribute utils.AttributeMap} pattern.
	Extra map[string]utils.AttributeMap `yaml:"extra"`
}

// ValidationError reports an out-of-range configuration value; Load
// returns one wrapped as a startup-fatal error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Load reads and decodes the YAML document at path into a Config,
// validating it before returning.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the ranges Load can't express through decoding
// alone: non-negative dimensions and non-negative speed limits.
func (c *Config) Validate() error {
	switch {
	case c.Field.Length < 0:
		return &ValidationError{"field.length", "must be non-negative"}
	case c.Field.Width < 0:
		return &ValidationError{"field.width", "must be non-negative"}
	case c.Planner.MaxWalkSpeed < 0:
		return &ValidationError{"planner.max_walk_speed", "must be non-negative"}
	case c.Planner.MaxSideSpeed < 0:
		return &ValidationError{"planner.max_side_speed", "must be non-negative"}
	case c.Planner.MaxTurnSpeed < 0:
		return &ValidationError{"planner.max_turn_speed", "must be non-negative"}
	case c.Cycle.Period <= 0:
		return &ValidationError{"cycle.period", "must be positive"}
	case c.Planner.Strategy != "astar" && c.Planner.Strategy != "rrt":
		return &ValidationError{"planner.strategy", `must be "astar" or "rrt"`}
	}
	return nil
}

// Default returns the literal constants named in spec.md §4.D/§4.E.1/
// §4.E.2/§6, grounded on original_source/yggdrasil's equivalents —
// the same values motion/walk.DefaultConfig and the localization/
// motion/planning packages carry as their own unexported defaults,
// collected here as the single source Load falls back to for any
// field absent from the YAML document.
func Default() Config {
	var c Config
	c.Field = FieldGeometry{
		Length: 9.0, Width: 6.0, LineWidth: 0.05,
		GoalAreaWidth: 2.2, GoalAreaLength: 0.6,
		PenaltyAreaWidth: 4.0, PenaltyAreaLength: 1.65,
		CentreCircleDiam: 1.5,
	}

	c.Walk.BaseStepPeriod = 250 * time.Millisecond
	c.Walk.BaseFootLift = 0.02
	c.Walk.FootLiftModifier.Forward = 0.05
	c.Walk.FootLiftModifier.Left = 0.05
	c.Walk.MaxStepSize.Forward = 0.05
	c.Walk.MaxStepSize.Left = 0.035
	c.Walk.MaxStepSize.Turn = 0.35
	c.Walk.HipHeight = 0.18
	c.Walk.SittingHipHeight = 0.094
	c.Walk.CopPressureThreshold = 0.1
	c.Walk.LegStiffness = 0.9
	c.Walk.MinimumStepDurationRatio = 0.5
	c.Walk.Balancing.FilteredGyroYMultiplier = 0.3
	c.Walk.Balancing.FootLevelingPhaseShift = 0.0
	c.Walk.Balancing.FootLevelingDecay = 0.5

	c.Planner = PlannerParams{
		Strategy:     "astar",
		MaxWalkSpeed: 0.05, MaxSideSpeed: 0.035, MaxTurnSpeed: 0.35,
		AttractionGain: 1.2, RotationGain: 2.5,
		AngleThresholdForPureTurn: 0.8,
	}

	c.Filter = FilterParams{
		LineRejectionAngle:   0.5235987755982988,
		CircleRejectionAngle: 0.39269908169872414,
		FieldMargin:          0.15,
		ScoreBump:            0.5,
		ScoreBonus:           2.5,
		ScoreDecay:           0.95,
		RetainFactor:         0.5,
	}

	c.Cycle.Period = 10 * time.Millisecond
	return c
}
