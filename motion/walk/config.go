package walk

import "time"

// Config carries every tunable named in spec.md §6's "Walk params" and
// §4.E.2, read once at startup and held immutable for the engine's
// lifetime.
type Config struct {
	BaseStepPeriod    time.Duration
	BaseFootLift      float64
	FootLiftModifier  struct{ Forward, Left float64 }
	MaxStepSize       Step
	HipHeight         float64
	SittingHipHeight  float64
	CopPressureThreshold    float64
	MinimumStepDurationRatio float64

	LegStiffness float64

	Balancing struct {
		FilteredGyroYMultiplier float64
		FootLevelingPhaseShift  float64
		FootLevelingDecay       float64
	}

	// Gyro low-pass filter coefficients, per engine.rs's
	// LowPassFilter<Vector3<f32>> construction.
	FilteredGyroHighPass float64
	FilteredGyroLowPass  float64

	// Leg segment lengths for the closed-form IK chain, in metres —
	// SPL-class (NAO-like) humanoid dimensions.
	ThighLength float64
	TibiaLength float64
	HipOffsetY  float64
	FootHeight  float64

	// CyclesPerStep converts a step's turn into the per-cycle odometry
	// rotation emitted per spec.md §4.E.3.
	CyclesPerStep float64
}

// DefaultConfig returns the constants named in spec.md §6/§4.E.2.
func DefaultConfig() Config {
	c := Config{
		BaseStepPeriod:           250 * time.Millisecond,
		BaseFootLift:             0.02,
		MaxStepSize:              Step{Forward: 0.05, Left: 0.035, Turn: 0.35},
		HipHeight:                0.18,
		SittingHipHeight:         0.094,
		CopPressureThreshold:     0.1,
		MinimumStepDurationRatio: 0.5,
		LegStiffness:             0.9,
		FilteredGyroHighPass:     0.8,
		FilteredGyroLowPass:      0.2,
		ThighLength:              0.100,
		TibiaLength:              0.1029,
		HipOffsetY:               0.050,
		FootHeight:               0.04519,
		CyclesPerStep:            1,
	}
	c.FootLiftModifier.Forward = 0.05
	c.FootLiftModifier.Left = 0.05
	c.Balancing.FilteredGyroYMultiplier = 0.3
	c.Balancing.FootLevelingPhaseShift = 0.0
	c.Balancing.FootLevelingDecay = 0.5
	return c
}
