// Package walk implements the omni-directional walking engine: a
// swing/support phase state machine, parabolic within-phase
// interpolation, center-of-pressure-triggered phase switching, gyro
// balance correction, and closed-form leg inverse kinematics, per
// spec.md §4.E.2. Grounded directly on `original_source/yggdrasil/
// src/motion/walk/engine.rs`; the second, overlapping engine found in
// `original_source/yggdrasil/src/walk/engine.rs` and `walkv4/mod.rs`
// is dead code and is not ported here (spec.md §9).
package walk

import (
	"time"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/robotapi"
)

// Step is a single cycle's holonomic walk command.
type Step = robotapi.Step

func negateStep(s Step) Step {
	return Step{Forward: -s.Forward, Left: -s.Left, Turn: -s.Turn}
}

// clampStep per-axis clamps s to the configured max step size.
func clampStep(s, max Step) Step {
	return Step{
		Forward: clamp(s.Forward, -max.Forward, max.Forward),
		Left:    clamp(s.Left, -max.Left, max.Left),
		Turn:    clamp(s.Turn, -max.Turn, max.Turn),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Side names which leg is currently the swing (lifted) leg.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) next() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

type stateKind int

const (
	kindStanding stateKind = iota
	kindSitting
	kindStarting
	kindWalking
	kindStopping
)

// State is the walking engine's phase: {Standing(h), Sitting(h),
// Starting(step), Walking(step), Stopping}.
type State struct {
	kind      stateKind
	hipHeight float64
	step      Step
}

func standingState(h float64) State { return State{kind: kindStanding, hipHeight: h} }
func sittingState(h float64) State  { return State{kind: kindSitting, hipHeight: h} }
func startingState(s Step) State    { return State{kind: kindStarting, step: s} }
func walkingState(s Step) State     { return State{kind: kindWalking, step: s} }
func stoppingState() State          { return State{kind: kindStopping} }

// stateFromHipHeight picks an initial Sitting or Standing state from
// an observed hip height.
func stateFromHipHeight(hipHeight float64, cfg Config) State {
	if hipHeight <= cfg.SittingHipHeight {
		return sittingState(hipHeight)
	}
	return standingState(hipHeight)
}

// next advances the phase's own per-cycle decay/growth and phase
// handoff, independent of any pending request.
func (s State) next(cfg Config) State {
	switch s.kind {
	case kindStanding:
		return standingState(minf(s.hipHeight+0.0015, cfg.HipHeight))
	case kindSitting:
		return sittingState(maxf(s.hipHeight-0.001, cfg.SittingHipHeight))
	case kindStarting:
		return walkingState(s.step)
	case kindWalking:
		return s
	case kindStopping:
		return standingState(cfg.HipHeight)
	}
	return s
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

type requestKind int

const (
	requestSit requestKind = iota
	requestStand
	requestWalk
)

// Request is the collaborator-facing ask: sit, stand, or walk a step.
type Request struct {
	kind requestKind
	step Step
}

// FootOffset is one foot's commanded pose for the current cycle.
type FootOffset struct {
	Forward, Left, Turn, HipHeight, Lift float64
}

// FootOffsets holds both feet's commanded poses.
type FootOffsets struct {
	Left, Right FootOffset
}

func zeroOffsets(hipHeight float64) FootOffsets {
	return FootOffsets{
		Left:  FootOffset{HipHeight: hipHeight},
		Right: FootOffset{HipHeight: hipHeight},
	}
}

// Engine is the omni-directional humanoid gait generator, per Hengst
// 2014 (https://cgi.cse.unsw.edu.au/~robocup/2014ChampionTeamPaperReports/
// 20140930-Bernhard.Hengst-Walk2014Report.pdf).
type Engine struct {
	logger logging.Logger
	config Config

	state       State
	request     Request
	currentStep Step

	gyro gyroFilter

	t              time.Duration
	nextFootSwitch time.Duration
	swingFoot      Side

	footOffsets   FootOffsets
	footOffsetsT0 FootOffsets

	hipHeight        float64
	maxSwingFootLift float64
}

// NewEngine builds an Engine starting from an observed hip height
// (used to decide whether the robot begins Sitting or Standing).
func NewEngine(logger logging.Logger, cfg Config, currentHipHeight float64) *Engine {
	state := stateFromHipHeight(currentHipHeight, cfg)
	return &Engine{
		logger:        logger,
		config:        cfg,
		state:         state,
		request:       Request{kind: requestSit},
		gyro:          newGyroFilter(cfg.FilteredGyroHighPass, cfg.FilteredGyroLowPass),
		swingFoot:     SideLeft,
		footOffsets:   zeroOffsets(cfg.SittingHipHeight),
		footOffsetsT0: zeroOffsets(cfg.SittingHipHeight),
		hipHeight:     currentHipHeight,
	}
}

// RequestSit asks the engine to halt to an idle sitting position.
func (e *Engine) RequestSit() { e.request = Request{kind: requestSit} }

// RequestStand asks the engine to halt to an idle standing position.
func (e *Engine) RequestStand() { e.request = Request{kind: requestStand} }

// RequestWalk asks the engine to perform the given step, repeated each
// phase until replaced by a different step or a Sit/Stand request.
func (e *Engine) RequestWalk(step Step) { e.request = Request{kind: requestWalk, step: step} }

// IsSitting reports whether the robot has fully settled into sitting.
func (e *Engine) IsSitting() bool {
	return e.state.kind == kindSitting && e.state.hipHeight <= e.config.SittingHipHeight
}

// IsStanding reports whether the robot has fully settled into standing.
func (e *Engine) IsStanding() bool {
	return e.state.kind == kindStanding && e.state.hipHeight >= e.config.HipHeight
}

// IsWalking reports whether the engine is mid-gait (including the
// starting rock and the stopping phase).
func (e *Engine) IsWalking() bool {
	return e.state.kind == kindStarting || e.state.kind == kindWalking || e.state.kind == kindStopping
}

// Reset returns the engine to a stationary upright posture immediately,
// discarding any in-progress phase.
func (e *Engine) Reset() {
	e.currentStep = Step{}
	e.gyro = newGyroFilter(e.config.FilteredGyroHighPass, e.config.FilteredGyroLowPass)
	e.t = 0
	e.footOffsets = zeroOffsets(e.hipHeight)
	e.footOffsetsT0 = zeroOffsets(e.hipHeight)
	e.swingFoot = SideLeft
}

// newStateFromRequest resolves the pending Request against the current
// State into the next State to transition to, or false if the request
// doesn't call for a transition this phase boundary.
func (e *Engine) newStateFromRequest() (State, bool) {
	r, s := e.request, e.state
	switch {
	case r.kind == requestSit && (s.kind == kindSitting || s.kind == kindStopping):
		return State{}, false
	case r.kind == requestStand && (s.kind == kindStanding || s.kind == kindStopping):
		return State{}, false
	case (r.kind == requestSit || r.kind == requestStand) && (s.kind == kindStarting || s.kind == kindWalking):
		return stoppingState(), true
	case r.kind == requestWalk && (s.kind == kindStanding || s.kind == kindStopping):
		if e.IsStanding() {
			return startingState(r.step), true
		}
		return State{}, false
	case r.kind == requestSit && s.kind == kindStanding:
		return sittingState(e.hipHeight), true
	case (r.kind == requestStand || r.kind == requestWalk) && s.kind == kindSitting:
		return standingState(e.hipHeight), true
	case r.kind == requestWalk && s.kind == kindStarting && s.step != r.step:
		return startingState(r.step), true
	case r.kind == requestWalk && s.kind == kindWalking && s.step != r.step:
		return walkingState(r.step), true
	}
	return State{}, false
}

// initStepPhase snapshots t0 offsets, advances to the next phase, and
// reconfigures the engine's step parameters for it. Returns the
// odometry increment attributable to the step that just ended, per
// spec.md §4.E.3.
func (e *Engine) initStepPhase() robotapi.Odometry {
	e.footOffsetsT0 = e.footOffsets
	odom := e.stepOdometry()

	cfg := e.config
	e.state = e.state.next(cfg)

	switch e.state.kind {
	case kindStanding, kindSitting:
		e.currentStep = Step{}
		e.nextFootSwitch = 0
		e.swingFoot = SideLeft
		e.maxSwingFootLift = 0
		e.hipHeight = e.state.hipHeight
	case kindStarting:
		e.currentStep = Step{}
		e.nextFootSwitch = cfg.BaseStepPeriod
		e.swingFoot = e.swingFoot.next()
	case kindWalking:
		nextSwing := e.swingFoot.next()
		e.currentStep = clampStep(e.state.step, cfg.MaxStepSize)
		e.nextFootSwitch = cfg.BaseStepPeriod
		e.swingFoot = nextSwing
		e.maxSwingFootLift = cfg.BaseFootLift +
			absf(e.state.step.Forward)*cfg.FootLiftModifier.Forward +
			absf(e.state.step.Left)*cfg.FootLiftModifier.Left
	case kindStopping:
		e.currentStep = Step{}
		e.nextFootSwitch = cfg.BaseStepPeriod
		e.swingFoot = e.swingFoot.next()
		e.maxSwingFootLift = cfg.BaseFootLift
	}

	if next, ok := e.newStateFromRequest(); ok {
		e.state = next
	}

	return odom
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// stepOdometry is the SE(2) offset attributable to the step just
// completed, per spec.md §4.E.3: rotation is turn divided by the
// number of cycles the step spans.
func (e *Engine) stepOdometry() robotapi.Odometry {
	cycles := e.config.CyclesPerStep
	if cycles <= 0 {
		cycles = 1
	}
	return robotapi.Odometry{
		Forward: e.currentStep.Forward,
		Left:    e.currentStep.Left,
		Turn:    e.currentStep.Turn / cycles,
	}
}

// readyToEndPhase reports whether the phase's linear progress has
// passed the configured minimum ratio and the swing foot's
// center-of-pressure has exceeded the configured threshold — the two
// conditions spec.md §4.E.2 requires jointly for a phase switch.
func (e *Engine) readyToEndPhase(leftFSR, rightFSR robotapi.FSR) bool {
	if e.nextFootSwitch <= 0 {
		return true
	}
	ratio := float64(e.t) / float64(e.nextFootSwitch)
	if ratio < e.config.MinimumStepDurationRatio {
		return false
	}
	swingFSR := leftFSR
	if e.swingFoot == SideRight {
		swingFSR = rightFSR
	}
	return swingFSR.Sum() >= e.config.CopPressureThreshold
}

// Advance runs one cycle: it updates the gyro filter, advances the
// phase timer, recomputes this cycle's foot offsets, and switches
// phase (emitting the new phase's odometry) when the COP/ratio
// condition is met. hadPhaseSwitch reports whether a new step phase
// began this cycle, matching the odometry value to "on each new step".
func (e *Engine) Advance(cycleTime time.Duration, imu robotapi.IMU, leftFSR, rightFSR robotapi.FSR) (offsets FootOffsets, odometry robotapi.Odometry, hadPhaseSwitch bool) {
	e.gyro.update(imu.GyroX, imu.GyroY, imu.GyroZ)

	switching := e.t == 0 || e.state.kind == kindStanding || e.state.kind == kindSitting || e.readyToEndPhase(leftFSR, rightFSR)
	if switching {
		odometry = e.initStepPhase()
		e.t = 0
		hadPhaseSwitch = true
	} else if next, ok := e.newStateFromRequest(); ok {
		e.state = next
	}

	e.t += cycleTime
	e.footOffsets = e.computeFootOffsets(e.currentStep)

	return e.footOffsets, odometry, hadPhaseSwitch
}

func (e *Engine) computeFootOffsets(step Step) FootOffsets {
	linearTime := 1.0
	if e.nextFootSwitch > 0 {
		linearTime = clamp01(float64(e.t) / float64(e.nextFootSwitch))
	}
	swingLift := e.maxSwingFootLift * parabolicReturn(linearTime)

	swing := e.computeSwingFoot(step, swingLift, linearTime)
	support := e.computeSupportFoot(step, linearTime)

	if e.swingFoot == SideLeft {
		return FootOffsets{Left: swing, Right: support}
	}
	return FootOffsets{Left: support, Right: swing}
}

func (e *Engine) computeSwingFoot(step Step, lift, linearTime float64) FootOffset {
	smoothing := parabolicStep(linearTime)
	footT0 := e.footOffsetsT0.Right
	if e.swingFoot == SideLeft {
		footT0 = e.footOffsetsT0.Left
	}
	return e.computeFootOffset(step, footT0, lift, true, smoothing)
}

func (e *Engine) computeSupportFoot(step Step, linearTime float64) FootOffset {
	footT0 := e.footOffsetsT0.Left
	if e.swingFoot == SideLeft {
		footT0 = e.footOffsetsT0.Right
	}
	return e.computeFootOffset(negateStep(step), footT0, 0, false, linearTime)
}

// computeFootOffset interpolates one foot's offset from its t0 value
// toward the target implied by step, weighted by smoothing∈[0,1]. The
// turn component is distributed 2/3 to the swing foot and 1/3 to the
// support foot (both halved, since the full commanded turn spans two
// phases), signed by which side is swinging.
func (e *Engine) computeFootOffset(step Step, footT0 FootOffset, lift float64, swing bool, smoothing float64) FootOffset {
	turnBase := 1.0
	if swing {
		turnBase = 2.0
	}
	turnMultiplier := turnBase / 3.0 / 2.0
	if e.swingFoot == SideRight {
		turnMultiplier = -turnMultiplier
	}

	return FootOffset{
		Forward:   footT0.Forward + (step.Forward/2-footT0.Forward)*smoothing,
		Left:      footT0.Left + (step.Left/2-footT0.Left)*smoothing,
		Turn:      footT0.Turn + (step.Turn*turnMultiplier-footT0.Turn)*smoothing,
		HipHeight: e.hipHeight,
		Lift:      lift,
	}
}

// BalanceAnklePitch returns the current gyro-derived ankle pitch
// correction (spec.md §4.E.2's `gyro_y · multiplier`) to apply to the
// support foot's ankle pitch, or both feet while Stopping.
func (e *Engine) BalanceAnklePitch() (left, right float64) {
	correction := e.gyro.y * e.config.Balancing.FilteredGyroYMultiplier
	if e.state.kind == kindStopping {
		return correction, correction
	}
	if e.swingFoot == SideLeft {
		return 0, correction
	}
	return correction, 0
}

// CurrentStep reports the step the engine is presently executing
// (post per-axis clamp), exposed for scenario 5's literal assertion.
func (e *Engine) CurrentStep() Step { return e.currentStep }

// CurrentOffsets reports the swing/support FootOffsets computed by the
// most recent Advance, for the leg IK stage to consume.
func (e *Engine) CurrentOffsets() FootOffsets { return e.footOffsets }

// State reports the engine's current high-level phase name, for
// diagnostics and tests.
func (e *Engine) State() string {
	switch e.state.kind {
	case kindStanding:
		return "standing"
	case kindSitting:
		return "sitting"
	case kindStarting:
		return "starting"
	case kindWalking:
		return "walking"
	case kindStopping:
		return "stopping"
	}
	return "unknown"
}
