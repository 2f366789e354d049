package robotapi

import (
	"context"
	"time"
)

// IMU reports gyroscope and accelerometer readings in the torso frame.
type IMU struct {
	GyroX, GyroY, GyroZ    float64
	AccelX, AccelY, AccelZ float64
}

// FSR reports the four force-sensing resistors under one foot.
type FSR [4]float64

// Sum returns the total sensed force, used as the center-of-pressure proxy.
func (f FSR) Sum() float64 {
	return f[0] + f[1] + f[2] + f[3]
}

// Buttons reports the momentary contact switches on the chassis.
type Buttons struct {
	Chest          bool
	Head           [3]bool
	LeftFoot       [2]bool
	RightFoot      [2]bool
}

// SensorFrame is the per-cycle input read at the Init stage.
type SensorFrame struct {
	JointPositions JointFrame
	JointCurrents  JointFrame
	IMU            IMU
	LeftFSR        FSR
	RightFSR       FSR
	Buttons        Buttons
	CycleTimeHint  time.Duration
}

// ControlFrame is the per-cycle output written at the Write stage.
type ControlFrame struct {
	Positions  JointFrame
	Stiffness  JointFrame
	LeftEar    EarLEDs
	RightEar   EarLEDs
	Chest      RGB
	LeftEye    EyeLEDs
	RightEye   EyeLEDs
	LeftFoot   RGB
	RightFoot  RGB
	Skull      SkullLEDs
}

// SafeFrame is the final frame emitted on a fatal error: every motor
// unstiffened, positions held at their last known values.
func SafeFrame(lastKnown JointFrame) ControlFrame {
	return ControlFrame{
		Positions: lastKnown,
		Stiffness: JointFrame{
			Head: UnstiffHead(),
			Arms: UnstiffArms(),
			Legs: UnstiffLegs(),
		},
	}
}

// SensorSource is polled once per cycle at Init.
type SensorSource interface {
	ReadSensorFrame(ctx context.Context) (SensorFrame, error)
}

// ActuatorSink is called once per cycle at Write.
type ActuatorSink interface {
	WriteControlFrame(ctx context.Context, frame ControlFrame) error
}

// GameStateSource reports whether the core is connected to the referee.
type GameStateSource interface {
	GameState(ctx context.Context) (GameState, bool)
}

// VisionFrame bundles the transient correspondence/observation entities
// the vision collaborator spawns in a cycle: consumed by the pose
// filter and behavior planner, then discarded.
type VisionFrame struct {
	Lines   []LineCorrespondence
	Circles []CircleCorrespondence
	Balls   []BallObservation
}

// VisionSource is polled once per cycle at Execute, ahead of the pose
// filter's measurement updates.
type VisionSource interface {
	ReadVisionFrame(ctx context.Context) (VisionFrame, error)
}

// GameState is the referee-protocol state relevant to the core.
type GameState struct {
	TeamPenalties  map[int]PenaltyState
	KickingTeam    int
	TimeRemaining  time.Duration
}

// PenaltyState reports whether a player is currently penalized.
type PenaltyState struct {
	Penalized bool
}
