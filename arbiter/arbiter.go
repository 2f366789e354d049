package arbiter

import (
	"time"

	"github.com/spl-robotics/fieldctrld/robotapi"
)

type jointSettings[T any] struct {
	position  T
	stiffness T
	priority  *Priority
}

func setJoint[T any](settings *jointSettings[T], position, stiffness T, priority Priority) {
	if settings.priority != nil && *settings.priority >= priority {
		return
	}
	settings.position = position
	settings.stiffness = stiffness
	settings.priority = &priority
}

type ledSettings[T any] struct {
	value    T
	priority *Priority
}

func setLED[T any](settings *ledSettings[T], value T, priority Priority) {
	if settings.priority != nil && *settings.priority >= priority {
		return
	}
	settings.value = value
	settings.priority = &priority
}

// chestBlink is a latching oscillator: its effective color alternates
// between the configured color and off every interval, evaluated at
// read time rather than on every write.
type chestBlink struct {
	color    robotapi.RGB
	interval time.Duration
	blinking bool
	on       bool
	start    time.Time
}

func (c *chestBlink) colorAt(now time.Time) robotapi.RGB {
	if !c.blinking {
		return c.color
	}
	if now.Sub(c.start) > c.interval {
		c.on = !c.on
		c.start = now
	}
	if c.on {
		return c.color
	}
	return robotapi.ColorOff
}

// Arbiter accumulates per-cycle joint and LED requests from multiple
// systems and, at Finalize, keeps the highest-priority request per
// group. Finalize clears all per-cycle priority bookkeeping so the
// next cycle starts unclaimed; held values persist across cycles.
type Arbiter struct {
	legs jointSettings[robotapi.LegJoints]
	arms jointSettings[robotapi.ArmJoints]
	head jointSettings[robotapi.HeadJoints]

	leftEar, rightEar   ledSettings[robotapi.EarLEDs]
	chest               ledSettings[chestBlink]
	leftEye, rightEye   ledSettings[robotapi.EyeLEDs]
	leftFoot, rightFoot ledSettings[robotapi.RGB]
	skull               ledSettings[robotapi.SkullLEDs]
}

// New returns an arbiter with every group unclaimed and LEDs off.
func New() *Arbiter {
	a := &Arbiter{}
	a.chest.value = chestBlink{color: robotapi.ColorOff}
	return a
}

// SetLegs keeps position/stiffness if no equal-or-higher priority
// request has already claimed the legs this cycle.
func (a *Arbiter) SetLegs(position, stiffness robotapi.LegJoints, priority Priority) {
	setJoint(&a.legs, position, stiffness, priority)
}

func (a *Arbiter) SetArms(position, stiffness robotapi.ArmJoints, priority Priority) {
	setJoint(&a.arms, position, stiffness, priority)
}

func (a *Arbiter) SetHead(position, stiffness robotapi.HeadJoints, priority Priority) {
	setJoint(&a.head, position, stiffness, priority)
}

// UnstiffLegs disables leg motors, retaining the current commanded position.
func (a *Arbiter) UnstiffLegs(priority Priority) {
	setJoint(&a.legs, a.legs.position, robotapi.UnstiffLegs(), priority)
}

func (a *Arbiter) UnstiffArms(priority Priority) {
	setJoint(&a.arms, a.arms.position, robotapi.UnstiffArms(), priority)
}

func (a *Arbiter) UnstiffHead(priority Priority) {
	setJoint(&a.head, a.head.position, robotapi.UnstiffHead(), priority)
}

func (a *Arbiter) SetLeftEarLED(value robotapi.EarLEDs, priority Priority) {
	setLED(&a.leftEar, value, priority)
}

func (a *Arbiter) SetRightEarLED(value robotapi.EarLEDs, priority Priority) {
	setLED(&a.rightEar, value, priority)
}

// SetChestLED sets a static chest color.
func (a *Arbiter) SetChestLED(color robotapi.RGB, priority Priority) {
	setLED(&a.chest, chestBlink{color: color}, priority)
}

// SetChestBlinkLED sets a blinking chest color; if already blinking,
// the oscillator's current phase (on/off, start time) is preserved so
// re-issuing the same blink every cycle does not restart it.
func (a *Arbiter) SetChestBlinkLED(color robotapi.RGB, interval time.Duration, now time.Time, priority Priority) {
	next := chestBlink{color: color, interval: interval, blinking: true, on: true, start: now}
	if a.chest.value.blinking {
		next.on = a.chest.value.on
		next.start = a.chest.value.start
	}
	setLED(&a.chest, next, priority)
}

func (a *Arbiter) SetLeftEyeLED(value robotapi.EyeLEDs, priority Priority) {
	setLED(&a.leftEye, value, priority)
}

func (a *Arbiter) SetRightEyeLED(value robotapi.EyeLEDs, priority Priority) {
	setLED(&a.rightEye, value, priority)
}

func (a *Arbiter) SetLeftFootLED(value robotapi.RGB, priority Priority) {
	setLED(&a.leftFoot, value, priority)
}

func (a *Arbiter) SetRightFootLED(value robotapi.RGB, priority Priority) {
	setLED(&a.rightFoot, value, priority)
}

func (a *Arbiter) SetSkullLED(value robotapi.SkullLEDs, priority Priority) {
	setLED(&a.skull, value, priority)
}

// Finalize composes the outgoing control frame from the settings held
// this cycle, then clears every group's priority so the next cycle
// starts unclaimed. It does not clear held values: an unclaimed group
// falls through to its last known value.
func (a *Arbiter) Finalize(now time.Time) robotapi.ControlFrame {
	frame := robotapi.ControlFrame{
		Positions: robotapi.JointFrame{
			Head: a.head.position,
			Arms: a.arms.position,
			Legs: a.legs.position,
		},
		Stiffness: robotapi.JointFrame{
			Head: a.head.stiffness,
			Arms: a.arms.stiffness,
			Legs: a.legs.stiffness,
		},
		LeftEar:   a.leftEar.value,
		RightEar:  a.rightEar.value,
		Chest:     a.chest.value.colorAt(now),
		LeftEye:   a.leftEye.value,
		RightEye:  a.rightEye.value,
		LeftFoot:  a.leftFoot.value,
		RightFoot: a.rightFoot.value,
		Skull:     a.skull.value,
	}

	a.legs.priority = nil
	a.arms.priority = nil
	a.head.priority = nil
	a.leftEar.priority = nil
	a.rightEar.priority = nil
	a.chest.priority = nil
	a.leftEye.priority = nil
	a.rightEye.priority = nil
	a.leftFoot.priority = nil
	a.rightFoot.priority = nil
	a.skull.priority = nil

	return frame
}
