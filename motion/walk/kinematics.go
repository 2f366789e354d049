package walk

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/robotapi"
)

// hipYawPitchTilt is the fixed 45° tilt of the hip yaw-pitch joint
// axis shared by both legs on an SPL-class (NAO-like) humanoid: a
// single motor drives both hips' yaw-pitch in a coupled,
// opposite-signed fashion, so its axis is neither pure yaw nor pure
// pitch but the bisector of the two.
const hipYawPitchTilt = math.Pi / 4

// LegIK derives one leg's joint angles from a commanded FootOffset,
// closed-form, via the torso→hip→ankle transform chain. reachable is
// false when the target exceeds the leg's physical reach; in that case
// the returned angles are clamped to the leg's joint limits and a
// warning is logged.
func LegIK(logger logging.Logger, cfg Config, offset FootOffset, side Side, anklePitchCorrection float64) (robotapi.OneLeg, bool) {
	hipSignY := 1.0
	if side == SideRight {
		hipSignY = -1.0
	}

	// Target ankle position in the hip's frame: forward/left offset
	// from the torso, translated down by (hipHeight - lift - footHeight)
	// and out by the leg's fixed hip-to-torso-centre offset.
	target := mgl64.Vec3{
		offset.Forward,
		offset.Left - hipSignY*cfg.HipOffsetY,
		-(offset.HipHeight - offset.Lift - cfg.FootHeight),
	}

	// Rotate the target into the tilted hip yaw-pitch frame and apply
	// the commanded foot yaw (turn) about the vertical axis there.
	tilt := mgl64.HomogRotate3DX(hipSignY * hipYawPitchTilt)
	yaw := mgl64.HomogRotate3DZ(offset.Turn)
	local := tilt.Mul4(yaw).Mul4x1(target.Vec4(1))
	tx, ty, tz := local[0], local[1], local[2]

	reach := math.Sqrt(tx*tx + ty*ty + tz*tz)
	maxReach := cfg.ThighLength + cfg.TibiaLength
	reachable := reach <= maxReach
	if !reachable {
		logger.Warnw("leg IK target unreachable, clamping", "side", side, "reach", reach, "max", maxReach)
		reach = maxReach
	}

	cosKnee := (cfg.ThighLength*cfg.ThighLength + cfg.TibiaLength*cfg.TibiaLength - reach*reach) /
		(2 * cfg.ThighLength * cfg.TibiaLength)
	cosKnee = clamp(cosKnee, -1, 1)
	kneePitch := math.Pi - math.Acos(cosKnee)

	// Hip pitch/roll point the thigh at the ankle target; ankle pitch
	// closes the remaining angle so the foot sole stays level (modulo
	// the commanded yaw and balance correction), and ankle roll
	// compensates the hip roll so the sole doesn't tilt with the leg.
	hipPitch := -math.Atan2(tx, math.Hypot(ty, tz))
	hipRoll := math.Atan2(ty, -tz) - hipSignY*hipYawPitchTilt

	cosAnkleBase := (cfg.ThighLength*cfg.ThighLength + reach*reach - cfg.TibiaLength*cfg.TibiaLength) /
		(2 * cfg.ThighLength * reach)
	cosAnkleBase = clamp(cosAnkleBase, -1, 1)
	anklePitch := math.Acos(cosAnkleBase) + hipPitch + anklePitchCorrection
	ankleRoll := -hipRoll

	leg := robotapi.OneLeg{
		HipYawPitch: offset.Turn,
		HipRoll:     clamp(hipRoll, -math.Pi/2, math.Pi/2),
		HipPitch:    clamp(hipPitch, -math.Pi/2, math.Pi/2),
		KneePitch:   clamp(kneePitch, 0, math.Pi*0.9),
		AnklePitch:  clamp(anklePitch, -math.Pi/2, math.Pi/2),
		AnkleRoll:   clamp(ankleRoll, -math.Pi/4, math.Pi/4),
	}
	return leg, reachable
}

// Legs derives both legs' joint angles from this cycle's FootOffsets.
func Legs(logger logging.Logger, cfg Config, offsets FootOffsets, leftAnklePitch, rightAnklePitch float64) robotapi.LegJoints {
	left, _ := LegIK(logger, cfg, offsets.Left, SideLeft, leftAnklePitch)
	right, _ := LegIK(logger, cfg, offsets.Right, SideRight, rightAnklePitch)
	return robotapi.LegJoints{Left: left, Right: right}
}
