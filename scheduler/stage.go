// Package scheduler owns all systems, orders them within each stage,
// and executes one full cycle per Tick.
package scheduler

import "fmt"

// Stage is a coarse-grained bucket of systems sharing a temporal
// position within a cycle. Stages run in index order.
type Stage uint8

const (
	Init Stage = iota
	Sensor
	Execute
	Finalize
	Write
	PostWrite
	firstCustomStage
)

// Custom returns a custom stage ordered after PostWrite. Custom stages
// are ordered among themselves by the numeric offset passed in.
func Custom(offset uint8) Stage {
	return firstCustomStage + Stage(offset)
}

func (s Stage) String() string {
	switch s {
	case Init:
		return "Init"
	case Sensor:
		return "Sensor"
	case Execute:
		return "Execute"
	case Finalize:
		return "Finalize"
	case Write:
		return "Write"
	case PostWrite:
		return "PostWrite"
	default:
		return fmt.Sprintf("Custom(%d)", s-firstCustomStage)
	}
}

// stageOrder is the canonical list of built-in stages, in index order.
var stageOrder = []Stage{Init, Sensor, Execute, Finalize, Write, PostWrite}
