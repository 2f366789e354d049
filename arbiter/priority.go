// Package arbiter accumulates per-cycle joint and LED requests from
// multiple systems and resolves one outgoing control frame by priority.
package arbiter

import "fmt"

// Priority orders competing requests for the same joint or LED group.
// Values fall in [0, 100]; higher wins. Equal priority keeps whichever
// request claimed the group first this cycle.
type Priority uint8

const (
	Low      Priority = 10
	Medium   Priority = 30
	High     Priority = 60
	Critical Priority = 90
)

// Custom returns a priority with an explicit value in [0, 100].
func Custom(value uint8) Priority {
	if value > 100 {
		panic(fmt.Sprintf("arbiter: custom priority %d out of range [0, 100]", value))
	}
	return Priority(value)
}

func (p Priority) Value() uint8 { return uint8(p) }
