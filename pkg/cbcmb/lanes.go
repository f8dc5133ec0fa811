package cbcmb

import "fmt"

// Lanes is the width of the multi-buffer backend.
const Lanes = 8

// LaneStack is the free list of backend lanes: a fixed stack giving O(1)
// allocation with LIFO reuse. A fresh stack hands out lanes 0 through 7 in order.
type LaneStack struct {
	free [Lanes]uint8
	top  int
	used uint8 // bit i set while lane i is allocated
}

// NewLaneStack returns a stack with every lane free.
func NewLaneStack() *LaneStack {
	var s LaneStack

	s.Reset()

	return &s
}

// Reset marks every lane free.
func (s *LaneStack) Reset() {
	for i := range Lanes {
		s.free[i] = uint8(Lanes - 1 - i)
	}

	s.top = Lanes
	s.used = 0
}

// Alloc pops the most recently freed lane. ok is false when no lane is free.
func (s *LaneStack) Alloc() (lane int, ok bool) {
	if s.top == 0 {
		return 0, false
	}

	s.top--
	lane = int(s.free[s.top])
	s.used |= 1 << lane

	return lane, true
}

// Free pushes lane back on the stack. Freeing a lane that is not allocated panics.
func (s *LaneStack) Free(lane int) {
	if lane < 0 || lane >= Lanes {
		panic(fmt.Sprintf("cbcmb: lane %d out of range", lane))
	}

	if s.used&(1<<lane) == 0 {
		panic(fmt.Sprintf("cbcmb: lane %d freed twice", lane))
	}

	s.used &^= 1 << lane
	s.free[s.top] = uint8(lane)
	s.top++
}

// Available returns the number of free lanes.
func (s *LaneStack) Available() int {
	return s.top
}

// InUse returns the number of allocated lanes.
func (s *LaneStack) InUse() int {
	return Lanes - s.top
}

// Allocated reports whether lane is currently allocated.
func (s *LaneStack) Allocated(lane int) bool {
	return lane >= 0 && lane < Lanes && s.used&(1<<lane) != 0
}
