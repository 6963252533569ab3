package anim

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Loop is the number of times a track plays before holding its last pose.
type Loop int

// LoopInfinite plays a track forever.
const LoopInfinite Loop = -1

const loopInfiniteWire = "infinite"

// MarshalJSON encodes a play count as a number and LoopInfinite as "infinite".
func (l Loop) MarshalJSON() ([]byte, error) {
	if l == LoopInfinite {
		return json.Marshal(loopInfiniteWire)
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// UnmarshalJSON accepts either a number or "infinite".
func (l *Loop) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != loopInfiniteWire {
			return fmt.Errorf("invalid loop %q", s)
		}
		*l = LoopInfinite
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid loop %s: %w", data, err)
	}
	*l = Loop(n)
	return nil
}

func (l Loop) String() string {
	if l == LoopInfinite {
		return loopInfiniteWire
	}
	return strconv.Itoa(int(l))
}

// Track is one named animation from the host's animation library and how
// strongly it contributes to the pose.
type Track struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Loop   Loop    `json:"loop"`
}

// Set is the full blended pose sent to the host in one update.
type Set []Track

// Weight returns the weight of the named track, or 0 if the set lacks it.
func (s Set) Weight(name string) float64 {
	for _, t := range s {
		if t.Name == name {
			return t.Weight
		}
	}
	return 0
}

// Blend builds the two-track set for a fade point w, where w is the weight
// of to.
func Blend(from, to string, w float64) Set {
	return Set{
		{Name: from, Weight: 1 - w, Loop: LoopInfinite},
		{Name: to, Weight: w, Loop: LoopInfinite},
	}
}
