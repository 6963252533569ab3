package util

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fogleman/ease"
)

// EaseFunc maps a linear fade in [0,1] to an eased fade.
type EaseFunc func(t float64) float64

var easings = map[string]EaseFunc{
	"linear":     ease.Linear,
	"inquad":     ease.InQuad,
	"outquad":    ease.OutQuad,
	"inoutquad":  ease.InOutQuad,
	"incubic":    ease.InCubic,
	"outcubic":   ease.OutCubic,
	"inoutcubic": ease.InOutCubic,
	"insine":     ease.InSine,
	"outsine":    ease.OutSine,
	"inoutsine":  ease.InOutSine,
	"inexpo":     ease.InExpo,
	"outexpo":    ease.OutExpo,
	"inoutexpo":  ease.InOutExpo,
	"incirc":     ease.InCirc,
	"outcirc":    ease.OutCirc,
	"inoutcirc":  ease.InOutCirc,
	"inquart":    ease.InQuart,
	"outquart":   ease.OutQuart,
	"inoutquart": ease.InOutQuart,
	"inquint":    ease.InQuint,
	"outquint":   ease.OutQuint,
	"inoutquint": ease.InOutQuint,
}

// Easing looks up an easing curve by name. Names are case-insensitive and
// ignore dashes, so "in-out-quad" and "InOutQuad" are the same curve. An empty
// name is linear.
func Easing(name string) (EaseFunc, error) {
	key := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	if key == "" {
		return ease.Linear, nil
	}
	f, ok := easings[key]
	if !ok {
		return nil, fmt.Errorf("unknown easing %q (want one of %s)", name, strings.Join(EasingNames(), ", "))
	}
	return f, nil
}

// EasingNames lists the supported easing names in sorted order.
func EasingNames() []string {
	names := make([]string, 0, len(easings))
	for n := range easings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
