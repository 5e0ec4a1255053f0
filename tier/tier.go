// Package tier maps a coarse device capability class to playback timing and
// decorative animation knobs. Everything in here is pure and safe to call on
// every render tick.
package tier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier is a coarse device capability classification.
type Tier string

const (
	Low    Tier = "low"
	Medium Tier = "medium"
	High   Tier = "high"
)

// ErrUnknownTier is returned by Parse for anything other than low, medium or high.
var ErrUnknownTier = errors.New("unknown tier")

// Pause delays per tier. Weaker devices give up an off-screen stream sooner.
const (
	LowPauseDelay    = 3 * time.Second
	MediumPauseDelay = 5 * time.Second
	HighPauseDelay   = 8 * time.Second
)

// Parse converts a user supplied tier name into a Tier.
func Parse(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case Low, Medium, High:
		return true
	}
	return false
}

func (t Tier) String() string {
	return string(t)
}

// PauseDelay returns how long a stream may stay off-screen before it is
// paused. Unknown tiers are treated as Medium.
func PauseDelay(t Tier) time.Duration {
	switch t {
	case Low:
		return LowPauseDelay
	case High:
		return HighPauseDelay
	default:
		return MediumPauseDelay
	}
}

// Variant selects how a decorative element is rendered.
type Variant string

const (
	VariantStatic Variant = "static"
	VariantPulse  Variant = "pulse"
)

// AnimationsEnabled reports whether decorative motion should render at all.
func AnimationsEnabled(t Tier, forceDisable bool) bool {
	return !forceDisable && t != Low
}

// PulseVariant picks the LIVE badge style.
func PulseVariant(t Tier, forceDisable bool) Variant {
	if !AnimationsEnabled(t, forceDisable) {
		return VariantStatic
	}
	return VariantPulse
}

// TransitionDuration is the duration used for hover and fade transitions,
// zero when animations are disabled.
func TransitionDuration(t Tier, forceDisable bool) time.Duration {
	if !AnimationsEnabled(t, forceDisable) {
		return 0
	}
	if t == High {
		return 300 * time.Millisecond
	}
	return 150 * time.Millisecond
}

// Settings bundles every tier knob for a viewer.
type Settings struct {
	Tier               Tier    `json:"tier"`
	PauseDelayMs       int64   `json:"pause_delay_ms"`
	AnimationsEnabled  bool    `json:"animations_enabled"`
	PulseVariant       Variant `json:"pulse_variant"`
	TransitionDuration int64   `json:"transition_ms"`
}

// Policy evaluates all knobs for t.
func Policy(t Tier, forceDisable bool) Settings {
	return Settings{
		Tier:               t,
		PauseDelayMs:       PauseDelay(t).Milliseconds(),
		AnimationsEnabled:  AnimationsEnabled(t, forceDisable),
		PulseVariant:       PulseVariant(t, forceDisable),
		TransitionDuration: TransitionDuration(t, forceDisable).Milliseconds(),
	}
}
