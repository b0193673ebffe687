package engine

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// AnimationState is the two-state machine of a TranslationAnimator.
type AnimationState int

const (
	Idle AnimationState = iota
	Animating
)

func (s AnimationState) String() string {
	if s == Animating {
		return "animating"
	}
	return "idle"
}

// Easing maps timer progress in [0,1] to interpolation progress.
type Easing interface {
	Ease(t float64) float64
}

// CubicBezierEase is a cubic bezier from (0,0) to (1,1) with two free control points.
// Y values outside [0,1] overshoot. X values must lie in [0,1] so the curve is a
// function of time.
type CubicBezierEase struct {
	P1 mgl64.Vec2
	P2 mgl64.Vec2
}

// DefaultEase is the ease-in with overshoot used for agent moves.
func DefaultEase() CubicBezierEase {
	return CubicBezierEase{P1: mgl64.Vec2{0, 0}, P2: mgl64.Vec2{0.4, 1.5}}
}

// Validate checks that the curve is monotonic in x.
func (c CubicBezierEase) Validate() error {
	for i, p := range []mgl64.Vec2{c.P1, c.P2} {
		if p.X() < 0 || p.X() > 1 {
			return fmt.Errorf("control point %d x=%v must be within [0,1]", i+1, p.X())
		}
	}
	return nil
}

const bezierIterations = 48

// Ease finds the curve parameter whose x equals t by bisection and returns its y.
func (c CubicBezierEase) Ease(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	start, end := mgl64.Vec2{0, 0}, mgl64.Vec2{1, 1}
	lo, hi := 0.0, 1.0
	s := t
	for i := 0; i < bezierIterations; i++ {
		s = (lo + hi) / 2
		x := mgl64.CubicBezierCurve2D(s, start, c.P1, c.P2, end).X()
		if x < t {
			lo = s
		} else {
			hi = s
		}
	}
	return mgl64.CubicBezierCurve2D(s, start, c.P1, c.P2, end).Y()
}

// TranslationAnimator interpolates an entity's visual position between two cell
// centers. Idle means the timer has elapsed and the position rests on End.
type TranslationAnimator struct {
	State    AnimationState
	Start    mgl64.Vec2
	End      mgl64.Vec2
	Position mgl64.Vec2
	Elapsed  time.Duration
	Duration time.Duration
	Curve    Easing
}

// NewSettledAnimator returns an idle animator resting on pos. First placement is
// not a move, so no interpolation happens.
func NewSettledAnimator(pos mgl64.Vec2, duration time.Duration, curve Easing) TranslationAnimator {
	return TranslationAnimator{
		State:    Idle,
		Start:    pos,
		End:      pos,
		Position: pos,
		Elapsed:  duration,
		Duration: duration,
		Curve:    curve,
	}
}

// Settled reports whether the animator is idle.
func (a *TranslationAnimator) Settled() bool {
	return a.State == Idle
}

// Begin starts a transition from the current visual position to end. A zero
// duration still completes on the next Update.
func (a *TranslationAnimator) Begin(end mgl64.Vec2) {
	a.Start = a.Position
	a.End = end
	a.Elapsed = 0
	a.State = Animating
}

// Percent returns the timer progress in [0,1].
func (a *TranslationAnimator) Percent() float64 {
	if a.Duration <= 0 || a.Elapsed >= a.Duration {
		return 1
	}
	return float64(a.Elapsed) / float64(a.Duration)
}

// Update advances the timer by dt. It returns true on the tick the timer crosses
// its duration; the position then snaps exactly to End.
func (a *TranslationAnimator) Update(dt time.Duration) bool {
	if a.State != Animating {
		return false
	}
	if dt > 0 {
		a.Elapsed += dt
	}
	if a.Elapsed >= a.Duration {
		a.Elapsed = a.Duration
		a.Position = a.End
		a.State = Idle
		return true
	}
	progress := a.Percent()
	if a.Curve != nil {
		progress = a.Curve.Ease(progress)
	}
	a.Position = a.Start.Add(a.End.Sub(a.Start).Mul(progress))
	return false
}
