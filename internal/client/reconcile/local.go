// Package reconcile keeps a client's view of the shared space: the local
// avatar moves immediately from input, remote avatars ease toward the latest
// server snapshot.
package reconcile

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"yogiworld.io/internal/protocol"
)

const (
	WalkSpeed = 3.2 // units per second
	RunSpeed  = 6.0

	// PushInterval is how often the local state is reported, independent of
	// the server tick.
	PushInterval = time.Second / 12
)

// Local is the avatar driven by this client's input.
type Local struct {
	ID      string
	Pos     mgl64.Vec3
	Heading float64

	sincePush time.Duration
}

// Forward is the unit vector the avatar faces on the ground plane.
func (l *Local) Forward() mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(l.Heading), 0, math.Cos(l.Heading)}
}

func (l *Local) right() mgl64.Vec3 {
	return mgl64.Vec3{math.Cos(l.Heading), 0, -math.Sin(l.Heading)}
}

// Move applies one frame of input. forward and strafe are in [-1, 1]; the
// combined direction is normalized so diagonals are not faster.
func (l *Local) Move(forward, strafe float64, run bool, dt time.Duration) {
	dir := l.Forward().Mul(forward).Add(l.right().Mul(strafe))
	n := dir.Len()
	if n == 0 {
		return
	}
	if n > 1 {
		dir = dir.Mul(1 / n)
	}
	speed := WalkSpeed
	if run {
		speed = RunSpeed
	}
	l.Pos = l.Pos.Add(dir.Mul(speed * dt.Seconds()))
}

func (l *Local) Turn(delta float64) {
	l.Heading = wrapAngle(l.Heading + delta)
}

// Due advances the push timer by dt and reports whether a state report
// should be sent now.
func (l *Local) Due(dt time.Duration) bool {
	l.sincePush += dt
	if l.sincePush < PushInterval {
		return false
	}
	l.sincePush -= PushInterval
	if l.sincePush >= PushInterval {
		// Long frame; do not burst to catch up.
		l.sincePush = 0
	}
	return true
}

func (l *Local) State() protocol.StateMsg {
	return protocol.StateMsg{
		Type:    protocol.TypeState,
		X:       l.Pos.X(),
		Y:       l.Pos.Y(),
		Z:       l.Pos.Z(),
		Heading: l.Heading,
	}
}

// wrapAngle maps a into (-pi, pi].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
