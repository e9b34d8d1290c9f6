package simfeed

import (
	"math"
	"math/rand"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// Flight phases of the synthetic profile, in order.
const (
	phaseClimb = iota
	phaseCruise
	phaseDescent
)

const (
	cruiseAltitude = 12_000 // feet
	climbRate      = 1_800  // feet per minute
	descentRate    = 1_400
	cruiseSpeed    = 250 // knots
	climbSpeed     = 180
)

// profile integrates a simple climb/cruise/descent flight and emits
// noisy samples around it. Sensor noise amplitudes are loosely modeled
// on a light-aircraft simulator feed.
type profile struct {
	rng *rand.Rand

	started  time.Time
	lastTick time.Time

	altitude float64
	heading  float64
	phase    int
}

func newProfile(rng *rand.Rand) *profile {
	return &profile{rng: rng, heading: 90}
}

// next advances the profile to now and returns the resulting frame.
func (p *profile) next(now time.Time) telemetry.Frame {
	if p.started.IsZero() {
		p.started = now
		p.lastTick = now
	}
	dt := now.Sub(p.lastTick).Seconds()
	p.lastTick = now

	p.advance(dt, now.Sub(p.started))

	airspeed := float64(climbSpeed)
	pitch := 7.0
	switch p.phase {
	case phaseCruise:
		airspeed = cruiseSpeed
		pitch = 2.0
	case phaseDescent:
		airspeed = cruiseSpeed - 40
		pitch = -3.0
	}

	p.heading += 0.5 * dt // lazy standard-rate-ish drift
	p.heading = math.Mod(p.heading, 360)

	f := telemetry.NewFrame(now)
	f.Set("altitude", telemetry.Float64Value(p.altitude+p.noise(15)))
	f.Set("airspeed", telemetry.Float64Value(airspeed+p.noise(3)))
	f.Set("heading", telemetry.Float64Value(p.heading+p.noise(0.5)))
	f.Set("pitch", telemetry.Float64Value(pitch+p.noise(0.4)))
	f.Set("vspeed", telemetry.Float64Value(p.verticalSpeed()+p.noise(40)))
	f.Set("gear_down", telemetry.BoolValue(p.phase != phaseCruise && p.altitude < 2_000))
	f.Set("phase", telemetry.IntValue(int64(p.phase)))
	return f
}

func (p *profile) advance(dt float64, elapsed time.Duration) {
	switch p.phase {
	case phaseClimb:
		p.altitude += climbRate / 60 * dt
		if p.altitude >= cruiseAltitude {
			p.altitude = cruiseAltitude
			p.phase = phaseCruise
		}

	case phaseCruise:
		// Hold for ten minutes of simulated time, then descend.
		if elapsed > 10*time.Minute {
			p.phase = phaseDescent
		}

	case phaseDescent:
		p.altitude -= descentRate / 60 * dt
		if p.altitude < 0 {
			p.altitude = 0
		}
	}
}

func (p *profile) verticalSpeed() float64 {
	switch p.phase {
	case phaseClimb:
		return climbRate
	case phaseDescent:
		return -descentRate
	default:
		return 0
	}
}

// noise returns gaussian noise with the given standard deviation.
func (p *profile) noise(stddev float64) float64 {
	return p.rng.NormFloat64() * stddev
}
