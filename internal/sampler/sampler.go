// Package sampler picks a rotating window of photos so repeated reads over an
// unchanged catalog still vary over time.
package sampler

import (
	"time"

	"github.com/timmy/photocache/internal/domain"
)

// Unbounded requests every available photo.
const Unbounded = -1

// Clock supplies the instant used to seed the rotation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Sampler selects photos starting at a clock-derived offset.
type Sampler struct {
	clock Clock
}

// New creates a Sampler. A nil clock means SystemClock.
func New(clock Clock) *Sampler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sampler{clock: clock}
}

// Sample returns up to count photos from records, walking cyclically from a
// start offset derived from Now().
// Parameters:
//   - records: candidate photos; not modified.
//   - count: number wanted, or a negative value (Unbounded) for all of them.
//
// Returns:
//   - []domain.Photo: min(count, len(records)) distinct entries, never nil.
func (s *Sampler) Sample(records []domain.Photo, count int) []domain.Photo {
	n := len(records)
	if count < 0 || count > n {
		count = n
	}
	out := make([]domain.Photo, 0, count)
	if count == 0 {
		return out
	}

	start := offset(s.clock.Now(), n)
	for i := 0; i < count; i++ {
		out = append(out, records[(start+i)%n])
	}
	return out
}

// offset maps t onto [0, n). Wall clocks on some platforms only tick in
// microseconds or 100ns steps, so the timestamp is mixed before the modulus.
func offset(t time.Time, n int) int {
	return int(mix(uint64(t.UnixNano())) % uint64(n))
}

// mix is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
