package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/timmy/photocache/internal/domain"
)

func photos(ids ...string) []domain.Photo {
	out := make([]domain.Photo, len(ids))
	for i, id := range ids {
		out[i] = domain.Photo{ID: id}
	}
	return out
}

func ids(ps []domain.Photo) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func at(nanos int64) *Sampler {
	return New(FixedClock{T: time.Unix(0, nanos)})
}

// window is the cyclic run of count ids starting at start.
func window(all []string, start, count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, all[(start+i)%len(all)])
	}
	return out
}

func TestSampleWalksCyclicallyFromClockOffset(t *testing.T) {
	all := []string{"a", "b", "c", "d", "e"}
	records := photos(all...)

	tests := []struct {
		name  string
		nanos int64
		count int
		want  int
	}{
		{name: "partial", nanos: 10, count: 3, want: 3},
		{name: "unbounded", nanos: 7, count: Unbounded, want: 5},
		{name: "count clamped", nanos: 4, count: 50, want: 5},
		{name: "zero count", nanos: 4, count: 0, want: 0},
		{name: "before epoch", nanos: -1, count: 2, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := offset(time.Unix(0, tt.nanos), len(records))
			assert.GreaterOrEqual(t, start, 0)
			assert.Less(t, start, len(records))

			got := at(tt.nanos).Sample(records, tt.count)
			assert.Equal(t, window(all, start, tt.want), ids(got))
		})
	}
}

func TestSampleRotatesOnCoarseClocks(t *testing.T) {
	all := []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9"}
	records := photos(all...)

	// Microsecond and 100ns wall clocks: every tick is a multiple of len(records) nanoseconds.
	for _, step := range []time.Duration{1337 * time.Microsecond, 100 * time.Nanosecond, time.Second} {
		firsts := map[string]int{}
		for i := 0; i < 5000; i++ {
			got := New(FixedClock{T: time.Unix(1700000000, 0).Add(time.Duration(i) * step)}).Sample(records, Unbounded)
			firsts[got[0].ID]++
		}
		assert.Greater(t, len(firsts), 1, "step %s", step)
		assert.Len(t, firsts, len(all), "step %s", step)
	}
}

func TestSampleEmptyInput(t *testing.T) {
	got := at(99).Sample(nil, 10)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSampleIsDistinctAndLeavesInputAlone(t *testing.T) {
	records := photos("a", "b", "c", "d")
	before := append([]domain.Photo(nil), records...)

	got := New(nil).Sample(records, Unbounded)

	assert.ElementsMatch(t, before, got)
	assert.Equal(t, before, records)
}

func TestSampleIsStableForFixedClock(t *testing.T) {
	s := at(123456789)
	records := photos("a", "b", "c", "d", "e", "f", "g")

	assert.Equal(t, s.Sample(records, 4), s.Sample(records, 4))
}
