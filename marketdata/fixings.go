// Package marketdata supplies historical index fixings to the pricing engine.
//
// Fixings are needed wherever a coupon's rate-determining date falls on or
// before the valuation date: the rate is then a known historical quantity and
// must not be simulated.
package marketdata

import (
	"sync"
	"time"
)

// FixingFeed supplies historical fixings for a named index.
type FixingFeed interface {
	// Fixing returns the published value of the index on the given date,
	// and whether a fixing exists for that date.
	Fixing(index string, date time.Time) (float64, bool)
}

const dateLayout = "2006-01-02"

// MapFixingFeed is a static map-backed implementation for development/testing.
type MapFixingFeed struct {
	mu      sync.RWMutex
	fixings map[string]map[string]float64 // index -> date -> value
}

// NewMapFixingFeed builds a feed from index -> (YYYY-MM-DD -> value) data.
func NewMapFixingFeed(fixings map[string]map[string]float64) *MapFixingFeed {
	copied := make(map[string]map[string]float64, len(fixings))
	for idx, byDate := range fixings {
		m := make(map[string]float64, len(byDate))
		for d, v := range byDate {
			m[d] = v
		}
		copied[idx] = m
	}
	return &MapFixingFeed{fixings: copied}
}

// Fixing implements FixingFeed.
func (m *MapFixingFeed) Fixing(index string, date time.Time) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byDate, ok := m.fixings[index]
	if !ok {
		return 0, false
	}
	v, ok := byDate[date.Format(dateLayout)]
	return v, ok
}

// Add records a fixing, overwriting any existing value for the date.
func (m *MapFixingFeed) Add(index string, date time.Time, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fixings == nil {
		m.fixings = make(map[string]map[string]float64)
	}
	byDate, ok := m.fixings[index]
	if !ok {
		byDate = make(map[string]float64)
		m.fixings[index] = byDate
	}
	byDate[date.Format(dateLayout)] = value
}

// EmptyFeed returns a feed with no fixings, for trades with no past resets.
func EmptyFeed() FixingFeed {
	return &MapFixingFeed{fixings: map[string]map[string]float64{}}
}
