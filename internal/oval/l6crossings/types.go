package l6crossings

import (
	"fmt"
	"sort"
	"time"

	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/l5regions"
)

// Track is one station/satellite ground track.
type Track = l1samples.TrackRecord

// TrackSample is one position on a track.
type TrackSample = l1samples.TrackPoint

// EventType says which way a track crossed the oval boundary.
type EventType int

const (
	EventEntered EventType = iota + 1
	EventExited
)

func (t EventType) String() string {
	switch t {
	case EventEntered:
		return "entered"
	case EventExited:
		return "exited"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// ParseEventType is the inverse of String.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "entered":
		return EventEntered, nil
	case "exited":
		return EventExited, nil
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// MarshalText encodes the type by name.
func (t EventType) MarshalText() ([]byte, error) {
	if t != EventEntered && t != EventExited {
		return nil, fmt.Errorf("invalid event type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *EventType) UnmarshalText(b []byte) error {
	v, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Event is one boundary crossing.
type Event struct {
	Time time.Time `json:"time"`
	Type EventType `json:"event"`
}

func (e Event) String() string {
	return e.Type.String() + "@" + e.Time.UTC().Format(time.RFC3339)
}

// Epoch pairs an epoch timestamp with its region. A nil region marks an
// epoch without a usable boundary.
type Epoch struct {
	Time   time.Time
	Region *l5regions.Region
}

// Crossings maps station → satellite → flyby groups of events.
type Crossings map[string]map[string][][]Event

// Flyby is one event group of one station/satellite pair.
type Flyby struct {
	Station   string
	Satellite string
	Index     int
	Events    []Event
}

func (c Crossings) add(station, satellite string, ev Event, threshold time.Duration) {
	sats, ok := c[station]
	if !ok {
		sats = make(map[string][][]Event)
		c[station] = sats
	}
	groups := sats[satellite]
	if n := len(groups); n > 0 {
		last := groups[n-1]
		if ev.Time.Sub(last[len(last)-1].Time) <= threshold {
			groups[n-1] = append(last, ev)
			return
		}
	}
	sats[satellite] = append(groups, []Event{ev})
}

// Flybys flattens the groups in (station, satellite, index) order.
func (c Crossings) Flybys() []Flyby {
	stations := make([]string, 0, len(c))
	for st := range c {
		stations = append(stations, st)
	}
	sort.Strings(stations)

	var out []Flyby
	for _, st := range stations {
		sats := make([]string, 0, len(c[st]))
		for sat := range c[st] {
			sats = append(sats, sat)
		}
		sort.Strings(sats)
		for _, sat := range sats {
			for i, g := range c[st][sat] {
				out = append(out, Flyby{Station: st, Satellite: sat, Index: i, Events: g})
			}
		}
	}
	return out
}

// EventCount returns the total number of events.
func (c Crossings) EventCount() int {
	n := 0
	for _, sats := range c {
		for _, groups := range sats {
			for _, g := range groups {
				n += len(g)
			}
		}
	}
	return n
}
