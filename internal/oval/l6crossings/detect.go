package l6crossings

import (
	"sort"
	"time"
)

// DefaultGroupingThreshold is the event gap that starts a new flyby group.
const DefaultGroupingThreshold = 3 * time.Hour

type trackKey struct {
	station, satellite string
}

// Detect tests every track against each pair of consecutive epochs whose
// regions are both usable. A track moving from outside to inside emits an
// entered event at the later epoch; the reverse emits exited. Tracks need
// a sample at exactly both epoch timestamps to be tested. Events of one
// track are grouped whenever the gap to the previous event exceeds
// groupingThreshold; a non-positive threshold selects the default.
func Detect(epochs []Epoch, tracks []Track, groupingThreshold time.Duration) Crossings {
	if groupingThreshold <= 0 {
		groupingThreshold = DefaultGroupingThreshold
	}
	out := make(Crossings)
	if len(epochs) < 2 || len(tracks) == 0 {
		return out
	}

	sorted := make([]Epoch, len(epochs))
	copy(sorted, epochs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	usable := make([]bool, len(sorted))
	for i, e := range sorted {
		usable[i] = e.Region.Usable()
	}

	byKey := make(map[trackKey]map[int64]TrackSample)
	for _, tr := range tracks {
		k := trackKey{tr.Station, tr.Satellite}
		idx, ok := byKey[k]
		if !ok {
			idx = make(map[int64]TrackSample, len(tr.Samples))
			byKey[k] = idx
		}
		for _, s := range tr.Samples {
			idx[s.Time.UnixNano()] = s
		}
	}
	keys := make([]trackKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].station != keys[j].station {
			return keys[i].station < keys[j].station
		}
		return keys[i].satellite < keys[j].satellite
	})

	for _, k := range keys {
		idx := byKey[k]
		for i := 0; i+1 < len(sorted); i++ {
			if !usable[i] || !usable[i+1] {
				continue
			}
			cur, next := sorted[i], sorted[i+1]
			pc, ok := idx[cur.Time.UnixNano()]
			if !ok {
				continue
			}
			pn, ok := idx[next.Time.UnixNano()]
			if !ok {
				continue
			}
			was := cur.Region.Contains(pc.Lon, pc.Lat)
			is := next.Region.Contains(pn.Lon, pn.Lat)
			switch {
			case was && !is:
				out.add(k.station, k.satellite, Event{Time: next.Time, Type: EventExited}, groupingThreshold)
			case !was && is:
				out.add(k.station, k.satellite, Event{Time: next.Time, Type: EventEntered}, groupingThreshold)
			}
		}
	}
	return out
}
