package l6crossings

import "time"

// DefaultShortGap is the widest gap between events of one burst.
const DefaultShortGap = 15 * time.Minute

// Clean stabilises one flyby's time-sorted raw events:
//  1. consecutive events of the same type collapse to the first;
//  2. events chained by gaps of at most shortGap form a burst, replaced by
//     its last event;
//  3. only the longest strictly alternating run survives, the earliest one
//     on a tie.
//
// The result alternates strictly, is never longer than events, and is a
// fixed point of Clean. A non-positive shortGap selects the default.
func Clean(events []Event, shortGap time.Duration) []Event {
	if shortGap <= 0 {
		shortGap = DefaultShortGap
	}
	if len(events) == 0 {
		return nil
	}
	return longestAlternating(mergeBursts(collapseDuplicates(events), shortGap))
}

// CleanSeries applies Clean to parallel time and type slices. Extra entries
// in the longer slice are ignored.
func CleanSeries(times []time.Time, types []EventType, shortGap time.Duration) ([]time.Time, []EventType) {
	n := min(len(times), len(types))
	events := make([]Event, n)
	for i := range events {
		events[i] = Event{Time: times[i], Type: types[i]}
	}
	cleaned := Clean(events, shortGap)
	outTimes := make([]time.Time, len(cleaned))
	outTypes := make([]EventType, len(cleaned))
	for i, e := range cleaned {
		outTimes[i], outTypes[i] = e.Time, e.Type
	}
	return outTimes, outTypes
}

// CleanAll cleans every flyby group, dropping groups that end up empty.
func CleanAll(c Crossings, shortGap time.Duration) Crossings {
	out := make(Crossings, len(c))
	for st, sats := range c {
		for sat, groups := range sats {
			var kept [][]Event
			for _, g := range groups {
				if cg := Clean(g, shortGap); len(cg) > 0 {
					kept = append(kept, cg)
				}
			}
			if len(kept) == 0 {
				continue
			}
			if out[st] == nil {
				out[st] = make(map[string][][]Event)
			}
			out[st][sat] = kept
		}
	}
	return out
}

func collapseDuplicates(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if n := len(out); n > 0 && out[n-1].Type == e.Type {
			continue
		}
		out = append(out, e)
	}
	return out
}

func mergeBursts(events []Event, shortGap time.Duration) []Event {
	out := make([]Event, 0, len(events))
	for i, e := range events {
		if i > 0 && e.Time.Sub(events[i-1].Time) <= shortGap {
			// The burst keeps its last event, type and time both. A
			// two-event burst is not folded into the first event's type.
			out[len(out)-1] = e
			continue
		}
		out = append(out, e)
	}
	return out
}

func longestAlternating(events []Event) []Event {
	bestStart, bestLen := 0, 0
	start := 0
	for i := 1; i <= len(events); i++ {
		if i < len(events) && events[i].Type != events[i-1].Type {
			continue
		}
		if i-start > bestLen {
			bestStart, bestLen = start, i-start
		}
		start = i
	}
	out := make([]Event, bestLen)
	copy(out, events[bestStart:bestStart+bestLen])
	return out
}
