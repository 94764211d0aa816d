// Package timeline arranges one staff member's tasks for a single day into
// visual columns. It is pure and safe to call concurrently.
package timeline

import (
	"math"
	"sort"

	"github.com/officesync/timeline/internal/domain/entity"
)

// Options controls the geometry of a day view.
type Options struct {
	// StartHour is the hour drawn at the top of the view.
	StartHour int
	// PxPerHour must match the grid drawn by the client.
	PxPerHour float64
	// MinHeight keeps short tasks clickable.
	MinHeight float64
	// IndentPct is the left offset per cascade column.
	IndentPct float64
	// MaxIndentPct caps the cascade offset.
	MaxIndentPct float64
	// SameSlotMinutes is the tolerance under which two tasks count as the same slot.
	SameSlotMinutes float64
}

// DefaultOptions returns the geometry used by the web client.
func DefaultOptions() Options {
	return Options{
		StartHour:       8,
		PxPerHour:       80,
		MinHeight:       26,
		IndentPct:       12,
		MaxIndentPct:    60,
		SameSlotMinutes: 2,
	}
}

const (
	cascadeZBase  = 20
	sameSlotZBase = 30
)

// Entry is the minimum a task needs to be placed.
type Entry struct {
	TaskID int64
	Start  entity.ClockTime
	End    entity.ClockTime
}

// EntryFromTask adapts a stored task.
func EntryFromTask(t *entity.Task) Entry {
	return Entry{TaskID: t.ID, Start: t.StartTime, End: t.EndTime}
}

// Placement is where a task is drawn.
type Placement struct {
	TaskID   int64   `json:"task_id"`
	Top      float64 `json:"top"`
	Height   float64 `json:"height"`
	LeftPct  float64 `json:"left_pct"`
	WidthPct float64 `json:"width_pct"`
	ZIndex   int     `json:"z_index"`
	Column   int     `json:"column"`
	Cluster  int     `json:"cluster"`
}

// Rejected is a task left out of the layout.
type Rejected struct {
	TaskID int64  `json:"task_id"`
	Reason string `json:"reason"`
}

// Layout is the result for one day.
type Layout struct {
	Placements []Placement `json:"placements"`
	Rejected   []Rejected  `json:"rejected,omitempty"`
}

type item struct {
	Entry
	start, end float64
	column     int
	placement  *Placement
}

// ComputeDayLayout places tasks so overlapping ones never fully cover each other.
//
// Tasks are sorted by start, grouped into clusters of transitively
// overlapping intervals, and packed greedily into columns. Tasks sharing the
// same slot sit side by side at equal width; other overlaps cascade with an
// indent per column.
func ComputeDayLayout(entries []Entry, opts Options) Layout {
	out := Layout{Placements: []Placement{}}
	if len(entries) == 0 {
		return out
	}

	origin := float64(opts.StartHour * 60)
	items := make([]*item, 0, len(entries))
	for _, e := range entries {
		if reason := validate(e); reason != "" {
			out.Rejected = append(out.Rejected, Rejected{TaskID: e.TaskID, Reason: reason})
			continue
		}
		items = append(items, &item{
			Entry: e,
			start: e.Start.Minutes() - origin,
			end:   e.End.Minutes() - origin,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].start != items[j].start {
			return items[i].start < items[j].start
		}
		return items[i].TaskID < items[j].TaskID
	})

	for n, cluster := range clusterize(items) {
		packColumns(cluster)
		for _, it := range cluster {
			p := &Placement{
				TaskID:  it.TaskID,
				Top:     it.start / 60 * opts.PxPerHour,
				Height:  math.Max(opts.MinHeight, (it.end-it.start)/60*opts.PxPerHour),
				Column:  it.column,
				Cluster: n,
			}
			it.placement = p
		}
		assignWidths(cluster, opts)
	}

	for _, it := range items {
		out.Placements = append(out.Placements, *it.placement)
	}
	return out
}

// validate only rejects unparseable times. An end before its start is still
// placed, at minimum height.
func validate(e Entry) string {
	switch {
	case !e.Start.Valid():
		return "invalid start time"
	case !e.End.Valid():
		return "invalid end time"
	default:
		return ""
	}
}

// clusterize splits sorted items where a start reaches the running max end.
func clusterize(items []*item) [][]*item {
	var clusters [][]*item
	if len(items) == 0 {
		return clusters
	}

	current := []*item{items[0]}
	clusterEnd := items[0].end
	for _, it := range items[1:] {
		if it.start < clusterEnd {
			current = append(current, it)
			if it.end > clusterEnd {
				clusterEnd = it.end
			}
			continue
		}
		clusters = append(clusters, current)
		current = []*item{it}
		clusterEnd = it.end
	}
	return append(clusters, current)
}

// packColumns puts each item in the first column whose last item has ended.
func packColumns(cluster []*item) {
	var lastEnd []float64
	for _, it := range cluster {
		placed := false
		for col, end := range lastEnd {
			if it.start >= end {
				it.column = col
				lastEnd[col] = it.end
				placed = true
				break
			}
		}
		if !placed {
			it.column = len(lastEnd)
			lastEnd = append(lastEnd, it.end)
		}
	}
}

func assignWidths(cluster []*item, opts Options) {
	for _, it := range cluster {
		group := sameSlot(cluster, it, opts.SameSlotMinutes)
		p := it.placement

		if len(group) > 1 {
			idx := 0
			for i, g := range group {
				if g == it {
					idx = i
					break
				}
			}
			p.WidthPct = 100 / float64(len(group))
			p.LeftPct = float64(idx) * p.WidthPct
			p.ZIndex = sameSlotZBase + idx
			continue
		}

		indent := math.Min(float64(it.column)*opts.IndentPct, opts.MaxIndentPct)
		p.LeftPct = indent
		p.WidthPct = 100 - indent
		p.ZIndex = cascadeZBase + it.column
	}
}

// sameSlot returns the cluster members starting and ending within tolerance of it, by id.
// The relation is not transitive: in a chain where only neighbours are within
// tolerance, each task gets its own group size and the slots may overlap. The
// web client behaves the same way.
func sameSlot(cluster []*item, it *item, tolerance float64) []*item {
	var group []*item
	for _, other := range cluster {
		if math.Abs(other.start-it.start) < tolerance && math.Abs(other.end-it.end) < tolerance {
			group = append(group, other)
		}
	}
	sort.Slice(group, func(i, j int) bool { return group[i].TaskID < group[j].TaskID })
	return group
}
