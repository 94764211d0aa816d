package timeline

import (
	"testing"

	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int64, start, end string) Entry {
	return Entry{TaskID: id, Start: entity.MustClock(start), End: entity.MustClock(end)}
}

func byID(l Layout) map[int64]Placement {
	m := make(map[int64]Placement, len(l.Placements))
	for _, p := range l.Placements {
		m[p.TaskID] = p
	}
	return m
}

func TestComputeDayLayout_Empty(t *testing.T) {
	l := ComputeDayLayout(nil, DefaultOptions())
	assert.NotNil(t, l.Placements)
	assert.Empty(t, l.Placements)
	assert.Empty(t, l.Rejected)
}

func TestComputeDayLayout_OverlapAndSeparateCluster(t *testing.T) {
	l := ComputeDayLayout([]Entry{
		entry(3, "11:00", "12:00"),
		entry(2, "09:30", "10:30"),
		entry(1, "09:00", "10:00"),
	}, DefaultOptions())

	require.Len(t, l.Placements, 3)
	p := byID(l)

	a, b, c := p[1], p[2], p[3]
	assert.Equal(t, a.Cluster, b.Cluster)
	assert.NotEqual(t, a.Cluster, c.Cluster)

	assert.Equal(t, 0, a.Column)
	assert.Equal(t, 1, b.Column)
	assert.Equal(t, 0.0, a.LeftPct)
	assert.Equal(t, 100.0, a.WidthPct)
	assert.Equal(t, 12.0, b.LeftPct)
	assert.Equal(t, 88.0, b.WidthPct)
	assert.Greater(t, b.ZIndex, a.ZIndex)

	assert.Equal(t, 0, c.Column)
	assert.Equal(t, 0.0, c.LeftPct)
	assert.Equal(t, 100.0, c.WidthPct)

	assert.Equal(t, 80.0, a.Top, "one hour below the 08:00 origin")
	assert.Equal(t, 80.0, a.Height)
	assert.Equal(t, 240.0, c.Top)

	assert.Equal(t, []int64{1, 2, 3}, []int64{l.Placements[0].TaskID, l.Placements[1].TaskID, l.Placements[2].TaskID})
}

func TestComputeDayLayout_SameSlotSideBySide(t *testing.T) {
	l := ComputeDayLayout([]Entry{
		entry(8, "09:00", "10:00"),
		entry(5, "09:00", "10:00"),
	}, DefaultOptions())

	p := byID(l)
	d, e := p[5], p[8]

	assert.Equal(t, 50.0, d.WidthPct)
	assert.Equal(t, 50.0, e.WidthPct)
	assert.Equal(t, 0.0, d.LeftPct, "lower id goes left")
	assert.Equal(t, 50.0, e.LeftPct)
	assert.Equal(t, 30, d.ZIndex)
	assert.Equal(t, 31, e.ZIndex)
}

func TestComputeDayLayout_ToleranceIsStrict(t *testing.T) {
	l := ComputeDayLayout([]Entry{
		entry(1, "09:00", "10:00"),
		entry(2, "09:01", "10:01"),
		entry(3, "09:03", "10:03"),
	}, DefaultOptions())

	p := byID(l)
	assert.Equal(t, 50.0, p[1].WidthPct, "one minute apart counts as the same slot")
	assert.Equal(t, 50.0, p[2].WidthPct)
	assert.Equal(t, 2, p[3].Column)
	assert.Equal(t, 24.0, p[3].LeftPct, "three minutes apart cascades")
}

func TestComputeDayLayout_SameSlotIsPairwise(t *testing.T) {
	// 1 and 3 are 2.5 minutes apart, each within tolerance of 2 only.
	l := ComputeDayLayout([]Entry{
		entry(1, "09:00", "10:00"),
		entry(2, "09:01", "10:01"),
		entry(3, "09:02:30", "10:02:30"),
	}, DefaultOptions())

	p := byID(l)
	assert.Equal(t, 50.0, p[1].WidthPct)
	assert.Equal(t, 0.0, p[1].LeftPct)
	assert.Equal(t, 30, p[1].ZIndex)

	assert.InDelta(t, 100.0/3, p[2].WidthPct, 1e-9)
	assert.InDelta(t, 100.0/3, p[2].LeftPct, 1e-9)
	assert.Equal(t, 31, p[2].ZIndex)

	assert.Equal(t, 50.0, p[3].WidthPct)
	assert.Equal(t, 50.0, p[3].LeftPct)
	assert.Equal(t, 31, p[3].ZIndex)
}

func TestComputeDayLayout_TransitiveCluster(t *testing.T) {
	// 1 and 3 never overlap but share a cluster through 2.
	l := ComputeDayLayout([]Entry{
		entry(1, "09:00", "10:00"),
		entry(2, "09:45", "11:00"),
		entry(3, "10:30", "11:30"),
	}, DefaultOptions())

	p := byID(l)
	assert.Equal(t, p[1].Cluster, p[3].Cluster)
	assert.Equal(t, 0, p[3].Column, "column 0 is free again after 10:00")
	assert.Equal(t, 1, p[2].Column)
}

func TestComputeDayLayout_TouchingTasksDoNotOverlap(t *testing.T) {
	l := ComputeDayLayout([]Entry{
		entry(1, "09:00", "10:00"),
		entry(2, "10:00", "11:00"),
	}, DefaultOptions())

	p := byID(l)
	assert.NotEqual(t, p[1].Cluster, p[2].Cluster)
	assert.Equal(t, 100.0, p[2].WidthPct)
}

func TestComputeDayLayout_IndentCap(t *testing.T) {
	entries := make([]Entry, 0, 7)
	for i := int64(0); i < 7; i++ {
		// Staggered by 5 minutes so none share a slot.
		start := entity.MustClock("09:00") + entity.ClockTime(i*300)
		entries = append(entries, Entry{TaskID: i + 1, Start: start, End: entity.MustClock("12:00") + entity.ClockTime(i*300)})
	}

	p := byID(ComputeDayLayout(entries, DefaultOptions()))
	assert.Equal(t, 6, p[7].Column)
	assert.Equal(t, 60.0, p[7].LeftPct)
	assert.Equal(t, 40.0, p[7].WidthPct)
	assert.Equal(t, 26, p[7].ZIndex)
}

func TestComputeDayLayout_MinHeight(t *testing.T) {
	p := byID(ComputeDayLayout([]Entry{entry(1, "09:00", "09:05")}, DefaultOptions()))
	assert.Equal(t, 26.0, p[1].Height)
}

func TestComputeDayLayout_RejectsMalformedTimes(t *testing.T) {
	l := ComputeDayLayout([]Entry{
		entry(1, "09:00", "10:00"),
		{TaskID: 2, Start: entity.InvalidClock, End: entity.MustClock("10:00")},
		{TaskID: 3, Start: entity.MustClock("10:00"), End: entity.InvalidClock},
	}, DefaultOptions())

	require.Len(t, l.Placements, 1)
	assert.Equal(t, int64(1), l.Placements[0].TaskID)
	require.Len(t, l.Rejected, 2)
	assert.Equal(t, int64(2), l.Rejected[0].TaskID)
	assert.Equal(t, "invalid start time", l.Rejected[0].Reason)
	assert.Equal(t, int64(3), l.Rejected[1].TaskID)
	assert.Equal(t, "invalid end time", l.Rejected[1].Reason)
}

func TestComputeDayLayout_InvertedAndZeroLengthPlacedAtMinHeight(t *testing.T) {
	l := ComputeDayLayout([]Entry{
		entry(1, "09:00", "10:00"),
		entry(2, "11:00", "10:30"),
		entry(3, "12:00", "12:00"),
	}, DefaultOptions())

	assert.Empty(t, l.Rejected)
	require.Len(t, l.Placements, 3)
	p := byID(l)

	assert.Equal(t, 240.0, p[2].Top)
	assert.Equal(t, 26.0, p[2].Height)
	assert.Equal(t, 0, p[2].Column)
	assert.NotEqual(t, p[1].Cluster, p[2].Cluster, "inverted task starts its own cluster")

	assert.Equal(t, 320.0, p[3].Top)
	assert.Equal(t, 26.0, p[3].Height)
	assert.Equal(t, 100.0, p[3].WidthPct)
}

func TestComputeDayLayout_CustomOrigin(t *testing.T) {
	opts := DefaultOptions()
	opts.StartHour = 6
	opts.PxPerHour = 60

	p := byID(ComputeDayLayout([]Entry{entry(1, "07:30", "08:00")}, opts))
	assert.Equal(t, 90.0, p[1].Top)
	assert.Equal(t, 30.0, p[1].Height)
}
