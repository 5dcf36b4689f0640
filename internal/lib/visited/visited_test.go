package visited

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dpup/tripmap/internal/lib/trip"
)

func TestAggregate(t *testing.T) {
	trips := []trip.Trip{
		{OriginRegion: "Taiwan", DestRegion: "Japan", DateStart: "2024-05-01"},
		{OriginRegion: "Japan", DestRegion: "Korea", DateStart: "2025-01-01"},
		{OriginRegion: "France", DestRegion: "Spain"},
		{DestRegion: "Italy", TargetRegion: "Vatican", DateStart: "2024-06-15"},
	}

	set := Aggregate(trips, "2024-06-15")

	assert.Equal(t, []string{"Italy", "Japan", "Taiwan", "Vatican"}, set.Sorted())
	assert.False(t, set.Has("Korea"), "future trips do not count")
	assert.False(t, set.Has("Spain"), "undated trips do not count")
	assert.False(t, set.Has(""))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Equal(t, 0, Aggregate(nil, "2024-06-15").Len())
}

func TestAggregate_OrderInsensitive(t *testing.T) {
	trips := []trip.Trip{
		{OriginRegion: "Taiwan", DestRegion: "Japan", DateStart: "2024-05-01"},
		{OriginRegion: "Germany", DestRegion: "Austria", DateStart: "2023-02-01"},
		{DestRegion: "Portugal", DateStart: "2022-09-09"},
	}
	reversed := []trip.Trip{trips[2], trips[1], trips[0]}

	assert.True(t, Aggregate(trips, "2024-12-31").Equal(Aggregate(reversed, "2024-12-31")))
}

func TestAggregate_MonotoneInToday(t *testing.T) {
	trips := []trip.Trip{
		{DestRegion: "Japan", DateStart: "2024-05-01"},
		{DestRegion: "Korea", DateStart: "2024-07-01"},
		{DestRegion: "Spain"},
	}

	earlier := Aggregate(trips, "2024-06-01")
	later := Aggregate(trips, "2024-08-01")

	for _, region := range earlier.Sorted() {
		assert.True(t, later.Has(region), "%s should remain visited", region)
	}
	assert.True(t, later.Has("Korea"))
	assert.False(t, earlier.Has("Korea"))
}

func TestSet_Style(t *testing.T) {
	set := Aggregate([]trip.Trip{{DestRegion: "Japan", DateStart: "2024-01-01"}}, "2024-01-01")

	assert.Equal(t, Highlight, set.Style("Japan"))
	assert.Equal(t, Base, set.Style("Brazil"))
	assert.Equal(t, "#fcd34d", set.Style("Japan").Color)
}
