package corpus

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/daimoniac/swaudit/internal/types"
)

func TestFormatPublished(t *testing.T) {
	day := time.Date(2024, 3, 5, 22, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "time", in: day, want: "2024-03-05"},
		{name: "bson datetime", in: primitive.NewDateTimeFromTime(day), want: "2024-03-05"},
		{name: "iso string", in: "2024-03-05T22:30:00Z", want: "2024-03-05"},
		{name: "iso with millis", in: "2024-03-05T22:30:00.000+00:00", want: "2024-03-05"},
		{name: "slashed", in: "2024/03/05", want: "2024-03-05"},
		{name: "wrapped map", in: map[string]any{"$date": "2024-03-05T00:00:00Z"}, want: "2024-03-05"},
		{name: "wrapped bson.M", in: bson.M{"$date": primitive.NewDateTimeFromTime(day)}, want: "2024-03-05"},
		{name: "wrapped bson.D", in: primitive.D{{Key: "$date", Value: day.UnixMilli()}}, want: "2024-03-05"},
		{name: "nil", in: nil, want: ""},
		{name: "garbage", in: "not a date", want: ""},
		{name: "wrapper without date", in: map[string]any{"value": 1}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatPublished(tt.in); got != tt.want {
				t.Errorf("FormatPublished(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	records := []types.VulnerabilityRecord{
		{ID: "old", Published: "2020-01-01"},
		{ID: "undated"},
		{ID: "new", Published: map[string]any{"$date": "2024-01-01"}},
		{ID: "mid", Published: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	SortNewestFirst(records)

	want := []string{"new", "mid", "old", "undated"}
	for i, id := range want {
		if records[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, records[i].ID, id)
		}
	}
}
