package corpus

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// dateWrapperKey is the extended-JSON field some loaders wrap dates in.
const dateWrapperKey = "$date"

// ParsePublished converts the publish-date representations found in the corpus
// into a UTC time: native dates, BSON dates, epoch milliseconds, free-form date
// strings and {"$date": ...} wrappers. ok is false when nothing usable is found.
func ParsePublished(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return d.UTC(), true
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return ParsePublished(*d)
	case primitive.DateTime:
		return d.Time().UTC(), true
	case int64:
		return time.UnixMilli(d).UTC(), true
	case float64:
		return time.UnixMilli(int64(d)).UTC(), true
	case string:
		if d == "" {
			return time.Time{}, false
		}
		t, err := dateparse.ParseIn(d, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case primitive.D:
		for _, e := range d {
			if e.Key == dateWrapperKey {
				return ParsePublished(e.Value)
			}
		}
	case bson.M:
		return ParsePublished(d[dateWrapperKey])
	case map[string]any:
		return ParsePublished(d[dateWrapperKey])
	case fmt.Stringer:
		return ParsePublished(d.String())
	}
	return time.Time{}, false
}

// FormatPublished renders a publish date as YYYY-MM-DD, or "" when unparseable.
func FormatPublished(v any) string {
	t, ok := ParsePublished(v)
	if !ok {
		return ""
	}
	return t.Format(time.DateOnly)
}
