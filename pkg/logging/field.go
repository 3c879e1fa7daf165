package logging

import (
	"sort"
	"time"
)

// LogField creates a Field of any type.
func LogField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// StringField creates a Field with a string value.
func StringField(key, value string) Field {
	return Field{Key: key, Value: value}
}

// IntField creates a Field with an integer value.
func IntField(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Float64Field creates a Field with a float64 value.
func Float64Field(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// BoolField creates a Field with a boolean value.
func BoolField(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// DurationField records a duration in seconds.
func DurationField(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.Seconds()}
}

// TimeField records a timestamp in RFC 3339 form. A zero time is
// recorded as an empty string.
func TimeField(key string, t time.Time) Field {
	if t.IsZero() {
		return Field{Key: key, Value: ""}
	}
	return Field{Key: key, Value: t.Format(time.RFC3339)}
}

// ErrorField stores err under the "error" key. A nil err is
// recorded as "<nil>".
func ErrorField(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// FieldsFromMap converts an event payload into fields sorted by
// key.
func FieldsFromMap(data map[string]any) []Field {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, len(keys))
	for i, k := range keys {
		fields[i] = Field{Key: k, Value: data[k]}
	}
	return fields
}
