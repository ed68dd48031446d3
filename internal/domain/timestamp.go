package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is the single time representation used inside the sync core.
// The backend hands us a zoo of shapes (epoch millis, RFC3339 strings,
// native times); everything is normalized to millis at the subscription
// boundary so internal logic never branches on representation.
type Timestamp struct {
	millis int64
	valid  bool
}

func Now() Timestamp {
	return Timestamp{millis: time.Now().UnixMilli(), valid: true}
}

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{millis: t.UnixMilli(), valid: true}
}

func TimestampFromMillis(ms int64) Timestamp {
	return Timestamp{millis: ms, valid: true}
}

func (t Timestamp) IsZero() bool { return !t.valid }

func (t Timestamp) UnixMilli() int64 { return t.millis }

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.millis)
}

func (t Timestamp) Before(other Timestamp) bool { return t.millis < other.millis }

func (t Timestamp) After(other Timestamp) bool { return t.millis > other.millis }

func (t Timestamp) String() string {
	if !t.valid {
		return "<unset>"
	}
	return t.Time().UTC().Format(time.RFC3339Nano)
}

// NormalizeTimestamp converts any backend-delivered time value into a
// Timestamp. Supported shapes: Timestamp, time.Time, integer/float epoch
// millis, json.Number, and RFC3339 strings.
func NormalizeTimestamp(v any) (Timestamp, error) {
	switch x := v.(type) {
	case nil:
		return Timestamp{}, nil
	case Timestamp:
		return x, nil
	case time.Time:
		return TimestampFromTime(x), nil
	case int64:
		return TimestampFromMillis(x), nil
	case int:
		return TimestampFromMillis(int64(x)), nil
	case float64:
		return TimestampFromMillis(int64(x)), nil
	case json.Number:
		ms, err := x.Int64()
		if err != nil {
			return Timestamp{}, fmt.Errorf("normalizing timestamp %q: %w", x.String(), err)
		}
		return TimestampFromMillis(ms), nil
	case string:
		if ms, err := strconv.ParseInt(x, 10, 64); err == nil {
			return TimestampFromMillis(ms), nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return Timestamp{}, fmt.Errorf("normalizing timestamp %q: %w", x, err)
		}
		return TimestampFromTime(parsed), nil
	default:
		return Timestamp{}, fmt.Errorf("normalizing timestamp: unsupported type %T", v)
	}
}

// MarshalJSON encodes as epoch millis; unset timestamps encode as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.millis, 10)), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	ts, err := NormalizeTimestamp(raw)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}
