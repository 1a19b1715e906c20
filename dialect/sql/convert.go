package sql

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/strata"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/schema/field"
)

// normalize maps a driver-scanned value into the engine's canonical Go type
// for the property. Drivers disagree on widths and encodings (SQLite returns
// times as text, MySQL booleans as int64), so hydration funnels through here.
func normalize(fd *field.Descriptor, v any) (strata.Value, error) {
	if v == nil {
		return nil, nil
	}
	switch fd.Type {
	case field.TypeInt:
		n, err := toInt64(v)
		if err != nil {
			return nil, propertyError(fd, err)
		}
		return int(n), nil
	case field.TypeInt64:
		n, err := toInt64(v)
		if err != nil {
			return nil, propertyError(fd, err)
		}
		return n, nil
	case field.TypeFloat64:
		f, err := toFloat64(v)
		if err != nil {
			return nil, propertyError(fd, err)
		}
		return f, nil
	case field.TypeBool:
		b, err := toBool(v)
		if err != nil {
			return nil, propertyError(fd, err)
		}
		return b, nil
	case field.TypeString, field.TypeEnum, field.TypeJSON:
		return toString(v), nil
	case field.TypeBytes:
		switch x := v.(type) {
		case []byte:
			out := make([]byte, len(x))
			copy(out, x)
			return out, nil
		case string:
			return []byte(x), nil
		}
		return nil, propertyError(fd, strata.NewInvalidOperationError("unexpected type %T", v))
	case field.TypeTime:
		ts, err := toTime(v)
		if err != nil {
			return nil, propertyError(fd, err)
		}
		return ts, nil
	case field.TypeUUID:
		id, err := toUUID(v)
		if err != nil {
			return nil, propertyError(fd, err)
		}
		return id, nil
	default:
		return v, nil
	}
}

func propertyError(fd *field.Descriptor, err error) error {
	return strata.NewInvalidOperationError("scanning property %q: %v", fd.Name, err)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, strata.NewInvalidOperationError("unexpected integer type %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, strata.NewInvalidOperationError("unexpected float type %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	default:
		return false, strata.NewInvalidOperationError("unexpected bool type %T", v)
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	default:
		return time.Time{}, strata.NewInvalidOperationError("unexpected time type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func toUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.Parse(string(x))
	case string:
		return uuid.Parse(x)
	default:
		return uuid.Nil, strata.NewInvalidOperationError("unexpected uuid type %T", v)
	}
}

// normalizeAgg maps a scanned aggregate cell to the engine value shape the
// memory provider produces, so callers see one contract across providers.
func normalizeAgg(et *graph.EntityType, agg plan.Aggregation, v any) (strata.Value, error) {
	switch agg.Func {
	case plan.AggCount:
		if v == nil {
			return int64(0), nil
		}
		return toInt64(v)
	case plan.AggAny:
		if v == nil {
			return false, nil
		}
		return toBool(v)
	case plan.AggAll:
		// MIN over an empty set is NULL: vacuously true.
		if v == nil {
			return true, nil
		}
		return toBool(v)
	case plan.AggMean:
		if v == nil {
			return nil, nil
		}
		return toFloat64(v)
	case plan.AggSum:
		fd := et.Property(agg.Property)
		if v == nil {
			if fd.Type == field.TypeFloat64 {
				return float64(0), nil
			}
			return int64(0), nil
		}
		if fd.Type == field.TypeFloat64 {
			return toFloat64(v)
		}
		return toInt64(v)
	default: // min, max
		if v == nil {
			return nil, nil
		}
		return normalize(et.Property(agg.Property), v)
	}
}
