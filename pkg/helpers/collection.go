package helpers

import (
	"fmt"
	"math"
)

func asList(v interface{}) ([]interface{}, bool) {
	list, ok := v.([]interface{})
	return list, ok
}

// First returns the first element of a list, or nil on an empty one.
func First(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	list, ok := asList(args[0])
	if !ok || len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// Length is the `length(v)` helper: the length of an array, else 0.
func Length(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return 0, nil
	}
	if v, ok := args[0].([]interface{}); ok {
		return len(v), nil
	}
	return 0, nil
}

// Max returns the largest numeric argument.
func Max(args ...interface{}) (interface{}, error) {
	best := math.Inf(-1)
	found := false
	for _, a := range args {
		if f, ok := toFloat(a); ok {
			found = true
			if f > best {
				best = f
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("helpers: max needs at least one numeric argument")
	}
	return best, nil
}

// Sum adds every numeric element of a list.
func Sum(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return 0, nil
	}
	list, ok := asList(args[0])
	if !ok {
		return 0, nil
	}
	total := 0.0
	for _, v := range list {
		if f, ok := toFloat(v); ok {
			total += f
		}
	}
	return total, nil
}

// Round rounds the piped value to the nearest integer, or to the
// given number of decimal places if a second argument is supplied.
func Round(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return 0, nil
	}
	f, ok := toFloat(args[0])
	if !ok {
		return args[0], nil
	}
	places := 0
	if len(args) > 1 {
		if p, ok := toFloat(args[1]); ok {
			places = int(p)
		}
	}
	mult := math.Pow(10, float64(places))
	return math.Round(f*mult) / mult, nil
}

// Int coerces the piped value to an integer.
func Int(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return 0, nil
	}
	f, ok := toFloat(args[0])
	if !ok {
		return 0, nil
	}
	return int(f), nil
}

// Float coerces the piped value to a float64.
func Float(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return 0.0, nil
	}
	f, _ := toFloat(args[0])
	return f, nil
}

// Maybe returns the piped value if non-nil, otherwise the fallback
// given as the second argument.
func Maybe(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if args[0] != nil {
		return args[0], nil
	}
	if len(args) > 1 {
		return args[1], nil
	}
	return nil, nil
}

// ListToObj turns a list of {key, value} maps into a single object
// keyed by each element's "key" field.
func ListToObj(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return map[string]interface{}{}, nil
	}
	list, ok := asList(args[0])
	if !ok {
		return map[string]interface{}{}, nil
	}
	out := make(map[string]interface{}, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		key := toString(m["key"])
		out[key] = m["value"]
	}
	return out, nil
}

// HexCoords is an unimplemented stub carried from renderer_env.rs's
// own `hex_coords`, which always returns the literal "TBD" there too.
func HexCoords(args ...interface{}) (interface{}, error) {
	return "TBD", nil
}
