package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type capacityState int

const (
	capacityKnown capacityState = iota
	capacityUnknown
	capacityInfinite
)

const (
	capacityUnknownWord  = "unknown"
	capacityInfiniteWord = "infinite"
)

// Capacity is a capacity figure in gigabytes as reported by a back end.
// Drivers that cannot measure their capacity report the sentinel "unknown",
// and drivers backed by unbounded stores (for example some object gateways)
// report "infinite". Both sentinels survive serialization round trips.
type Capacity struct {
	gb    float64
	state capacityState
}

// NewCapacity returns a known capacity of gb gigabytes.
func NewCapacity(gb float64) Capacity {
	return Capacity{gb: gb}
}

// UnknownCapacity returns the "unknown" sentinel.
func UnknownCapacity() Capacity {
	return Capacity{state: capacityUnknown}
}

// InfiniteCapacity returns the "infinite" sentinel.
func InfiniteCapacity() Capacity {
	return Capacity{state: capacityInfinite}
}

// GB returns the numeric value. Only meaningful when IsKnown reports true.
func (c Capacity) GB() float64 { return c.gb }

// IsKnown reports whether the capacity is a real measured number.
func (c Capacity) IsKnown() bool { return c.state == capacityKnown }

// IsUnknown reports whether the capacity is the "unknown" sentinel.
func (c Capacity) IsUnknown() bool { return c.state == capacityUnknown }

// IsInfinite reports whether the capacity is the "infinite" sentinel.
func (c Capacity) IsInfinite() bool { return c.state == capacityInfinite }

func (c Capacity) String() string {
	switch c.state {
	case capacityUnknown:
		return capacityUnknownWord
	case capacityInfinite:
		return capacityInfiniteWord
	default:
		return strconv.FormatFloat(c.gb, 'f', -1, 64)
	}
}

// MarshalJSON encodes known capacities as numbers and sentinels as strings.
func (c Capacity) MarshalJSON() ([]byte, error) {
	switch c.state {
	case capacityUnknown:
		return json.Marshal(capacityUnknownWord)
	case capacityInfinite:
		return json.Marshal(capacityInfiniteWord)
	default:
		return json.Marshal(c.gb)
	}
}

// UnmarshalJSON accepts a number, "unknown", or "infinite".
func (c *Capacity) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*c = NewCapacity(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid capacity %q", string(data))
	}
	return c.fromWord(s)
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON, for fixture files.
func (c *Capacity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n float64
	if err := unmarshal(&n); err == nil {
		*c = NewCapacity(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("invalid capacity value")
	}
	return c.fromWord(s)
}

// MarshalYAML mirrors MarshalJSON.
func (c Capacity) MarshalYAML() (interface{}, error) {
	switch c.state {
	case capacityUnknown:
		return capacityUnknownWord, nil
	case capacityInfinite:
		return capacityInfiniteWord, nil
	default:
		return c.gb, nil
	}
}

func (c *Capacity) fromWord(s string) error {
	switch s {
	case capacityUnknownWord:
		*c = UnknownCapacity()
	case capacityInfiniteWord:
		*c = InfiniteCapacity()
	default:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid capacity %q", s)
		}
		*c = NewCapacity(n)
	}
	return nil
}
