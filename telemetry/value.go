package telemetry

import (
	"bytes"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Value is a number that may be unknown. Unknown values are empty CSV cells.
type Value struct {
	V     float64
	Known bool
}

func Known(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Known: true}
}

func Unknown() Value {
	return Value{}
}

func (v Value) MarshalCSV() ([]byte, error) {
	if !v.Known {
		return []byte{}, nil
	}
	return strconv.AppendFloat(nil, v.V, 'f', -1, 64), nil
}

func (v *Value) UnmarshalCSV(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.Wrapf(err, "invalid number %q", data)
	}
	*v = Known(f)
	return nil
}
