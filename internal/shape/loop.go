package shape

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptySeries    = errors.New("empty series")
	ErrLengthMismatch = errors.New("labels and values differ in length")
)

// Loop is a polar series whose last point repeats the first.
type Loop struct {
	Labels []string
	Values []decimal.Decimal
}

// ClosedLoop copies labels and values and appends the first pair so the polygon closes.
func ClosedLoop(labels []string, values []decimal.Decimal) (Loop, error) {
	if len(labels) != len(values) {
		return Loop{}, ErrLengthMismatch
	}
	if len(labels) == 0 {
		return Loop{}, ErrEmptySeries
	}

	l := Loop{
		Labels: make([]string, 0, len(labels)+1),
		Values: make([]decimal.Decimal, 0, len(values)+1),
	}
	l.Labels = append(append(l.Labels, labels...), labels[0])
	l.Values = append(append(l.Values, values...), values[0])
	return l, nil
}
