package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number or boolean. HTML forms post every
// field as a string while API clients tend to send guests as a number.
// Numeric zero and false decode as blank so they fail the required check;
// the strings "0" and "false" stay present.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		if t == 0 {
			*s = ""
			return nil
		}
		*s = FlexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		if !t {
			*s = ""
			return nil
		}
		*s = FlexString(strconv.FormatBool(t))
	default:
		*s = ""
	}
	return nil
}

// Blank reports whether the value is missing or whitespace only.
func (s FlexString) Blank() bool { return strings.TrimSpace(string(s)) == "" }

func (s FlexString) String() string { return strings.TrimSpace(string(s)) }

// Amount is a paid amount coerced to a number the lenient way a browser would:
// numeric strings parse, the empty string and null become zero, anything else
// (including an absent field) is not a number and never matches a price.
type Amount struct {
	value float64
	set   bool
}

func NewAmount(v float64) Amount { return Amount{value: v, set: true} }

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	a.set = true

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		a.value = 0
	case float64:
		a.value = t
	case bool:
		if t {
			a.value = 1
		} else {
			a.value = 0
		}
	case string:
		a.value = parseNumber(t)
	default:
		a.value = math.NaN()
	}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	f := a.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Float returns the coerced value, NaN when nothing was supplied.
func (a Amount) Float() float64 {
	if !a.set {
		return math.NaN()
	}
	return a.value
}

// Equals reports strict numeric equality with an integral price.
func (a Amount) Equals(price int64) bool {
	return a.Float() == float64(price)
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
