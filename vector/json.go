package vector

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedJSON reports a vector that is not a JSON array of numbers.
var ErrMalformedJSON = errors.New("vector: malformed JSON vector")

// ParseJSON decodes a JSON array of numbers such as "[0.1, 2, -3]".
func ParseJSON(raw string) ([]float32, error) {
	if !gjson.Valid(raw) {
		return nil, ErrMalformedJSON
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: not an array", ErrMalformedJSON)
	}
	items := parsed.Array()
	out := make([]float32, len(items))
	for i, item := range items {
		if item.Type != gjson.Number {
			return nil, fmt.Errorf("%w: element %d is %s", ErrMalformedJSON, i, item.Type)
		}
		out[i] = float32(item.Float())
	}
	return out, nil
}
