package neural

import "fmt"

// ValueFromOutput extracts the scalar win-probability from a model output
// backing array. The exporter emits float32 but some runtimes widen to
// float64, so both are accepted.
func ValueFromOutput(data interface{}) (float32, error) {
	switch d := data.(type) {
	case []float32:
		if len(d) < 1 {
			return 0, fmt.Errorf("empty value output")
		}
		return d[0], nil
	case []float64:
		if len(d) < 1 {
			return 0, fmt.Errorf("empty value output")
		}
		return float32(d[0]), nil
	default:
		return 0, fmt.Errorf("unexpected value output type %T", data)
	}
}
