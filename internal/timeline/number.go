package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Number is a numeric document field. It accepts YAML/JSON ints and floats as
// well as numeric strings ("30", "1.5"), so coercion happens once at decode
// time instead of at every use site.
type Number struct {
	Value float64
	Set   bool
}

// N is shorthand for a set Number, mostly used when building documents in code.
func N(v float64) Number {
	return Number{Value: v, Set: true}
}

func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	if node.Tag == "!!null" {
		*n = Number{}
		return nil
	}
	s := strings.TrimSpace(node.Value)
	if s == "" {
		*n = Number{}
		return nil
	}
	switch strings.ToLower(s) {
	case ".inf", "+.inf":
		s = "+Inf"
	case "-.inf":
		s = "-Inf"
	case ".nan":
		s = "NaN"
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	*n = Number{Value: v, Set: true}
	return nil
}

func (n Number) MarshalYAML() (interface{}, error) {
	if !n.Set {
		return nil, nil
	}
	return n.Value, nil
}

// IsZero lets yaml omitempty drop unset numbers.
func (n Number) IsZero() bool {
	return !n.Set
}

// Finite reports whether the number was given and is a usable float.
func (n Number) Finite() bool {
	return n.Set && !math.IsNaN(n.Value) && !math.IsInf(n.Value, 0)
}

// Or returns the value when it is set and finite, def otherwise.
func (n Number) Or(def float64) float64 {
	if n.Finite() {
		return n.Value
	}
	return def
}
