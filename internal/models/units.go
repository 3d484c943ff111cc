package models

import "fmt"

// Scale is the multiplier that turns a stored figure into base currency units.
type Scale float64

const (
	ScaleUnits     Scale = 1
	ScaleThousands Scale = 1e3
	ScaleMillions  Scale = 1e6
	ScaleBillions  Scale = 1e9
)

func (s Scale) String() string {
	switch s {
	case ScaleUnits:
		return "units"
	case ScaleThousands:
		return "thousands"
	case ScaleMillions:
		return "millions"
	case ScaleBillions:
		return "billions"
	}
	return fmt.Sprintf("x%g", float64(s))
}

// Amount is a monetary value tagged with its scale.
type Amount struct {
	Value float64 `json:"value"`
	Scale Scale   `json:"scale"`
}

// Millions builds an amount expressed in millions.
func Millions(v float64) Amount {
	return Amount{Value: v, Scale: ScaleMillions}
}

// Units builds an amount expressed in base currency units.
func Units(v float64) Amount {
	return Amount{Value: v, Scale: ScaleUnits}
}

// In converts the amount to the target scale. A zero scale is treated as units.
func (a Amount) In(target Scale) float64 {
	from := a.Scale
	if from == 0 {
		from = ScaleUnits
	}
	if target == 0 {
		target = ScaleUnits
	}
	if from == target {
		return a.Value
	}
	return a.Value * float64(from) / float64(target)
}
