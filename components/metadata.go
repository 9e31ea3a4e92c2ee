package components

import (
	"fmt"
	"strings"
)

// FieldDescriptor describes a component field for telemetry columns and
// debug dumps.
type FieldDescriptor struct {
	ID     string  // Unique identifier
	Label  string  // Display name
	Format string  // Printf format (e.g., "%.2f")
	Min    float64 // Expected minimum
	Max    float64 // Expected maximum
	Group  string  // Logical grouping
}

// TireTypeNames returns the names of all tire types.
// The order matches the TireType constants.
func TireTypeNames() []string {
	return []string{"summer", "winter", "offroad", "mud", "street"}
}

// TireTypeCount returns the number of tire types.
func TireTypeCount() int {
	return len(TireTypeNames())
}

// String returns the name of a TireType.
func (t TireType) String() string {
	names := TireTypeNames()
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// ParseTireType converts a name such as "winter" to its TireType.
func ParseTireType(name string) (TireType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range TireTypeNames() {
		if n == name {
			return TireType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tire type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t TireType) MarshalText() ([]byte, error) {
	if int(t) >= TireTypeCount() {
		return nil, fmt.Errorf("undefined tire type %d", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TireType) UnmarshalText(text []byte) error {
	v, err := ParseTireType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TireConditionNames returns the names of all tire conditions.
// The order matches the TireCondition constants.
func TireConditionNames() []string {
	return []string{"new", "good", "fair", "poor", "damaged", "worn"}
}

// String returns the name of a TireCondition.
func (c TireCondition) String() string {
	names := TireConditionNames()
	if int(c) < len(names) {
		return names[c]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (c TireCondition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *TireCondition) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range TireConditionNames() {
		if n == name {
			*c = TireCondition(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tire condition %q", name)
}

// TireFieldDescriptors returns metadata for TireState fields.
func TireFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "temperature", Label: "Temp", Format: "%.1f", Min: -50, Max: 150, Group: "thermal"},
		{ID: "pressure", Label: "Pressure", Format: "%.1f", Min: 0, Max: 400, Group: "thermal"},
		{ID: "tread_wear", Label: "Wear", Format: "%.3f", Min: 0, Max: 1, Group: "wear"},
		{ID: "mud_mass", Label: "Mud", Format: "%.2f", Min: 0, Max: 10, Group: "wear"},
		{ID: "moisture", Label: "Moisture", Format: "%.2f", Min: 0, Max: 1, Group: "wear"},
	}
}

// SlipFieldDescriptors returns metadata for WheelSlipState fields.
func SlipFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "slip_ratio", Label: "Slip", Format: "%.3f", Min: 0, Max: 1, Group: "slip"},
		{ID: "slip_angle", Label: "Slip Angle", Format: "%.2f", Min: 0, Max: 3.14159, Group: "slip"},
		{ID: "traction", Label: "Traction", Format: "%.3f", Min: 0, Max: 2, Group: "traction"},
		{ID: "sink_depth", Label: "Sink", Format: "%.3f", Min: 0, Max: 0.5, Group: "traction"},
		{ID: "traction_force", Label: "Force", Format: "%.0f", Min: 0, Max: 20000, Group: "traction"},
	}
}

// GetTireValue extracts a tire field value by ID.
func GetTireValue(t *TireState, fieldID string) float64 {
	switch fieldID {
	case "temperature":
		return t.Temperature
	case "pressure":
		return t.Pressure
	case "tread_wear":
		return t.TreadWear
	case "mud_mass":
		return t.MudMass
	case "moisture":
		return t.Moisture
	default:
		return 0
	}
}

// GetSlipValue extracts a slip field value by ID.
func GetSlipValue(s *WheelSlipState, fieldID string) float64 {
	switch fieldID {
	case "slip_ratio":
		return s.SlipRatio
	case "slip_angle":
		return s.SlipAngle
	case "traction":
		return s.TractionCoefficient
	case "sink_depth":
		return s.SinkDepth
	case "traction_force":
		return s.CurrentTractionForce
	default:
		return 0
	}
}
