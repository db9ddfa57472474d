package tonemap

import "fmt"

// Params holds the tunable values that shape the infrared tone curve.
//
// OutputMin and OutputMax bound the visual band the mapped luminance lands
// in; SourceScale amplifies the raw sensor reading before clamping. A Params
// value is either fully valid or rejected before it becomes active.
type Params struct {
	OutputMin   float64 `json:"infrared_output_value_minimum"`
	OutputMax   float64 `json:"infrared_output_value_maximum"`
	SourceScale float64 `json:"infrared_source_scale"`
}

// DefaultParams returns the built-in tuning used when no tuning file is
// present or its content is rejected.
func DefaultParams() Params {
	return Params{
		OutputMin:   0.25,
		OutputMax:   1.0,
		SourceScale: 3.0,
	}
}

// Validate checks the range and ordering constraints. The same rules apply
// on initial load and on every poll.
func (p Params) Validate() error {
	if p.OutputMin < 0 || p.OutputMin >= 1 {
		return fmt.Errorf("infrared_output_value_minimum must be in [0.0, 1.0), got %v", p.OutputMin)
	}
	if p.OutputMax <= 0 || p.OutputMax > 1 {
		return fmt.Errorf("infrared_output_value_maximum must be in (0.0, 1.0], got %v", p.OutputMax)
	}
	if p.OutputMin >= p.OutputMax {
		return fmt.Errorf("infrared_output_value_minimum (%v) must be less than infrared_output_value_maximum (%v)",
			p.OutputMin, p.OutputMax)
	}
	if p.SourceScale <= 0 {
		return fmt.Errorf("infrared_source_scale must be greater than 0.0, got %v", p.SourceScale)
	}
	return nil
}
