package model

import "fmt"

// RunKey identifies one costing run: the hospital, the costing model applied
// and the run of source data. Every table the pipeline reads or writes is
// scoped by some prefix of this key.
type RunKey struct {
	Hospital string
	Model    string
	Run      string
}

func (k RunKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Hospital, k.Model, k.Run)
}

// Validate reports an error when any part of the key is empty.
func (k RunKey) Validate() error {
	switch {
	case k.Hospital == "":
		return fmt.Errorf("hospital code is required")
	case k.Model == "":
		return fmt.Errorf("model code is required")
	case k.Run == "":
		return fmt.Errorf("run code is required")
	}
	return nil
}

// RemainderPolicy decides what happens to the part of an account balance that
// its distribution fractions did not cover.
type RemainderPolicy string

const (
	// RemainderRetain leaves the uncovered balance in the account so it is
	// reported as undistributed.
	RemainderRetain RemainderPolicy = "retain"
	// RemainderAbsorb zeroes the account once its rules have run.
	RemainderAbsorb RemainderPolicy = "absorb"
)

// ParseRemainderPolicy converts a flag value into a RemainderPolicy.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(s) {
	case RemainderRetain, RemainderAbsorb:
		return RemainderPolicy(s), nil
	case "":
		return RemainderRetain, nil
	}
	return "", fmt.Errorf("unknown remainder policy %q (want retain or absorb)", s)
}

// Options are the per-invocation knobs for the pipeline engines.
type Options struct {
	Iterate           bool            // use the iterative disbursement model
	MaxIterations     int             // iteration cap for the iterative model
	Remainder         RemainderPolicy // distribution remainder policy
	ReportDir         string          // directory for the undistributed workbook; empty disables it
	DefaultScaling    float64         // acuity scaling used when a model row leaves it empty
	ResidualTolerance float64         // indirect balance considered drained
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxIterations:     1000,
		Remainder:         RemainderRetain,
		DefaultScaling:    1.0,
		ResidualTolerance: 0.05,
	}
}

// RunContext is passed to every stage in place of process-wide state.
type RunContext struct {
	Key     RunKey
	Options Options
}
