package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrConfig marks a fatal configuration error: the model or run data cannot
// be costed as configured. Engines wrap it so callers can map it to an exit
// code with errors.Is.
var ErrConfig = errors.New("configuration error")

// ConfigError is a fatal configuration error that names the codes involved.
type ConfigError struct {
	Reason string
	Codes  map[string]string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	for _, k := range sortedKeys(e.Codes) {
		msg += fmt.Sprintf(" %s=%s", k, e.Codes[k])
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfig, e.Err}
	}
	return []error{ErrConfig}
}

// NewConfigError builds a ConfigError from a reason, a sentinel and
// alternating code name/value pairs.
func NewConfigError(sentinel error, reason string, kv ...string) *ConfigError {
	codes := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		codes[kv[i]] = kv[i+1]
	}
	return &ConfigError{Reason: reason, Codes: codes, Err: sentinel}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
