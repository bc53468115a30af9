package reactor

import "fmt"

// DefaultMaxTickIterations bounds Flush when no limit is configured.
const DefaultMaxTickIterations = 100

// ArityPolicy decides what happens when an effect position changes the
// arity of its dependency list between passes.
type ArityPolicy uint8

const (
	// ArityFatal fails the instance with an *ArityMismatchError.
	ArityFatal ArityPolicy = iota

	// ArityWarn logs the mismatch, runs the previous cleanup and re-runs
	// the effect with the new dependency list.
	ArityWarn
)

// String returns the policy name used in configuration files.
func (p ArityPolicy) String() string {
	switch p {
	case ArityFatal:
		return "fatal"
	case ArityWarn:
		return "warn"
	default:
		return "unknown"
	}
}

// ParseArityPolicy parses "fatal" or "warn". The empty string is fatal.
func ParseArityPolicy(s string) (ArityPolicy, error) {
	switch s {
	case "", "fatal":
		return ArityFatal, nil
	case "warn":
		return ArityWarn, nil
	default:
		return ArityFatal, fmt.Errorf("reactor: unknown arity policy %q", s)
	}
}

// Config holds scheduler limits and policies.
type Config struct {
	// MaxTickIterations is the number of ticks Flush may run before it
	// reports a *RunawayReevaluationError.
	MaxTickIterations int

	// ArityPolicy selects strict or lenient handling of dependency arity
	// changes. Default: ArityFatal.
	ArityPolicy ArityPolicy
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxTickIterations: DefaultMaxTickIterations,
		ArityPolicy:       ArityFatal,
	}
}

func (c Config) normalized() Config {
	if c.MaxTickIterations <= 0 {
		c.MaxTickIterations = DefaultMaxTickIterations
	}
	return c
}
