package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Estimator: the loop calls it every frame, so trip fast and probe soon.
	EstimatorThreshold         = 5
	EstimatorResetTimeout      = 2 * time.Second
	EstimatorHalfOpenSuccesses = 2

	// Storage: flushes are infrequent and Redis outages tend to last.
	StorageThreshold         = 3
	StorageResetTimeout      = 15 * time.Second
	StorageHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in logs and metrics labels
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// EstimatorConfig guards per-frame inference calls.
func EstimatorConfig() Config {
	return Config{
		Name:              "estimator",
		Threshold:         EstimatorThreshold,
		ResetTimeout:      EstimatorResetTimeout,
		HalfOpenSuccesses: EstimatorHalfOpenSuccesses,
	}
}

// StorageConfig guards batched history writes.
func StorageConfig() Config {
	return Config{
		Name:              "storage",
		Threshold:         StorageThreshold,
		ResetTimeout:      StorageResetTimeout,
		HalfOpenSuccesses: StorageHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
