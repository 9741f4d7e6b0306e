package resilience

import "time"

// Config tunes retries and the breaker. Zero fields take the defaults of the
// executor's profile.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// Profile names a class of outbound call with its own defaults.
type Profile string

const (
	// ProfileModelCall covers completion calls: few attempts, wide backoff.
	ProfileModelCall Profile = "model_call"
	// ProfileQueuePublish covers broker publishes: quick retries, short open window.
	ProfileQueuePublish Profile = "queue_publish"
)

var profileDefaults = map[Profile]Config{
	ProfileModelCall: {
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     500 * time.Millisecond,
		RetryMaxBackoff:         4 * time.Second,
		RetryMultiplier:         2.0,
		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      60 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	},
	ProfileQueuePublish: {
		RetryMaxAttempts:        5,
		RetryInitialBackoff:     50 * time.Millisecond,
		RetryMaxBackoff:         time.Second,
		RetryMultiplier:         2.0,
		BreakerEnabled:          true,
		BreakerMinRequests:      20,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      10 * time.Second,
		BreakerHalfOpenMaxCalls: 3,
	},
}

// DefaultConfig returns the defaults of profile. Unknown profiles get the
// model call defaults.
func DefaultConfig(profile Profile) Config {
	if def, ok := profileDefaults[profile]; ok {
		return def
	}
	return profileDefaults[ProfileModelCall]
}

func (c Config) withDefaults(def Config) Config {
	out := c
	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return out
}
