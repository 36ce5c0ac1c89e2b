package domain

import "time"

const (
	// MB one megabyte
	MB = int64(1024 * 1024)

	// DefaultMaxRetries additional attempts after the first try
	DefaultMaxRetries = 3
)

// Limits size/part limits of the object store
type Limits struct {
	StoreLimitBytes int64
	TargetPartBytes int64
	MinPartBytes    int64
	MaxParts        int
}

// DefaultLimits 100MB store ceiling, 90MB target parts, 50MB floor, 20 parts
func DefaultLimits() Limits {
	return Limits{
		StoreLimitBytes: 100 * MB,
		TargetPartBytes: 90 * MB,
		MinPartBytes:    50 * MB,
		MaxParts:        20,
	}
}

// SegmentationPlan computed once per asset
type SegmentationPlan struct {
	PartCount             int
	PartDurationSeconds   float64
	SourceDurationSeconds float64
}

// RetryPolicy bounded retry with linearly increasing delay
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Step       time.Duration
}

// DefaultRetryPolicy 3 retries, 1s, 2s, 3s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  time.Second,
		Step:       time.Second,
	}
}

// Delay wait before retry number n (1-based); never decreases with n.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	step := p.Step
	if step < 0 {
		step = 0
	}
	return p.BaseDelay + time.Duration(n-1)*step
}

// UploadAttempt one try inside the uploader retry loop
type UploadAttempt struct {
	PartIndex     int
	FilePath      string
	PublicID      string
	AttemptNumber int
	LastError     error
}
