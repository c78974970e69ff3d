package ioruntime

import "time"

// runtimeOptions holds configuration resolved from Option values at New.
type runtimeOptions struct {
	ringSize     uint32
	logger       *Logger
	probeTimeout time.Duration
}

// Option configures a Runtime at construction time.
type Option interface {
	apply(*runtimeOptions) error
}

// optionFunc implements Option.
type optionFunc struct {
	fn func(*runtimeOptions) error
}

func (o *optionFunc) apply(opts *runtimeOptions) error {
	return o.fn(opts)
}

// WithRingSize sets the number of entries in the kernel submission/completion
// ring. Default: 128.
func WithRingSize(n uint32) Option {
	return &optionFunc{func(opts *runtimeOptions) error {
		opts.ringSize = n
		return nil
	}}
}

// WithLogger sets the structured logger used for lifecycle, error, and panic
// recovery events. Default: a no-op logger.
func WithLogger(l *Logger) Option {
	return &optionFunc{func(opts *runtimeOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithProbeTimeout bounds how long opcode/feature probing may take during
// New before it is treated as a failure. Default: 2s.
func WithProbeTimeout(d time.Duration) Option {
	return &optionFunc{func(opts *runtimeOptions) error {
		opts.probeTimeout = d
		return nil
	}}
}

// resolveOptions applies Option values over the documented defaults.
func resolveOptions(opts []Option) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		ringSize:     128,
		logger:       NewNopLogger(),
		probeTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
