package parser

import "time"

type options struct {
	now func() time.Time
}

// Option customises a channel parser.
type Option func(*options)

// WithClock overrides the clock used for dates the message does not carry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
