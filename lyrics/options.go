package lyrics

// Option tunes how documents render and resolve lines
type Option func(*options)

type options struct {
	leadInMs  int
	lineBreak string
}

// WithLeadIn overrides the lead-in added to every timed lookup
func WithLeadIn(ms int) Option {
	return func(o *options) {
		o.leadInMs = ms
	}
}

// WithLineBreak overrides the break used by Text. Empty values are ignored.
func WithLineBreak(lineBreak string) Option {
	return func(o *options) {
		if lineBreak != "" {
			o.lineBreak = lineBreak
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		leadInMs:  DefaultLeadInMs,
		lineBreak: DefaultLineBreak,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
