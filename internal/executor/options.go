package executor

import "github.com/fimoengine/fimo-go/internal/obslog"

// ExecutorOption configures an Executor at construction, grounded on
// eventloop/options.go's LoopOption / loopOptionImpl / resolveLoopOptions
// functional-options pattern.
type ExecutorOption interface {
	apply(*config)
}

type config struct {
	logger *obslog.Logger
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithLogger attaches a structured logger to the Executor.
func WithLogger(l *obslog.Logger) ExecutorOption {
	return optionFunc(func(c *config) { c.logger = l })
}

func resolveOptions(opts []ExecutorOption) *config {
	c := &config{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(c)
	}
	return c
}
