package repositorycache

import "go.uber.org/zap"

type settings struct {
	logger *zap.Logger
}

// Option configures a CachedRepository.
type Option func(*settings)

// WithLogger sets the logger used for eviction and swap events.
// A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
