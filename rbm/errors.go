package rbm

import (
	"github.com/pkg/errors"
)

// ErrConfig marks failures caused by invalid shapes or options. They are
// detected before any parameter is modified and are never retried.
var ErrConfig = errors.New("rbm: configuration error")

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// IsConfigError reports whether err was caused by invalid configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
