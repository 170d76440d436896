// Package xerrors collects errors from independent checks so that all of them can be reported at once.
// If nothing but nils were added, ErrorOrNil returns nil.
package xerrors

import (
	"fmt"
	"strings"
	"sync"
)

// Collector gathers non-nil errors. It is safe for concurrent use.
type Collector struct {
	errsMu sync.Mutex
	errs   []error
}

// New constructs new Collector.
func New() *Collector {
	return &Collector{}
}

// Add adds error only if it is non-nil.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}

	c.errsMu.Lock()
	defer c.errsMu.Unlock()
	c.errs = append(c.errs, err)
}

// Addf adds formatted error.
func (c *Collector) Addf(format string, args ...interface{}) {
	c.Add(fmt.Errorf(format, args...))
}

// ErrorOrNil returns MultiError with all added errors, or nil if there were none.
func (c *Collector) ErrorOrNil() error {
	c.errsMu.Lock()
	defer c.errsMu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return MultiError(append([]error(nil), c.errs...))
}

// MultiError is a list of errors reported together.
type MultiError []error

func (m MultiError) Error() string {
	msgs := make([]string, 0, len(m))
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
