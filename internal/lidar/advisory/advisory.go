// Package advisory carries non-fatal diagnostics raised while configuring a
// sensor or running a scan. Advisories are returned to callers as values so
// that they can be asserted on, and are also logged by the component that
// raises them.
package advisory

import (
	"fmt"
	"sync"
)

// Code identifies the kind of advisory.
type Code string

const (
	// ForwardNotBracketed means angle 0 does not lie strictly between
	// angle_min and angle_max.
	ForwardNotBracketed Code = "forward_not_bracketed"
	// OutsideBoundary means the sensor was not strictly inside the map
	// boundary, so the scan kept its max-range baseline.
	OutsideBoundary Code = "outside_boundary"
	// GeometryRepaired means an invalid obstacle was normalised before
	// intersection testing.
	GeometryRepaired Code = "geometry_repaired"
)

// Advisory is one non-fatal diagnostic.
type Advisory struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s: %s", a.Code, a.Message)
}

// New formats an advisory.
func New(code Code, format string, args ...any) Advisory {
	return Advisory{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Codes returns the codes of advs in order.
func Codes(advs []Advisory) []Code {
	out := make([]Code, len(advs))
	for i, a := range advs {
		out[i] = a.Code
	}
	return out
}

// Has reports whether advs contains code.
func Has(advs []Advisory, code Code) bool {
	for _, a := range advs {
		if a.Code == code {
			return true
		}
	}
	return false
}

// Collector accumulates advisories. The zero value is ready to use and safe
// for concurrent use.
type Collector struct {
	mu   sync.Mutex
	advs []Advisory
}

// Add records a.
func (c *Collector) Add(a Advisory) {
	c.mu.Lock()
	c.advs = append(c.advs, a)
	c.mu.Unlock()
}

// Addf formats and records an advisory.
func (c *Collector) Addf(code Code, format string, args ...any) {
	c.Add(New(code, format, args...))
}

// Len returns the number of recorded advisories.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.advs)
}

// Drain returns the recorded advisories and resets the collector.
func (c *Collector) Drain() []Advisory {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.advs
	c.advs = nil
	return out
}
