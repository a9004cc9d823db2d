package sim

// Counter aggregates decision outcomes across a run.
type Counter struct {
	Checks  int
	Allowed int
	Denied  int
	Errors  int
}

// Add records one decision.
func (c *Counter) Add(allowed bool) {
	c.Checks++
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}

// AddError records a failed check call.
func (c *Counter) AddError() {
	c.Checks++
	c.Errors++
}

// AllowRate is the fraction of successful checks that were allowed.
func (c Counter) AllowRate() float64 {
	decided := c.Allowed + c.Denied
	if decided == 0 {
		return 0
	}
	return float64(c.Allowed) / float64(decided)
}
