package settlement

// TrackedLocks reports how many trip locks are currently held or awaited.
func (c *Coordinator) TrackedLocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trips)
}
