package agent

// ResultCache holds the most recent normalized result set produced by a
// non-export tool call in a session. It is the source of truth for "all
// records just seen" when the model truncates bulk data while re-emitting
// it as an export argument.
//
// The cache lives for the session, not the conversation: Reset on the
// conversation leaves it intact, so "reset the chat, then export what we
// found earlier" still works. Only session teardown discards it.
type ResultCache struct {
	records []map[string]any
}

// Put replaces the cached record set. Empty sets are ignored — a query
// that found nothing should not clobber the last useful result.
func (c *ResultCache) Put(records []map[string]any) {
	if len(records) == 0 {
		return
	}
	c.records = records
}

// Records returns the cached record set, or nil when nothing is cached.
func (c *ResultCache) Records() []map[string]any {
	return c.records
}

// Len returns the number of cached records.
func (c *ResultCache) Len() int {
	return len(c.records)
}
