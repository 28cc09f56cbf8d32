package scheduler

import "sync"

// GroupLimits are the process-local rate-limit group maximums.
var GroupLimits = map[string]int{
	"firefox":       3,
	"tdsb_connects": 7,
	"global":        10,
}

// Groups tracks in-process, non-persistent counters for the rate-limit
// groups a task kind belongs to. Counters reset to zero on restart;
// River's own crash recovery (jobs stuck in "running" get requeued) is
// what rediscovers in-flight work, not these counters.
type Groups struct {
	mu       sync.Mutex
	counters map[string]int
	limits   map[string]int
}

// NewGroups builds a Groups tracker with the standard limits.
func NewGroups() *Groups {
	limits := make(map[string]int, len(GroupLimits))
	for k, v := range GroupLimits {
		limits[k] = v
	}
	return &Groups{counters: make(map[string]int), limits: limits}
}

// TaskGroups maps a task kind to the rate-limit groups it belongs to.
var TaskGroups = map[string][]string{
	"check-day":                {"tdsb_connects", "global"},
	"populate-courses":         {"tdsb_connects", "global"},
	"fill-form":                {"firefox", "tdsb_connects", "global"},
	"get-form-geometry":        {"firefox", "global"},
	"test-fill-form":           {"firefox", "tdsb_connects", "global"},
	"remove-old-form-geometry": {"global"},
	"remove-old-test-results":  {"global"},
}

// TryAcquire attempts to increment every counter named. If any named
// group is already at its limit, no counters are incremented and ok is
// false - the caller should snooze the task and retry later.
func (g *Groups) TryAcquire(names ...string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, name := range names {
		if g.counters[name] >= g.limits[name] {
			return nil, false
		}
	}
	for _, name := range names {
		g.counters[name]++
	}

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, name := range names {
			if g.counters[name] > 0 {
				g.counters[name]--
			}
		}
	}, true
}

// Snapshot returns the current counters and limits, for the debug-tasks
// endpoint.
func (g *Groups) Snapshot() map[string][2]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string][2]int, len(g.limits))
	for name, limit := range g.limits {
		out[name] = [2]int{g.counters[name], limit}
	}
	return out
}
