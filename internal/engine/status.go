package engine

import (
	"fmt"
	"time"
)

// Performance summarizes the engine-level counters: how many public
// operations ran and their rolling average latency.
type Performance struct {
	OperationsCount     int64
	AverageResponseTime time.Duration
}

// SessionStatus reports one session's metadata plus engine performance.
type SessionStatus struct {
	SessionID   string
	CreatedAt   time.Time
	LastUpdated time.Time
	RuleCount   int
	Performance Performance
}

// Health is the result of a consistency check across the engine.
type Health struct {
	Healthy bool
	Issues  []string
}

// SessionStatus returns metadata for one session, or nil when unknown.
func (e *Engine) SessionStatus(sessionID string) *SessionStatus {
	defer e.track(time.Now())

	stats := e.store.SessionStats(sessionID)
	if stats == nil {
		return nil
	}

	e.mu.Lock()
	perf := Performance{
		OperationsCount:     e.opsCount,
		AverageResponseTime: e.avgResponse,
	}
	e.mu.Unlock()

	return &SessionStatus{
		SessionID:   sessionID,
		CreatedAt:   stats.CreatedAt,
		LastUpdated: stats.LastUpdated,
		RuleCount:   stats.TotalRules,
		Performance: perf,
	}
}

// ValidateHealth sanity-checks the engine: every session's indexes must
// agree with its primary store both ways, history logs must respect their
// cap, and the query cache must respect its bound. Healthy engines return
// no issues.
func (e *Engine) ValidateHealth() Health {
	defer e.track(time.Now())

	var issues []string
	for _, sessionID := range e.store.Sessions() {
		for _, issue := range e.store.ValidateIndexes(sessionID) {
			issues = append(issues, fmt.Sprintf("session %s: %s", sessionID, issue))
		}
		if stats := e.store.SessionStats(sessionID); stats != nil {
			if stats.HistoryLength > e.store.Limits().MaxHistoryPerSession {
				issues = append(issues, fmt.Sprintf(
					"session %s: history length %d exceeds cap %d",
					sessionID, stats.HistoryLength, e.store.Limits().MaxHistoryPerSession,
				))
			}
			if stats.TotalRules > e.store.Limits().MaxRulesPerSession {
				issues = append(issues, fmt.Sprintf(
					"session %s: rule count %d exceeds cap %d",
					sessionID, stats.TotalRules, e.store.Limits().MaxRulesPerSession,
				))
			}
		}
	}
	if size := e.query.CacheSize(); size > e.query.MaxCacheSize() {
		issues = append(issues, fmt.Sprintf(
			"query cache holds %d entries, bound is %d", size, e.query.MaxCacheSize(),
		))
	}

	return Health{Healthy: len(issues) == 0, Issues: issues}
}

// ExportSession renders every live rule as a plain document-store-shaped
// map, for persistence collaborators. The engine itself never persists.
func (e *Engine) ExportSession(sessionID string) []map[string]any {
	defer e.track(time.Now())

	all := e.store.AllRules(sessionID)
	out := make([]map[string]any, len(all))
	for i, r := range all {
		out[i] = r.ExportMap()
	}
	return out
}
