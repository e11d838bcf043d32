package ratelimit

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

type Limits struct {
	Window      time.Duration
	IPGeneral   int
	IPAI        int
	UserGeneral int
	UserAI      int
}

func DefaultLimits() Limits {
	return Limits{
		Window:      60 * time.Second,
		IPGeneral:   60,
		IPAI:        10,
		UserGeneral: 120,
		UserAI:      20,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.Window <= 0 {
		l.Window = d.Window
	}
	if l.IPGeneral <= 0 {
		l.IPGeneral = d.IPGeneral
	}
	if l.IPAI <= 0 {
		l.IPAI = d.IPAI
	}
	if l.UserGeneral <= 0 {
		l.UserGeneral = d.UserGeneral
	}
	if l.UserAI <= 0 {
		l.UserAI = d.UserAI
	}
	return l
}

// Subject identifies who is asking. UserID is empty for anonymous callers.
type Subject struct {
	IP     string
	UserID string
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Governor admits or rejects requests with per-IP and per-user sliding
// windows. AI paths are counted in their own windows with tighter limits.
type Governor struct {
	store  WindowStore
	limits Limits
	now    func() time.Time
	logger *log.Logger

	warnedStore atomic.Bool
}

func NewGovernor(store WindowStore, limits Limits, logger *log.Logger) *Governor {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Governor{store: store, limits: limits.withDefaults(), now: time.Now, logger: logger}
}

func (g *Governor) Limits() Limits { return g.limits }

// Admit always records the hit against the IP window. When the caller is
// authenticated the user window decides; otherwise the IP window does.
func (g *Governor) Admit(ctx context.Context, s Subject, aiPath bool) Decision {
	scope := "general"
	ipLimit, userLimit := g.limits.IPGeneral, g.limits.UserGeneral
	if aiPath {
		scope = "ai"
		ipLimit, userLimit = g.limits.IPAI, g.limits.UserAI
	}

	now := g.now()
	ip := strings.TrimSpace(s.IP)
	if ip == "" {
		ip = "unknown"
	}
	ipCount, ipErr := g.store.Hit(ctx, "ip:"+scope+":"+ip, now, g.limits.Window)

	userID := strings.TrimSpace(s.UserID)
	if userID == "" {
		if ipErr != nil {
			g.warnStoreOnce(ipErr)
			return Decision{Allowed: true, Limit: ipLimit, Remaining: ipLimit}
		}
		return g.decide(ipCount, ipLimit)
	}

	userCount, err := g.store.Hit(ctx, "user:"+scope+":"+userID, now, g.limits.Window)
	if err != nil {
		g.warnStoreOnce(err)
		return Decision{Allowed: true, Limit: userLimit, Remaining: userLimit}
	}
	return g.decide(userCount, userLimit)
}

func (g *Governor) decide(count, limit int) Decision {
	if count > limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: g.limits.Window}
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - count}
}

func (g *Governor) warnStoreOnce(err error) {
	if g.logger == nil {
		return
	}
	if g.warnedStore.CompareAndSwap(false, true) {
		g.logger.Printf("[RateLimit] window store failed, admitting requests: %v", err)
	}
}
