// Package admission decides whether ranging requests may enter and leave the
// queue: a flood cap on queued work per principal at submit time, and a
// background throttle gate at dispatch time.
package admission

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me/rangerd/internal/importance"
	"github.com/me/rangerd/pkg/model"
)

// Config carries the admission policy knobs.
type Config struct {
	// FloodCap is the maximum number of queued requests attributed to a
	// single principal. Zero disables the cap.
	FloodCap int
	// BackgroundGap is the minimum spacing between dispatches charged to a
	// background principal. Zero disables throttling.
	BackgroundGap time.Duration
	// ExemptPackages are caller package names never subject to throttling.
	ExemptPackages []string
}

// Controller applies admission policy. It keeps one piece of state: the last
// dispatch time per principal, which outlives the requests themselves so the
// throttle window survives caller churn.
type Controller struct {
	mu           sync.Mutex
	clock        clock.Clock
	logger       *slog.Logger
	cfg          Config
	classifier   importance.Classifier
	exempt       map[string]bool
	lastAdmitted map[model.Principal]time.Time
}

// New creates an admission controller.
func New(clk clock.Clock, cfg Config, classifier importance.Classifier, logger *slog.Logger) *Controller {
	exempt := make(map[string]bool, len(cfg.ExemptPackages))
	for _, pkg := range cfg.ExemptPackages {
		exempt[pkg] = true
	}
	return &Controller{
		clock:        clk,
		logger:       logger.With("component", "admission"),
		cfg:          cfg,
		classifier:   classifier,
		exempt:       exempt,
		lastAdmitted: make(map[model.Principal]time.Time),
	}
}

// CheckFlood reports whether a new request with the given attribution may be
// queued. queuedCount returns the number of already-queued requests charged
// to a principal. The request is rejected only when every attributed
// principal is at the cap; one principal with headroom admits the request.
func (c *Controller) CheckFlood(att model.AttributionSet, queuedCount func(model.Principal) int) bool {
	if c.cfg.FloodCap <= 0 {
		return true
	}
	for _, p := range att {
		if queuedCount(p) < c.cfg.FloodCap {
			return true
		}
	}
	c.logger.Warn("flood cap reached for all attributed principals",
		"attribution", att.String(), "cap", c.cfg.FloodCap)
	return false
}

// TryAdmit applies the background throttle at dispatch time. A request is
// admitted when the caller package is exempt, when any attributed principal
// is foreground, or when any attributed principal has been idle for at least
// the background gap. On admit the dispatch time is stamped on every
// attributed principal, so a multi-principal request renews all of them.
func (c *Controller) TryAdmit(caller string, att model.AttributionSet) bool {
	if c.cfg.BackgroundGap <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	admit := c.exempt[caller]
	if !admit {
		now := c.clock.Now()
		for _, p := range att {
			if c.classifier.Importance(p) == importance.Foreground {
				admit = true
				break
			}
			last, seen := c.lastAdmitted[p]
			if !seen || now.Sub(last) >= c.cfg.BackgroundGap {
				admit = true
				break
			}
		}
	}
	if !admit {
		c.logger.Info("background throttle rejected dispatch",
			"caller", caller, "attribution", att.String())
		return false
	}
	now := c.clock.Now()
	for _, p := range att {
		c.lastAdmitted[p] = now
	}
	return true
}

// ForgetPrincipal drops the throttle stamp for a principal. Used by tests and
// the admin surface; normal cleanup keeps stamps so the window holds.
func (c *Controller) ForgetPrincipal(p model.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastAdmitted, p)
}
