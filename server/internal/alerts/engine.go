package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/config"
)

const (
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Dataset    string     `json:"dataset"`
	Group      string     `json:"group"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates alert rules against analysis reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "rule\x00dataset\x00group"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client *http.Client
	now    func() time.Time
	send   func(*Alert) // webhook delivery; replaced in tests
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.send = e.deliver
	e.SetConfig(cfg)
	return e
}

// SetConfig swaps the rules and webhooks. Rules whose condition cannot be
// parsed are dropped with a warning. Firing alerts of removed rules resolve
// on the next evaluation of their dataset.
func (e *Engine) SetConfig(cfg config.AlertsConfig) {
	rules := make([]config.AlertRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if err := CheckCondition(r.Condition); err != nil {
			slog.Warn("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		rules = append(rules, r)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = cfg.Webhooks
}

// Evaluate tests every rule against every group of r, which was computed for
// dataset. It returns copies of the alerts that fired in this pass.
//
// Fired alerts are stored and delivered asynchronously. Firing alerts of this
// dataset whose condition no longer holds, including those whose group has
// disappeared, are resolved.
func (e *Engine) Evaluate(dataset string, r *types.Report) []*Alert {
	now := e.now()
	var fired, notify []*Alert

	e.mu.Lock()
	holding := make(map[string]bool)
	for _, rule := range e.rules {
		for _, g := range r.Groups {
			fires, value := evalCondition(rule.Condition, g)
			if !fires {
				continue
			}
			key := alertKey(rule.Name, dataset, g.Key)
			holding[key] = true
			if _, ok := e.active[key]; ok {
				continue
			}
			if now.Sub(e.lastFire[key]) <= cooldown(rule) {
				continue
			}

			sev := rule.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:       uuid.New().String(),
				RuleName: rule.Name,
				Dataset:  dataset,
				Group:    g.Key,
				Severity: sev,
				Value:    value,
				Message: fmt.Sprintf("[%s] %s fired on %s/%s: %s (value %.2f)",
					sev, rule.Name, dataset, g.Key, rule.Condition, value),
				FiredAt: now,
				State:   StateFiring,
			}
			e.active[key] = a
			e.lastFire[key] = now

			cp := *a
			fired = append(fired, &cp)
			notify = append(notify, &cp)
			slog.Warn("alerts: fired", "rule", rule.Name, "dataset", dataset, "group", g.Key, "value", value, "severity", sev)
		}
	}

	for key, a := range e.active {
		if a.Dataset != dataset || holding[key] {
			continue
		}
		notify = append(notify, e.resolve(key, a, now))
		slog.Info("alerts: resolved", "rule", a.RuleName, "dataset", dataset, "group", a.Group)
	}
	e.mu.Unlock()

	for _, a := range notify {
		go e.send(a)
	}
	return fired
}

// Clear resolves every firing alert of dataset, e.g. after it was deleted.
func (e *Engine) Clear(dataset string) {
	now := e.now()
	var notify []*Alert

	e.mu.Lock()
	for key, a := range e.active {
		if a.Dataset == dataset {
			notify = append(notify, e.resolve(key, a, now))
		}
	}
	e.mu.Unlock()

	for _, a := range notify {
		go e.send(a)
	}
}

// resolve moves a firing alert to history and returns a copy. e.mu must be held.
func (e *Engine) resolve(key string, a *Alert, now time.Time) *Alert {
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

func alertKey(rule, dataset, group string) string {
	return rule + "\x00" + dataset + "\x00" + group
}

func cooldown(r config.AlertRule) time.Duration {
	if r.Cooldown > 0 {
		return r.Cooldown
	}
	return config.DefaultAlertCooldown
}
