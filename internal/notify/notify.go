// Package notify raises desktop notifications on quota transitions.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// CriticalPercent is the remaining percentage below which a resource is critical.
const CriticalPercent = 5.0

// Notifier remembers the last reading of every entity and notifies when a
// resource drops below CriticalPercent or comes back after a reset.
type Notifier struct {
	mu   sync.Mutex
	last map[models.EntityKey]models.ResourceQuota
	send func(title, message string) error
}

// New creates a Notifier that sends through beeep.
func New() *Notifier {
	return &Notifier{
		last: make(map[models.EntityKey]models.ResourceQuota),
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Observe compares the accounts' quota with the previous observation.
// The first reading of an entity only primes the state.
func (n *Notifier) Observe(accounts []models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range accounts {
		acc := &accounts[i]
		if acc.Quota == nil {
			continue
		}
		for _, rq := range acc.Quota.Resources {
			key := models.NewEntityKey(acc.ID, rq.Name)
			prev, seen := n.last[key]
			n.last[key] = rq
			if !seen {
				continue
			}

			switch {
			case isReset(prev, rq):
				n.notify(fmt.Sprintf("Quota Reset: %s", acc.Name()),
					fmt.Sprintf("%s has been refreshed (%.0f%%).", rq.Name, rq.Percentage))
			case rq.Percentage < CriticalPercent && prev.Percentage >= CriticalPercent:
				n.notify(fmt.Sprintf("Critical Quota: %s", acc.Name()),
					fmt.Sprintf("%s remaining quota is below %.0f%% (%.1f%%)", rq.Name, CriticalPercent, rq.Percentage))
			}
		}
	}
}

// isReset reports a changed reset instant together with a higher percentage.
func isReset(prev, cur models.ResourceQuota) bool {
	if prev.ResetAt == nil || cur.ResetAt == nil || *prev.ResetAt == *cur.ResetAt {
		return false
	}
	return cur.Percentage > prev.Percentage
}

func (n *Notifier) notify(title, message string) {
	if err := n.send(title, message); err != nil {
		logger.Warn("failed to send notification", "title", title, "error", err)
	}
}
