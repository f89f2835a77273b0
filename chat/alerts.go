package chat

import (
	"sync"
	"time"
)

// DefaultAlertDuration is how long an alert stays visible
const DefaultAlertDuration = 5 * time.Second

// Alert is a transient message shown to the user
type Alert struct {
	ID      int
	Message string
	Raised  time.Time
}

// Alerts holds at most one visible alert. A new alert replaces the current
// one, and expiring a superseded alert has no effect.
type Alerts struct {
	mu       sync.Mutex
	current  *Alert
	nextID   int
	duration time.Duration
	now      func() time.Time
}

// NewAlerts creates an alert holder. A non-positive duration selects
// DefaultAlertDuration.
func NewAlerts(duration time.Duration) *Alerts {
	if duration <= 0 {
		duration = DefaultAlertDuration
	}
	return &Alerts{duration: duration, now: time.Now}
}

// Show raises an alert and returns its id
func (a *Alerts) Show(message string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	a.current = &Alert{ID: a.nextID, Message: message, Raised: a.now()}
	return a.nextID
}

// Expire hides the alert with the given id if it is still current
func (a *Alerts) Expire(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil || a.current.ID != id {
		return false
	}
	a.current = nil
	return true
}

// Dismiss hides the current alert
func (a *Alerts) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = nil
}

// Current returns the visible alert. Alerts older than the configured
// duration are treated as expired even if no timer fired.
func (a *Alerts) Current() (Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return Alert{}, false
	}
	if a.now().Sub(a.current.Raised) >= a.duration {
		a.current = nil
		return Alert{}, false
	}
	return *a.current, true
}

func (a *Alerts) Duration() time.Duration {
	return a.duration
}
