// Package notify delivers user-visible notifications produced by a
// board session to whoever presents them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink accepts notifications. Implementations must not block.
type Sink interface {
	Notify(n Notification)
}

func Success(message string) Notification {
	return newNotification(LevelSuccess, message)
}

func Error(message string) Notification {
	return newNotification(LevelError, message)
}

func Info(message string) Notification {
	return newNotification(LevelInfo, message)
}

func newNotification(level Level, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// Dispatcher fans notifications out to subscribers keyed by id.
// Notifications sent while the dispatcher is stopped are dropped.
type Dispatcher struct {
	mu      sync.RWMutex
	running bool
	subs    map[string]func(Notification)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[string]func(Notification)),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
}

// Stop halts delivery and forgets every subscriber.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.running = false
	clear(d.subs)
	d.mu.Unlock()
}

// Subscribe registers fn under id, replacing any previous callback
// with the same id, and returns a function removing it.
func (d *Dispatcher) Subscribe(id string, fn func(Notification)) func() {
	d.mu.Lock()
	d.subs[id] = fn
	d.mu.Unlock()

	return func() { d.Unsubscribe(id) }
}

func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	delete(d.subs, id)
	d.mu.Unlock()
}

func (d *Dispatcher) Notify(n Notification) {
	d.mu.RLock()
	if !d.running {
		d.mu.RUnlock()
		return
	}
	fns := make([]func(Notification), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(n)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Notification) {}
