package rapidslogger

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer receives loader lifecycle events as CloudEvents.
type Observer interface {
	// OnEvent is called synchronously on the goroutine that produced the
	// event. Observers should return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// FunctionalObserver adapts a function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer that calls handler for every event.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

type observerRegistration struct {
	observer   Observer
	eventTypes map[string]bool
}

// eventBus fans events out to registered observers. A failing or panicking
// observer is logged and never affects the caller.
type eventBus struct {
	mu        sync.RWMutex
	observers map[string]*observerRegistration
	logger    StructuredLogger
}

func newEventBus(logger StructuredLogger) *eventBus {
	return &eventBus{
		observers: make(map[string]*observerRegistration),
		logger:    logger,
	}
}

func (b *eventBus) register(observer Observer, eventTypes ...string) {
	reg := &observerRegistration{observer: observer}
	if len(eventTypes) > 0 {
		reg.eventTypes = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			reg.eventTypes[t] = true
		}
	}

	b.mu.Lock()
	b.observers[observer.ObserverID()] = reg
	b.mu.Unlock()
}

func (b *eventBus) unregister(observer Observer) {
	b.mu.Lock()
	delete(b.observers, observer.ObserverID())
	b.mu.Unlock()
}

func (b *eventBus) emit(ctx context.Context, eventType string, data any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	targets := make([]Observer, 0, len(b.observers))
	for _, reg := range b.observers {
		if reg.eventTypes != nil && !reg.eventTypes[eventType] {
			continue
		}
		targets = append(targets, reg.observer)
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	event := newCloudEvent(eventType, data)
	if err := event.Validate(); err != nil {
		b.logger.Error("Invalid CloudEvent", "eventType", eventType, "error", err)
		return
	}
	for _, o := range targets {
		b.notify(ctx, o, event)
	}
}

func (b *eventBus) notify(ctx context.Context, observer Observer, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Observer panicked", "observerID", observer.ObserverID(), "event", event.Type(), "panic", fmt.Sprint(r))
		}
	}()
	if err := observer.OnEvent(ctx, event); err != nil {
		b.logger.Error("Observer error", "observerID", observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

func newCloudEvent(eventType string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(EventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// generateEventID returns a time-ordered UUIDv7, falling back to v4.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
