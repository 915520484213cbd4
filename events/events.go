package events

import (
	"context"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/flokiorg/lngateway/logger"
)

type Event struct {
	Event      string      `json:"event"`
	Properties interface{} `json:"properties,omitempty"`
}

type EventSubscriber interface {
	ConsumeEvent(ctx context.Context, event *Event, globalProperties map[string]interface{})
}

type EventPublisher interface {
	RegisterSubscriber(eventListener EventSubscriber)
	RemoveSubscriber(eventListener EventSubscriber)
	Publish(event *Event)
	PublishSync(event *Event)
	SetGlobalProperty(key string, value interface{})
}

type eventPublisher struct {
	listeners        []EventSubscriber
	subscriberMtx    sync.Mutex
	globalProperties map[string]interface{}
}

func NewEventPublisher() *eventPublisher {
	return &eventPublisher{
		listeners:        []EventSubscriber{},
		globalProperties: map[string]interface{}{},
	}
}

func (ep *eventPublisher) RegisterSubscriber(listener EventSubscriber) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()
	ep.listeners = append(ep.listeners, listener)
}

func (ep *eventPublisher) RemoveSubscriber(listenerToRemove EventSubscriber) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()

	ep.listeners = slices.DeleteFunc(ep.listeners, func(listener EventSubscriber) bool {
		return listener == listenerToRemove
	})
}

// Publish delivers the event to every subscriber on its own goroutine.
func (ep *eventPublisher) Publish(event *Event) {
	listeners, globalProperties := ep.snapshot()
	logger.Logger.Debug().Str("event", event.Event).Int("listeners", len(listeners)).Msg("Publishing event")

	for _, listener := range listeners {
		go ep.deliver(listener, event, globalProperties)
	}
}

// PublishSync blocks until every subscriber consumed the event.
func (ep *eventPublisher) PublishSync(event *Event) {
	listeners, globalProperties := ep.snapshot()
	logger.Logger.Debug().Str("event", event.Event).Int("listeners", len(listeners)).Msg("Publishing event synchronously")

	var wg sync.WaitGroup
	for _, listener := range listeners {
		wg.Add(1)
		go func(listener EventSubscriber) {
			defer wg.Done()
			ep.deliver(listener, event, globalProperties)
		}(listener)
	}
	wg.Wait()
}

func (ep *eventPublisher) SetGlobalProperty(key string, value interface{}) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()
	ep.globalProperties[key] = value
}

func (ep *eventPublisher) snapshot() ([]EventSubscriber, map[string]interface{}) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()

	globalProperties := make(map[string]interface{}, len(ep.globalProperties))
	for k, v := range ep.globalProperties {
		globalProperties[k] = v
	}
	return slices.Clone(ep.listeners), globalProperties
}

func (ep *eventPublisher) deliver(listener EventSubscriber, event *Event, globalProperties map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error().
				Str("event", event.Event).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Event subscriber panicked")
		}
	}()
	listener.ConsumeEvent(context.Background(), event, globalProperties)
}
