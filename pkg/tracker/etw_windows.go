//go:build windows

package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tekert/golang-etw/etw"
)

const (
	win32kProviderGUID        = "{8c416c79-d49b-4f01-a467-e56d3aa8234c}" // Microsoft-Windows-Win32k
	kernelProcessProviderGUID = "{22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716}" // Microsoft-Windows-Kernel-Process
	etwEventBuffer            = 256
)

// ETWFocusSource subscribes to the Win32k provider for near-zero-overhead
// focus-change notification, falling back to PollingFocusSource whenever
// session or provider setup fails (elevated privileges unavailable,
// provider already claimed, etc), grounded in waddle's pkg/tracker/etw
// Consumer's fallbackMode behavior.
type ETWFocusSource struct {
	session  *etw.RealTimeSession
	consumer *etw.Consumer
	ctx      context.Context
	cancel   context.CancelFunc

	fallback FocusSource
	events   chan FocusEvent
	dropped  atomic.Int64
	mu       sync.Mutex
	closed   bool
}

// NewETWFocusSource attempts to start a Win32k ETW session; on any setup
// failure it silently degrades to polling, matching the source's own
// fallback-mode contract rather than surfacing a startup error.
func NewETWFocusSource() FocusSource {
	ctx, cancel := context.WithCancel(context.Background())
	f := &ETWFocusSource{ctx: ctx, cancel: cancel, events: make(chan FocusEvent, etwEventBuffer)}

	session := etw.NewRealTimeSession("RecallETWSession")
	if session == nil {
		cancel()
		return newPollingFallback()
	}
	consumer := etw.NewConsumer(ctx)
	if consumer == nil {
		cancel()
		return newPollingFallback()
	}
	f.session, f.consumer = session, consumer

	if err := session.EnableProvider(etw.MustParseProvider(win32kProviderGUID)); err != nil {
		cancel()
		return newPollingFallback()
	}
	// Kernel-Process is best-effort context only; failing to enable it
	// does not force a fallback.
	_ = session.EnableProvider(etw.MustParseProvider(kernelProcessProviderGUID))

	consumer.FromSessions(session)
	consumer.ProcessEvents(f.handleEvent)

	go func() {
		if err := consumer.Start(); err != nil {
			f.mu.Lock()
			f.closed = true
			f.mu.Unlock()
		}
	}()

	return f
}

func newPollingFallback() FocusSource {
	return NewFocusSource()
}

func (f *ETWFocusSource) handleEvent(e *etw.Event) {
	defer e.Release()
	if e.System.Provider.Guid.String() != win32kProviderGUID {
		return
	}
	ev := FocusEvent{
		Timestamp: e.System.TimeCreated.SystemTime,
		PID:       e.System.Execution.ProcessID,
	}
	select {
	case f.events <- ev:
	default:
		select {
		case <-f.events:
			f.dropped.Add(1)
		default:
		}
		select {
		case f.events <- ev:
		default:
			f.dropped.Add(1)
		}
	}
}

// Events returns the channel of focus-change events.
func (f *ETWFocusSource) Events() <-chan FocusEvent { return f.events }

// DroppedEvents reports how many events were dropped due to a full
// buffer, surfaced for health reporting.
func (f *ETWFocusSource) DroppedEvents() int64 { return f.dropped.Load() }

// Close stops the ETW session and releases resources.
func (f *ETWFocusSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.cancel()
	if f.consumer != nil {
		f.consumer.Stop()
	}
	if f.session != nil {
		f.session.Stop()
	}
	close(f.events)
	return nil
}
