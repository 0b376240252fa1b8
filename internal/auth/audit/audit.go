// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package audit records security-relevant events as structured log lines.

# Delivery guarantees

Emission is fire-and-forget by contract: an audit problem must never fail
the request that triggered it. Events flow through a bounded channel to a
single consumer goroutine; when the buffer is full the event is dropped and
counted instead of blocking the hot path. [Recorder.Close] stops intake and
drains what is already buffered.
*/
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Event names. Dot-separated, subsystem first.
const (
	EventLoginSucceeded    = "login.succeeded"
	EventLoginFailed       = "login.failed"
	EventAccountRegistered = "account.registered"
	EventMFAEnrolled       = "mfa.enrolled"

	EventSessionRevoked  = "session.revoked"
	EventRefreshRotated  = "refresh.rotated"
	EventRefreshRejected = "refresh.rejected"
	// EventRefreshReuse marks a hard reuse: a revoked refresh token was
	// replayed outside the grace window and its whole family was burned.
	EventRefreshReuse = "refresh.reuse"

	EventCodeIssued   = "code.issued"
	EventCodeConsumed = "code.consumed"

	EventTokenMinted  = "token.minted"
	EventTokenRevoked = "token.revoked"

	EventSSOLogout = "sso.logout"
)

// Event is one audit record.
type Event struct {
	// Name identifies what happened (see the Event* constants).
	Name string
	// At is stamped by the recorder when left zero.
	At time.Time

	UserID    string
	SessionID string
	IPAddress string

	// Detail carries small, non-sensitive context (reasons, ids, counts).
	// Never put secrets or raw tokens here.
	Detail map[string]string
}

// Recorder fans audit events into the structured log without ever blocking
// an emitter.
type Recorder struct {
	logger *slog.Logger

	events  chan Event
	stopped chan struct{}
	drained chan struct{}

	stopOnce sync.Once
	dropped  atomic.Uint64
}

// NewRecorder starts the consumer goroutine. Buffer sizes the emit channel;
// a few hundred is plenty for request-rate events.
func NewRecorder(logger *slog.Logger, buffer int) *Recorder {
	if buffer < 1 {
		buffer = 1
	}

	recorder := &Recorder{
		logger:  logger,
		events:  make(chan Event, buffer),
		stopped: make(chan struct{}),
		drained: make(chan struct{}),
	}

	go recorder.consume()

	return recorder
}

// Emit queues an event. It never blocks: when the recorder is stopped or
// the buffer is full, the event is dropped and counted.
func (recorder *Recorder) Emit(event Event) {
	select {
	case <-recorder.stopped:
		recorder.dropped.Add(1)
		return
	default:
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case recorder.events <- event:
	default:
		recorder.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded since startup.
func (recorder *Recorder) Dropped() uint64 {
	return recorder.dropped.Load()
}

// Close stops intake, drains buffered events, and waits for the consumer
// to finish. Safe to call more than once.
func (recorder *Recorder) Close() {
	recorder.stopOnce.Do(func() {
		close(recorder.stopped)
	})
	<-recorder.drained
}

// consume writes events until stopped, then drains whatever is buffered.
// The channel itself is never closed, so a late Emit can race Close safely.
func (recorder *Recorder) consume() {
	for {
		select {
		case <-recorder.stopped:
			for {
				select {
				case event := <-recorder.events:
					recorder.write(event)
				default:
					close(recorder.drained)
					return
				}
			}
		case event := <-recorder.events:
			recorder.write(event)
		}
	}
}

func (recorder *Recorder) write(event Event) {
	attrs := []slog.Attr{
		slog.String("event", event.Name),
		slog.Time("at", event.At),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}

	for key, value := range event.Detail {
		attrs = append(attrs, slog.String("detail_"+key, value))
	}

	recorder.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
