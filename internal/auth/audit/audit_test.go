// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package audit_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/audit"
)

/*
TestRecorder_WritesEvents verifies that emitted events land in the log with
their attributes and that Close drains everything already buffered.
*/
func TestRecorder_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	recorder := audit.NewRecorder(logger, 16)

	recorder.Emit(audit.Event{
		Name:      audit.EventRefreshReuse,
		UserID:    "user-1",
		SessionID: "session-1",
		Detail:    map[string]string{"family_id": "fam-1"},
	})
	recorder.Emit(audit.Event{
		Name:   audit.EventLoginSucceeded,
		UserID: "user-2",
	})

	recorder.Close()

	out := buf.String()
	assert.Contains(t, out, audit.EventRefreshReuse)
	assert.Contains(t, out, audit.EventLoginSucceeded)
	assert.Contains(t, out, "user-1")
	assert.Contains(t, out, "session-1")
	assert.Contains(t, out, "detail_family_id")
	assert.Contains(t, out, "fam-1")
	assert.Equal(t, uint64(0), recorder.Dropped())

	assert.Equal(t, 2, strings.Count(out, `"msg":"audit"`))
}

// gateHandler blocks the consumer inside Handle until released, so tests
// can fill the emit buffer deterministically.
type gateHandler struct {
	started chan struct{}
	release chan struct{}
	once    bool
}

func (h *gateHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *gateHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *gateHandler) WithGroup(string) slog.Handler            { return h }

func (h *gateHandler) Handle(context.Context, slog.Record) error {
	if !h.once {
		h.once = true
		close(h.started)
		<-h.release
	}
	return nil
}

/*
TestRecorder_DropsWhenFull verifies the non-blocking contract: once the
consumer is stuck and the buffer is full, further emits are dropped and
counted instead of blocking.
*/
func TestRecorder_DropsWhenFull(t *testing.T) {
	handler := &gateHandler{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	recorder := audit.NewRecorder(slog.New(handler), 2)

	// First event occupies the consumer.
	recorder.Emit(audit.Event{Name: "e0"})
	<-handler.started

	// Fill the buffer, then overflow it.
	recorder.Emit(audit.Event{Name: "e1"})
	recorder.Emit(audit.Event{Name: "e2"})
	recorder.Emit(audit.Event{Name: "e3"})
	recorder.Emit(audit.Event{Name: "e4"})

	require.GreaterOrEqual(t, recorder.Dropped(), uint64(1))

	close(handler.release)
	recorder.Close()
}

/*
TestRecorder_EmitAfterClose verifies that a late emitter neither panics nor
blocks, and that double Close is safe.
*/
func TestRecorder_EmitAfterClose(t *testing.T) {
	var buf bytes.Buffer
	recorder := audit.NewRecorder(slog.New(slog.NewJSONHandler(&buf, nil)), 4)

	recorder.Close()
	recorder.Emit(audit.Event{Name: "too.late"})
	recorder.Close()

	assert.NotContains(t, buf.String(), "too.late")
	assert.Equal(t, uint64(1), recorder.Dropped())
}
