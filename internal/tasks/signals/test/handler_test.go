package signals_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/signals"

	kratoserrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu     sync.Mutex
	inputs []services.RecordInteractionInput
	err    error
}

func (r *fakeRecorder) RecordInteraction(_ context.Context, input services.RecordInteractionInput) (*vo.InteractionOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.inputs = append(r.inputs, input)
	return vo.NewInteractionOutcome(input.ContentID, input.Kind, 1, true, true), nil
}

func (r *fakeRecorder) recorded() []services.RecordInteractionInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]services.RecordInteractionInput, len(r.inputs))
	copy(out, r.inputs)
	return out
}

func newHandler(recorder *fakeRecorder) *signals.EventHandler {
	return signals.NewEventHandler(recorder, log.NewStdLogger(io.Discard), nil)
}

func validEvent() *signals.Event {
	return &signals.Event{
		UserID:      uuid.NewString(),
		ContentID:   uuid.NewString(),
		Kind:        "view",
		OccurredAt:  time.Now().UTC(),
		DurationMs:  5000,
		ProgressPct: 42,
		Version:     signals.EventVersion,
	}
}

func TestHandle_ForwardsToRecorder(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := newHandler(recorder)
	evt := validEvent()

	require.NoError(t, handler.Handle(context.Background(), evt))

	inputs := recorder.recorded()
	require.Len(t, inputs, 1)
	require.Equal(t, evt.UserID, inputs[0].UserID.String())
	require.Equal(t, evt.ContentID, inputs[0].ContentID.String())
	require.Equal(t, po.KindView, inputs[0].Kind)
	require.Equal(t, int64(5000), inputs[0].Signal.DurationMs)
	require.Equal(t, int32(42), inputs[0].Signal.ProgressPct)
}

func TestHandle_DropsMalformedIdentifiers(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := newHandler(recorder)

	evt := validEvent()
	evt.UserID = "not-a-uuid"
	require.NoError(t, handler.Handle(context.Background(), evt))

	evt = validEvent()
	evt.ContentID = "also-bad"
	require.NoError(t, handler.Handle(context.Background(), evt))

	evt = validEvent()
	evt.Kind = "poke"
	require.NoError(t, handler.Handle(context.Background(), evt))

	require.Empty(t, recorder.recorded())
}

func TestHandle_AcksUnrecoverableServiceErrors(t *testing.T) {
	recorder := &fakeRecorder{err: services.ErrContentNotFound}
	handler := newHandler(recorder)

	require.NoError(t, handler.Handle(context.Background(), validEvent()))

	recorder.err = kratoserrors.BadRequest(services.ReasonInvalidArgument, "bad signal")
	require.NoError(t, handler.Handle(context.Background(), validEvent()))
}

func TestHandle_PropagatesTransientErrorsForRedelivery(t *testing.T) {
	wantErr := kratoserrors.ServiceUnavailable(services.ReasonTransientFailure, "store down")
	recorder := &fakeRecorder{err: wantErr}
	handler := newHandler(recorder)

	err := handler.Handle(context.Background(), validEvent())
	require.Error(t, err)
	require.True(t, kratoserrors.IsServiceUnavailable(err))
}

func TestHandle_PropagatesUnknownErrors(t *testing.T) {
	recorder := &fakeRecorder{err: fmt.Errorf("connection reset")}
	handler := newHandler(recorder)

	require.Error(t, handler.Handle(context.Background(), validEvent()))
}

func TestHandle_NilEventIsNoop(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := newHandler(recorder)

	require.NoError(t, handler.Handle(context.Background(), nil))
	require.Empty(t, recorder.recorded())
}
