package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/hlsvariant/internal/events"
	"github.com/smazurov/hlsvariant/internal/transcode"
)

// eventTypes maps SSE event names to their payloads.
var eventTypes = map[string]any{
	"status":             transcode.Status{},
	"transcode-started":  events.TranscodeStartedEvent{},
	"state-changed":      events.StateChangedEvent{},
	"stream-linked":      events.StreamLinkedEvent{},
	"stream-ignored":     events.StreamIgnoredEvent{},
	"pipeline-warning":   events.PipelineWarningEvent{},
	"segment-written":    events.SegmentWrittenEvent{},
	"transcode-finished": events.TranscodeFinishedEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time transcode events. The current status is sent first.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.Forward[events.TranscodeStartedEvent](s.eventBus, eventCh),
			events.Forward[events.StateChangedEvent](s.eventBus, eventCh),
			events.Forward[events.StreamLinkedEvent](s.eventBus, eventCh),
			events.Forward[events.StreamIgnoredEvent](s.eventBus, eventCh),
			events.Forward[events.PipelineWarningEvent](s.eventBus, eventCh),
			events.Forward[events.SegmentWrittenEvent](s.eventBus, eventCh),
			events.Forward[events.TranscodeFinishedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(s.currentStatus()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
