// README: Best-effort notification emitter; failures are logged, never propagated.
package notify

import (
	"context"
	"log/slog"
	"time"

	"waypool/internal/types"
)

// sendTimeout bounds each store write so a slow sink can never block a
// booking transition that already committed.
const sendTimeout = 2 * time.Second

type Sink interface {
	Insert(ctx context.Context, n *Notification) error
}

type Service struct {
	sink Sink
	log  *slog.Logger
}

func NewService(sink Sink, log *slog.Logger) *Service {
	return &Service{sink: sink, log: log}
}

// Notify delivers a notification to one receiver. It is fire-and-forget:
// errors are logged and swallowed because the triggering mutation has
// already succeeded.
func (s *Service) Notify(ctx context.Context, receiverID types.ID, kind Kind, message string, rideID *types.ID) {
	if s == nil || s.sink == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	n := &Notification{
		ReceiverID: receiverID,
		Kind:       kind,
		Message:    message,
		RideID:     rideID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.sink.Insert(sctx, n); err != nil && s.log != nil {
		s.log.Warn("notification send failed",
			"receiver", string(receiverID),
			"kind", string(kind),
			"err", err,
		)
	}
}
