package audit

import (
	"context"
	"encoding/json"

	"wink/internal/platform/requestctx"
)

type Service struct {
	store StoreAPI
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

// Record writes one audit event. Request id and client address come from
// the context.
func (s *Service) Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error {
	evt := Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestctx.GetRequestID(ctx),
		IP:         requestctx.GetClientIP(ctx),
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return err
		}
		evt.Before = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		evt.After = payload
	}
	return s.store.Insert(ctx, evt)
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	return s.store.Count(ctx, filter)
}

func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	return s.store.List(ctx, filter, includeDetails, limit, offset)
}
