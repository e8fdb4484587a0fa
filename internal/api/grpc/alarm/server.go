package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/service/engine"
)

// Engine abstracts the lifecycle operations the transport depends on.
type Engine interface {
	Load(ctx context.Context, ownerID string) ([]*domain.Alarm, error)
	Save(ctx context.Context, ownerID string) error
	Create(ctx context.Context, draft domain.Draft) (*domain.Alarm, error)
	Update(ctx context.Context, id string, patch domain.Patch) (*domain.Alarm, error)
	Delete(ctx context.Context, id, requesterID string) error
	Toggle(ctx context.Context, id string, enabled bool) (*domain.Alarm, error)
	Dismiss(ctx context.Context, id string, method domain.Method, requesterID string) error
	Snooze(ctx context.Context, id string, minutes int, requesterID string) (bool, error)
	CreateBattleAlarm(ctx context.Context, battleID string, draft domain.Draft) (*domain.Alarm, error)
	UnlinkFromBattle(ctx context.Context, id string) error
	ListEvents(ctx context.Context, ownerID string) ([]domain.Event, error)
	EventStats(ctx context.Context, id, requesterID string) (domain.Stats, error)
	GetAll() []*domain.Alarm
	GetByID(id string) (*domain.Alarm, bool)
	GetForOwner(ownerID string) []*domain.Alarm
	GetBattleAlarms(ownerID string) []*domain.Alarm
	GetNonBattleAlarms(ownerID string) []*domain.Alarm
	GetState(id string) (domain.State, bool)
	Subscribe() *engine.Subscription
}

// Server implements the AlarmService gRPC API.
type Server struct {
	// engine provides the alarm lifecycle operations.
	engine Engine
}

var (
	errIDRequired       = errors.New("id is required")
	errBattleIDRequired = errors.New("battle_id is required")
	errUnknownFilter    = errors.New("battle filter must be all, only or none")

	errSubscriptionDropped = status.Error(codes.Aborted, "signal subscription dropped")
)

// NewServer wires the engine into a gRPC handler.
func NewServer(e Engine) *Server {
	return &Server{engine: e}
}

// LoadAlarms loads a partition into the working set.
func (s *Server) LoadAlarms(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req OwnerRequest
	if err := Decode(message, &req); err != nil {
		return nil, invalidRequest(err)
	}

	alarms, err := s.engine.Load(ctx, ownerFor(ctx, req.OwnerID))
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(AlarmsResponse{Alarms: alarms})
}

// SaveAlarms persists a partition.
func (s *Server) SaveAlarms(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req OwnerRequest
	if err := Decode(message, &req); err != nil {
		return nil, invalidRequest(err)
	}

	if err := s.engine.Save(ctx, ownerFor(ctx, req.OwnerID)); err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(Empty{})
}

// ListAlarms lists the working set, optionally filtered by owner and battle link.
func (s *Server) ListAlarms(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req ListRequest
	if err := Decode(message, &req); err != nil {
		return nil, invalidRequest(err)
	}

	owner := ownerFor(ctx, req.OwnerID)

	var alarms []*domain.Alarm

	switch {
	case req.Battle == BattleOnly:
		alarms = s.engine.GetBattleAlarms(owner)
	case req.Battle == BattleNone:
		alarms = s.engine.GetNonBattleAlarms(owner)
	case req.Battle != "" && req.Battle != BattleAll:
		return nil, invalidRequest(errUnknownFilter)
	case owner == "":
		alarms = s.engine.GetAll()
	default:
		alarms = s.engine.GetForOwner(owner)
	}

	return respond(AlarmsResponse{Alarms: alarms})
}

// GetAlarm returns one alarm with its lifecycle state.
func (s *Server) GetAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req AlarmRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	found, ok := s.engine.GetByID(req.ID)
	if !ok {
		return nil, toStatus(ctx, domain.ErrAlarmNotFound)
	}

	state, _ := s.engine.GetState(req.ID)

	return respond(AlarmResponse{Alarm: found, State: state})
}

// CreateAlarm creates an alarm.
func (s *Server) CreateAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req CreateRequest
	if err := Decode(message, &req); err != nil {
		return nil, invalidRequest(err)
	}

	draft := req.Draft()
	draft.OwnerID = ownerFor(ctx, draft.OwnerID)

	created, err := s.engine.Create(ctx, draft)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(AlarmResponse{Alarm: created, State: domain.InitialState(created)})
}

// UpdateAlarm applies a partial update.
func (s *Server) UpdateAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req UpdateRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	updated, err := s.engine.Update(ctx, req.ID, req.Patch())
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(AlarmResponse{Alarm: updated})
}

// DeleteAlarm removes an alarm owned by the requester.
func (s *Server) DeleteAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req AlarmRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	if err := s.engine.Delete(ctx, req.ID, requesterFor(ctx, req.Requester)); err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(Empty{})
}

// ToggleAlarm enables or disables an alarm.
func (s *Server) ToggleAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req ToggleRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	toggled, err := s.engine.Toggle(ctx, req.ID, req.Enabled)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(AlarmResponse{Alarm: toggled})
}

// DismissAlarm ends the current occurrence.
func (s *Server) DismissAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req DismissRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	if err := s.engine.Dismiss(ctx, req.ID, req.Method, requesterFor(ctx, req.Requester)); err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(Empty{})
}

// SnoozeAlarm postpones the current occurrence.
func (s *Server) SnoozeAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req SnoozeRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	applied, err := s.engine.Snooze(ctx, req.ID, req.Minutes, requesterFor(ctx, req.Requester))
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(SnoozeResponse{Applied: applied})
}

// CreateBattleAlarm creates an alarm built by the battle service.
func (s *Server) CreateBattleAlarm(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req CreateRequest
	if err := Decode(message, &req); err != nil {
		return nil, invalidRequest(err)
	}

	if req.BattleID == "" {
		return nil, invalidRequest(errBattleIDRequired)
	}

	draft := req.Draft()
	draft.OwnerID = ownerFor(ctx, draft.OwnerID)

	created, err := s.engine.CreateBattleAlarm(ctx, req.BattleID, draft)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(AlarmResponse{Alarm: created, State: domain.InitialState(created)})
}

// UnlinkFromBattle detaches an alarm from its battle.
func (s *Server) UnlinkFromBattle(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req AlarmRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	if err := s.engine.UnlinkFromBattle(ctx, req.ID); err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(Empty{})
}

// ListEvents returns the history of a partition.
func (s *Server) ListEvents(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req OwnerRequest
	if err := Decode(message, &req); err != nil {
		return nil, invalidRequest(err)
	}

	events, err := s.engine.ListEvents(ctx, ownerFor(ctx, req.OwnerID))
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(EventsResponse{Events: events})
}

// EventStats aggregates the history of an alarm.
func (s *Server) EventStats(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	var req AlarmRequest
	if err := decodeWithID(message, &req, func() string { return req.ID }); err != nil {
		return nil, err
	}

	stats, err := s.engine.EventStats(ctx, req.ID, requesterFor(ctx, req.Requester))
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return respond(StatsResponse{Stats: stats})
}

// WatchSignals streams signals until the client goes away or the subscription is dropped.
func (s *Server) WatchSignals(ctx context.Context, send func(*structpb.Struct) error) error {
	sub := s.engine.Subscribe()

	defer func() {
		_ = sub.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case signal, ok := <-sub.C():
			if !ok {
				return errSubscriptionDropped
			}

			message, err := Encode(SignalMessage{
				Kind:   string(signal.Kind),
				Alarm:  signal.Alarm,
				Event:  signal.Event,
				Source: signal.Source,
				At:     signal.At,
			})
			if err != nil {
				return toStatus(ctx, err)
			}

			if err = send(message); err != nil {
				return err
			}
		}
	}
}

func respond(value any) (*structpb.Struct, error) {
	message, err := Encode(value)
	if err != nil {
		return nil, toStatus(context.Background(), err)
	}

	return message, nil
}

func decodeWithID(message *structpb.Struct, target any, id func() string) error {
	if err := Decode(message, target); err != nil {
		return invalidRequest(err)
	}

	if id() == "" {
		return invalidRequest(errIDRequired)
	}

	return nil
}

// ownerFor falls back to the authenticated requester for an empty owner.
func ownerFor(ctx context.Context, owner string) string {
	if owner != "" {
		return owner
	}

	subject, _ := RequesterFromContext(ctx)

	return subject
}

// requesterFor prefers the authenticated requester over the request field.
func requesterFor(ctx context.Context, requester string) string {
	if subject, ok := RequesterFromContext(ctx); ok {
		return subject
	}

	return requester
}
