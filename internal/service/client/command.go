package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/alarm-engine/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-engine/internal/config"
	"github.com/oshokin/alarm-engine/internal/logger"
	"github.com/oshokin/alarm-engine/internal/service/common"
)

// Options configures how the CLI reaches the engine.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Token is sent as the bearer token. When empty and the config carries
	// a JWT secret, a short-lived token is issued for Requester.
	Token string
	// Requester identifies the caller; defaults to the OS username.
	Requester string
	// Output receives the printed responses; defaults to stdout.
	Output io.Writer
}

// tokenTTL is the lifetime of tokens issued by the CLI.
const tokenTTL = 5 * time.Minute

// Session is a connected CLI client.
type Session struct {
	client    *common.Client
	requester string
	out       io.Writer
}

// Open loads settings and connects to the engine.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	ctx = logger.WithName(ctx, "alarm-cli")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	requester, err := common.RequesterOrCurrent(opts.Requester)
	if err != nil {
		return nil, err
	}

	token := opts.Token
	if token == "" && cfg.Auth.JWTSecret != "" {
		if token, err = alarm.IssueToken(cfg.Auth.JWTSecret, requester, tokenTTL); err != nil {
			return nil, err
		}
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithToken(token))
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Connected to alarm engine", "server_address", serverAddress, "requester", requester)

	return NewSession(client, requester, opts.Output), nil
}

// NewSession wraps a connected client.
func NewSession(client *common.Client, requester string, out io.Writer) *Session {
	if out == nil {
		out = os.Stdout
	}

	return &Session{client: client, requester: requester, out: out}
}

// Close releases the connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Requester is the identity the session acts as.
func (s *Session) Requester() string {
	return s.requester
}

// ownerOr defaults an empty owner to the requester.
func (s *Session) ownerOr(ownerID string) string {
	if ownerID != "" {
		return ownerID
	}

	return s.requester
}

// Load loads a partition and prints it.
func (s *Session) Load(ctx context.Context, ownerID string) error {
	alarms, err := s.client.LoadAlarms(ctx, s.ownerOr(ownerID))
	if err != nil {
		return err
	}

	return s.print(alarm.AlarmsResponse{Alarms: alarms})
}

// Save persists a partition.
func (s *Session) Save(ctx context.Context, ownerID string) error {
	if err := s.client.SaveAlarms(ctx, s.ownerOr(ownerID)); err != nil {
		return err
	}

	return s.print(alarm.Empty{})
}

// List prints the alarms of req.OwnerID, the requester's by default, or every alarm when all is set.
func (s *Session) List(ctx context.Context, req alarm.ListRequest, all bool) error {
	req.OwnerID = s.ownerOr(req.OwnerID)
	if all {
		req.OwnerID = ""
	}

	alarms, err := s.client.ListAlarms(ctx, req)
	if err != nil {
		return err
	}

	return s.print(alarm.AlarmsResponse{Alarms: alarms})
}

// Get prints one alarm with its state.
func (s *Session) Get(ctx context.Context, id string) error {
	resp, err := s.client.GetAlarm(ctx, id)
	if err != nil {
		return err
	}

	return s.print(resp)
}

// Create creates an alarm, through the battle service when BattleID is set.
func (s *Session) Create(ctx context.Context, req alarm.CreateRequest) error {
	req.OwnerID = s.ownerOr(req.OwnerID)

	create := s.client.CreateAlarm
	if req.BattleID != "" {
		create = s.client.CreateBattleAlarm
	}

	resp, err := create(ctx, req)
	if err != nil {
		return err
	}

	return s.print(resp)
}

// Update applies a partial update.
func (s *Session) Update(ctx context.Context, req alarm.UpdateRequest) error {
	updated, err := s.client.UpdateAlarm(ctx, req)
	if err != nil {
		return err
	}

	return s.print(alarm.AlarmResponse{Alarm: updated})
}

// Delete removes an alarm owned by the requester.
func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteAlarm(ctx, id, s.requester); err != nil {
		return err
	}

	return s.print(alarm.Empty{})
}

// Toggle enables or disables an alarm.
func (s *Session) Toggle(ctx context.Context, id string, enabled bool) error {
	toggled, err := s.client.ToggleAlarm(ctx, id, enabled)
	if err != nil {
		return err
	}

	return s.print(alarm.AlarmResponse{Alarm: toggled})
}

// Dismiss ends the current occurrence.
func (s *Session) Dismiss(ctx context.Context, req alarm.DismissRequest) error {
	req.Requester = s.requester

	if err := s.client.DismissAlarm(ctx, req); err != nil {
		return err
	}

	return s.print(alarm.Empty{})
}

// Snooze postpones the current occurrence.
func (s *Session) Snooze(ctx context.Context, req alarm.SnoozeRequest) error {
	req.Requester = s.requester

	applied, err := s.client.SnoozeAlarm(ctx, req)
	if err != nil {
		return err
	}

	return s.print(alarm.SnoozeResponse{Applied: applied})
}

// Unlink detaches an alarm from its battle.
func (s *Session) Unlink(ctx context.Context, id string) error {
	if err := s.client.UnlinkFromBattle(ctx, id); err != nil {
		return err
	}

	return s.print(alarm.Empty{})
}

// Events prints the history of a partition.
func (s *Session) Events(ctx context.Context, ownerID string) error {
	events, err := s.client.ListEvents(ctx, s.ownerOr(ownerID))
	if err != nil {
		return err
	}

	return s.print(alarm.EventsResponse{Events: events})
}

// Stats prints the aggregated history of an alarm.
func (s *Session) Stats(ctx context.Context, id string) error {
	stats, err := s.client.EventStats(ctx, id, s.requester)
	if err != nil {
		return err
	}

	return s.print(alarm.StatsResponse{Stats: stats})
}

// DefaultRetryInterval is the delay before watch resubscribes after a failed stream.
const DefaultRetryInterval = 5 * time.Second

// Watch prints signals until ctx is canceled. With a positive retryInterval a
// failed or dropped stream is resubscribed after the interval; otherwise the
// stream error is returned.
func (s *Session) Watch(ctx context.Context, retryInterval time.Duration) error {
	ctx = logger.WithName(ctx, "alarm-watch")

	handle := func(signal alarm.SignalMessage) error {
		return s.print(signal)
	}

	err := s.client.WatchSignals(ctx, handle)
	if retryInterval <= 0 {
		return err
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		logger.WarnKV(ctx, "Signal stream ended, resubscribing", "error", err, "interval", retryInterval.String())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err = s.client.WatchSignals(ctx, handle)
		}
	}
}

func (s *Session) print(value any) error {
	message, err := alarm.Encode(value)
	if err != nil {
		return err
	}

	body, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(message)
	if err != nil {
		return fmt.Errorf("format response: %w", err)
	}

	if _, err = fmt.Fprintln(s.out, string(body)); err != nil {
		return fmt.Errorf("print response: %w", err)
	}

	return nil
}
