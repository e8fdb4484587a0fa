//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-engine/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-engine/internal/config"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// Client wraps the AlarmService connection with typed helpers.
type Client struct {
	// conn is the underlying gRPC connection to the engine.
	conn grpc.ClientConnInterface
	// closer releases conn; nil for borrowed connections.
	closer io.Closer

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// token is sent as a bearer token when set.
	token string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithToken attaches a bearer token to every call.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the engine.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := newClient(opts...)

	dialOptions := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if client.token != "" {
		dialOptions = append(dialOptions, grpc.WithPerRPCCredentials(bearerToken(client.token)))
	}

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial alarm engine: %w", err)
	}

	client.conn = conn
	client.closer = conn

	return client, nil
}

// NewClient wraps an existing connection. Close leaves conn open.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	client := newClient(opts...)
	client.conn = conn

	return client
}

func newClient(opts ...Option) *Client {
	client := &Client{callTimeout: config.DefaultTimeout}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer.Close()
}

// LoadAlarms loads a partition into the engine working set.
func (c *Client) LoadAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	var resp alarm.AlarmsResponse
	if err := c.invoke(ctx, alarm.MethodLoadAlarms, alarm.OwnerRequest{OwnerID: ownerID}, &resp); err != nil {
		return nil, err
	}

	return resp.Alarms, nil
}

// SaveAlarms persists a partition.
func (c *Client) SaveAlarms(ctx context.Context, ownerID string) error {
	return c.invoke(ctx, alarm.MethodSaveAlarms, alarm.OwnerRequest{OwnerID: ownerID}, nil)
}

// ListAlarms lists the working set.
func (c *Client) ListAlarms(ctx context.Context, req alarm.ListRequest) ([]*domain.Alarm, error) {
	var resp alarm.AlarmsResponse
	if err := c.invoke(ctx, alarm.MethodListAlarms, req, &resp); err != nil {
		return nil, err
	}

	return resp.Alarms, nil
}

// GetAlarm returns one alarm with its lifecycle state.
func (c *Client) GetAlarm(ctx context.Context, id string) (*alarm.AlarmResponse, error) {
	resp := new(alarm.AlarmResponse)
	if err := c.invoke(ctx, alarm.MethodGetAlarm, alarm.AlarmRequest{ID: id}, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// CreateAlarm creates an alarm.
func (c *Client) CreateAlarm(ctx context.Context, req alarm.CreateRequest) (*alarm.AlarmResponse, error) {
	resp := new(alarm.AlarmResponse)
	if err := c.invoke(ctx, alarm.MethodCreateAlarm, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// CreateBattleAlarm creates an alarm through the battle service.
func (c *Client) CreateBattleAlarm(ctx context.Context, req alarm.CreateRequest) (*alarm.AlarmResponse, error) {
	resp := new(alarm.AlarmResponse)
	if err := c.invoke(ctx, alarm.MethodCreateBattleAlarm, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// UpdateAlarm applies a partial update.
func (c *Client) UpdateAlarm(ctx context.Context, req alarm.UpdateRequest) (*domain.Alarm, error) {
	var resp alarm.AlarmResponse
	if err := c.invoke(ctx, alarm.MethodUpdateAlarm, req, &resp); err != nil {
		return nil, err
	}

	return resp.Alarm, nil
}

// DeleteAlarm removes an alarm owned by requesterID.
func (c *Client) DeleteAlarm(ctx context.Context, id, requesterID string) error {
	return c.invoke(ctx, alarm.MethodDeleteAlarm, alarm.AlarmRequest{ID: id, Requester: requesterID}, nil)
}

// ToggleAlarm enables or disables an alarm.
func (c *Client) ToggleAlarm(ctx context.Context, id string, enabled bool) (*domain.Alarm, error) {
	var resp alarm.AlarmResponse
	if err := c.invoke(ctx, alarm.MethodToggleAlarm, alarm.ToggleRequest{ID: id, Enabled: enabled}, &resp); err != nil {
		return nil, err
	}

	return resp.Alarm, nil
}

// DismissAlarm ends the current occurrence.
func (c *Client) DismissAlarm(ctx context.Context, req alarm.DismissRequest) error {
	return c.invoke(ctx, alarm.MethodDismissAlarm, req, nil)
}

// SnoozeAlarm postpones the current occurrence and reports whether it applied.
func (c *Client) SnoozeAlarm(ctx context.Context, req alarm.SnoozeRequest) (bool, error) {
	var resp alarm.SnoozeResponse
	if err := c.invoke(ctx, alarm.MethodSnoozeAlarm, req, &resp); err != nil {
		return false, err
	}

	return resp.Applied, nil
}

// UnlinkFromBattle detaches an alarm from its battle.
func (c *Client) UnlinkFromBattle(ctx context.Context, id string) error {
	return c.invoke(ctx, alarm.MethodUnlinkFromBattle, alarm.AlarmRequest{ID: id}, nil)
}

// ListEvents returns the history of a partition.
func (c *Client) ListEvents(ctx context.Context, ownerID string) ([]domain.Event, error) {
	var resp alarm.EventsResponse
	if err := c.invoke(ctx, alarm.MethodListEvents, alarm.OwnerRequest{OwnerID: ownerID}, &resp); err != nil {
		return nil, err
	}

	return resp.Events, nil
}

// EventStats aggregates the history of an alarm.
func (c *Client) EventStats(ctx context.Context, id, requesterID string) (domain.Stats, error) {
	var resp alarm.StatsResponse
	if err := c.invoke(ctx, alarm.MethodEventStats, alarm.AlarmRequest{ID: id, Requester: requesterID}, &resp); err != nil {
		return domain.Stats{}, err
	}

	return resp.Stats, nil
}

// WatchSignals streams engine signals to handle until ctx is done,
// the stream ends or handle returns an error.
func (c *Client) WatchSignals(ctx context.Context, handle func(alarm.SignalMessage) error) error {
	stream, err := c.conn.NewStream(ctx, &alarm.ServiceDesc.Streams[0], alarm.FullMethod(alarm.MethodWatchSignals))
	if err != nil {
		return fmt.Errorf("watch signals: %w", err)
	}

	request, err := alarm.Encode(alarm.Empty{})
	if err != nil {
		return err
	}

	if err = stream.SendMsg(request); err != nil {
		return fmt.Errorf("watch signals: %w", err)
	}

	if err = stream.CloseSend(); err != nil {
		return fmt.Errorf("watch signals: %w", err)
	}

	for {
		reply := new(structpb.Struct)
		if err = stream.RecvMsg(reply); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("watch signals: %w", err)
		}

		var signal alarm.SignalMessage
		if err = alarm.Decode(reply, &signal); err != nil {
			return err
		}

		if err = handle(signal); err != nil {
			return err
		}
	}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	message, err := alarm.Encode(req)
	if err != nil {
		return err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply := new(structpb.Struct)
	if err = c.conn.Invoke(callCtx, alarm.FullMethod(method), message, reply); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	if resp == nil {
		return nil
	}

	return alarm.Decode(reply, resp)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// bearerToken sends a static JWT in the authorization header.
type bearerToken string

func (t bearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{alarm.AuthorizationHeader: "Bearer " + string(t)}, nil
}

// RequireTransportSecurity is false because the engine listens without TLS.
func (bearerToken) RequireTransportSecurity() bool {
	return false
}
