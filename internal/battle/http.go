package battle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// HTTPAdapter talks to the battle service over its JSON API.
type HTTPAdapter struct {
	client *resty.Client
}

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected battle service status")

type createBody struct {
	ID         string               `json:"id"`
	OwnerID    string               `json:"owner_id"`
	Time       string               `json:"time"`
	Label      string               `json:"label"`
	Days       []time.Weekday       `json:"days"`
	VoiceMood  domain.VoiceMood     `json:"voice_mood"`
	Sound      string               `json:"sound,omitempty"`
	Difficulty domain.Difficulty    `json:"difficulty,omitempty"`
	Snooze     *domain.SnoozePolicy `json:"snooze,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

type dismissalBody struct {
	Event     domain.Event  `json:"event"`
	Requester string        `json:"requester"`
	At        time.Time     `json:"at"`
	Method    domain.Method `json:"method"`
}

type snoozeBody struct {
	Event     domain.Event `json:"event"`
	Requester string       `json:"requester"`
	Minutes   int          `json:"minutes"`
}

// NewHTTPAdapter creates a client for the service at baseURL.
func NewHTTPAdapter(baseURL string, timeout time.Duration) *HTTPAdapter {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPAdapter{client: client}
}

// CreateBattleAlarm asks the service to build the battle alarm record.
func (a *HTTPAdapter) CreateBattleAlarm(ctx context.Context, req Request) (*domain.Alarm, error) {
	body := createBody{
		ID:         req.ID,
		OwnerID:    req.Draft.OwnerID,
		Time:       req.Draft.Time,
		Label:      req.Draft.Label,
		Days:       req.Draft.Days,
		VoiceMood:  req.Draft.VoiceMood,
		Sound:      req.Draft.Sound,
		Difficulty: req.Draft.Difficulty,
		Snooze:     req.Draft.Snooze,
		CreatedAt:  req.Now,
	}

	var result domain.Alarm

	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("battleID", req.BattleID).
		SetBody(body).
		SetResult(&result).
		Post("/battles/{battleID}/alarms")
	if err = checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("failed to create battle alarm: %w", err)
	}

	return &result, nil
}

// HandleAlarmTrigger reports a triggered battle alarm.
func (a *HTTPAdapter) HandleAlarmTrigger(ctx context.Context, alarm *domain.Alarm) error {
	return a.post(ctx, alarm.ID, "trigger", alarm)
}

// HandleAlarmDismissal reports a dismissed battle alarm.
func (a *HTTPAdapter) HandleAlarmDismissal(
	ctx context.Context,
	event domain.Event,
	requester string,
	at time.Time,
	method domain.Method,
) error {
	return a.post(ctx, event.AlarmID, "dismissal", dismissalBody{
		Event:     event,
		Requester: requester,
		At:        at,
		Method:    method,
	})
}

// HandleAlarmSnooze reports a snoozed battle alarm.
func (a *HTTPAdapter) HandleAlarmSnooze(ctx context.Context, event domain.Event, requester string, minutes int) error {
	return a.post(ctx, event.AlarmID, "snooze", snoozeBody{
		Event:     event,
		Requester: requester,
		Minutes:   minutes,
	})
}

// UnlinkAlarmFromBattle tells the service the alarm left its battle.
func (a *HTTPAdapter) UnlinkAlarmFromBattle(ctx context.Context, alarmID string) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("alarmID", alarmID).
		Delete("/battles/alarms/{alarmID}")
	if err = checkResponse(resp, err); err != nil {
		return fmt.Errorf("failed to unlink alarm %s: %w", alarmID, err)
	}

	return nil
}

func (a *HTTPAdapter) post(ctx context.Context, alarmID, hook string, body any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"alarmID": alarmID,
			"hook":    hook,
		}).
		SetBody(body).
		Post("/battles/alarms/{alarmID}/{hook}")
	if err = checkResponse(resp, err); err != nil {
		return fmt.Errorf("failed to report %s of alarm %s: %w", hook, alarmID, err)
	}

	return nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}

	if resp.IsError() {
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}

	return nil
}
