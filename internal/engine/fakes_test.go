package engine

import (
	"context"
	"errors"
	"time"

	"smartfarm/internal/models"
)

type fakeTelemetry struct {
	snapshots map[string]*models.SensorSnapshot
	stale     map[string]bool
	panicOn   string
}

func (f *fakeTelemetry) LatestSensorData(_ context.Context, deviceID string) (*models.SensorSnapshot, error) {
	return f.snapshots[deviceID], nil
}

func (f *fakeTelemetry) HasRecentData(_ context.Context, deviceID string, _ time.Duration) (bool, error) {
	if deviceID == f.panicOn {
		panic("telemetry store exploded")
	}
	if f.stale[deviceID] {
		return false, nil
	}
	_, ok := f.snapshots[deviceID]
	return ok, nil
}

type sentCommand struct {
	deviceID string
	action   string
	params   map[string]any
}

type fakeDevices struct {
	statuses map[string]string
	commands []sentCommand
	sendErr  error
}

func (f *fakeDevices) DeviceStatus(_ context.Context, deviceID string) (string, error) {
	status, ok := f.statuses[deviceID]
	if !ok {
		return "", errors.New("device not found")
	}
	return status, nil
}

func (f *fakeDevices) SendCommand(_ context.Context, deviceID, action string, params map[string]any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.commands = append(f.commands, sentCommand{deviceID: deviceID, action: action, params: params})
	return nil
}

type fakeWeather struct {
	byFarm map[int64]*models.Weather
}

func (f *fakeWeather) CurrentWeather(_ context.Context, farmID int64) (*models.Weather, error) {
	return f.byFarm[farmID], nil
}

type publishedAlert struct {
	farmID  int64
	payload map[string]any
}

type fakeAlerts struct {
	published []publishedAlert
	err       error
}

func (f *fakeAlerts) PublishFarmAlert(_ context.Context, farmID int64, payload map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedAlert{farmID: farmID, payload: payload})
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

type fakeStore struct {
	rules       []models.Rule
	farms       map[int64]*models.Farm
	entries     []models.ExecutionLogEntry
	statUpdates []int64
	recordErr   error
}

func (f *fakeStore) EnabledRules(_ context.Context) ([]models.Rule, error) {
	var enabled []models.Rule
	for _, r := range f.rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

func (f *fakeStore) EnabledRulesForFarm(ctx context.Context, farmID int64) ([]models.Rule, error) {
	all, _ := f.EnabledRules(ctx)
	var scoped []models.Rule
	for _, r := range all {
		if r.FarmID == farmID {
			scoped = append(scoped, r)
		}
	}
	return scoped, nil
}

func (f *fakeStore) RuleByID(_ context.Context, ruleID int64) (*models.Rule, error) {
	for i := range f.rules {
		if f.rules[i].ID == ruleID {
			rule := f.rules[i]
			return &rule, nil
		}
	}
	return nil, errors.New("rule not found")
}

func (f *fakeStore) FarmByID(_ context.Context, farmID int64) (*models.Farm, error) {
	farm, ok := f.farms[farmID]
	if !ok {
		return nil, errors.New("farm not found")
	}
	return farm, nil
}

func (f *fakeStore) RecordExecution(_ context.Context, entry *models.ExecutionLogEntry, updateStats bool) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.entries = append(f.entries, *entry)
	if updateStats {
		f.statUpdates = append(f.statUpdates, entry.RuleID)
	}
	return nil
}

// newTestEngine wires an engine over empty fakes; tests replace individual
// collaborators as needed.
func newTestEngine() (*Engine, *fakeStore, *fakeTelemetry, *fakeDevices, *fakeWeather, *fakeAlerts, *fakeEmail) {
	store := &fakeStore{farms: map[int64]*models.Farm{}}
	telemetry := &fakeTelemetry{snapshots: map[string]*models.SensorSnapshot{}, stale: map[string]bool{}}
	devices := &fakeDevices{statuses: map[string]string{}}
	weather := &fakeWeather{byFarm: map[int64]*models.Weather{}}
	alerts := &fakeAlerts{}
	email := &fakeEmail{}
	eng := New(store, telemetry, devices, weather, alerts, email)
	return eng, store, telemetry, devices, weather, alerts, email
}

func ptrFloat(v float64) *float64 { return &v }

func ptrInt(v int) *int { return &v }
