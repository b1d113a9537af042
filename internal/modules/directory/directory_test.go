package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetclaim/internal/types"
)

type stubSource struct {
	drivers, usersDrivers   []json.RawMessage
	cars, usersCars         []json.RawMessage
	driversErr, usersDrvErr error
	carsErr, usersCarsErr   error
	orgDrivers, orgCars     []json.RawMessage
	usersDriverCalls        int
}

func (s *stubSource) AvailableDrivers(context.Context) ([]json.RawMessage, error) {
	return s.drivers, s.driversErr
}

func (s *stubSource) UsersAvailableDrivers(context.Context) ([]json.RawMessage, error) {
	s.usersDriverCalls++
	return s.usersDrivers, s.usersDrvErr
}

func (s *stubSource) AvailableCars(context.Context) ([]json.RawMessage, error) {
	return s.cars, s.carsErr
}

func (s *stubSource) UsersAvailableCars(context.Context) ([]json.RawMessage, error) {
	return s.usersCars, s.usersCarsErr
}

func (s *stubSource) OrganizationDrivers(context.Context, types.ID) ([]json.RawMessage, error) {
	return s.orgDrivers, nil
}

func (s *stubSource) OrganizationCars(context.Context, types.ID) ([]json.RawMessage, error) {
	return s.orgCars, nil
}

func (s *stubSource) DriverAvailability(context.Context, types.ID) (bool, error) { return true, nil }
func (s *stubSource) CarAvailability(context.Context, types.ID) (bool, error)    { return true, nil }

func raws(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestListAvailableDrivers_FilterCorrectness(t *testing.T) {
	src := &stubSource{drivers: raws(
		`{"id": 1, "status": "ONLINE", "is_available": true, "current_assignment": null}`,
		`{"id": 2, "status": "ONLINE", "is_available": true, "current_assignment": "A1"}`,
	)}
	got, err := NewService(src, quietLogger()).ListAvailableDrivers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.ID("1"), got[0].ID)
}

func TestListAvailableDrivers_StatusSet(t *testing.T) {
	src := &stubSource{drivers: raws(
		`{"driver_id": "d1", "driver_status": "online"}`,
		`{"driver_id": "d2", "driver_status": "PROCESSING"}`,
		`{"driver_id": "d3", "status": "DRIVING"}`,
		`{"driver_id": "d4", "status": "BLOCKED"}`,
		`{"driver_id": "d5", "status": "OFFLINE"}`,
		`{"driver_id": "d6", "status": "ONLINE", "is_available": false}`,
		`{"driver_id": "d7", "status": "ONLINE", "current_assignment": {"id": 9}}`,
		`{"driver_id": "d8", "status": "ONLINE", "current_assignment": 12}`,
	)}
	got, err := NewService(src, quietLogger()).ListAvailableDrivers(context.Background())
	require.NoError(t, err)
	ids := make([]types.ID, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []types.ID{"d1", "d2"}, ids)
}

func TestListAvailableCars_IncludesActive(t *testing.T) {
	src := &stubSource{cars: raws(
		`{"car_id": "c1", "status": "ACTIVE", "owner_id": "o1"}`,
		`{"car_id": "c2", "car_status": "online"}`,
		`{"car_id": "c3", "status": "OFFLINE"}`,
	)}
	got, err := NewService(src, quietLogger()).ListAvailableCars(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.ID("o1"), got[0].OwnerID)
	assert.Equal(t, CarOnline, got[1].Status)
}

func TestListAvailable_FallbackChainTermination(t *testing.T) {
	src := &stubSource{
		driversErr:   errors.New("connection reset"),
		usersDrivers: raws(),
		cars:         raws(`{"car_id": "c1", "status": "ONLINE"}`),
	}
	svc := NewService(src, quietLogger())

	drivers, err := svc.ListAvailableDrivers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drivers)
	assert.NotNil(t, drivers)

	cars, err := svc.ListAvailableCars(context.Background())
	require.NoError(t, err)
	assert.Len(t, cars, 1)
}

func TestListAvailable_PrimaryEmptyDoesNotFallThrough(t *testing.T) {
	src := &stubSource{drivers: raws(), usersDrivers: raws(`{"id": 1, "status": "ONLINE"}`)}
	got, err := NewService(src, quietLogger()).ListAvailableDrivers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, src.usersDriverCalls)
}

func TestListAvailable_BothFail(t *testing.T) {
	primary := errors.New("primary down")
	secondary := errors.New("secondary down")
	src := &stubSource{driversErr: primary, usersDrvErr: secondary}
	_, err := NewService(src, quietLogger()).ListAvailableDrivers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, primary)
	assert.ErrorIs(t, err, secondary)
}

func TestListAvailable_SkipsMalformedRecords(t *testing.T) {
	src := &stubSource{drivers: raws(`"nope"`, `{"id": 3, "status": "ONLINE", "is_available": "yes-ish"}`, `{"id": 4, "status": "ONLINE"}`)}
	got, err := NewService(src, quietLogger()).ListAvailableDrivers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.ID("4"), got[0].ID)
}

func TestOrganizationDrivers_Unfiltered(t *testing.T) {
	src := &stubSource{orgDrivers: raws(
		`{"id": "d1", "status": "OFFLINE", "organization": {"id": 5}}`,
		`{"id": "d2", "status": "ONLINE", "current_assignment": "A1"}`,
	)}
	got, err := NewService(src, quietLogger()).OrganizationDrivers(context.Background(), "5")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.ID("5"), got[0].OwnerID)
	assert.False(t, got[1].Claimable())
}

func TestNormalizeDriver_Fields(t *testing.T) {
	d, err := NormalizeDriver(json.RawMessage(`{
		"id": 7, "owner": "o1", "driver_status": "processing", "status": "ONLINE",
		"first_name": "Asha", "last_name": "Rao", "phone_number": "99", "available": "true"
	}`))
	require.NoError(t, err)
	assert.Equal(t, types.ID("7"), d.ID)
	assert.Equal(t, DriverProcessing, d.Status)
	assert.Equal(t, "Asha Rao", d.Name)
	assert.Equal(t, "99", d.Phone)
	require.NotNil(t, d.IsAvailable)
	assert.True(t, *d.IsAvailable)
}
