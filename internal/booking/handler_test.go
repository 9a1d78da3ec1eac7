package booking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpfade/booking-platform/internal/availability"
	"github.com/sharpfade/booking-platform/internal/catalog"
	"github.com/sharpfade/booking-platform/internal/ledger"
	"github.com/sharpfade/booking-platform/internal/session"
	"github.com/sharpfade/booking-platform/pkg/civil"
)

// 2026-09-07 is a Monday; the fixture clock reads 08:00 that morning.
var testNow = time.Date(2026, time.September, 7, 8, 0, 0, 0, time.UTC)

type fixture struct {
	srv    *httptest.Server
	ledger *ledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }

	cat := catalog.Seed()
	led := ledger.New(nil)
	for _, b := range ledger.SeedEntries(civil.DateOf(testNow)) {
		led.Append(b)
	}
	eng := availability.NewEngine(availability.DefaultRules(), cat, nil)
	mgr := session.NewManagerWithClock(cat, led, eng, nil, nil, nil, clock)
	h := NewHandlerWithClock(cat, led, eng, mgr, nil, clock)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, ledger: led}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestListServices(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/services", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	services := body["services"].([]any)
	require.Len(t, services, 4)
	first := services[0].(map[string]any)
	assert.Equal(t, "haircut", first["id"])
	assert.Equal(t, float64(3000), first["price_cents"])
}

func TestListProvidersWithHint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/providers", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	providers := body["providers"].([]any)
	require.Len(t, providers, 3)
	_, hasHint := providers[0].(map[string]any)["available"]
	assert.False(t, hasHint, "no hint without a date")

	// Monday is open for everyone.
	resp, body = f.do(t, http.MethodGet, "/providers?date=2026-09-07", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, p := range body["providers"].([]any) {
		assert.Equal(t, true, p.(map[string]any)["available"])
	}

	// Saturday hints closed for everyone.
	resp, body = f.do(t, http.MethodGet, "/providers?date=2026-09-12", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, p := range body["providers"].([]any) {
		assert.Equal(t, false, p.(map[string]any)["available"])
	}

	resp, _ = f.do(t, http.MethodGet, "/providers?date=next-tuesday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProviderServices(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/providers/ben/services", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	services := body["services"].([]any)
	require.Len(t, services, 4)
	for _, raw := range services {
		m := raw.(map[string]any)
		svc := m["service"].(map[string]any)
		if svc["id"] == "shave" {
			assert.Equal(t, false, m["compatible"])
		}
		if svc["id"] == "haircut" {
			assert.Equal(t, true, m["compatible"])
		}
	}

	resp, body = f.do(t, http.MethodGet, "/providers/dave/services", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestGetSlots(t *testing.T) {
	f := newFixture(t)

	// Albert has 10:00 and 10:45 seeded as booked today. On the
	// 30-minute trim grid from 09:00 the 10:00 entry lands exactly on
	// a slot start; 10:45 falls between slots and books nothing.
	resp, body := f.do(t, http.MethodGet, "/slots?providerId=albert&serviceId=beard-trim&date=2026-09-07", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	slots := body["slots"].([]any)
	require.Len(t, slots, 16)

	statuses := map[string]string{}
	for _, raw := range slots {
		m := raw.(map[string]any)
		statuses[m["start"].(string)] = m["status"].(string)
	}
	assert.Equal(t, "booked", statuses["10:00"])
	assert.Equal(t, "available", statuses["10:30"])
	assert.Equal(t, "available", statuses["16:30"])

	resp, body = f.do(t, http.MethodGet, "/slots?providerId=albert&serviceId=haircut&date=2026-09-12", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "policy_violation", body["kind"])

	resp, _ = f.do(t, http.MethodGet, "/slots?providerId=nobody&serviceId=haircut&date=2026-09-07", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/slots?providerId=albert&serviceId=unknown&date=2026-09-07", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWizardFlow(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	resp, body := f.do(t, http.MethodPut, "/sessions/"+id+"/service", `{"service_id":"haircut"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "empty", body["state"])

	resp, body = f.do(t, http.MethodPut, "/sessions/"+id+"/provider", `{"provider_id":"charles"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "service_provider_chosen", body["state"])

	resp, body = f.do(t, http.MethodPut, "/sessions/"+id+"/date", `{"date":"2026-09-08"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "date_chosen", body["state"])

	resp, body = f.do(t, http.MethodGet, "/sessions/"+id+"/slots", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["slots"])

	resp, body = f.do(t, http.MethodPost, "/sessions/"+id+"/slot", `{"time":"11:45"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "slot_chosen", body["state"])
	assert.Equal(t, "11:45", body["slot"])

	resp, body = f.do(t, http.MethodPost, "/sessions/"+id+"/commit", `{"customer_name":"Walter Finch"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Charles", body["provider_name"])
	assert.Equal(t, "Standard Haircut", body["service_name"])
	assert.Equal(t, "2026-09-08", body["date"])
	assert.Equal(t, "11:45", body["start_time"])
	assert.Equal(t, "12:30", body["end_time"])
	assert.Equal(t, float64(3000), body["price_cents"])
	assert.Equal(t, "Walter Finch", body["customer_name"])
	assert.NotEmpty(t, body["booking_id"])

	// The committed slot is now in the ledger.
	date, err := civil.ParseDate("2026-09-08")
	require.NoError(t, err)
	start, err := civil.ParseTimeOfDay("11:45")
	require.NoError(t, err)
	assert.True(t, f.ledger.Has("charles", date, start))

	// The session was cleared on commit.
	resp, _ = f.do(t, http.MethodGet, "/sessions/"+id+"/", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectSlotConflictStatus(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	f.do(t, http.MethodPut, "/sessions/"+id+"/service", `{"service_id":"shave"}`)
	f.do(t, http.MethodPut, "/sessions/"+id+"/provider", `{"provider_id":"ben"}`)
	f.do(t, http.MethodPut, "/sessions/"+id+"/date", `{"date":"2026-09-09"}`)

	f.ledger.Append(ledger.Booking{
		ProviderID: "ben",
		Date:       civil.Date{Year: 2026, Month: time.September, Day: 9},
		StartTime:  civil.TimeOfDay(13 * 60),
	})

	resp, body := f.do(t, http.MethodPost, "/sessions/"+id+"/slot", `{"time":"13:00"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["kind"])
}

func TestUndoEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	f.do(t, http.MethodPut, "/sessions/"+id+"/service", `{"service_id":"beard-trim"}`)
	f.do(t, http.MethodPut, "/sessions/"+id+"/provider", `{"provider_id":"charles"}`)
	f.do(t, http.MethodPut, "/sessions/"+id+"/date", `{"date":"2026-09-08"}`)
	f.do(t, http.MethodPost, "/sessions/"+id+"/slot", `{"time":"11:00"}`)
	f.do(t, http.MethodPost, "/sessions/"+id+"/slot", `{"time":"12:30"}`)

	resp, body := f.do(t, http.MethodPost, "/sessions/"+id+"/undo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "11:00", body["restored"])

	resp, body = f.do(t, http.MethodPost, "/sessions/"+id+"/undo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["restored"])
	assert.Equal(t, "date_chosen", body["session"].(map[string]any)["state"])
}

func TestCommitValidationStatus(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	f.do(t, http.MethodPut, "/sessions/"+id+"/service", `{"service_id":"haircut"}`)
	f.do(t, http.MethodPut, "/sessions/"+id+"/provider", `{"provider_id":"albert"}`)
	f.do(t, http.MethodPut, "/sessions/"+id+"/date", `{"date":"2026-09-08"}`)
	f.do(t, http.MethodPost, "/sessions/"+id+"/slot", `{"time":"12:00"}`)

	resp, body := f.do(t, http.MethodPost, "/sessions/"+id+"/commit", `{"customer_name":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["kind"])
	assert.Contains(t, body["error"], "customer_name")

	// Session intact; commit succeeds once the name is supplied.
	resp, _ = f.do(t, http.MethodPost, "/sessions/"+id+"/commit", `{"customer_name":"Walter Finch"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/sessions/ghost/", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestBadRequestBodies(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	for _, tc := range []struct {
		path, body string
	}{
		{"/sessions/" + id + "/service", `not json`},
		{"/sessions/" + id + "/date", `{"date":"tomorrow"}`},
		{"/sessions/" + id + "/slot", `{"time":"quarter past"}`},
	} {
		method := http.MethodPut
		if tc.path == "/sessions/"+id+"/slot" {
			method = http.MethodPost
		}
		resp, _ := f.do(t, method, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("%s %s", method, tc.path))
	}
}
