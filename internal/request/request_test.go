package request

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)

	r := &Request{BeginSession: 1}
	r.Enrich("key-1", "dev-1", now, Geo{CountryCode: "DE", City: "Berlin"})

	assert.Equal(t, "key-1", r.AppKey)
	assert.Equal(t, "dev-1", r.DeviceID)
	assert.Equal(t, now.Unix(), r.Timestamp)
	assert.Equal(t, 15, r.Hour)
	assert.Equal(t, int(time.Thursday), r.DayOfWeek)
	assert.Equal(t, "DE", r.CountryCode)
	assert.Equal(t, "Berlin", r.City)
	assert.Empty(t, r.IPAddress)
	assert.Equal(t, SDKName, r.SDKName)
}

func TestKind(t *testing.T) {
	dur := int64(42)

	tests := []struct {
		name string
		req  Request
		kind string
	}{
		{"begin session", Request{BeginSession: 1}, "begin_session"},
		{"session duration", Request{SessionDuration: &dur}, "session_duration"},
		{"end session", Request{EndSession: 1}, "end_session"},
		{"events", Request{Events: []Event{{Key: "click"}}}, "events"},
		{"user details", Request{UserDetails: &UserDetails{Name: "x"}}, "user_details"},
		{"crash", Request{Crash: &Crash{Error: "boom"}}, "crash"},
		{"campaign", Request{CampaignID: "cmp"}, "campaign"},
		{"device merge", Request{OldDeviceID: "old"}, "device_merge"},
		{"empty", Request{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.req.Kind())
		})
	}
}

func TestValues(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)

	ev := Event{Key: "purchase", Sum: Float(9.99)}
	ev.Stamp(now)

	r := &Request{Events: []Event{ev}}
	r.Enrich("key-1", "dev-1", now, Geo{})

	v := r.Values()
	assert.Equal(t, "key-1", v.Get("app_key"))
	assert.Equal(t, "dev-1", v.Get("device_id"))
	assert.Equal(t, "15", v.Get("hour"))
	assert.Empty(t, v.Get("begin_session"))
	assert.Empty(t, v.Get("country_code"))

	var decoded []Event
	require.NoError(t, json.Unmarshal([]byte(v.Get("events")), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "purchase", decoded[0].Key)
	assert.Equal(t, int64(1), decoded[0].Count)
	require.NotNil(t, decoded[0].Sum)
	assert.Equal(t, 9.99, *decoded[0].Sum)
}

func TestValuesSessionFields(t *testing.T) {
	r := &Request{SessionDuration: Int64(61)}
	r.Enrich("key-1", "dev-1", time.Now(), Geo{})

	v := r.Values()
	assert.Equal(t, "61", v.Get("session_duration"))
	assert.Empty(t, v.Get("events"))
}

func TestEventStampDefaultsCount(t *testing.T) {
	e := Event{Key: "open"}
	e.Stamp(time.Now())
	assert.Equal(t, int64(1), e.Count)

	e = Event{Key: "open", Count: 3}
	e.Stamp(time.Now())
	assert.Equal(t, int64(3), e.Count)
}

func TestRequestJSONRoundTrip(t *testing.T) {
	r := &Request{BeginSession: 1, Metrics: Metrics{"_os": "linux"}}
	r.Enrich("key-1", "dev-1", time.Now(), Geo{IPAddress: "10.0.0.1"})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Request
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *r, back)
}
