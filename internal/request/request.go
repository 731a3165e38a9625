// Package request defines the outbound payloads destined for the collector
// and their single wire encoding.
package request

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// SDK identification sent with every request.
const (
	SDKName    = "go-beacon"
	SDKVersion = "1.0.0"
)

// Geo holds optional location metadata copied into every request when the
// application has configured it.
type Geo struct {
	CountryCode string
	City        string
	IPAddress   string
}

// Metrics is the snapshot merged into begin_session requests. Keys follow
// the collector's underscore convention (_os, _os_version, _app_version).
type Metrics map[string]string

// UserDetails carries the predefined user profile fields plus a free-form
// custom map. The custom map doubles as the carrier for op-coded property
// mutations ($inc, $push, ...) on save.
type UserDetails struct {
	Name         string                 `json:"name,omitempty"`
	Username     string                 `json:"username,omitempty"`
	Email        string                 `json:"email,omitempty"`
	Organization string                 `json:"organization,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Picture      string                 `json:"picture,omitempty"`
	Gender       string                 `json:"gender,omitempty"`
	BirthYear    int                    `json:"byear,omitempty"`
	Custom       map[string]interface{} `json:"custom,omitempty"`
}

// Crash is the payload of a crash report request.
type Crash struct {
	OS         string                 `json:"_os,omitempty"`
	OSVersion  string                 `json:"_os_version,omitempty"`
	AppVersion string                 `json:"_app_version,omitempty"`
	Name       string                 `json:"_name,omitempty"`
	Error      string                 `json:"_error"`
	Nonfatal   bool                   `json:"_nonfatal"`
	Run        int64                  `json:"_run,omitempty"`
	Custom     map[string]interface{} `json:"_custom,omitempty"`
}

// Request is one fully-enriched outbound payload. Exactly one payload field
// group (session, events, user details, crash, campaign) is set per request;
// the enrichment fields are filled at enqueue time and never change after.
type Request struct {
	AppKey    string `json:"app_key,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Hour      int    `json:"hour"`
	DayOfWeek int    `json:"dow"`

	BeginSession    int    `json:"begin_session,omitempty"`
	SessionDuration *int64 `json:"session_duration,omitempty"`
	EndSession      int    `json:"end_session,omitempty"`

	Metrics     Metrics      `json:"metrics,omitempty"`
	Events      []Event      `json:"events,omitempty"`
	UserDetails *UserDetails `json:"user_details,omitempty"`
	Crash       *Crash       `json:"crash,omitempty"`

	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignUser string `json:"campaign_user,omitempty"`
	OldDeviceID  string `json:"old_device_id,omitempty"`

	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`

	SDKName    string `json:"sdk_name,omitempty"`
	SDKVersion string `json:"sdk_version,omitempty"`
}

// Enrich stamps identity, time and geo fields onto the request. Called once,
// when the request enters the queue.
func (r *Request) Enrich(appKey, deviceID string, now time.Time, geo Geo) {
	r.AppKey = appKey
	r.DeviceID = deviceID
	r.Timestamp = now.Unix()
	r.Hour = now.Hour()
	r.DayOfWeek = int(now.Weekday())
	r.SDKName = SDKName
	r.SDKVersion = SDKVersion

	if geo.CountryCode != "" {
		r.CountryCode = geo.CountryCode
	}
	if geo.City != "" {
		r.City = geo.City
	}
	if geo.IPAddress != "" {
		r.IPAddress = geo.IPAddress
	}
}

// Kind names the payload carried by the request, for logs and tooling.
func (r *Request) Kind() string {
	switch {
	case r.BeginSession != 0:
		return "begin_session"
	case r.SessionDuration != nil:
		return "session_duration"
	case r.EndSession != 0:
		return "end_session"
	case len(r.Events) > 0:
		return "events"
	case r.UserDetails != nil:
		return "user_details"
	case r.Crash != nil:
		return "crash"
	case r.CampaignID != "":
		return "campaign"
	case r.OldDeviceID != "":
		return "device_merge"
	default:
		return "unknown"
	}
}

// Values encodes the request for the wire: every field becomes one query
// parameter, sub-structures are JSON-encoded in place.
func (r *Request) Values() url.Values {
	v := url.Values{}

	v.Set("app_key", r.AppKey)
	v.Set("device_id", r.DeviceID)
	v.Set("timestamp", strconv.FormatInt(r.Timestamp, 10))
	v.Set("hour", strconv.Itoa(r.Hour))
	v.Set("dow", strconv.Itoa(r.DayOfWeek))
	v.Set("sdk_name", r.SDKName)
	v.Set("sdk_version", r.SDKVersion)

	if r.BeginSession != 0 {
		v.Set("begin_session", strconv.Itoa(r.BeginSession))
	}
	if r.SessionDuration != nil {
		v.Set("session_duration", strconv.FormatInt(*r.SessionDuration, 10))
	}
	if r.EndSession != 0 {
		v.Set("end_session", strconv.Itoa(r.EndSession))
	}

	setJSON(v, "metrics", r.Metrics, len(r.Metrics) > 0)
	setJSON(v, "events", r.Events, len(r.Events) > 0)
	setJSON(v, "user_details", r.UserDetails, r.UserDetails != nil)
	setJSON(v, "crash", r.Crash, r.Crash != nil)

	if r.CampaignID != "" {
		v.Set("campaign_id", r.CampaignID)
	}
	if r.CampaignUser != "" {
		v.Set("campaign_user", r.CampaignUser)
	}
	if r.OldDeviceID != "" {
		v.Set("old_device_id", r.OldDeviceID)
	}
	if r.CountryCode != "" {
		v.Set("country_code", r.CountryCode)
	}
	if r.City != "" {
		v.Set("city", r.City)
	}
	if r.IPAddress != "" {
		v.Set("ip_address", r.IPAddress)
	}

	return v
}

func setJSON(v url.Values, key string, payload interface{}, present bool) {
	if !present {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain data structs; a marshal failure here means a
		// caller smuggled in an unmarshalable segmentation value. Drop the
		// field rather than the whole request.
		return
	}
	v.Set(key, string(data))
}
