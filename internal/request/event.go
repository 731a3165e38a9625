package request

import "time"

// Event is a single analytics event. Events are buffered by the batcher and
// folded into one "events" request, at most ten per request.
type Event struct {
	Key          string                 `json:"key"`
	Count        int64                  `json:"count"`
	Sum          *float64               `json:"sum,omitempty"`
	Dur          *float64               `json:"dur,omitempty"`
	Segmentation map[string]interface{} `json:"segmentation,omitempty"`
	Timestamp    int64                  `json:"timestamp"`
	Hour         int                    `json:"hour"`
	DayOfWeek    int                    `json:"dow"`
}

// Stamp fills in the server-side-computed time fields and defaults the count.
func (e *Event) Stamp(now time.Time) {
	if e.Count <= 0 {
		e.Count = 1
	}
	e.Timestamp = now.Unix()
	e.Hour = now.Hour()
	e.DayOfWeek = int(now.Weekday())
}

// Float returns a pointer to v, for the optional Sum and Dur fields.
func Float(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v, for the optional SessionDuration field.
func Int64(v int64) *int64 {
	return &v
}
