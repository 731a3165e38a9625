package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimogit/beacon/internal/request"
)

func TestRequestDetail(t *testing.T) {
	tests := []struct {
		name     string
		req      *request.Request
		expected string
	}{
		{
			name:     "events batch",
			req:      &request.Request{Events: []request.Event{{Key: "a"}, {Key: "b"}}},
			expected: "2 event(s)",
		},
		{
			name:     "end session with duration",
			req:      &request.Request{EndSession: 1, SessionDuration: request.Int64(42)},
			expected: "42s",
		},
		{
			name:     "campaign conversion",
			req:      &request.Request{CampaignID: "cmp-7"},
			expected: "cmp-7",
		},
		{
			name:     "device merge",
			req:      &request.Request{OldDeviceID: "dev-old"},
			expected: "from dev-old",
		},
		{
			name:     "begin session has no detail",
			req:      &request.Request{BeginSession: 1},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, requestDetail(tt.req))
		})
	}
}
