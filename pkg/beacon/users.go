package beacon

import (
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
)

// UserDetails is the predefined user profile sent by SetUserDetails.
type UserDetails struct {
	Name         string
	Username     string
	Email        string
	Organization string
	Phone        string
	Picture      string
	Gender       string
	BirthYear    int
	Custom       map[string]interface{}
}

// SetUserDetails queues a one-shot user_details request with the given
// profile.
func (c *Client) SetUserDetails(details UserDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}

	c.enqueueLocked(&request.Request{UserDetails: &request.UserDetails{
		Name:         details.Name,
		Username:     details.Username,
		Email:        details.Email,
		Organization: details.Organization,
		Phone:        details.Phone,
		Picture:      details.Picture,
		Gender:       details.Gender,
		BirthYear:    details.BirthYear,
		Custom:       details.Custom,
	}})
}

// Custom user property mutations. Each call accumulates into an in-memory
// patch; nothing is queued until SaveUserProperties. Within one patch, later
// calls of the same op merge (increments add up, pushes append); a differing
// op replaces the pending one for that key.

// SetUserProperty sets a custom property to a value.
func (c *Client) SetUserProperty(key string, value interface{}) {
	c.patchProperty(key, "", value)
}

// SetUserPropertyOnce sets a custom property only if it has no value yet.
func (c *Client) SetUserPropertyOnce(key string, value interface{}) {
	c.patchProperty(key, "$setOnce", value)
}

// IncUserProperty increments a numeric property.
func (c *Client) IncUserProperty(key string, by float64) {
	c.accumulateProperty(key, "$inc", by, func(prev, v float64) float64 { return prev + v })
}

// MulUserProperty multiplies a numeric property.
func (c *Client) MulUserProperty(key string, by float64) {
	c.accumulateProperty(key, "$mul", by, func(prev, v float64) float64 { return prev * v })
}

// MaxUserProperty raises a numeric property to at least the given value.
func (c *Client) MaxUserProperty(key string, value float64) {
	c.accumulateProperty(key, "$max", value, func(prev, v float64) float64 {
		if prev > v {
			return prev
		}
		return v
	})
}

// MinUserProperty lowers a numeric property to at most the given value.
func (c *Client) MinUserProperty(key string, value float64) {
	c.accumulateProperty(key, "$min", value, func(prev, v float64) float64 {
		if prev < v {
			return prev
		}
		return v
	})
}

// PushUserProperty appends a value to a list property.
func (c *Client) PushUserProperty(key string, value interface{}) {
	c.appendProperty(key, "$push", value)
}

// PullUserProperty removes a value from a list property.
func (c *Client) PullUserProperty(key string, value interface{}) {
	c.appendProperty(key, "$pull", value)
}

// AddUniqueUserProperty appends a value to a set property.
func (c *Client) AddUniqueUserProperty(key string, value interface{}) {
	c.appendProperty(key, "$addToSet", value)
}

// SaveUserProperties queues the accumulated property patch as one
// user_details request and clears it. No-op when nothing is pending.
func (c *Client) SaveUserProperties() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if len(c.userPatch) == 0 {
		log.Debug("no pending user properties to save")
		return
	}

	patch := c.userPatch
	c.userPatch = make(map[string]interface{})

	c.enqueueLocked(&request.Request{UserDetails: &request.UserDetails{Custom: patch}})
}

// patchProperty records a plain or single-valued op mutation.
func (c *Client) patchProperty(key, op string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut || !c.validPropertyKey(key) {
		return
	}

	if op == "" {
		c.userPatch[key] = value
		return
	}
	c.userPatch[key] = map[string]interface{}{op: value}
}

// accumulateProperty merges repeated numeric ops for the same key.
func (c *Client) accumulateProperty(key, op string, value float64, merge func(prev, v float64) float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut || !c.validPropertyKey(key) {
		return
	}

	if pending, ok := c.userPatch[key].(map[string]interface{}); ok {
		if prev, ok := pending[op].(float64); ok {
			pending[op] = merge(prev, value)
			return
		}
	}
	c.userPatch[key] = map[string]interface{}{op: value}
}

// appendProperty merges repeated list ops for the same key.
func (c *Client) appendProperty(key, op string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut || !c.validPropertyKey(key) {
		return
	}

	if pending, ok := c.userPatch[key].(map[string]interface{}); ok {
		if prev, ok := pending[op].([]interface{}); ok {
			pending[op] = append(prev, value)
			return
		}
	}
	c.userPatch[key] = map[string]interface{}{op: []interface{}{value}}
}

func (c *Client) validPropertyKey(key string) bool {
	if key == "" {
		log.Error("dropping user property mutation: key is required")
		return false
	}
	return true
}
