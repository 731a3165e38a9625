package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetUserDetails(t *testing.T) {
	c, _ := newTestClient(t, &fakeTransport{})

	c.SetUserDetails(UserDetails{
		Name:      "Ada",
		Email:     "ada@example.com",
		BirthYear: 1990,
		Custom:    map[string]interface{}{"plan": "pro"},
	})

	snap := c.queue.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].UserDetails)
	assert.Equal(t, "Ada", snap[0].UserDetails.Name)
	assert.Equal(t, 1990, snap[0].UserDetails.BirthYear)
	assert.Equal(t, "pro", snap[0].UserDetails.Custom["plan"])
}

func TestUserPropertyPatchAccumulates(t *testing.T) {
	c, _ := newTestClient(t, &fakeTransport{})

	c.SetUserProperty("plan", "pro")
	c.IncUserProperty("logins", 1)
	c.IncUserProperty("logins", 2)
	c.MaxUserProperty("high_score", 100)
	c.MaxUserProperty("high_score", 50)
	c.PushUserProperty("tags", "alpha")
	c.PushUserProperty("tags", "beta")
	c.SaveUserProperties()

	snap := c.queue.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].UserDetails)
	custom := snap[0].UserDetails.Custom

	assert.Equal(t, "pro", custom["plan"])
	assert.Equal(t, map[string]interface{}{"$inc": float64(3)}, custom["logins"])
	assert.Equal(t, map[string]interface{}{"$max": float64(100)}, custom["high_score"])
	assert.Equal(t, map[string]interface{}{"$push": []interface{}{"alpha", "beta"}}, custom["tags"])
}

func TestUserPropertyOpReplacedByDifferentOp(t *testing.T) {
	c, _ := newTestClient(t, &fakeTransport{})

	c.IncUserProperty("score", 5)
	c.SetUserProperty("score", 10)
	c.SaveUserProperties()

	snap := c.queue.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 10, snap[0].UserDetails.Custom["score"])
}

func TestSaveUserPropertiesEmptyPatchIsNoOp(t *testing.T) {
	c, _ := newTestClient(t, &fakeTransport{})

	c.SaveUserProperties()
	assert.Equal(t, 0, c.QueueLen())
}

func TestSavedPatchClears(t *testing.T) {
	c, _ := newTestClient(t, &fakeTransport{})

	c.SetUserProperty("plan", "pro")
	c.SaveUserProperties()
	c.SaveUserProperties()

	assert.Equal(t, 1, c.QueueLen())
}

func TestUserPropertyRequiresKey(t *testing.T) {
	c, _ := newTestClient(t, &fakeTransport{})

	c.SetUserProperty("", "x")
	c.SaveUserProperties()

	assert.Equal(t, 0, c.QueueLen())
}
