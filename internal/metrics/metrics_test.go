package metrics

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotDefaults(t *testing.T) {
	p := NewProvider("2.4.0", nil)

	snap := p.Snapshot()
	assert.Equal(t, runtime.GOOS, snap["_os"])
	assert.Equal(t, runtime.GOARCH, snap["_cpu"])
	assert.Equal(t, "2.4.0", snap["_app_version"])
}

func TestSnapshotOverrides(t *testing.T) {
	p := NewProvider("2.4.0", map[string]string{
		"_os":      "fridge-os",
		"_density": "1.5",
	})

	snap := p.Snapshot()
	assert.Equal(t, "fridge-os", snap["_os"])
	assert.Equal(t, "1.5", snap["_density"])
	assert.Equal(t, "2.4.0", snap["_app_version"])

	assert.Equal(t, "fridge-os", p.OS())
}

func TestSnapshotOmitsEmptyAppVersion(t *testing.T) {
	p := NewProvider("", nil)

	_, ok := p.Snapshot()["_app_version"]
	assert.False(t, ok)
}
