package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	oldVersion, oldHash := Version, GitHash
	t.Cleanup(func() { Version, GitHash = oldVersion, oldHash })

	Version, GitHash = "v1.2.0", "0123456789abcdef"
	assert.Equal(t, "v1.2.0-0123456", GetVersion())

	GitHash = "None"
	assert.Equal(t, "v1.2.0", GetVersion())

	var buf bytes.Buffer
	Printer(&buf)
	assert.Contains(t, buf.String(), "Version:           v1.2.0")
}
