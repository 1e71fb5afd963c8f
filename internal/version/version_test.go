package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "1.2.0", "unknown"
	assert.Equal(t, "convview 1.2.0", GetVersionString())
	assert.False(t, IsRelease())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "convview 1.2.0 (01234567)", GetVersionString())
	assert.True(t, IsRelease())
	assert.Contains(t, GetDetailedVersionString(), "Git commit: 0123456789abcdef")

	Version = "1.3.0-dev"
	assert.False(t, IsRelease())
}
