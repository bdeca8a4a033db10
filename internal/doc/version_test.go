package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_Next(t *testing.T) {
	var v Version
	assert.Equal(t, "1.0", v.String())

	v = v.Next()
	assert.Equal(t, "1.1", v.String())

	v = v.Next()
	assert.Equal(t, "1.2", v.String())

	v = v.NextMajor()
	assert.Equal(t, "2.1", v.String())

	v = v.Next()
	assert.Equal(t, "2.2", v.String())
}

func TestVersion_NextMajorSeeds(t *testing.T) {
	var v Version
	v = v.NextMajor()
	assert.Equal(t, "1.1", v.String())
}

func TestVersion_Before(t *testing.T) {
	a, err := ParseVersion("1.3")
	assert.NoError(t, err)
	b, err := ParseVersion("2.1")
	assert.NoError(t, err)

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, s := range []string{"", "1", "1.x", "a.b", "1.2.3"} {
		_, err := ParseVersion(s)
		assert.Error(t, err, s)
	}
}
