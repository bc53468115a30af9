package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroValueIsAlways(t *testing.T) {
	var l List
	assert.Equal(t, ModeAlways, l.Mode())
	assert.Equal(t, -1, l.Len())
}

func TestOnCopiesValues(t *testing.T) {
	vals := []any{1, 2}
	l := On(vals...)
	vals[0] = 99

	assert.Equal(t, []any{1, 2}, l.Values())

	got := l.Values()
	got[1] = 42
	assert.Equal(t, []any{1, 2}, l.Values())
}

func TestListString(t *testing.T) {
	assert.Equal(t, "deps(always)", Always().String())
	assert.Equal(t, "deps[]", Once().String())
	assert.Equal(t, "deps[a, 2]", On("a", 2).String())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint(On("a", 1)), Fingerprint(On("a", 1)))
	assert.NotEqual(t, Fingerprint(On("a", 1)), Fingerprint(On("a", 2)))
	assert.NotEqual(t, Fingerprint(On(1)), Fingerprint(On("1")), "type is part of the fingerprint")
	assert.NotEqual(t, Fingerprint(Always()), Fingerprint(Once()))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "always", ModeAlways.String())
	assert.Equal(t, "once", ModeOnce.String())
	assert.Equal(t, "on", ModeOn.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
