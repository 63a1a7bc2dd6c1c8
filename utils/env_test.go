package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvVar(t *testing.T) {
	t.Setenv("BLOG_TEST_VAR", "value")
	v, err := GetEnvVar("BLOG_TEST_VAR")
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	_, err = GetEnvVar("BLOG_TEST_MISSING")
	assert.EqualError(t, err, "env var 'BLOG_TEST_MISSING' not specified")
}

func TestGetEnvVarWithDefault(t *testing.T) {
	assert.Equal(t, "dflt", GetEnvVarWithDefault("BLOG_TEST_MISSING", "dflt"))
	t.Setenv("BLOG_TEST_VAR", "")
	assert.Equal(t, "", GetEnvVarWithDefault("BLOG_TEST_VAR", "dflt"))
}

func TestTypedEnvVars(t *testing.T) {
	n, err := GetIntEnvVar("BLOG_TEST_MISSING", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	t.Setenv("BLOG_TEST_INT", "42")
	n, err = GetIntEnvVar("BLOG_TEST_INT", 7)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	t.Setenv("BLOG_TEST_INT", "x")
	_, err = GetIntEnvVar("BLOG_TEST_INT", 7)
	assert.Error(t, err)

	t.Setenv("BLOG_TEST_BOOL", "false")
	b, err := GetBoolEnvVar("BLOG_TEST_BOOL", true)
	require.NoError(t, err)
	assert.False(t, b)

	t.Setenv("BLOG_TEST_DUR", "90s")
	d, err := GetDurationEnvVar("BLOG_TEST_DUR", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("BLOG_TEST_DUR", "soon")
	_, err = GetDurationEnvVar("BLOG_TEST_DUR", time.Hour)
	assert.Error(t, err)
}
