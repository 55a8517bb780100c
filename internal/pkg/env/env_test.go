package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv_MapBeforeOS(t *testing.T) {
	t.Setenv("ZINTRA_TEST_KEY", "from-os")
	Env = map[string]string{"ZINTRA_TEST_KEY": "from-file"}
	defer func() { Env = nil }()

	assert.Equal(t, "from-file", GetEnv("ZINTRA_TEST_KEY", "def"))

	Env = map[string]string{}
	assert.Equal(t, "from-os", GetEnv("ZINTRA_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("ZINTRA_TEST_MISSING", "def"))
}

func TestGetEnvTyped(t *testing.T) {
	Env = map[string]string{
		"WORKERS":      "7",
		"BAD_WORKERS":  "seven",
		"INTERVAL":     "15s",
		"BAD_INTERVAL": "-1m",
	}
	defer func() { Env = nil }()

	assert.Equal(t, 7, GetEnvInt("WORKERS", 3))
	assert.Equal(t, 3, GetEnvInt("BAD_WORKERS", 3))
	assert.Equal(t, 3, GetEnvInt("UNSET_WORKERS", 3))
	assert.Equal(t, 15*time.Second, GetEnvDuration("INTERVAL", time.Minute))
	assert.Equal(t, time.Minute, GetEnvDuration("BAD_INTERVAL", time.Minute))
}
