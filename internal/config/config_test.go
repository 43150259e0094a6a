package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3030", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Room.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.Room.EmptyRoomExpiry)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeConfig(t, `
room:
  sweep_interval: 30s
  empty_room_expiry: 2m
worker:
  shards: 4
redis:
  enabled: true
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Room.SweepInterval)
	assert.Equal(t, 2*time.Minute, cfg.Room.EmptyRoomExpiry)
	assert.Equal(t, 4, cfg.Worker.Shards)
	assert.Equal(t, 1024, cfg.Worker.QueueSize)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CARDROOM_ROOM_EMPTY_ROOM_EXPIRY", "45s")
	t.Setenv("CARDROOM_ROOM_SWEEP_INTERVAL", "1m")
	t.Setenv("CARDROOM_REDIS_ENABLED", "true")
	t.Setenv("CARDROOM_REDIS_PASSWORD", "r3dis")
	t.Setenv("CARDROOM_REDIS_DB", "2")
	t.Setenv("CARDROOM_NATS_ENABLED", "true")
	t.Setenv("CARDROOM_DATABASE_ENABLED", "true")
	t.Setenv("CARDROOM_DATABASE_PASSWORD", "s3cret")
	t.Setenv("CARDROOM_SERVER_STATIC_DIR", "/srv/public")
	t.Setenv("CARDROOM_WEBTRANSPORT_CERT_FILE", "/etc/tls/cert.pem")
	t.Setenv("CARDROOM_WEBTRANSPORT_KEY_FILE", "/etc/tls/key.pem")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Room.EmptyRoomExpiry)
	assert.Equal(t, time.Minute, cfg.Room.SweepInterval)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "r3dis", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.NATS.Enabled)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "/srv/public", cfg.Server.StaticDir)
	assert.Equal(t, "/etc/tls/cert.pem", cfg.WebTransport.CertFile)
	assert.Equal(t, "/etc/tls/key.pem", cfg.WebTransport.KeyFile)
}

func TestEveryKeyHasDefault(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	require.NotEmpty(t, keys)
	for _, key := range keys {
		assert.True(t, v.IsSet(key), "missing default for %s", key)
	}
}

// collectKeys 按 mapstructure 标签展开配置项的完整键名
func collectKeys(typ reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key := prefix + field.Tag.Get("mapstructure")
		if field.Type.Kind() == reflect.Struct {
			collectKeys(field.Type, key+".", keys)
			continue
		}
		*keys = append(*keys, key)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeConfig(t, `
room:
  sweep_interval: 0s
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room.sweep_interval")
}

func TestStringMasksSecrets(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeConfig(t, `
database:
  password: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "sweep_interval")
	assert.Equal(t, "hunter2", cfg.Database.Password)
}
