package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
world_name = "Antica"

[game]
max_players = 5
`)
	cfg, err := Load(path)
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "world", cfg.Server.WorldName, "Antica")
	testutil.AssertEqual(t, "max players", cfg.Game.MaxPlayers, 5)
	testutil.AssertEqual(t, "default width", cfg.Game.AwareRangeDefaultW, 17)
	testutil.AssertEqual(t, "tick rate", cfg.Network.TickRate, 50*time.Millisecond)
	if cfg.Server.StartTime == 0 {
		t.Fatal("start time not set")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
[game]
ping_interval = "10s"
reconnect_delay = "1500ms"
`)
	cfg, err := Load(path)
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "ping", cfg.Game.PingInterval, 10*time.Second)
	testutil.AssertEqual(t, "reconnect", cfg.Game.ReconnectDelay, 1500*time.Millisecond)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Game.AwareRangeDefaultW = 18
	cfg.Game.AwareRangeMinH = 15
	cfg.Game.AwareRangeDefaultH = 13
	cfg.Network.ClientVersionMin = 1100
	cfg.Logging.Format = "xml"
	cfg.Game.SaveInterval = -time.Second

	err := cfg.Validate()
	testutil.AssertErrorContains(t, err, "positive and odd")
	testutil.AssertErrorContains(t, err, "min <= default <= max")
	testutil.AssertErrorContains(t, err, "client_version_min")
	testutil.AssertErrorContains(t, err, "logging.format")
	testutil.AssertErrorContains(t, err, "save_interval")
}

func TestDefaultsAreValid(t *testing.T) {
	testutil.AssertEqual(t, "err", Default().Validate(), nil)
}

func TestPathOverride(t *testing.T) {
	t.Setenv(EnvPath, "/etc/otgo.toml")
	testutil.AssertEqual(t, "override", Path(), "/etc/otgo.toml")
	t.Setenv(EnvPath, "")
	testutil.AssertEqual(t, "default", Path(), DefaultPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	testutil.AssertErrorContains(t, err, "read config")
}
