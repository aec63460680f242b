package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, "{}\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Datasets.TTL != DefaultDatasetTTL {
		t.Errorf("datasets.ttl: got %v, want %v", cfg.Server.Datasets.TTL, DefaultDatasetTTL)
	}
	if cfg.Server.Datasets.MaxRows != DefaultMaxRows {
		t.Errorf("datasets.max_rows: got %d, want %d", cfg.Server.Datasets.MaxRows, DefaultMaxRows)
	}
	p2 := cfg.Analysis.Parameters
	if p2.ElectricityPrice != 3.5 || p2.TargetOEE != 0.85 || p2.UnitMargin != 10 {
		t.Errorf("parameters: got %+v, want 3.5/0.85/10", p2)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  auth:
    mode: apikey
    key_env: PLANT_KEY
    header: x-plant-key
  datasets:
    ttl: 2h
    max_rows: 500
  cors_origins: ["https://ops.example.com"]
analysis:
  parameters:
    target_oee: 0.9
  aliases:
    "Asset Tag": entity_id
sources:
  - id: line-a
    endpoint: http://line-a:9100/metrics
    facility: A
    auth:
      mode: bearer
      token_env: LINE_A_TOKEN
alerts:
  rules:
    - name: low-oee
      condition: "mean_oee < 0.7"
      severity: critical
  webhooks:
    - type: slack
      url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-plant-key" {
		t.Errorf("header: got %q, want x-plant-key", cfg.Server.Auth.EffectiveHeader())
	}
	if cfg.Server.Datasets.TTL != 2*time.Hour || cfg.Server.Datasets.MaxRows != 500 {
		t.Errorf("datasets: got %+v", cfg.Server.Datasets)
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("cors_origins: got %v", cfg.Server.CORSOrigins)
	}

	params := cfg.Analysis.Parameters
	if params.TargetOEE != 0.9 {
		t.Errorf("target_oee: got %v, want 0.9", params.TargetOEE)
	}
	if params.ElectricityPrice != DefaultElectricityPrice || params.UnitMargin != DefaultUnitMargin {
		t.Errorf("unset parameters lost their defaults: %+v", params)
	}
	if cfg.Analysis.Aliases["Asset Tag"] != "entity_id" {
		t.Errorf("aliases: got %v", cfg.Analysis.Aliases)
	}

	if len(cfg.Sources) != 1 {
		t.Fatalf("sources: got %d, want 1", len(cfg.Sources))
	}
	src := cfg.Sources[0]
	if src.Timeout != DefaultSourceTimeout {
		t.Errorf("source timeout: got %v, want %v", src.Timeout, DefaultSourceTimeout)
	}
	if src.Auth.Mode != "bearer" || src.Facility != "A" {
		t.Errorf("source: got %+v", src)
	}

	if len(cfg.Alerts.Rules) != 1 || cfg.Alerts.Rules[0].Cooldown != DefaultAlertCooldown {
		t.Errorf("rules: got %+v", cfg.Alerts.Rules)
	}
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	t.Setenv("TEST_TOKEN", "tok")
	t.Setenv("TEST_HOOK", "https://hooks.example.com/x")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
sources:
  - id: s
    endpoint: http://s/metrics
    auth:
      mode: bearer
      token_env: TEST_TOKEN
alerts:
  webhooks:
    - type: http
      url_env: TEST_HOOK
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
	if tok := cfg.Sources[0].Auth.Token(); tok != "tok" {
		t.Errorf("Token(): got %q, want tok", tok)
	}
	if u := cfg.Alerts.Webhooks[0].URL(); u != "https://hooks.example.com/x" {
		t.Errorf("URL(): got %q", u)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad port", "server:\n  http_port: 70000\n", "http_port"},
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n", "auth.mode"},
		{"apikey without env", "server:\n  auth:\n    mode: apikey\n", "key_env"},
		{"negative ttl", "server:\n  datasets:\n    ttl: -1m\n", "ttl"},
		{"target above one", "analysis:\n  parameters:\n    target_oee: 85\n", "target_oee"},
		{"negative price", "analysis:\n  parameters:\n    electricity_price: -1\n", "electricity_price"},
		{"alias to unknown field", "analysis:\n  aliases:\n    foo: bar\n", "canonical"},
		{"source without id", "sources:\n  - endpoint: http://x\n", "id is required"},
		{"duplicate source", "sources:\n  - id: a\n    endpoint: http://x\n  - id: a\n    endpoint: http://y\n", "duplicated"},
		{"source without endpoint", "sources:\n  - id: a\n", "endpoint"},
		{"source auth mode", "sources:\n  - id: a\n    endpoint: http://x\n    auth:\n      mode: mtls\n", "auth.mode"},
		{"rule severity", "alerts:\n  rules:\n    - name: r\n      condition: \"cv > 1\"\n      severity: loud\n", "severity"},
		{"rule without condition", "alerts:\n  rules:\n    - name: r\n      severity: info\n", "condition"},
		{"webhook type", "alerts:\n  webhooks:\n    - type: pager\n", "type"},
		{"malformed yaml", "server: [\n", "parse yaml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := validate(cfg); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestWatch_Reload(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("analysis:\n  parameters:\n    unit_margin: 12\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// The truncate and the write may arrive as separate events.
	deadline := time.After(3 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case c := <-changes:
			reloaded = c.Analysis.Parameters.UnitMargin == 12
		case <-deadline:
			t.Fatal("no reload with unit_margin 12 observed")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}

func TestChanges(t *testing.T) {
	base := Default()

	tests := []struct {
		name        string
		edit        func(c *Config)
		wantLive    []string
		wantRestart []string
	}{
		{name: "unchanged", edit: func(*Config) {}},
		{
			name:     "parameters",
			edit:     func(c *Config) { c.Analysis.Parameters.UnitMargin = 12 },
			wantLive: []string{"analysis.parameters"},
		},
		{
			name: "rules and aliases",
			edit: func(c *Config) {
				c.Analysis.Aliases = map[string]string{"asset tag": "entity_id"}
				c.Alerts.Rules = append(c.Alerts.Rules, AlertRule{Name: "low-oee", Condition: "mean_oee < 0.7", Severity: "warning"})
			},
			wantLive: []string{"analysis.aliases", "alerts.rules"},
		},
		{
			name:        "port needs restart",
			edit:        func(c *Config) { c.Server.HTTPPort = 9090 },
			wantRestart: []string{"server.http_port"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Default()
			tt.edit(next)
			live, restart := Changes(base, next)
			if strings.Join(live, ",") != strings.Join(tt.wantLive, ",") {
				t.Errorf("live = %v, want %v", live, tt.wantLive)
			}
			if strings.Join(restart, ",") != strings.Join(tt.wantRestart, ",") {
				t.Errorf("restart = %v, want %v", restart, tt.wantRestart)
			}
		})
	}

	if live, _ := Changes(nil, base); len(live) == 0 {
		t.Error("Changes(nil, cfg) reported no live sections")
	}
}
