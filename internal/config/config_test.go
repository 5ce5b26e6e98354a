package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
# empire manager config
[app]
hostname = studio-1
env = staging
base_output_folder = /var/empire/out

[db]
host = db.internal
port = 5433
name = empire
user = empire
password = "s3cret"
sslmode = require

[rabbitmq]
host = mq.internal
user = empire
password = 'guest pass'

[paths]
publish_command = /opt/empire/bin/publish

[schedule]
audience_weight = 2.5
horizon_days = 14
min_gap_hours = 6
`)
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error = %v", err)
	}

	if cfg.Hostname != "studio-1" {
		t.Errorf("Hostname = %q, want studio-1", cfg.Hostname)
	}
	if cfg.AppEnv != "staging" {
		t.Errorf("AppEnv = %q, want staging", cfg.AppEnv)
	}
	if cfg.DBPassword != "s3cret" {
		t.Errorf("DBPassword = %q, quotes not trimmed", cfg.DBPassword)
	}
	if cfg.RabbitMQPassword != "guest pass" {
		t.Errorf("RabbitMQPassword = %q, single quotes not trimmed", cfg.RabbitMQPassword)
	}
	if cfg.PublishCommand != "/opt/empire/bin/publish" {
		t.Errorf("PublishCommand = %q", cfg.PublishCommand)
	}
	if cfg.Schedule.AudienceWeight != 2.5 {
		t.Errorf("Schedule.AudienceWeight = %v, want 2.5", cfg.Schedule.AudienceWeight)
	}
	if cfg.Schedule.HorizonDays != 14 || cfg.Schedule.MinGapHours != 6 {
		t.Errorf("Schedule bounds = %+v", cfg.Schedule)
	}
	// Unset keys keep their defaults.
	if cfg.Schedule.SlotsPerDay != 3 {
		t.Errorf("Schedule.SlotsPerDay = %d, want default 3", cfg.Schedule.SlotsPerDay)
	}
	if cfg.RabbitMQPort != 5672 {
		t.Errorf("RabbitMQPort = %d, want default 5672", cfg.RabbitMQPort)
	}

	want := "host=db.internal port=5433 dbname=empire user=empire password=s3cret sslmode=require"
	if got := cfg.DBConnString(); got != want {
		t.Errorf("DBConnString() = %q, want %q", got, want)
	}
}

func TestLoad_MissingOutputFolder(t *testing.T) {
	path := writeConfig(t, "[app]\nhostname = x\n")
	t.Setenv(configPathEnv, path)

	if _, err := Load(); err == nil {
		t.Error("Load() returned nil error without base_output_folder")
	}
}

func TestLoad_DBURLWins(t *testing.T) {
	path := writeConfig(t, `
[app]
base_output_folder = /tmp/out
[db]
url = postgres://u:p@example/db
host = ignored
`)
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error = %v", err)
	}
	if cfg.DBConnString() != "postgres://u:p@example/db" {
		t.Errorf("DBConnString() = %q, want db.url verbatim", cfg.DBConnString())
	}
}

func TestReadINI_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"no equals", "[app]\nhostname\n"},
		{"empty key", "[app]\n= value\n"},
		{"empty section", "[]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.contents)
			if _, err := readINI(path); err == nil {
				t.Errorf("readINI accepted %q", tt.contents)
			}
		})
	}
}

func TestRabbitMQURL(t *testing.T) {
	cfg := Config{
		RabbitMQHost:     "mq",
		RabbitMQPort:     5672,
		RabbitMQUser:     "u",
		RabbitMQPassword: "p",
		RabbitMQVHost:    "/empire",
	}
	if got := cfg.RabbitMQURL(); got != "amqp://u:p@mq:5672/empire" {
		t.Errorf("RabbitMQURL() = %q", got)
	}
}
