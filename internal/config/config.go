package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultConfigPath = "/etc/empire/config.ini"
	configPathEnv     = "EMPIRE_CONFIG"
)

type Config struct {
	Hostname         string
	AppEnv           string
	BaseOutputFolder string

	// PublishCommand is the external upload hook invoked by job:PublishVideo.
	// It receives --file/--title/--description/--tags/--privacyStatus flags.
	PublishCommand string

	MigrationsDir string

	DBURL      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string
	RabbitMQVHost    string

	Schedule ScheduleConfig
}

// ScheduleConfig holds the publish-slot scorer weights and bounds.
type ScheduleConfig struct {
	AudienceWeight  float64
	SpacingWeight   float64
	StalenessWeight float64
	BacklogWeight   float64
	HorizonDays     int
	MinGapHours     int
	SlotsPerDay     int
}

func Load() (Config, error) {
	configPath := os.Getenv(configPathEnv)
	if configPath == "" {
		configPath = defaultConfigPath
	}

	ini, err := readINI(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", configPath, err)
	}

	cfg := Config{}
	cfg.Hostname = ini.get("app", "hostname")
	if cfg.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Hostname = host
		}
	}
	cfg.AppEnv = ini.getDefault("app", "env", "production")
	cfg.BaseOutputFolder = ini.get("app", "base_output_folder")

	cfg.PublishCommand = ini.get("paths", "publish_command")
	cfg.MigrationsDir = ini.getDefault("paths", "migrations_dir", "migrations")

	cfg.DBURL = firstNonEmpty(ini.get("db", "url"), ini.get("db", "database_url"))
	cfg.DBHost = ini.getDefault("db", "host", "127.0.0.1")
	cfg.DBPort = ini.getIntDefault("db", "port", 5432)
	cfg.DBName = ini.getDefault("db", "name", "empire")
	cfg.DBUser = ini.getDefault("db", "user", "root")
	cfg.DBPassword = ini.get("db", "password")
	cfg.DBSSLMode = ini.getDefault("db", "sslmode", "prefer")

	cfg.RabbitMQHost = ini.getDefault("rabbitmq", "host", "127.0.0.1")
	cfg.RabbitMQPort = ini.getIntDefault("rabbitmq", "port", 5672)
	cfg.RabbitMQUser = ini.getDefault("rabbitmq", "user", "guest")
	cfg.RabbitMQPassword = ini.getDefault("rabbitmq", "password", "guest")
	cfg.RabbitMQVHost = ini.getDefault("rabbitmq", "vhost", "/")

	cfg.Schedule = ScheduleConfig{
		AudienceWeight:  ini.getFloatDefault("schedule", "audience_weight", 1.0),
		SpacingWeight:   ini.getFloatDefault("schedule", "spacing_weight", 0.6),
		StalenessWeight: ini.getFloatDefault("schedule", "staleness_weight", 0.3),
		BacklogWeight:   ini.getFloatDefault("schedule", "backlog_weight", 0.2),
		HorizonDays:     ini.getIntDefault("schedule", "horizon_days", 7),
		MinGapHours:     ini.getIntDefault("schedule", "min_gap_hours", 12),
		SlotsPerDay:     ini.getIntDefault("schedule", "slots_per_day", 3),
	}

	if cfg.BaseOutputFolder == "" {
		return cfg, errors.New("app.base_output_folder must be set in config.ini")
	}

	return cfg, nil
}

func (c Config) DBConnString() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBUser,
		c.DBPassword,
		c.DBSSLMode,
	)
}

func (c Config) RabbitMQURL() string {
	vhost := strings.TrimPrefix(c.RabbitMQVHost, "/")
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d/%s",
		c.RabbitMQUser,
		c.RabbitMQPassword,
		c.RabbitMQHost,
		c.RabbitMQPort,
		vhost,
	)
}

type iniData struct {
	sections map[string]map[string]string
}

func readINI(path string) (iniData, error) {
	file, err := os.Open(path)
	if err != nil {
		return iniData{}, err
	}
	defer file.Close()

	data := iniData{sections: map[string]map[string]string{}}
	section := "default"
	data.sections[section] = map[string]string{}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			section = strings.ToLower(section)
			if section == "" {
				return iniData{}, fmt.Errorf("invalid section header at line %d", lineNo)
			}
			if _, ok := data.sections[section]; !ok {
				data.sections[section] = map[string]string{}
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return iniData{}, fmt.Errorf("invalid line %d: %q", lineNo, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return iniData{}, fmt.Errorf("empty key at line %d", lineNo)
		}
		value = strings.TrimSpace(value)
		value = trimQuotes(value)
		data.sections[section][key] = value
	}
	if err := scanner.Err(); err != nil {
		return iniData{}, err
	}
	return data, nil
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	if value[0] == '\'' && value[len(value)-1] == '\'' {
		return value[1 : len(value)-1]
	}
	return value
}

func (ini iniData) get(section, key string) string {
	if len(ini.sections) == 0 {
		return ""
	}
	section = strings.ToLower(section)
	key = strings.ToLower(key)
	if section == "" {
		section = "default"
	}
	if values, ok := ini.sections[section]; ok {
		return values[key]
	}
	return ""
}

func (ini iniData) getDefault(section, key, fallback string) string {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	return value
}

func (ini iniData) getIntDefault(section, key string, fallback int) int {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (ini iniData) getFloatDefault(section, key string, fallback float64) float64 {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
