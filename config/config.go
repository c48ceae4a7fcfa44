package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	BackendAuto   = ""
	BackendCalDAV = "caldav"
	BackendSQLite = "sqlite"
)

type CalDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
	List     string `yaml:"list"`
}

type Config struct {
	Backend      string
	CalDAV       CalDAVConfig
	DatabasePath string
	Timezone     *time.Location
	Env          string
	LogLevel     zapcore.Level

	SearchBackDays  int
	SearchAheadDays int
	EventLimit      int
	ReminderLimit   int
	SearchLimit     int

	Attribution string
}

// fileConfig is the optional YAML file named by CALKIT_CONFIG.
type fileConfig struct {
	Backend      string       `yaml:"backend"`
	CalDAV       CalDAVConfig `yaml:"caldav"`
	DatabasePath string       `yaml:"database_path"`
	Timezone     string       `yaml:"timezone"`
	Env          string       `yaml:"env"`
	LogLevel     string       `yaml:"log_level"`
	Search       struct {
		BackDays  int `yaml:"back_days"`
		AheadDays int `yaml:"ahead_days"`
	} `yaml:"search"`
	Limits struct {
		Events    int `yaml:"events"`
		Reminders int `yaml:"reminders"`
		Search    int `yaml:"search"`
	} `yaml:"limits"`
	Attribution *string `yaml:"attribution"`
}

// settings holds raw values before parsing. Environment variables win
// over the config file, which wins over defaults.
type settings struct {
	backend, dbPath, timezone, env, logLevel string
	caldav                                   CalDAVConfig
	backDays, aheadDays                      string
	eventLimit, reminderLimit, searchLimit   string
	attribution                              string
}

func defaults() settings {
	return settings{
		dbPath:        "./data/calkit.db",
		env:           "development",
		logLevel:      "info",
		backDays:      "30",
		aheadDays:     "90",
		eventLimit:    "50",
		reminderLimit: "100",
		searchLimit:   "50",
		attribution:   "Created by calkit",
	}
}

// Load reads configuration from a .env file, the YAML file named by
// CALKIT_CONFIG and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	s := defaults()
	if path := os.Getenv("CALKIT_CONFIG"); path != "" {
		if err := s.applyFile(path); err != nil {
			return nil, err
		}
	}
	s.applyEnv()
	return s.parse()
}

func (s *settings) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&s.backend, f.Backend)
	setString(&s.dbPath, f.DatabasePath)
	setString(&s.timezone, f.Timezone)
	setString(&s.env, f.Env)
	setString(&s.logLevel, f.LogLevel)
	setString(&s.caldav.URL, f.CalDAV.URL)
	setString(&s.caldav.Username, f.CalDAV.Username)
	setString(&s.caldav.Password, f.CalDAV.Password)
	setString(&s.caldav.Calendar, f.CalDAV.Calendar)
	setString(&s.caldav.List, f.CalDAV.List)
	setInt(&s.backDays, f.Search.BackDays)
	setInt(&s.aheadDays, f.Search.AheadDays)
	setInt(&s.eventLimit, f.Limits.Events)
	setInt(&s.reminderLimit, f.Limits.Reminders)
	setInt(&s.searchLimit, f.Limits.Search)
	if f.Attribution != nil {
		s.attribution = *f.Attribution
	}
	return nil
}

func (s *settings) applyEnv() {
	setString(&s.backend, os.Getenv("CALKIT_BACKEND"))
	setString(&s.dbPath, os.Getenv("CALKIT_DATABASE_PATH"))
	setString(&s.timezone, os.Getenv("CALKIT_TIMEZONE"))
	setString(&s.env, os.Getenv("CALKIT_ENV"))
	setString(&s.logLevel, os.Getenv("CALKIT_LOG_LEVEL"))
	setString(&s.caldav.URL, os.Getenv("CALKIT_CALDAV_URL"))
	setString(&s.caldav.Username, os.Getenv("CALKIT_CALDAV_USERNAME"))
	setString(&s.caldav.Password, os.Getenv("CALKIT_CALDAV_PASSWORD"))
	setString(&s.caldav.Calendar, os.Getenv("CALKIT_CALDAV_CALENDAR"))
	setString(&s.caldav.List, os.Getenv("CALKIT_CALDAV_LIST"))
	setString(&s.backDays, os.Getenv("CALKIT_SEARCH_BACK_DAYS"))
	setString(&s.aheadDays, os.Getenv("CALKIT_SEARCH_AHEAD_DAYS"))
	setString(&s.eventLimit, os.Getenv("CALKIT_EVENT_LIMIT"))
	setString(&s.reminderLimit, os.Getenv("CALKIT_REMINDER_LIMIT"))
	setString(&s.searchLimit, os.Getenv("CALKIT_SEARCH_LIMIT"))
	// An empty CALKIT_ATTRIBUTION turns attribution off
	if v, ok := os.LookupEnv("CALKIT_ATTRIBUTION"); ok {
		s.attribution = v
	}
}

func (s *settings) parse() (*Config, error) {
	cfg := &Config{
		Backend:      strings.ToLower(strings.TrimSpace(s.backend)),
		CalDAV:       s.caldav,
		DatabasePath: s.dbPath,
		Env:          s.env,
		Attribution:  s.attribution,
	}

	switch cfg.Backend {
	case BackendAuto, BackendSQLite:
	case BackendCalDAV:
		if cfg.CalDAV.Username == "" || cfg.CalDAV.Password == "" {
			return nil, fmt.Errorf("CALKIT_CALDAV_USERNAME and CALKIT_CALDAV_PASSWORD are required for the caldav backend")
		}
	default:
		return nil, fmt.Errorf("invalid CALKIT_BACKEND %q: must be caldav or sqlite", s.backend)
	}

	cfg.Timezone = time.Local
	if s.timezone != "" {
		tz, err := time.LoadLocation(s.timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid CALKIT_TIMEZONE: %w", err)
		}
		cfg.Timezone = tz
	}

	level, err := zapcore.ParseLevel(s.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid CALKIT_LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	ints := []struct {
		name  string
		value string
		dst   *int
	}{
		{"CALKIT_SEARCH_BACK_DAYS", s.backDays, &cfg.SearchBackDays},
		{"CALKIT_SEARCH_AHEAD_DAYS", s.aheadDays, &cfg.SearchAheadDays},
		{"CALKIT_EVENT_LIMIT", s.eventLimit, &cfg.EventLimit},
		{"CALKIT_REMINDER_LIMIT", s.reminderLimit, &cfg.ReminderLimit},
		{"CALKIT_SEARCH_LIMIT", s.searchLimit, &cfg.SearchLimit},
	}
	for _, v := range ints {
		n, err := strconv.Atoi(strings.TrimSpace(v.value))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive number (got %q)", v.name, v.value)
		}
		*v.dst = n
	}

	return cfg, nil
}

// UseCalDAV reports whether the CalDAV backend is selected. Without an
// explicit backend CalDAV is used whenever credentials are present.
func (c *Config) UseCalDAV() bool {
	switch c.Backend {
	case BackendCalDAV:
		return true
	case BackendSQLite:
		return false
	default:
		return c.CalDAV.Username != "" && c.CalDAV.Password != ""
	}
}

// IsProduction reports whether CALKIT_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *string, v int) {
	if v != 0 {
		*dst = strconv.Itoa(v)
	}
}
