package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const DATABASE_TYPE = "SHIPFLOW_DATABASE_TYPE"
const DATABASE_URL = "SHIPFLOW_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "SHIPFLOW_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "SHIPFLOW_SERVER_WEB_PORT"
const LOG_LEVEL = "SHIPFLOW_LOG_LEVEL"
const SCHEDULER_INTERVAL = "SHIPFLOW_SCHEDULER_INTERVAL"     //how often due jobs are polled
const SCHEDULER_BATCH_SIZE = "SHIPFLOW_SCHEDULER_BATCH_SIZE" //number of due jobs pulled per tick
const JOB_TIMEOUT = "SHIPFLOW_JOB_TIMEOUT"
const JOB_MAX_ATTEMPTS = "SHIPFLOW_JOB_MAX_ATTEMPTS"
const TIMEZONE = "SHIPFLOW_TIMEZONE" //zone used for LFD midnights and the 09:00/14:00 reminders
const STEP_CATALOG_FILE = "SHIPFLOW_STEP_CATALOG_FILE"
const TEMPLATES_FILE = "SHIPFLOW_TEMPLATES_FILE"
const PREALERT_RECIPIENTS = "SHIPFLOW_PREALERT_RECIPIENTS"
const OVERDUE_CHECK_CRON = "SHIPFLOW_OVERDUE_CHECK_CRON"
const DAILY_REMINDER_CRON = "SHIPFLOW_DAILY_REMINDER_CRON"
const REDIS_URL = "SHIPFLOW_REDIS_URL" //when set, ticks also take a lease in redis
const TICK_LOCK_TTL = "SHIPFLOW_TICK_LOCK_TTL"
const TRACING_ENABLED = "SHIPFLOW_TRACING_ENABLED"
const ADMIN_USERNAME = "SHIPFLOW_ADMIN_USERNAME"
const ADMIN_PASSWORD = "SHIPFLOW_ADMIN_PASSWORD"
const ADMIN_API_KEY = "SHIPFLOW_ADMIN_API_KEY"
const WEB_SESSION_EXPIRY_HOURS = "SHIPFLOW_WEB_SESSION_EXPIRY_HOURS"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

var defaults = map[string]string{
	DATABASE_SQLLITE_FILE_NAME: "./shipflow.db",
	SERVER_WEB_PORT:            "8080",
	LOG_LEVEL:                  "info",
	SCHEDULER_INTERVAL:         "1m",
	SCHEDULER_BATCH_SIZE:       "100",
	JOB_TIMEOUT:                "30s",
	JOB_MAX_ATTEMPTS:           "3",
	TIMEZONE:                   "Local",
	PREALERT_RECIPIENTS:        "operations@company.com",
	OVERDUE_CHECK_CRON:         "0 9 * * *",
	DAILY_REMINDER_CRON:        "0 14 * * *",
	TICK_LOCK_TTL:              "5m",
	TRACING_ENABLED:            "false",
	WEB_SESSION_EXPIRY_HOURS:   "8",
}

func GetSystemSettingString(settingKey string) string {
	if val := os.Getenv(settingKey); val != "" {
		return val
	}
	return defaults[settingKey]
}

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val == "" {
		return 0
	}
	intValue, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("Invalid integer setting, using default", "key", settingKey, "value", val)
		intValue, _ = strconv.Atoi(defaults[settingKey])
	}
	return intValue
}

func GetSystemSettingDuration(settingKey string) time.Duration {
	val := GetSystemSettingString(settingKey)
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("Invalid duration setting, using default", "key", settingKey, "value", val)
		d, _ = time.ParseDuration(defaults[settingKey])
	}
	return d
}

func GetSystemSettingBool(settingKey string) bool {
	b, _ := strconv.ParseBool(GetSystemSettingString(settingKey))
	return b
}

// GetLocation resolves SHIPFLOW_TIMEZONE. Unknown zones fall back to time.Local.
func GetLocation() *time.Location {
	name := GetSystemSettingString(TIMEZONE)
	if name == "" || strings.EqualFold(name, "Local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Unknown time zone, using local", "zone", name, "error", err)
		return time.Local
	}
	return loc
}

func GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(GetSystemSettingString(LOG_LEVEL))); err != nil {
		return slog.LevelInfo
	}
	return level
}
