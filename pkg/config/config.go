package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	History    HistoryConfig
	Simulation SimulationConfig
	Rates      RatesConfig
	NATS       NATSConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// HistoryConfig selects where the ride history blob lives
type HistoryConfig struct {
	Backend string // "redis" or "memory"
	Key     string
}

// SimulationConfig holds the cadences of the active-ride engine
type SimulationConfig struct {
	SimulateMotion    bool
	CapAtEstimate     bool
	TimeTick          time.Duration
	PriceTick         time.Duration
	PositionTick      time.Duration
	StepDegrees       float64
	StartOffsetDegree float64
}

// RatesConfig holds the fare table
type RatesConfig struct {
	BaseFare       float64
	PerKmDay       float64
	PerKmNight     float64
	AvgSpeedKmh    float64
	DayIncrement   float64
	NightIncrement float64
}

// NATSConfig holds NATS event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool

	// publish circuit breaker
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:8081"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		History: HistoryConfig{
			Backend: getEnv("HISTORY_BACKEND", "redis"),
			Key:     getEnv("HISTORY_KEY", "rideHistory"),
		},
		Simulation: SimulationConfig{
			SimulateMotion:    getEnvAsBool("SIM_SIMULATE_MOTION", true),
			CapAtEstimate:     getEnvAsBool("SIM_CAP_AT_ESTIMATE", false),
			TimeTick:          getEnvAsDuration("SIM_TIME_TICK", time.Second),
			PriceTick:         getEnvAsDuration("SIM_PRICE_TICK", time.Second),
			PositionTick:      getEnvAsDuration("SIM_POSITION_TICK", 100*time.Millisecond),
			StepDegrees:       getEnvAsFloat("SIM_STEP_DEGREES", 0.0001),
			StartOffsetDegree: getEnvAsFloat("SIM_START_OFFSET_DEGREES", 0.01),
		},
		Rates: RatesConfig{
			BaseFare:       getEnvAsFloat("RATE_BASE_FARE", 7.50),
			PerKmDay:       getEnvAsFloat("RATE_PER_KM_DAY", 1.50),
			PerKmNight:     getEnvAsFloat("RATE_PER_KM_NIGHT", 2.00),
			AvgSpeedKmh:    getEnvAsFloat("RATE_AVG_SPEED_KMH", 30),
			DayIncrement:   getEnvAsFloat("RATE_DAY_INCREMENT", 0.15),
			NightIncrement: getEnvAsFloat("RATE_NIGHT_INCREMENT", 0.20),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),

			BreakerFailures: getEnvAsInt("NATS_BREAKER_FAILURES", 5),
			BreakerTimeout:  getEnvAsDuration("NATS_BREAKER_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the simulator cannot run with
func (c *Config) Validate() error {
	switch c.History.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported HISTORY_BACKEND %q", c.History.Backend)
	}
	if c.History.Key == "" {
		return fmt.Errorf("HISTORY_KEY must not be empty")
	}
	if c.Rates.AvgSpeedKmh <= 0 {
		return fmt.Errorf("RATE_AVG_SPEED_KMH must be positive")
	}
	if c.Simulation.TimeTick <= 0 || c.Simulation.PriceTick <= 0 || c.Simulation.PositionTick <= 0 {
		return fmt.Errorf("simulation ticks must be positive")
	}
	if c.Simulation.StepDegrees <= 0 {
		return fmt.Errorf("SIM_STEP_DEGREES must be positive")
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
