package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	// AccessSecret enables the local JWT gate when set. Authentication
	// is owned by the platform gateway; the gate is for direct exposure.
	AccessSecret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// AnalyticsConfig names every heuristic the analyzers use so thresholds
// can be tuned without touching algorithm structure.
type AnalyticsConfig struct {
	MaxAreaRows  int64
	AreaParallel bool

	QueryTimeout    time.Duration
	PipelineTimeout time.Duration
	WorkerPoolSize  int

	CorridorMinStops     int64
	CorridorDefaultLimit int
	CorridorMaxLimit     int
	MilesPerLngDegree    float64
	TimeWindowCorridors  int
	HotHourRatio         float64
	SafeHourRatio        float64
	MaxWindows           int

	RiskCriticalPerMile float64
	RiskHighPerMile     float64
	RiskModeratePerMile float64

	StrictAvgBelow   float64
	ModerateAvgBelow float64

	LocationMinSamples   int64
	SpeedLimitMinSamples int64
	LocationRankSize     int

	PatternMinSamples  int64
	HourClusterCutoff  float64
	DayClusterCutoff   float64
	MethodZoneRatio    float64
	MethodZoneMinShare float64
	QuotaBoundaryRatio float64
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Analytics   AnalyticsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("REDIS_REPORT_TTL"),
		},
		Analytics: AnalyticsConfig{
			MaxAreaRows:          v.GetInt64("ANALYTICS_MAX_AREA_ROWS"),
			AreaParallel:         v.GetBool("ANALYTICS_AREA_PARALLEL"),
			QueryTimeout:         v.GetDuration("ANALYTICS_QUERY_TIMEOUT"),
			PipelineTimeout:      v.GetDuration("ANALYTICS_PIPELINE_TIMEOUT"),
			WorkerPoolSize:       v.GetInt("ANALYTICS_WORKER_POOL"),
			CorridorMinStops:     v.GetInt64("ANALYTICS_CORRIDOR_MIN_STOPS"),
			CorridorDefaultLimit: v.GetInt("ANALYTICS_CORRIDOR_DEFAULT_LIMIT"),
			CorridorMaxLimit:     v.GetInt("ANALYTICS_CORRIDOR_MAX_LIMIT"),
			MilesPerLngDegree:    v.GetFloat64("ANALYTICS_MILES_PER_LNG_DEGREE"),
			TimeWindowCorridors:  v.GetInt("ANALYTICS_TIME_WINDOW_CORRIDORS"),
			HotHourRatio:         v.GetFloat64("ANALYTICS_HOT_HOUR_RATIO"),
			SafeHourRatio:        v.GetFloat64("ANALYTICS_SAFE_HOUR_RATIO"),
			MaxWindows:           v.GetInt("ANALYTICS_MAX_WINDOWS"),
			RiskCriticalPerMile:  v.GetFloat64("ANALYTICS_RISK_CRITICAL"),
			RiskHighPerMile:      v.GetFloat64("ANALYTICS_RISK_HIGH"),
			RiskModeratePerMile:  v.GetFloat64("ANALYTICS_RISK_MODERATE"),
			StrictAvgBelow:       v.GetFloat64("ANALYTICS_STRICT_AVG_BELOW"),
			ModerateAvgBelow:     v.GetFloat64("ANALYTICS_MODERATE_AVG_BELOW"),
			LocationMinSamples:   v.GetInt64("ANALYTICS_LOCATION_MIN_SAMPLES"),
			SpeedLimitMinSamples: v.GetInt64("ANALYTICS_SPEED_LIMIT_MIN_SAMPLES"),
			LocationRankSize:     v.GetInt("ANALYTICS_LOCATION_RANK_SIZE"),
			PatternMinSamples:    v.GetInt64("ANALYTICS_PATTERN_MIN_SAMPLES"),
			HourClusterCutoff:    v.GetFloat64("ANALYTICS_HOUR_CLUSTER_CUTOFF"),
			DayClusterCutoff:     v.GetFloat64("ANALYTICS_DAY_CLUSTER_CUTOFF"),
			MethodZoneRatio:      v.GetFloat64("ANALYTICS_METHOD_ZONE_RATIO"),
			MethodZoneMinShare:   v.GetFloat64("ANALYTICS_METHOD_ZONE_MIN_SHARE"),
			QuotaBoundaryRatio:   v.GetFloat64("ANALYTICS_QUOTA_BOUNDARY_RATIO"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 5 * time.Minute
	}

	a := &cfg.Analytics
	if a.MaxAreaRows <= 0 {
		a.MaxAreaRows = 50000
	}
	if a.QueryTimeout <= 0 {
		a.QueryTimeout = 15 * time.Second
	}
	if a.PipelineTimeout <= 0 {
		a.PipelineTimeout = 60 * time.Second
	}
	if a.WorkerPoolSize <= 0 {
		a.WorkerPoolSize = 4
	}
	if a.CorridorMinStops <= 0 {
		a.CorridorMinStops = 50
	}
	if a.CorridorDefaultLimit <= 0 {
		a.CorridorDefaultLimit = 20
	}
	if a.CorridorMaxLimit <= 0 {
		a.CorridorMaxLimit = 50
	}
	if a.MilesPerLngDegree <= 0 {
		a.MilesPerLngDegree = 54.0
	}
	if a.TimeWindowCorridors <= 0 {
		a.TimeWindowCorridors = 10
	}
	if a.HotHourRatio <= 0 {
		a.HotHourRatio = 1.5
	}
	if a.SafeHourRatio <= 0 {
		a.SafeHourRatio = 0.5
	}
	if a.MaxWindows <= 0 {
		a.MaxWindows = 3
	}
	if a.RiskCriticalPerMile <= 0 {
		a.RiskCriticalPerMile = 15
	}
	if a.RiskHighPerMile <= 0 {
		a.RiskHighPerMile = 8
	}
	if a.RiskModeratePerMile <= 0 {
		a.RiskModeratePerMile = 4
	}
	if a.StrictAvgBelow <= 0 {
		a.StrictAvgBelow = 12
	}
	if a.ModerateAvgBelow <= 0 {
		a.ModerateAvgBelow = 15
	}
	if a.LocationMinSamples <= 0 {
		a.LocationMinSamples = 20
	}
	if a.SpeedLimitMinSamples <= 0 {
		a.SpeedLimitMinSamples = 100
	}
	if a.LocationRankSize <= 0 {
		a.LocationRankSize = 10
	}
	if a.PatternMinSamples <= 0 {
		a.PatternMinSamples = 50
	}
	if a.HourClusterCutoff <= 0 {
		a.HourClusterCutoff = 0.5
	}
	if a.DayClusterCutoff <= 0 {
		a.DayClusterCutoff = 0.4
	}
	if a.MethodZoneRatio <= 0 {
		a.MethodZoneRatio = 2.0
	}
	if a.MethodZoneMinShare <= 0 {
		a.MethodZoneMinShare = 0.5
	}
	if a.QuotaBoundaryRatio <= 0 {
		a.QuotaBoundaryRatio = 1.25
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Analytics.SafeHourRatio >= cfg.Analytics.HotHourRatio {
		return fmt.Errorf("ANALYTICS_SAFE_HOUR_RATIO must be below ANALYTICS_HOT_HOUR_RATIO")
	}
	return nil
}
