package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Logger     Logger
	Redis      RedisConfig
	S3         S3Config
	Workspace  WorkspaceConfig
	Transcoder TranscoderConfig
	Pipeline   PipelineConfig
	Delivery   DeliveryConfig
}

type ServerConfig struct {
	AppVersion string
	Port       string
	Mode       string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	RequestsKey   string
	OutboundKey   string
	RecordPrefix  string
	RecordTTL     time.Duration
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

type WorkspaceConfig struct {
	Root              string
	MinFreeDiskBytes  uint64
	MaxOpenWorkspaces int
}

type TranscoderConfig struct {
	FFmpegBin         string
	FFprobeBin        string
	SubprocessTimeout time.Duration
	KillGracePeriod   time.Duration
	MaxInputBytes     int64
	MaxInputSeconds   float64
	CPUPercent        int
	MemoryMB          int
}

type PipelineConfig struct {
	MaxConcurrent int
	MaxPerUser    int
	MaxQueueDepth int
	MaxAttempts   int
	MaxCPUPercent float64
	EvictionGrace time.Duration
}

type DeliveryConfig struct {
	MaxRetries int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.MaxConcurrent <= 0 {
		c.Pipeline.MaxConcurrent = 4
	}
	if c.Pipeline.MaxPerUser <= 0 {
		c.Pipeline.MaxPerUser = 2
	}
	if c.Pipeline.MaxQueueDepth <= 0 {
		c.Pipeline.MaxQueueDepth = 16
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.EvictionGrace <= 0 {
		c.Pipeline.EvictionGrace = time.Minute
	}
	if c.Transcoder.FFmpegBin == "" {
		c.Transcoder.FFmpegBin = "ffmpeg"
	}
	if c.Transcoder.FFprobeBin == "" {
		c.Transcoder.FFprobeBin = "ffprobe"
	}
	if c.Transcoder.SubprocessTimeout <= 0 {
		c.Transcoder.SubprocessTimeout = 10 * time.Minute
	}
	if c.Transcoder.KillGracePeriod <= 0 {
		c.Transcoder.KillGracePeriod = 10 * time.Second
	}
	if c.Transcoder.MaxInputBytes <= 0 {
		c.Transcoder.MaxInputBytes = 2 << 30
	}
	if c.Workspace.MaxOpenWorkspaces <= 0 {
		c.Workspace.MaxOpenWorkspaces = 32
	}
	if c.Delivery.MaxRetries <= 0 {
		c.Delivery.MaxRetries = 5
	}
	if c.Delivery.BackoffMin <= 0 {
		c.Delivery.BackoffMin = time.Second
	}
	if c.Delivery.BackoffMax <= 0 {
		c.Delivery.BackoffMax = time.Minute
	}
	if c.Redis.RequestsKey == "" {
		c.Redis.RequestsKey = "transcode_requests"
	}
	if c.Redis.OutboundKey == "" {
		c.Redis.OutboundKey = "transcode_outbound"
	}
	if c.Redis.RecordPrefix == "" {
		c.Redis.RecordPrefix = "job:record:"
	}
	if c.Redis.RecordTTL <= 0 {
		c.Redis.RecordTTL = 24 * time.Hour
	}
}
