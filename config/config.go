package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"
const STORAGE_TYPE_FILE StorageType = "file"

type EncoderDecoderType string

const JSON_ENCODER_DECODER EncoderDecoderType = "JSON"
const YAML_ENCODER_DECODER EncoderDecoderType = "YAML"

type Config struct {
	RedisConfig         RedisStorageConfig
	StorageType         StorageType
	EncoderDecoderType  EncoderDecoderType
	WorkflowDir         string
	HttpPort            int
	ExecutorCapacity    int
	MaxTransitions      int
	MaxHistorySize      int
	WorkflowCacheSize   int
	TransitionCacheSize int
	ConditionCacheSize  int
	TransitionCacheTTL  time.Duration
	PromptTimeout       time.Duration
	PromptsPerMinute    int
	RunRetention        time.Duration
	MaintenanceInterval int
	AnalyticsFile       string
	LogLevel            string
	CostTracking        bool
}

type RedisStorageConfig struct {
	Addrs     []string
	Password  string
	DB        int
	Namespace string
}

func Default() Config {
	return Config{
		RedisConfig: RedisStorageConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "wfhammer",
		},
		StorageType:         STORAGE_TYPE_INMEM,
		EncoderDecoderType:  JSON_ENCODER_DECODER,
		HttpPort:            8080,
		ExecutorCapacity:    512,
		MaxTransitions:      1000,
		MaxHistorySize:      10000,
		WorkflowCacheSize:   100,
		TransitionCacheSize: 1000,
		ConditionCacheSize:  500,
		TransitionCacheTTL:  5 * time.Minute,
		PromptTimeout:       300 * time.Second,
		PromptsPerMinute:    100,
		RunRetention:        time.Hour,
		MaintenanceInterval: 30,
		LogLevel:            "info",
		CostTracking:        true,
	}
}
