package config

import (
	"encoding/json"
	"os"
	"time"

	"filevault/internal/flagx"
)

// JsonConfig is the DTO read from an optional JSON configuration file.
// Durations are strings understood by time.ParseDuration ("1s", "5m").
// After unmarshalling, set fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	DatabaseDSN      string `json:"database_dsn"`

	BlobBackend string `json:"blob_backend"`
	BlobRoot    string `json:"blob_root"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	SessionCacheSize int    `json:"session_cache_size"`
	SessionCacheTTL  string `json:"session_cache_ttl"`

	RunWorker          *bool  `json:"run_worker"`
	WorkerPollInterval string `json:"worker_poll_interval"`
	WorkerMaxAttempts  int    `json:"worker_max_attempts"`
	ThumbnailTimeout   string `json:"thumbnail_timeout"`
	JobStaleAfter      string `json:"job_stale_after"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c / -config flags; when
// neither is set, no JSON file is loaded. Unset fields keep their current
// values. An unreadable or invalid file panics: a half-applied
// configuration is worse than a crash at startup.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.BlobRoot, c.BlobRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.SessionCacheSize > 0 {
		config.SessionCacheSize = c.SessionCacheSize
	}
	if c.WorkerMaxAttempts > 0 {
		config.WorkerMaxAttempts = c.WorkerMaxAttempts
	}
	if c.RunWorker != nil {
		config.RunWorker = *c.RunWorker
	}

	setDuration(&config.SessionCacheTTL, c.SessionCacheTTL)
	setDuration(&config.WorkerPollInterval, c.WorkerPollInterval)
	setDuration(&config.ThumbnailTimeout, c.ThumbnailTimeout)
	setDuration(&config.JobStaleAfter, c.JobStaleAfter)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
