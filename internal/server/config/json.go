package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/flagx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/timex"
)

// JsonConfig is the intermediate DTO for JSON config files. Interval fields
// use timex.Duration so both "25s" strings and integer nanoseconds parse.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	CapabilityValidityDuration  timex.Duration `json:"capability_validity_duration"`
	MaxFileSize                 int64          `json:"max_file_size"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	KafkaBrokers                string         `json:"kafka_brokers"`
	KafkaTopic                  string         `json:"kafka_topic"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any, into the provided Config. Unreadable or invalid
// files panic: a misconfigured server must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.CapabilityValidityDuration = c.CapabilityValidityDuration.Duration
	config.MaxFileSize = c.MaxFileSize
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.KafkaTopic = c.KafkaTopic
	if c.KafkaBrokers != "" {
		config.KafkaBrokers = strings.Split(c.KafkaBrokers, ",")
	}
}
