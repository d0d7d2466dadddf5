package config

import (
	"encoding/json"
	"os"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Parsed values
// are copied into the runtime Config.
type JsonConfig struct {
	ServerEndpointAddr string `json:"server_endpoint_addr"`
	DownloadDir        string `json:"download_dir"`
	MaxActiveTransfers int    `json:"max_active_transfers"`
	MaxRetries         int    `json:"max_retries"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. Zero-valued JSON fields leave the config untouched.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DownloadDir != "" {
		cfg.DownloadDir = jc.DownloadDir
	}
	if jc.MaxActiveTransfers > 0 {
		cfg.MaxActiveTransfers = jc.MaxActiveTransfers
	}
	if jc.MaxRetries > 0 {
		cfg.MaxRetries = jc.MaxRetries
	}
}
