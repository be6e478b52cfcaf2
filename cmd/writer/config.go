package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the teacher's json-overridable Config idiom
// (server/config.go's parseJSONConfig), sized down to the handful of knobs
// the sink actually needs.
type Config struct {
	PushPort  int    `json:"push_port"`
	ReqPort   int    `json:"req_port"`
	Format    string `json:"format"`
	DataDir   string `json:"datadir"`
	Log       string `json:"log"`
	DiskSleep int    `json:"disk_sleep_ms"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
