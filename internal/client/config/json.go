package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sitekeeper/internal/flagx"
	"github.com/dmitrijs2005/sitekeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling, using timex.Duration so
// interval fields accept both "5m" and integer nanoseconds.
type JsonConfig struct {
	ServerURL         string         `json:"server_url"`
	SnapshotPath      string         `json:"snapshot_path"`
	PushQueueSize     int            `json:"push_queue_size"`
	ReconcileInterval timex.Duration `json:"reconcile_interval"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. When no flag is given, nothing
// is loaded.
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

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.ServerURL = c.ServerURL
	config.SnapshotPath = c.SnapshotPath
	config.PushQueueSize = c.PushQueueSize
	config.ReconcileInterval = time.Duration(c.ReconcileInterval.Duration)
}
