package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sitekeeper/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   server base URL (e.g., "http://127.0.0.1:8080")
//	-f string   snapshot sqlite file path
//	-q int      push queue size
//	-i int      reconcile interval, seconds
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-q", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerURL, "a", config.ServerURL, "server base URL")
	fs.StringVar(&config.SnapshotPath, "f", config.SnapshotPath, "snapshot file path")
	fs.IntVar(&config.PushQueueSize, "q", config.PushQueueSize, "push queue size")

	reconcileInterval := fs.Int("i", int(config.ReconcileInterval.Seconds()), "reconcile interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ReconcileInterval = time.Duration(*reconcileInterval) * time.Second
}
