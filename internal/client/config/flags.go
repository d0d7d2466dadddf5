package config

import (
	"flag"
	"os"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend server
//	-d string   download directory, relative to the working directory
//	-n int      max concurrent transfers
//	-r int      automatic retry budget per transfer
//
// The function filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-n", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the server")
	fs.StringVar(&cfg.DownloadDir, "d", cfg.DownloadDir, "download directory")
	fs.IntVar(&cfg.MaxActiveTransfers, "n", cfg.MaxActiveTransfers, "max concurrent transfers")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "automatic retries per transfer")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
