package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-w int      download capability validity, minutes
//	-m int      max file size, bytes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string   Kafka brokers, comma separated
//	-o string   Kafka topic
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-w", "-m", "-u", "-p", "-b", "-g", "-e", "-k", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	capabilityValidityDuration := fs.Int("w", int(config.CapabilityValidityDuration.Minutes()), "capability_validity_duration (in minutes)")

	fs.Int64Var(&config.MaxFileSize, "m", config.MaxFileSize, "max file size in bytes")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	kafkaBrokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "Kafka brokers, comma separated")
	fs.StringVar(&config.KafkaTopic, "o", config.KafkaTopic, "Kafka topic for share events")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.CapabilityValidityDuration = time.Duration(*capabilityValidityDuration) * time.Minute
	if *kafkaBrokers != "" {
		config.KafkaBrokers = strings.Split(*kafkaBrokers, ",")
	}
}
