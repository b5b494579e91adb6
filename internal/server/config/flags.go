package config

import (
	"flag"
	"os"
	"time"

	"filevault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-k string   blob backend: "disk" or "s3"
//	-f string   blob root directory for the disk backend
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w bool     run a thumbnail worker inside the server process
//	-i int      worker poll interval, seconds
//	-m int      max delivery attempts per job
//	-t int      per-derivative generation timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-f", "-u", "-p", "-b", "-g", "-e", "-w", "-i", "-m", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend (disk or s3)")
	fs.StringVar(&config.BlobRoot, "f", config.BlobRoot, "blob root directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.BoolVar(&config.RunWorker, "w", config.RunWorker, "run embedded thumbnail worker")

	pollInterval := fs.Int("i", int(config.WorkerPollInterval.Seconds()), "worker poll interval (in seconds)")
	fs.IntVar(&config.WorkerMaxAttempts, "m", config.WorkerMaxAttempts, "max delivery attempts per job")
	thumbTimeout := fs.Int("t", int(config.ThumbnailTimeout.Seconds()), "per-derivative timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.WorkerPollInterval = time.Duration(*pollInterval) * time.Second
	config.ThumbnailTimeout = time.Duration(*thumbTimeout) * time.Second
}
