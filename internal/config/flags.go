package config

import (
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// osArgs returns the process arguments without the program name.
func osArgs() []string {
	if len(os.Args) < 2 {
		return nil
	}
	return os.Args[1:]
}

// parseFlags parses the server configuration flags from args.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-c/-config json file path with configs
//	-quota-mb per-vault quota in megabytes
//	-log-level zerolog level name
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-kv-driver key-value backend (bolt, redis, postgres, sqlite)
//	-kv-dsn SQL DSN for the postgres and sqlite drivers
//	-redis-addr redis address host:port
//	-blob-driver blob backend (bolt, minio)
//	-bolt-path bbolt database file
//	-minio-endpoint minio endpoint host:port
//	-minio-bucket minio bucket name
func parseFlags(args []string) (*StructuredConfig, error) {
	var serverAddress NetAddress
	var jsonConfigPath string
	var quotaMB string
	var logLevel string
	var requestTimeout time.Duration
	var kvDriver, kvDSN, redisAddr string
	var blobDriver, boltPath string
	var minioEndpoint, minioBucket string

	fs := flag.NewFlagSet("everclaw", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.Var(&serverAddress, "a", "Net address host:port")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&quotaMB, "quota-mb", "", "Per-vault quota in megabytes")
	fs.StringVar(&logLevel, "log-level", "", "Log level")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.StringVar(&kvDriver, "kv-driver", "", "Key-value backend")
	fs.StringVar(&kvDSN, "kv-dsn", "", "SQL DSN for the key-value backend")
	fs.StringVar(&redisAddr, "redis-addr", "", "Redis address host:port")
	fs.StringVar(&blobDriver, "blob-driver", "", "Blob backend")
	fs.StringVar(&boltPath, "bolt-path", "", "bbolt database file")
	fs.StringVar(&minioEndpoint, "minio-endpoint", "", "MinIO endpoint host:port")
	fs.StringVar(&minioBucket, "minio-bucket", "", "MinIO bucket")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &StructuredConfig{
		App: App{
			VaultQuotaMB: quotaMB,
			LogLevel:     logLevel,
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{
			KV: KV{
				Driver:    kvDriver,
				DSN:       kvDSN,
				RedisAddr: redisAddr,
			},
			Blob: Blob{
				Driver:        blobDriver,
				MinioEndpoint: minioEndpoint,
				MinioBucket:   minioBucket,
			},
			Bolt: Bolt{
				Path: boltPath,
			},
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// An empty host binds all interfaces. It validates the port range, checks IP
// correctness unless host is "localhost", and returns an error if the format
// or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return errors.New("port number must be in range 1-65535")
	}

	if host != "" && host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
