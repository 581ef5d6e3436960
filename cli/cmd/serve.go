package cmd

import (
	"context"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/service"
	"github.com/wkalt/lakelet/storage"
)

var (
	servePort               int
	serveLogLevel           string
	serveCheckpointInterval int
	serveMaxFileBytes       int64
	serveUser               string
	serveAllowedOrigins     []string

	// Directory storage provider options
	serveDataDir string

	// S3 storage provider options
	serveS3Endpoint  string
	serveS3AccessKey string
	serveS3SecretKey string
	serveS3Bucket    string
	serveS3UseTLS    bool
	serveS3Region    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lakelet server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logLevel := slog.LevelInfo
		switch serveLogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "info":
			logLevel = slog.LevelInfo
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			bailf("invalid log level: %s", serveLogLevel)
		}
		s3requested := serveS3Endpoint != "" ||
			serveS3AccessKey != "" ||
			serveS3SecretKey != "" ||
			serveS3Bucket != ""
		if serveDataDir != "" && s3requested {
			bailf("cannot specify both --data-dir and S3 options")
		}
		if serveDataDir == "" && !s3requested {
			bailf("must specify either --data-dir or S3 options")
		}

		var store storage.Provider
		if serveDataDir == "" {
			mc, err := minio.New(serveS3Endpoint, &minio.Options{
				Creds:  credentials.NewStaticV4(serveS3AccessKey, serveS3SecretKey, ""),
				Secure: serveS3UseTLS,
				Region: serveS3Region,
			})
			if err != nil {
				bailf("error creating S3 client: %s", err)
			}
			store = storage.NewS3Store(mc, serveS3Bucket)
		} else {
			var err error
			store, err = storage.NewDirectoryStore(serveDataDir)
			if err != nil {
				bailf("error creating directory store: %s", err)
			}
		}
		opts := []service.Option{
			service.WithPort(servePort),
			service.WithLogLevel(logLevel),
			service.WithStorageProvider(store),
			service.WithCheckpointInterval(serveCheckpointInterval),
			service.WithUser(serveUser),
		}
		if serveMaxFileBytes > 0 {
			opts = append(opts, service.WithMaxFileBytes(serveMaxFileBytes))
		}
		if len(serveAllowedOrigins) > 0 {
			opts = append(opts, service.WithAllowedOrigins(serveAllowedOrigins))
		}
		svc := service.NewLakelet(opts...)
		if err := svc.Start(ctx); err != nil {
			bailf("Shutdown error: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntVarP(&servePort, "port", "p", 8089, "Port to listen on")
	serveCmd.PersistentFlags().StringVarP(&serveDataDir, "data-dir", "d", "", "Data directory (for directory storage)")
	serveCmd.PersistentFlags().StringVarP(&serveLogLevel, "log-level", "l", "info", "Log level")
	serveCmd.PersistentFlags().IntVarP(&serveCheckpointInterval, "checkpoint-interval", "", 10, "Commits between log checkpoints")
	serveCmd.PersistentFlags().Int64VarP(&serveMaxFileBytes, "max-file-bytes", "", 0, "Target data file size in bytes")
	serveCmd.PersistentFlags().StringVarP(&serveUser, "user", "u", "unknown", "User recorded in commit metadata")

	serveCmd.PersistentFlags().StringSliceVarP(&serveAllowedOrigins, "allowed-origins", "o", []string{}, "Allowed origins")

	serveCmd.PersistentFlags().StringVar(&serveS3Endpoint, "s3-endpoint", "", "S3 endpoint (for S3 storage)")
	serveCmd.PersistentFlags().StringVar(&serveS3AccessKey, "s3-access-key-id", "", "S3 access key ID (for S3 storage)")
	serveCmd.PersistentFlags().StringVar(&serveS3SecretKey, "s3-secret-key", "", "S3 secret key (for S3 storage)")
	serveCmd.PersistentFlags().StringVar(&serveS3Bucket, "s3-bucket", "", "S3 bucket (for S3 storage)")
	serveCmd.PersistentFlags().BoolVarP(&serveS3UseTLS, "s3-tls", "t", false, "Use TLS (for S3 storage)")
	serveCmd.PersistentFlags().StringVar(&serveS3Region, "s3-region", "", "S3 region")
}
