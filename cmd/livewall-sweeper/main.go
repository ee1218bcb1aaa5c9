// Command livewall-sweeper is the AWS Lambda that deletes image blobs when
// their records leave the images table stream.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jacentio/livewall/gateway"
	"github.com/jacentio/livewall/internal/logger"
	"github.com/jacentio/livewall/stream"
)

func main() {
	bucket := os.Getenv("LIVEWALL_BUCKET")
	if bucket == "" {
		fmt.Fprintln(os.Stderr, "LIVEWALL_BUCKET is required")
		os.Exit(1)
	}

	log, err := logger.New(envOr("LIVEWALL_LOG_LEVEL", "info"), "json")
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalw("load aws config", "error", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("LIVEWALL_S3_ENDPOINT"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})
	blobs := gateway.NewS3Blobs(client, nil, gateway.S3Config{
		Bucket: bucket,
		Prefix: os.Getenv("LIVEWALL_BUCKET_PREFIX"),
	})

	lambda.Start(stream.NewSweeper(blobs, log).Handle)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
