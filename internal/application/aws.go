package application

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"thirdcoast.systems/scribe/internal/config"
)

// LoadAWSConfig resolves credentials through the default chain, pinned to AWS_REGION when set.
func LoadAWSConfig(ctx context.Context, conf config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if conf.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(conf.AWSRegion))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NewSQSClient honours AWS_ENDPOINT_URL so the queue can point at a local emulator.
func NewSQSClient(awsCfg aws.Config, conf config.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if conf.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(conf.AWSEndpointURL)
		}
	})
}

// NewS3Client switches to path-style addressing when AWS_ENDPOINT_URL is set.
func NewS3Client(awsCfg aws.Config, conf config.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(conf.AWSEndpointURL)
			o.UsePathStyle = true
		}
	})
}
