package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

// ErrObjectNotFound is returned when the requested key does not exist in the
// bucket.
var ErrObjectNotFound = errors.New("object not found in s3 bucket")

// S3Params identify an object to read from S3.
type S3Params struct {
	Region          string
	Bucket          string
	Key             string
	AccessKeyID     string
	SecretAccessKey string
	// NumRetries is the number of full retries for the download. Zero means
	// no retry.
	NumRetries int
}

// S3Object opens the object for reading and returns its body and size. The
// caller closes the body; streaming it into an upload method transfers the
// object without staging it on disk.
func S3Object(ctx context.Context, params S3Params, logger log.Logger) (io.ReadCloser, int64, error) {
	client, err := newS3Client(ctx, params, logger)
	if err != nil {
		return nil, 0, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(params.Bucket),
		Key:    aws.String(params.Key),
	})
	if err != nil {
		return nil, 0, mapS3Error(err)
	}

	return result.Body, aws.ToInt64(result.ContentLength), nil
}

// S3ObjectToFile downloads the object to downloadPath using the s3 manager,
// which fetches parts concurrently. Prefer this over S3Object for large
// objects that will be uploaded more than once.
func S3ObjectToFile(ctx context.Context, params S3Params, downloadPath string, logger log.Logger) error {
	client, err := newS3Client(ctx, params, logger)
	if err != nil {
		return err
	}

	return retry.Times(uint(params.NumRetries)).Wait(5 * time.Second).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			logger.Debugf("Retrying S3 download (attempt %d)", attempt+1)
		}

		file, err := os.Create(downloadPath)
		if err != nil {
			return fmt.Errorf("create file: %w", err), true
		}
		defer func() {
			_ = file.Close()
		}()

		downloader := manager.NewDownloader(client)
		_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
			Bucket: aws.String(params.Bucket),
			Key:    aws.String(params.Key),
		})
		if err != nil {
			err = mapS3Error(err)
			if errors.Is(err, ErrObjectNotFound) {
				return err, true
			}
			return fmt.Errorf("download object: %w", err), false
		}

		return nil, true
	})
}

func newS3Client(ctx context.Context, params S3Params, logger log.Logger) (*s3.Client, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if params.Key == "" {
		return nil, fmt.Errorf("key must not be empty")
	}
	if params.Region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
	}
	if params.AccessKeyID != "" && params.SecretAccessKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg), nil
}

func mapS3Error(err error) error {
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.(type) {
		case *types.NoSuchKey, *types.NotFound:
			return ErrObjectNotFound
		default:
			return fmt.Errorf("aws api error: %w", err)
		}
	}
	return err
}
