// Package preflight verifies cloud restore targets before dispatch. A restore
// that fails hours into an upload because of a typo'd bucket name is the worst
// failure mode a console can offer, so targets are probed up front where the
// provider allows it.
package preflight

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/driftbyte/snapharbor/internal/models"
)

// b2EndpointFormat is Backblaze's S3-compatible endpoint; B2 buckets are
// reachable through the standard S3 API.
const b2EndpointFormat = "https://s3.%s.backblazeb2.com"

// defaultB2Region is used when the target does not name a region.
const defaultB2Region = "us-west-004"

// resticSchemes are the repository URL schemes restic accepts. A bare path is
// also valid (local repository on the backup server).
var resticSchemes = []string{"s3:", "b2:", "sftp:", "rest:", "azure:", "gs:", "swift:"}

// Checker probes cloud targets. S3 and B2 targets get a HeadBucket round
// trip with the target's own credentials; restic targets get a syntax check
// only, since the repository password must never leave the submission path.
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a checker with the given probe timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Check verifies the target is plausibly reachable. A nil error means the
// bucket answered (or, for restic, the URL is well-formed); it is not a
// guarantee the upload will succeed.
func (c *Checker) Check(ctx context.Context, target *models.CloudTarget) error {
	if target == nil {
		return fmt.Errorf("cloud target is required")
	}
	if err := target.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch target.Type {
	case models.CloudTargetS3:
		return c.checkS3(ctx, target.S3)
	case models.CloudTargetB2:
		return c.checkB2(ctx, target.B2)
	case models.CloudTargetRestic:
		return checkResticURL(target.Restic.Repository)
	}
	return fmt.Errorf("unknown cloud target type %q", target.Type)
}

func (c *Checker) checkS3(ctx context.Context, target *models.S3Target) error {
	client, err := newS3Client(target.Region, target.Endpoint, target.AccessKeyID, target.SecretAccessKey)
	if err != nil {
		return err
	}
	return headBucket(ctx, client, target.Bucket)
}

func (c *Checker) checkB2(ctx context.Context, target *models.B2Target) error {
	region := target.Region
	if region == "" {
		region = defaultB2Region
	}
	endpoint := fmt.Sprintf(b2EndpointFormat, region)

	client, err := newS3Client(region, endpoint, target.AccountID, target.ApplicationKey)
	if err != nil {
		return err
	}
	return headBucket(ctx, client, target.Bucket)
}

func newS3Client(region, endpoint, accessKey, secretKey string) (*s3.S3, error) {
	awsConfig := &aws.Config{
		Region:      aws.String(regionOrDefault(region)),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	}

	// Custom endpoint for S3-compatible storage (MinIO, B2, etc.)
	if endpoint != "" {
		awsConfig.Endpoint = aws.String(endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}

func headBucket(ctx context.Context, client *s3.S3, bucket string) error {
	_, err := client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		log.Printf("[Preflight] Bucket %s is reachable", bucket)
		return nil
	}

	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, "NotFound":
			return fmt.Errorf("bucket %q does not exist", bucket)
		case "Forbidden", "AccessDenied":
			return fmt.Errorf("access to bucket %q was denied; check the credentials", bucket)
		case "RequestCanceled":
			return fmt.Errorf("bucket %q did not answer in time", bucket)
		}
	}
	return fmt.Errorf("bucket %q is not reachable: %w", bucket, err)
}

// checkResticURL validates repository URL syntax. There is nothing to probe:
// the backup server holds the connection, the console only relays the URL.
func checkResticURL(repository string) error {
	repo := strings.TrimSpace(repository)
	if repo == "" {
		return fmt.Errorf("restic repository URL is required")
	}
	if strings.HasPrefix(repo, "/") {
		return nil // local path on the backup server
	}
	for _, scheme := range resticSchemes {
		if strings.HasPrefix(repo, scheme) {
			if len(repo) == len(scheme) {
				return fmt.Errorf("restic repository %q has no location after the scheme", repo)
			}
			return nil
		}
	}
	return fmt.Errorf("restic repository %q must be an absolute path or use one of: %s", repo, strings.Join(resticSchemes, " "))
}
