// Package archive writes session transcripts to S3 for later analysis.
// Archiving is best effort; a failed upload never fails the turn.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tripweaver/tripweaver/internal/session"
)

// putObjectAPI is the slice of the S3 client the archiver uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads session snapshots as JSON objects.
type Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// NewArchiver builds an archiver using the default AWS credential chain.
func NewArchiver(ctx context.Context, bucket, prefix, region string) (*Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}, nil
}

// NewArchiverWithClient builds an archiver over an existing client,
// primarily for tests.
func NewArchiverWithClient(client putObjectAPI, bucket, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Archive uploads the session as one timestamped JSON object.
func (a *Archiver) Archive(ctx context.Context, sess *session.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %q: %w", sess.ID, err)
	}

	key := a.key(sess.ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive session %q to s3://%s/%s: %w", sess.ID, a.bucket, key, err)
	}
	return nil
}

func (a *Archiver) key(sessionID string) string {
	stamp := a.now().UTC().Format("20060102T150405Z")
	if a.prefix == "" {
		return fmt.Sprintf("%s/%s.json", sessionID, stamp)
	}
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, sessionID, stamp)
}
