package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3 stores blobs in an S3 bucket under a fixed key prefix. URI returns the
// s3:// form consumed by recognition services with bucket read access.
type S3 struct {
	s3     *s3.S3
	bucket string
	prefix string
}

func NewS3(awsSession *session.Session, bucket, prefix string) *S3 {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3{
		s3:     s3.New(awsSession),
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3) key(ref string) string {
	return s.prefix + strings.TrimPrefix(ref, "/")
}

func (s *S3) Put(ctx context.Context, name string, data []byte) (string, error) {
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(s.key(name)),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ServerSideEncryption: aws.String("AES256"),
	})
	if err != nil {
		return "", fmt.Errorf("blob: s3 put %q: %w", name, err)
	}
	return name, nil
}

func (s *S3) Get(ctx context.Context, ref string) ([]byte, error) {
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNoObject
		}
		return nil, fmt.Errorf("blob: s3 get %q: %w", ref, err)
	}
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}

func (s *S3) URI(ref string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(ref))
}

func (s *S3) Delete(ctx context.Context, ref string) error {
	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		return fmt.Errorf("blob: s3 delete %q: %w", ref, err)
	}
	return nil
}
