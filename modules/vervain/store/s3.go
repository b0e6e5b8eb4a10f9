// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// S3 is a Blob store backed by an S3-compatible bucket, laid out and
// compressed the same way GCS is: flat prefix/hex keys, zstd, no magic
// header (Local instead shards into subdirectories and prefixes a header).
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Blob = (*S3)(nil)

func NewS3(client *s3.Client, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) key(id ids.ID) string {
	hex := id.String()
	if s.prefix == "" {
		return hex
	}
	return s.prefix + "/" + hex
}

func (s *S3) Get(ctx context.Context, id ids.ID) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, verr.NotFound("blob", id.String())
		}
		return nil, verr.Backend("s3: get object", err)
	}
	zr, err := zstd.NewReader(out.Body)
	if err != nil {
		_ = out.Body.Close()
		return nil, verr.Backend("s3: zstd reader", err)
	}
	return &s3ReadCloser{zr: zr, underlying: out.Body}, nil
}

type s3ReadCloser struct {
	zr         *zstd.Decoder
	underlying io.ReadCloser
}

func (s *s3ReadCloser) Read(p []byte) (int, error) { return s.zr.Read(p) }
func (s *s3ReadCloser) Close() error {
	s.zr.Close()
	return s.underlying.Close()
}

func (s *S3) Put(ctx context.Context, id ids.ID, r io.Reader) error {
	if ok, err := s.Has(ctx, id); err != nil {
		return err
	} else if ok {
		return nil
	}
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return verr.Backend("s3: zstd writer", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return verr.Backend("s3: compress", err)
	}
	if err := zw.Close(); err != nil {
		return verr.Backend("s3: flush zstd", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return verr.Backend("s3: put object", err)
	}
	return nil
}

func (s *S3) Has(ctx context.Context, id ids.ID) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, verr.Backend("s3: head object", err)
}

func (s *S3) Delete(ctx context.Context, id ids.ID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return verr.Backend("s3: delete object", err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, fn func(ids.ID) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return verr.Backend("s3: list objects", err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if s.prefix != "" && len(name) > len(s.prefix)+1 {
				name = name[len(s.prefix)+1:]
			}
			if len(name) != ids.DigestSize*2 {
				continue
			}
			if err := fn(ids.FromHex(name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3) Close() error { return nil }
