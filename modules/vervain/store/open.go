// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vervain-vcs/vervain/modules/vervain/config"
)

// Open constructs the Blob implementation named by cfg.Kind, the single
// switchboard every backend-selection config (object store, op store) goes
// through so adding a new Kind only touches one place.
func Open(ctx context.Context, cfg config.BlobConfig) (Blob, error) {
	switch cfg.Kind {
	case config.KindLocal, "":
		return NewLocal(cfg.Dir)
	case config.KindMemory:
		return NewMemory(), nil
	case config.KindGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: gcs client: %w", err)
		}
		return NewGCS(client, cfg.Bucket, cfg.Prefix), nil
	case config.KindS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("store: aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = &cfg.Endpoint
			}
		})
		return NewS3(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("store: unknown backend kind %q", cfg.Kind)
	}
}
