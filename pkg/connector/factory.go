// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/backend"
	"github.com/mobilesensing/device-ingress/pkg/config"
)

// UploaderFactory creates the backend uploader selected by configuration
type UploaderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewUploaderFactory creates a new uploader factory
func NewUploaderFactory(cfg *config.Config, logger *zap.Logger) *UploaderFactory {
	return &UploaderFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateWarehouseUploader connects to the warehouse and wraps it in the
// warehouse adapter with a fresh per-run schema cache. The returned
// connector is shared for the whole run; the caller closes it.
func (f *UploaderFactory) CreateWarehouseUploader(ctx context.Context) (*backend.WarehouseUploader, *WarehouseConnector, error) {
	f.logger.Info("Creating warehouse uploader")

	conn, err := NewWarehouseConnector(ctx, f.cfg.Warehouse)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create warehouse connector: %w", err)
	}
	if err := conn.Validate(); err != nil {
		conn.Close()
		return nil, nil, err
	}

	uploader := backend.NewWarehouseUploader(conn, backend.NewSchemaCache(), f.cfg.UploadTimeout, f.logger)
	return uploader, conn, nil
}

// CreateLakeUploader builds the S3/Glue lake adapter from the ambient AWS
// credential chain.
func (f *UploaderFactory) CreateLakeUploader(ctx context.Context) (*backend.LakeUploader, error) {
	f.logger.Info("Creating lake uploader")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.cfg.Lake.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return backend.NewLakeUploader(
		s3Client,
		manager.NewUploader(s3Client),
		glue.NewFromConfig(awsCfg),
		f.cfg.Lake.BasePath,
		f.cfg.Lake.Database,
		f.cfg.Lake.Overwrite,
		f.cfg.UploadTimeout,
		f.logger,
	)
}
