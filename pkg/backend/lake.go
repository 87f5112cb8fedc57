// pkg/backend/lake.go
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	glueTypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/model"
)

// S3API is the subset of the S3 client the lake uploader uses directly.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// GlueAPI is the subset of the Glue client the lake uploader uses.
type GlueAPI interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
	UpdateTable(ctx context.Context, params *glue.UpdateTableInput, optFns ...func(*glue.Options)) (*glue.UpdateTableOutput, error)
}

// ObjectUploader uploads one object body to S3. Satisfied by
// *manager.Uploader.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// LakeUploader writes batches as immutable parquet objects into a
// pid-partitioned layout under {base}/{table}/ and keeps the Glue catalog
// entry {database}.{table} in sync. Appends by default; in overwrite mode
// the table's dataset prefix is cleared before the first write.
type LakeUploader struct {
	s3        S3API
	uploader  ObjectUploader
	glue      GlueAPI
	bucket    string
	prefix    string
	database  string
	overwrite bool
	timeout   time.Duration
	logger    *zap.Logger

	// tables already cleared this run, so overwrite mode wipes each
	// dataset once rather than once per file.
	cleared map[string]bool
}

// NewLakeUploader creates a lake uploader. basePath is an s3:// URI.
func NewLakeUploader(
	s3api S3API,
	uploader ObjectUploader,
	glueapi GlueAPI,
	basePath, database string,
	overwrite bool,
	timeout time.Duration,
	logger *zap.Logger,
) (*LakeUploader, error) {
	bucket, prefix, err := splitS3Path(basePath)
	if err != nil {
		return nil, err
	}
	return &LakeUploader{
		s3:        s3api,
		uploader:  uploader,
		glue:      glueapi,
		bucket:    bucket,
		prefix:    prefix,
		database:  database,
		overwrite: overwrite,
		timeout:   timeout,
		logger:    logger.Named("lake-uploader"),
		cleared:   make(map[string]bool),
	}, nil
}

func splitS3Path(basePath string) (bucket, prefix string, err error) {
	trimmed, ok := strings.CutPrefix(basePath, "s3://")
	if !ok {
		return "", "", fmt.Errorf("lake base path %q is not an s3:// URI", basePath)
	}
	bucket, prefix, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("lake base path %q has no bucket", basePath)
	}
	prefix = strings.Trim(prefix, "/")
	return bucket, prefix, nil
}

// tablePrefix returns the object key prefix of a table's dataset.
func (u *LakeUploader) tablePrefix(table string) string {
	if u.prefix == "" {
		return table + "/"
	}
	return u.prefix + "/" + table + "/"
}

// Upload writes the batch as one parquet object partitioned by pid and
// registers or updates the catalog entry.
func (u *LakeUploader) Upload(ctx context.Context, b *model.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("table %s: upload panicked: %v", b.Table, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	if u.overwrite && !u.cleared[b.Table] {
		if err := u.clearDataset(ctx, b.Table); err != nil {
			return fmt.Errorf("table %s: clearing dataset for overwrite: %w", b.Table, err)
		}
		u.cleared[b.Table] = true
	}

	body, err := writeParquet(b)
	if err != nil {
		return fmt.Errorf("table %s: encoding parquet: %w", b.Table, err)
	}

	key := fmt.Sprintf("%spid=%d/%s.parquet", u.tablePrefix(b.Table), b.PID, uuid.NewString())
	if _, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}); err != nil {
		return fmt.Errorf("table %s: uploading s3://%s/%s: %w", b.Table, u.bucket, key, err)
	}

	if err := u.registerTable(ctx, b); err != nil {
		return fmt.Errorf("table %s: updating catalog: %w", b.Table, err)
	}

	u.logger.Info("Uploaded batch",
		zap.String("table", b.Table),
		zap.Int64("pid", b.PID),
		zap.Int("rows", b.NumRows()),
		zap.String("key", key))
	return nil
}

// clearDataset deletes every object under the table's prefix.
func (u *LakeUploader) clearDataset(ctx context.Context, table string) error {
	prefix := u.tablePrefix(table)
	var token *string
	for {
		out, err := u.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(u.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("listing %s: %w", prefix, err)
		}
		if len(out.Contents) > 0 {
			ids := make([]s3Types.ObjectIdentifier, len(out.Contents))
			for i, obj := range out.Contents {
				ids[i] = s3Types.ObjectIdentifier{Key: obj.Key}
			}
			if _, err := u.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(u.bucket),
				Delete: &s3Types.Delete{Objects: ids},
			}); err != nil {
				return fmt.Errorf("deleting under %s: %w", prefix, err)
			}
		}
		if out.NextContinuationToken == nil {
			return nil
		}
		token = out.NextContinuationToken
	}
}

// writeParquet encodes the batch as a single parquet file in memory. The
// pid column is excluded from the file: it lives in the partition path.
func writeParquet(b *model.Batch) ([]byte, error) {
	nodes := make(map[string]parquet.Node, len(b.Columns))
	for _, c := range b.Columns {
		if c.Name == "pid" {
			continue
		}
		nodes[c.Name] = parquetNode(c.Kind)
	}
	if len(nodes) == 0 {
		return nil, errors.New("batch has no data columns")
	}
	schema := parquet.NewSchema(b.Table, parquet.Group(nodes))

	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[map[string]any](&buf, schema)
	for i := 0; i < b.NumRows(); i++ {
		row := b.Row(i)
		delete(row, "pid")
		for name, v := range row {
			if v == nil {
				delete(row, name) // absent optional value encodes as null
				continue
			}
			if t, ok := v.(time.Time); ok {
				row[name] = t.UnixMilli()
			}
		}
		if _, err := pw.Write([]map[string]any{row}); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("closing parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

func parquetNode(k model.Kind) parquet.Node {
	switch k {
	case model.KindInt64:
		return parquet.Optional(parquet.Int(64))
	case model.KindFloat64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case model.KindTimestamp:
		return parquet.Optional(parquet.Timestamp(parquet.Millisecond))
	default:
		return parquet.Optional(parquet.String())
	}
}

// registerTable creates or updates the Glue catalog entry for the table.
func (u *LakeUploader) registerTable(ctx context.Context, b *model.Batch) error {
	input := u.tableInput(b)

	_, err := u.glue.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(u.database),
		Name:         aws.String(b.Table),
	})
	if err != nil {
		var notFound *glueTypes.EntityNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("looking up %s.%s: %w", u.database, b.Table, err)
		}
		if _, err := u.glue.CreateTable(ctx, &glue.CreateTableInput{
			DatabaseName: aws.String(u.database),
			TableInput:   input,
		}); err != nil {
			return fmt.Errorf("creating %s.%s: %w", u.database, b.Table, err)
		}
		return nil
	}

	if _, err := u.glue.UpdateTable(ctx, &glue.UpdateTableInput{
		DatabaseName: aws.String(u.database),
		TableInput:   input,
	}); err != nil {
		return fmt.Errorf("updating %s.%s: %w", u.database, b.Table, err)
	}
	return nil
}

func (u *LakeUploader) tableInput(b *model.Batch) *glueTypes.TableInput {
	var cols []glueTypes.Column
	for _, c := range b.Columns {
		if c.Name == "pid" {
			continue
		}
		cols = append(cols, glueTypes.Column{
			Name: aws.String(c.Name),
			Type: aws.String(glueType(c.Kind)),
		})
	}

	location := fmt.Sprintf("s3://%s/%s", u.bucket, u.tablePrefix(b.Table))

	return &glueTypes.TableInput{
		Name:      aws.String(b.Table),
		TableType: aws.String("EXTERNAL_TABLE"),
		PartitionKeys: []glueTypes.Column{
			{Name: aws.String("pid"), Type: aws.String("bigint")},
		},
		StorageDescriptor: &glueTypes.StorageDescriptor{
			Columns:      cols,
			Location:     aws.String(location),
			InputFormat:  aws.String("org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"),
			OutputFormat: aws.String("org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"),
			SerdeInfo: &glueTypes.SerDeInfo{
				SerializationLibrary: aws.String("org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"),
			},
		},
	}
}

func glueType(k model.Kind) string {
	switch k {
	case model.KindInt64:
		return "bigint"
	case model.KindFloat64:
		return "double"
	case model.KindTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}
