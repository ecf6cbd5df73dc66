package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	defaultPrefix = "converge/reports"
	defaultRegion = "us-east-1"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// s3Backend implements Backend for AWS S3 + optional DynamoDB locking.
type s3Backend struct {
	bucket    string
	prefix    string
	region    string
	lockTable string
	profile   string

	s3Client s3API
	dbClient dynamoAPI
	lockID   string
}

func newS3Backend(ctx context.Context, cfg *BackendConfig) (Backend, error) {
	b, err := s3BackendFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.initClients(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backend: %w", err)
	}
	return b, nil
}

func s3BackendFromConfig(cfg *BackendConfig) (*s3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}
	b := &s3Backend{
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		region:    cfg.Region,
		lockTable: cfg.LockTable,
		profile:   cfg.Profile,
	}
	if b.prefix == "" {
		b.prefix = defaultPrefix
	}
	if b.region == "" {
		b.region = defaultRegion
	}
	return b, nil
}

func (b *s3Backend) initClients(ctx context.Context) error {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(b.region))
	if b.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	b.s3Client = s3.NewFromConfig(cfg)
	if b.lockTable != "" {
		b.dbClient = dynamodb.NewFromConfig(cfg)
	}
	return nil
}

func (b *s3Backend) key(name string) string {
	return path.Join(b.prefix, name)
}

func (b *s3Backend) Write(ctx context.Context, r *Report) error {
	data, err := encode(r)
	if err != nil {
		return err
	}

	for _, name := range []string{r.RunID + ".json", latestName} {
		_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(b.bucket),
			Key:                  aws.String(b.key(name)),
			Body:                 bytes.NewReader(data),
			ContentType:          aws.String("application/json"),
			ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		})
		if err != nil {
			return fmt.Errorf("failed to write report to s3://%s/%s: %w", b.bucket, b.key(name), err)
		}
	}
	return nil
}

func (b *s3Backend) Latest(ctx context.Context) (*Report, error) {
	key := b.key(latestName)
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("failed to read report from s3://%s/%s: %w", b.bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return decode(data)
}

func (b *s3Backend) Lock(ctx context.Context) error {
	if b.lockTable == "" {
		return nil // No locking without DynamoDB
	}

	lockID := fmt.Sprintf("converge-%d-%d", os.Getpid(), time.Now().UnixNano())
	_, err := b.dbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.lockTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: b.prefix},
			"Info":    &dbtypes.AttributeValueMemberS{Value: lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return fmt.Errorf("%w. If this is an error, manually delete the lock item with LockID=%q from DynamoDB table %q",
				ErrLocked, b.prefix, b.lockTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	b.lockID = lockID
	return nil
}

func (b *s3Backend) Unlock(ctx context.Context) error {
	if b.lockTable == "" || b.lockID == "" {
		return nil
	}

	_, err := b.dbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.lockTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: b.prefix},
		},
		ConditionExpression: aws.String("Info = :id"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":id": &dbtypes.AttributeValueMemberS{Value: b.lockID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	b.lockID = ""
	return nil
}
