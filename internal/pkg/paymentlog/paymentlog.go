// Package paymentlog appends payment webhook outcomes to an audit sink.
package paymentlog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

const (
	SinkDB       = "db"
	SinkDynamoDB = "dynamodb"
)

// Sink stores payment log entries. Entries are never updated.
type Sink interface {
	Append(ctx context.Context, entry *models.PaymentLog) error
}

type Config struct {
	Sink     string
	Table    string
	Region   string
	Endpoint string
}

func LoadConfig() Config {
	return Config{
		Sink:     env.GetEnv("PAYMENT_LOG_SINK", SinkDB),
		Table:    env.GetEnv("DYNAMODB_PAYMENT_LOG_TABLE", "payment_logs"),
		Region:   env.GetEnv("AWS_REGION", "us-east-1"),
		Endpoint: env.GetEnv("DYNAMODB_ENDPOINT", ""),
	}
}

// New builds the sink cfg selects.
func New(ctx context.Context, cfg Config, db *gorm.DB) (Sink, error) {
	switch cfg.Sink {
	case "", SinkDB:
		return NewGormSink(db), nil
	case SinkDynamoDB:
		client, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewDynamoSink(client, cfg.Table), nil
	}
	return nil, fmt.Errorf("unknown PAYMENT_LOG_SINK %q", cfg.Sink)
}

func stamp(entry *models.PaymentLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
}

// GormSink writes to the payment_logs table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Append(ctx context.Context, entry *models.PaymentLog) error {
	stamp(entry)
	return s.db.WithContext(ctx).Create(entry).Error
}

// PutItemAPI is the slice of the DynamoDB client the sink needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoSink writes one item per entry, keyed by id.
type DynamoSink struct {
	client PutItemAPI
	table  string
}

func NewDynamoSink(client PutItemAPI, table string) *DynamoSink {
	return &DynamoSink{client: client, table: table}
}

func (s *DynamoSink) Append(ctx context.Context, entry *models.PaymentLog) error {
	stamp(entry)
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal payment log: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	return err
}

// NewDynamoClient builds a client from AWS_* variables. DYNAMODB_ENDPOINT
// points it at a local DynamoDB, which still wants some credentials.
func NewDynamoClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			env.GetEnv("AWS_ACCESS_KEY_ID", "local"),
			env.GetEnv("AWS_SECRET_ACCESS_KEY", "local"),
			"",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
