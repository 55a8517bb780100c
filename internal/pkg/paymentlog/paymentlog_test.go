package paymentlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
)

type fakeDynamo struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestGormSink(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	sink := NewGormSink(db)

	entry := &models.PaymentLog{
		EventType: models.PaymentEventCompleted,
		OrderID:   "order-1",
		VendorID:  "vendor-1",
		Status:    "active",
		Amount:    "2500",
	}
	require.NoError(t, sink.Append(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	var stored models.PaymentLog
	require.NoError(t, db.First(&stored, "order_id = ?", "order-1").Error)
	assert.Equal(t, models.PaymentEventCompleted, stored.EventType)
	assert.Equal(t, "2500", stored.Amount)
}

func TestDynamoSink(t *testing.T) {
	fake := &fakeDynamo{}
	sink := NewDynamoSink(fake, "payment_logs")
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	entry := &models.PaymentLog{
		ID:        "log-1",
		EventType: models.PaymentEventFailed,
		OrderID:   "order-2",
		Status:    "payment_failed",
		Timestamp: ts,
	}
	require.NoError(t, sink.Append(context.Background(), entry))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "payment_logs", *in.TableName)
	assert.Equal(t, "attribute_not_exists(#id)", *in.ConditionExpression)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "log-1"}, in.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: models.PaymentEventFailed}, in.Item["event_type"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339Nano)}, in.Item["timestamp"])
}

func TestDynamoSinkError(t *testing.T) {
	fake := &fakeDynamo{err: errors.New("throttled")}
	err := NewDynamoSink(fake, "payment_logs").Append(context.Background(), &models.PaymentLog{EventType: models.PaymentEventCancelled})
	assert.EqualError(t, err, "throttled")
}

func TestNewUnknownSink(t *testing.T) {
	_, err := New(context.Background(), Config{Sink: "kafka"}, nil)
	assert.Error(t, err)

	sink, err := New(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GormSink{}, sink)
}
