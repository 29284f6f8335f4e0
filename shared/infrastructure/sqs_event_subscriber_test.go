package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSQSAPI struct {
	mock.Mock
}

func (m *mockSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.ReceiveMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQSAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.DeleteMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQSAPI) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.ChangeMessageVisibilityOutput)
	return out, args.Error(1)
}

const testQueueURL = "http://localhost:4566/000000000000/orders"

func sqsMessageFor(t *testing.T, event *events.Event, wrapInSNS bool, receiveCount string) types.Message {
	t.Helper()

	body, err := event.ToJSON()
	require.NoError(t, err)

	if wrapInSNS {
		body, err = json.Marshal(snsNotification{Type: "Notification", Message: string(body), TopicArn: testTopicArn})
		require.NoError(t, err)
	}

	return types.Message{
		MessageId:     aws.String("m-1"),
		ReceiptHandle: aws.String("rh-1"),
		Body:          aws.String(string(body)),
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameApproximateReceiveCount): receiveCount,
		},
		MessageAttributes: map[string]types.MessageAttributeValue{
			TopicAttribute: {DataType: aws.String("String"), StringValue: aws.String(event.Topic.String())},
		},
	}
}

func TestDecodeSQSMessage(t *testing.T) {
	event := events.NewEvent(models.GenerateUUID(), events.AllocateOrderResultTopic, map[string]bool{"allocation_error": true})

	for _, wrapped := range []bool{false, true} {
		decoded, err := decodeSQSMessage(sqsMessageFor(t, event, wrapped, "2"))
		require.NoError(t, err)

		assert.Equal(t, event.ID, decoded.ID)
		assert.Equal(t, event.Topic, decoded.Topic)
		v, _ := decoded.Metadata.Get(SQSReceiptHandleKey)
		assert.Equal(t, "rh-1", v)
		v, _ = decoded.Metadata.Get(SQSReceiveCountKey)
		assert.Equal(t, "2", v)
	}

	_, err := decodeSQSMessage(types.Message{MessageId: aws.String("m-2"), Body: aws.String("{not json")})
	assert.Error(t, err)
}

func TestSQSEventSubscriber_BackoffVisibility(t *testing.T) {
	s := NewSQSEventSubscriber(&mockSQSAPI{}, testQueueURL, nil, zerolog.Nop())

	visibility := func(count string) int32 {
		return s.backoffVisibility(types.Message{Attributes: map[string]string{
			string(types.MessageSystemAttributeNameApproximateReceiveCount): count,
		}})
	}

	assert.Equal(t, int32(30), visibility("1"))
	assert.Equal(t, int32(60), visibility("3"))
	assert.Equal(t, int32(90), visibility("7"))
	assert.Equal(t, int32(900), visibility("1000"))
	assert.Equal(t, int32(30), visibility("garbage"))
}

func TestSQSEventSubscriber_Clean(t *testing.T) {
	ctx := context.Background()
	message := types.Message{ReceiptHandle: aws.String("rh-1"), Attributes: map[string]string{}}

	t.Run("success deletes", func(t *testing.T) {
		client := &mockSQSAPI{}
		client.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
			return aws.ToString(in.ReceiptHandle) == "rh-1"
		})).Return(&sqs.DeleteMessageOutput{}, nil).Once()

		s := NewSQSEventSubscriber(client, testQueueURL, nil, zerolog.Nop())
		require.NoError(t, s.clean(ctx, &sqsMessage{Message: message}))
		client.AssertExpectations(t)
	})

	t.Run("failure extends visibility", func(t *testing.T) {
		client := &mockSQSAPI{}
		client.On("ChangeMessageVisibility", mock.Anything, mock.MatchedBy(func(in *sqs.ChangeMessageVisibilityInput) bool {
			return in.VisibilityTimeout == 30
		})).Return(&sqs.ChangeMessageVisibilityOutput{}, nil).Once()

		s := NewSQSEventSubscriber(client, testQueueURL, nil, zerolog.Nop())
		require.NoError(t, s.clean(ctx, &sqsMessage{Message: message, Err: errors.New("boom")}))
		client.AssertExpectations(t)
		client.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
	})
}

func TestSQSEventSubscriber_StartStop(t *testing.T) {
	event := events.NewEvent(models.GenerateUUID(), events.ValidateOrderResultTopic, map[string]bool{"is_valid": true})

	var deleted atomic.Bool
	client := &mockSQSAPI{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{sqsMessageFor(t, event, true, "1")}}, nil).Once()
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil)
	client.On("DeleteMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { deleted.Store(true) }).
		Return(&sqs.DeleteMessageOutput{}, nil).Once()

	var handled atomic.Value
	handler := events.EventHandlerFunc(func(ctx context.Context, e *events.Event) error {
		handled.Store(e.ID)
		return nil
	})

	s := NewSQSEventSubscriber(client, testQueueURL, handler, zerolog.Nop(),
		WithWorkers(2),
		WithWaitTimeSeconds(0),
		WithSleepTimes(5*time.Millisecond, 5*time.Millisecond),
	)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, deleted.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, event.ID, handled.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
