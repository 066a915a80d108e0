package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/scheduler/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScheduleDelivery(t *testing.T) {
	ctx := context.Background()
	tx := models.Transaction{Id: "o1", Debtor: "alice", Creditor: "bob", Amount: decimal.NewFromInt(4)}
	env := peer.Envelope{Kind: peer.KindOffer, From: "alice", To: "bob", OfferID: "o1", Transaction: &tx, Attempt: 2}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		client := mocks.NewSQSAPI(t)
		client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			var got peer.Envelope
			if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got); err != nil {
				return false
			}
			return aws.ToString(in.QueueUrl) == "queue" && in.DelaySeconds == 30 &&
				got.OfferID == "o1" && got.Attempt == 2 && got.Transaction != nil
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		s := NewSQSScheduler(client, "queue")

		// Act
		err := s.ScheduleDelivery(ctx, env, 30*time.Second)

		// Assert
		require.NoError(t, err)
	})

	t.Run("Delay is capped", func(t *testing.T) {
		client := mocks.NewSQSAPI(t)
		client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			return in.DelaySeconds == 900
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		require.NoError(t, NewSQSScheduler(client, "queue").ScheduleDelivery(ctx, env, time.Hour))
	})

	t.Run("SQS Failure", func(t *testing.T) {
		client := mocks.NewSQSAPI(t)
		client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

		err := NewSQSScheduler(client, "queue").ScheduleDelivery(ctx, env, 0)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
