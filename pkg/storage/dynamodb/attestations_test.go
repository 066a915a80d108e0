package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPutAttestation(t *testing.T) {
	_, bob := testKeys(t)
	attestation := ledger.NewAttestation(bob, testEntry(t, "tx-1", nil))

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			subject, ok := in.Item["subject"].(*types.AttributeValueMemberS)
			return aws.ToString(in.TableName) == "attestations" &&
				aws.ToString(in.ConditionExpression) == "attribute_not_exists(subject)" &&
				ok && subject.Value == string(attestation.Subject)
		})).Once().Return(&dynamodb.PutItemOutput{}, nil)

		store := NewRegistry(mockClient, "attestations")
		err := store.PutAttestation(context.Background(), attestation)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Already published", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.Anything).Once().Return(nil, &types.ConditionalCheckFailedException{})

		store := NewRegistry(mockClient, "attestations")
		err := store.PutAttestation(context.Background(), attestation)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.Anything).Once().Return(nil, errors.New("throttled"))

		store := NewRegistry(mockClient, "attestations")
		err := store.PutAttestation(context.Background(), attestation)

		assert.ErrorContains(t, err, "failed to put attestation")
		mockClient.AssertExpectations(t)
	})
}

func TestListAttestations(t *testing.T) {
	_, bob := testKeys(t)
	first := testEntry(t, "tx-1", nil)
	second := testEntry(t, "tx-2", &first.Header)

	item := func(e attestationRecord) map[string]types.AttributeValue {
		av, err := attributevalue.MarshalMap(e)
		require.NoError(t, err)
		return av
	}
	t.Run("Follows pagination", func(t *testing.T) {
		a1 := ledger.NewAttestation(bob, first)
		a2 := ledger.NewAttestation(bob, second)
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey == nil
		})).Once().Return(&dynamodb.QueryOutput{
			Items:            []map[string]types.AttributeValue{item(toAttestationRecord(a1, 1))},
			LastEvaluatedKey: map[string]types.AttributeValue{"subject": &types.AttributeValueMemberS{Value: string(a1.Subject)}},
		}, nil)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey != nil
		})).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item(toAttestationRecord(a2, 2))}}, nil)

		store := NewRegistry(mockClient, "attestations")
		listed, err := store.ListAttestations(context.Background(), first.Author)

		require.NoError(t, err)
		assert.Equal(t, []models.Attestation{a1, a2}, listed)
		for _, a := range listed {
			assert.NoError(t, ledger.VerifyAttestation(a, identity.Ed25519Verifier{}))
		}
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		store := NewRegistry(mockClient, "attestations")
		_, err := store.ListAttestations(context.Background(), first.Author)

		assert.ErrorContains(t, err, "failed to query attestations")
		mockClient.AssertExpectations(t)
	})
}
