package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// attestationRecord is one attestation as stored in the attestations table,
// keyed by (subject, tx_id).
type attestationRecord struct {
	Subject        string `dynamodbav:"subject"`
	TxID           string `dynamodbav:"tx_id"`
	Witness        string `dynamodbav:"witness"`
	Header         string `dynamodbav:"header"`
	EntrySignature []byte `dynamodbav:"entry_signature"`
	Signature      []byte `dynamodbav:"signature"`
	PublishedAt    int64  `dynamodbav:"published_at"`
}

func toAttestationRecord(a models.Attestation, publishedAt int64) attestationRecord {
	return attestationRecord{
		Subject:        string(a.Subject),
		TxID:           a.TransactionID,
		Witness:        string(a.Witness),
		Header:         a.Header,
		EntrySignature: a.EntrySignature,
		Signature:      a.Signature,
		PublishedAt:    publishedAt,
	}
}

func (r attestationRecord) toModel() models.Attestation {
	return models.Attestation{
		Subject:        models.AgentID(r.Subject),
		Witness:        models.AgentID(r.Witness),
		TransactionID:  r.TxID,
		Header:         r.Header,
		EntrySignature: r.EntrySignature,
		Signature:      r.Signature,
	}
}

// NewRegistry creates a Store that only serves the attestations table. Agents that keep
// their chain elsewhere use it to share attestations with each other.
func NewRegistry(client DynamoDBAPI, attestationsTable string) *Store {
	return &Store{Client: client, AttestationsTableName: attestationsTable}
}

// PutAttestation publishes a. The put is conditioned on the key being new, so the first
// attestation of a transaction wins.
func (s *Store) PutAttestation(ctx context.Context, a models.Attestation) error {
	item, err := attributevalue.MarshalMap(toAttestationRecord(a, s.clock().UnixNano()))
	if err != nil {
		return fmt.Errorf("failed to marshal attestation: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.AttestationsTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(subject)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("failed to put attestation: %w", err)
	}
	return nil
}

// ListAttestations reads every attestation about subject. The read is eventually consistent.
func (s *Store) ListAttestations(ctx context.Context, subject models.AgentID) ([]models.Attestation, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.AttestationsTableName),
		KeyConditionExpression: aws.String("subject = :subject"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":subject": &types.AttributeValueMemberS{Value: string(subject)},
		},
	}

	var attestations []models.Attestation
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query attestations of %s: %w", subject, err)
		}

		var records []attestationRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attestations: %w", err)
		}
		for _, r := range records {
			attestations = append(attestations, r.toModel())
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return attestations, nil
}
