package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

func chainKey(agent models.AgentID, seq int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"agent_id": &types.AttributeValueMemberS{Value: string(agent)},
		"seq":      &types.AttributeValueMemberN{Value: strconv.FormatInt(seq, 10)},
	}
}

// ListEntries retrieves the agent's chain in append order with a strongly consistent read.
func (s *Store) ListEntries(ctx context.Context, agent models.AgentID) ([]models.ChainEntry, error) {
	return s.queryEntries(ctx, agent, true)
}

// FetchChainSince reads another agent's chain. The read is eventually consistent, so the
// newest entries may be missing.
func (s *Store) FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error) {
	entries, err := s.queryEntries(ctx, agent, false)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return entries, nil
	}
	for i, e := range entries {
		if e.Header.Address == since.Address {
			return entries[i+1:], nil
		}
	}
	return entries, nil
}

func (s *Store) queryEntries(ctx context.Context, agent models.AgentID, consistent bool) ([]models.ChainEntry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.ChainsTableName),
		KeyConditionExpression: aws.String("agent_id = :agent AND seq > :head"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":agent": &types.AttributeValueMemberS{Value: string(agent)},
			":head":  &types.AttributeValueMemberN{Value: strconv.Itoa(headSeq)},
		},
		ConsistentRead: aws.Bool(consistent),
	}

	var entries []models.ChainEntry
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query chain of %s: %w", agent, err)
		}

		var records []entryRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chain entries: %w", err)
		}
		for _, r := range records {
			e, err := r.toModel()
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return entries, nil
}

// Head retrieves the newest header of the agent's chain, or nil if the chain is empty.
func (s *Store) Head(ctx context.Context, agent models.AgentID) (*models.ChainHeader, error) {
	head, err := s.getHead(ctx, agent)
	if err != nil {
		return nil, err
	}
	return head.toHeader()
}

func (s *Store) getHead(ctx context.Context, agent models.AgentID) (headRecord, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.ChainsTableName),
		Key:            chainKey(agent, headSeq),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return headRecord{}, fmt.Errorf("failed to get chain head from DynamoDB: %w", err)
	}

	head := headRecord{AgentID: string(agent), Seq: headSeq}
	if result.Item == nil {
		return head, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, &head); err != nil {
		return headRecord{}, fmt.Errorf("failed to unmarshal chain head: %w", err)
	}
	return head, nil
}

// AppendEntry appends entry to its author's chain if entry.Header.PreviousHeader is still the head.
func (s *Store) AppendEntry(ctx context.Context, entry models.ChainEntry) error {
	items, err := s.appendItems(ctx, entry)
	if err != nil {
		return err
	}
	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && conditionFailed(tce, 0, 1) {
			return storage.ErrHeadMoved
		}
		return fmt.Errorf("failed to append chain entry: %w", err)
	}
	return nil
}

// appendItems builds the head update and the entry put of an append. The head update is
// conditioned on the head the entry links to, so two concurrent appends cannot both succeed.
func (s *Store) appendItems(ctx context.Context, entry models.ChainEntry) ([]types.TransactWriteItem, error) {
	current, err := s.getHead(ctx, entry.Author)
	if err != nil {
		return nil, err
	}
	if current.HeadAddress != entry.Header.PreviousHeader {
		return nil, storage.ErrHeadMoved
	}

	seq := current.Length + 1
	entryAV, err := attributevalue.MarshalMap(toEntryRecord(entry, seq))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chain entry: %w", err)
	}
	headAV, err := attributevalue.MarshalMap(headRecord{
		AgentID:          string(entry.Author),
		Seq:              headSeq,
		HeadAddress:      entry.Header.Address,
		HeadEntryAddress: entry.Header.EntryAddress,
		HeadPrevious:     entry.Header.PreviousHeader,
		HeadTimestamp:    formatTime(entry.Header.Timestamp),
		Length:           seq,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chain head: %w", err)
	}

	headPut := &types.Put{
		TableName: aws.String(s.ChainsTableName),
		Item:      headAV,
	}
	if entry.Header.PreviousHeader == "" {
		headPut.ConditionExpression = aws.String("attribute_not_exists(head_address)")
	} else {
		headPut.ConditionExpression = aws.String("head_address = :expected")
		headPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: entry.Header.PreviousHeader},
		}
	}

	return []types.TransactWriteItem{
		{Put: headPut},
		{
			Put: &types.Put{
				TableName:           aws.String(s.ChainsTableName),
				Item:                entryAV,
				ConditionExpression: aws.String("attribute_not_exists(agent_id)"),
			},
		},
	}, nil
}

// conditionFailed reports whether any of the given transaction items failed its condition.
func conditionFailed(tce *types.TransactionCanceledException, indexes ...int) bool {
	for _, i := range indexes {
		if i < len(tce.CancellationReasons) {
			code := tce.CancellationReasons[i].Code
			if code != nil && *code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
