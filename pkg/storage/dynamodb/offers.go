package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

func offerKey(owner models.AgentID, offerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"owner_id": &types.AttributeValueMemberS{Value: string(owner)},
		"offer_id": &types.AttributeValueMemberS{Value: offerID},
	}
}

// CreateOffer stores a new offer in its owner's view.
func (s *Store) CreateOffer(ctx context.Context, offer *models.Offer) error {
	item, err := attributevalue.MarshalMap(toOfferRecord(offer))
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.OffersTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(offer_id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrOfferExists
		}
		return fmt.Errorf("failed to create offer in DynamoDB: %w", err)
	}
	return nil
}

// GetOffer retrieves one offer from owner's view.
func (s *Store) GetOffer(ctx context.Context, owner models.AgentID, offerID string) (*models.Offer, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.OffersTableName),
		Key:            offerKey(owner, offerID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get offer from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, storage.ErrNotFound)
	}

	var record offerRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer: %w", err)
	}
	return record.toModel()
}

// ListOffers retrieves all offers in owner's view, oldest first.
func (s *Store) ListOffers(ctx context.Context, owner models.AgentID) ([]models.Offer, error) {
	return s.queryOffers(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.OffersTableName),
		KeyConditionExpression: aws.String("owner_id = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: string(owner)},
		},
	})
}

// ListOffersByState retrieves owner's offers in state that were last updated before now-olderThan.
func (s *Store) ListOffersByState(ctx context.Context, owner models.AgentID, state models.OfferState, olderThan time.Duration) ([]models.Offer, error) {
	cutoff := s.clock().Add(-olderThan).UnixNano()
	return s.queryOffers(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.OffersTableName),
		KeyConditionExpression: aws.String("owner_id = :owner"),
		FilterExpression:       aws.String("#state = :state AND updated_at <= :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#state": "state",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner":  &types.AttributeValueMemberS{Value: string(owner)},
			":state":  &types.AttributeValueMemberS{Value: string(state)},
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff, 10)},
		},
	})
}

func (s *Store) queryOffers(ctx context.Context, input *dynamodb.QueryInput) ([]models.Offer, error) {
	var offers []models.Offer
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query offers table: %w", err)
		}

		var records []offerRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal offers: %w", err)
		}
		for _, r := range records {
			offer, err := r.toModel()
			if err != nil {
				return nil, err
			}
			offers = append(offers, *offer)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].Id < offers[j].Id
		}
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
	return offers, nil
}

// transitionUpdate builds the conditional state change shared by TransitionOffer and CompleteOffer.
func (s *Store) transitionUpdate(from, to models.OfferState, approvedHeader string) (string, map[string]types.AttributeValue) {
	expr := "SET #state = :to, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: string(to)},
		":from": &types.AttributeValueMemberS{Value: string(from)},
		":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(s.clock().UnixNano(), 10)},
	}
	if approvedHeader != "" {
		expr += ", approved_header = :header"
		values[":header"] = &types.AttributeValueMemberS{Value: approvedHeader}
	}
	return expr, values
}

const transitionCondition = "attribute_exists(offer_id) AND #state = :from"

// TransitionOffer atomically moves an offer from one state to another.
func (s *Store) TransitionOffer(ctx context.Context, owner models.AgentID, offerID string, from, to models.OfferState, approvedHeader string) (*models.Offer, error) {
	expr, values := s.transitionUpdate(from, to, approvedHeader)

	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.OffersTableName),
		Key:                                 offerKey(owner, offerID),
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String(transitionCondition),
		ExpressionAttributeNames:            map[string]string{"#state": "state"},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if condCheckFailed.Item == nil {
				return nil, fmt.Errorf("offer %s: %w", offerID, storage.ErrNotFound)
			}
			return nil, fmt.Errorf("offer %s is not %s: %w", offerID, from, storage.ErrStateConflict)
		}
		return nil, fmt.Errorf("failed to update offer state: %w", err)
	}

	var record offerRecord
	if err := attributevalue.UnmarshalMap(result.Attributes, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated offer: %w", err)
	}
	return record.toModel()
}

// CompleteOffer appends entry and marks the author's offer COMPLETED in one transaction.
func (s *Store) CompleteOffer(ctx context.Context, entry models.ChainEntry, offerID string, from models.OfferState, approvedHeader string) error {
	items, err := s.appendItems(ctx, entry)
	if err != nil {
		return err
	}

	expr, values := s.transitionUpdate(from, models.COMPLETED, approvedHeader)
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.OffersTableName),
			Key:                       offerKey(entry.Author, offerID),
			UpdateExpression:          aws.String(expr),
			ConditionExpression:       aws.String(transitionCondition),
			ExpressionAttributeNames:  map[string]string{"#state": "state"},
			ExpressionAttributeValues: values,
		},
	})

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// Items are head, entry, offer.
			if conditionFailed(tce, 2) {
				return fmt.Errorf("offer %s is not %s: %w", offerID, from, storage.ErrStateConflict)
			}
			if conditionFailed(tce, 0, 1) {
				return storage.ErrHeadMoved
			}
		}
		return fmt.Errorf("failed to complete offer: %w", err)
	}
	return nil
}
