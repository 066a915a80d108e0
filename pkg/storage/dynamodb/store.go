package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the Store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements the Storage interface using AWS DynamoDB.
//
// The chains table is keyed by (agent_id, seq). seq 0 holds the head of the chain and is the
// item every append is conditioned on; entries start at seq 1.
// The offers table is keyed by (owner_id, offer_id) and the attestations table by (subject, tx_id).
type Store struct {
	Client                        DynamoDBAPI
	ChainsTableName               string
	OffersTableName               string
	AttestationsTableName         string
	WebsocketConnectionsTableName string

	now func() time.Time
}

// New creates a new Store.
func New(client DynamoDBAPI, chainsTable, offersTable, attestationsTable, connectionsTable string) *Store {
	return &Store{
		Client:                        client,
		ChainsTableName:               chainsTable,
		OffersTableName:               offersTable,
		AttestationsTableName:         attestationsTable,
		WebsocketConnectionsTableName: connectionsTable,
		now:                           time.Now,
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage         = (*Store)(nil)
	_ storage.SubscriberStore = (*Store)(nil)
)

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
