package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/google/uuid"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
)

// All records share one partition so the numeric sort key orders them globally.
const (
	dynamoPartition   = "sync_records"
	dynamoHashKey     = "stream"
	dynamoRangeKey    = "source_item_id"
	dynamoMaxPageSize = 100
)

type dynamoRecord struct {
	Stream          string                   `dynamodbav:"stream"`
	SourceItemID    dynamodbattribute.Number `dynamodbav:"source_item_id"`
	RecordID        string                   `dynamodbav:"record_id"`
	AuthorID        string                   `dynamodbav:"author_id"`
	TranslatedText  string                   `dynamodbav:"translated_text"`
	OriginalText    string                   `dynamodbav:"original_text"`
	SourceCreatedAt time.Time                `dynamodbav:"source_created_at"`
	RecordCreatedAt time.Time                `dynamodbav:"record_created_at"`
}

func (r dynamoRecord) toModel() models.SyncRecord {
	return models.SyncRecord{
		RecordID:        r.RecordID,
		SourceItemID:    string(r.SourceItemID),
		AuthorID:        r.AuthorID,
		TranslatedText:  r.TranslatedText,
		OriginalText:    r.OriginalText,
		SourceCreatedAt: r.SourceCreatedAt.UTC(),
		RecordCreatedAt: r.RecordCreatedAt.UTC(),
	}
}

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client    *dynamodb.DynamoDB
	tableName string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client:    dynamodb.New(sess),
		tableName: cfg.TableName,
	}

	if err := storage.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return storage, nil
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return err
	}

	_, err = d.client.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(dynamoHashKey), KeyType: aws.String(dynamodb.KeyTypeHash)},
			{AttributeName: aws.String(dynamoRangeKey), KeyType: aws.String(dynamodb.KeyTypeRange)},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String(dynamoHashKey), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
			{AttributeName: aws.String(dynamoRangeKey), AttributeType: aws.String(dynamodb.ScalarAttributeTypeN)},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

func (d *DynamoDBStorage) newestFirstQuery(limit int64) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("#s = :s"),
		ExpressionAttributeNames: map[string]*string{
			"#s": aws.String(dynamoHashKey),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":s": {S: aws.String(dynamoPartition)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int64(limit),
	}
}

// LatestRecord returns the record with the highest source item id.
func (d *DynamoDBStorage) LatestRecord(ctx context.Context) (*models.SyncRecord, error) {
	result, err := d.client.QueryWithContext(ctx, d.newestFirstQuery(1))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest record: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var item dynamoRecord
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	record := item.toModel()
	return &record, nil
}

// AppendRecord stores a record unless one with the same source item id exists.
// Source item ids must be decimal since they form the numeric sort key.
func (d *DynamoDBStorage) AppendRecord(ctx context.Context, record models.SyncRecord) (models.SyncRecord, error) {
	record.RecordID = uuid.NewString()

	item, err := dynamodbattribute.MarshalMap(dynamoRecord{
		Stream:          dynamoPartition,
		SourceItemID:    dynamodbattribute.Number(record.SourceItemID),
		RecordID:        record.RecordID,
		AuthorID:        record.AuthorID,
		TranslatedText:  record.TranslatedText,
		OriginalText:    record.OriginalText,
		SourceCreatedAt: record.SourceCreatedAt,
		RecordCreatedAt: record.RecordCreatedAt,
	})
	if err != nil {
		return models.SyncRecord{}, fmt.Errorf("failed to marshal record %s: %w", record.SourceItemID, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + dynamoRangeKey + ")"),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return models.SyncRecord{}, ErrDuplicateRecord
	}
	if err != nil {
		return models.SyncRecord{}, fmt.Errorf("failed to store record %s: %w", record.SourceItemID, err)
	}
	return record, nil
}

// ListRecords pages through the partition newest first.
func (d *DynamoDBStorage) ListRecords(ctx context.Context, limit int, offset int) ([]models.SyncRecord, error) {
	records := []models.SyncRecord{}
	if limit <= 0 {
		return records, nil
	}

	want := offset + limit
	pageSize := int64(want)
	if pageSize > dynamoMaxPageSize {
		pageSize = dynamoMaxPageSize
	}

	input := d.newestFirstQuery(pageSize)
	seen := 0
	for {
		result, err := d.client.QueryWithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query records: %w", err)
		}

		var items []dynamoRecord
		if err := dynamodbattribute.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal records: %w", err)
		}
		for _, item := range items {
			if seen >= offset {
				records = append(records, item.toModel())
			}
			seen++
			if seen >= want {
				return records, nil
			}
		}

		if len(result.LastEvaluatedKey) == 0 {
			return records, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
