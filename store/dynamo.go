package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by the backend.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Dynamo is a Backend storing each collection in its own DynamoDB table with
// a string HASH key "PartitionKey" and a string RANGE key "RowKey".
type Dynamo struct {
	client DynamoAPI
	config Config
}

// NewDynamo creates a DynamoDB backend.
func NewDynamo(client DynamoAPI, config Config) *Dynamo {
	config.validate()
	return &Dynamo{
		client: client,
		config: config,
	}
}

// Table returns the collection backed by the table config.TableName(name).
func (d *Dynamo) Table(name string) Table {
	return &dynamoTable{
		client:     d.client,
		name:       d.config.TableName(name),
		consistent: d.config.ConsistentReads,
	}
}

type dynamoTable struct {
	client     DynamoAPI
	name       string
	consistent bool
}

func dynamoKey(partition, row string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPartitionKey: &types.AttributeValueMemberS{Value: partition},
		AttrRowKey:       &types.AttributeValueMemberS{Value: row},
	}
}

func nowAttr() types.AttributeValue {
	return &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)}
}

// Create puts the item guarded by attribute_not_exists on the partition key.
func (t *dynamoTable) Create(ctx context.Context, partition, row string, attrs map[string]any) error {
	norm, err := Normalize(partition, row, attrs)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(norm)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	for k, v := range dynamoKey(partition, row) {
		item[k] = v
	}
	item[AttrTimestamp] = nowAttr()

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPartitionKey,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put %s: %w", t.name, err)
	}
	return nil
}

// Merge issues an UpdateItem with one SET clause per attribute. UpdateItem
// creates the item when it does not exist.
func (t *dynamoTable) Merge(ctx context.Context, partition, row string, attrs map[string]any) error {
	norm, err := Normalize(partition, row, attrs)
	if err != nil {
		return err
	}

	exprNames := map[string]string{"#ts": AttrTimestamp}
	exprValues := map[string]types.AttributeValue{":ts": nowAttr()}
	setClauses := make([]string, 0, len(norm)+1)

	// Sorted so the expression is stable between calls.
	keys := make([]string, 0, len(norm))
	for k := range norm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		av, err := attributevalue.Marshal(norm[k])
		if err != nil {
			return fmt.Errorf("marshal attribute %q: %w", k, err)
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = av
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	setClauses = append(setClauses, "#ts = :ts")

	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       dynamoKey(partition, row),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	return nil
}

func (t *dynamoTable) Get(ctx context.Context, partition, row string) (*Record, error) {
	if partition == "" || row == "" {
		return nil, ErrInvalidKey
	}
	result, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            dynamoKey(partition, row),
		ConsistentRead: aws.Bool(t.consistent),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t.name, err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalRecord(result.Item)
}

// Delete removes the item, failing with ErrNotFound when it is absent.
func (t *dynamoTable) Delete(ctx context.Context, partition, row string) error {
	if partition == "" || row == "" {
		return ErrInvalidKey
	}
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(t.name),
		Key:                 dynamoKey(partition, row),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPartitionKey,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	return nil
}

// Scan queries every item under the partition key, following pagination.
func (t *dynamoTable) Scan(ctx context.Context, partition string) ([]*Record, error) {
	if partition == "" {
		return nil, ErrInvalidKey
	}
	paginator := dynamodb.NewQueryPaginator(t.client, &dynamodb.QueryInput{
		TableName:              aws.String(t.name),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ConsistentRead:         aws.Bool(t.consistent),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPartitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partition},
		},
	})

	var records []*Record
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", t.name, err)
		}
		for _, raw := range page.Items {
			rec, err := unmarshalRecord(raw)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// unmarshalRecord converts a DynamoDB item into a Record, lifting the key and
// timestamp attributes out of the payload.
func unmarshalRecord(raw map[string]types.AttributeValue) (*Record, error) {
	attrs := map[string]any{}
	if err := attributevalue.UnmarshalMap(raw, &attrs); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}

	rec := &Record{Attributes: attrs}
	if v, ok := attrs[AttrPartitionKey].(string); ok {
		rec.PartitionKey = v
	}
	if v, ok := attrs[AttrRowKey].(string); ok {
		rec.RowKey = v
	}
	if v, ok := attrs[AttrTimestamp].(string); ok {
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, v)
	}
	delete(attrs, AttrPartitionKey)
	delete(attrs, AttrRowKey)
	delete(attrs, AttrTimestamp)
	return rec, nil
}
