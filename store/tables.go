package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableCreator is the subset of the DynamoDB client used for provisioning.
type TableCreator interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// TableSpec returns the CreateTable input for one collection.
func TableSpec(config Config, collection string) *dynamodb.CreateTableInput {
	config.validate()
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(config.TableName(collection)),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrPartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttrRowKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrPartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrRowKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	// The blob sweeper consumes REMOVE records from the images stream.
	if collection == CollectionImages {
		in.StreamSpecification = &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeOldImage,
		}
	}
	return in
}

// CreateTables provisions every collection. Tables that already exist are
// skipped and reported in the returned slice.
func CreateTables(ctx context.Context, client TableCreator, config Config) (existing []string, err error) {
	for _, collection := range Collections() {
		in := TableSpec(config, collection)
		_, err := client.CreateTable(ctx, in)
		if err == nil {
			continue
		}
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			existing = append(existing, *in.TableName)
			continue
		}
		return existing, fmt.Errorf("create table %s: %w", *in.TableName, err)
	}
	return existing, nil
}
