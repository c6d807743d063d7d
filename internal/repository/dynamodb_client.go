package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"broker-agent/internal/domain"
)

// textAttr is the knowledge-base attribute holding the chunk text. TEXT is a
// DynamoDB reserved word, so it is always referenced through #text.
const textAttr = "text"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoClient.
// Defined here for testability.
type dynamodbAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoClient reads knowledge-base chunks from a DynamoDB table.
type DynamoClient struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamo creates a DynamoClient for tableName.
func NewDynamo(api dynamodbAPI, tableName string) (*DynamoClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoClient{api: api, tableName: tableName}, nil
}

// TopChunks scans at most limit items and returns their text attribute.
// No filter is applied; the items returned are whatever the scan reaches first.
func (c *DynamoClient) TopChunks(ctx context.Context, limit int) ([]domain.ContextFragment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("repository: TopChunks: limit must be positive, got %d", limit)
	}

	out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(c.tableName),
		ProjectionExpression:     aws.String("#text"),
		ExpressionAttributeNames: map[string]string{"#text": textAttr},
		Limit:                    aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: TopChunks scan: %w", err)
	}
	if out == nil {
		return nil, nil
	}

	chunks := make([]domain.ContextFragment, 0, len(out.Items))
	for _, item := range out.Items {
		chunks = append(chunks, itemToFragment(item))
	}
	return chunks, nil
}

// itemToFragment extracts the text attribute, yielding an empty fragment when it
// is missing or not a string.
func itemToFragment(item map[string]types.AttributeValue) domain.ContextFragment {
	text, err := strAttr(item, textAttr)
	if err != nil {
		return ""
	}
	return domain.ContextFragment(text)
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
