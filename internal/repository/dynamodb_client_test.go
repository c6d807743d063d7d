package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"broker-agent/internal/domain"
)

type fakeDynamo struct {
	scanOut    *dynamodb.ScanOutput
	scanErr    error
	lastScanIn *dynamodb.ScanInput
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.lastScanIn = in
	return f.scanOut, f.scanErr
}

func textItem(text string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"text": &types.AttributeValueMemberS{Value: text},
	}
}

func mustNewDynamo(t *testing.T, db *fakeDynamo) *DynamoClient {
	t.Helper()
	c, err := NewDynamo(db, "kb_chunks")
	require.NoError(t, err)
	return c
}

func TestDynamoTopChunks_HappyPath(t *testing.T) {
	db := &fakeDynamo{scanOut: &dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{textItem("a"), textItem(""), textItem("b")},
	}}
	c := mustNewDynamo(t, db)

	chunks, err := c.TopChunks(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []domain.ContextFragment{"a", "", "b"}, chunks)
}

func TestDynamoTopChunks_ScanInput(t *testing.T) {
	db := &fakeDynamo{scanOut: &dynamodb.ScanOutput{}}
	c := mustNewDynamo(t, db)

	_, err := c.TopChunks(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "kb_chunks", *db.lastScanIn.TableName)
	require.Equal(t, int32(3), *db.lastScanIn.Limit)
	require.Equal(t, "#text", *db.lastScanIn.ProjectionExpression)
	require.Equal(t, map[string]string{"#text": "text"}, db.lastScanIn.ExpressionAttributeNames)
	require.Nil(t, db.lastScanIn.FilterExpression)
}

func TestDynamoTopChunks_MalformedItemsBecomeEmpty(t *testing.T) {
	db := &fakeDynamo{scanOut: &dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			{"id": &types.AttributeValueMemberS{Value: "1"}},
			{"text": &types.AttributeValueMemberN{Value: "42"}},
			textItem("Franșiza CASCO"),
		},
	}}
	c := mustNewDynamo(t, db)

	chunks, err := c.TopChunks(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []domain.ContextFragment{"", "", "Franșiza CASCO"}, chunks)
}

func TestDynamoTopChunks_EmptyResult(t *testing.T) {
	db := &fakeDynamo{scanOut: &dynamodb.ScanOutput{}}
	c := mustNewDynamo(t, db)

	chunks, err := c.TopChunks(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestDynamoTopChunks_ScanError(t *testing.T) {
	db := &fakeDynamo{scanErr: errors.New("ResourceNotFoundException")}
	c := mustNewDynamo(t, db)

	_, err := c.TopChunks(context.Background(), 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TopChunks scan")
	require.Contains(t, err.Error(), "ResourceNotFoundException")
}

func TestDynamoTopChunks_InvalidLimit(t *testing.T) {
	c := mustNewDynamo(t, &fakeDynamo{})
	_, err := c.TopChunks(context.Background(), 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "limit")
}

func TestStrAttr(t *testing.T) {
	item := map[string]types.AttributeValue{
		"text":   &types.AttributeValueMemberS{Value: "RCA"},
		"tokens": &types.AttributeValueMemberN{Value: "4"},
	}
	v, err := strAttr(item, "text")
	require.NoError(t, err)
	require.Equal(t, "RCA", v)

	_, err = strAttr(item, "tags")
	require.ErrorContains(t, err, "missing attribute")

	_, err = strAttr(item, "tokens")
	require.ErrorContains(t, err, "not a string")
}

func TestNewDynamo_NilAPI(t *testing.T) {
	_, err := NewDynamo(nil, "kb_chunks")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNewDynamo_EmptyTableName(t *testing.T) {
	_, err := NewDynamo(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
