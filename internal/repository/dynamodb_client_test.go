package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getOut          *dynamodb.GetItemOutput
	getErr          error
	putErr          error
	deleteErr       error
	lastGetInput    *dynamodb.GetItemInput
	lastPutInput    *dynamodb.PutItemInput
	lastDeleteInput *dynamodb.DeleteItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	return c
}

func TestGet_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: "_chat_"},
		"SK":      &types.AttributeValueMemberS{Value: skState},
		"payload": &types.AttributeValueMemberS{Value: `[]`},
	}}}
	c := mustNewClient(t, db)

	v, found, err := c.Get(context.Background(), "_chat_")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "[]", string(v))
	require.True(t, *db.lastGetInput.ConsistentRead)
	require.Equal(t, "_chat_", db.lastGetInput.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, skState, db.lastGetInput.Key["SK"].(*types.AttributeValueMemberS).Value)
}

func TestGet_MissingItem(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, found, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGet_GetItemError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	c := mustNewClient(t, db)
	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Get get item")
}

func TestGet_MalformedPayload(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: "k"},
		"SK":      &types.AttributeValueMemberS{Value: skState},
		"payload": &types.AttributeValueMemberN{Value: "1"},
	}}}
	c := mustNewClient(t, db)
	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode payload")
}

func TestPut_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	c.now = func() time.Time { return time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC) }

	err := c.Put(context.Background(), "k", []byte(`[{"id":"a"}]`))
	require.NoError(t, err)
	require.Equal(t, "test-table", *db.lastPutInput.TableName)
	require.Equal(t, `[{"id":"a"}]`, db.lastPutInput.Item["payload"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "2026-02-25T10:00:00Z", db.lastPutInput.Item["updatedAt"].(*types.AttributeValueMemberS).Value)
}

func TestPut_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	err := c.Put(context.Background(), "k", []byte("[]"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Put")
}

func TestDelete_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.Delete(context.Background(), "k"))
	require.Equal(t, "k", db.lastDeleteInput.Key["PK"].(*types.AttributeValueMemberS).Value)
}

func TestDelete_DynamoError(t *testing.T) {
	db := &fakeDynamo{deleteErr: errors.New("internal server error")}
	c := mustNewClient(t, db)
	err := c.Delete(context.Background(), "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Delete")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
