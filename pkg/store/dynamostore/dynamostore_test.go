package dynamostore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"tourdesk/pkg/store"
)

// fakeDynamo is a tiny table that understands the three condition
// expressions Store issues.
type fakeDynamo struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	getErr      error
	describeErr error
	// beforePut runs once before the next conditional put is evaluated.
	beforePut func(f *fakeDynamo)
	puts      int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pk(item map[string]types.AttributeValue) string {
	return item["PK"].(*types.AttributeValueMemberS).Value
}

func num(item map[string]types.AttributeValue, key string) (int64, bool) {
	v, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, _ := strconv.ParseInt(v.Value, 10, 64)
	return n, true
}

func (f *fakeDynamo) check(existing map[string]types.AttributeValue, cond *string, values map[string]types.AttributeValue) bool {
	if cond == nil {
		return true
	}
	switch *cond {
	case condAbsent:
		return existing == nil
	case condAbsentOrExpired:
		if existing == nil {
			return true
		}
		exp, ok := num(existing, "expires_ms")
		now, _ := strconv.ParseInt(values[":now"].(*types.AttributeValueMemberN).Value, 10, 64)
		return ok && exp < now
	case condVersion:
		if existing == nil {
			return false
		}
		ver, _ := num(existing, "version")
		want, _ := strconv.ParseInt(values[":ver"].(*types.AttributeValueMemberN).Value, 10, 64)
		return ver == want
	default:
		panic("unexpected condition " + *cond)
	}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[pk(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	if hook := f.beforePut; hook != nil && in.ConditionExpression != nil {
		f.beforePut = nil
		hook(f)
	}
	defer f.mu.Unlock()

	f.puts++
	key := pk(in.Item)
	if !f.check(f.items[key], in.ConditionExpression, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := pk(in.Key)
	if !f.check(f.items[key], in.ConditionExpression, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.describeErr
}

func mustNewStore(t *testing.T, db *fakeDynamo, now *time.Time) *Store {
	t.Helper()
	s, err := New(db, "tourdesk-test")
	require.NoError(t, err)
	s.now = func() time.Time { return *now }
	return s
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(newFakeDynamo(), "  ")
	require.Error(t, err)
}

func TestPutIfAbsentClaimsOnceUntilExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newFakeDynamo()
	s := mustNewStore(t, db, &now)
	ctx := context.Background()

	created, err := s.PutIfAbsent(ctx, "dedup:fp", []byte("1"), 5*time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.PutIfAbsent(ctx, "dedup:fp", []byte("1"), 5*time.Minute)
	require.NoError(t, err)
	require.False(t, created)

	now = now.Add(5 * time.Minute)
	created, err = s.PutIfAbsent(ctx, "dedup:fp", []byte("1"), 5*time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	item := db.items["dedup:fp"]
	ttl, ok := num(item, "ttl")
	require.True(t, ok)
	require.Equal(t, now.Add(5*time.Minute).Unix(), ttl)
}

func TestGetHidesExpiredItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := mustNewStore(t, newFakeDynamo(), &now)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "context:c", []byte(`{"a":1}`), time.Hour))
	got, err := s.Get(ctx, "context:c")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(got))

	now = now.Add(2 * time.Hour)
	_, err = s.Get(ctx, "context:c")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateRetriesAfterLostRace(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newFakeDynamo()
	s := mustNewStore(t, db, &now)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "context:c", []byte("a"), 0))

	db.beforePut = func(f *fakeDynamo) {
		// A concurrent writer bumps the version between read and write.
		item := f.items["context:c"]
		item["value"] = &types.AttributeValueMemberB{Value: []byte("ab")}
		item["version"] = numberAttr(2)
	}

	calls := 0
	err := s.Update(ctx, "context:c", 0, func(current []byte) ([]byte, error) {
		calls++
		return append(current, 'c'), nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	got, err := s.Get(ctx, "context:c")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestUpdateDeletesOnNil(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := mustNewStore(t, newFakeDynamo(), &now)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "pause:c", []byte("x"), 0))
	require.NoError(t, s.Update(ctx, "pause:c", 0, func([]byte) ([]byte, error) { return nil, nil }))

	_, err := s.Get(ctx, "pause:c")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetWrapsAPIErrors(t *testing.T) {
	now := time.Now()
	db := newFakeDynamo()
	db.getErr = errors.New("throttled")
	s := mustNewStore(t, db, &now)

	_, err := s.Get(context.Background(), "k")
	require.ErrorContains(t, err, "throttled")
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestPingDescribesTable(t *testing.T) {
	now := time.Now()
	db := newFakeDynamo()
	s := mustNewStore(t, db, &now)
	require.NoError(t, s.Ping(context.Background()))

	db.describeErr = errors.New("ResourceNotFoundException")
	require.Error(t, s.Ping(context.Background()))
}
