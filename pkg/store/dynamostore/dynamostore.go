// Package dynamostore implements store.Store on a DynamoDB table with a
// PK/SK key schema and a numeric ttl attribute.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"tourdesk/pkg/config"
	"tourdesk/pkg/store"
)

const (
	skValue           = "KV"
	maxUpdateAttempts = 8

	condAbsentOrExpired = "attribute_not_exists(PK) OR #exp < :now"
	condAbsent          = "attribute_not_exists(PK)"
	condVersion         = "#ver = :ver"
)

// dynamodbAPI is the subset of the DynamoDB client used by Store.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store keeps one item per key. Items carry the payload in "value", a
// millisecond expiry in "expires_ms", the epoch-second "ttl" used by
// DynamoDB's own expiry sweeper and a "version" counter for Update.
type Store struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New wraps an existing DynamoDB API.
func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamostore: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamostore: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName, now: time.Now}, nil
}

// Open loads the default AWS config and builds a Store for cfg.Table.
func Open(ctx context.Context, cfg config.DynamoDBConfig) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dynamostore: load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return New(client, cfg.Table)
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key},
		"SK": &types.AttributeValueMemberS{Value: skValue},
	}
}

type record struct {
	value     []byte
	expiresMs int64
	version   int64
}

func (r record) expired(now time.Time) bool {
	return r.expiresMs > 0 && now.UnixMilli() >= r.expiresMs
}

func (s *Store) read(ctx context.Context, key string) (record, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return record{}, false, fmt.Errorf("dynamostore: get %q: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return record{}, false, nil
	}

	rec, err := decode(out.Item)
	if err != nil {
		return record{}, false, fmt.Errorf("dynamostore: decode %q: %w", key, err)
	}
	return rec, true, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	rec, ok, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || rec.expired(s.now()) {
		return nil, store.ErrNotFound
	}
	return rec.value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      s.encode(key, value, ttl, 1),
	})
	if err != nil {
		return fmt.Errorf("dynamostore: put %q: %w", key, err)
	}
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := s.now()
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     s.encode(key, value, ttl, 1),
		ConditionExpression:      aws.String(condAbsentOrExpired),
		ExpressionAttributeNames: map[string]string{"#exp": "expires_ms"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": numberAttr(now.UnixMilli()),
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dynamostore: put-if-absent %q: %w", key, err)
	}
	return true, nil
}

// Update reads the item, applies fn and writes back conditioned on the
// version it read. Lost races are retried.
func (s *Store) Update(ctx context.Context, key string, ttl time.Duration, fn store.UpdateFunc) error {
	for range maxUpdateAttempts {
		rec, exists, err := s.read(ctx, key)
		if err != nil {
			return err
		}

		var current []byte
		if exists && !rec.expired(s.now()) {
			current = rec.value
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		cond, names, values := condAbsent, map[string]string(nil), map[string]types.AttributeValue(nil)
		if exists {
			cond = condVersion
			names = map[string]string{"#ver": "version"}
			values = map[string]types.AttributeValue{":ver": numberAttr(rec.version)}
		}

		if next == nil {
			if !exists {
				return nil
			}
			_, err = s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(s.tableName),
				Key:                       itemKey(key),
				ConditionExpression:       aws.String(cond),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			})
		} else {
			_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:                 aws.String(s.tableName),
				Item:                      s.encode(key, next, ttl, rec.version+1),
				ConditionExpression:       aws.String(cond),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			})
		}

		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("dynamostore: update %q: %w", key, err)
		}
		return nil
	}

	return fmt.Errorf("dynamostore: update %q: %w", key, store.ErrConflict)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("dynamostore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return fmt.Errorf("dynamostore: describe table %q: %w", s.tableName, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) encode(key string, value []byte, ttl time.Duration, version int64) map[string]types.AttributeValue {
	item := itemKey(key)
	item["value"] = &types.AttributeValueMemberB{Value: value}
	item["version"] = numberAttr(version)
	if ttl > 0 {
		expires := s.now().Add(ttl)
		item["expires_ms"] = numberAttr(expires.UnixMilli())
		item["ttl"] = numberAttr(expires.Unix())
	}
	return item
}

func decode(item map[string]types.AttributeValue) (record, error) {
	var rec record

	if v, ok := item["value"].(*types.AttributeValueMemberB); ok {
		rec.value = v.Value
	} else {
		return record{}, errors.New("attribute \"value\" is missing or not binary")
	}

	var err error
	if rec.expiresMs, err = optionalInt(item, "expires_ms"); err != nil {
		return record{}, err
	}
	if rec.version, err = optionalInt(item, "version"); err != nil {
		return record{}, err
	}
	return rec, nil
}

func optionalInt(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func numberAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

var _ store.Store = (*Store)(nil)
