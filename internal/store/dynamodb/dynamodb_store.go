// internal/store/dynamodb/dynamodb_store.go
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/avivl/editwarning/internal/lockservice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// StoreName is the registered name of the DynamoDB store
const StoreName = "dynamodb"

// Item layout: every lock of a document shares the partition key, one item per
// section, plus a version item that guards each transactional write.
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrDocumentID = "DocumentID"
	attrSection    = "Section"
	attrUserID     = "UserID"
	attrUserName   = "UserName"
	attrAcquiredAt = "AcquiredAt"
	attrVersion    = "Version"

	versionSK = "#version"
)

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/store/dynamodb")

// DynamoDBAPI is the subset of the DynamoDB client the store uses
type DynamoDBAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*DynamoDBConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// Store implements store.LockStore on a DynamoDB table
type Store struct {
	client    DynamoDBAPI
	tableName string
	logger    *observability.SLogger
	config    *DynamoDBConfig
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// New creates a new DynamoDB store and makes sure its table exists
func New(ctx context.Context, config *DynamoDBConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		clientOpts = append(clientOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.Profile != "" {
		clientOpts = append(clientOpts, awsconfig.WithSharedConfigProfile(config.Profile))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, clientOpts...)
	if err != nil {
		logger.Errorf("Failed to load AWS config: %v", err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if len(config.Endpoints) > 0 {
			o.BaseEndpoint = aws.String(config.Endpoints[0])
		}
	})

	s := newWithClient(client, config, logger)
	if err := s.ensureTableExists(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newWithClient(client DynamoDBAPI, config *DynamoDBConfig, logger *observability.SLogger) *Store {
	return &Store{
		client:    client,
		tableName: config.TableName,
		logger:    logger,
		config:    config,
	}
}

// ensureTableExists checks if the DynamoDB table exists and creates it if it doesn't
func (s *Store) ensureTableExists(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return store.Unavailable("describe table", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		s.logger.Errorf("Failed to create table: %v", err)
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 5*time.Minute)
	if err != nil {
		s.logger.Errorf("Failed to wait for table creation: %v", err)
		return fmt.Errorf("failed to wait for table creation: %w", err)
	}
	return nil
}

func documentKey(documentID int64) string {
	return "doc#" + strconv.FormatInt(documentID, 10)
}

func sectionKey(section int) string {
	return fmt.Sprintf("section#%010d", section)
}

func numberValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func lockItem(rec store.LockRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK:         &types.AttributeValueMemberS{Value: documentKey(rec.DocumentID)},
		attrSK:         &types.AttributeValueMemberS{Value: sectionKey(rec.Section)},
		attrDocumentID: numberValue(rec.DocumentID),
		attrSection:    numberValue(int64(rec.Section)),
		attrUserID:     numberValue(rec.UserID),
		attrUserName:   &types.AttributeValueMemberS{Value: rec.UserName},
		attrAcquiredAt: numberValue(rec.AcquiredAt.UnixNano()),
	}
}

func numberAttr(item map[string]types.AttributeValue, name string) (int64, error) {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %s missing or not a number", name)
	}
	return strconv.ParseInt(v.Value, 10, 64)
}

func recordFromItem(item map[string]types.AttributeValue) (store.LockRecord, error) {
	var (
		rec store.LockRecord
		err error
		n   int64
	)
	if rec.DocumentID, err = numberAttr(item, attrDocumentID); err != nil {
		return rec, err
	}
	if n, err = numberAttr(item, attrSection); err != nil {
		return rec, err
	}
	rec.Section = int(n)
	if rec.UserID, err = numberAttr(item, attrUserID); err != nil {
		return rec, err
	}
	if n, err = numberAttr(item, attrAcquiredAt); err != nil {
		return rec, err
	}
	rec.AcquiredAt = time.Unix(0, n).UTC()
	if name, ok := item[attrUserName].(*types.AttributeValueMemberS); ok {
		rec.UserName = name.Value
	}
	return rec, nil
}

// load reads every item of a document and returns its lock set and version.
func (s *Store) load(ctx context.Context, documentID int64) (store.LockSet, int64, error) {
	var (
		records []store.LockRecord
		version int64
	)
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: documentKey(documentID)},
		},
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return store.LockSet{}, 0, store.Unavailable("query", err)
		}
		for _, item := range page.Items {
			if sk, ok := item[attrSK].(*types.AttributeValueMemberS); ok && sk.Value == versionSK {
				if version, err = numberAttr(item, attrVersion); err != nil {
					return store.LockSet{}, 0, store.Unavailable("decode version", err)
				}
				continue
			}
			rec, err := recordFromItem(item)
			if err != nil {
				return store.LockSet{}, 0, store.Unavailable("decode item", err)
			}
			records = append(records, rec)
		}
	}
	return store.NewLockSet(documentID, records), version, nil
}

// Load returns the lock set of a document
func (s *Store) Load(ctx context.Context, documentID int64) (store.LockSet, error) {
	set, _, err := s.load(ctx, documentID)
	return set, err
}

// Update runs fn against a consistent read of the document and commits its
// mutations in one transaction guarded by the document's version item.
func (s *Store) Update(ctx context.Context, documentID int64, fn func(tx *store.Tx) error) error {
	ctx, span := tracer.Start(ctx, "DynamoDB.Update")
	span.SetAttributes(attribute.Int64("document.id", documentID))
	defer span.End()

	err := store.Retry(ctx, s.config.MaxRetries, s.config.RetryInterval, func() error {
		set, version, err := s.load(ctx, documentID)
		if err != nil {
			return err
		}
		tx := store.NewTx(set)
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.Changed() {
			return nil
		}
		return s.commit(ctx, tx, version)
	})
	if err != nil {
		observability.RecordSpanError(span, err)
	}
	return err
}

func (s *Store) commit(ctx context.Context, tx *store.Tx, version int64) error {
	pk := documentKey(tx.DocumentID())
	guard := &types.Put{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrPK:      &types.AttributeValueMemberS{Value: pk},
			attrSK:      &types.AttributeValueMemberS{Value: versionSK},
			attrVersion: numberValue(version + 1),
		},
	}
	if version == 0 {
		guard.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		guard.ConditionExpression = aws.String("Version = :version")
		guard.ExpressionAttributeValues = map[string]types.AttributeValue{":version": numberValue(version)}
	}

	items := []types.TransactWriteItem{{Put: guard}}
	for _, section := range tx.Deletes() {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				attrPK: &types.AttributeValueMemberS{Value: pk},
				attrSK: &types.AttributeValueMemberS{Value: sectionKey(section)},
			},
		}})
	}
	for _, rec := range tx.Puts() {
		if err := rec.Validate(); err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(s.tableName),
			Item:      lockItem(rec),
		}})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return store.ErrKeyModified
			}
		}
	}
	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return store.ErrKeyModified
	}
	return store.Unavailable("transact write", err)
}

// Save upserts a record by (document, section)
func (s *Store) Save(ctx context.Context, rec store.LockRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.Update(ctx, rec.DocumentID, func(tx *store.Tx) error {
		tx.Put(rec)
		return nil
	})
}

// Remove deletes the lock on one section of a document
func (s *Store) Remove(ctx context.Context, documentID int64, section int) error {
	return s.Update(ctx, documentID, func(tx *store.Tx) error {
		tx.Delete(section)
		return nil
	})
}

// RemoveAll deletes every lock of a document
func (s *Store) RemoveAll(ctx context.Context, documentID int64) error {
	return s.Update(ctx, documentID, func(tx *store.Tx) error {
		for _, rec := range tx.Loaded().Records() {
			tx.Delete(rec.Section)
		}
		return nil
	})
}

// RemoveByUser scans for the user's locks and removes them document by document
func (s *Store) RemoveByUser(ctx context.Context, userID int64) error {
	ctx, span := tracer.Start(ctx, "DynamoDB.RemoveByUser")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer span.End()

	ids, err := s.scanDocuments(ctx, "UserID = :user", map[string]types.AttributeValue{":user": numberValue(userID)})
	if err != nil {
		observability.RecordSpanError(span, err)
		return err
	}
	for _, documentID := range ids {
		err := s.Update(ctx, documentID, func(tx *store.Tx) error {
			for _, rec := range tx.Loaded().HeldBy(userID) {
				tx.Delete(rec.Section)
			}
			return nil
		})
		if err != nil {
			observability.RecordSpanError(span, err)
			return err
		}
	}
	return nil
}

// RemoveExpired deletes every lock acquired before the cutoff
func (s *Store) RemoveExpired(ctx context.Context, before time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "DynamoDB.RemoveExpired")
	defer span.End()

	ids, err := s.scanDocuments(ctx, "AcquiredAt < :before", map[string]types.AttributeValue{":before": numberValue(before.UnixNano())})
	if err != nil {
		observability.RecordSpanError(span, err)
		return 0, err
	}

	removed := 0
	for _, documentID := range ids {
		n := 0
		err := s.Update(ctx, documentID, func(tx *store.Tx) error {
			n = 0
			for _, rec := range tx.Loaded().Records() {
				if rec.AcquiredAt.Before(before) {
					tx.Delete(rec.Section)
					n++
				}
			}
			return nil
		})
		if err != nil {
			observability.RecordSpanError(span, err)
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// scanDocuments returns the ids of documents with at least one lock item matching filter.
func (s *Store) scanDocuments(ctx context.Context, filter string, values map[string]types.AttributeValue) ([]int64, error) {
	seen := make(map[int64]struct{})
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
		ProjectionExpression:      aws.String(attrDocumentID),
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, store.Unavailable("scan", err)
		}
		for _, item := range page.Items {
			id, err := numberAttr(item, attrDocumentID)
			if err != nil {
				return nil, store.Unavailable("decode item", err)
			}
			seen[id] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close closes the DynamoDB client
func (s *Store) Close() {
	// DynamoDB client doesn't need explicit closing
}
