// internal/store/etcd/etcd_store.go
package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/avivl/editwarning/internal/lockservice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// StoreName is the registered name of the etcd store
const StoreName = "etcd"

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/store/etcd")

func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*EtcdConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// document is the value stored under a document key.
type document struct {
	Locks []store.LockRecord `json:"locks"`
}

// Store keeps one JSON value per document. Writes are transactions comparing
// the key's ModRevision with the one that was read.
type Store struct {
	client *clientv3.Client
	kv     clientv3.KV
	logger *observability.SLogger
	config *EtcdConfig
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// New dials etcd
func New(ctx context.Context, config *EtcdConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		Username:    config.Username,
		Password:    config.Password,
		Context:     ctx,
	})
	if err != nil {
		logger.Errorf("Failed to connect to etcd: %v", err)
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	s := newWithKV(client, config, logger)
	s.client = client
	return s, nil
}

func newWithKV(kv clientv3.KV, config *EtcdConfig, logger *observability.SLogger) *Store {
	return &Store{kv: kv, logger: logger, config: config}
}

func (s *Store) prefix() string {
	return path.Join(s.config.TableName, "documents") + "/"
}

func (s *Store) documentKey(documentID int64) string {
	return fmt.Sprintf("%s%020d", s.prefix(), documentID)
}

func (s *Store) load(ctx context.Context, documentID int64) (store.LockSet, int64, error) {
	resp, err := s.kv.Get(ctx, s.documentKey(documentID))
	if err != nil {
		return store.LockSet{}, 0, store.Unavailable("get", err)
	}
	if len(resp.Kvs) == 0 {
		return store.NewLockSet(documentID, nil), 0, nil
	}
	var doc document
	if err := json.Unmarshal(resp.Kvs[0].Value, &doc); err != nil {
		return store.LockSet{}, 0, store.Unavailable("decode document", err)
	}
	for i := range doc.Locks {
		doc.Locks[i].DocumentID = documentID
	}
	return store.NewLockSet(documentID, doc.Locks), resp.Kvs[0].ModRevision, nil
}

// Load returns the lock set of a document
func (s *Store) Load(ctx context.Context, documentID int64) (store.LockSet, error) {
	set, _, err := s.load(ctx, documentID)
	return set, err
}

// Update runs fn on the document and writes the result only if the key is unchanged since the read.
func (s *Store) Update(ctx context.Context, documentID int64, fn func(tx *store.Tx) error) error {
	ctx, span := tracer.Start(ctx, "Etcd.Update")
	span.SetAttributes(attribute.Int64("document.id", documentID))
	defer span.End()

	err := store.Retry(ctx, s.config.MaxRetries, s.config.RetryInterval, func() error {
		set, rev, err := s.load(ctx, documentID)
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
		return s.commit(ctx, tx, rev)
	})
	if err != nil {
		observability.RecordSpanError(span, err)
	}
	return err
}

func (s *Store) commit(ctx context.Context, tx *store.Tx, rev int64) error {
	key := s.documentKey(tx.DocumentID())
	for _, rec := range tx.Puts() {
		if err := rec.Validate(); err != nil {
			return err
		}
	}

	var op clientv3.Op
	next := tx.Locks()
	if next.Empty() {
		op = clientv3.OpDelete(key)
	} else {
		raw, err := json.Marshal(document{Locks: next.Records()})
		if err != nil {
			return err
		}
		op = clientv3.OpPut(key, string(raw))
	}

	resp, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
		Then(op).
		Commit()
	if err != nil {
		return store.Unavailable("txn", err)
	}
	if !resp.Succeeded {
		return store.ErrKeyModified
	}
	return nil
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

// RemoveByUser deletes every lock owned by userID
func (s *Store) RemoveByUser(ctx context.Context, userID int64) error {
	ctx, span := tracer.Start(ctx, "Etcd.RemoveByUser")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer span.End()

	ids, err := s.documentsMatching(ctx, func(rec store.LockRecord) bool { return rec.UserID == userID })
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
	ctx, span := tracer.Start(ctx, "Etcd.RemoveExpired")
	defer span.End()

	ids, err := s.documentsMatching(ctx, func(rec store.LockRecord) bool { return rec.AcquiredAt.Before(before) })
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

// documentsMatching reads the whole prefix and returns the documents with at least one matching lock.
func (s *Store) documentsMatching(ctx context.Context, match func(store.LockRecord) bool) ([]int64, error) {
	resp, err := s.kv.Get(ctx, s.prefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, store.Unavailable("get prefix", err)
	}

	var ids []int64
	for _, kv := range resp.Kvs {
		var doc document
		if err := json.Unmarshal(kv.Value, &doc); err != nil {
			s.logger.Warnf("Skipping undecodable lock document %s: %v", kv.Key, err)
			continue
		}
		for _, rec := range doc.Locks {
			if match(rec) {
				ids = append(ids, rec.DocumentID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close closes the etcd client
func (s *Store) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Errorf("Error closing etcd client: %v", err)
	}
}
