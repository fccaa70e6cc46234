// internal/store/scylladb/scylladb_store.go
package scylladb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/avivl/editwarning/internal/lockservice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// ErrConfigOptionMissing is returned when New is called without a configuration.
var ErrConfigOptionMissing = errors.New("ScyllaDB requires a config option")

// StoreName the name of the store.
const StoreName string = "scylladb"

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/store/scylladb")

func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*ScyllaDBConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// statement is one CQL statement with its bind values.
type statement struct {
	cql  string
	args []interface{}
}

// session is the part of a gocql session the store talks to.
type session interface {
	Exec(ctx context.Context, stmt string, values ...interface{}) error
	Select(ctx context.Context, stmt string, values ...interface{}) ([]map[string]interface{}, error)
	ExecuteCAS(ctx context.Context, stmts []statement) (bool, error)
	Close()
}

type gocqlSession struct {
	s *gocql.Session
}

func (g gocqlSession) Exec(ctx context.Context, stmt string, values ...interface{}) error {
	return g.s.Query(stmt, values...).WithContext(ctx).Exec()
}

func (g gocqlSession) Select(ctx context.Context, stmt string, values ...interface{}) ([]map[string]interface{}, error) {
	iter := g.s.Query(stmt, values...).WithContext(ctx).Iter()
	rows, err := iter.SliceMap()
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return rows, err
}

func (g gocqlSession) ExecuteCAS(ctx context.Context, stmts []statement) (bool, error) {
	batch := g.s.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, st := range stmts {
		batch.Query(st.cql, st.args...)
	}
	applied, iter, err := g.s.MapExecuteBatchCAS(batch, map[string]interface{}{})
	if iter != nil {
		iter.Close()
	}
	return applied, err
}

func (g gocqlSession) Close() {
	g.s.Close()
}

// Store keeps every lock of a document in one partition. The static version
// column is bumped by each lightweight-transaction batch that mutates it.
type Store struct {
	session       session
	fullTableName string
	l             *observability.SLogger
	config        *ScyllaDBConfig
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// parseConsistency converts string consistency to gocql.Consistency
func parseConsistency(c string) gocql.Consistency {
	switch c {
	case "CONSISTENCY_QUORUM":
		return gocql.Quorum
	case "CONSISTENCY_LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "CONSISTENCY_ONE":
		return gocql.One
	case "CONSISTENCY_ALL":
		return gocql.All
	default:
		return gocql.Quorum
	}
}

// New connects to the cluster and creates the keyspace, table and index when missing.
func New(ctx context.Context, config *ScyllaDBConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, ErrConfigOptionMissing
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(config.GetEndpoints()...)
	cluster.ProtoVersion = 4
	cluster.Consistency = parseConsistency(config.Consistency)
	cluster.SerialConsistency = gocql.Serial

	sess, err := cluster.CreateSession()
	if err != nil {
		logger.Errorf("Error creating session: %v", err)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s := newWithSession(gocqlSession{s: sess}, config, logger)
	if err := s.ensureSchema(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	return s, nil
}

func newWithSession(sess session, config *ScyllaDBConfig, logger *observability.SLogger) *Store {
	return &Store{
		session:       sess,
		fullTableName: fmt.Sprintf(`"%s"."%s"`, config.Keyspace, config.TableName),
		l:             logger,
		config:        config,
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS "%s"
	WITH replication = {
		'class' : 'SimpleStrategy',
		'replication_factor' : %d
	}`, s.config.Keyspace, s.config.ReplicationFactor),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        document_id bigint,
        section int,
        user_id bigint,
        user_name text,
        acquired_at timestamp,
        version bigint static,
        PRIMARY KEY ((document_id), section)
    )`, s.fullTableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS ON %s (user_id)", s.fullTableName),
	}
	for _, stmt := range stmts {
		if err := s.session.Exec(ctx, stmt); err != nil {
			s.l.Errorf("Error creating schema: %v", err)
			return store.Unavailable("create schema", err)
		}
	}
	return nil
}

func int64Column(row map[string]interface{}, name string) int64 {
	switch v := row[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return 0
}

// recordFromRow decodes a clustering row. Rows that only carry the static
// version column have no holder and are reported as not ok.
func recordFromRow(documentID int64, row map[string]interface{}) (store.LockRecord, bool) {
	rec := store.LockRecord{
		DocumentID: documentID,
		Section:    int(int64Column(row, "section")),
		UserID:     int64Column(row, "user_id"),
	}
	if rec.UserID == 0 {
		return rec, false
	}
	rec.UserName, _ = row["user_name"].(string)
	if at, ok := row["acquired_at"].(time.Time); ok {
		rec.AcquiredAt = at.UTC()
	}
	return rec, true
}

func (s *Store) load(ctx context.Context, documentID int64) (store.LockSet, int64, error) {
	rows, err := s.session.Select(ctx, fmt.Sprintf(
		"SELECT section, user_id, user_name, acquired_at, version FROM %s WHERE document_id = ?", s.fullTableName),
		documentID)
	if err != nil {
		return store.LockSet{}, 0, store.Unavailable("select", err)
	}

	var (
		records []store.LockRecord
		version int64
	)
	for _, row := range rows {
		version = int64Column(row, "version")
		if rec, ok := recordFromRow(documentID, row); ok {
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

// Update runs fn against the document's partition and commits its mutations
// in a conditional batch on the static version column.
func (s *Store) Update(ctx context.Context, documentID int64, fn func(tx *store.Tx) error) error {
	ctx, span := tracer.Start(ctx, "ScyllaDB.Update")
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
	documentID := tx.DocumentID()
	var guard statement
	if version == 0 {
		guard = statement{
			cql:  fmt.Sprintf("UPDATE %s SET version = ? WHERE document_id = ? IF version = null", s.fullTableName),
			args: []interface{}{int64(1), documentID},
		}
	} else {
		guard = statement{
			cql:  fmt.Sprintf("UPDATE %s SET version = ? WHERE document_id = ? IF version = ?", s.fullTableName),
			args: []interface{}{version + 1, documentID, version},
		}
	}

	stmts := []statement{guard}
	for _, section := range tx.Deletes() {
		stmts = append(stmts, statement{
			cql:  fmt.Sprintf("DELETE FROM %s WHERE document_id = ? AND section = ?", s.fullTableName),
			args: []interface{}{documentID, section},
		})
	}
	for _, rec := range tx.Puts() {
		if err := rec.Validate(); err != nil {
			return err
		}
		stmts = append(stmts, statement{
			cql: fmt.Sprintf("INSERT INTO %s (document_id, section, user_id, user_name, acquired_at) VALUES (?, ?, ?, ?, ?)",
				s.fullTableName),
			args: []interface{}{documentID, rec.Section, rec.UserID, rec.UserName, rec.AcquiredAt},
		})
	}

	applied, err := s.session.ExecuteCAS(ctx, stmts)
	if err != nil {
		return store.Unavailable("batch", err)
	}
	if !applied {
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

// RemoveByUser finds the user's documents through the user_id index
func (s *Store) RemoveByUser(ctx context.Context, userID int64) error {
	ctx, span := tracer.Start(ctx, "ScyllaDB.RemoveByUser")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer span.End()

	ids, err := s.documents(ctx, fmt.Sprintf("SELECT document_id FROM %s WHERE user_id = ?", s.fullTableName), userID)
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
	ctx, span := tracer.Start(ctx, "ScyllaDB.RemoveExpired")
	defer span.End()

	ids, err := s.documents(ctx, fmt.Sprintf(
		"SELECT document_id FROM %s WHERE acquired_at < ? ALLOW FILTERING", s.fullTableName), before)
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

func (s *Store) documents(ctx context.Context, query string, values ...interface{}) ([]int64, error) {
	rows, err := s.session.Select(ctx, query, values...)
	if err != nil {
		return nil, store.Unavailable("select", err)
	}
	seen := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		seen[int64Column(row, "document_id")] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close closes the session
func (s *Store) Close() {
	s.session.Close()
}
