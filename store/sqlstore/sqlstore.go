/*Package sqlstore is a Postgres implementation of the entity storage API
on database/sql and lib/pq.

Every endpoint maps onto one table with the uniform shape

	id       varchar PRIMARY KEY
	seq      bigserial            -- preserves insertion order for queries
	active   boolean NOT NULL DEFAULT true
	properties jsonb NOT NULL DEFAULT '{}'::jsonb

Domain logic stays out of this package: a materializer function per
endpoint turns rows back into entity instances, and relation edges are
resolved through per-relation SQL configured at startup.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/modelapi/modelapi/core"
)

// Materializer turns a stored row back into an entity instance
type Materializer func(id string, active bool, fields map[string]interface{}) core.Instance

// Relation holds the queries that resolve edges towards one target
// endpoint. Each query receives the instance id as $1 and must select
// id, active, properties from the target's table in a deterministic
// order.
type Relation struct {
	// Forward resolves foreign-key, one-to-one and many-to-many kinds
	Forward string
	// Reverse resolves the reverse kind
	Reverse string
}

// Entity configures how one endpoint maps onto a table
type Entity struct {
	// Endpoint is the entity's URL key. This is mandatory.
	Endpoint string
	// Table defaults to the endpoint name
	Table string
	// New materializes rows of this entity. This is mandatory.
	New Materializer
	// Relations is keyed by target endpoint
	Relations map[string]Relation
}

// Builder is a builder helper for the Store
type Builder struct {
	// DB is a postgres database. This is mandatory.
	DB *sql.DB
	// Schema is the postgres schema, "public" by default
	Schema string
	// Entities configures the endpoint tables. This is mandatory.
	Entities []Entity
	// UpdateSchema creates missing tables at startup
	UpdateSchema bool
}

// Store is a Postgres core.Store
type Store struct {
	db       *sql.DB
	schema   string
	entities map[string]*Entity
}

// New realizes the store. It creates the tables (if requested and they do
// not exist) and validates the configuration.
func New(bb *Builder) *Store {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if len(bb.Entities) == 0 {
		panic("Entities are missing")
	}
	schema := bb.Schema
	if schema == "" {
		schema = "public"
	}

	s := &Store{
		db:       bb.DB,
		schema:   schema,
		entities: make(map[string]*Entity),
	}
	if bb.UpdateSchema {
		if _, err := bb.DB.Exec(`CREATE schema IF NOT EXISTS ` + schema + `;`); err != nil {
			panic(fmt.Errorf("invalid configuration updating schema: %s", err))
		}
	}
	for i := range bb.Entities {
		e := &bb.Entities[i]
		if e.Endpoint == "" || e.New == nil {
			panic(fmt.Sprintf("invalid entity configuration at index %d", i))
		}
		if e.Table == "" {
			e.Table = e.Endpoint
		}
		if _, ok := s.entities[e.Endpoint]; ok {
			panic(fmt.Sprintf("duplicate entity %s", e.Endpoint))
		}
		s.entities[e.Endpoint] = e

		if bb.UpdateSchema {
			createQuery := fmt.Sprintf(`CREATE table IF NOT EXISTS %s."%s" `+
				`(id varchar NOT NULL PRIMARY KEY, `+
				`seq bigserial, `+
				`active boolean NOT NULL DEFAULT true, `+
				`properties jsonb NOT NULL DEFAULT '{}'::jsonb);`, schema, e.Table)
			if _, err := bb.DB.Exec(createQuery); err != nil {
				panic(fmt.Errorf("invalid configuration updating schema: %s", err))
			}
		}
	}
	return s
}

func (s *Store) entity(endpoint string) (*Entity, error) {
	e, ok := s.entities[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: no endpoint %s", core.ErrNotFound, endpoint)
	}
	return e, nil
}

// Get returns the instance with the given id, or ErrNotFound
func (s *Store) Get(ctx context.Context, endpoint, id string) (core.Instance, error) {
	e, err := s.entity(endpoint)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, active, properties FROM %s."%s" WHERE id = $1;`, s.schema, e.Table)
	instance, err := s.scanOne(e, s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrNotFound, endpoint, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	return instance, nil
}

// Query returns all instances of the endpoint in insertion order
func (s *Store) Query(ctx context.Context, endpoint string) ([]core.Instance, error) {
	e, err := s.entity(endpoint)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, active, properties FROM %s."%s" ORDER BY seq ASC;`, s.schema, e.Table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	defer rows.Close()
	return s.scanAll(e, rows)
}

// Related resolves the relation edges of from towards the target endpoint
func (s *Store) Related(ctx context.Context, endpoint string, from core.Instance,
	target string, kind core.RelationKind) ([]core.Instance, error) {
	e, err := s.entity(endpoint)
	if err != nil {
		return nil, err
	}
	targetEntity, err := s.entity(target)
	if err != nil {
		return nil, err
	}
	relation, ok := e.Relations[target]
	if !ok {
		return nil, nil
	}
	query := relation.Forward
	if kind == core.RelationReverse {
		query = relation.Reverse
	}
	if query == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, query, from.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	defer rows.Close()
	instances, err := s.scanAll(targetEntity, rows)
	if err != nil {
		return nil, err
	}
	if !kind.ToMany() && len(instances) > 1 {
		instances = instances[:1]
	}
	return instances, nil
}

// Insert persists a new instance. An empty id gets a fresh one. Returns
// the id actually used.
func (s *Store) Insert(ctx context.Context, endpoint, id string, active bool, fields map[string]interface{}) (string, error) {
	e, err := s.entity(endpoint)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.New().String()
	}
	properties, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s."%s"(id, active, properties) VALUES($1, $2, $3);`, s.schema, e.Table)
	if _, err := s.db.ExecContext(ctx, query, id, active, properties); err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	return id, nil
}

// Update overwrites the stored state of an instance
func (s *Store) Update(ctx context.Context, endpoint, id string, active bool, fields map[string]interface{}) error {
	e, err := s.entity(endpoint)
	if err != nil {
		return err
	}
	properties, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	query := fmt.Sprintf(`UPDATE %s."%s" SET active = $2, properties = $3 WHERE id = $1;`, s.schema, e.Table)
	result, err := s.db.ExecContext(ctx, query, id, active, properties)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s/%s", core.ErrNotFound, endpoint, id)
	}
	return nil
}

type row interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanOne(e *Entity, r row) (core.Instance, error) {
	var (
		id         string
		active     bool
		properties json.RawMessage
	)
	if err := r.Scan(&id, &active, &properties); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(properties, &fields); err != nil {
		return nil, err
	}
	return e.New(id, active, fields), nil
}

func (s *Store) scanAll(e *Entity, rows *sql.Rows) ([]core.Instance, error) {
	var instances []core.Instance
	for rows.Next() {
		instance, err := s.scanOne(e, rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrStorageFailure, err)
	}
	return instances, nil
}
