package memstore

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelapi/modelapi/core"
)

type item struct {
	id string
}

func (i *item) ID() string                            { return i.id }
func (i *item) Active() bool                          { return true }
func (i *item) Field(name string) (interface{}, bool) { return nil, false }
func (i *item) IsOwner(user core.User) bool           { return false }

func (i *item) Update(r *http.Request) (core.Instance, error) { return i, nil }

func TestPutAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put("item", &item{id: "a"})

	instance, err := s.Get(ctx, "item", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", instance.ID())

	_, err = s.Get(ctx, "item", "b")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Get(ctx, "other", "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPutReplacesInPlace(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put("item", &item{id: "a"})
	s.Put("item", &item{id: "b"})

	replacement := &item{id: "a"}
	s.Put("item", replacement)

	items, err := s.Query(ctx, "item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID(), "replacement keeps the original position")
	assert.Same(t, replacement, items[0])
}

func TestQueryOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Put("item", &item{id: fmt.Sprintf("i%d", i)})
	}

	items, err := s.Query(ctx, "item")
	require.NoError(t, err)
	require.Len(t, items, 5)
	for i, instance := range items {
		assert.Equal(t, fmt.Sprintf("i%d", i), instance.ID())
	}

	empty, err := s.Query(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRelated(t *testing.T) {
	s := New()
	ctx := context.Background()
	parent := &item{id: "p1"}
	c1 := &item{id: "c1"}
	c2 := &item{id: "c2"}
	s.Put("parent", parent)
	s.Put("child", c1)
	s.Put("child", c2)
	s.Link("child", "c1", "parent", "p1")
	s.Link("child", "c2", "parent", "p1")

	// forward: each child points at its parent
	related, err := s.Related(ctx, "child", c1, "parent", core.RelationForeignKey)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "p1", related[0].ID())

	// reverse: the parent fans out to its children, in link order
	related, err = s.Related(ctx, "parent", parent, "child", core.RelationReverse)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, "c1", related[0].ID())
	assert.Equal(t, "c2", related[1].ID())

	// no edges
	related, err = s.Related(ctx, "parent", parent, "nothing", core.RelationManyToMany)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestRelatedTruncatesToOne(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &item{id: "a"}
	s.Put("left", a)
	s.Put("right", &item{id: "r1"})
	s.Put("right", &item{id: "r2"})
	s.Link("left", "a", "right", "r1")
	s.Link("left", "a", "right", "r2")

	related, err := s.Related(ctx, "left", a, "right", core.RelationOneToOne)
	require.NoError(t, err)
	require.Len(t, related, 1, "to-one kinds yield at most one instance")
	assert.Equal(t, "r1", related[0].ID())

	related, err = s.Related(ctx, "left", a, "right", core.RelationManyToMany)
	require.NoError(t, err)
	assert.Len(t, related, 2)
}

func TestRelatedSkipsDanglingEdges(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &item{id: "a"}
	s.Put("left", a)
	s.Put("right", &item{id: "r1"})
	s.Link("left", "a", "right", "r1")
	s.Link("left", "a", "right", "ghost")

	related, err := s.Related(ctx, "left", a, "right", core.RelationManyToMany)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "r1", related[0].ID())
}

func TestNewID(t *testing.T) {
	assert.NotEmpty(t, NewID())
	assert.NotEqual(t, NewID(), NewID())
}
