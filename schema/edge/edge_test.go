package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/strata/schema/edge"
)

func TestEdgeTo(t *testing.T) {
	t.Parallel()
	ed := edge.To("items", "OrderItem").
		Columns("order_id").
		OnDelete(edge.Cascade).
		Loading(edge.EagerLoad).
		Comment("line items").
		Descriptor()
	assert.Equal(t, "items", ed.Name)
	assert.Equal(t, "OrderItem", ed.Type)
	assert.False(t, ed.Inverse)
	assert.Equal(t, []string{"order_id"}, ed.Columns)
	assert.Equal(t, edge.Cascade, ed.OnDelete)
	assert.Equal(t, edge.EagerLoad, ed.Strategy)
	assert.Equal(t, "line items", ed.Comment)
}

func TestEdgeFrom(t *testing.T) {
	t.Parallel()
	ed := edge.From("order", "Order").
		Ref("items").
		Unique().
		Required().
		Descriptor()
	assert.Equal(t, "order", ed.Name)
	assert.Equal(t, "Order", ed.Type)
	assert.True(t, ed.Inverse)
	assert.Equal(t, "items", ed.Ref)
	assert.True(t, ed.Unique)
	assert.True(t, ed.Required)
	assert.Equal(t, edge.NoAction, ed.OnDelete)
	assert.Equal(t, edge.ExplicitLoad, ed.Strategy)
}

func TestEdgeThrough(t *testing.T) {
	t.Parallel()
	ed := edge.To("tags", "Tag").Through("PostTag").Descriptor()
	assert.Equal(t, "PostTag", ed.Through)
}

func TestStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "O2O", edge.O2O.String())
	assert.Equal(t, "O2M", edge.O2M.String())
	assert.Equal(t, "M2O", edge.M2O.String())
	assert.Equal(t, "M2M", edge.M2M.String())
	assert.Equal(t, "Invalid", edge.Kind(0).String())

	assert.Equal(t, "NoAction", edge.NoAction.String())
	assert.Equal(t, "Cascade", edge.Cascade.String())
	assert.Equal(t, "Restrict", edge.Restrict.String())
	assert.Equal(t, "SetNull", edge.SetNull.String())

	assert.Equal(t, "Explicit", edge.ExplicitLoad.String())
	assert.Equal(t, "Eager", edge.EagerLoad.String())
	assert.Equal(t, "Lazy", edge.LazyLoad.String())
}
