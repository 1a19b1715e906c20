package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/memory"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.Register("User",
		field.Int64("id").Key().ServerDefault(),
		field.String("name"),
		field.String("email").Unique(),
		field.Int("age"),
	))
	require.NoError(t, g.Register("Post",
		field.Int64("id").Key().ServerDefault(),
		field.Int64("author_id"),
		field.String("title"),
	))
	require.NoError(t, g.Relate("User",
		edge.To("posts", "Post").Columns("author_id").OnDelete(edge.Cascade),
	))
	require.NoError(t, g.Relate("Post",
		edge.From("author", "User").Ref("posts").Unique().Required(),
	))
	require.NoError(t, g.Finalize())
	return g
}

func insertUser(t *testing.T, drv *memory.Driver, name, email string, age int) int64 {
	t.Helper()
	res, err := drv.Apply(context.Background(), []dialect.Operation{{
		Op:     strata.OpInsert,
		Entity: "User",
		Values: map[string]strata.Value{"name": name, "email": email, "age": age},
	}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	id, ok := res[0].Generated["id"].(int64)
	require.True(t, ok, "insert must report the generated key")
	return id
}

func insertPost(t *testing.T, drv *memory.Driver, author int64, title string) int64 {
	t.Helper()
	res, err := drv.Apply(context.Background(), []dialect.Operation{{
		Op:     strata.OpInsert,
		Entity: "Post",
		Values: map[string]strata.Value{"author_id": author, "title": title},
	}})
	require.NoError(t, err)
	return res[0].Generated["id"].(int64)
}

// scanAll drains the current result set into one map per row.
func scanAll(t *testing.T, rows dialect.Rows) []map[string]strata.Value {
	t.Helper()
	columns, err := rows.Columns()
	require.NoError(t, err)
	var out []map[string]strata.Value
	for rows.Next() {
		dest := make([]strata.Value, len(columns))
		require.NoError(t, rows.Scan(dest))
		m := make(map[string]strata.Value, len(columns))
		for i, c := range columns {
			m[c] = dest[i]
		}
		out = append(out, m)
	}
	return out
}

func TestApplyInsert(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)

	id1 := insertUser(t, drv, "a", "a@example.com", 20)
	id2 := insertUser(t, drv, "b", "b@example.com", 30)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	t.Run("UniqueViolation", func(t *testing.T) {
		_, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "c", "email": "a@example.com", "age": 1},
		}})
		require.Error(t, err)
		assert.True(t, strata.IsConstraintError(err))
	})

	t.Run("MissingRequiredValue", func(t *testing.T) {
		_, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "c"},
		}})
		require.Error(t, err)
		assert.True(t, strata.IsConstraintError(err))
	})

	t.Run("ExplicitKeyAdvancesSequence", func(t *testing.T) {
		// A client-assigned key claims the id space up to it; the next
		// generated key continues past it instead of colliding.
		_, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"id": int64(5), "name": "e", "email": "e@example.com", "age": 1},
		}})
		require.NoError(t, err)
		assert.Equal(t, int64(6), insertUser(t, drv, "f", "f@example.com", 1))
	})

	t.Run("AtomicBatch", func(t *testing.T) {
		// Second operation fails; the first must not stick.
		_, err := drv.Apply(context.Background(), []dialect.Operation{
			{Op: strata.OpInsert, Entity: "User", Values: map[string]strata.Value{"name": "x", "email": "x@example.com", "age": 1}},
			{Op: strata.OpInsert, Entity: "User", Values: map[string]strata.Value{"name": "y", "email": "a@example.com", "age": 1}},
		})
		require.Error(t, err)
		p, err := plan.Query("User").Where(querylanguage.FieldEQ("email", "x@example.com")).Build(g)
		require.NoError(t, err)
		rows, err := drv.Query(context.Background(), p)
		require.NoError(t, err)
		defer rows.Close()
		assert.Empty(t, scanAll(t, rows))
	})
}

func TestKeyRef(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)

	// The dependent references its principal's generated key in one batch.
	res, err := drv.Apply(context.Background(), []dialect.Operation{
		{Op: strata.OpInsert, Entity: "User", Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20}},
		{Op: strata.OpInsert, Entity: "Post", Values: map[string]strata.Value{
			"title":     "hello",
			"author_id": dialect.KeyRef{Op: 0, Property: "id"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)

	p, err := plan.Query("Post").Build(g)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	defer rows.Close()
	posts := scanAll(t, rows)
	require.Len(t, posts, 1)
	assert.Equal(t, res[0].Generated["id"], posts[0]["author_id"])

	t.Run("ForwardReference", func(t *testing.T) {
		_, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "Post",
			Values: map[string]strata.Value{"title": "x", "author_id": dialect.KeyRef{Op: 5, Property: "id"}},
		}})
		require.Error(t, err)
		assert.True(t, strata.IsInvalidOperation(err))
	})
}

func TestApplyUpdateDelete(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)
	id := insertUser(t, drv, "a", "a@example.com", 20)

	_, err := drv.Apply(context.Background(), []dialect.Operation{{
		Op:     strata.OpUpdate,
		Entity: "User",
		Key:    []strata.Value{id},
		Values: map[string]strata.Value{"age": 21},
	}})
	require.NoError(t, err)

	p, err := plan.Query("User").Build(g)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	users := scanAll(t, rows)
	rows.Close()
	require.Len(t, users, 1)
	assert.Equal(t, 21, users[0]["age"])

	_, err = drv.Apply(context.Background(), []dialect.Operation{{
		Op:     strata.OpDelete,
		Entity: "User",
		Key:    []strata.Value{id},
	}})
	require.NoError(t, err)

	rows, err = drv.Query(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, scanAll(t, rows))
	rows.Close()

	t.Run("UpdateMissing", func(t *testing.T) {
		_, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpUpdate,
			Entity: "User",
			Key:    []strata.Value{int64(404)},
			Values: map[string]strata.Value{"age": 1},
		}})
		assert.True(t, strata.IsNotFound(err))
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		_, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpDelete,
			Entity: "User",
			Key:    []strata.Value{int64(404)},
		}})
		assert.True(t, strata.IsNotFound(err))
	})
}

func TestQueryPredicates(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)
	insertUser(t, drv, "Ariel", "ariel@example.com", 28)
	insertUser(t, drv, "Boris", "boris@example.com", 35)
	insertUser(t, drv, "Chris", "chris@example.com", 35)

	ctx := context.Background()
	query := func(t *testing.T, ps ...querylanguage.P) []map[string]strata.Value {
		t.Helper()
		p, err := plan.Query("User").Where(ps...).Build(g)
		require.NoError(t, err)
		rows, err := drv.Query(ctx, p)
		require.NoError(t, err)
		defer rows.Close()
		return scanAll(t, rows)
	}

	assert.Len(t, query(t, querylanguage.FieldEQ("age", 35)), 2)
	assert.Len(t, query(t, querylanguage.FieldGT("age", 30)), 2)
	assert.Len(t, query(t, querylanguage.FieldIn("name", "Ariel", "Boris")), 2)
	assert.Len(t, query(t, querylanguage.FieldNotIn("name", "Ariel", "Boris")), 1)
	assert.Len(t, query(t, querylanguage.FieldContains("name", "ri")), 3)
	assert.Len(t, query(t, querylanguage.FieldHasPrefix("name", "Bo")), 1)
	assert.Len(t, query(t, querylanguage.FieldEqualFold("name", "ARIEL")), 1)
	assert.Len(t, query(t, querylanguage.Not(querylanguage.FieldEQ("age", 35))), 1)
	assert.Len(t, query(t,
		querylanguage.Or(querylanguage.FieldEQ("name", "Ariel"), querylanguage.FieldEQ("name", "Boris")),
	), 2)
}

func TestQueryHasEdge(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)
	a := insertUser(t, drv, "a", "a@example.com", 20)
	insertUser(t, drv, "b", "b@example.com", 30)
	insertPost(t, drv, a, "hello")

	p, err := plan.Query("User").Where(querylanguage.HasEdge("posts")).Build(g)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	users := scanAll(t, rows)
	rows.Close()
	require.Len(t, users, 1)
	assert.Equal(t, "a", users[0]["name"])

	p, err = plan.Query("User").
		Where(querylanguage.HasEdgeWith("posts", querylanguage.FieldEQ("title", "missing"))).
		Build(g)
	require.NoError(t, err)
	rows, err = drv.Query(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, scanAll(t, rows))
	rows.Close()
}

func TestQueryOrderAndPagination(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)
	for _, u := range []struct {
		name string
		age  int
	}{{"b", 30}, {"a", 20}, {"c", 25}, {"d", 25}} {
		insertUser(t, drv, u.name, u.name+"@example.com", u.age)
	}

	p, err := plan.Query("User").OrderBy(plan.Asc("age"), plan.Desc("name")).Build(g)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	users := scanAll(t, rows)
	rows.Close()
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u["name"].(string)
	}
	assert.Equal(t, []string{"a", "d", "c", "b"}, names)

	t.Run("Deterministic", func(t *testing.T) {
		p, err := plan.Query("User").OrderBy(plan.Asc("age")).Offset(1).Limit(2).Build(g)
		require.NoError(t, err)
		var prev []map[string]strata.Value
		for i := 0; i < 5; i++ {
			rows, err := drv.Query(context.Background(), p)
			require.NoError(t, err)
			got := scanAll(t, rows)
			rows.Close()
			require.Len(t, got, 2)
			if prev != nil {
				assert.Equal(t, prev, got, "paging over unchanged data must be reproducible")
			}
			prev = got
		}
	})
}

func TestQueryIncludes(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)
	a := insertUser(t, drv, "a", "a@example.com", 20)
	b := insertUser(t, drv, "b", "b@example.com", 30)
	insertPost(t, drv, a, "p1")
	insertPost(t, drv, a, "p2")
	insertPost(t, drv, b, "p3")

	p, err := plan.Query("User").Include("posts").Build(g)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	defer rows.Close()

	users := scanAll(t, rows)
	assert.Len(t, users, 2)
	require.True(t, rows.NextResultSet(), "include level must arrive as a second result set")
	posts := scanAll(t, rows)
	assert.Len(t, posts, 3)
	assert.False(t, rows.NextResultSet())
}

func TestQueryAggregates(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	drv := memory.NewDriver(g)
	insertUser(t, drv, "a", "a@example.com", 20)
	insertUser(t, drv, "b", "b@example.com", 30)
	insertUser(t, drv, "c", "c@example.com", 40)

	p, err := plan.Query("User").
		Aggregate(plan.Count(), plan.Sum("age"), plan.Mean("age"), plan.Min("name"), plan.Max("name"), plan.Any()).
		Build(g)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	got := scanAll(t, rows)
	rows.Close()
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0]["count"])
	assert.Equal(t, int64(90), got[0]["sum(age)"])
	assert.Equal(t, float64(30), got[0]["mean(age)"])
	assert.Equal(t, "a", got[0]["min(name)"])
	assert.Equal(t, "c", got[0]["max(name)"])
	assert.Equal(t, true, got[0]["any"])

	t.Run("All", func(t *testing.T) {
		p, err := plan.Query("User").Aggregate(plan.All(querylanguage.FieldGTE("age", 20))).Build(g)
		require.NoError(t, err)
		rows, err := drv.Query(context.Background(), p)
		require.NoError(t, err)
		got := scanAll(t, rows)
		rows.Close()
		assert.Equal(t, true, got[0]["all"])
	})

	t.Run("Grouped", func(t *testing.T) {
		a := insertUser(t, drv, "d", "d@example.com", 20)
		insertPost(t, drv, a, "p1")
		p, err := plan.Query("Post").GroupBy("author_id").Aggregate(plan.Count()).Build(g)
		require.NoError(t, err)
		rows, err := drv.Query(context.Background(), p)
		require.NoError(t, err)
		got := scanAll(t, rows)
		rows.Close()
		require.Len(t, got, 1)
		assert.Equal(t, a, got[0]["author_id"])
		assert.Equal(t, int64(1), got[0]["count"])
	})
}

func TestTransactions(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		drv := memory.NewDriver(g)
		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		_, err = tx.Apply(ctx, []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 1},
		}})
		require.NoError(t, err)

		// Uncommitted writes are invisible outside the transaction.
		p, err := plan.Query("User").Build(g)
		require.NoError(t, err)
		rows, err := drv.Query(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, scanAll(t, rows))
		rows.Close()

		require.NoError(t, tx.Commit())
		rows, err = drv.Query(ctx, p)
		require.NoError(t, err)
		assert.Len(t, scanAll(t, rows), 1)
		rows.Close()

		assert.True(t, strata.IsInvalidOperation(tx.Commit()))
	})

	t.Run("Rollback", func(t *testing.T) {
		drv := memory.NewDriver(g)
		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		_, err = tx.Apply(ctx, []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 1},
		}})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		p, err := plan.Query("User").Build(g)
		require.NoError(t, err)
		rows, err := drv.Query(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, scanAll(t, rows))
		rows.Close()
	})

	t.Run("Cancelled", func(t *testing.T) {
		drv := memory.NewDriver(g)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := drv.Tx(cancelled)
		require.Error(t, err)
		_, err = drv.Apply(cancelled, []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 1},
		}})
		require.Error(t, err)
	})
}
