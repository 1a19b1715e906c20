package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
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

func mockDriver(t *testing.T, dialectName string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(testGraph(t), dialectName, db), mock
}

func TestSelectPlan(t *testing.T) {
	t.Parallel()
	g := testGraph(t)

	t.Run("Postgres", func(t *testing.T) {
		p, err := plan.Query("User").
			Where(querylanguage.FieldGT("age", 18)).
			OrderBy(plan.Desc("name")).
			Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.Postgres, p)
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT "users"."id", "users"."name", "users"."email", "users"."age" FROM "users" WHERE "users"."age" > $1 ORDER BY "users"."name" DESC, "users"."id"`,
			s.String())
		assert.Equal(t, []any{18}, s.args)
	})

	t.Run("MySQLQuoting", func(t *testing.T) {
		p, err := plan.Query("User").Where(querylanguage.FieldEQ("name", "a")).Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.MySQL, p)
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT `users`.`id`, `users`.`name`, `users`.`email`, `users`.`age` FROM `users` WHERE `users`.`name` = ? ORDER BY `users`.`id`",
			s.String())
	})

	t.Run("OffsetWithoutLimit", func(t *testing.T) {
		p, err := plan.Query("User").OrderBy(plan.Asc("id")).Offset(10).Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.MySQL, p)
		require.NoError(t, err)
		assert.Contains(t, s.String(), " LIMIT 18446744073709551615 OFFSET 10")
		s, err = selectPlan(dialect.SQLite, p)
		require.NoError(t, err)
		assert.Contains(t, s.String(), " LIMIT -1 OFFSET 10")
	})

	t.Run("NullComparison", func(t *testing.T) {
		p, err := plan.Query("User").Where(querylanguage.FieldEQ("email", nil)).Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.SQLite, p)
		require.NoError(t, err)
		assert.Contains(t, s.String(), `"users"."email" IS NULL`)
		assert.Empty(t, s.args)
	})

	t.Run("EmptyIn", func(t *testing.T) {
		p, err := plan.Query("User").Where(querylanguage.FieldIn("age")).Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.SQLite, p)
		require.NoError(t, err)
		assert.Contains(t, s.String(), "WHERE 1 = 0")
	})

	t.Run("NavigationExists", func(t *testing.T) {
		p, err := plan.Query("User").
			Where(querylanguage.HasEdgeWith("posts", querylanguage.FieldContains("title", "go"))).
			Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.Postgres, p)
		require.NoError(t, err)
		assert.Contains(t, s.String(),
			`EXISTS (SELECT 1 FROM "posts" AS "t1" WHERE "t1"."author_id" = "users"."id" AND "t1"."title" LIKE $1 ESCAPE $2)`)
		assert.Equal(t, []any{"%go%", `\`}, s.args)
	})

	t.Run("Aggregates", func(t *testing.T) {
		p, err := plan.Query("User").Aggregate(plan.Count(), plan.Sum("age")).Build(g)
		require.NoError(t, err)
		s, err := selectPlan(dialect.Postgres, p)
		require.NoError(t, err)
		assert.Equal(t, `SELECT COUNT(*), SUM("users"."age") FROM "users"`, s.String())
	})
}

func TestQueryScan(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectQuery(`SELECT "users"."id", "users"."name", "users"."email", "users"."age" FROM "users" WHERE "users"."age" > $1 ORDER BY "users"."id"`).
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "age"}).
			AddRow(int64(1), "a", "a@example.com", int64(20)).
			AddRow(int64(2), "b", nil, int64(30)))

	p, err := plan.Query("User").Where(querylanguage.FieldGT("age", 18)).Build(drv.graph)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	defer rows.Close()

	columns, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email", "age"}, columns)

	require.True(t, rows.Next())
	dest := make([]strata.Value, 4)
	require.NoError(t, rows.Scan(dest))
	assert.Equal(t, []strata.Value{int64(1), "a", "a@example.com", 20}, dest)

	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(dest))
	assert.Nil(t, dest[2], "NULL scans as nil")
	assert.Equal(t, 30, dest[3], "int property narrows to int")

	assert.False(t, rows.Next())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryIncludes(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectQuery(`SELECT "users"."id", "users"."name", "users"."email", "users"."age" FROM "users" ORDER BY "users"."id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "age"}).
			AddRow(int64(1), "a", "a@example.com", int64(20)))
	mock.ExpectQuery(`SELECT "posts"."id", "posts"."author_id", "posts"."title" FROM "posts" WHERE "posts"."author_id" IN ($1) ORDER BY "posts"."id"`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "author_id", "title"}).
			AddRow(int64(10), int64(1), "first").
			AddRow(int64(11), int64(1), "second"))

	p, err := plan.Query("User").Include("posts").Build(drv.graph)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	require.True(t, rows.NextResultSet(), "one result set per navigation")
	var titles []string
	for rows.Next() {
		dest := make([]strata.Value, 3)
		require.NoError(t, rows.Scan(dest))
		titles = append(titles, dest[2].(string))
	}
	assert.Equal(t, []string{"first", "second"}, titles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryIncludesNoParents(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.Postgres)

	// No users match; the navigation set is still emitted, empty, without
	// touching the database again.
	mock.ExpectQuery(`SELECT "users"."id", "users"."name", "users"."email", "users"."age" FROM "users" ORDER BY "users"."id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "age"}))

	p, err := plan.Query("User").Include("posts").Build(drv.graph)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	defer rows.Close()

	assert.False(t, rows.Next())
	require.True(t, rows.NextResultSet())
	columns, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "author_id", "title"}, columns)
	assert.False(t, rows.Next())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAggregates(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectQuery(`SELECT COUNT(*), AVG("users"."age") FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "mean"}).AddRow(int64(3), 24.5))

	p, err := plan.Query("User").Aggregate(plan.Count(), plan.Mean("age")).Build(drv.graph)
	require.NoError(t, err)
	rows, err := drv.Query(context.Background(), p)
	require.NoError(t, err)
	defer rows.Close()

	columns, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "mean(age)"}, columns)
	require.True(t, rows.Next())
	dest := make([]strata.Value, 2)
	require.NoError(t, rows.Scan(dest))
	assert.Equal(t, []strata.Value{int64(3), 24.5}, dest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInsert(t *testing.T) {
	t.Parallel()

	t.Run("PostgresReturning", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name", "email", "age") VALUES ($1, $2, $3) RETURNING "id"`).
			WithArgs("a", "a@example.com", 20).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
		mock.ExpectCommit()

		res, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20},
		}})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, int64(5), res[0].Generated["id"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MySQLLastInsertId", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `users` (`name`, `email`, `age`) VALUES (?, ?, ?)").
			WithArgs("a", "a@example.com", 20).
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectCommit()

		res, err := drv.Apply(context.Background(), []dialect.Operation{{
			Op:     strata.OpInsert,
			Entity: "User",
			Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20},
		}})
		require.NoError(t, err)
		assert.Equal(t, int64(7), res[0].Generated["id"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("KeyReference", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name", "email", "age") VALUES ($1, $2, $3) RETURNING "id"`).
			WithArgs("a", "a@example.com", 20).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
		mock.ExpectQuery(`INSERT INTO "posts" ("author_id", "title") VALUES ($1, $2) RETURNING "id"`).
			WithArgs(int64(5), "hello").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
		mock.ExpectCommit()

		res, err := drv.Apply(context.Background(), []dialect.Operation{
			{Op: strata.OpInsert, Entity: "User", Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20}},
			{Op: strata.OpInsert, Entity: "Post", Values: map[string]strata.Value{
				"author_id": dialect.KeyRef{Op: 0, Property: "id"},
				"title":     "hello",
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(9), res[1].Generated["id"])
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApplyUpdateDelete(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "age" = $1 WHERE "id" = $2`).
		WithArgs(21, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "posts" WHERE "id" = $1`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := drv.Apply(context.Background(), []dialect.Operation{
		{Op: strata.OpUpdate, Entity: "User", Key: []strata.Value{int64(1)}, Values: map[string]strata.Value{"age": 21}},
		{Op: strata.OpDelete, Entity: "Post", Key: []strata.Value{int64(9)}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "users" SET "age" = $1 WHERE "id" = $2`).
			WithArgs(99, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := drv.Apply(context.Background(), []dialect.Operation{
			{Op: strata.OpUpdate, Entity: "User", Key: []strata.Value{int64(42)}, Values: map[string]strata.Value{"age": 99}},
		})
		require.Error(t, err)
		assert.True(t, strata.IsNotFound(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApplyRollback(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.MySQL)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users` (`name`, `email`, `age`) VALUES (?, ?, ?)").
		WithArgs("a", "a@example.com", 20).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `users` (`name`, `email`, `age`) VALUES (?, ?, ?)").
		WithArgs("b", "a@example.com", 30).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@example.com'"})
	mock.ExpectRollback()

	_, err := drv.Apply(context.Background(), []dialect.Operation{
		{Op: strata.OpInsert, Entity: "User", Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20}},
		{Op: strata.OpInsert, Entity: "User", Values: map[string]strata.Value{"name": "b", "email": "a@example.com", "age": 30}},
	})
	require.Error(t, err)
	assert.True(t, strata.IsConstraintError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactions(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users" ("name", "email", "age") VALUES ($1, $2, $3) RETURNING "id"`).
		WithArgs("a", "a@example.com", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	_, err = tx.Apply(context.Background(), []dialect.Operation{{
		Op:     strata.OpInsert,
		Entity: "User",
		Values: map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20},
	}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	err = tx.Commit()
	require.Error(t, err)
	assert.True(t, strata.IsInvalidOperation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectNormalization(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	for driverName, want := range map[string]string{
		"sqlite3":  dialect.SQLite,
		"sqlite":   dialect.SQLite,
		"mysql":    dialect.MySQL,
		"postgres": dialect.Postgres,
	} {
		drv := OpenDB(g, driverName, nil)
		assert.Equal(t, want, drv.Dialect(), driverName)
	}
}

func TestConstraintClassification(t *testing.T) {
	t.Parallel()

	for name, err := range map[string]error{
		"MySQLDuplicate":  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"},
		"MySQLForeignKey": &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"},
		"PostgresUnique":  &pq.Error{Code: "23505"},
		"PostgresNotNull": &pq.Error{Code: "23502"},
		"SQLiteUnique":    errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"),
		"SQLiteNotNull":   errors.New("constraint failed: NOT NULL constraint failed: users.age (1299)"),
	} {
		t.Run(name, func(t *testing.T) {
			wrapped := wrapConstraint(err)
			assert.True(t, strata.IsConstraintError(wrapped), "%v", wrapped)
		})
	}

	t.Run("Passthrough", func(t *testing.T) {
		err := errors.New("connection refused")
		assert.Same(t, err, wrapConstraint(err))
		assert.False(t, strata.IsConstraintError(err))
	})
}
