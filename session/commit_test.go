package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/memory"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/session"
)

func TestCommitInsertFlow(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()

	author, err := s.Add("User", map[string]strata.Value{"name": "a", "email": "a@example.com", "age": 20})
	require.NoError(t, err)
	post, err := s.Add("Post", map[string]strata.Value{"title": "hello"})
	require.NoError(t, err)
	require.NoError(t, post.SetRef("author", author))

	// The dependent insert waits for the author's generated key.
	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Inserts: 2}, stats)

	assert.Equal(t, strata.Unchanged, author.State())
	assert.Equal(t, strata.Unchanged, post.State())
	uid, ok := author.Value("id").(int64)
	require.True(t, ok, "generated key must flow back")
	assert.Equal(t, uid, post.Value("author_id"))

	// Committed instances are tracked under their generated keys.
	got, err := s.Get(ctx, "User", uid)
	require.NoError(t, err)
	assert.Same(t, author, got)

	fresh := session.New(g, drv)
	posts, err := fresh.Query("Post").Where(querylanguage.FieldEQ("author_id", uid)).All(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Value("title"))
}

func TestCommitUpdate(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	id := seedUser(t, drv, "a", "a@example.com", 20)

	e, err := s.Get(ctx, "User", id)
	require.NoError(t, err)
	require.NoError(t, e.Set("age", 42))

	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Updates: 1}, stats)
	assert.Equal(t, strata.Unchanged, e.State())

	// The snapshot rebased; re-setting the committed value stays Unchanged.
	require.NoError(t, e.Set("age", 42))
	assert.Equal(t, strata.Unchanged, e.State())

	fresh := session.New(g, drv)
	reloaded, err := fresh.Get(ctx, "User", id)
	require.NoError(t, err)
	assert.Equal(t, 42, reloaded.Value("age"))
}

func TestPartialUpdates(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv, session.WithPartialUpdates())
	ctx := context.Background()
	id := seedUser(t, drv, "a", "a@example.com", 20)

	e, err := s.Get(ctx, "User", id)
	require.NoError(t, err)
	require.NoError(t, e.Set("age", 42))
	require.NoError(t, e.Set("name", "renamed"))
	require.NoError(t, e.SetModified("age"))

	_, err = s.Commit(ctx)
	require.NoError(t, err)

	// Only the flagged property reached the store.
	fresh := session.New(g, drv)
	reloaded, err := fresh.Get(ctx, "User", id)
	require.NoError(t, err)
	assert.Equal(t, 42, reloaded.Value("age"))
	assert.Equal(t, "a", reloaded.Value("name"))
}

func TestEmptyCommit(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)

	stats, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats)
}

func TestCommitRollback(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	seedUser(t, drv, "a", "a@example.com", 20)

	ok, err := s.Add("User", map[string]strata.Value{"name": "b", "email": "b@example.com", "age": 1})
	require.NoError(t, err)
	dup, err := s.Add("User", map[string]strata.Value{"name": "c", "email": "a@example.com", "age": 2})
	require.NoError(t, err)

	_, err = s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, strata.IsCommitError(err))
	assert.True(t, strata.IsConstraintError(err))

	// Nothing stuck: the batch rolled back and the states did not advance.
	assert.Equal(t, strata.Added, ok.State())
	assert.Equal(t, strata.Added, dup.State())
	fresh := session.New(g, drv)
	n, err := fresh.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteCascade(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	uid := seedUser(t, drv, "a", "a@example.com", 20)
	p1 := seedPost(t, drv, uid, "one")
	seedPost(t, drv, uid, "two")
	seed(t, drv, "Comment", map[string]strata.Value{"post_id": p1, "body": "hi"})

	// The posts and the comment were never loaded into the session; the
	// cascade must discover them through the provider.
	e, err := s.Get(ctx, "User", uid)
	require.NoError(t, err)
	require.NoError(t, s.Delete(e))

	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Deletes: 4}, stats)
	assert.Equal(t, strata.Detached, e.State())

	fresh := session.New(g, drv)
	for _, entity := range []string{"User", "Post", "Comment"} {
		n, err := fresh.Query(entity).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n, entity)
	}
}

// A failed commit rolls the store back but keeps the expanded cascade marks
// in memory: the dependents stay Deleted and a retry re-issues the same
// operations.
func TestFailedCommitKeepsCascadeMarks(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	seedUser(t, drv, "a", "a@example.com", 20)
	uid := seedUser(t, drv, "b", "b@example.com", 30)
	pid := seedPost(t, drv, uid, "one")

	owner, err := s.Get(ctx, "User", uid)
	require.NoError(t, err)
	require.NoError(t, s.Delete(owner))
	dup, err := s.Add("User", map[string]strata.Value{"name": "c", "email": "a@example.com", "age": 1})
	require.NoError(t, err)

	_, err = s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, strata.IsConstraintError(err))

	assert.Equal(t, strata.Deleted, owner.State())
	// The cascade materialized the post into the session; its mark survives.
	dependent, err := s.Get(ctx, "Post", pid)
	require.NoError(t, err)
	assert.Equal(t, strata.Deleted, dependent.State())

	fresh := session.New(g, drv)
	n, err := fresh.Query("Post").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed commit must not touch the store")

	// Dropping the conflicting insert and retrying applies the expansion.
	s.Detach(dup)
	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Deletes: 2}, stats)
}

func TestDeleteRestrict(t *testing.T) {
	t.Parallel()
	g := graph.New()
	require.NoError(t, g.Register("User",
		field.Int64("id").Key().ServerDefault(),
		field.String("name"),
	))
	require.NoError(t, g.Register("Post",
		field.Int64("id").Key().ServerDefault(),
		field.Int64("author_id"),
		field.String("title"),
	))
	require.NoError(t, g.Relate("User", edge.To("posts", "Post").Columns("author_id").OnDelete(edge.Restrict)))
	require.NoError(t, g.Relate("Post", edge.From("author", "User").Ref("posts").Unique().Required()))
	require.NoError(t, g.Finalize())

	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	uid := seed(t, drv, "User", map[string]strata.Value{"name": "a"})
	pid := seed(t, drv, "Post", map[string]strata.Value{"author_id": uid, "title": "one"})

	user, err := s.Get(ctx, "User", uid)
	require.NoError(t, err)
	post, err := s.Get(ctx, "Post", pid)
	require.NoError(t, err)
	require.NoError(t, s.Delete(user))

	_, err = s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, strata.IsConstraintError(err))
	assert.Equal(t, strata.Unchanged, post.State())

	fresh := session.New(g, drv)
	n, err := fresh.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Deleting the dependent in the same commit lifts the restriction.
	require.NoError(t, s.Delete(post))
	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Deletes: 2}, stats)
}

func TestDeleteSetNull(t *testing.T) {
	t.Parallel()
	g := graph.New()
	require.NoError(t, g.Register("User",
		field.Int64("id").Key().ServerDefault(),
		field.String("name"),
	))
	require.NoError(t, g.Register("Note",
		field.Int64("id").Key().ServerDefault(),
		field.Int64("user_id").Nillable(),
		field.String("body"),
	))
	require.NoError(t, g.Relate("User", edge.To("notes", "Note").Columns("user_id").OnDelete(edge.SetNull)))
	require.NoError(t, g.Relate("Note", edge.From("user", "User").Ref("notes").Unique()))
	require.NoError(t, g.Finalize())

	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	uid := seed(t, drv, "User", map[string]strata.Value{"name": "a"})
	nid := seed(t, drv, "Note", map[string]strata.Value{"user_id": uid, "body": "keep me"})

	user, err := s.Get(ctx, "User", uid)
	require.NoError(t, err)
	require.NoError(t, s.Delete(user))

	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Updates: 1, Deletes: 1}, stats)

	fresh := session.New(g, drv)
	note, err := fresh.Get(ctx, "Note", nid)
	require.NoError(t, err)
	assert.Nil(t, note.Value("user_id"))
	assert.Equal(t, "keep me", note.Value("body"))
}

// cycleGraph declares two types referencing each other. With required set,
// both foreign keys are non-nullable and a mutual insert cannot be ordered;
// without it the keys are nullable and one side defers.
func cycleGraph(t *testing.T, required bool) *graph.Graph {
	t.Helper()
	g := graph.New()
	alpha := []*field.Builder{field.Int64("id").Key().ServerDefault()}
	beta := []*field.Builder{field.Int64("id").Key().ServerDefault()}
	if required {
		alpha = append(alpha, field.Int64("beta_id"))
		beta = append(beta, field.Int64("alpha_id"))
	} else {
		alpha = append(alpha, field.Int64("beta_id").Nillable())
		beta = append(beta, field.Int64("alpha_id").Nillable())
	}
	require.NoError(t, g.Register("Alpha", alpha...))
	require.NoError(t, g.Register("Beta", beta...))
	ab := edge.From("beta", "Beta").Ref("alphas").Unique()
	ba := edge.From("alpha", "Alpha").Ref("betas").Unique()
	if required {
		ab = ab.Required()
		ba = ba.Required()
	}
	require.NoError(t, g.Relate("Alpha", edge.To("betas", "Beta").Columns("alpha_id")))
	require.NoError(t, g.Relate("Beta", edge.To("alphas", "Alpha").Columns("beta_id")))
	require.NoError(t, g.Relate("Alpha", ab))
	require.NoError(t, g.Relate("Beta", ba))
	require.NoError(t, g.Finalize())
	return g
}

func TestRequiredCycle(t *testing.T) {
	t.Parallel()
	g := cycleGraph(t, true)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()

	a, err := s.Add("Alpha", nil)
	require.NoError(t, err)
	b, err := s.Add("Beta", nil)
	require.NoError(t, err)
	require.NoError(t, a.SetRef("beta", b))
	require.NoError(t, b.SetRef("alpha", a))

	_, err = s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, strata.IsCycle(err))

	// Nothing was applied.
	fresh := session.New(g, drv)
	n, err := fresh.Query("Alpha").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestNullableCycleDefers(t *testing.T) {
	t.Parallel()
	g := cycleGraph(t, false)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()

	a, err := s.Add("Alpha", nil)
	require.NoError(t, err)
	b, err := s.Add("Beta", nil)
	require.NoError(t, err)
	require.NoError(t, a.SetRef("beta", b))
	require.NoError(t, b.SetRef("alpha", a))

	// One side inserts with a null key and receives it in a deferred update
	// inside the same transaction.
	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Inserts: 2, Updates: 1}, stats)
	assert.Equal(t, b.Value("id"), a.Value("beta_id"))
	assert.Equal(t, a.Value("id"), b.Value("alpha_id"))

	fresh := session.New(g, drv)
	alpha, err := fresh.Get(ctx, "Alpha", a.Value("id"))
	require.NoError(t, err)
	assert.Equal(t, b.Value("id"), alpha.Value("beta_id"))
	beta, err := fresh.Get(ctx, "Beta", b.Value("id"))
	require.NoError(t, err)
	assert.Equal(t, a.Value("id"), beta.Value("alpha_id"))
}

func TestCommitRefOnModified(t *testing.T) {
	t.Parallel()
	g := blogGraph(t, edge.ExplicitLoad)
	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	uid := seedUser(t, drv, "a", "a@example.com", 20)
	pid := seedPost(t, drv, uid, "one")

	// Re-parent an existing post onto a user inserted in the same commit.
	post, err := s.Get(ctx, "Post", pid)
	require.NoError(t, err)
	author, err := s.Add("User", map[string]strata.Value{"name": "b", "email": "b@example.com", "age": 30})
	require.NoError(t, err)
	require.NoError(t, post.SetRef("author", author))
	assert.Equal(t, strata.Modified, post.State())

	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Inserts: 1, Updates: 1}, stats)
	assert.Equal(t, author.Value("id"), post.Value("author_id"))

	fresh := session.New(g, drv)
	reloaded, err := fresh.Get(ctx, "Post", pid)
	require.NoError(t, err)
	assert.Equal(t, author.Value("id"), reloaded.Value("author_id"))
}

func TestDeleteOrdering(t *testing.T) {
	t.Parallel()
	g := graph.New()
	require.NoError(t, g.Register("User",
		field.Int64("id").Key().ServerDefault(),
		field.String("name"),
	))
	require.NoError(t, g.Register("Post",
		field.Int64("id").Key().ServerDefault(),
		field.Int64("author_id"),
	))
	require.NoError(t, g.Relate("User", edge.To("posts", "Post").Columns("author_id").OnDelete(edge.Restrict)))
	require.NoError(t, g.Relate("Post", edge.From("author", "User").Ref("posts").Unique().Required()))
	require.NoError(t, g.Finalize())

	drv := memory.NewDriver(g)
	s := session.New(g, drv)
	ctx := context.Background()
	uid := seed(t, drv, "User", map[string]strata.Value{"name": "a"})
	pid := seed(t, drv, "Post", map[string]strata.Value{"author_id": uid})

	// Principal marked first; the dependent delete must still apply before it.
	user, err := s.Get(ctx, "User", uid)
	require.NoError(t, err)
	post, err := s.Get(ctx, "Post", pid)
	require.NoError(t, err)
	require.NoError(t, s.Delete(user))
	require.NoError(t, s.Delete(post))

	stats, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CommitStats{Deletes: 2}, stats)
	assert.Equal(t, strata.Detached, user.State())
	assert.Equal(t, strata.Detached, post.State())
}
