package sqlstorage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/dszqbsm/jobcrawler/model"
	"github.com/dszqbsm/jobcrawler/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) time.Time {
	c.t = c.t.Add(d)
	return c.t
}

func newStore(t *testing.T, opts ...Option) (*SqlStore, *sqldb.Sqldb, *clock) {
	t.Helper()
	db, err := sqldb.New(
		sqldb.WithDialect(sqldb.SQLite),
		sqldb.WithConnURL(filepath.Join(t.TempDir(), "jobs.db")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	s, err := New(db, append([]Option{WithClock(c.now)}, opts...)...)
	require.NoError(t, err)
	return s, db, c
}

func count(t *testing.T, db *sqldb.Sqldb, query string, args ...any) int {
	t.Helper()
	rows, err := db.Query(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	return n
}

func text(t *testing.T, db *sqldb.Sqldb, query string, args ...any) *string {
	t.Helper()
	rows, err := db.Query(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var s *string
	require.NoError(t, rows.Scan(&s))
	return s
}

var scraped = time.Date(2024, 3, 1, 7, 59, 30, 0, time.UTC)

func job(id, title string) model.Job {
	return model.Job{
		ID:        id,
		Title:     model.String(title),
		Company:   model.String("Acme Corp"),
		Snippet:   model.String("Build pipelines"),
		Rating:    model.Float(4.2),
		ScrapedAt: scraped,
		URL:       "https://fr.indeed.com/viewjob?jk=" + id,
	}
}

func TestReconcileTwoCrawls(t *testing.T) {
	ctx := context.Background()
	s, db, c := newStore(t)
	firstRun := c.t

	res, err := s.Reconcile(ctx,
		[]model.Job{job("a1", "Data Engineer"), job("b2", "Web Developer")},
		[]model.Tag{{JobID: "a1", Text: "Full-time"}, {JobID: "a1", Text: "Remote"}})
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Inserted: 2, Updated: 0, TagsInserted: 2}, res)

	c.advance(time.Hour)
	second := job("a1", "Senior Data Engineer")
	second.ScrapedAt = scraped.Add(time.Hour)
	second.Rating = nil
	crawl2Jobs := []model.Job{second}
	crawl2Tags := []model.Tag{{JobID: "a1", Text: "Full-time"}, {JobID: "a1", Text: "Hybrid"}}

	res, err = s.Reconcile(ctx, crawl2Jobs, crawl2Tags)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Inserted: 0, Updated: 1, TagsInserted: 1}, res)

	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM jobs"))
	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM tags"))
	assert.Equal(t, "Senior Data Engineer", *text(t, db, "SELECT job_title FROM jobs WHERE id = ?", "a1"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM jobs WHERE id = ? AND company_rating IS NULL", "a1"))
	// 首次抓取时间不随更新改变
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM jobs WHERE id = ? AND scraped_at = ?", "a1", scraped))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM jobs WHERE id = ? AND updated_at = ?", "a1", c.t))
	// b2未出现在第二次抓取中，保持不变
	assert.Equal(t, "Web Developer", *text(t, db, "SELECT job_title FROM jobs WHERE id = ?", "b2"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM jobs WHERE id = ? AND updated_at = ?", "b2", firstRun))

	// 重复执行同一批次不产生新行
	res, err = s.Reconcile(ctx, crawl2Jobs, crawl2Tags)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Inserted: 0, Updated: 1, TagsInserted: 0}, res)
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM jobs"))
	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM tags"))
}

func TestReconcileEmptyAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newStore(t)

	res, err := s.Reconcile(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res)

	res, err = s.Reconcile(ctx,
		[]model.Job{job("a1", "First"), job("a1", "Second")},
		[]model.Tag{{JobID: "a1", Text: "Remote"}, {JobID: "a1", Text: "Remote"}, {JobID: "zz", Text: "Orphan"}})
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Inserted: 1, TagsInserted: 1}, res)
	assert.Equal(t, "First", *text(t, db, "SELECT job_title FROM jobs WHERE id = ?", "a1"))
}

func TestReconcileCaseDistinctTagsAndNonFiniteRating(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newStore(t)

	j := job("a1", "Data Engineer")
	j.Rating = model.Float(math.Inf(1))
	res, err := s.Reconcile(ctx, []model.Job{j, job("b2", "Other")},
		[]model.Tag{{JobID: "a1", Text: "Remote"}, {JobID: "a1", Text: "remote"}, {JobID: "a1", Text: "Temps Plein"}, {JobID: "a1", Text: "Temps plein"}})
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Inserted: 2, TagsInserted: 4}, res)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM jobs WHERE id = ? AND company_rating IS NULL", "a1"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM jobs WHERE id = ? AND company_rating IS NOT NULL", "b2"))
}

func TestReconcileKeepsVerboseDescription(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newStore(t)

	_, err := s.Reconcile(ctx, []model.Job{job("a1", "Data Engineer")}, nil)
	require.NoError(t, err)
	_, err = s.ApplyDescriptions(ctx, []model.Description{{ID: "a1", Text: model.String("Full text")}})
	require.NoError(t, err)

	_, err = s.Reconcile(ctx, []model.Job{job("a1", "Data Engineer II")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Full text", *text(t, db, "SELECT description_verbose FROM jobs WHERE id = ?", "a1"))
}

func TestReconcileFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newStore(t)

	_, err := db.Exec(ctx, "DROP TABLE tags")
	require.NoError(t, err)

	_, err = s.Reconcile(ctx, []model.Job{job("a1", "Data Engineer")}, []model.Tag{{JobID: "a1", Text: "Remote"}})
	assert.Error(t, err)

	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM jobs"))
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM sqlite_temp_master WHERE name IN ('stage_jobs', 'stage_tags')"))
}

func TestSelectPendingOrder(t *testing.T) {
	ctx := context.Background()
	s, _, c := newStore(t)

	for _, id := range []string{"a", "b", "c"} {
		c.advance(time.Minute)
		_, err := s.Reconcile(ctx, []model.Job{job(id, id)}, nil)
		require.NoError(t, err)
	}

	got, err := s.SelectPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.DetailTarget{
		{ID: "c", URL: "https://fr.indeed.com/viewjob?jk=c"},
		{ID: "b", URL: "https://fr.indeed.com/viewjob?jk=b"},
	}, got)

	got, err = s.SelectPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApplyDescriptions(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newStore(t, WithMaxMisses(2))

	_, err := s.Reconcile(ctx, []model.Job{job("a", "A"), job("b", "B")}, nil)
	require.NoError(t, err)

	res, err := s.ApplyDescriptions(ctx, []model.Description{
		{ID: "a", Text: model.String("Full A")},
		{ID: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Updated: 1, Missed: 1}, res)

	// 已有描述不会被覆盖
	res, err = s.ApplyDescriptions(ctx, []model.Description{{ID: "a", Text: model.String("Other")}})
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{}, res)
	assert.Equal(t, "Full A", *text(t, db, "SELECT description_verbose FROM jobs WHERE id = ?", "a"))

	got, err := s.SelectPending(ctx, 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	// 达到缺失上限后不再被选中
	res, err = s.ApplyDescriptions(ctx, []model.Description{{ID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)

	got, err = s.SelectPending(ctx, 15)
	require.NoError(t, err)
	assert.Empty(t, got)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Jobs: 2, Tags: 0, Pending: 0}, st)
}

func TestApplyBlankDescriptionCountsAsMiss(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newStore(t)

	_, err := s.Reconcile(ctx, []model.Job{job("a", "A")}, nil)
	require.NoError(t, err)

	res, err := s.ApplyDescriptions(ctx, []model.Description{{ID: "a", Text: model.String("  ")}})
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Missed: 1}, res)
	assert.Nil(t, text(t, db, "SELECT description_verbose FROM jobs WHERE id = ?", "a"))

	got, err := s.SelectPending(ctx, 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestStatementsPerDialect(t *testing.T) {
	assert.Contains(t, updateJobsSQL(sqldb.MySQL), "INNER JOIN stage_jobs")
	assert.Contains(t, updateJobsSQL(sqldb.Postgres), "FROM stage_jobs s")
	assert.Contains(t, insertJobsSQL(sqldb.Postgres), "CAST(? AS TIMESTAMP)")
	assert.NotContains(t, insertJobsSQL(sqldb.SQLite), "CAST")

	set, miss := applySQL(sqldb.MySQL)
	assert.Contains(t, set, "INNER JOIN stage_descriptions")
	assert.Contains(t, miss, "description_misses + 1")
}
