package sqlstorage

// 职位数据的持久化：列表批次的增量合并、待补全描述的选取与回写

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dszqbsm/jobcrawler/model"
	"github.com/dszqbsm/jobcrawler/sqldb"
	"go.uber.org/zap"
)

type SqlStore struct {
	db sqldb.DBer
	options
}

// 创建存储实例并保证表结构存在
func New(db sqldb.DBer, opts ...Option) (*SqlStore, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &SqlStore{db: db, options: o}

	if err := db.Migrate(context.Background(), []sqldb.TableData{jobsTable, tagsTable}, indexes); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

type ReconcileResult struct {
	Inserted     int
	Updated      int
	TagsInserted int
}

type ApplyResult struct {
	Updated int // 写入了完整描述的职位数
	Missed  int // 本次没有取到描述、缺失计数加一的职位数
}

type Stats struct {
	Jobs    int
	Tags    int
	Pending int // 还会被回填选中的职位数
}

func (s *SqlStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

/*
输入上下文、一批职位和标签，输出合并结果和error

整批在一个事务内完成：暂存后先统计已存在的职位数，再更新已存在的职位，再插入新职位，最后插入新的(职位, 标签)对。
更新只覆盖标题、公司、摘要和评分，不会改动完整描述和首次抓取时间。任何一步失败整批回滚
*/
func (s *SqlStore) Reconcile(ctx context.Context, jobs []model.Job, tags []model.Tag) (ReconcileResult, error) {
	var res ReconcileResult
	if len(jobs) == 0 && len(tags) == 0 {
		return res, nil
	}

	sj := stageJobs
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		sj.Rows = append(sj.Rows, []any{
			j.ID, nullString(j.Title), nullString(j.Company), nullString(j.Snippet),
			nullFloat(j.Rating), j.ScrapedAt.UTC().Truncate(time.Second), j.URL,
		})
	}

	st := stageTags
	seenTags := make(map[model.Tag]bool, len(tags))
	for _, t := range tags {
		if seenTags[t] {
			continue
		}
		seenTags[t] = true
		st.Rows = append(st.Rows, []any{t.JobID, t.Text})
	}

	now := s.timestamp()
	err := s.db.Staged(ctx, []sqldb.TableData{sj, st}, func(tx *sqldb.Tx) error {
		updated, err := tx.Count(ctx, `SELECT COUNT(*) FROM stage_jobs s WHERE EXISTS (SELECT 1 FROM jobs j WHERE j.id = s.id)`)
		if err != nil {
			return fmt.Errorf("count existing: %w", err)
		}

		if updated > 0 {
			if _, err := tx.Exec(ctx, updateJobsSQL(tx.Dialect()), now); err != nil {
				return fmt.Errorf("update jobs: %w", err)
			}
		}

		inserted, err := tx.Exec(ctx, insertJobsSQL(tx.Dialect()), now)
		if err != nil {
			return fmt.Errorf("insert jobs: %w", err)
		}

		tagsInserted, err := tx.Exec(ctx, `INSERT INTO tags (id_job, job_tag)
SELECT s.id_job, s.job_tag FROM stage_tags s
WHERE EXISTS (SELECT 1 FROM jobs j WHERE j.id = s.id_job)
AND NOT EXISTS (SELECT 1 FROM tags t WHERE t.id_job = s.id_job AND t.job_tag = s.job_tag)`)
		if err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}

		res = ReconcileResult{Inserted: int(inserted), Updated: updated, TagsInserted: int(tagsInserted)}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile: %w", err)
	}

	s.logger.Debug("reconciled",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("tags_inserted", res.TagsInserted))
	return res, nil
}

// MySQL的同一条语句中临时表只能出现一次，因此使用多表UPDATE语法
func updateJobsSQL(d sqldb.Dialect) string {
	if d == sqldb.MySQL {
		return `UPDATE jobs j INNER JOIN stage_jobs s ON j.id = s.id
SET j.job_title = s.job_title, j.company_name = s.company_name,
j.description_snippet = s.description_snippet, j.company_rating = s.company_rating, j.updated_at = ?`
	}
	return `UPDATE jobs SET job_title = s.job_title, company_name = s.company_name,
description_snippet = s.description_snippet, company_rating = s.company_rating, updated_at = ?
FROM stage_jobs s WHERE jobs.id = s.id`
}

func insertJobsSQL(d sqldb.Dialect) string {
	// postgres无法从INSERT ... SELECT的选择列表推断参数类型
	param := "?"
	if d == sqldb.Postgres {
		param = "CAST(? AS TIMESTAMP)"
	}
	return `INSERT INTO jobs (id, job_title, company_name, description_snippet, company_rating, scraped_at, updated_at, url)
SELECT s.id, s.job_title, s.company_name, s.description_snippet, s.company_rating, s.scraped_at, ` + param + `, s.url
FROM stage_jobs s WHERE NOT EXISTS (SELECT 1 FROM jobs j WHERE j.id = s.id)`
}

// SelectPending 按最近更新优先返回还没有完整描述的职位
func (s *SqlStore) SelectPending(ctx context.Context, limit int) ([]model.DetailTarget, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT id, url FROM jobs
WHERE description_verbose IS NULL AND description_misses < ?
ORDER BY updated_at DESC, id LIMIT ?`, s.maxMisses, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	var out []model.DetailTarget
	for rows.Next() {
		var t model.DetailTarget
		if err := rows.Scan(&t.ID, &t.URL); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

/*
输入上下文和一批抓取到的描述，输出回写结果和error

只在职位当前没有完整描述且本次取到了描述时写入；没有取到的职位缺失计数加一，不会清除已有描述
*/
func (s *SqlStore) ApplyDescriptions(ctx context.Context, ds []model.Description) (ApplyResult, error) {
	var res ApplyResult
	if len(ds) == 0 {
		return res, nil
	}

	sd := stageDescriptions
	seen := make(map[string]bool, len(ds))
	for _, d := range ds {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		sd.Rows = append(sd.Rows, []any{d.ID, nullText(d.Text)})
	}

	now := s.timestamp()
	err := s.db.Staged(ctx, []sqldb.TableData{sd}, func(tx *sqldb.Tx) error {
		setSQL, missSQL := applySQL(tx.Dialect())

		updated, err := tx.Exec(ctx, setSQL, now)
		if err != nil {
			return fmt.Errorf("set descriptions: %w", err)
		}
		missed, err := tx.Exec(ctx, missSQL)
		if err != nil {
			return fmt.Errorf("count misses: %w", err)
		}
		res = ApplyResult{Updated: int(updated), Missed: int(missed)}
		return nil
	})
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply descriptions: %w", err)
	}

	s.logger.Debug("descriptions applied", zap.Int("updated", res.Updated), zap.Int("missed", res.Missed))
	return res, nil
}

func applySQL(d sqldb.Dialect) (set, miss string) {
	if d == sqldb.MySQL {
		return `UPDATE jobs j INNER JOIN stage_descriptions s ON j.id = s.id
SET j.description_verbose = s.description_verbose, j.updated_at = ?
WHERE j.description_verbose IS NULL AND s.description_verbose IS NOT NULL`,
			`UPDATE jobs j INNER JOIN stage_descriptions s ON j.id = s.id
SET j.description_misses = j.description_misses + 1
WHERE j.description_verbose IS NULL AND s.description_verbose IS NULL`
	}
	return `UPDATE jobs SET description_verbose = s.description_verbose, updated_at = ?
FROM stage_descriptions s
WHERE jobs.id = s.id AND jobs.description_verbose IS NULL AND s.description_verbose IS NOT NULL`,
		`UPDATE jobs SET description_misses = description_misses + 1
FROM stage_descriptions s
WHERE jobs.id = s.id AND jobs.description_verbose IS NULL AND s.description_verbose IS NULL`
}

func (s *SqlStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	rows, err := s.db.Query(ctx, `SELECT
(SELECT COUNT(*) FROM jobs),
(SELECT COUNT(*) FROM tags),
(SELECT COUNT(*) FROM jobs WHERE description_verbose IS NULL AND description_misses < ?)`, s.maxMisses)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&st.Jobs, &st.Tags, &st.Pending); err != nil {
			return st, err
		}
	}
	return st, rows.Err()
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullText 空白文本与缺失同样处理
func nullText(p *string) any {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return *p
}

// nullFloat NaN和无穷大无法写入mysql，按缺失处理
func nullFloat(p *float64) any {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return *p
}
