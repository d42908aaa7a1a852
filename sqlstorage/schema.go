package sqlstorage

import "github.com/dszqbsm/jobcrawler/sqldb"

var jobsTable = sqldb.TableData{
	TableName: "jobs",
	ColumnNames: []sqldb.Field{
		{Title: "id", Type: sqldb.Key, Constraint: "NOT NULL"},
		{Title: "job_title", Type: sqldb.Text},
		{Title: "company_name", Type: sqldb.Text},
		{Title: "description_snippet", Type: sqldb.Text},
		{Title: "company_rating", Type: sqldb.Float},
		{Title: "description_verbose", Type: sqldb.Text},
		{Title: "description_misses", Type: sqldb.Int, Constraint: "NOT NULL DEFAULT 0"},
		{Title: "scraped_at", Type: sqldb.Time, Constraint: "NOT NULL"},
		{Title: "updated_at", Type: sqldb.Time, Constraint: "NOT NULL"},
		{Title: "url", Type: sqldb.Text, Constraint: "NOT NULL"},
	},
	PrimaryKey: []string{"id"},
}

var tagsTable = sqldb.TableData{
	TableName: "tags",
	ColumnNames: []sqldb.Field{
		{Title: "id_job", Type: sqldb.Key, Constraint: "NOT NULL"},
		{Title: "job_tag", Type: sqldb.ShortText, Constraint: "NOT NULL"},
	},
	PrimaryKey:  []string{"id_job", "job_tag"},
	Constraints: []string{"FOREIGN KEY (id_job) REFERENCES jobs (id)"},
}

var indexes = []sqldb.Index{
	{Name: "idx_jobs_updated_at", Table: "jobs", Columns: []string{"updated_at"}},
}

// 暂存表只在一次调用的事务内存在

var stageJobs = sqldb.TableData{
	TableName: "stage_jobs",
	ColumnNames: []sqldb.Field{
		{Title: "id", Type: sqldb.Key, Constraint: "NOT NULL"},
		{Title: "job_title", Type: sqldb.Text},
		{Title: "company_name", Type: sqldb.Text},
		{Title: "description_snippet", Type: sqldb.Text},
		{Title: "company_rating", Type: sqldb.Float},
		{Title: "scraped_at", Type: sqldb.Time},
		{Title: "url", Type: sqldb.Text},
	},
	PrimaryKey: []string{"id"},
}

var stageTags = sqldb.TableData{
	TableName: "stage_tags",
	ColumnNames: []sqldb.Field{
		{Title: "id_job", Type: sqldb.Key, Constraint: "NOT NULL"},
		{Title: "job_tag", Type: sqldb.ShortText, Constraint: "NOT NULL"},
	},
	PrimaryKey: []string{"id_job", "job_tag"},
}

var stageDescriptions = sqldb.TableData{
	TableName: "stage_descriptions",
	ColumnNames: []sqldb.Field{
		{Title: "id", Type: sqldb.Key, Constraint: "NOT NULL"},
		{Title: "description_verbose", Type: sqldb.Text},
	},
	PrimaryKey: []string{"id"},
}
