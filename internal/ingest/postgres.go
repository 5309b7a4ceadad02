package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps visits and submissions in site_visits and site_form_submissions.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) InsertVisit(ctx context.Context, v Visit) error {
	const q = `
insert into site_visits (id, site_id, path, referrer, user_agent, created_at)
values ($1, $2, $3, nullif($4,''), nullif($5,''), $6);
`
	_, err := p.db.Exec(ctx, q, v.ID, v.SiteID, v.Path, v.Referrer, v.UserAgent, v.CreatedAt)
	return err
}

func (p *PostgresStore) InsertSubmission(ctx context.Context, s Submission) error {
	data, err := json.Marshal(s.FormData)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	const q = `
insert into site_form_submissions (id, site_id, form_name, form_data, created_at)
values ($1, $2, $3, $4::jsonb, $5);
`
	_, err = p.db.Exec(ctx, q, s.ID, s.SiteID, s.FormName, string(data), s.CreatedAt)
	return err
}

func (p *PostgresStore) VisitCounts(ctx context.Context, siteID string, today, week, month time.Time) (SiteStats, error) {
	const q = `
select count(*),
       count(*) filter (where created_at >= $2),
       count(*) filter (where created_at >= $3),
       count(*) filter (where created_at >= $4)
from site_visits
where site_id = $1;
`
	var st SiteStats
	err := p.db.QueryRow(ctx, q, siteID, today, week, month).
		Scan(&st.TotalViews, &st.Today, &st.Last7Days, &st.Last30Days)
	return st, err
}

func (p *PostgresStore) VisitsByDay(ctx context.Context, siteID string, since time.Time) (map[string]int64, error) {
	const q = `
select to_char(created_at at time zone 'UTC', 'YYYY-MM-DD') as day, count(*)
from site_visits
where site_id = $1 and created_at >= $2
group by day;
`
	rows, err := p.db.Query(ctx, q, siteID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var day string
		var n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day] = n
	}
	return out, rows.Err()
}

func (p *PostgresStore) SubmissionCounts(ctx context.Context, siteID string, today, week time.Time) (FormStats, error) {
	const q = `
select count(*),
       count(*) filter (where created_at >= $2),
       count(*) filter (where created_at >= $3)
from site_form_submissions
where site_id = $1;
`
	var st FormStats
	err := p.db.QueryRow(ctx, q, siteID, today, week).Scan(&st.Total, &st.Today, &st.ThisWeek)
	return st, err
}

func (p *PostgresStore) ListSubmissions(ctx context.Context, siteID string, limit, offset int) ([]Submission, int64, error) {
	var count int64
	if err := p.db.QueryRow(ctx, `select count(*) from site_form_submissions where site_id = $1;`, siteID).Scan(&count); err != nil {
		return nil, 0, err
	}

	const q = `
select id::text, site_id::text, form_name, form_data, created_at
from site_form_submissions
where site_id = $1
order by created_at desc
limit $2 offset $3;
`
	rows, err := p.db.Query(ctx, q, siteID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Submission, 0, limit)
	for rows.Next() {
		var s Submission
		var raw []byte
		if err := rows.Scan(&s.ID, &s.SiteID, &s.FormName, &raw, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(raw, &s.FormData); err != nil {
			return nil, 0, fmt.Errorf("decode form data: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, count, nil
}

func (p *PostgresStore) DeleteSubmission(ctx context.Context, siteID, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `delete from site_form_submissions where id = $1 and site_id = $2;`, id, siteID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
