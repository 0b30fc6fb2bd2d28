package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/lib/pq"
)

const (
	candidateTable = "candidate_events"
	runLogTable    = "run_logs"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var candidateColumns = []string{
	"id", "title", "description", "event_date", "location", "source", "source_url",
	"organizer_name", "tags", "price", "image_url", "published_at", "scraped_date",
	"relevance_score", "quality_score", "status", "event_likely", "rejection_reason",
	"updated_at",
}

var runLogColumns = []string{
	"id", "run_id", "source", "events_found", "events_added", "status", "timestamp",
	"error_message", "details",
}

// PostgresCandidateStore implements ingestion.CandidateStore using PostgreSQL.
type PostgresCandidateStore struct {
	db *sql.DB
}

var _ ingestion.CandidateStore = (*PostgresCandidateStore)(nil)

// NewPostgresCandidateStore creates a new PostgreSQL candidate store.
func NewPostgresCandidateStore(db *sql.DB) *PostgresCandidateStore {
	return &PostgresCandidateStore{db: db}
}

// AppendCandidates inserts events in one statement. A duplicate id fails the
// whole batch.
func (s *PostgresCandidateStore) AppendCandidates(ctx context.Context, events []models.CandidateEvent) error {
	if len(events) == 0 {
		return nil
	}
	query, args, err := insertCandidates(events).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert candidates: %w", err)
	}
	return nil
}

// ListPool returns every candidate in insertion order.
func (s *PostgresCandidateStore) ListPool(ctx context.Context) ([]models.CandidateEvent, error) {
	query, args, err := psql.Select(candidateColumns...).From(candidateTable).OrderBy("seq ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return queryCandidates(ctx, s.db, query, args...)
}

// ReplacePool swaps the pool for events inside one transaction, so readers
// never observe a half-written pool.
func (s *PostgresCandidateStore) ReplacePool(ctx context.Context, events []models.CandidateEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replacePool(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePool reads the pool, hands it to fn and writes fn's result back in one
// transaction. The table is locked in EXCLUSIVE mode first, so concurrent
// appends and edits wait for the swap instead of being overwritten by it.
// Plain reads still proceed. When fn fails nothing is written.
func (s *PostgresCandidateStore) UpdatePool(ctx context.Context, fn ingestion.PoolUpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "LOCK TABLE "+candidateTable+" IN EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("failed to lock pool: %w", err)
	}

	query, args, err := psql.Select(candidateColumns...).From(candidateTable).OrderBy("seq ASC").ToSql()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	pool, err := queryCandidates(ctx, tx, query, args...)
	if err != nil {
		return err
	}

	next, err := fn(pool)
	if err != nil {
		return err
	}

	if err := replacePool(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

func replacePool(ctx context.Context, tx *sql.Tx, events []models.CandidateEvent) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+candidateTable); err != nil {
		return fmt.Errorf("failed to clear pool: %w", err)
	}

	if len(events) > 0 {
		query, args, err := insertCandidates(events).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert pool: %w", err)
		}
	}
	return nil
}

// Get retrieves a candidate by id.
func (s *PostgresCandidateStore) Get(ctx context.Context, id string) (models.CandidateEvent, error) {
	query, args, err := psql.Select(candidateColumns...).From(candidateTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return models.CandidateEvent{}, fmt.Errorf("build select: %w", err)
	}

	event, err := scanCandidate(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CandidateEvent{}, fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.CandidateEvent{}, fmt.Errorf("failed to query candidate: %w", err)
	}
	return event, nil
}

// Update overwrites every mutable column of an existing candidate.
func (s *PostgresCandidateStore) Update(ctx context.Context, event models.CandidateEvent) error {
	query, args, err := psql.Update(candidateTable).
		SetMap(map[string]any{
			"title":            event.Title,
			"description":      event.Description,
			"event_date":       event.EventDate,
			"location":         event.Location,
			"source":           string(event.Source),
			"source_url":       event.SourceURL,
			"organizer_name":   event.OrganizerName,
			"tags":             pq.Array(tagsOrEmpty(event.Tags)),
			"price":            event.Price,
			"image_url":        event.ImageURL,
			"published_at":     event.PublishedAt,
			"relevance_score":  event.RelevanceScore,
			"quality_score":    event.QualityScore,
			"status":           string(event.Status),
			"event_likely":     event.EventLikely,
			"rejection_reason": nullString(event.RejectionReason),
			"updated_at":       event.UpdatedAt,
		}).
		Where(sq.Eq{"id": event.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	return expectOneRow(res, event.ID)
}

// Delete removes a candidate by id.
func (s *PostgresCandidateStore) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete(candidateTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	return expectOneRow(res, id)
}

// List returns candidates matching filter, newest first.
func (s *PostgresCandidateStore) List(ctx context.Context, filter ingestion.CandidateFilter) ([]models.CandidateEvent, error) {
	query, args, err := listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return queryCandidates(ctx, s.db, query, args...)
}

// AppendRunLog records one adapter or run outcome.
func (s *PostgresCandidateStore) AppendRunLog(ctx context.Context, log models.RunLog) error {
	var details any
	if len(log.Details) > 0 {
		details = string(log.Details)
	}

	query, args, err := psql.Insert(runLogTable).
		Columns(runLogColumns...).
		Values(log.ID, log.RunID, log.Source, log.EventsFound, log.EventsAdded, string(log.Status),
			log.Timestamp, nullString(log.ErrorMessage), details).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}
	return nil
}

// LatestRunLog returns the newest row for source.
func (s *PostgresCandidateStore) LatestRunLog(ctx context.Context, source string) (models.RunLog, error) {
	query, args, err := psql.Select(runLogColumns...).
		From(runLogTable).
		Where(sq.Eq{"source": source}).
		OrderBy("timestamp DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return models.RunLog{}, fmt.Errorf("build select: %w", err)
	}

	var (
		log     models.RunLog
		status  string
		errMsg  sql.NullString
		details []byte
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&log.ID,
		&log.RunID,
		&log.Source,
		&log.EventsFound,
		&log.EventsAdded,
		&status,
		&log.Timestamp,
		&errMsg,
		&details,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunLog{}, fmt.Errorf("run log for %s: %w", source, models.ErrNotFound)
	}
	if err != nil {
		return models.RunLog{}, fmt.Errorf("failed to query run log: %w", err)
	}

	log.Status = models.RunStatus(status)
	log.ErrorMessage = errMsg.String
	if len(details) > 0 {
		log.Details = details
	}
	return log, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryCandidates(ctx context.Context, q querier, query string, args ...any) ([]models.CandidateEvent, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	events := []models.CandidateEvent{}
	for rows.Next() {
		event, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return events, nil
}

func insertCandidates(events []models.CandidateEvent) sq.InsertBuilder {
	b := psql.Insert(candidateTable).Columns(candidateColumns...)
	for _, e := range events {
		b = b.Values(
			e.ID,
			e.Title,
			e.Description,
			e.EventDate,
			e.Location,
			string(e.Source),
			e.SourceURL,
			e.OrganizerName,
			pq.Array(tagsOrEmpty(e.Tags)),
			e.Price,
			e.ImageURL,
			e.PublishedAt,
			e.ScrapedDate,
			e.RelevanceScore,
			e.QualityScore,
			string(e.Status),
			e.EventLikely,
			nullString(e.RejectionReason),
			e.UpdatedAt,
		)
	}
	return b
}

// listQuery builds the filtered listing. Ties on scraped_date fall back to
// insertion order, newest first.
func listQuery(filter ingestion.CandidateFilter) sq.SelectBuilder {
	q := psql.Select(candidateColumns...).From(candidateTable)
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": string(filter.Source)})
	}
	q = q.OrderBy("scraped_date DESC", "seq DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (models.CandidateEvent, error) {
	var (
		e           models.CandidateEvent
		eventDate   sql.NullTime
		publishedAt sql.NullTime
		source      string
		status      string
		tags        pq.StringArray
		reason      sql.NullString
	)
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&eventDate,
		&e.Location,
		&source,
		&e.SourceURL,
		&e.OrganizerName,
		&tags,
		&e.Price,
		&e.ImageURL,
		&publishedAt,
		&e.ScrapedDate,
		&e.RelevanceScore,
		&e.QualityScore,
		&status,
		&e.EventLikely,
		&reason,
		&e.UpdatedAt,
	)
	if err != nil {
		return models.CandidateEvent{}, err
	}

	if eventDate.Valid {
		t := eventDate.Time.UTC()
		e.EventDate = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		e.PublishedAt = &t
	}
	e.ScrapedDate = e.ScrapedDate.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.Source = models.SourceTag(source)
	e.Status = models.Status(status)
	e.RejectionReason = reason.String
	if len(tags) > 0 {
		e.Tags = []string(tags)
	}
	return e, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
