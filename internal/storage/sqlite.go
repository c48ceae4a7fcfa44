package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Default containers created with a fresh database.
const (
	DefaultCalendarID = "calendar"
	DefaultListID     = "reminders"
)

// Storage is the local calendar store. Series are kept as one master row
// plus override rows that share its series_id.
type Storage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ calstore.Store = (*Storage)(nil)

func New(dbPath string, logger *zap.Logger) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS containers (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			color TEXT DEFAULT '',
			is_default INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			container_id TEXT NOT NULL,
			series_id TEXT NOT NULL DEFAULT '',
			recurrence_id TEXT,
			title TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			start_time TEXT,
			end_time TEXT,
			all_day INTEGER DEFAULT 0,
			tzid TEXT NOT NULL DEFAULT 'UTC',
			due TEXT,
			priority INTEGER DEFAULT 0,
			completed INTEGER DEFAULT 0,
			completed_at TEXT,
			rrule TEXT NOT NULL DEFAULT '',
			exdates TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (container_id) REFERENCES containers(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind, container_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_series ON items(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_start ON items(start_time)`,
		`CREATE TABLE IF NOT EXISTS authorizations (
			kind TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`INSERT OR IGNORE INTO containers (id, kind, title, is_default) VALUES ('` + DefaultCalendarID + `', 'event', 'Calendar', 1)`,
		`INSERT OR IGNORE INTO containers (id, kind, title, is_default) VALUES ('` + DefaultListID + `', 'reminder', 'Reminders', 1)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Authorization ===

func (s *Storage) Authorization(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM authorizations WHERE kind = ?`, string(kind)).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuthNotDetermined, nil
	}
	if err != nil {
		return "", fmt.Errorf("read authorization: %w", err)
	}
	return domain.AuthState(state), nil
}

// RequestAccess grants access the first time it is asked for. A recorded
// decision is returned unchanged.
func (s *Storage) RequestAccess(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	state, err := s.Authorization(ctx, kind)
	if err != nil {
		return "", err
	}
	if !state.CanRequest() {
		return state, nil
	}
	if err := s.SetAuthorization(ctx, kind, domain.AuthAuthorized); err != nil {
		return "", err
	}
	s.logger.Info("access granted", zap.String("kind", string(kind)))
	return domain.AuthAuthorized, nil
}

// SetAuthorization records an access decision for kind.
func (s *Storage) SetAuthorization(ctx context.Context, kind domain.Kind, state domain.AuthState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authorizations (kind, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(kind) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		string(kind), string(state),
	)
	if err != nil {
		return fmt.Errorf("write authorization: %w", err)
	}
	return nil
}

// ResetAuthorization forgets the access decision for kind.
func (s *Storage) ResetAuthorization(ctx context.Context, kind domain.Kind) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM authorizations WHERE kind = ?`, string(kind))
	return err
}

// === Containers ===

func (s *Storage) Containers(ctx context.Context, kind domain.Kind) ([]domain.Container, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, title, color, is_default FROM containers WHERE kind = ? ORDER BY is_default DESC, title`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	var containers []domain.Container
	for rows.Next() {
		var (
			c         domain.Container
			k         string
			isDefault int
		)
		if err := rows.Scan(&c.ID, &k, &c.Title, &c.Color, &isDefault); err != nil {
			return nil, err
		}
		c.Kind = domain.Kind(k)
		c.IsDefault = isDefault == 1
		c.AllowsModifications = true
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

func (s *Storage) DefaultContainer(ctx context.Context, kind domain.Kind) (domain.Container, error) {
	containers, err := s.Containers(ctx, kind)
	if err != nil {
		return domain.Container{}, err
	}
	if len(containers) == 0 {
		return domain.Container{}, calstore.ErrNoContainer
	}
	// Default first by ORDER BY
	return containers[0], nil
}

// CreateContainer adds a calendar or reminder list.
func (s *Storage) CreateContainer(ctx context.Context, kind domain.Kind, title, color string) (domain.Container, error) {
	c := domain.Container{
		ID:                  uuid.NewString(),
		Kind:                kind,
		Title:               title,
		Color:               color,
		AllowsModifications: true,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO containers (id, kind, title, color) VALUES (?, ?, ?, ?)`,
		c.ID, string(kind), title, color,
	)
	if err != nil {
		return domain.Container{}, fmt.Errorf("create container: %w", err)
	}
	return c, nil
}

// === Items ===

const itemColumns = `i.id, i.kind, i.container_id, c.title, i.series_id, i.recurrence_id,
	i.title, i.notes, i.location, i.url, i.start_time, i.end_time, i.all_day, i.tzid,
	i.due, i.priority, i.completed, i.completed_at, i.rrule, i.exdates, i.created_at, i.updated_at`

const itemFrom = ` FROM items i JOIN containers c ON c.id = i.container_id`

// row is an items row with its exclusion list decoded.
type row struct {
	item    *calstore.Item
	exdates []time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*row, error) {
	var (
		it                                  calstore.Item
		kind, tzid, exdatesJSON             string
		created, updated                    string
		recurrenceID, start, end, due, done sql.NullString
		allDay, completed                   int
	)
	err := sc.Scan(
		&it.ID, &kind, &it.ContainerID, &it.ContainerTitle, &it.SeriesID, &recurrenceID,
		&it.Title, &it.Notes, &it.Location, &it.URL, &start, &end, &allDay, &tzid,
		&due, &it.Priority, &completed, &done, &it.RRule, &exdatesJSON, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(tzid)
	if err != nil {
		loc = time.UTC
	}

	it.Kind = domain.Kind(kind)
	it.AllDay = allDay == 1
	it.Completed = completed == 1
	it.Start = parseTime(start, loc)
	it.End = parseTime(end, loc)
	it.Due = parseTimePtr(due, loc)
	it.CompletedAt = parseTimePtr(done, time.UTC)
	it.RecurrenceID = parseTimePtr(recurrenceID, loc)
	it.Created = parseTime(sql.NullString{String: created, Valid: true}, time.UTC)
	it.Modified = parseTime(sql.NullString{String: updated, Valid: true}, time.UTC)

	switch {
	case it.SeriesID != "":
		it.Handle = calstore.HandleOccurrence
		it.Detached = true
	case it.RRule != "":
		it.Handle = calstore.HandleSeries
	default:
		it.Handle = calstore.HandleSingle
	}

	var raw []string
	if err := json.Unmarshal([]byte(exdatesJSON), &raw); err != nil {
		return nil, fmt.Errorf("decode exdates of %s: %w", it.ID, err)
	}
	exdates := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		exdates = append(exdates, parseTime(sql.NullString{String: r, Valid: true}, loc))
	}

	return &row{item: &it, exdates: exdates}, nil
}

func (s *Storage) queryRows(ctx context.Context, q sqlQuerier, where string, args ...any) ([]*row, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+itemFrom+` WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) loadRow(ctx context.Context, q sqlQuerier, kind domain.Kind, id string) (*row, error) {
	rows, err := s.queryRows(ctx, q, `i.id = ? AND i.kind = ? AND i.series_id = ''`, id, string(kind))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, calstore.ErrNotFound
	}
	return rows[0], nil
}

func (s *Storage) loadSeries(ctx context.Context, q sqlQuerier, master *row) (*calstore.Series, error) {
	overrides, err := s.queryRows(ctx, q, `i.series_id = ?`, master.item.ID)
	if err != nil {
		return nil, fmt.Errorf("load overrides of %s: %w", master.item.ID, err)
	}
	series, err := calstore.NewSeries(master.item)
	if err != nil {
		return nil, err
	}
	series.ExDates = master.exdates
	for _, o := range overrides {
		series.Overrides = append(series.Overrides, o.item)
	}
	return series, nil
}

func (s *Storage) seriesByID(ctx context.Context, q sqlQuerier, kind domain.Kind, id string) (*calstore.Series, error) {
	master, err := s.loadRow(ctx, q, kind, id)
	if err != nil {
		return nil, err
	}
	if master.item.RRule == "" {
		return nil, calstore.ErrNotFound
	}
	return s.loadSeries(ctx, q, master)
}

func containerFilter(containerIDs []string) (string, []any) {
	if len(containerIDs) == 0 {
		return "", nil
	}
	args := make([]any, 0, len(containerIDs))
	for _, id := range containerIDs {
		args = append(args, id)
	}
	return ` AND i.container_id IN (?` + strings.Repeat(`, ?`, len(containerIDs)-1) + `)`, args
}

func (s *Storage) Events(ctx context.Context, from, to time.Time, containerIDs []string) ([]*calstore.Item, error) {
	filter, fargs := containerFilter(containerIDs)

	singles, err := s.queryRows(ctx, s.db,
		`i.kind = 'event' AND i.series_id = '' AND i.rrule = '' AND i.start_time < ? AND i.end_time >= ?`+filter,
		append([]any{formatTime(to), formatTime(from)}, fargs...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var out []*calstore.Item
	for _, r := range singles {
		if calstore.Overlaps(r.item, from, to) {
			out = append(out, r.item)
		}
	}

	masters, err := s.queryRows(ctx, s.db, `i.kind = 'event' AND i.series_id = '' AND i.rrule != ''`+filter, fargs...)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	for _, m := range masters {
		series, err := s.loadSeries(ctx, s.db, m)
		if err != nil {
			return nil, err
		}
		occ, err := series.Occurrences(from, to)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", m.item.ID, err)
		}
		out = append(out, occ...)
	}

	calstore.SortByAnchor(out)
	return out, nil
}

func (s *Storage) Reminders(ctx context.Context, containerIDs []string) ([]*calstore.Item, error) {
	filter, fargs := containerFilter(containerIDs)
	rows, err := s.queryRows(ctx, s.db,
		`i.kind = 'reminder' AND i.series_id = ''`+filter+` ORDER BY i.due IS NULL, i.due, i.created_at`,
		fargs...,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	out := make([]*calstore.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.item)
	}
	return out, nil
}

func (s *Storage) Item(ctx context.Context, kind domain.Kind, id string) (*calstore.Item, error) {
	if seriesID, rid, ok := calstore.SplitOccurrenceID(id); ok {
		series, err := s.seriesByID(ctx, s.db, kind, seriesID)
		if err != nil {
			return nil, err
		}
		return series.Occurrence(rid)
	}

	r, err := s.loadRow(ctx, s.db, kind, id)
	if err != nil {
		return nil, err
	}
	if r.item.Handle == calstore.HandleSeries {
		series, err := s.loadSeries(ctx, s.db, r)
		if err != nil {
			return nil, err
		}
		return series.Item(), nil
	}
	return r.item, nil
}

func (s *Storage) FirstOccurrence(ctx context.Context, kind domain.Kind, seriesID string) (*calstore.Item, error) {
	series, err := s.seriesByID(ctx, s.db, kind, seriesID)
	if err != nil {
		return nil, err
	}
	return series.FirstOpen()
}

func (s *Storage) Save(ctx context.Context, item *calstore.Item, span calstore.Span) (*calstore.Item, error) {
	if item.ID == "" {
		return s.create(ctx, item)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var saved *calstore.Item
	switch item.Handle {
	case calstore.HandleSingle:
		if _, err := s.loadRow(ctx, tx, item.Kind, item.ID); err != nil {
			return nil, err
		}
		if err := s.updateRow(ctx, tx, item, nil); err != nil {
			return nil, err
		}
		saved = item

	case calstore.HandleSeries:
		series, err := s.seriesByID(ctx, tx, item.Kind, item.ID)
		if err != nil {
			return nil, err
		}
		if err := series.ReplaceMaster(item); err != nil {
			return nil, err
		}
		if err := s.writeSeries(ctx, tx, series); err != nil {
			return nil, err
		}
		saved = series.Item()

	case calstore.HandleOccurrence:
		series, err := s.seriesByID(ctx, tx, item.Kind, item.SeriesID)
		if err != nil {
			return nil, err
		}
		tail, occ, err := series.Apply(item, span, uuid.NewString)
		if err != nil {
			return nil, err
		}
		if err := s.writeSeries(ctx, tx, series); err != nil {
			return nil, err
		}
		if tail != nil {
			if err := s.insertSeries(ctx, tx, tail); err != nil {
				return nil, err
			}
		}
		saved = occ

	default:
		return nil, fmt.Errorf("save %s: unknown handle %q", item.ID, item.Handle)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("item saved",
		zap.String("id", item.ID),
		zap.String("handle", string(item.Handle)),
		zap.Stringer("span", span),
	)
	return s.Item(ctx, saved.Kind, saved.ID)
}

func (s *Storage) create(ctx context.Context, item *calstore.Item) (*calstore.Item, error) {
	if item.ContainerID == "" {
		c, err := s.DefaultContainer(ctx, item.Kind)
		if err != nil {
			return nil, err
		}
		item.ContainerID = c.ID
	}
	if item.RRule != "" {
		if err := calstore.ValidateRule(item.RRule); err != nil {
			return nil, fmt.Errorf("invalid rrule %q: %w", item.RRule, err)
		}
	}

	it := item.Clone()
	it.ID = uuid.NewString()
	if err := s.insertRow(ctx, s.db, it, nil); err != nil {
		return nil, err
	}
	s.logger.Debug("item created", zap.String("id", it.ID), zap.String("kind", string(it.Kind)))
	return s.Item(ctx, it.Kind, it.ID)
}

func (s *Storage) Remove(ctx context.Context, item *calstore.Item, span calstore.Span) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	switch item.Handle {
	case calstore.HandleSingle, calstore.HandleSeries:
		if _, err := s.loadRow(ctx, tx, item.Kind, item.ID); err != nil {
			return err
		}
		if err := s.deleteAll(ctx, tx, item.ID); err != nil {
			return err
		}

	case calstore.HandleOccurrence:
		if item.RecurrenceID == nil {
			return fmt.Errorf("remove %s: %w", item.ID, calstore.ErrUnsupportedSpan)
		}
		series, err := s.seriesByID(ctx, tx, item.Kind, item.SeriesID)
		if err != nil {
			return err
		}
		gone, err := series.Drop(*item.RecurrenceID, span)
		if err != nil {
			return err
		}
		if gone {
			err = s.deleteAll(ctx, tx, item.SeriesID)
		} else {
			err = s.writeSeries(ctx, tx, series)
		}
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("remove %s: unknown handle %q", item.ID, item.Handle)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("item removed",
		zap.String("id", item.ID),
		zap.String("handle", string(item.Handle)),
		zap.Stringer("span", span),
	)
	return nil
}

func (s *Storage) Capabilities() calstore.Capabilities {
	return calstore.Capabilities{FutureEdits: true, FutureDeletes: true}
}

// === Writes ===

func (s *Storage) insertRow(ctx context.Context, q sqlQuerier, it *calstore.Item, exdates []time.Time) error {
	now := formatTime(time.Now())
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (id, kind, container_id, series_id, recurrence_id, title, notes, location, url,
			start_time, end_time, all_day, tzid, due, priority, completed, completed_at, rrule, exdates, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, string(it.Kind), it.ContainerID, it.SeriesID, formatTimePtr(it.RecurrenceID),
		it.Title, it.Notes, it.Location, it.URL,
		formatNullTime(it.Start), formatNullTime(it.End), boolInt(it.AllDay), tzName(it),
		formatTimePtr(it.Due), it.Priority, boolInt(it.Completed), formatTimePtr(it.CompletedAt),
		it.RRule, encodeExDates(exdates), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", it.ID, err)
	}
	return nil
}

func (s *Storage) updateRow(ctx context.Context, q sqlQuerier, it *calstore.Item, exdates []time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET container_id = ?, title = ?, notes = ?, location = ?, url = ?,
			start_time = ?, end_time = ?, all_day = ?, tzid = ?, due = ?, priority = ?, completed = ?,
			completed_at = ?, rrule = ?, exdates = ?, updated_at = ?
		 WHERE id = ?`,
		it.ContainerID, it.Title, it.Notes, it.Location, it.URL,
		formatNullTime(it.Start), formatNullTime(it.End), boolInt(it.AllDay), tzName(it),
		formatTimePtr(it.Due), it.Priority, boolInt(it.Completed), formatTimePtr(it.CompletedAt),
		it.RRule, encodeExDates(exdates), formatTime(time.Now()),
		it.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", it.ID, err)
	}
	return nil
}

// writeSeries rewrites the master row and replaces every override row.
func (s *Storage) writeSeries(ctx context.Context, q sqlQuerier, series *calstore.Series) error {
	if err := s.updateRow(ctx, q, series.Master, series.ExDates); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM items WHERE series_id = ?`, series.Master.ID); err != nil {
		return fmt.Errorf("clear overrides of %s: %w", series.Master.ID, err)
	}
	return s.insertOverrides(ctx, q, series)
}

func (s *Storage) insertSeries(ctx context.Context, q sqlQuerier, series *calstore.Series) error {
	if err := s.insertRow(ctx, q, series.Master, series.ExDates); err != nil {
		return err
	}
	return s.insertOverrides(ctx, q, series)
}

func (s *Storage) insertOverrides(ctx context.Context, q sqlQuerier, series *calstore.Series) error {
	for _, o := range series.Overrides {
		ov := o.Clone()
		ov.ID = calstore.OccurrenceID(series.Master.ID, *o.RecurrenceID)
		ov.SeriesID = series.Master.ID
		ov.ContainerID = series.Master.ContainerID
		ov.RRule = ""
		if err := s.insertRow(ctx, q, ov, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) deleteAll(ctx context.Context, q sqlQuerier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ? OR series_id = ?`, id, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// === Encoding ===

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return formatNullTime(*t)
}

func parseTime(v sql.NullString, loc *time.Location) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return time.Time{}
	}
	return t.In(loc)
}

func parseTimePtr(v sql.NullString, loc *time.Location) *time.Time {
	t := parseTime(v, loc)
	if t.IsZero() {
		return nil
	}
	return &t
}

func encodeExDates(exdates []time.Time) string {
	raw := make([]string, 0, len(exdates))
	for _, ex := range exdates {
		raw = append(raw, formatTime(ex))
	}
	data, _ := json.Marshal(raw)
	return string(data)
}

// tzName keeps the zone of the item's anchor so series expand in local time.
func tzName(it *calstore.Item) string {
	anchor := it.Anchor()
	if anchor.IsZero() {
		return "UTC"
	}
	return anchor.Location().String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
