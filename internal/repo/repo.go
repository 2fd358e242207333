package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"demandboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const demandColumns = `id,description,priority,subgroups_json,responsibles_json,COALESCE(observation,'') AS observation,COALESCE(delivery_date,'') AS delivery_date,category,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDemand(row scanner) (domain.Demand, error) {
	var (
		d                       domain.Demand
		subgroups, responsibles string
		priority, category      string
	)
	err := row.Scan(&d.ID, &d.Description, &priority, &subgroups, &responsibles, &d.Observation, &d.DeliveryDate, &category, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Priority = domain.Priority(priority)
	d.Category = domain.Category(category)
	if d.Subgroups, err = decodeStringSlice(subgroups); err != nil {
		return d, fmt.Errorf("demand %s subgroups: %w", d.ID, err)
	}
	if d.Responsibles, err = decodeStringSlice(responsibles); err != nil {
		return d, fmt.Errorf("demand %s responsibles: %w", d.ID, err)
	}
	return d, nil
}

// DemandFilters narrows ListDemands. Empty fields do not constrain.
type DemandFilters struct {
	Priority    string
	Subgroup    string
	Responsible string
	Category    string
}

func (r Repo) ListDemands(ctx context.Context, f DemandFilters) ([]domain.Demand, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Subgroup != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(demands.subgroups_json) WHERE json_each.value=?)")
		args = append(args, f.Subgroup)
	}
	if f.Responsible != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(demands.responsibles_json) WHERE json_each.value=?)")
		args = append(args, f.Responsible)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+demandColumns+` FROM demands `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Demand{}
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) GetDemand(ctx context.Context, id string) (domain.Demand, error) {
	return getDemand(ctx, r.DB, id)
}

func (r Repo) GetDemandTx(ctx context.Context, tx *sql.Tx, id string) (domain.Demand, error) {
	return getDemand(ctx, tx, id)
}

func getDemand(ctx context.Context, q queryer, id string) (domain.Demand, error) {
	return scanDemand(q.QueryRowContext(ctx, `SELECT `+demandColumns+` FROM demands WHERE id=?`, id))
}

// NextDemandID bumps the demand counter and returns the DMD-NNNN id for it.
// The counter never goes backwards, so ids are not reused after deletes.
func (r Repo) NextDemandID(ctx context.Context, tx *sql.Tx) (string, int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, `UPDATE counters SET value=value+1 WHERE name='demand' RETURNING value`).Scan(&seq)
	if err != nil {
		return "", 0, fmt.Errorf("next demand id: %w", err)
	}
	return fmt.Sprintf("DMD-%04d", seq), seq, nil
}

func (r Repo) InsertDemand(ctx context.Context, tx *sql.Tx, d domain.Demand, seq int64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO demands(id,seq,description,priority,subgroups_json,responsibles_json,observation,delivery_date,category,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, seq, d.Description, string(d.Priority), toJSONArray(d.Subgroups), toJSONArray(d.Responsibles),
		nullable(d.Observation), nullable(d.DeliveryDate), string(d.Category), d.CreatedAt, d.UpdatedAt)
	return err
}

// UpdateDemand writes every mutable column of d.
func (r Repo) UpdateDemand(ctx context.Context, tx *sql.Tx, d domain.Demand) error {
	res, err := tx.ExecContext(ctx, `UPDATE demands SET description=?,priority=?,subgroups_json=?,responsibles_json=?,observation=?,delivery_date=?,category=?,updated_at=? WHERE id=?`,
		d.Description, string(d.Priority), toJSONArray(d.Subgroups), toJSONArray(d.Responsibles),
		nullable(d.Observation), nullable(d.DeliveryDate), string(d.Category), d.UpdatedAt, d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDemands removes the given ids and returns the ids actually deleted.
func (r Repo) DeleteDemands(ctx context.Context, tx *sql.Tx, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx, `DELETE FROM demands WHERE id IN (`+placeholders+`) RETURNING id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func (r Repo) CountDemandsByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT category, COUNT(*) FROM demands GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for _, c := range domain.Categories {
		counts[string(c)] = 0
	}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		clauses []string
		args    []any
	)
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(entity_id,''),payload_json FROM events `+where+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func toJSONArray(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeStringSlice(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
