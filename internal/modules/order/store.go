// README: Order store backed by PostgreSQL; CAS updates carry the locking discipline.
package order

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waycart/internal/modules/vendor"
	"waycart/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, user_id, items, start_lat, start_lng, end_lat, end_lng,
	departure_time, max_detour_km, categories, single_vendor_preferred,
	candidate_vendor_ids, selected_vendor_id, status, status_version,
	quote_deadline, cancel_reason, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	cats := make([]string, len(o.Prefs.Categories))
	for i, c := range o.Prefs.Categories {
		cats[i] = string(c)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, items, start_lat, start_lng, end_lat, end_lng,
			departure_time, max_detour_km, categories, single_vendor_preferred,
			candidate_vendor_ids, selected_vendor_id, status, status_version,
			quote_deadline, cancel_reason, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, NULL, $13, $14,
			$15, NULL, $16, $16
		)`,
		string(o.ID), string(o.UserID), items,
		o.Route.Start.Lat, o.Route.Start.Lng, o.Route.End.Lat, o.Route.End.Lng,
		o.Route.DepartureTime, o.Prefs.MaxDetourKm, cats, o.Prefs.SingleVendorPreferred,
		idsToStrings(o.CandidateVendorIDs), string(o.Status), o.StatusVersion,
		o.QuoteDeadline, o.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadQuotes(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID) ([]Order, error) {
	return s.list(ctx, `SELECT`+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, string(userID))
}

// ListByVendor returns orders where the vendor is a candidate or the winner.
func (s *Store) ListByVendor(ctx context.Context, vendorID types.ID) ([]Order, error) {
	return s.list(ctx, `
		SELECT`+orderColumns+` FROM orders
		WHERE $1 = ANY(candidate_vendor_ids) OR selected_vendor_id = $1
		ORDER BY created_at DESC`, string(vendorID))
}

func (s *Store) list(ctx context.Context, query string, arg any) ([]Order, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadQuotes(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SubmitQuote inserts or replaces the vendor's quote while holding the order
// row lock, so it never interleaves with selection or cancellation on the
// same order. Returns the order's user id for the customer notification.
func (s *Store) SubmitQuote(ctx context.Context, q *Quote) (types.ID, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var userID string
	var status string
	var candidates []string
	err = tx.QueryRow(ctx, `
		SELECT user_id, status, candidate_vendor_ids
		FROM orders WHERE id = $1 FOR UPDATE`, string(q.OrderID),
	).Scan(&userID, &status, &candidates)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if Status(status) != StatusPendingQuotes {
		return "", ErrOrderTerminal
	}
	if !containsString(candidates, string(q.VendorID)) {
		return "", ErrVendorNotCandidate
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_quotes (
			order_id, vendor_id, status, total_price, estimated_ready_time, notes, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, vendor_id) DO UPDATE SET
			status = EXCLUDED.status,
			total_price = EXCLUDED.total_price,
			estimated_ready_time = EXCLUDED.estimated_ready_time,
			notes = EXCLUDED.notes,
			submitted_at = EXCLUDED.submitted_at`,
		string(q.OrderID), string(q.VendorID), string(q.Status),
		q.TotalPrice, q.EstimatedReadyTime, q.Notes, q.SubmittedAt,
	)
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET updated_at = NOW() WHERE id = $1`, string(q.OrderID)); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return types.ID(userID), nil
}

// SelectVendor is the at-most-one selection CAS. It succeeds only when the
// order is still pending, nothing has been selected, and the vendor has a
// quote on file; losers see zero rows and classify by re-reading.
func (s *Store) SelectVendor(ctx context.Context, orderID, vendorID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET selected_vendor_id = $2,
		    status = $3,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $4
		  AND selected_vendor_id IS NULL
		  AND EXISTS (
		      SELECT 1 FROM order_quotes
		      WHERE order_id = $1 AND vendor_id = $2
		  )`,
		string(orderID), string(vendorID), string(StatusConfirmed), string(StatusPendingQuotes),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus performs the optimistic transition CAS keyed on (status,
// status_version).
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves any non-terminal order to cancelled.
func (s *Store) Cancel(ctx context.Context, id types.ID, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    status_version = status_version + 1,
		    cancel_reason = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		string(id), string(StatusCancelled), reason,
		string(StatusCompleted), string(StatusCancelled),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, actorID, e.CreatedAt,
	)
	return err
}

func (s *Store) loadQuotes(ctx context.Context, o *Order) error {
	rows, err := s.db.Query(ctx, `
		SELECT order_id, vendor_id, status, total_price, estimated_ready_time, notes, submitted_at
		FROM order_quotes WHERE order_id = $1`, string(o.ID),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Quotes = make(map[types.ID]Quote)
	for rows.Next() {
		var q Quote
		var orderID, vendorID, status string
		if err := rows.Scan(&orderID, &vendorID, &status, &q.TotalPrice, &q.EstimatedReadyTime, &q.Notes, &q.SubmittedAt); err != nil {
			return err
		}
		q.OrderID = types.ID(orderID)
		q.VendorID = types.ID(vendorID)
		q.Status = QuoteStatus(status)
		o.Quotes[q.VendorID] = q
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var items []byte
	var cats, candidates []string
	var selected, cancelReason *string
	var status string

	err := row.Scan(
		&o.ID, &o.UserID, &items,
		&o.Route.Start.Lat, &o.Route.Start.Lng, &o.Route.End.Lat, &o.Route.End.Lng,
		&o.Route.DepartureTime, &o.Prefs.MaxDetourKm, &cats, &o.Prefs.SingleVendorPreferred,
		&candidates, &selected, &status, &o.StatusVersion,
		&o.QuoteDeadline, &cancelReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	o.Prefs.Categories = stringsToCategories(cats)
	o.CandidateVendorIDs = stringsToIDs(candidates)
	o.Status = Status(status)
	if selected != nil {
		id := types.ID(*selected)
		o.SelectedVendorID = &id
	}
	o.CancelReason = cancelReason
	return &o, nil
}

func idsToStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToIDs(ss []string) []types.ID {
	out := make([]types.ID, len(ss))
	for i, s := range ss {
		out[i] = types.ID(s)
	}
	return out
}

func stringsToCategories(ss []string) []vendor.Category {
	out := make([]vendor.Category, len(ss))
	for i, s := range ss {
		out[i] = vendor.Category(s)
	}
	return out
}

func containsString(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
