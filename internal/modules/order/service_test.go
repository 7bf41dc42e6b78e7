// README: Order service tests (flow + guards). DB-backed; skipped without WAYCART_TEST_DSN.
package order

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"waycart/internal/config"
	"waycart/internal/geo"
	"waycart/internal/modules/discovery"
	"waycart/internal/modules/notify"
	"waycart/internal/modules/vendor"
	"waycart/internal/types"
)

var (
	routeStart = types.Coordinate{Lat: 18.5204, Lng: 73.8567}
	routeEnd   = types.Coordinate{Lat: 18.5300, Lng: 73.8700}
)

func testRoute() discovery.Route {
	return discovery.Route{Start: routeStart, End: routeEnd, DepartureTime: time.Now().UTC()}
}

func testItems() []Item {
	return []Item{
		{ItemID: "i1", Name: "Milk", Quantity: 2, Unit: "litre"},
		{ItemID: "i2", Name: "Bread", Quantity: 1, Unit: "loaf"},
	}
}

// fixedVendors serves a static pool; the discovery service applies the exact
// detour filter on top.
type fixedVendors struct {
	pool []vendor.Vendor
}

func (f fixedVendors) FindWithinRadius(_ context.Context, center types.Coordinate, radiusKm float64, _ []vendor.Category) ([]vendor.Vendor, error) {
	var out []vendor.Vendor
	for _, v := range f.pool {
		if v.Location != nil && geo.DistanceKm(center, *v.Location) <= radiusKm {
			out = append(out, v)
		}
	}
	return out, nil
}

// recorder captures dispatched notifications; safe for concurrent use.
type recorder struct {
	mu             sync.Mutex
	quoteRequests  []types.ID // vendor ids asked to quote
	customerQuotes []notify.QuoteSummary
	confirmed      []types.ID
	lost           []types.ID
	statusChanges  []string
}

func (r *recorder) VendorOrderRequested(_ context.Context, vendorID types.ID, _ notify.OrderSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quoteRequests = append(r.quoteRequests, vendorID)
}

func (r *recorder) CustomerQuoteReceived(_ context.Context, _, _ types.ID, q notify.QuoteSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customerQuotes = append(r.customerQuotes, q)
}

func (r *recorder) VendorConfirmed(_ context.Context, vendorID, _ types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, vendorID)
}

func (r *recorder) VendorsLost(_ context.Context, _ types.ID, vendorIDs []types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = append(r.lost, vendorIDs...)
}

func (r *recorder) OrderStatusChanged(_ context.Context, _, _ types.ID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusChanges = append(r.statusChanges, status)
}

func nearLoc(lat, lng float64) *types.Coordinate {
	return &types.Coordinate{Lat: lat, Lng: lng}
}

// defaultPool: A and C sit near the straight path, B is far off it.
func defaultPool() []vendor.Vendor {
	return []vendor.Vendor{
		{ID: "vendor_a", Name: "Vendor A", IsActive: true, Location: nearLoc(18.5230, 73.8600), Categories: []vendor.Category{vendor.CategoryGrocery}, GroceryEnabled: true},
		{ID: "vendor_b", Name: "Vendor B", IsActive: true, Location: nearLoc(19.0, 74.5), Categories: []vendor.Category{vendor.CategoryGrocery}},
		{ID: "vendor_c", Name: "Vendor C", IsActive: true, Location: nearLoc(18.5260, 73.8650), Categories: []vendor.Category{vendor.CategoryGrocery}},
	}
}

func setupTestService(t *testing.T, pool []vendor.Vendor) (*Service, *recorder) {
	t.Helper()
	store := setupTestStore(t)
	finder := discovery.NewService(fixedVendors{pool: pool}, nil, config.DiscoveryConfig{RadiusSlackKm: 1, CacheTTL: time.Hour})
	rec := &recorder{}
	return NewService(store, finder, rec, 5*time.Minute), rec
}

func mustCreate(t *testing.T, svc *Service) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateCommand{
		UserID: "user_1",
		Items:  testItems(),
		Route:  testRoute(),
		Prefs:  discovery.Preferences{MaxDetourKm: 3},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func mustQuote(t *testing.T, svc *Service, orderID, vendorID types.ID, price string) {
	t.Helper()
	err := svc.SubmitQuote(context.Background(), SubmitQuoteCommand{
		OrderID:            orderID,
		VendorID:           vendorID,
		Status:             QuoteAccepted,
		TotalPrice:         decimal.RequireFromString(price),
		EstimatedReadyTime: time.Now().UTC().Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("submit quote (%s): %v", vendorID, err)
	}
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	o, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != want {
		t.Fatalf("status = %s, want %s", o.Status, want)
	}
}

func TestOrderFlowHappyPath(t *testing.T) {
	svc, rec := setupTestService(t, defaultPool())
	ctx := context.Background()

	o := mustCreate(t, svc)
	if o.Status != StatusPendingQuotes {
		t.Fatalf("new order status = %s, want %s", o.Status, StatusPendingQuotes)
	}
	// Only vendors within the 3km detour budget qualify; the far-off one
	// must not appear.
	for _, id := range o.CandidateVendorIDs {
		if id == "vendor_b" {
			t.Fatal("far vendor qualified as candidate")
		}
	}
	if !o.IsCandidate("vendor_a") {
		t.Fatalf("near vendor missing from candidates: %v", o.CandidateVendorIDs)
	}
	rec.mu.Lock()
	notified := len(rec.quoteRequests)
	rec.mu.Unlock()
	if notified != len(o.CandidateVendorIDs) {
		t.Errorf("notified %d vendors, want %d", notified, len(o.CandidateVendorIDs))
	}

	mustQuote(t, svc, o.ID, "vendor_a", "150.50")
	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	q, ok := got.Quotes["vendor_a"]
	if !ok {
		t.Fatal("quote not recorded")
	}
	if !q.TotalPrice.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("quote price = %s, want 150.50", q.TotalPrice)
	}

	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, _ = svc.Get(ctx, o.ID)
	if got.Status != StatusConfirmed {
		t.Fatalf("status after select = %s, want confirmed", got.Status)
	}
	if got.SelectedVendorID == nil || *got.SelectedVendorID != "vendor_a" {
		t.Fatal("selected vendor not recorded")
	}

	// Skipping a state is rejected.
	err = svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, VendorID: "vendor_a", Next: StatusPickedUp})
	if err != ErrInvalidTransition {
		t.Fatalf("skip advance err = %v, want ErrInvalidTransition", err)
	}

	for _, next := range []Status{StatusPreparing, StatusReadyForPickup, StatusPickedUp, StatusCompleted} {
		if err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, VendorID: "vendor_a", Next: next}); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		assertStatus(t, svc, o.ID, next)
	}

	// Terminal: nothing moves any more.
	err = svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, VendorID: "vendor_a", Next: StatusPreparing})
	if err != ErrOrderTerminal {
		t.Fatalf("advance after completion err = %v, want ErrOrderTerminal", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setupTestService(t, defaultPool())
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateCommand
	}{
		{"no user", CreateCommand{Items: testItems(), Route: testRoute(), Prefs: discovery.Preferences{MaxDetourKm: 3}}},
		{"no items", CreateCommand{UserID: "u", Route: testRoute(), Prefs: discovery.Preferences{MaxDetourKm: 3}}},
		{"zero quantity", CreateCommand{UserID: "u", Items: []Item{{Name: "Milk", Quantity: 0}}, Route: testRoute(), Prefs: discovery.Preferences{MaxDetourKm: 3}}},
		{"bad latitude", CreateCommand{UserID: "u", Items: testItems(), Route: discovery.Route{Start: types.Coordinate{Lat: 95}, End: routeEnd}, Prefs: discovery.Preferences{MaxDetourKm: 3}}},
		{"no detour budget", CreateCommand{UserID: "u", Items: testItems(), Route: testRoute()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.cmd); err != ErrBadRequest {
				t.Errorf("err = %v, want ErrBadRequest", err)
			}
		})
	}
}

func TestCreateNoVendorsAvailable(t *testing.T) {
	// Pool only contains the far-off vendor; nothing qualifies.
	svc, _ := setupTestService(t, []vendor.Vendor{
		{ID: "vendor_b", Name: "Vendor B", IsActive: true, Location: nearLoc(19.0, 74.5)},
	})
	_, err := svc.Create(context.Background(), CreateCommand{
		UserID: "user_1",
		Items:  testItems(),
		Route:  testRoute(),
		Prefs:  discovery.Preferences{MaxDetourKm: 3},
	})
	if err != ErrNoVendorsAvailable {
		t.Fatalf("err = %v, want ErrNoVendorsAvailable", err)
	}
}

func TestQuoteResubmissionReplaces(t *testing.T) {
	svc, _ := setupTestService(t, defaultPool())
	ctx := context.Background()
	o := mustCreate(t, svc)

	mustQuote(t, svc, o.ID, "vendor_a", "150.50")
	mustQuote(t, svc, o.ID, "vendor_a", "140.00")

	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Quotes) != 1 {
		t.Fatalf("quotes = %d entries, want 1", len(got.Quotes))
	}
	if !got.Quotes["vendor_a"].TotalPrice.Equal(decimal.RequireFromString("140.00")) {
		t.Errorf("latest submission should win: %s", got.Quotes["vendor_a"].TotalPrice)
	}
}

func TestQuoteGuards(t *testing.T) {
	svc, _ := setupTestService(t, defaultPool())
	ctx := context.Background()
	o := mustCreate(t, svc)

	err := svc.SubmitQuote(ctx, SubmitQuoteCommand{OrderID: "missing", VendorID: "vendor_a", Status: QuoteAccepted})
	if err != ErrNotFound {
		t.Errorf("unknown order err = %v, want ErrNotFound", err)
	}

	err = svc.SubmitQuote(ctx, SubmitQuoteCommand{OrderID: o.ID, VendorID: "vendor_b", Status: QuoteAccepted})
	if err != ErrVendorNotCandidate {
		t.Errorf("non-candidate err = %v, want ErrVendorNotCandidate", err)
	}

	err = svc.SubmitQuote(ctx, SubmitQuoteCommand{OrderID: o.ID, VendorID: "vendor_a", Status: "perhaps"})
	if err != ErrBadRequest {
		t.Errorf("bad status err = %v, want ErrBadRequest", err)
	}

	err = svc.SubmitQuote(ctx, SubmitQuoteCommand{OrderID: o.ID, VendorID: "vendor_a", Status: QuoteAccepted, TotalPrice: decimal.RequireFromString("-1")})
	if err != ErrBadRequest {
		t.Errorf("negative price err = %v, want ErrBadRequest", err)
	}

	// Quotes close once a vendor is selected.
	mustQuote(t, svc, o.ID, "vendor_a", "100.00")
	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	err = svc.SubmitQuote(ctx, SubmitQuoteCommand{OrderID: o.ID, VendorID: "vendor_c", Status: QuoteAccepted})
	if err != ErrOrderTerminal {
		t.Errorf("late quote err = %v, want ErrOrderTerminal", err)
	}
}

func TestSelectGuards(t *testing.T) {
	svc, rec := setupTestService(t, defaultPool())
	ctx := context.Background()
	o := mustCreate(t, svc)

	// No quote on file yet.
	err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"})
	if err != ErrUnknownQuote {
		t.Errorf("select without quote err = %v, want ErrUnknownQuote", err)
	}
	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: "missing", VendorID: "vendor_a"}); err != ErrNotFound {
		t.Errorf("unknown order err = %v, want ErrNotFound", err)
	}

	mustQuote(t, svc, o.ID, "vendor_a", "100.00")
	mustQuote(t, svc, o.ID, "vendor_c", "90.00")

	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	// Idempotent retry with the winner.
	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"}); err != nil {
		t.Errorf("winner retry err = %v, want nil", err)
	}
	// A different vendor is refused.
	err = svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_c"})
	if err != ErrAlreadySelected {
		t.Errorf("loser select err = %v, want ErrAlreadySelected", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.confirmed) != 1 || rec.confirmed[0] != "vendor_a" {
		t.Errorf("confirmed notifications = %v, want [vendor_a]", rec.confirmed)
	}
	if len(rec.lost) != 1 || rec.lost[0] != "vendor_c" {
		t.Errorf("lost notifications = %v, want [vendor_c]", rec.lost)
	}
}

func TestCancelMakesOrderTerminal(t *testing.T) {
	svc, _ := setupTestService(t, defaultPool())
	ctx := context.Background()
	o := mustCreate(t, svc)
	mustQuote(t, svc, o.ID, "vendor_a", "100.00")

	if err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, Reason: "changed my mind"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusCancelled)

	if err := svc.SubmitQuote(ctx, SubmitQuoteCommand{OrderID: o.ID, VendorID: "vendor_c", Status: QuoteAccepted}); err != ErrOrderTerminal {
		t.Errorf("quote after cancel err = %v, want ErrOrderTerminal", err)
	}
	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"}); err != ErrOrderTerminal {
		t.Errorf("select after cancel err = %v, want ErrOrderTerminal", err)
	}
	if err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, VendorID: "vendor_a", Next: StatusPreparing}); err != ErrOrderTerminal {
		t.Errorf("advance after cancel err = %v, want ErrOrderTerminal", err)
	}
	if err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, Reason: "again"}); err != ErrOrderTerminal {
		t.Errorf("double cancel err = %v, want ErrOrderTerminal", err)
	}

	// Stored state is unchanged by the rejected calls.
	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCancelled || len(got.Quotes) != 1 || got.SelectedVendorID != nil {
		t.Errorf("cancelled order mutated: %+v", got)
	}
	if got.CancelReason == nil || *got.CancelReason != "changed my mind" {
		t.Errorf("cancel reason not recorded")
	}
}

func TestAdvanceOnlyBySelectedVendor(t *testing.T) {
	svc, _ := setupTestService(t, defaultPool())
	ctx := context.Background()
	o := mustCreate(t, svc)
	mustQuote(t, svc, o.ID, "vendor_a", "100.00")
	if err := svc.SelectVendor(ctx, SelectCommand{OrderID: o.ID, VendorID: "vendor_a"}); err != nil {
		t.Fatalf("select: %v", err)
	}

	err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, VendorID: "vendor_c", Next: StatusPreparing})
	if err != ErrInvalidTransition {
		t.Errorf("foreign vendor advance err = %v, want ErrInvalidTransition", err)
	}
	// Vendors cannot re-confirm or cancel through advance.
	err = svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, VendorID: "vendor_a", Next: StatusCancelled})
	if err != ErrInvalidTransition {
		t.Errorf("advance-to-cancelled err = %v, want ErrInvalidTransition", err)
	}
	assertStatus(t, svc, o.ID, StatusConfirmed)
}

func TestListByUserAndVendor(t *testing.T) {
	svc, _ := setupTestService(t, defaultPool())
	ctx := context.Background()
	o := mustCreate(t, svc)

	mine, err := svc.ListByUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != o.ID {
		t.Errorf("user list = %+v, want the created order", mine)
	}

	feed, err := svc.ListByVendor(ctx, "vendor_a")
	if err != nil {
		t.Fatalf("list by vendor: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != o.ID {
		t.Errorf("vendor feed = %+v, want the created order", feed)
	}

	other, err := svc.ListByVendor(ctx, "vendor_b")
	if err != nil {
		t.Fatalf("list by vendor: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("non-candidate vendor sees %d orders, want 0", len(other))
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("WAYCART_TEST_DSN")
	if dsn == "" {
		t.Skip("WAYCART_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_state_events, order_quotes, orders, vendors"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	for _, line := range strings.Split(input, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	var out []string
	for _, stmt := range strings.Split(input, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
