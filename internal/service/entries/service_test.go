package entries

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
)

// fakeStore is an in-memory EntryStore with transaction semantics: a failed
// mutation leaves no trace, and the enabled-per-scope-key unique index is
// enforced on insert/replace like the real schema does.
type fakeStore struct {
	entries map[string]domain.ConfigurationEntry
	order   []string
	audits  []domain.AuditRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]domain.ConfigurationEntry)}
}

func (f *fakeStore) Search(ctx context.Context, tenantID string, req query.Request) (repo.EntrySearchResult, error) {
	entries := make([]domain.ConfigurationEntry, 0, len(f.order))
	for _, id := range f.order {
		entries = append(entries, f.entries[id])
	}
	docs := make([]map[string]any, len(entries))
	for i, e := range entries {
		docs[i] = e.Document()
	}
	res := query.Run(docs, req)
	page := make([]domain.ConfigurationEntry, 0, len(res.Page))
	for _, idx := range res.Page {
		page = append(page, entries[idx])
	}
	return repo.EntrySearchResult{Entries: page, TotalRecords: res.TotalRecords, Facets: res.Facets}, nil
}

func (f *fakeStore) GetByID(ctx context.Context, tenantID, id string) (domain.ConfigurationEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return domain.ConfigurationEntry{}, repo.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) Mutate(ctx context.Context, tenantID string, fn func(ctx context.Context, tx repo.EntryTx) error) error {
	tx := &fakeTx{
		entries: make(map[string]domain.ConfigurationEntry, len(f.entries)),
		order:   append([]string(nil), f.order...),
		audits:  append([]domain.AuditRecord(nil), f.audits...),
	}
	for id, e := range f.entries {
		tx.entries[id] = e
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	f.entries = tx.entries
	f.order = tx.order
	f.audits = tx.audits
	return nil
}

type fakeTx struct {
	entries map[string]domain.ConfigurationEntry
	order   []string
	audits  []domain.AuditRecord
}

func (t *fakeTx) Get(ctx context.Context, id string) (domain.ConfigurationEntry, error) {
	e, ok := t.entries[id]
	if !ok {
		return domain.ConfigurationEntry{}, repo.ErrNotFound
	}
	return e, nil
}

func (t *fakeTx) SharingSet(ctx context.Context, key domain.ScopeKey, excludeID string) ([]domain.ConfigurationEntry, error) {
	var out []domain.ConfigurationEntry
	for _, id := range t.order {
		e := t.entries[id]
		if e.ID == excludeID {
			continue
		}
		if domain.ScopeKeyOf(e) == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *fakeTx) indexViolated(candidate domain.ConfigurationEntry) bool {
	if !candidate.Enabled {
		return false
	}
	key := domain.ScopeKeyOf(candidate)
	for _, e := range t.entries {
		if e.ID != candidate.ID && e.Enabled && domain.ScopeKeyOf(e) == key {
			return true
		}
	}
	return false
}

func (t *fakeTx) Insert(ctx context.Context, entry domain.ConfigurationEntry) error {
	if _, exists := t.entries[entry.ID]; exists {
		return fmt.Errorf("duplicate id %s", entry.ID)
	}
	if t.indexViolated(entry) {
		return repo.ErrScopeConflict
	}
	t.entries[entry.ID] = entry
	t.order = append(t.order, entry.ID)
	return nil
}

func (t *fakeTx) Replace(ctx context.Context, entry domain.ConfigurationEntry) (int64, error) {
	if _, exists := t.entries[entry.ID]; !exists {
		return 0, nil
	}
	if t.indexViolated(entry) {
		return 0, repo.ErrScopeConflict
	}
	t.entries[entry.ID] = entry
	return 1, nil
}

func (t *fakeTx) Delete(ctx context.Context, id string) (domain.ConfigurationEntry, int64, error) {
	e, ok := t.entries[id]
	if !ok {
		return domain.ConfigurationEntry{}, 0, nil
	}
	delete(t.entries, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return e, 1, nil
}

func (t *fakeTx) AppendAudit(ctx context.Context, record domain.AuditRecord) error {
	record.AuditID = int64(len(t.audits) + 1)
	t.audits = append(t.audits, record)
	return nil
}

type fakeAuditStore struct {
	store *fakeStore
}

func (f *fakeAuditStore) Search(ctx context.Context, tenantID string, req query.Request) (repo.AuditSearchResult, error) {
	records := append([]domain.AuditRecord(nil), f.store.audits...)
	docs := make([]map[string]any, len(records))
	for i, r := range records {
		docs[i] = r.Document()
	}
	res := query.Run(docs, req)
	page := make([]domain.AuditRecord, 0, len(res.Page))
	for _, idx := range res.Page {
		page = append(page, records[idx])
	}
	return repo.AuditSearchResult{Records: page, TotalRecords: res.TotalRecords, Facets: res.Facets}, nil
}

func newTestService(store *fakeStore) *Service {
	svc := NewService(store, &fakeAuditStore{store: store})
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	id := 0
	svc.newID = func() string {
		id++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", id)
	}
	return svc
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func checkoutEntry() domain.ConfigurationEntry {
	return domain.ConfigurationEntry{
		Module:     "CHECKOUT",
		ConfigName: "other_settings",
		Code:       strp("audioAlertsEnabled"),
		Value:      "true",
	}
}

const tenant = "diku"

func TestCreate_DefaultsEnabledAndSetsMetadata(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), tenant, "user-1", checkoutEntry(), nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if created.ID == "" {
		t.Fatalf("Create() did not assign an id")
	}
	if !created.Enabled {
		t.Fatalf("omitted enabled must default to true")
	}
	if created.Metadata.CreatedDate.IsZero() || created.Metadata.CreatedBy != "user-1" {
		t.Fatalf("metadata=%+v, want creation stamp by user-1", created.Metadata)
	}
}

func TestCreate_DuplicateScopeRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil); err != nil {
		t.Fatalf("first Create() err=%v", err)
	}
	_, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("second Create() err=%v, want *domain.ValidationError", err)
	}
	if vErr.ConflictID == "" {
		t.Fatalf("duplicate rejection must name the conflicting entry")
	}
	if len(store.entries) != 1 {
		t.Fatalf("rejected create must not write; have %d entries", len(store.entries))
	}
	if len(store.audits) != 1 {
		t.Fatalf("rejected create must not audit; have %d records", len(store.audits))
	}
}

func TestCreate_ClientSuppliedIDKept(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	entry := checkoutEntry()
	entry.ID = "8a4b3c1d-2e5f-4a6b-8c7d-9e0f1a2b3c4d"
	created, err := svc.Create(context.Background(), tenant, "u", entry, nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if created.ID != entry.ID {
		t.Fatalf("Create() id=%q, want client-supplied %q", created.ID, entry.ID)
	}
}

func TestCreate_MalformedClientIDRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	entry := checkoutEntry()
	entry.ID = "not-a-uuid"
	_, err := svc.Create(context.Background(), tenant, "u", entry, nil)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Create() err=%v, want *domain.ValidationError", err)
	}
	if vErr.Field != "id" {
		t.Fatalf("Field=%q, want id", vErr.Field)
	}
	if len(store.entries) != 0 || len(store.audits) != 0 {
		t.Fatalf("rejected id must not write; have %d entries %d audits", len(store.entries), len(store.audits))
	}
}

func TestCreate_DuplicateClientIDRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	first := checkoutEntry()
	first.ID = "8a4b3c1d-2e5f-4a6b-8c7d-9e0f1a2b3c4d"
	if _, err := svc.Create(ctx, tenant, "u", first, nil); err != nil {
		t.Fatalf("first Create() err=%v", err)
	}

	// Same id, different scope key: the rejection must name the id, not
	// report a scope conflict.
	second := checkoutEntry()
	second.ID = first.ID
	second.Code = strp("checkoutTimeout")
	_, err := svc.Create(ctx, tenant, "u", second, nil)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("second Create() err=%v, want *domain.ValidationError", err)
	}
	if vErr.Field != "id" {
		t.Fatalf("Field=%q, want id", vErr.Field)
	}
	if len(store.entries) != 1 {
		t.Fatalf("rejected create must not write; have %d entries", len(store.entries))
	}
}

func TestCreate_DisabledEntriesUnconstrained(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, tenant, "u", checkoutEntry(), boolp(false)); err != nil {
			t.Fatalf("disabled Create() %d err=%v", i, err)
		}
	}
	if len(store.entries) != 5 {
		t.Fatalf("have %d entries, want 5", len(store.entries))
	}
}

func TestCreate_ScopeBucketsAreDistinct(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	base := checkoutEntry()

	noCode := base.Clone()
	noCode.Code = nil

	emptyUser := base.Clone()
	emptyUser.UserID = strp("")

	withUser := base.Clone()
	withUser.UserID = strp("user-9")

	for i, e := range []domain.ConfigurationEntry{base, noCode, emptyUser, withUser} {
		if _, err := svc.Create(ctx, tenant, "u", e, nil); err != nil {
			t.Fatalf("Create() %d err=%v: distinct buckets must not conflict", i, err)
		}
	}
}

func TestReplace_ExcludesSelf(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	updated := checkoutEntry()
	updated.Value = "false"
	if err := svc.Replace(ctx, tenant, "u2", created.ID, updated, boolp(true)); err != nil {
		t.Fatalf("Replace() err=%v: sole enabled entry must not conflict with itself", err)
	}

	stored := store.entries[created.ID]
	if stored.Value != "false" {
		t.Fatalf("stored.Value=%q, want false", stored.Value)
	}
	if stored.Metadata.CreatedBy != "u" {
		t.Fatalf("replace must keep creation metadata; CreatedBy=%q", stored.Metadata.CreatedBy)
	}
	if stored.Metadata.UpdatedBy == nil || *stored.Metadata.UpdatedBy != "u2" {
		t.Fatalf("replace must stamp update metadata; got %+v", stored.Metadata)
	}
}

func TestReplace_OmittedEnabledRestoresEnabled(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, "u", checkoutEntry(), boolp(false))
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if err := svc.Replace(ctx, tenant, "u", created.ID, checkoutEntry(), nil); err != nil {
		t.Fatalf("Replace() err=%v", err)
	}
	if !store.entries[created.ID].Enabled {
		t.Fatalf("replace without enabled must restore enabled=true")
	}
}

func TestReplace_NewKeyValidatedAgainstOthers(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	other := checkoutEntry()
	other.Code = strp("printAlertsEnabled")
	second, err := svc.Create(ctx, tenant, "u", other, nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	// Moving the second entry onto the first one's key must conflict.
	moved := checkoutEntry()
	err = svc.Replace(ctx, tenant, "u", second.ID, moved, nil)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Replace() err=%v, want *domain.ValidationError", err)
	}
	if vErr.ConflictID != first.ID {
		t.Fatalf("ConflictID=%q, want %q", vErr.ConflictID, first.ID)
	}
}

func TestReplace_MissingIsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	err := svc.Replace(context.Background(), tenant, "u", "ffffffff-0000-0000-0000-000000000000", checkoutEntry(), nil)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Replace() err=%v, want ErrNotFound", err)
	}
	if len(store.audits) != 0 {
		t.Fatalf("failed replace must not audit")
	}
}

func TestDelete_MissingIsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	err := svc.Delete(context.Background(), tenant, "ffffffff-0000-0000-0000-000000000000")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Delete() err=%v, want ErrNotFound", err)
	}
}

func TestScopeUniqueness_HoldsUnderSequence(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	// Interleave creates, replaces, and deletes on one key, accepting
	// rejections, then check at most one enabled entry survives.
	var ids []string
	for i := 0; i < 4; i++ {
		if created, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil); err == nil {
			ids = append(ids, created.ID)
		}
		if created, err := svc.Create(ctx, tenant, "u", checkoutEntry(), boolp(false)); err == nil {
			ids = append(ids, created.ID)
		}
	}
	for i, id := range ids {
		if i%2 == 0 {
			_ = svc.Replace(ctx, tenant, "u", id, checkoutEntry(), nil)
		}
	}
	_ = svc.Delete(ctx, tenant, ids[0])

	enabled := 0
	key := domain.ScopeKeyOf(checkoutEntry())
	for _, e := range store.entries {
		if e.Enabled && domain.ScopeKeyOf(e) == key {
			enabled++
		}
	}
	if enabled > 1 {
		t.Fatalf("%d enabled entries share one scope key, want at most 1", enabled)
	}
}

func TestAuditTrail_CreateRejectDelete(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if _, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil); err == nil {
		t.Fatalf("duplicate create must be rejected")
	}
	if _, err := svc.Create(ctx, tenant, "u", checkoutEntry(), boolp(false)); err != nil {
		t.Fatalf("disabled duplicate err=%v", err)
	}
	if err := svc.Delete(ctx, tenant, created.ID); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}

	if len(store.entries) != 1 {
		t.Fatalf("have %d entries, want 1 (the disabled one)", len(store.entries))
	}
	wantOps := []domain.Operation{domain.OpCreate, domain.OpCreate, domain.OpDelete}
	if len(store.audits) != len(wantOps) {
		t.Fatalf("have %d audit records, want %d", len(store.audits), len(wantOps))
	}
	for i, rec := range store.audits {
		if rec.Operation != wantOps[i] {
			t.Fatalf("audit[%d].Operation=%s, want %s", i, rec.Operation, wantOps[i])
		}
	}
	last := store.audits[len(store.audits)-1]
	if last.OriginID != created.ID {
		t.Fatalf("delete audit OriginID=%q, want %q", last.OriginID, created.ID)
	}
	if !last.Snapshot.Enabled || last.Snapshot.ID != created.ID {
		t.Fatalf("delete audit must snapshot the pre-delete state; got %+v", last.Snapshot)
	}
}

func TestAuditCompleteness_OriginAndOperationMatch(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, "u", checkoutEntry(), nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	replaced := checkoutEntry()
	replaced.Value = "false"
	if err := svc.Replace(ctx, tenant, "u", created.ID, replaced, nil); err != nil {
		t.Fatalf("Replace() err=%v", err)
	}
	if err := svc.Delete(ctx, tenant, created.ID); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}

	if len(store.audits) != 3 {
		t.Fatalf("have %d audit records, want 3", len(store.audits))
	}
	for i, rec := range store.audits {
		if rec.OriginID != created.ID {
			t.Fatalf("audit[%d].OriginID=%q, want %q", i, rec.OriginID, created.ID)
		}
		if rec.CreatedDate.IsZero() {
			t.Fatalf("audit[%d] missing created date", i)
		}
	}
	if store.audits[1].Snapshot.Value != "false" {
		t.Fatalf("update audit must snapshot post-update state")
	}
}

func TestList_FacetScenario(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, code := range []string{"a", "a", "b", "c", "c"} {
		e := checkoutEntry()
		e.Code = strp(code)
		// Same scope key per code would conflict; vary users instead.
		if code == "a" || code == "c" {
			e.UserID = strp(fmt.Sprintf("u-%d", len(store.entries)))
		}
		if _, err := svc.Create(ctx, tenant, "u", e, nil); err != nil {
			t.Fatalf("Create(%s) err=%v", code, err)
		}
	}

	expr, _, err := query.Parse("configName==other_settings")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	res, err := svc.List(ctx, tenant, query.Request{
		Expr:   expr,
		Facets: []query.FacetRequest{{Field: "code", TopN: 2}},
		Limit:  100,
	})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if res.TotalRecords != 5 {
		t.Fatalf("TotalRecords=%d, want 5", res.TotalRecords)
	}
	table := res.Facets["code"]
	if len(table) != 2 || table[0].Value != "a" || table[0].Count != 2 || table[1].Value != "c" || table[1].Count != 2 {
		t.Fatalf("facets=%+v, want a:2 then c:2", table)
	}
}
