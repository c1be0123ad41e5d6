package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/confkit-labs/confkit-go/internal/auditarchive"
	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/platform/tenant"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
	"github.com/confkit-labs/confkit-go/internal/service/entries"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

type configStoreAPI struct {
	logger  *slog.Logger
	svc     *entries.Service
	archive *auditarchive.Exporter
}

func newConfigStoreAPI(logger *slog.Logger, svc *entries.Service, archive *auditarchive.Exporter) *configStoreAPI {
	return &configStoreAPI{
		logger:  logger,
		svc:     svc,
		archive: archive,
	}
}

func (api *configStoreAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /configurations/entries", api.handleListEntries)
	mux.HandleFunc("POST /configurations/entries", api.handleCreateEntry)
	mux.HandleFunc("GET /configurations/entries/{entry_id}", api.handleGetEntry)
	mux.HandleFunc("PUT /configurations/entries/{entry_id}", api.handleReplaceEntry)
	mux.HandleFunc("DELETE /configurations/entries/{entry_id}", api.handleDeleteEntry)
	mux.HandleFunc("GET /configurations/audit", api.handleListAudit)
	mux.HandleFunc("POST /configurations/audit/export", api.handleExportAudit)
}

// entryRequest is the client-writable slice of an entry. Metadata is
// accepted and discarded so clients can echo a fetched entry back on PUT.
type entryRequest struct {
	ID          string          `json:"id"`
	Module      string          `json:"module"`
	ConfigName  string          `json:"configName"`
	Code        *string         `json:"code"`
	Description string          `json:"description"`
	UserID      *string         `json:"userId"`
	Value       string          `json:"value"`
	Enabled     *bool           `json:"enabled"`
	Default     bool            `json:"default"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (req entryRequest) toEntry() domain.ConfigurationEntry {
	return domain.ConfigurationEntry{
		ID:          strings.TrimSpace(req.ID),
		Module:      req.Module,
		ConfigName:  req.ConfigName,
		Code:        req.Code,
		Description: req.Description,
		UserID:      req.UserID,
		Value:       req.Value,
		Default:     req.Default,
	}
}

type facetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type entryListResponse struct {
	Configs      []domain.ConfigurationEntry `json:"configs"`
	TotalRecords int                         `json:"totalRecords"`
	Facets       map[string][]facetValue     `json:"facets,omitempty"`
}

type auditListResponse struct {
	Records      []domain.AuditRecord    `json:"auditRecords"`
	TotalRecords int                     `json:"totalRecords"`
	Facets       map[string][]facetValue `json:"facets,omitempty"`
}

func (api *configStoreAPI) handleListEntries(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	req, err := buildQueryRequest(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	result, err := api.svc.List(r.Context(), tenantID, req)
	if err != nil {
		api.writeFailure(w, r, err)
		return
	}

	configs := result.Entries
	if configs == nil {
		configs = []domain.ConfigurationEntry{}
	}
	api.writeJSON(w, http.StatusOK, entryListResponse{
		Configs:      configs,
		TotalRecords: result.TotalRecords,
		Facets:       facetTables(result.Facets),
	})
}

func (api *configStoreAPI) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	actor := tenant.UserFromContext(r.Context())
	created, err := api.svc.Create(r.Context(), tenantID, actor, req.toEntry(), req.Enabled)
	if err != nil {
		api.writeFailure(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, created)
}

func (api *configStoreAPI) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	entry, err := api.svc.Get(r.Context(), tenantID, r.PathValue("entry_id"))
	if err != nil {
		api.writeFailure(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, entry)
}

func (api *configStoreAPI) handleReplaceEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	id := r.PathValue("entry_id")
	if req.ID != "" && req.ID != id {
		api.writeError(w, r, http.StatusBadRequest, "id_mismatch", "body id does not match path id")
		return
	}

	actor := tenant.UserFromContext(r.Context())
	if err := api.svc.Replace(r.Context(), tenantID, actor, id, req.toEntry(), req.Enabled); err != nil {
		api.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *configStoreAPI) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	if err := api.svc.Delete(r.Context(), tenantID, r.PathValue("entry_id")); err != nil {
		api.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *configStoreAPI) handleListAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	req, err := buildQueryRequest(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	result, err := api.svc.ListAudit(r.Context(), tenantID, req)
	if err != nil {
		api.writeFailure(w, r, err)
		return
	}

	records := result.Records
	if records == nil {
		records = []domain.AuditRecord{}
	}
	api.writeJSON(w, http.StatusOK, auditListResponse{
		Records:      records,
		TotalRecords: result.TotalRecords,
		Facets:       facetTables(result.Facets),
	})
}

func (api *configStoreAPI) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "missing_tenant", "tenant is required")
		return
	}

	if api.archive == nil {
		api.writeError(w, r, http.StatusNotImplemented, "archive_not_configured", "audit archive is not configured")
		return
	}

	result, err := api.archive.Export(r.Context(), tenantID)
	if err != nil {
		api.writeFailure(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

// buildQueryRequest parses the list-call query string: query, facets,
// offset, limit. An explicit non-positive limit is rejected rather than
// silently bumped to 1.
func buildQueryRequest(r *http.Request) (query.Request, error) {
	limit := parseIntQuery(r, "limit", defaultPageLimit)
	if limit < 1 {
		return query.Request{}, errors.New("limit must be a positive integer")
	}
	req := query.Request{
		Offset: clampInt(parseIntQuery(r, "offset", 0), 0, 1<<30),
		Limit:  clampInt(limit, 1, maxPageLimit),
	}

	expr, sortSpec, err := query.Parse(r.URL.Query().Get("query"))
	if err != nil {
		return query.Request{}, err
	}
	req.Expr = expr
	req.Sort = sortSpec

	if facetParams := r.URL.Query()["facets"]; len(facetParams) > 0 {
		facets, err := query.ParseFacets(facetParams)
		if err != nil {
			return query.Request{}, err
		}
		req.Facets = facets
	}
	return req, nil
}

func facetTables(in map[string][]query.FacetCount) map[string][]facetValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]facetValue, len(in))
	for field, table := range in {
		values := make([]facetValue, 0, len(table))
		for _, fc := range table {
			values = append(values, facetValue{Value: fc.Value, Count: fc.Count})
		}
		out[field] = values
	}
	return out
}

// writeFailure maps service errors onto the status taxonomy: entity and
// scope validation are 422, unknown ids are 404, the rest is 500.
func (api *configStoreAPI) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		api.writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", vErr.Error())
		return
	}
	var pErr *query.ParseError
	if errors.As(err, &pErr) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_query", pErr.Error())
		return
	}
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "not_found", "configuration entry not found")
		return
	}
	api.logger.Error("request failed", "error", err, "path", r.URL.Path)
	api.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
}

func (api *configStoreAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *configStoreAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"message":    message,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return errors.New("multiple JSON values")
	}
	return nil
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
