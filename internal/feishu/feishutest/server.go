// Package feishutest provides an in-process fake of the Feishu open API
// endpoints bitmark uses.
package feishutest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Server is a fake open API backed by an in-memory table.
type Server struct {
	*httptest.Server

	// Expire is the lifetime in seconds reported for exchanged tokens.
	Expire int64

	mu      sync.Mutex
	records map[string]map[string]any
	order   []string
	nextID  int
	tokens  map[string]bool
	issued  int
	calls   map[string]int
	secret  string

	internalCode int
	genericCode  int
	searchCode   int
	failWrites   int
	failCode     int
	raw          *rawResponse
}

type rawResponse struct {
	status int
	body   string
}

// Call names reported by Calls.
const (
	CallTokenInternal = "token_internal"
	CallTokenGeneric  = "token_generic"
	CallGetTable      = "get_table"
	CallListFields    = "list_fields"
	CallSearch        = "search"
	CallCreate        = "create"
	CallBatchCreate   = "batch_create"
	CallUpdate        = "update"
	CallDelete        = "delete"
	CallList          = "list"
)

// New starts a fake server. Close it with t.Cleanup(srv.Close).
func New() *Server {
	s := &Server{
		Expire:  7200,
		records: make(map[string]map[string]any),
		tokens:  make(map[string]bool),
		calls:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v3/tenant_access_token/internal", s.handleToken(CallTokenInternal))
	mux.HandleFunc("POST /auth/v3/tenant_access_token/{$}", s.handleToken(CallTokenGeneric))

	const table = "/bitable/v1/apps/{base}/tables/{table}"
	mux.HandleFunc("GET "+table, s.authed(CallGetTable, s.handleGetTable))
	mux.HandleFunc("GET "+table+"/fields", s.authed(CallListFields, s.handleFields))
	mux.HandleFunc("POST "+table+"/records/search", s.authed(CallSearch, s.handleSearch))
	mux.HandleFunc("POST "+table+"/records/batch_create", s.authed(CallBatchCreate, s.handleBatchCreate))
	mux.HandleFunc("POST "+table+"/records", s.authed(CallCreate, s.handleCreate))
	mux.HandleFunc("PUT "+table+"/records/{id}", s.authed(CallUpdate, s.handleUpdate))
	mux.HandleFunc("DELETE "+table+"/records/{id}", s.authed(CallDelete, s.handleDelete))
	mux.HandleFunc("GET "+table+"/records", s.authed(CallList, s.handleList))

	s.Server = httptest.NewServer(mux)
	return s
}

// ─────────────────────────────
// Failure injection
// ─────────────────────────────

// RejectInternalToken makes the internal token endpoint answer with code.
func (s *Server) RejectInternalToken(code int) {
	s.mu.Lock()
	s.internalCode = code
	s.mu.Unlock()
}

// RejectGenericToken makes the generic token endpoint answer with code.
func (s *Server) RejectGenericToken(code int) {
	s.mu.Lock()
	s.genericCode = code
	s.mu.Unlock()
}

// FailSearch makes every search answer with code (0 to restore).
func (s *Server) FailSearch(code int) {
	s.mu.Lock()
	s.searchCode = code
	s.mu.Unlock()
}

// FailWrites makes the next n create/update calls answer with code.
func (s *Server) FailWrites(n, code int) {
	s.mu.Lock()
	s.failWrites = n
	s.failCode = code
	s.mu.Unlock()
}

// RespondRaw makes every table call return body with status. A zero status
// restores normal behaviour.
func (s *Server) RespondRaw(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		s.raw = nil
		return
	}
	s.raw = &rawResponse{status: status, body: body}
}

// RequireSecret makes token exchanges with any other app secret fail with
// code 1002.
func (s *Server) RequireSecret(secret string) {
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
}

// AllowToken accepts tok as if it had been issued, e.g. a long-lived token
// configured directly in settings.
func (s *Server) AllowToken(tok string) {
	s.mu.Lock()
	s.tokens[tok] = true
	s.mu.Unlock()
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]bool)
	s.mu.Unlock()
}

// ─────────────────────────────
// Inspection
// ─────────────────────────────

// Calls returns how many times an endpoint was hit.
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// TotalCalls returns the number of requests of any kind.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Seed inserts a record directly and returns its id.
func (s *Server) Seed(fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(fields)
}

// Record returns a copy of the fields of a record.
func (s *Server) Record(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.records[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out, true
}

// Remove deletes a record as if it was removed from the table UI.
func (s *Server) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

// RecordsWhere returns the ids of records whose field equals value.
func (s *Server) RecordsWhere(field, value string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match(field, value)
}

// Len returns the number of stored records.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ─────────────────────────────
// Handlers
// ─────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCode(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "msg": msg})
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "success", "data": data})
}

func (s *Server) handleToken(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls[name]++

		code := s.internalCode
		if name == CallTokenGeneric {
			code = s.genericCode
		}
		if code != 0 {
			writeCode(w, http.StatusOK, code, "app rejected")
			return
		}

		var req struct {
			AppID     string `json:"app_id"`
			AppSecret string `json:"app_secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppID == "" || req.AppSecret == "" {
			writeCode(w, http.StatusOK, 10003, "invalid param")
			return
		}
		if s.secret != "" && req.AppSecret != s.secret {
			writeCode(w, http.StatusOK, 1002, "invalid app secret")
			return
		}

		s.issued++
		tok := fmt.Sprintf("t-%d", s.issued)
		s.tokens[tok] = true
		writeJSON(w, http.StatusOK, map[string]any{
			"code":                0,
			"msg":                 "ok",
			"tenant_access_token": tok,
			"expire":              s.Expire,
		})
	}
}

// authed checks the bearer token and applies injected raw responses.
func (s *Server) authed(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		raw := s.raw
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		valid := s.tokens[tok]
		s.mu.Unlock()

		if raw != nil {
			w.WriteHeader(raw.status)
			_, _ = w.Write([]byte(raw.body))
			return
		}
		if !valid {
			writeCode(w, http.StatusBadRequest, 99991663, "Invalid access token for authorization.")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"table": map[string]any{
			"table_id": r.PathValue("table"),
			"name":     "Bookmarks",
			"revision": 1,
		},
	})
}

func (s *Server) handleFields(w http.ResponseWriter, _ *http.Request) {
	names := []string{"网站地址", "网站标题", "网站说明", "网站备注", "网站标签", "页面摘要", "创建时间"}
	items := make([]map[string]any, 0, len(names))
	for i, n := range names {
		items = append(items, map[string]any{
			"field_id":   "fld" + strconv.Itoa(i),
			"field_name": n,
			"type":       1,
			"is_primary": i == 0,
		})
	}
	writeData(w, map[string]any{"items": items, "has_more": false, "total": len(items)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter struct {
			Conditions []struct {
				FieldName string   `json:"field_name"`
				Operator  string   `json:"operator"`
				Value     []string `json:"value"`
			} `json:"conditions"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, http.StatusBadRequest, 1009, "bad request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchCode != 0 {
		writeCode(w, http.StatusOK, s.searchCode, "search failed")
		return
	}

	ids := s.sortedIDs()
	for _, c := range req.Filter.Conditions {
		if len(c.Value) == 0 {
			continue
		}
		ids = intersect(ids, s.match(c.FieldName, c.Value[0]))
	}
	writeData(w, map[string]any{"items": s.items(ids), "has_more": false, "total": len(ids)})
}

func (s *Server) decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var req struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, http.StatusBadRequest, 1009, "bad request")
		return nil, false
	}
	return req.Fields, true
}

// writeFailure consumes one injected write failure. Caller holds s.mu.
func (s *Server) writeFailure(w http.ResponseWriter) bool {
	if s.failWrites <= 0 {
		return false
	}
	s.failWrites--
	writeCode(w, http.StatusOK, s.failCode, "injected failure")
	return true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.decodeFields(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure(w) {
		return
	}

	id := s.insert(fields)
	writeData(w, map[string]any{"record": map[string]any{"record_id": id, "fields": fields}})
}

func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, http.StatusBadRequest, 1009, "bad request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(req.Records))
	for _, rec := range req.Records {
		id := s.insert(rec.Fields)
		out = append(out, map[string]any{"record_id": id, "fields": rec.Fields})
	}
	writeData(w, map[string]any{"records": out})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.decodeFields(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure(w) {
		return
	}

	existing, found := s.records[id]
	if !found {
		writeCode(w, http.StatusOK, 1007, "record not found")
		return
	}
	for k, v := range fields {
		existing[k] = v
	}
	writeData(w, map[string]any{"record": map[string]any{"record_id": id, "fields": existing}})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.remove(id) {
		writeCode(w, http.StatusOK, 1007, "record not found")
		return
	}
	writeData(w, map[string]any{"deleted": true, "record_id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if size <= 0 {
		size = 20
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("page_token"))

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedIDs()
	if start > len(ids) {
		start = len(ids)
	}
	end := start + size
	if end > len(ids) {
		end = len(ids)
	}

	data := map[string]any{
		"items":    s.items(ids[start:end]),
		"has_more": end < len(ids),
		"total":    len(ids),
	}
	if end < len(ids) {
		data["page_token"] = strconv.Itoa(end)
	}
	writeData(w, data)
}

// ─────────────────────────────
// Storage helpers (caller holds s.mu)
// ─────────────────────────────

func (s *Server) insert(fields map[string]any) string {
	s.nextID++
	id := fmt.Sprintf("rec%04d", s.nextID)
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.records[id] = copied
	s.order = append(s.order, id)
	return id
}

func (s *Server) remove(id string) bool {
	if _, found := s.records[id]; !found {
		return false
	}
	delete(s.records, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Server) sortedIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Server) match(field, value string) []string {
	var ids []string
	for _, id := range s.order {
		if v, ok := s.records[id][field]; ok && fmt.Sprint(v) == value {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) items(ids []string) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"record_id": id, "fields": s.records[id]})
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, id := range b {
		set[id] = true
	}
	var out []string
	for _, id := range a {
		if set[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
