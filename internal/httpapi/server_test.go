package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/catalog"
	"fleetd/internal/entityset"
	"fleetd/internal/fleet"
	"fleetd/internal/hub"
	"fleetd/pkg/types"
)

type mockService struct {
	ready  bool
	status types.StatusResponse
	hub    *hub.Hub
	cat    *catalog.Catalog
	admins map[string]bool
	err    error
	reply  types.QueryNodesResponse
	cmds   []any
}

func newMock() *mockService {
	h := hub.New(zerolog.Nop())
	return &mockService{
		ready:  true,
		hub:    h,
		cat:    catalog.New(catalog.Config{Hub: h, Repositories: catalog.MemoryRepositories(), Logger: zerolog.Nop()}),
		admins: map[string]bool{"root": true},
	}
}

func (m *mockService) Ready() bool                  { return m.ready }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Catalog() *catalog.Catalog    { return m.cat }
func (m *mockService) Handlers() []types.HandlerInfo {
	return []types.HandlerInfo{{ID: "h1", Kind: "command", Message: "fleet.RemoveNodeCommand"}}
}
func (m *mockService) Caller(login string) *fleet.Caller {
	return &fleet.Caller{LoginName: login, IsAdmin: m.admins[login]}
}
func (m *mockService) Dispatch(ctx context.Context, cmd any) error {
	m.cmds = append(m.cmds, cmd)
	if m.err != nil {
		return m.err
	}
	if q, ok := cmd.(fleet.QueryNodesCommand); ok {
		*q.Reply = m.reply
		return nil
	}
	if m.hub.HasHandler(cmd) {
		return m.hub.ExecuteWait(ctx, cmd)
	}
	return nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func do(t *testing.T, h http.Handler, method, path, login, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if login != "" {
		req.Header.Set(loginHeader, login)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusHandler(t *testing.T) {
	svc := newMock()
	svc.status = types.StatusResponse{Ready: true, Nodes: types.NodeCount{Total: 3}}
	w := do(t, NewMux(svc), http.MethodGet, "/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Nodes.Total != 3 || !body.Ready {
		t.Fatalf("unexpected body: %+v", body)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestReadyz(t *testing.T) {
	svc := newMock()
	w := do(t, NewMux(svc), http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := newMock()
	svc.ready = false
	w := do(t, NewMux(svc), http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestDebugHandlers(t *testing.T) {
	w := do(t, NewMux(newMock()), http.MethodGet, "/debug/handlers", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "fleet.RemoveNodeCommand") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestQueryNodes_RequiresLogin(t *testing.T) {
	svc := newMock()
	w := do(t, NewMux(svc), http.MethodPost, "/api/nodes/query", "", `{}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
	if len(svc.cmds) != 0 {
		t.Fatalf("command dispatched without login")
	}
}

func TestQueryNodes_PassesCallerAndRequest(t *testing.T) {
	svc := newMock()
	svc.reply = types.QueryNodesResponse{Nodes: []types.Node{{ID: "a"}}, Total: 1, CoinSnapshots: []types.CoinSnapshot{}}
	w := do(t, NewMux(svc), http.MethodPost, "/api/nodes/query", "alice", `{"coin":"ETH","page_index":1,"page_size":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	cmd := svc.cmds[0].(fleet.QueryNodesCommand)
	if cmd.Caller.LoginName != "alice" || cmd.Caller.IsAdmin || cmd.Request.Coin != "ETH" || cmd.Request.PageSize != 10 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	var body types.QueryNodesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Total != 1 || body.Nodes[0].ID != "a" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestQueryNodes_EmptyBodyMeansNoFilter(t *testing.T) {
	svc := newMock()
	w := do(t, NewMux(svc), http.MethodPost, "/api/nodes/query", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if cmd := svc.cmds[0].(fleet.QueryNodesCommand); cmd.Request != (types.QueryNodesRequest{}) {
		t.Fatalf("expected zero request, got %+v", cmd.Request)
	}
}

func TestBadJSON(t *testing.T) {
	w := do(t, NewMux(newMock()), http.MethodPost, "/api/nodes/report", "", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != http.StatusBadRequest {
		t.Fatalf("error payload: %+v err=%v", body, err)
	}
}

func TestBodyTooLarge(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(16)
	w := do(t, NewMux(newMock()), http.MethodPost, "/api/nodes/report", "", `{"miner_name":"`+strings.Repeat("x", 64)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReportNode_FillsRemoteIP(t *testing.T) {
	svc := newMock()
	clientID := uuid.New()
	w := do(t, NewMux(svc), http.MethodPost, "/api/nodes/report", "", fmt.Sprintf(`{"client_id":%q,"miner_name":"rig"}`, clientID))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	cmd := svc.cmds[0].(fleet.ReportNodeCommand)
	// httptest requests come from 192.0.2.1:1234
	if cmd.Node.ClientID != clientID || cmd.Node.MinerIP != "192.0.2.1" {
		t.Fatalf("unexpected report: %+v", cmd.Node)
	}
}

func TestNodeWrites_RequireAdmin(t *testing.T) {
	svc := newMock()
	mux := NewMux(svc)
	if w := do(t, mux, http.MethodDelete, "/api/nodes/a", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodDelete, "/api/nodes/a", "alice", ""); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin delete status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodDelete, "/api/nodes/a", "root", ""); w.Code != http.StatusNoContent {
		t.Fatalf("admin delete status=%d", w.Code)
	}
	if len(svc.cmds) != 1 || svc.cmds[0].(fleet.RemoveNodeCommand).ID != "a" {
		t.Fatalf("commands %+v", svc.cmds)
	}
}

func TestUpdateNodeField(t *testing.T) {
	svc := newMock()
	mux := NewMux(svc)
	w := do(t, mux, http.MethodPatch, "/api/nodes/a", "root", `{"field":"MinerName","value":"rig-2"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	cmd := svc.cmds[0].(fleet.UpdateNodeFieldCommand)
	if cmd.ID != "a" || cmd.Field != "MinerName" || cmd.Value != "rig-2" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	w = do(t, mux, http.MethodPatch, "/api/nodes/a", "root", `{"field":"NoSuchField","value":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d", w.Code)
	}
	if len(svc.cmds) != 1 {
		t.Fatalf("unknown field was dispatched")
	}
}

func TestUpdateNodesField(t *testing.T) {
	svc := newMock()
	w := do(t, NewMux(svc), http.MethodPatch, "/api/nodes", "root", `{"field":"IsMining","values":{"a":true,"b":false}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	cmd := svc.cmds[0].(fleet.UpdateNodeFieldsCommand)
	if cmd.Field != "IsMining" || len(cmd.Values) != 2 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", fleet.ErrCoerce), http.StatusBadRequest},
		{fmt.Errorf("%w: y", entityset.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: z", entityset.ErrInUse), http.StatusConflict},
		{fmt.Errorf("%w: q", hub.ErrUnhandledCommand), http.StatusNotImplemented},
		{mockHTTPError{msg: "slow down", code: http.StatusTooManyRequests}, http.StatusTooManyRequests},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := newMock()
		svc.err = tc.err
		w := do(t, NewMux(svc), http.MethodDelete, "/api/nodes/a", "root", "")
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestEntityRoutes_CRUD(t *testing.T) {
	svc := newMock()
	mux := NewMux(svc)
	id := uuid.New()

	body := fmt.Sprintf(`{"id":%q,"name":"farm-a","sort_number":1}`, id)
	if w := do(t, mux, http.MethodPost, "/api/groups", "alice", body); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin add status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodPost, "/api/groups", "root", body); w.Code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", w.Code, w.Body.String())
	}

	w := do(t, mux, http.MethodGet, "/api/groups", "", "")
	var list struct {
		Items []catalog.Group `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Items) != 1 || list.Items[0].Name != "farm-a" {
		t.Fatalf("list=%+v err=%v", list, err)
	}

	upd := fmt.Sprintf(`{"id":%q,"name":"farm-b","sort_number":2}`, id)
	if w := do(t, mux, http.MethodPut, "/api/groups/"+id.String(), "root", upd); w.Code != http.StatusNoContent {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	w = do(t, mux, http.MethodGet, "/api/groups/"+id.String(), "", "")
	var g catalog.Group
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil || g.Name != "farm-b" {
		t.Fatalf("get=%+v err=%v", g, err)
	}

	if w := do(t, mux, http.MethodPut, "/api/groups/"+uuid.NewString(), "root", upd); w.Code != http.StatusBadRequest {
		t.Fatalf("mismatched id status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodDelete, "/api/groups/"+id.String(), "root", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodGet, "/api/groups/"+id.String(), "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", w.Code)
	}
}

func TestEntityRoutes_Validation(t *testing.T) {
	mux := NewMux(newMock())
	if w := do(t, mux, http.MethodPost, "/api/coins", "root", fmt.Sprintf(`{"id":%q,"code":""}`, uuid.New())); w.Code != http.StatusBadRequest {
		t.Fatalf("empty code status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodGet, "/api/coins/not-a-uuid", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", w.Code)
	}
	w := do(t, mux, http.MethodGet, "/api/works", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"items":[]`) {
		t.Fatalf("empty list status=%d body=%s", w.Code, w.Body.String())
	}
}
