package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"enviroplan/internal/authz"
	"enviroplan/internal/config"
	"enviroplan/internal/db"
	"enviroplan/internal/engine"
	"enviroplan/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("site-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg, nil)
	if err := e.SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func token(t *testing.T, username string, role authz.Role) string {
	t.Helper()
	tok, err := IssueToken(testSecret, username, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func asUser(t *testing.T, username string, role authz.Role) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token(t, username, role)}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func planActivity(t *testing.T, srv *testServer) ActivityResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/activities", map[string]any{
		"date":       "2026-08-29",
		"process_id": "P1",
		"task_id":    "T1",
	}, asUser(t, "ana", authz.RoleAdmin))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create activity status %d: %s", res.StatusCode, string(data))
	}
	var a ActivityResponse
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatalf("unmarshal activity: %v", err)
	}
	return a
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/activities", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	// health stays open
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestEvidenceAuditLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	a := planActivity(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/activities/"+a.ID+"/evidence", map[string]any{
		"payload": "photo-bytes",
	}, asUser(t, "omar", authz.RoleOperator))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("evidence status %d: %s", res.StatusCode, string(data))
	}
	var withEvidence ActivityResponse
	_ = json.Unmarshal(data, &withEvidence)
	if withEvidence.Status != "executed" {
		t.Fatalf("status after evidence = %s, want executed", withEvidence.Status)
	}
	if withEvidence.Audit == nil || string(withEvidence.Audit.Status) != "pending" {
		t.Fatalf("audit after evidence = %+v", withEvidence.Audit)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/activities/"+a.ID+"/audit", map[string]any{
		"status":  "approved",
		"comment": "all clear",
	}, asUser(t, "sofia", authz.RoleSupervisor))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit status %d: %s", res.StatusCode, string(data))
	}
	var audited ActivityResponse
	_ = json.Unmarshal(data, &audited)
	if audited.Audit == nil || string(audited.Audit.Status) != "approved" {
		t.Fatalf("audit = %+v", audited.Audit)
	}
	if audited.Audit.AuditedBy == nil || *audited.Audit.AuditedBy != "sofia" {
		t.Fatalf("audited_by = %v", audited.Audit.AuditedBy)
	}

	// re-upload wipes the approval
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/activities/"+a.ID+"/evidence", map[string]any{
		"payload": "photo-v2",
	}, asUser(t, "omar", authz.RoleOperator))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("re-upload status %d: %s", res.StatusCode, string(data))
	}
	var reset ActivityResponse
	_ = json.Unmarshal(data, &reset)
	if reset.Audit == nil || string(reset.Audit.Status) != "pending" || reset.Audit.AuditedBy != nil {
		t.Fatalf("audit after re-upload = %+v", reset.Audit)
	}
}

func TestOperatorForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	a := planActivity(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/activities/"+a.ID, nil,
		asUser(t, "omar", authz.RoleOperator))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("operator delete status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "forbidden" {
		t.Fatalf("error code = %s", envelope.Error.Code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/activities", map[string]any{
		"date": "2026-08-29", "process_id": "P1", "task_id": "T1",
	}, asUser(t, "omar", authz.RoleOperator))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("operator create status %d: %s", res.StatusCode, string(data))
	}

	// admin delete succeeds
	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/activities/"+a.ID, nil,
		asUser(t, "ana", authz.RoleAdmin))
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete status %d: %s", res.StatusCode, string(data))
	}
}

func TestSupervisorCatalogForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/catalog/processes", map[string]any{
		"name": "Recycling",
	}, asUser(t, "sofia", authz.RoleSupervisor))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("supervisor catalog edit status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/catalog/processes", map[string]any{
		"name": "Recycling",
	}, asUser(t, "ana", authz.RoleAdmin))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("admin catalog edit status %d: %s", res.StatusCode, string(data))
	}
}

func TestReportEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := asUser(t, "ana", authz.RoleAdmin)

	// empty dataset: compliance is null
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/report", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report status %d: %s", res.StatusCode, string(data))
	}
	var empty ReportResponse
	if err := json.Unmarshal(data, &empty); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if empty.Compliance != nil {
		t.Fatalf("empty compliance = %v, want null", *empty.Compliance)
	}

	// 3 of 4 executed -> 75.0
	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		ids = append(ids, planActivity(t, srv).ID)
	}
	for _, id := range ids[:3] {
		res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/activities/"+id+"/status", map[string]any{
			"status": "executed",
		}, headers)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("set executed: %d %s", res.StatusCode, string(body))
		}
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/report", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report status %d: %s", res.StatusCode, string(data))
	}
	var rep ReportResponse
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if rep.Compliance == nil || *rep.Compliance != 75.0 {
		t.Fatalf("compliance = %v, want 75.0", rep.Compliance)
	}
	foundEmpty := false
	for _, pr := range rep.PerProcess {
		if pr.ProcessID == "P2" {
			foundEmpty = true
			if pr.Rate != 0 {
				t.Fatalf("empty process rate = %v, want 0", pr.Rate)
			}
		}
	}
	if !foundEmpty {
		t.Fatalf("per-process breakdown missing P2: %+v", rep.PerProcess)
	}
}

func TestDevLoginIssuesUsableToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"username": "ana",
		"role":     "admin",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/activities", nil,
		map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("token rejected: %d %s", res.StatusCode, string(data))
	}
}

func TestMetricsEndpointOpen(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d: %s", res.StatusCode, string(data))
	}
	if !bytes.Contains(data, []byte("enviroplan_")) {
		t.Fatalf("metrics output missing app counters")
	}
}
