package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"blocklytics/portal/internal/pricing"
	"blocklytics/portal/internal/session"
	"blocklytics/portal/internal/wizard"
	"blocklytics/portal/pkg/auth"
	"blocklytics/portal/pkg/clients/coreapi"
	"blocklytics/portal/pkg/logging"
	"blocklytics/portal/pkg/testutil"
)

// fakeCoreAPI is a scriptable stand-in for the upstream core API.
type fakeCoreAPI struct {
	mu       sync.Mutex
	hits     map[string]int
	handlers map[string]http.HandlerFunc
}

func newFakeCoreAPI() *fakeCoreAPI {
	return &fakeCoreAPI{
		hits:     make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
}

func (f *fakeCoreAPI) handle(method, path string, h http.HandlerFunc) {
	f.handlers[method+" "+path] = h
}

func (f *fakeCoreAPI) respond(method, path, body string) {
	f.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func (f *fakeCoreAPI) hitCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

func (f *fakeCoreAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.hits[key]++
	handler, ok := f.handlers[key]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

type portalFixture struct {
	router   *gin.Engine
	upstream *fakeCoreAPI
	token    string
}

func setupPortal(t *testing.T, idleTimeout time.Duration) *portalFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := newFakeCoreAPI()
	upstream.respond("GET", "/api/users/preferences/security", `{"auto_session_timeout":false}`)

	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	logger := logging.NewLogger()
	client := coreapi.NewClient(coreapi.Config{BaseURL: server.URL, Logger: logger})

	wizardMgr := wizard.NewManager(wizard.Config{
		Client:     client,
		GatewayURL: "https://ht-payway.com",
		Logger:     logger,
	})
	idleGuard := session.NewGuard(session.Config{
		IdleTimeout: idleTimeout,
		Preferences: client,
		Logger:      logger,
	})

	Init(client, wizardMgr, idleGuard, pricing.DefaultTable(), logger, nil)

	router := gin.New()
	router.POST("/auth/login", Login)
	router.GET("/payment/success", PaymentSuccess)
	router.POST("/payment/timeout", PaymentTimeout)

	protected := router.Group("")
	protected.Use(auth.SessionAuthMiddleware(nil))
	protected.Use(IdleTimeoutMiddleware())
	{
		protected.POST("/auth/logout", Logout)
		protected.GET("/credit-balance", GetCreditBalance)
		protected.GET("/orders", ListOrders)
		protected.GET("/wizard", GetWizard)
		protected.POST("/wizard/quantity", WizardQuantity)
		protected.POST("/wizard/confirm", WizardConfirm)
		protected.POST("/wizard/reset", WizardReset)
		protected.GET("/reconciliations", ListReconciliations)
		protected.GET("/notifications", ListNotifications)
		protected.GET("/session/status", SessionStatus)
		protected.POST("/session/ping", SessionPing)
	}

	jwtHelper := testutil.NewJWTTestHelper()
	token, err := jwtHelper.GenerateValidJWT("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	return &portalFixture{router: router, upstream: upstream, token: token}
}

func (f *portalFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	f := setupPortal(t, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/credit-balance", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestGetCreditBalance(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("GET", "/api/credit-balance", `{"credits":123456}`)

	w := f.request(t, http.MethodGet, "/credit-balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Credits int64 `json:"credits"`
	}
	decodeBody(t, w, &resp)
	if resp.Credits != 123456 {
		t.Errorf("expected 123456 credits, got %d", resp.Credits)
	}
}

func TestListOrdersCaching(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("GET", "/api/orders", `[{"id":"o1","order_number":"2025-0001","status":"paid"}]`)

	for i := 0; i < 3; i++ {
		if w := f.request(t, http.MethodGet, "/orders", nil); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
	if hits := f.upstream.hitCount("GET", "/api/orders"); hits != 1 {
		t.Errorf("expected 1 upstream hit with caching, got %d", hits)
	}

	if w := f.request(t, http.MethodGet, "/orders?refresh=true", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if hits := f.upstream.hitCount("GET", "/api/orders"); hits != 2 {
		t.Errorf("expected refresh to bypass cache, got %d hits", hits)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("GET", "/api/orders", `[
		{"id":"old","order_number":"2025-0001","status":"paid","created_at":"2025-09-01T10:00:00Z"},
		{"id":"new","order_number":"2025-0002","status":"pending","created_at":"2025-10-01T10:00:00Z"}
	]`)

	w := f.request(t, http.MethodGet, "/orders", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Orders []struct {
			ID string `json:"id"`
		} `json:"orders"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Orders) != 2 || resp.Orders[0].ID != "new" {
		t.Errorf("expected newest order first, got %+v", resp.Orders)
	}
}

func TestWizardFullFlow(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("POST", "/api/orders/preview",
		`{"apiCalls":1000000,"unitPrice":"0.00021","subtotal":"210.00","taxPercentage":"25","total":"262.50","btc":"0.00291000"}`)
	f.upstream.respond("POST", "/api/orders", `{"order_id":"ord-1","encrypted_key":"k+1=="}`)

	w := f.request(t, http.MethodPost, "/wizard/quantity", map[string]string{"quantity": "1.000.000"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var state wizardResponse
	decodeBody(t, w, &state)
	if state.Step != wizard.StepReview {
		t.Errorf("expected review step, got %s", state.Step)
	}
	if state.Preview == nil || state.Preview.TotalEur.String() != "262.5" {
		t.Errorf("unexpected preview: %+v", state.Preview)
	}

	w = f.request(t, http.MethodPost, "/wizard/confirm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &state)
	if state.Step != wizard.StepRedirecting {
		t.Errorf("expected redirecting step, got %s", state.Step)
	}
	if state.GatewayURL != "https://ht-payway.com/?key=k%2B1%3D%3D" {
		t.Errorf("unexpected gateway URL %q", state.GatewayURL)
	}
}

func TestWizardPreviewErrorSurfacesUpstreamMessage(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.handle("POST", "/api/orders/preview", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"quantity exceeds monthly limit"}`))
	})

	w := f.request(t, http.MethodPost, "/wizard/quantity", map[string]string{"quantity": "1.000.000"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp struct {
		Error string         `json:"error"`
		State wizardResponse `json:"state"`
	}
	decodeBody(t, w, &resp)
	if resp.Error != "quantity exceeds monthly limit" {
		t.Errorf("expected upstream message verbatim, got %q", resp.Error)
	}
	if resp.State.Step != wizard.StepQuantity {
		t.Errorf("expected quantity step kept, got %s", resp.State.Step)
	}
	if resp.State.Quantity != 1000000 {
		t.Errorf("expected quantity retained, got %d", resp.State.Quantity)
	}
}

func TestReconciliationCreditAnnotation(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("GET", "/api/reconciliations", `[
		{"id":"r1","month":"2025-10","total_difference_eur":"47.50","status":"credited"},
		{"id":"r2","month":"2025-11","total_difference_eur":"52.50","status":"credited"},
		{"id":"r3","month":"2025-11","total_difference_eur":"-12.30","status":"payment_required"}
	]`)

	w := f.request(t, http.MethodGet, "/reconciliations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp []struct {
		ID           string `json:"id"`
		Credits      int64  `json:"credits"`
		AmountDueEur string `json:"amount_due_eur"`
	}
	decodeBody(t, w, &resp)
	if len(resp) != 3 {
		t.Fatalf("expected 3 reconciliations, got %d", len(resp))
	}
	if resp[0].Credits != 200 {
		t.Errorf("October overpayment of 47.50 should convert to 200 credits, got %d", resp[0].Credits)
	}
	if resp[1].Credits != 200 {
		t.Errorf("November overpayment of 52.50 should convert to 200 credits, got %d", resp[1].Credits)
	}
	if resp[2].Credits != 0 {
		t.Errorf("underpayment must yield 0 credits, got %d", resp[2].Credits)
	}
	if resp[2].AmountDueEur != "12.3" {
		t.Errorf("expected amount due 12.3, got %s", resp[2].AmountDueEur)
	}
}

func TestNotificationArchiveFilter(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("GET", "/api/notifications", `[
		{"id":"n1","archived":false},
		{"id":"n2","archived":true}
	]`)

	w := f.request(t, http.MethodGet, "/notifications?archived=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp []struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &resp)
	if len(resp) != 1 || resp[0].ID != "n2" {
		t.Errorf("expected only archived notification, got %+v", resp)
	}
}

func TestIdleTimeoutLogsOut(t *testing.T) {
	f := setupPortal(t, 30*time.Millisecond)
	f.upstream.respond("GET", "/api/users/preferences/security", `{"auto_session_timeout":true}`)
	f.upstream.respond("GET", "/api/credit-balance", `{"credits":1}`)

	if w := f.request(t, http.MethodPost, "/session/ping", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 ping, got %d", w.Code)
	}

	time.Sleep(60 * time.Millisecond)

	w := f.request(t, http.MethodGet, "/credit-balance", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after idling past the cutoff, got %d", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &resp)
	if resp.Error != "session expired" {
		t.Errorf("expected session expired, got %q", resp.Error)
	}
}

func TestSessionStatusDisabledByPreference(t *testing.T) {
	f := setupPortal(t, time.Hour)

	w := f.request(t, http.MethodGet, "/session/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp sessionStatusResponse
	decodeBody(t, w, &resp)
	if resp.Enabled {
		t.Error("expected idle timeout disabled when the preference is off")
	}
	if resp.TokenExpiresAt == nil {
		t.Error("expected token expiry reported")
	}
}

func TestPaymentSuccessCallback(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("GET", "/payment/success", `{"message":"ok"}`)

	req := httptest.NewRequest(http.MethodGet, "/payment/success?key=abc", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if hits := f.upstream.hitCount("GET", "/payment/success"); hits != 1 {
		t.Errorf("expected payment confirmation forwarded upstream, got %d hits", hits)
	}
}

func TestPaymentCallbackRequiresKey(t *testing.T) {
	f := setupPortal(t, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/payment/success", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without key, got %d", w.Code)
	}
}

func TestLogoutResetsWizard(t *testing.T) {
	f := setupPortal(t, time.Hour)
	f.upstream.respond("POST", "/api/orders/preview",
		`{"apiCalls":1000,"unitPrice":"0.00021","subtotal":"0.21","taxPercentage":"25","total":"0.26","btc":"0.00000300"}`)

	if w := f.request(t, http.MethodPost, "/wizard/quantity", map[string]string{"quantity": "1000"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := f.request(t, http.MethodPost, "/auth/logout", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 logout, got %d", w.Code)
	}

	w := f.request(t, http.MethodGet, "/wizard", nil)
	var state wizardResponse
	decodeBody(t, w, &state)
	if state.Step != wizard.StepQuantity || state.Quantity != 0 {
		t.Errorf("expected fresh wizard after logout, got %+v", state)
	}
}
