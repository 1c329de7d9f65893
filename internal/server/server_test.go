package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payforge/console/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGateway is an httptest backend speaking the gateway's envelope protocol.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	data := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":%s}`, body)
	}
	unauthorized := func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"unauthorized","message":"session expired"}}`)
	}
	sessionUser := func(r *http.Request) string {
		cookie, err := r.Cookie("pf_session")
		if err != nil {
			return ""
		}
		switch cookie.Value {
		case "tok-merchant":
			return `{"id":"u1","email":"m@example.com","name":"Merchant","role":"merchant"}`
		case "tok-admin":
			return `{"id":"u2","email":"a@example.com","name":"Admin","role":"admin"}`
		}
		return ""
	}

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		data(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /v1/invoices/inv_1", func(w http.ResponseWriter, r *http.Request) {
		data(w, `{
			"id":"inv_1","orderId":"order-42","storeId":"store_1",
			"fiatAmount":"100","fiatCurrency":"USD","status":"pending",
			"rates":[{"currencyId":"eth","networkId":"ethereum","rate":"2000","payerAmount":"0.05"}],
			"createdAt":"2025-06-01T12:00:00Z"
		}`)
	})
	mux.HandleFunc("GET /v1/invoices/inv_gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"not_found","message":"Invoice not found"}}`)
	})
	mux.HandleFunc("GET /v1/stores/store_1/currencies", func(w http.ResponseWriter, r *http.Request) {
		data(w, `[
			{"id":"sc1","currencyId":"eth","symbol":"ETH","networkId":"ethereum","decimals":18,"minAmount":"1","maxAmount":"10000","isEnabled":true},
			{"id":"sc2","currencyId":"usdt","symbol":"USDT","networkId":"tron","decimals":6,"minAmount":"1","maxAmount":"10000","isEnabled":true},
			{"id":"sc3","currencyId":"btc","symbol":"BTC","networkId":"bitcoin","decimals":8,"minAmount":"1","maxAmount":"10000","isEnabled":false}
		]`)
	})
	mux.HandleFunc("POST /v1/invoices/inv_1/address", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token   string `json:"token"`
			Network string `json:"network"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Network == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"code":"invalid_request","message":"token and network required"}}`)
			return
		}
		exp := time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339)
		data(w, fmt.Sprintf(`{
			"id":"inv_1","orderId":"order-42","storeId":"store_1",
			"fiatAmount":"100","fiatCurrency":"USD","status":"awaiting_payment",
			"cryptoAmount":"0.05","cryptoCurrency":"ETH",
			"paymentAddress":"0xdeadbeef","networkId":%q,"expiresAt":%q,
			"createdAt":"2025-06-01T12:00:00Z"
		}`, req.Network, exp))
	})
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "m@example.com" && req.Password == "secret" {
			data(w, `{"user":{"id":"u1","email":"m@example.com","name":"Merchant","role":"merchant"},"token":"tok-merchant"}`)
			return
		}
		unauthorized(w)
	})
	mux.HandleFunc("POST /v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		data(w, `{"status":"logged_out"}`)
	})
	mux.HandleFunc("GET /v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if u := sessionUser(r); u != "" {
			data(w, u)
			return
		}
		unauthorized(w)
	})
	mux.HandleFunc("GET /v1/stores", func(w http.ResponseWriter, r *http.Request) {
		if sessionUser(r) == "" {
			unauthorized(w)
			return
		}
		data(w, `[{"id":"store_1","name":"Demo Store"}]`)
	})
	mux.HandleFunc("GET /v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		if sessionUser(r) == "" {
			unauthorized(w)
			return
		}
		data(w, `[{"id":"inv_1","orderId":"order-42","storeId":"store_1","fiatAmount":"100","fiatCurrency":"USD","status":"pending","createdAt":"2025-06-01T12:00:00Z"}]`)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(gatewayURL string) *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "development",
		LogLevel:       "error",
		LogFormat:      "text",
		GatewayURL:     gatewayURL,
		GatewayTimeout: 5 * time.Second,
		SessionTTL:     30 * time.Minute,
		SweepInterval:  time.Minute,
		WatchInterval:  time.Minute,
		AllowedOrigins: []string{"*"},
	}
}

// newTestServer creates a server wired to a fake gateway backend.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	gw := fakeGateway(t)
	s, err := New(testConfig(gw.URL))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(s.sessions.CloseAll)
	return s
}

func doJSON(s *Server, method, path, body string, cookie string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "pf_session", Value: cookie})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health/live", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health/ready", "", "")
	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Payment page tests
// ---------------------------------------------------------------------------

func TestPaymentPageServed(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/pay/inv_1", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for payment page, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"inv_1"`) {
		t.Error("Expected invoice id injected into page")
	}
}

func TestPaymentPageRejectsBadInvoiceID(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/pay/bad%20id", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed invoice id, got %d", w.Code)
	}
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)

	// First state call creates the session and lands on currency selection.
	w := doJSON(s, "GET", "/api/pay/inv_1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to parse snapshot: %v", err)
	}
	if snap["step"] != "select_currency" {
		t.Fatalf("Expected select_currency, got %v", snap["step"])
	}
	if n := len(snap["currencies"].([]interface{})); n != 2 {
		t.Errorf("Expected 2 enabled currencies, got %d", n)
	}

	// Selecting ETH binds the locked rate.
	w = doJSON(s, "POST", "/api/pay/inv_1/currency", `{"token":"ETH","network":"ethereum"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snap = map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	rate, ok := snap["rate"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected locked rate in snapshot")
	}
	if rate["payerAmount"] != "0.05" {
		t.Errorf("Expected payerAmount 0.05, got %v", rate["payerAmount"])
	}

	// Generating an address moves to the countdown.
	w = doJSON(s, "POST", "/api/pay/inv_1/address", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snap = map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap["step"] != "awaiting_payment" {
		t.Fatalf("Expected awaiting_payment, got %v (%v)", snap["step"], snap["actionError"])
	}
	inv := snap["invoice"].(map[string]interface{})
	if inv["paymentAddress"] != "0xdeadbeef" {
		t.Errorf("Expected generated address, got %v", inv["paymentAddress"])
	}
	if snap["remainingSeconds"].(float64) <= 0 {
		t.Error("Expected a running countdown")
	}

	// Back returns to selection without re-fetching.
	w = doJSON(s, "POST", "/api/pay/inv_1/back", "", "")
	snap = map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap["step"] != "select_currency" {
		t.Errorf("Expected select_currency after back, got %v", snap["step"])
	}
}

func TestPaymentUnknownInvoiceIsErrorStep(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/api/pay/inv_gone", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var snap map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap["step"] != "error" {
		t.Errorf("Expected error step, got %v", snap["step"])
	}
	if snap["errorMessage"] != "Invoice not found" {
		t.Errorf("Expected backend message surfaced, got %v", snap["errorMessage"])
	}
}

func TestPaymentActionWithoutSession(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "POST", "/api/pay/inv_1/currency", `{"token":"ETH","network":"ethereum"}`, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before the page loads state, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Auth + console tests
// ---------------------------------------------------------------------------

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "POST", "/login", `{"email":"m@example.com","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad credentials, got %d", w.Code)
	}

	w = doJSON(s, "POST", "/login", `{"email":"m@example.com","password":"secret"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	setCookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(setCookie, "pf_session=tok-merchant") {
		t.Errorf("Expected session cookie, got %q", setCookie)
	}
}

func TestConsoleRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/console", "", "")
	if w.Code != http.StatusFound {
		t.Errorf("Expected redirect for anonymous page visit, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected /login redirect, got %q", loc)
	}

	w = doJSON(s, "GET", "/console/api/stores", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous API call, got %d", w.Code)
	}
}

func TestConsoleAPIWithSession(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/console/api/stores", "", "tok-merchant")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Demo Store") {
		t.Error("Expected store list in response")
	}

	w = doJSON(s, "GET", "/console/api/invoices?storeId=store_1", "", "tok-merchant")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "inv_1") {
		t.Error("Expected invoice list in response")
	}
}

func TestAdminRequiresRole(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/admin/api/invoices", "", "tok-merchant")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for merchant on admin API, got %d", w.Code)
	}

	w = doJSON(s, "GET", "/admin/api/invoices", "", "tok-admin")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for admin, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/pay/:invoiceId",
		"GET:/api/pay/:invoiceId",
		"POST:/api/pay/:invoiceId/network",
		"POST:/api/pay/:invoiceId/currency",
		"POST:/api/pay/:invoiceId/address",
		"POST:/api/pay/:invoiceId/back",
		"POST:/api/pay/:invoiceId/reset",
		"GET:/ws/:invoiceId",
		"POST:/login",
		"POST:/logout",
		"GET:/console",
		"GET:/admin",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/nonexistent", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
