package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-call-system/internal/audit"
	"payment-call-system/internal/auth"
	"payment-call-system/internal/calls"
	"payment-call-system/internal/config"
	"payment-call-system/internal/funding"
	"payment-call-system/internal/payments"
	"payment-call-system/internal/pricing"
	"payment-call-system/internal/rbac"
	"payment-call-system/internal/reporting"
	"payment-call-system/internal/users"
	"payment-call-system/internal/wallet"

	"github.com/gin-gonic/gin"
)

const webhookSecret = "sk_test"

type testAPI struct {
	r      *gin.Engine
	h      Handlers
	audits *audit.MemoryRepo
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	ledger := wallet.NewService(wallet.NewMemoryStore(), "NGN", 3)
	verifier, err := payments.NewHMACVerifier(webhookSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	audits := audit.NewMemoryRepo()
	auditSvc := audit.NewService(audits)

	orch := funding.NewOrchestrator(ledger, payments.NewMonnifyProvider(config.MonnifyConfig{
		CheckoutBaseURL: "https://checkout.example.com",
		AccountNumber:   "7012345678",
	}), verifier, 24*time.Hour)
	orch.SetAuditor(auditSvc)

	plan := pricing.DefaultPlan()
	callSvc := calls.NewService(calls.NewMemoryStore(), ledger, plan)
	callSvc.SetAuditor(auditSvc)

	h := Handlers{
		Auth:        mgr,
		Users:       users.NewService(users.NewMemoryRepo()),
		AdminEmails: []string{"admin@example.com"},
		Wallet:      ledger,
		Funding:     orch,
		Calls:       callSvc,
		Pricing: pricing.NewService(pricing.NewMemoryRepo(pricing.Rate{
			ID: "default", Currency: "NGN", RatePerMinuteMinor: 50, Status: pricing.RateStatusActive,
		}), plan, "NGN"),
		Reporting: reporting.NewService(ledger, callSvc),
		Audit:     auditSvc,
	}

	r := gin.New()
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/payments/monnify/webhook", h.MonnifyWebhook)

	v1 := r.Group("/v1", auth.RequireAccessToken(mgr))
	v1.GET("/wallet/balance", h.GetBalance)
	v1.POST("/wallet/fund", h.Fund)
	v1.GET("/wallet/transactions", h.ListTransactions)
	v1.GET("/wallet/summary", h.Summary)
	v1.POST("/calls/initiate", h.InitiateCall)
	v1.POST("/calls/:id/end", h.EndCall)
	v1.GET("/calls/history", h.CallHistory)
	v1.GET("/calls/:id", h.GetCall)

	admin := v1.Group("/admin", rbac.RequireAnyRole(rbac.RoleAdmin))
	admin.POST("/wallets/:owner_id/debit", h.AdminDebit)
	admin.POST("/wallets/:owner_id/credit", h.AdminCredit)
	admin.POST("/funding/expire", h.AdminExpireFunding)

	return testAPI{r: r, h: h, audits: audits}
}

func (a testAPI) token(t *testing.T, userID, role string) string {
	t.Helper()
	pair, err := a.h.Auth.IssuePair(time.Now(), userID, userID+"@example.com", role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair.AccessToken
}

func (a testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (a testAPI) webhook(t *testing.T, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/monnify/webhook", bytes.NewReader(body))
	req.Header.Set(payments.SignatureHeader, sig)
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

// fund runs the full intent + signed webhook flow.
func (a testAPI) fund(t *testing.T, token string, amountMinor int64) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/wallet/fund", token, gin.H{"amount_minor": amountMinor})
	if w.Code != http.StatusCreated {
		t.Fatalf("fund: expected 201, got %d %s", w.Code, w.Body.String())
	}
	intent := decode[funding.Intent](t, w)

	body := []byte(fmt.Sprintf(`{"paymentReference":%q,"amountPaid":"%s","paymentStatus":"PAID"}`,
		intent.Reference, payments.FormatMinor(amountMinor, 2)))
	if w := a.webhook(t, body, payments.Sign(webhookSecret, body)); w.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d %s", w.Code, w.Body.String())
	}
	return intent.Reference
}

func (a testAPI) balance(t *testing.T, token string) int64 {
	t.Helper()
	w := a.do(t, http.MethodGet, "/v1/wallet/balance", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", w.Code)
	}
	return decode[wallet.Balance](t, w).Balance
}

func TestAuth_SignupLoginRefresh(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/auth/signup", "", gin.H{"email": "Admin@Example.com", "password": "correct-horse"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	sess := decode[sessionResponse](t, w)
	if sess.Role != rbac.RoleAdmin || sess.Tokens.AccessToken == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if w := a.do(t, http.MethodPost, "/auth/signup", "", gin.H{"email": "admin@example.com", "password": "correct-horse"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "admin@example.com", "password": "wrong-password"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "admin@example.com", "password": "correct-horse"}); w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	w = a.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": sess.Tokens.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d %s", w.Code, w.Body.String())
	}
	if w := a.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": sess.Tokens.AccessToken}); w.Code != http.StatusUnauthorized {
		t.Fatalf("access token as refresh: expected 401, got %d", w.Code)
	}
}

func TestWallet_RequiresBearerToken(t *testing.T) {
	a := newTestAPI(t)
	if w := a.do(t, http.MethodGet, "/v1/wallet/balance", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestFunding_WebhookCreditsOnce(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token(t, "u1", rbac.RoleUser)

	if got := a.balance(t, tok); got != 0 {
		t.Fatalf("expected zero balance, got %d", got)
	}

	ref := a.fund(t, tok, 150000)

	body := []byte(fmt.Sprintf(`{"paymentReference":%q,"amountPaid":1500,"paymentStatus":"PAID"}`, ref))
	w := a.webhook(t, body, payments.Sign(webhookSecret, body))
	if w.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", w.Code)
	}
	if !decode[funding.Confirmation](t, w).Credited {
		t.Fatalf("replay should report the credited transaction")
	}
	if got := a.balance(t, tok); got != 150000 {
		t.Fatalf("expected 150000 after replay, got %d", got)
	}

	if w := a.webhook(t, body, payments.Sign("wrong", body)); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", w.Code)
	}
	if w := a.webhook(t, []byte(`{}`), payments.Sign(webhookSecret, []byte(`{}`))); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestFunding_RejectsNonPositiveAmount(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token(t, "u1", rbac.RoleUser)
	if w := a.do(t, http.MethodPost, "/v1/wallet/fund", tok, gin.H{"amount_minor": 0}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCalls_RoundTrip(t *testing.T) {
	a := newTestAPI(t)
	caller := a.token(t, "caller", rbac.RoleUser)
	receiver := a.token(t, "receiver", rbac.RoleUser)
	stranger := a.token(t, "stranger", rbac.RoleUser)

	if w := a.do(t, http.MethodPost, "/v1/calls/initiate", caller, gin.H{"receiver_id": "receiver"}); w.Code != http.StatusPaymentRequired {
		t.Fatalf("unfunded caller: expected 402, got %d", w.Code)
	}

	a.fund(t, caller, 1000)

	if w := a.do(t, http.MethodPost, "/v1/calls/initiate", caller, gin.H{"receiver_id": "caller"}); w.Code != http.StatusBadRequest {
		t.Fatalf("self call: expected 400, got %d", w.Code)
	}

	w := a.do(t, http.MethodPost, "/v1/calls/initiate", caller, gin.H{"receiver_id": "receiver"})
	if w.Code != http.StatusCreated {
		t.Fatalf("initiate: expected 201, got %d %s", w.Code, w.Body.String())
	}
	sess := decode[calls.Session](t, w)
	if sess.CostPerMinute != 50 || sess.Status != calls.StatusInitiated {
		t.Fatalf("unexpected session %+v", sess)
	}

	endPath := "/v1/calls/" + sess.ID + "/end"
	if w := a.do(t, http.MethodPost, endPath, receiver, nil); w.Code != http.StatusForbidden {
		t.Fatalf("receiver ending: expected 403, got %d", w.Code)
	}

	w = a.do(t, http.MethodPost, endPath, caller, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d %s", w.Code, w.Body.String())
	}
	ended := decode[calls.Session](t, w)
	if ended.Status != calls.StatusEnded || ended.DurationMinutes != 1 || ended.TotalCost != 50 {
		t.Fatalf("unexpected ended session %+v", ended)
	}
	if w := a.do(t, http.MethodPost, endPath, caller, nil); w.Code != http.StatusOK {
		t.Fatalf("second end: expected 200, got %d", w.Code)
	}
	if got := a.balance(t, caller); got != 950 {
		t.Fatalf("expected one debit of 50, balance %d", got)
	}

	if w := a.do(t, http.MethodGet, "/v1/calls/"+sess.ID, receiver, nil); w.Code != http.StatusOK {
		t.Fatalf("participant get: expected 200, got %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/v1/calls/"+sess.ID, stranger, nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger get: expected 403, got %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/v1/calls/missing", caller, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", w.Code)
	}

	w = a.do(t, http.MethodGet, "/v1/calls/history", receiver, nil)
	hist := decode[struct {
		Calls []calls.Session `json:"calls"`
	}](t, w)
	if len(hist.Calls) != 1 {
		t.Fatalf("receiver history: expected 1 call, got %d", len(hist.Calls))
	}

	w = a.do(t, http.MethodGet, "/v1/wallet/summary", caller, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d %s", w.Code, w.Body.String())
	}
	sum := decode[reporting.Summary](t, w)
	if sum.Spend.CallDebitMinor != 50 || sum.Calls.BilledMinutes != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestListTransactions_Limit(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token(t, "u1", rbac.RoleUser)
	a.fund(t, tok, 100)
	a.fund(t, tok, 200)

	if w := a.do(t, http.MethodGet, "/v1/wallet/transactions?limit=abc", tok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}

	w := a.do(t, http.MethodGet, "/v1/wallet/transactions?limit=500", tok, nil)
	out := decode[struct {
		Transactions []wallet.Transaction `json:"transactions"`
		Limit        int                  `json:"limit"`
	}](t, w)
	if out.Limit != maxLimit || len(out.Transactions) != 2 {
		t.Fatalf("unexpected page %+v", out)
	}
	if out.Transactions[0].Amount != 200 {
		t.Fatalf("expected newest first, got %+v", out.Transactions[0])
	}

	w = a.do(t, http.MethodGet, "/v1/wallet/transactions?limit=1", tok, nil)
	out = decode[struct {
		Transactions []wallet.Transaction `json:"transactions"`
		Limit        int                  `json:"limit"`
	}](t, w)
	if len(out.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(out.Transactions))
	}
}

func TestSummary_BadRange(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token(t, "u1", rbac.RoleUser)
	if w := a.do(t, http.MethodGet, "/v1/wallet/summary?from=yesterday", tok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/v1/wallet/summary?from=2024-02-01T00:00:00Z&to=2024-01-01T00:00:00Z", tok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", w.Code)
	}
}

func TestSummary_FromDefaultsToWindowBeforeTo(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token(t, "u1", rbac.RoleUser)

	w := a.do(t, http.MethodGet, "/v1/wallet/summary?to=2024-03-31T00:00:00Z", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	sum := decode[reporting.Summary](t, w)
	wantTo := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	if !sum.Range.To.Equal(wantTo) || !sum.Range.From.Equal(wantTo.Add(-defaultSummaryWindow)) {
		t.Fatalf("unexpected range %+v", sum.Range)
	}
}

func TestAdmin_Adjustments(t *testing.T) {
	a := newTestAPI(t)
	admin := a.token(t, "admin", rbac.RoleAdmin)
	user := a.token(t, "u1", rbac.RoleUser)

	if w := a.do(t, http.MethodPost, "/v1/admin/wallets/u1/credit", user, gin.H{"amount_minor": 100, "reason": "x"}); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/admin/wallets/u1/debit", admin, gin.H{"amount_minor": 100, "reason": "chargeback"}); w.Code != http.StatusPaymentRequired {
		t.Fatalf("debit empty wallet: expected 402, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/admin/wallets/u1/credit", admin, gin.H{"amount_minor": 100}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing reason: expected 400, got %d", w.Code)
	}

	credit := gin.H{"amount_minor": 500, "reason": "goodwill", "idempotency_key": "ticket-42"}
	for i := 0; i < 2; i++ {
		w := a.do(t, http.MethodPost, "/v1/admin/wallets/u1/credit", admin, credit)
		if w.Code != http.StatusOK {
			t.Fatalf("credit %d: expected 200, got %d %s", i, w.Code, w.Body.String())
		}
		tx := decode[wallet.Transaction](t, w)
		if tx.Reference != "ADJ_ticket-42" {
			t.Fatalf("unexpected reference %q", tx.Reference)
		}
	}
	if got := a.balance(t, user); got != 500 {
		t.Fatalf("idempotent credit: expected 500, got %d", got)
	}

	if w := a.do(t, http.MethodPost, "/v1/admin/wallets/u1/debit", admin, gin.H{"amount_minor": 200, "reason": "chargeback"}); w.Code != http.StatusOK {
		t.Fatalf("debit: expected 200, got %d", w.Code)
	}
	if got := a.balance(t, user); got != 300 {
		t.Fatalf("expected 300, got %d", got)
	}

	var adjustments int
	for _, e := range a.audits.Events() {
		if e.Type == audit.EventTypeAdminAdjustment {
			adjustments++
		}
	}
	if adjustments != 3 {
		t.Fatalf("expected 3 adjustment audits, got %d", adjustments)
	}

	if w := a.do(t, http.MethodPost, "/v1/admin/funding/expire", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("expire: expected 200, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{wallet.ErrInvalidAmount, http.StatusBadRequest},
		{calls.ErrInvalidOperand, http.StatusBadRequest},
		{wallet.ErrInsufficientFunds, http.StatusPaymentRequired},
		{calls.ErrUnauthorized, http.StatusForbidden},
		{wallet.ErrNotFound, http.StatusNotFound},
		{calls.ErrNotFound, http.StatusNotFound},
		{wallet.ErrConflict, http.StatusConflict},
		{wallet.ErrDuplicateReference, http.StatusConflict},
		{calls.ErrCallLimitReached, http.StatusTooManyRequests},
		{fmt.Errorf("wrapped: %w", wallet.ErrInsufficientFunds), http.StatusPaymentRequired},
		{errors.Join(wallet.ErrInvalidAmount, payments.ErrSubMinorAmount), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
