package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/access"
	"github.com/atelierhq/atelier/internal/api/handlers"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/internal/testutil"
)

func setupInvoiceTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	resolver := auth.NewUserResolver(tc.JWTService, auth.NewApiTokenService(tc.DB))
	handler := handlers.NewInvoiceHandler(tc.DB, access.NewVerifier(tc.DB))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(resolver))
		r.Route("/api/v1/invoices", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Get("/{id}", handler.Get)
			r.Put("/{id}", handler.Update)
			r.Delete("/{id}", handler.Delete)
			r.Post("/{id}/send", handler.Send)
			r.Post("/{id}/pay", handler.MarkPaid)
		})
	})

	return r, tc
}

func TestInvoiceHandler_Update(t *testing.T) {
	router, tc := setupInvoiceTestRouter(t)
	defer tc.Cleanup()

	client := testutil.CreateTestClient(t, tc.DB, tc.Company)

	t.Run("draft terms are mutable", func(t *testing.T) {
		invoice := testutil.CreateTestInvoice(t, tc.DB, tc.Company.ID, client.ID, models.InvoiceStatusDraft)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/invoices/"+invoice.ID.String(),
			map[string]interface{}{"amount_cents": 200000, "due_at": "2026-10-15T00:00:00Z"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp handlers.InvoiceResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(200000), resp.AmountCents)
		assert.Equal(t, "2026-10-15T00:00:00Z", resp.DueAt)
		assert.Equal(t, invoice.Number, resp.Number)
	})

	t.Run("sent invoice is frozen", func(t *testing.T) {
		invoice := testutil.CreateTestInvoice(t, tc.DB, tc.Company.ID, client.ID, models.InvoiceStatusSent)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/invoices/"+invoice.ID.String(),
			map[string]interface{}{"amount_cents": 1}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusConflict)

		var stored models.Invoice
		require.NoError(t, tc.DB.First(&stored, "id = ?", invoice.ID).Error)
		assert.Equal(t, invoice.AmountCents, stored.AmountCents)
	})

	t.Run("another company's draft is invisible", func(t *testing.T) {
		otherCompany := testutil.CreateTestCompany(t, tc.DB)
		otherClient := testutil.CreateTestClient(t, tc.DB, otherCompany)
		invoice := testutil.CreateTestInvoice(t, tc.DB, otherCompany.ID, otherClient.ID, models.InvoiceStatusDraft)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/invoices/"+invoice.ID.String(),
			map[string]interface{}{"amount_cents": 1}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/invoices/abc",
			map[string]interface{}{"amount_cents": 1}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		invoice := testutil.CreateTestInvoice(t, tc.DB, tc.Company.ID, client.ID, models.InvoiceStatusDraft)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/invoices/"+invoice.ID.String(),
			map[string]interface{}{}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		invoice := testutil.CreateTestInvoice(t, tc.DB, tc.Company.ID, client.ID, models.InvoiceStatusDraft)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/invoices/"+invoice.ID.String(),
			map[string]interface{}{"amount_cents": 0}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestInvoiceNumber_UniquePerCompany(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	client := testutil.CreateTestClient(t, tc.DB, tc.Company)
	invoice := testutil.CreateTestInvoice(t, tc.DB, tc.Company.ID, client.ID, models.InvoiceStatusDraft)

	dup := models.Invoice{
		Base:        models.Base{ID: uuid.New()},
		CompanyID:   tc.Company.ID,
		ClientID:    client.ID,
		Number:      invoice.Number,
		Status:      models.InvoiceStatusDraft,
		AmountCents: 1000,
		Currency:    "EUR",
		DueAt:       invoice.DueAt,
	}
	assert.Error(t, tc.DB.Create(&dup).Error)

	// The same number under a different company is fine.
	otherCompany := testutil.CreateTestCompany(t, tc.DB)
	otherClient := testutil.CreateTestClient(t, tc.DB, otherCompany)
	elsewhere := models.Invoice{
		Base:        models.Base{ID: uuid.New()},
		CompanyID:   otherCompany.ID,
		ClientID:    otherClient.ID,
		Number:      invoice.Number,
		Status:      models.InvoiceStatusDraft,
		AmountCents: 1000,
		Currency:    "EUR",
		DueAt:       invoice.DueAt,
	}
	assert.NoError(t, tc.DB.Create(&elsewhere).Error)
}
