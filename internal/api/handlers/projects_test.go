package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/handlers"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/internal/testutil"
)

func setupProjectTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	resolver := auth.NewUserResolver(tc.JWTService, auth.NewApiTokenService(tc.DB))
	handler := handlers.NewProjectHandler(tc.DB)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(resolver))
		r.Route("/api/v1/projects", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Get("/{id}", handler.Get)
			r.Put("/{id}", handler.Update)
			r.Delete("/{id}", handler.Archive)
		})
	})

	return r, tc
}

func TestProjectHandler_Create(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
	}{
		{
			name:       "create project",
			body:       map[string]interface{}{"name": "Brand refresh"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "create with description",
			body:       map[string]interface{}{"name": "Site relaunch", "description": "Q4 marketing site"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       map[string]interface{}{"description": "no name"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/projects", tt.body, tc.Token)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantStatus == http.StatusCreated {
				var resp handlers.ProjectResponse
				testutil.ParseJSONResponse(t, rr, &resp)
				assert.NotEmpty(t, resp.ID)
				assert.Equal(t, tt.body["name"], resp.Name)
				assert.Equal(t, string(models.ProjectStatusActive), resp.Status)
			}
		})
	}
}

func TestProjectHandler_List(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	testutil.CreateTestProject(t, tc.DB, tc.Company.ID)
	testutil.CreateTestProject(t, tc.DB, tc.Company.ID)

	// Another tenant's project must not leak into the listing
	otherCompany := testutil.CreateTestCompany(t, tc.DB)
	testutil.CreateTestProject(t, tc.DB, otherCompany.ID)

	req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects", nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.PaginatedResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, int64(2), resp.Total)
}

func TestProjectHandler_Get(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Company.ID)

	t.Run("own project", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects/"+project.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp handlers.ProjectResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, project.ID.String(), resp.ID)
	})

	t.Run("another company's project answers 404", func(t *testing.T) {
		otherCompany := testutil.CreateTestCompany(t, tc.DB)
		theirs := testutil.CreateTestProject(t, tc.DB, otherCompany.ID)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects/"+theirs.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("unknown id answers 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects/"+uuid.New().String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed id answers 400", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects/abc", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestProjectHandler_Update(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Company.ID)

	t.Run("updates status", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/projects/"+project.ID.String(),
			map[string]string{"status": "completed"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp handlers.ProjectResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "completed", resp.Status)
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/projects/"+project.ID.String(),
			map[string]string{"status": "abandoned"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("cross-tenant update answers 404", func(t *testing.T) {
		otherCompany := testutil.CreateTestCompany(t, tc.DB)
		theirs := testutil.CreateTestProject(t, tc.DB, otherCompany.ID)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/projects/"+theirs.ID.String(),
			map[string]string{"name": "Hijacked"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)

		// Untouched
		var fresh models.Project
		require.NoError(t, tc.DB.First(&fresh, "id = ?", theirs.ID).Error)
		assert.Equal(t, theirs.Name, fresh.Name)
	})
}

func TestProjectHandler_Archive(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Company.ID)

	req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/projects/"+project.ID.String(), nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	testutil.AssertStatus(t, rr, http.StatusOK)

	t.Run("archived project is gone from reads", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects/"+project.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("archiving again answers 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/projects/"+project.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("the row survives as a soft delete", func(t *testing.T) {
		var count int64
		require.NoError(t, tc.DB.Unscoped().Model(&models.Project{}).
			Where("id = ?", project.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}
