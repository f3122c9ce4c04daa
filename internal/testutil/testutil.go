package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/database/models"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Client{},
		&models.ClientProject{},
		&models.Project{},
		&models.Board{},
		&models.Card{},
		&models.ProjectFile{},
		&models.Invoice{},
		&models.Quote{},
		&models.ApiToken{},
		&models.LoginToken{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestCompany creates a test company
func CreateTestCompany(t *testing.T, db *gorm.DB) *models.Company {
	t.Helper()

	company := &models.Company{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name: "Test Studio",
		Slug: "test-studio-" + uuid.New().String()[:8],
		Plan: "free",
	}

	if err := db.Create(company).Error; err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}

	return company
}

// CreateTestUser creates a test user in the given company
func CreateTestUser(t *testing.T, db *gorm.DB, company *models.Company) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		CompanyID:    company.ID,
		Role:         "owner",
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Company = company
	return user
}

// CreateTestClient creates a test portal client in the given company
func CreateTestClient(t *testing.T, db *gorm.DB, company *models.Company) *models.Client {
	t.Helper()

	client := &models.Client{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:     "client-" + uuid.New().String()[:8] + "@example.com",
		Name:      "Test Client",
		CompanyID: company.ID,
	}

	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}

	return client
}

// CreateTestProject creates a test project in the given company
func CreateTestProject(t *testing.T, db *gorm.DB, companyID uuid.UUID) *models.Project {
	t.Helper()

	project := &models.Project{
		Base: models.Base{
			ID: uuid.New(),
		},
		CompanyID: companyID,
		Name:      "Test Project",
		Status:    models.ProjectStatusActive,
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	return project
}

// GrantProjectAccess links a client to a project
func GrantProjectAccess(t *testing.T, db *gorm.DB, clientID, projectID uuid.UUID) {
	t.Helper()

	if err := db.Create(&models.ClientProject{
		ClientID:  clientID,
		ProjectID: projectID,
	}).Error; err != nil {
		t.Fatalf("failed to grant project access: %v", err)
	}
}

// CreateTestBoard creates a test board on the given project
func CreateTestBoard(t *testing.T, db *gorm.DB, projectID uuid.UUID) *models.Board {
	t.Helper()

	board := &models.Board{
		Base: models.Base{
			ID: uuid.New(),
		},
		ProjectID: projectID,
		Name:      "Test Board",
		Columns:   `["Backlog","In Progress","Done"]`,
	}

	if err := db.Create(board).Error; err != nil {
		t.Fatalf("failed to create test board: %v", err)
	}

	return board
}

// CreateTestInvoice creates a test invoice with the given status
func CreateTestInvoice(t *testing.T, db *gorm.DB, companyID, clientID uuid.UUID, status models.InvoiceStatus) *models.Invoice {
	t.Helper()

	invoice := &models.Invoice{
		Base: models.Base{
			ID: uuid.New(),
		},
		CompanyID:   companyID,
		ClientID:    clientID,
		Number:      "INV-2026-" + uuid.New().String()[:4],
		Status:      status,
		AmountCents: 150000,
		Currency:    "EUR",
		DueAt:       time.Now().Add(14 * 24 * time.Hour),
	}

	if err := db.Create(invoice).Error; err != nil {
		t.Fatalf("failed to create test invoice: %v", err)
	}

	return invoice
}

// CreateTestQuote creates a test quote with the given status
func CreateTestQuote(t *testing.T, db *gorm.DB, companyID, clientID uuid.UUID, status models.QuoteStatus) *models.Quote {
	t.Helper()

	quote := &models.Quote{
		Base: models.Base{
			ID: uuid.New(),
		},
		CompanyID:   companyID,
		ClientID:    clientID,
		Number:      "QUO-2026-" + uuid.New().String()[:4],
		Status:      status,
		AmountCents: 80000,
		Currency:    "EUR",
		ValidUntil:  time.Now().Add(30 * 24 * time.Hour),
	}

	if err := db.Create(quote).Error; err != nil {
		t.Fatalf("failed to create test quote: %v", err)
	}

	return quote
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour, 12*time.Hour)
}

// GenerateTestToken generates a valid staff JWT for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateUserToken(user.ID, user.CompanyID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// GenerateTestClientToken generates a valid portal JWT for the given client
func GenerateTestClientToken(t *testing.T, jwtService *auth.JWTService, client *models.Client) string {
	t.Helper()

	token, err := jwtService.GenerateClientToken(client.ID, client.Email)
	if err != nil {
		t.Fatalf("failed to generate test client token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with bearer authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// PortalRequest creates an HTTP request carrying a portal session cookie
func PortalRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	req := AuthenticatedRequest(t, method, path, body, "")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "portal_token", Value: token})
	}
	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Company    *models.Company
	User       *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, company, user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	company := CreateTestCompany(t, db)
	user := CreateTestUser(t, db, company)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Company:    company,
		User:       user,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// MemFileStore is an in-memory storage.FileStore for handler tests.
type MemFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemFileStore() *MemFileStore {
	return &MemFileStore{objects: make(map[string][]byte)}
}

func (s *MemFileStore) Put(ctx context.Context, key string, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *MemFileStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemFileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
