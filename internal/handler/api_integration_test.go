package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/handler"
	"github.com/yamdb/yamdb-api/internal/middleware"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/service"
	"github.com/yamdb/yamdb-api/internal/testutil"
	"github.com/yamdb/yamdb-api/internal/utils"
	"github.com/yamdb/yamdb-api/pkg/logger"
)

const (
	testSecret = "test-secret-key"
	clientIP   = "192.0.2.10"
)

// APIIntegrationTestSuite drives the full router against SQLite and miniredis.
type APIIntegrationTestSuite struct {
	suite.Suite
	testDB    *testutil.TestDatabase
	testRedis *testutil.TestRedis
	mailbox   *testutil.RecordingNotifier
	router    *gin.Engine
}

func TestAPIIntegrationSuite(t *testing.T) {
	suite.Run(t, new(APIIntegrationTestSuite))
}

// SetupSuite runs before all tests
func (s *APIIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	logger.Init(false)

	s.testDB = testutil.SetupTestDatabase(s.T())
	s.testRedis = testutil.SetupTestRedis(s.T())
}

// TearDownSuite runs after all tests
func (s *APIIntegrationTestSuite) TearDownSuite() {
	s.testRedis.Teardown(s.T())
	s.testDB.Teardown(s.T())
}

// SetupTest cleans both stores and builds a fresh router
func (s *APIIntegrationTestSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.testDB.DB)
	s.testRedis.Server.FlushAll()
	s.mailbox = &testutil.RecordingNotifier{}

	rules := config.DefaultRules()
	db := s.testDB.DB
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	pager := handler.Paginator{PageSize: rules.PageSize}

	authService := service.NewAuthService(userRepo, s.mailbox, rules, service.AuthOptions{
		JWTSecret:     testSecret,
		MailFrom:      "noreply@yamdb.local",
		NotifyTimeout: time.Second,
	})

	s.router = gin.New()
	handler.RegisterRoutes(s.router, handler.Deps{
		DB:        db,
		JWTSecret: testSecret,
		UserRepo:  userRepo,
		Auth:      handler.NewAuthHandler(authService),
		Users:     handler.NewUserHandler(service.NewUserService(userRepo, rules), pager),
		Catalog:   handler.NewCatalogHandler(service.NewCatalogService(catalogRepo, reviewRepo, rules), pager),
		Reviews:   handler.NewReviewHandler(service.NewReviewService(reviewRepo, catalogRepo, rules), pager),
		Limiter: middleware.NewRateLimiter(s.testRedis.Client, middleware.RateLimiterConfig{
			MaxRequests: 100,
			Window:      time.Minute,
			BlockTime:   time.Minute,
		}),
	})
}

func (s *APIIntegrationTestSuite) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = clientIP + ":40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APIIntegrationTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *APIIntegrationTestSuite) tokenFor(user *models.User) string {
	token, err := utils.GenerateToken(user, testSecret, time.Hour)
	require.NoError(s.T(), err)
	return token
}

func (s *APIIntegrationTestSuite) userWithToken(username string, role models.Role) (*models.User, string) {
	user := testutil.CreateTestUser(s.T(), s.testDB.DB, username, role, "")
	return user, s.tokenFor(user)
}

func (s *APIIntegrationTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, "")

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "ok", s.decode(w)["status"])
}

func (s *APIIntegrationTestSuite) TestSignupTokenAndReviewFlow() {
	title := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Solaris", 1972, nil)

	// Signup
	w := s.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "kelvin",
		"email":    "kelvin@example.com",
	}, "")
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), map[string]interface{}{"username": "kelvin", "email": "kelvin@example.com"}, s.decode(w))

	// Token
	code := s.mailbox.LastCode("kelvin@example.com")
	require.NotEmpty(s.T(), code)
	w = s.do(http.MethodPost, "/api/v1/auth/token", map[string]string{
		"username":          "kelvin",
		"confirmation_code": code,
	}, "")
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	token, _ := s.decode(w)["access"].(string)
	require.NotEmpty(s.T(), token)

	// Review
	reviewsPath := fmt.Sprintf("/api/v1/titles/%d/reviews", title.ID)
	w = s.do(http.MethodPost, reviewsPath, map[string]interface{}{"text": "Haunting", "score": 9}, token)
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	review := s.decode(w)
	assert.Equal(s.T(), "kelvin", review["author"])
	assert.EqualValues(s.T(), 9, review["score"])
	assert.NotEmpty(s.T(), review["pub_date"])

	// Second review by the same author
	w = s.do(http.MethodPost, reviewsPath, map[string]interface{}{"text": "Again", "score": 1}, token)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	// Rating reflects the review
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/titles/%d", title.ID), nil, "")
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.EqualValues(s.T(), 9, s.decode(w)["rating"])
}

func (s *APIIntegrationTestSuite) TestTokenErrors() {
	testutil.CreateTestUser(s.T(), s.testDB.DB, "alice", models.RoleUser, "right-code")

	w := s.do(http.MethodPost, "/api/v1/auth/token", map[string]string{
		"username": "alice", "confirmation_code": "wrong-code",
	}, "")
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/token", map[string]string{
		"username": "nobody", "confirmation_code": "whatever",
	}, "")
	assert.Equal(s.T(), http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/token", map[string]string{}, "")
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	fields := s.decode(w)["fields"].(map[string]interface{})
	assert.Contains(s.T(), fields, "username")
	assert.Contains(s.T(), fields, "confirmation_code")
}

func (s *APIIntegrationTestSuite) TestSignupIgnoresStaleToken() {
	w := s.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "fresh", "email": "fresh@example.com",
	}, "not-a-jwt")

	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *APIIntegrationTestSuite) TestSignupMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *APIIntegrationTestSuite) TestCatalogWriteAccess() {
	_, userToken := s.userWithToken("plain", models.RoleUser)
	_, modToken := s.userWithToken("mod", models.RoleModerator)
	_, adminToken := s.userWithToken("boss", models.RoleAdmin)
	superuser := testutil.CreateSuperuser(s.T(), s.testDB.DB, "root")

	body := map[string]string{"name": "Films", "slug": "films"}

	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/categories", body, "").Code)
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, "/api/v1/categories", body, userToken).Code)
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, "/api/v1/categories", body, modToken).Code)
	assert.Equal(s.T(), http.StatusCreated, s.do(http.MethodPost, "/api/v1/categories", body, adminToken).Code)

	body = map[string]string{"name": "Books", "slug": "books"}
	assert.Equal(s.T(), http.StatusCreated, s.do(http.MethodPost, "/api/v1/categories", body, s.tokenFor(superuser)).Code)

	// Reads are public
	w := s.do(http.MethodGet, "/api/v1/categories", nil, "")
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.EqualValues(s.T(), 2, s.decode(w)["count"])

	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/categories/films", nil, userToken).Code)
	assert.Equal(s.T(), http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/categories/films", nil, adminToken).Code)
	assert.Equal(s.T(), http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/categories/films", nil, adminToken).Code)
}

func (s *APIIntegrationTestSuite) TestCategoryPayloadHidesID() {
	testutil.CreateTestCategory(s.T(), s.testDB.DB, "films")

	w := s.do(http.MethodGet, "/api/v1/categories", nil, "")

	require.Equal(s.T(), http.StatusOK, w.Code)
	results := s.decode(w)["results"].([]interface{})
	require.Len(s.T(), results, 1)
	assert.Equal(s.T(), map[string]interface{}{"name": "Category films", "slug": "films"}, results[0])
}

func (s *APIIntegrationTestSuite) TestInvalidTokenRejectedOnReads() {
	w := s.do(http.MethodGet, "/api/v1/categories", nil, "garbage")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)

	user, token := s.userWithToken("gone", models.RoleUser)
	require.NoError(s.T(), s.testDB.DB.Delete(user).Error)
	w = s.do(http.MethodGet, "/api/v1/categories", nil, token)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *APIIntegrationTestSuite) TestPagination() {
	for i := 1; i <= 7; i++ {
		testutil.CreateTestGenre(s.T(), s.testDB.DB, fmt.Sprintf("genre-%d", i))
	}

	w := s.do(http.MethodGet, "/api/v1/genres", nil, "")
	require.Equal(s.T(), http.StatusOK, w.Code)
	first := s.decode(w)
	assert.EqualValues(s.T(), 7, first["count"])
	assert.Len(s.T(), first["results"], 5)
	assert.Equal(s.T(), "http://example.com/api/v1/genres?page=2", first["next"])
	assert.Nil(s.T(), first["previous"])

	w = s.do(http.MethodGet, "/api/v1/genres?page=2", nil, "")
	require.Equal(s.T(), http.StatusOK, w.Code)
	second := s.decode(w)
	assert.Len(s.T(), second["results"], 2)
	assert.Nil(s.T(), second["next"])
	assert.Equal(s.T(), "http://example.com/api/v1/genres", second["previous"])

	assert.Equal(s.T(), http.StatusNotFound, s.do(http.MethodGet, "/api/v1/genres?page=3", nil, "").Code)
	assert.Equal(s.T(), http.StatusNotFound, s.do(http.MethodGet, "/api/v1/genres?page=zero", nil, "").Code)
}

func (s *APIIntegrationTestSuite) TestEmptyListIsFirstPage() {
	w := s.do(http.MethodGet, "/api/v1/titles", nil, "")

	require.Equal(s.T(), http.StatusOK, w.Code)
	body := s.decode(w)
	assert.EqualValues(s.T(), 0, body["count"])
	assert.Empty(s.T(), body["results"])
}

func (s *APIIntegrationTestSuite) TestTitleCreateAndShape() {
	_, adminToken := s.userWithToken("boss", models.RoleAdmin)
	testutil.CreateTestCategory(s.T(), s.testDB.DB, "films")
	testutil.CreateTestGenre(s.T(), s.testDB.DB, "drama")

	w := s.do(http.MethodPost, "/api/v1/titles", map[string]interface{}{
		"name":     "Stalker",
		"year":     1979,
		"category": "films",
		"genre":    []string{"drama"},
	}, adminToken)

	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	title := s.decode(w)
	assert.Equal(s.T(), "Stalker", title["name"])
	assert.EqualValues(s.T(), 1979, title["year"])
	assert.Nil(s.T(), title["rating"])
	assert.Nil(s.T(), title["description"])
	assert.Equal(s.T(), map[string]interface{}{"name": "Category films", "slug": "films"}, title["category"])
	assert.Equal(s.T(), []interface{}{map[string]interface{}{"name": "Genre drama", "slug": "drama"}}, title["genre"])
}

func (s *APIIntegrationTestSuite) TestTitleValidationFields() {
	_, adminToken := s.userWithToken("boss", models.RoleAdmin)

	w := s.do(http.MethodPost, "/api/v1/titles", map[string]interface{}{
		"name": "From the future",
		"year": time.Now().Year() + 1,
	}, adminToken)

	require.Equal(s.T(), http.StatusBadRequest, w.Code)
	fields := s.decode(w)["fields"].(map[string]interface{})
	assert.Contains(s.T(), fields, "year")

	w = s.do(http.MethodGet, "/api/v1/titles?year=abc", nil, "")
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *APIIntegrationTestSuite) TestTitleFiltersOverHTTP() {
	films := testutil.CreateTestCategory(s.T(), s.testDB.DB, "films")
	testutil.CreateTestTitle(s.T(), s.testDB.DB, "Mirror", 1975, films)
	testutil.CreateTestTitle(s.T(), s.testDB.DB, "Nostalghia", 1983, nil)

	w := s.do(http.MethodGet, "/api/v1/titles?category=films", nil, "")
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.EqualValues(s.T(), 1, s.decode(w)["count"])

	w = s.do(http.MethodGet, "/api/v1/titles?year=1983", nil, "")
	require.Equal(s.T(), http.StatusOK, w.Code)
	results := s.decode(w)["results"].([]interface{})
	require.Len(s.T(), results, 1)
	assert.Equal(s.T(), "Nostalghia", results[0].(map[string]interface{})["name"])
}

func (s *APIIntegrationTestSuite) TestNotFoundPaths() {
	title := testutil.CreateTestTitle(s.T(), s.testDB.DB, "One", 2000, nil)
	other := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Two", 2000, nil)
	author := testutil.CreateTestUser(s.T(), s.testDB.DB, "author", models.RoleUser, "")
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, title, author, 5)

	paths := []string{
		"/api/v1/titles/abc",
		"/api/v1/titles/999",
		"/api/v1/titles/999/reviews",
		fmt.Sprintf("/api/v1/titles/%d/reviews/%d", other.ID, review.ID),
		fmt.Sprintf("/api/v1/titles/%d/reviews/%d/comments", other.ID, review.ID),
		fmt.Sprintf("/api/v1/titles/%d/reviews/%d/comments/999", title.ID, review.ID),
	}
	for _, path := range paths {
		assert.Equal(s.T(), http.StatusNotFound, s.do(http.MethodGet, path, nil, "").Code, path)
	}
}

func (s *APIIntegrationTestSuite) TestReviewOwnership() {
	title := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Owned", 2000, nil)
	author, authorToken := s.userWithToken("author", models.RoleUser)
	_, otherToken := s.userWithToken("other", models.RoleUser)
	_, modToken := s.userWithToken("mod", models.RoleModerator)
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, title, author, 5)
	path := fmt.Sprintf("/api/v1/titles/%d/reviews/%d", title.ID, review.ID)

	patch := map[string]interface{}{"score": 2}
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodPatch, path, patch, "").Code)
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPatch, path, patch, otherToken).Code)

	w := s.do(http.MethodPatch, path, patch, authorToken)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.EqualValues(s.T(), 2, s.decode(w)["score"])

	// Comment on it, then let the moderator clean up the review
	w = s.do(http.MethodPost, path+"/comments", map[string]string{"text": "Harsh"}, otherToken)
	require.Equal(s.T(), http.StatusCreated, w.Code)
	assert.Equal(s.T(), "other", s.decode(w)["author"])

	assert.Equal(s.T(), http.StatusNoContent, s.do(http.MethodDelete, path, nil, modToken).Code)
	assert.Zero(s.T(), testutil.Count(s.T(), s.testDB.DB, &models.Comment{}, ""))
}

func (s *APIIntegrationTestSuite) TestMeEndpoints() {
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/users/me", nil, "").Code)

	_, token := s.userWithToken("alice", models.RoleUser)

	w := s.do(http.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(s.T(), http.StatusOK, w.Code)
	me := s.decode(w)
	assert.Equal(s.T(), "alice", me["username"])
	assert.NotContains(s.T(), me, "confirmation_code")

	w = s.do(http.MethodPatch, "/api/v1/users/me", map[string]string{
		"role": "admin",
		"bio":  "Reader",
	}, token)
	require.Equal(s.T(), http.StatusOK, w.Code)
	me = s.decode(w)
	assert.Equal(s.T(), "user", me["role"])
	assert.Equal(s.T(), "Reader", me["bio"])
}

func (s *APIIntegrationTestSuite) TestUserDirectoryIsAdminOnly() {
	_, userToken := s.userWithToken("plain", models.RoleUser)
	_, modToken := s.userWithToken("mod", models.RoleModerator)
	_, adminToken := s.userWithToken("boss", models.RoleAdmin)

	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", nil, userToken).Code)
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", nil, modToken).Code)

	w := s.do(http.MethodGet, "/api/v1/users?search=mo", nil, adminToken)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.EqualValues(s.T(), 1, s.decode(w)["count"])

	w = s.do(http.MethodPost, "/api/v1/users", map[string]string{
		"username": "invited", "email": "invited@example.com", "role": "moderator",
	}, adminToken)
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(s.T(), "moderator", s.decode(w)["role"])

	assert.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/api/v1/users/invited", nil, adminToken).Code)
	assert.Equal(s.T(), http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/users/invited", nil, adminToken).Code)
	assert.Equal(s.T(), http.StatusNotFound, s.do(http.MethodGet, "/api/v1/users/invited", nil, adminToken).Code)
}

func (s *APIIntegrationTestSuite) TestRoleChangeAppliesToIssuedToken() {
	_, token := s.userWithToken("climber", models.RoleUser)
	_, adminToken := s.userWithToken("boss", models.RoleAdmin)
	body := map[string]string{"name": "Music", "slug": "music"}

	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, "/api/v1/genres", body, token).Code)

	w := s.do(http.MethodPatch, "/api/v1/users/climber", map[string]string{"role": "admin"}, adminToken)
	require.Equal(s.T(), http.StatusOK, w.Code)

	assert.Equal(s.T(), http.StatusCreated, s.do(http.MethodPost, "/api/v1/genres", body, token).Code)
}

func (s *APIIntegrationTestSuite) TestBannedIPCannotSignUp() {
	_, adminToken := s.userWithToken("boss", models.RoleAdmin)
	_, userToken := s.userWithToken("plain", models.RoleUser)

	assert.Equal(s.T(), http.StatusForbidden,
		s.do(http.MethodPost, "/api/v1/admin/banned-ips", map[string]string{"ip": clientIP}, userToken).Code)
	assert.Equal(s.T(), http.StatusBadRequest,
		s.do(http.MethodPost, "/api/v1/admin/banned-ips", map[string]string{"ip": "not-an-ip"}, adminToken).Code)

	w := s.do(http.MethodPost, "/api/v1/admin/banned-ips", map[string]string{"ip": clientIP, "reason": "spam"}, adminToken)
	require.Equal(s.T(), http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/banned-ips", nil, adminToken)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), []interface{}{clientIP}, s.decode(w)["ips"])

	signup := map[string]string{"username": "spammer", "email": "spam@example.com"}
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, "/api/v1/auth/signup", signup, "").Code)

	assert.Equal(s.T(), http.StatusNoContent,
		s.do(http.MethodDelete, "/api/v1/admin/banned-ips/"+clientIP, nil, adminToken).Code)
	assert.Equal(s.T(), http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/signup", signup, "").Code)
}
