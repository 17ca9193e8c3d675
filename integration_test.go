package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"shortlink/pkg/cache"
	httpHandlers "shortlink/pkg/http"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/safety"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing

type mockLinkStorage struct {
	mu     sync.Mutex
	links  map[string]storage.ShortLink
	clicks map[string][]storage.ClickEvent
}

func newMockLinkStorage() *mockLinkStorage {
	return &mockLinkStorage{
		links:  make(map[string]storage.ShortLink),
		clicks: make(map[string][]storage.ClickEvent),
	}
}

func (m *mockLinkStorage) Insert(ctx context.Context, link *storage.ShortLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.links[link.Code]; exists {
		return false, nil
	}
	m.links[link.Code] = *link
	return true, nil
}

func (m *mockLinkStorage) GetByCode(ctx context.Context, code string) (*storage.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, exists := m.links[code]
	if !exists {
		return nil, nil
	}
	link.ClickCount = int64(len(m.clicks[code]))
	return &link, nil
}

func (m *mockLinkStorage) GetByCodeAndOwner(ctx context.Context, code string, owner uuid.UUID) (*storage.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, exists := m.links[code]
	if !exists || link.OwnerID != owner {
		return nil, nil
	}
	link.ClickCount = int64(len(m.clicks[code]))
	return &link, nil
}

func (m *mockLinkStorage) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*storage.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var links []*storage.ShortLink
	for _, link := range m.links {
		if link.OwnerID == owner {
			l := link
			links = append(links, &l)
		}
	}
	return links, nil
}

func (m *mockLinkStorage) Update(ctx context.Context, link *storage.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.Code] = *link
	return nil
}

func (m *mockLinkStorage) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, code)
	delete(m.clicks, code)
	return nil
}

func (m *mockLinkStorage) AppendClick(ctx context.Context, code string, ev storage.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[code] = append(m.clicks[code], ev)
	return nil
}

func (m *mockLinkStorage) ListClicks(ctx context.Context, code string) ([]storage.ClickEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.ClickEvent(nil), m.clicks[code]...), nil
}

type mockLinkCache struct{}

func (m *mockLinkCache) Get(ctx context.Context, code string) (*cache.CachedLink, error) {
	return nil, nil // Always cache miss for simplicity
}

func (m *mockLinkCache) Set(ctx context.Context, code string, link *cache.CachedLink, ttl time.Duration) error {
	return nil
}

func (m *mockLinkCache) Delete(ctx context.Context, code string) error {
	return nil
}

var testOwner = uuid.New()

// testAuth injects a fixed owner, standing in for the identity collaborator.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithOwner(r.Context(), testOwner)))
	})
}

func newTestServer() (*chi.Mux, *mockLinkStorage, *service.LinkService) {
	mockStorage := newMockLinkStorage()
	logger := logging.NewDiscardLogger()
	linkService := service.NewLinkService(mockStorage, &mockLinkCache{}, safety.PolicyChecker{}, logger)
	handler := httpHandlers.NewHandler(linkService, safety.PolicyChecker{}, "http://localhost:8080")

	r := chi.NewRouter()
	httpHandlers.SetupRoutes(r, handler, testAuth)
	return r, mockStorage, linkService
}

func postJSON(t *testing.T, r http.Handler, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	jsonData, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndRedirectFlow(t *testing.T) {
	r, _, linkService := newTestServer()

	w := postJSON(t, r, "/shorturls", map[string]any{
		"url":      "https://example.com",
		"validity": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ShortLink string `json:"shortLink"`
		Expiry    string `json:"expiry"`
		Shortcode string `json:"shortcode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.Shortcode, 6)
	assert.Equal(t, "http://localhost:8080/"+created.Shortcode, created.ShortLink)
	_, err := time.Parse(time.RFC3339, created.Expiry)
	assert.NoError(t, err)

	// Follow the short link.
	req := httptest.NewRequest("GET", "/"+created.Shortcode, nil)
	req.Header.Set("Referer", "https://news.example.com")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	assert.Equal(t, http.StatusFound, w2.Code)
	assert.Equal(t, "https://example.com", w2.Header().Get("Location"))

	linkService.Flush()

	// Owner sees the click in stats.
	req3 := httptest.NewRequest("GET", "/shorturls/"+created.Shortcode, nil)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req3)

	require.Equal(t, http.StatusOK, w3.Code)
	var stats struct {
		OriginalURL string `json:"originalURL"`
		ClickCount  int    `json:"clickCount"`
		ClickLogs   []struct {
			Referrer string `json:"referrer"`
		} `json:"clickLogs"`
	}
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &stats))
	assert.Equal(t, "https://example.com", stats.OriginalURL)
	assert.Equal(t, 1, stats.ClickCount)
	require.Len(t, stats.ClickLogs, 1)
	assert.Equal(t, "https://news.example.com", stats.ClickLogs[0].Referrer)
}

func TestRedirectUnknownCode(t *testing.T) {
	r, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/nosuch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirectExpiredCode(t *testing.T) {
	r, mockStorage, _ := newTestServer()

	_, err := mockStorage.Insert(context.Background(), &storage.ShortLink{
		Code:      "lapsed",
		Target:    "https://example.com",
		OwnerID:   testOwner,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/lapsed", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Expired is distinct from not found.
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestCustomCodeConflict(t *testing.T) {
	r, _, _ := newTestServer()

	w := postJSON(t, r, "/shorturls", map[string]any{
		"url":       "https://example.com",
		"shortcode": "mycode",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w2 := postJSON(t, r, "/shorturls", map[string]any{
		"url":       "https://other.example.com",
		"shortcode": "mycode",
	})
	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestUpdateReactivatesThroughAPI(t *testing.T) {
	r, mockStorage, _ := newTestServer()

	_, err := mockStorage.Insert(context.Background(), &storage.ShortLink{
		Code:      "oldlink",
		Target:    "https://example.com",
		OwnerID:   testOwner,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"validity": 30})
	req := httptest.NewRequest("PATCH", "/shorturls/oldlink", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		WasExpired  bool `json:"wasExpired"`
		IsNowActive bool `json:"isNowActive"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.WasExpired)
	assert.True(t, resp.IsNowActive)

	req2 := httptest.NewRequest("GET", "/oldlink", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusFound, w2.Code)
}

func TestDeleteTwice(t *testing.T) {
	r, _, _ := newTestServer()

	w := postJSON(t, r, "/shorturls", map[string]any{
		"url":       "https://example.com",
		"shortcode": "gone1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest("DELETE", "/shorturls/gone1", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var resp struct {
		WasExpired bool `json:"wasExpired"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.False(t, resp.WasExpired)

	req2 := httptest.NewRequest("DELETE", "/shorturls/gone1", nil)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req2)
	assert.Equal(t, http.StatusNotFound, w3.Code)
}

func TestUnsafeURLRejected(t *testing.T) {
	r, _, _ := newTestServer()

	w := postJSON(t, r, "/shorturls", map[string]any{
		"url": "javascript:alert(1)",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Potentially unsafe URL scheme detected")
}

func TestSecurityCheckEndpoint(t *testing.T) {
	r, _, _ := newTestServer()

	w := postJSON(t, r, "/shorturls/check", map[string]any{
		"url": "https://paypal.com.account-verify.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var verdict safety.Verdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.False(t, verdict.Safe)
	assert.Equal(t, "Potential phishing URL detected", verdict.Reason)
}

func TestMissingURLError(t *testing.T) {
	r, _, _ := newTestServer()

	w := postJSON(t, r, "/shorturls", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	r, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
