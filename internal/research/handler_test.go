package research

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"research-backend/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T, d *Dispatcher, n *Notifier, rule middleware.RateLimitRule, now func() time.Time) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.Identity(nil))

	h := &Handler{Dispatcher: d, Notifier: n}
	h.Register(api, middleware.RateLimit(middleware.NewRateLimiter(now), rule))
	return router
}

func defaultRule() middleware.RateLimitRule {
	return middleware.RateLimitRule{MaxRequests: 10, Window: time.Minute}
}

func analyzePath(category Category) string {
	return "/api/v1/research-hub/" + url.PathEscape(string(category)) + "/analyze"
}

func doJSON(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func analyzeBody() map[string]any {
	return map[string]any{
		"topic_keyword": "standing desks",
		"user_query":    "are standing desks worth it",
		"project_id":    ownedProjectID,
	}
}

func TestAnalysisTypesEndpoint(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), nil)

	w := doJSON(router, http.MethodGet, "/api/v1/research-hub/analysis-types", "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var body struct {
		AnalysisTypes []struct {
			Name string `json:"name"`
			Code string `json:"code"`
		} `json:"analysis_types"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{
		"Pain & Frustration Analysis",
		"Question & Advice Mapping",
		"Pattern Detection",
		"Popular Products Analysis",
		"Avatars",
	}
	if len(body.AnalysisTypes) != len(want) {
		t.Fatalf("got %d types, want %d", len(body.AnalysisTypes), len(want))
	}
	for i, typ := range body.AnalysisTypes {
		if typ.Name != want[i] {
			t.Errorf("type[%d] = %q, want %q", i, typ.Name, want[i])
		}
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	producer := &fakeProducer{}
	d, _ := newDispatcher(producer)
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), nil)

	w := doJSON(router, http.MethodPost, analyzePath(CategoryPainFrustration), "user-1", analyzeBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var resp struct {
		ID     string `json:"id"`
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskID == "" || resp.Status != StatusProcessing {
		t.Errorf("response = %+v", resp)
	}

	// The dispatch body always carries insights and error, even while empty.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if string(fields["insights"]) != "[]" {
		t.Errorf("insights = %s, want []", fields["insights"])
	}
	if raw, ok := fields["error"]; !ok || string(raw) != "null" {
		t.Errorf("error = %s (present %v), want null", raw, ok)
	}
	if len(producer.messages) != 1 {
		t.Errorf("enqueued %d messages, want 1", len(producer.messages))
	}
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), nil)

	cases := []struct {
		name   string
		path   string
		userID string
		body   map[string]any
		status int
	}{
		{"unknown category", "/api/v1/research-hub/" + url.PathEscape("Sentiment Analysis") + "/analyze", "user-1", analyzeBody(), http.StatusBadRequest},
		{"missing identity", analyzePath(CategoryAvatars), "", analyzeBody(), http.StatusUnauthorized},
		{"blank topic", analyzePath(CategoryAvatars), "user-1", map[string]any{"user_query": "q", "project_id": ownedProjectID}, http.StatusBadRequest},
		{"blank query", analyzePath(CategoryAvatars), "user-1", map[string]any{"topic_keyword": "x", "project_id": ownedProjectID}, http.StatusBadRequest},
		{"foreign project", analyzePath(CategoryAvatars), "user-1", map[string]any{"topic_keyword": "x", "user_query": "q", "project_id": foreignProjectID}, http.StatusForbidden},
		{"malformed project id", analyzePath(CategoryAvatars), "user-1", map[string]any{"topic_keyword": "x", "user_query": "q", "project_id": "nope"}, http.StatusBadRequest},
		{"unknown project", analyzePath(CategoryAvatars), "user-1", map[string]any{"topic_keyword": "x", "user_query": "q", "project_id": "cafe0000-0000-4000-8000-000000000000"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, tc.path, tc.userID, tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tc.status, w.Body)
			}
		})
	}
}

func TestDispatchRateLimit(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), clock)

	for i := 0; i < 10; i++ {
		w := doJSON(router, http.MethodPost, analyzePath(CategoryPainFrustration), "user-1", analyzeBody())
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, body = %s", i+1, w.Code, w.Body)
		}
	}

	w := doJSON(router, http.MethodPost, analyzePath(CategoryPainFrustration), "user-1", analyzeBody())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("11th request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// A different user is not affected.
	w = doJSON(router, http.MethodPost, analyzePath(CategoryAvatars), "user-1b", analyzeBody())
	if w.Code == http.StatusTooManyRequests {
		t.Error("rate limit leaked across users")
	}

	// After the window slides, the original user is admitted again.
	now = now.Add(61 * time.Second)
	w = doJSON(router, http.MethodPost, analyzePath(CategoryPainFrustration), "user-1", analyzeBody())
	if w.Code != http.StatusOK {
		t.Errorf("post-window request: status = %d, body = %s", w.Code, w.Body)
	}
}

func TestResultsEndpoint(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), nil)

	rec, err := d.Analyze(context.Background(), "user-1", string(CategoryPatternDetection), validInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	base := "/api/v1/research-hub/" + url.PathEscape(string(CategoryPatternDetection)) + "/results/"

	w := doJSON(router, http.MethodGet, base+rec.TaskID, "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var got AnalysisRecord
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TaskID != rec.TaskID || got.Status != StatusProcessing {
		t.Errorf("record = %+v", got)
	}

	if w := doJSON(router, http.MethodGet, base+rec.TaskID, "intruder", nil); w.Code != http.StatusForbidden {
		t.Errorf("foreign read: status = %d, want 403", w.Code)
	}
	if w := doJSON(router, http.MethodGet, base+"not-a-uuid", "user-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad task id: status = %d, want 400", w.Code)
	}
	if w := doJSON(router, http.MethodGet, base+uuid.NewString(), "user-1", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown task: status = %d, want 404", w.Code)
	}
}

func TestListEndpointValidatesLimit(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), nil)

	path := "/api/v1/research-hub/" + url.PathEscape(string(CategoryAvatars)) + "/project/" + ownedProjectID
	if w := doJSON(router, http.MethodGet, path+"?limit=0", "user-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0: status = %d, want 400", w.Code)
	}
	if w := doJSON(router, http.MethodGet, path+"?limit=101", "user-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit=101: status = %d, want 400", w.Code)
	}
	if w := doJSON(router, http.MethodGet, path+"?limit=abc", "user-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit=abc: status = %d, want 400", w.Code)
	}
	if w := doJSON(router, http.MethodGet, path, "user-1", nil); w.Code != http.StatusOK {
		t.Errorf("default paging: status = %d, body = %s", w.Code, w.Body)
	}
}

func wsURL(server *httptest.Server, category Category, taskID string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") +
		"/api/v1/research-hub/" + url.PathEscape(string(category)) + "/ws/" + taskID
}

func dialWS(t *testing.T, rawURL, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-Id", userID)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(rawURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v (resp %v)", rawURL, err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

func expectClose(t *testing.T, conn *websocket.Conn, wantCode int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		closeErr, ok := err.(*websocket.CloseError)
		if !ok {
			t.Fatalf("read error %v, want close frame %d", err, wantCode)
		}
		if closeErr.Code != wantCode {
			t.Fatalf("close code = %d, want %d", closeErr.Code, wantCode)
		}
		return
	}
}

func TestWebSocketCloseCodes(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	notifier := NewNotifier()
	router := newTestRouter(t, d, notifier, defaultRule(), nil)
	server := httptest.NewServer(router)
	defer server.Close()

	rec, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), validInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	t.Run("bad task id", func(t *testing.T) {
		conn := dialWS(t, wsURL(server, CategoryAvatars, "not-a-uuid"), "user-1")
		defer conn.Close()
		expectClose(t, conn, 4000)
	})

	t.Run("not found", func(t *testing.T) {
		conn := dialWS(t, wsURL(server, CategoryAvatars, uuid.NewString()), "user-1")
		defer conn.Close()
		expectClose(t, conn, 4004)
	})

	t.Run("not authorized", func(t *testing.T) {
		conn := dialWS(t, wsURL(server, CategoryAvatars, rec.TaskID), "intruder")
		defer conn.Close()
		expectClose(t, conn, 4003)
	})
}

func TestWebSocketStreamsEvents(t *testing.T) {
	d, repo := newDispatcher(&fakeProducer{})
	notifier := NewNotifier()
	router := newTestRouter(t, d, notifier, defaultRule(), nil)
	server := httptest.NewServer(router)
	defer server.Close()

	rec, err := d.Analyze(context.Background(), "user-1", string(CategoryPainFrustration), validInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	conn := dialWS(t, wsURL(server, CategoryPainFrustration, rec.TaskID), "user-1")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot Event
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Status != StatusProcessing || snapshot.TaskID != rec.TaskID {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	// Complete the task out of band and publish the event.
	insights := json.RawMessage(`[{"title":"t","query":"are standing desks worth it"}]`)
	if err := repo.MarkCompleted(context.Background(), rec.TaskID, insights, "raw"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	// Publish can race the subscriber registration on slow machines; the
	// handler subscribes before its snapshot read, so by the time we received
	// the snapshot the subscription is live.
	notifier.Publish(Event{TaskID: rec.TaskID, Category: rec.Category, Status: EventCompleted, Insights: insights})

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Status != EventCompleted {
		t.Fatalf("event status = %q, want completed", ev.Status)
	}
	expectClose(t, conn, websocket.CloseNormalClosure)
}

func TestWebSocketTerminalSnapshotClosesImmediately(t *testing.T) {
	d, repo := newDispatcher(&fakeProducer{})
	router := newTestRouter(t, d, NewNotifier(), defaultRule(), nil)
	server := httptest.NewServer(router)
	defer server.Close()

	rec, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), validInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := repo.MarkCompleted(context.Background(), rec.TaskID, json.RawMessage("[]"), "raw"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	conn := dialWS(t, wsURL(server, CategoryAvatars, rec.TaskID), "user-1")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot Event
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Status != StatusCompleted {
		t.Fatalf("snapshot status = %q, want completed", snapshot.Status)
	}
	expectClose(t, conn, websocket.CloseNormalClosure)
}
