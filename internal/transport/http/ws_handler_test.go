package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dus-exam-service/internal/app"
	"dus-exam-service/internal/domain"
	"dus-exam-service/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, tick time.Duration) (*httptest.Server, *memory.ResultStore) {
	t.Helper()
	results := memory.NewResultStore()
	return newServerWithResults(t, tick, results), results
}

func newServerWithResults(t *testing.T, tick time.Duration, results app.ResultStore) *httptest.Server {
	t.Helper()
	exams := memory.NewExamRepository(memory.NewStaticExamLoader(sampleExams()), time.Minute)
	service := app.NewExamService(memory.NewSessionStore(), exams, results, zerolog.Nop(), app.WithTickInterval(tick))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/exam", NewWSHandler(service, zerolog.Nop()).ServeWS)
	NewRESTHandler(service, "secret", zerolog.Nop()).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// flakyResults fails the first failures saves.
type flakyResults struct {
	*memory.ResultStore
	mu       sync.Mutex
	failures int
}

func (f *flakyResults) SaveResult(ctx context.Context, r domain.Result) (string, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return "", errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.ResultStore.SaveResult(ctx, r)
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/exam?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}

func stateWhere(pred func(domain.SessionState) bool) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var state domain.SessionState
		if err := json.Unmarshal(raw, &state); err != nil {
			return false
		}
		return pred(state)
	}
}

func TestWebSocketExamFlow(t *testing.T) {
	server, results := newTestServer(t, time.Hour)
	conn := dial(t, server, "examId=exam-1&name=Ayla")

	readUntil(t, conn, "state", stateWhere(func(s domain.SessionState) bool {
		return s.Phase == domain.PhaseInProgress && s.Remaining == 60 && s.QuestionCount == 2
	}))

	sendCommand(t, conn, "select", map[string]any{"questionId": "q1", "option": 0})
	readUntil(t, conn, "state", stateWhere(func(s domain.SessionState) bool { return s.Answered == 1 }))

	sendCommand(t, conn, "select", map[string]any{"questionId": "q2", "option": 1})
	raw := readUntil(t, conn, "error", nil)
	var failure errorPayload
	_ = json.Unmarshal(raw, &failure)
	if failure.Kind != domain.KindValidation {
		t.Fatalf("expected validation error for non-current question, got %+v", failure)
	}

	sendCommand(t, conn, "navigate", map[string]any{"delta": 1})
	readUntil(t, conn, "state", stateWhere(func(s domain.SessionState) bool { return s.Current == 1 }))
	sendCommand(t, conn, "select", map[string]any{"questionId": "q2", "option": 1})
	readUntil(t, conn, "state", stateWhere(func(s domain.SessionState) bool { return s.Answered == 2 }))

	sendCommand(t, conn, "finish", map[string]any{"confirmed": false})
	readUntil(t, conn, "error", nil)

	sendCommand(t, conn, "finish", map[string]any{"confirmed": true})
	raw = readUntil(t, conn, "finished", nil)
	var finished finishedPayload
	if err := json.Unmarshal(raw, &finished); err != nil {
		t.Fatalf("decode finished: %v", err)
	}
	if finished.Result.ID == "" || finished.Result.TotalNet != 2 || finished.Result.StudentName != "Ayla" {
		t.Fatalf("unexpected result %+v", finished.Result)
	}
	if _, err := results.LoadResult(context.Background(), finished.Result.ID); err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
}

func TestWebSocketTimerExpiryFinishes(t *testing.T) {
	server, _ := newTestServer(t, time.Millisecond)
	conn := dial(t, server, "examId=exam-1&name=Ayla")

	raw := readUntil(t, conn, "finished", nil)
	var finished finishedPayload
	if err := json.Unmarshal(raw, &finished); err != nil {
		t.Fatalf("decode finished: %v", err)
	}
	if finished.Result.Foundational.Empty != 1 || finished.Result.Clinical.Empty != 1 || finished.Result.TotalNet != 0 {
		t.Fatalf("expected an all-empty result, got %+v", finished.Result)
	}
}

func TestWebSocketReportsFailedSaveAfterExpiry(t *testing.T) {
	results := &flakyResults{ResultStore: memory.NewResultStore(), failures: 2}
	server := newServerWithResults(t, time.Millisecond, results)
	conn := dial(t, server, "examId=exam-1&name=Ayla")

	expectPersistence := func() {
		t.Helper()
		raw := readUntil(t, conn, "error", nil)
		var failure errorPayload
		_ = json.Unmarshal(raw, &failure)
		if failure.Kind != domain.KindPersistence {
			t.Fatalf("expected persistence error, got %+v", failure)
		}
	}

	expectPersistence()
	sendCommand(t, conn, "finish", map[string]any{"confirmed": true})
	expectPersistence()
	sendCommand(t, conn, "finish", map[string]any{"confirmed": true})

	raw := readUntil(t, conn, "finished", nil)
	var finished finishedPayload
	if err := json.Unmarshal(raw, &finished); err != nil {
		t.Fatalf("decode finished: %v", err)
	}
	if _, err := results.LoadResult(context.Background(), finished.Result.ID); err != nil {
		t.Fatalf("retried result not stored: %v", err)
	}
}

func TestWebSocketRejectsBadStart(t *testing.T) {
	server, _ := newTestServer(t, time.Hour)

	resp, err := http.Get(server.URL + "/ws/exam?name=Ayla")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without examId, got %d", resp.StatusCode)
	}

	cases := []struct {
		query string
		kind  domain.Kind
	}{
		{"examId=missing&name=Ayla", domain.KindNotFound},
		{"examId=exam-1&name=%20%20", domain.KindValidation},
		{"examId=closed&name=Ayla", domain.KindExpiredAccess},
	}
	for _, tc := range cases {
		conn := dial(t, server, tc.query)
		raw := readUntil(t, conn, "error", nil)
		var failure errorPayload
		_ = json.Unmarshal(raw, &failure)
		if failure.Kind != tc.kind {
			t.Fatalf("%s: expected %s, got %+v", tc.query, tc.kind, failure)
		}
	}
}

func sampleExams() map[string]domain.Exam {
	opts := []string{"A", "B", "C", "D", "E"}
	past := time.Now().Add(-time.Hour)
	return map[string]domain.Exam{
		"exam-1": {
			ID:              "exam-1",
			Title:           "Deneme 1",
			DurationMinutes: 1,
			Questions: []domain.Question{
				{ID: "q1", Text: "Temel soru", Category: domain.CategoryFoundational, Lesson: "Anatomi", Options: opts, CorrectOption: 0},
				{ID: "q2", Text: "Klinik soru", Category: domain.CategoryClinical, Lesson: "Endodonti", Options: opts, CorrectOption: 1},
			},
		},
		"closed": {
			ID:              "closed",
			Title:           "Kapanmış",
			DurationMinutes: 1,
			EndDate:         &past,
		},
	}
}
