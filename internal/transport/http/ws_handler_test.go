package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

func TestWebSocketQuestionFlow(t *testing.T) {
	registry := memory.NewRoomRegistry(2 * time.Hour)
	registry.Seed(domain.RoomRecord{
		Code:      "ABC123",
		Name:      "Friday Quiz",
		Owner:     domain.Identity{Name: "Alice", Email: "alice@example.com"},
		ExpiresAt: time.Now().Add(2 * time.Hour),
	})
	service := app.NewRoomService(registry, app.NewHub(), app.Options{})
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	alice := dialAndJoin(t, server.URL, "Alice", "alice@example.com", "ABC123")
	defer alice.Close()
	bob := dialAndJoin(t, server.URL, "Bob", "bob@example.com", "ABC123")
	defer bob.Close()

	// Alice sees bob arrive.
	readUntil(t, alice, "member-joined")

	send(t, alice, "send-question", map[string]any{
		"roomCode":           "ABC123",
		"text":               "What is 2 + 2?",
		"options":            []string{"3", "4", "5"},
		"correctAnswerIndex": 1,
		"timeLimit":          30,
	})

	question := readUntil(t, bob, "new-question")
	if question["correctAnswer"] != nil && question["correctAnswer"] != "" {
		t.Fatalf("correct answer leaked on the wire: %+v", question)
	}
	questionID, _ := question["id"].(string)
	if questionID == "" {
		t.Fatalf("expected question id, got %+v", question)
	}

	send(t, bob, "submit-answer", map[string]any{
		"roomCode":   "ABC123",
		"questionId": questionID,
		"answer":     "4",
	})
	readUntil(t, bob, "answer-submitted")

	send(t, alice, "reveal-answer", map[string]any{"roomCode": "ABC123"})

	result := readUntil(t, bob, "answer-result")
	if result["isCorrect"] != true || result["totalScore"].(float64) != 10 {
		t.Fatalf("unexpected answer result: %+v", result)
	}
	revealed := readUntil(t, alice, "answer-revealed")
	scores, _ := revealed["scores"].(map[string]any)
	if scores["bob@example.com"].(float64) != 10 {
		t.Fatalf("unexpected score table: %+v", revealed)
	}
}

func TestWebSocketJoinUnknownRoom(t *testing.T) {
	registry := memory.NewRoomRegistry(time.Hour)
	service := app.NewRoomService(registry, app.NewHub(), app.Options{})
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server.URL)
	defer conn.Close()

	send(t, conn, "declare-identity", map[string]any{"name": "Alice", "email": "alice@example.com"})
	send(t, conn, "join-room", map[string]any{"roomCode": "NOPE"})

	errEvent := readUntil(t, conn, "room-error")
	if errEvent["message"] != "room not found" {
		t.Fatalf("unexpected error payload: %+v", errEvent)
	}
}

func TestCreateAndFetchRoomOverHTTP(t *testing.T) {
	registry := memory.NewRoomRegistry(2 * time.Hour)
	roomHandler := NewRoomHandler(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", roomHandler.CreateRoom)
	mux.HandleFunc("GET /rooms/{code}", roomHandler.GetRoom)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Post(server.URL+"/rooms", "application/json",
		strings.NewReader(`{"name":"Friday Quiz","ownerName":"Alice","ownerEmail":"alice@example.com"}`))
	if err != nil {
		t.Fatalf("post room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var record domain.RoomRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Code == "" || record.ExpiresAt.IsZero() {
		t.Fatalf("incomplete record %+v", record)
	}

	got, err := http.Get(server.URL + "/rooms/" + record.Code)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.StatusCode)
	}

	missing, err := http.Get(server.URL + "/rooms/NOPE")
	if err != nil {
		t.Fatalf("get missing room: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}

func dial(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	u := "ws" + serverURL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func dialAndJoin(t *testing.T, serverURL, name, email, code string) *websocket.Conn {
	t.Helper()
	conn := dial(t, serverURL)
	send(t, conn, "declare-identity", map[string]any{"name": name, "email": email})
	send(t, conn, "join-room", map[string]any{"roomCode": code, "name": name, "email": email})
	joined := readUntil(t, conn, "room-joined")
	if joined["code"] != code {
		t.Fatalf("expected snapshot for %s, got %+v", code, joined)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

// readUntil drains events until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %q: %v", eventType, err)
		}
		if msg.Type == eventType {
			return msg.Payload
		}
	}
}
