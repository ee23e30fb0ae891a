package history_service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-sync-client/models"
)

func TestFetchHistory(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"sender":2,"content":"hi","created_at":"2024-05-01T10:00:00Z"},{"id":"2","sender":3,"content":"yo","created_at":"2024-05-01T10:01:00Z"}]`))
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL + "/"})
	got, err := client.FetchHistory(context.Background(), models.NewConversationKey(models.KindGroup, "3"), "Bearer abc")
	if err != nil {
		t.Fatalf("FetchHistory() failed: %v", err)
	}

	if gotPath != "/api/chat/group/3/messages/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" || got[1].Content != "yo" {
		t.Errorf("messages = %+v", got)
	}
}

func TestFetchHistoryStatusError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	if _, err := client.FetchHistory(context.Background(), models.NewConversationKey(models.KindPersonal, "7"), "abc"); err == nil {
		t.Fatal("FetchHistory() succeeded on 500")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want a single attempt", calls)
	}
}

func TestParseHistoryForms(t *testing.T) {
	cases := map[string]int{
		`{"messages":[{"id":1,"sender":2,"content":"a","created_at":"2024-05-01T10:00:00Z"}]}`: 1,
		`{"count":2,"results":[{"id":1,"sender":2,"content":"a","created_at":"2024-05-01T10:00:00Z"},{"id":2,"sender":2,"content":"b","created_at":"2024-05-01T10:00:00Z"}]}`: 2,
		`[]`:   0,
		`null`: 0,
		`{}`:   0,
	}
	for body, want := range cases {
		got, err := parseHistory([]byte(body))
		if err != nil {
			t.Errorf("parseHistory(%s) failed: %v", body, err)
			continue
		}
		if len(got) != want {
			t.Errorf("parseHistory(%s) returned %d messages, want %d", body, len(got), want)
		}
	}

	if _, err := parseHistory([]byte(`{"messages":"x"}`)); err == nil {
		t.Error("parseHistory() accepted a malformed body")
	}
}

func TestFetchHistoryRejectsInvalidKey(t *testing.T) {
	client := NewClient(nil)
	if _, err := client.FetchHistory(context.Background(), models.ConversationKey{}, "abc"); err == nil {
		t.Error("FetchHistory() accepted an empty key")
	}
}

func TestParseHistoryMixedTimestamps(t *testing.T) {
	body := `[
		{"id":1,"sender":2,"content":"a","created_at":"2024-05-01T10:00:00Z"},
		{"id":2,"sender":2,"content":"b","created_at":"2024-05-01T10:01:00"},
		{"id":3,"sender":2,"content":"c","created_at":"2024-05-01 10:02:00"},
		{"id":4,"sender":2,"content":"d","created_at":1714557780000},
		{"id":5,"sender":2,"content":"e","created_at":"yesterday"}
	]`
	got, err := parseHistory([]byte(body))
	if err != nil {
		t.Fatalf("parseHistory() failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("parseHistory() returned %d messages, want 5", len(got))
	}
	for i, minute := range []int{0, 1, 2, 3} {
		if got[i].SentAt.UTC().Minute() != minute || got[i].SentAt.UTC().Hour() != 10 {
			t.Errorf("message %s created_at = %v", got[i].ID, got[i].SentAt)
		}
	}
	if !got[4].SentAt.IsZero() {
		t.Errorf("unparseable created_at = %v, want zero", got[4].SentAt)
	}
}
