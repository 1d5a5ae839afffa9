package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestStreamEventsRejectsReverseWithoutHistory(t *testing.T) {
	apictx := newOrchestratorHarness(t, newStubScheduler(nil))

	srv := httptest.NewServer(http.HandlerFunc(apictx.streamEventsHandler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?history=false&reverse=true"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseUnsupportedData) {
		t.Fatalf("expected close code for unsupported data; got %v", err)
	}
}
