package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInstrumentPreservesStatusCode(t *testing.T) {
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/objectives", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
}

func TestSetReadyDoesNotPanicUnregistered(t *testing.T) {
	SetReady(true)
	SetReady(false)
}
