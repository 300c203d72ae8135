package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/twistedatrocity/swgaide/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", time.Second)
}

func TestFetchSnapshot(t *testing.T) {
	fetched := time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/galaxies/Starsider/resources" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"fetched_at": fetched,
			"resources": []map[string]interface{}{
				{"id": 4, "name": "Ironia", "class": "Iron", "availability": []string{"Naboo", "Rori"}},
			},
		})
	})

	snap, err := c.FetchSnapshot(context.Background(), "Starsider")
	if err != nil {
		t.Fatalf("FetchSnapshot failed: %v", err)
	}
	if !snap.FetchedAt().Equal(fetched) {
		t.Errorf("Expected fetched_at %v, got %v", fetched, snap.FetchedAt())
	}
	rec := snap.Lookup("Ironia")
	if rec == nil || rec.ID != 4 || !rec.AvailableOn(models.Rori) {
		t.Errorf("Unexpected record %+v", rec)
	}
}

func TestFetchSnapshotRejectsHTML(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>maintenance</html>"))
	})
	_, err := c.FetchSnapshot(context.Background(), "Starsider")
	if !errors.Is(err, ErrUnexpectedResponse) || !strings.Contains(err.Error(), "unsupported content-type: text/html") {
		t.Errorf("Expected unsupported content-type error, got %v", err)
	}
}

func TestSubmitClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    models.OutcomeKind
		detail  string
	}{
		{
			name: "created",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusCreated, map[string]int{"id": 9})
			},
			want: models.OutcomeSuccess,
		},
		{
			name:    "no content",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
			want:    models.OutcomeSuccess,
		},
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			want:    models.OutcomeAuthenticationFailure,
		},
		{
			name: "forbidden html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusForbidden)
			},
			want: models.OutcomeAuthenticationFailure,
		},
		{
			name: "html page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Write([]byte("<html>login</html>"))
			},
			want:   models.OutcomeTransientFailure,
			detail: "unsupported content-type: text/html",
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusBadGateway, map[string]string{}) },
			want:    models.OutcomeTransientFailure,
		},
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusNotFound, map[string]string{}) },
			want:    models.OutcomeStaleRecord,
		},
		{
			name: "already exists",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, conflictResponse{Reason: ReasonAlreadyExists})
			},
			want: models.OutcomeAlreadyExists,
		},
		{
			name: "wrong class",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, conflictResponse{Reason: ReasonWrongClass, Message: "listed as Copper"})
			},
			want:   models.OutcomeWrongResourceClass,
			detail: "listed as Copper",
		},
		{
			name: "stale",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, conflictResponse{Reason: ReasonStale})
			},
			want: models.OutcomeStaleRecord,
		},
		{
			name: "odd conflict",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, conflictResponse{Reason: "locked"})
			},
			want: models.OutcomeUnknownFailure,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad"})
			},
			want: models.OutcomeUnknownFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			ref := &models.CatalogRecord{ID: 4, Name: "Ironia"}
			got := c.SubmitAvailability(context.Background(), ref, models.Naboo)
			if got.Kind != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
			if tt.detail != "" && got.Detail != tt.detail {
				t.Errorf("Expected detail %q, got %q", tt.detail, got.Detail)
			}
		})
	}
}

func TestSubmitNewCollision(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/galaxies/Starsider/resources" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		if body["name"] != "Irnia" || body["force"] != false {
			t.Errorf("Unexpected body %v", body)
		}
		writeJSON(w, http.StatusConflict, conflictResponse{Reason: ReasonNameCollision, Candidates: []string{"Ironia"}})
	})

	d := &models.ResourceDraft{Name: "Irnia", Class: "Iron", Galaxy: "Starsider", Availability: models.NewPlanetSet(models.Naboo)}
	got := c.SubmitNew(context.Background(), d)
	if got.Kind != models.OutcomeNameCollision || len(got.Candidates) != 1 || got.Candidates[0] != "Ironia" {
		t.Errorf("Expected collision with Ironia, got %+v", got)
	}
}

func TestSubmitEditAndDepletedRoutes(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	ref := &models.CatalogRecord{ID: 12, Name: "Oakwood"}
	d := &models.ResourceDraft{Name: "Oakwood", Class: "Hard Wood"}

	c.SubmitEdit(context.Background(), ref, d)
	c.SubmitDepleted(context.Background(), ref, time.Unix(1792238400, 0))

	want := []string{"PUT /resources/12/stats", "POST /resources/12/depleted"}
	if len(seen) != 2 || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, seen)
	}
}

func TestSubmitNetworkFailureIsTransient(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond)
	got := c.SubmitAvailability(context.Background(), &models.CatalogRecord{ID: 1}, models.Naboo)
	if got.Kind != models.OutcomeTransientFailure {
		t.Errorf("Expected transient failure, got %s", got)
	}
}
