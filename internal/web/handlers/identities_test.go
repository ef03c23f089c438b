package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/mock"
	"github.com/kozaktomas/face-login/internal/facematch"
)

func newIdentitiesHandler(t *testing.T) (*IdentitiesHandler, *mock.MockIdentityStore) {
	t.Helper()
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.Identity{Name: "Alice", Embedding: []float32{0, 0}})
	store.AddIdentity(database.Identity{Name: "Alicia", Embedding: []float32{0.1, 0}})
	store.AddIdentity(database.Identity{Name: "Bob", Embedding: []float32{5, 5}})
	store.AddIdentity(database.Identity{Name: "Carol", Embedding: []float32{-3, 2}})
	return NewIdentitiesHandler(store, facematch.NewIndex(facematch.Euclidean)), store
}

func TestIdentitiesHandler_List(t *testing.T) {
	handler, _ := newIdentitiesHandler(t)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Identities []IdentityResponse `json:"identities"`
		Count      int                `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 4 || len(resp.Identities) != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Identities[0].Name != "Alice" || resp.Identities[0].Dim != 2 {
		t.Errorf("first identity = %+v, want Alice with 2 dimensions", resp.Identities[0])
	}
}

func TestIdentitiesHandler_List_StorageError(t *testing.T) {
	handler, store := newIdentitiesHandler(t)
	store.LookupAllError = errors.New("connection refused")

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestIdentitiesHandler_Similar(t *testing.T) {
	handler, _ := newIdentitiesHandler(t)

	tests := []struct {
		name       string
		param      string
		query      string
		wantStatus int
		wantFirst  string
		wantLen    int
	}{
		{"nearest first", "alice", "", http.StatusOK, "Alicia", 3},
		{"limit", "ALICE", "?limit=1", http.StatusOK, "Alicia", 1},
		{"unknown identity", "dave", "", http.StatusNotFound, "", 0},
		{"bad limit", "alice", "?limit=abc", http.StatusBadRequest, "", 0},
		{"zero limit", "alice", "?limit=0", http.StatusBadRequest, "", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/identities/"+tc.param+"/similar"+tc.query, nil)
			req = requestWithChiParams(req, map[string]string{"name": tc.param})
			recorder := httptest.NewRecorder()
			handler.Similar(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}

			var resp SimilarResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Name != "Alice" {
				t.Errorf("name = %q, want stored display name Alice", resp.Name)
			}
			if len(resp.Similar) != tc.wantLen {
				t.Fatalf("got %d similar identities, want %d", len(resp.Similar), tc.wantLen)
			}
			if resp.Similar[0].Name != tc.wantFirst {
				t.Errorf("nearest = %q, want %q", resp.Similar[0].Name, tc.wantFirst)
			}
			for _, m := range resp.Similar {
				if m.Name == "Alice" {
					t.Error("identity listed as similar to itself")
				}
			}
		})
	}
}

func TestIdentitiesHandler_Similar_SeesNewEnrollments(t *testing.T) {
	handler, store := newIdentitiesHandler(t)

	similar := func() []facematch.Match {
		req := requestWithChiParams(
			httptest.NewRequest(http.MethodGet, "/api/v1/identities/bob/similar?limit=1", nil),
			map[string]string{"name": "bob"},
		)
		recorder := httptest.NewRecorder()
		handler.Similar(recorder, req)
		var resp SimilarResponse
		parseJSONResponse(t, recorder, &resp)
		return resp.Similar
	}

	if got := similar(); len(got) != 1 || got[0].Name == "Bobby" {
		t.Fatalf("unexpected initial result %+v", got)
	}

	store.AddIdentity(database.Identity{Name: "Bobby", Embedding: []float32{5, 5.1}})
	if got := similar(); len(got) != 1 || got[0].Name != "Bobby" {
		t.Errorf("after enrollment nearest = %+v, want Bobby", got)
	}
}
