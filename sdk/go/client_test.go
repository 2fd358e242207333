package demandsdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUpdateDemandSendsOnlySetFields(t *testing.T) {
	var gotBody map[string]any
	var gotPath, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReqID = r.Header.Get("X-Request-Id")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"DMD-0001","category":"stalled","subgroup":"BI Analytics","responsible":["Ana"]}`)
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	cat := "stalled"
	d, err := c.UpdateDemand(context.Background(), "DMD-0001", DemandPatch{Category: &cat})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotPath != "/api/demands/DMD-0001" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotReqID == "" {
		t.Fatalf("expected a request id header")
	}
	if len(gotBody) != 1 || gotBody["category"] != "stalled" {
		t.Fatalf("expected category-only body, got %v", gotBody)
	}
	if string(d.Subgroup) != `"BI Analytics"` {
		t.Fatalf("subgroup should stay raw, got %s", string(d.Subgroup))
	}
}

func TestListDemandsQuery(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	items, err := c.ListDemands(context.Background(), ListOptions{Subgroup: "Help Desk", Category: "stalled"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items")
	}
	if !strings.Contains(rawQuery, "subgroup=Help+Desk") || !strings.Contains(rawQuery, "category=stalled") {
		t.Fatalf("unexpected query %s", rawQuery)
	}
	if strings.Contains(rawQuery, "priority") {
		t.Fatalf("empty filters must not be sent: %s", rawQuery)
	}
}

func TestAPIErrorDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":"not_found","message":"not found"}}`)
	}))
	defer srv.Close()

	err := New(srv.URL).DeleteDemand(context.Background(), "DMD-0404")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestBulkDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{"deleted": len(body.IDs), "message": "ok"})
	}))
	defer srv.Close()

	res, err := New(srv.URL).BulkDelete(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if res.Deleted != 2 {
		t.Fatalf("expected 2, got %d", res.Deleted)
	}
}
