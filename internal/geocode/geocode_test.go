package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Run("returns the first candidate", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("q")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"lat":"12.9753","lon":"77.6057"}]`))
		}))
		defer server.Close()

		client := MustNewClient(WithBaseURL(server.URL))
		point, err := client.Resolve(context.Background(), "12 MG Road, Bengaluru")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if point == nil {
			t.Fatal("expected a point")
		}
		if point.Latitude != 12.9753 || point.Longitude != 77.6057 {
			t.Errorf("unexpected point %+v", point)
		}
		if gotQuery != "12 MG Road, Bengaluru" {
			t.Errorf("unexpected query %q", gotQuery)
		}
	})

	t.Run("no candidates means no point and no error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		client := MustNewClient(WithBaseURL(server.URL))
		point, err := client.Resolve(context.Background(), "nowhere at all")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if point != nil {
			t.Errorf("expected nil point, got %+v", point)
		}
	})

	t.Run("empty address short-circuits", func(t *testing.T) {
		client := MustNewClient(WithBaseURL("http://geocoder.invalid"))
		point, err := client.Resolve(context.Background(), "")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if point != nil {
			t.Errorf("expected nil point for empty address, got %+v", point)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := MustNewClient(WithBaseURL(server.URL))
		if _, err := client.Resolve(context.Background(), "12 MG Road"); err == nil {
			t.Fatal("expected an error for a throttled response")
		}
	})

	t.Run("unparseable coordinates are an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"lat":"north","lon":"east"}]`))
		}))
		defer server.Close()

		client := MustNewClient(WithBaseURL(server.URL))
		if _, err := client.Resolve(context.Background(), "12 MG Road"); err == nil {
			t.Fatal("expected an error for bad coordinates")
		}
	})
}
