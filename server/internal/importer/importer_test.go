package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/config"
)

// exporterPage is a two-day page from a line controller.
const exporterPage = `
# HELP plant_output_units Good units produced in the period.
# TYPE plant_output_units gauge
plant_output_units{machine="ACO2",facility="A",date="2025-11-18"} 1200
plant_output_units{machine="ACO2",facility="A",date="2025-11-17"} 1150
plant_output_units{machine="ACO3",facility="A",date="2025-11-17"} 920
# HELP plant_energy_kwh Energy drawn in the period.
# TYPE plant_energy_kwh gauge
plant_energy_kwh{machine="ACO2",facility="A",date="2025-11-18"} 152
plant_energy_kwh{machine="ACO2",facility="A",date="2025-11-17"} 155
plant_energy_kwh{machine="ACO3",facility="A",date="2025-11-17"} 148
# HELP plant_oee Overall equipment effectiveness as a fraction.
# TYPE plant_oee gauge
plant_oee{machine="ACO2",facility="A",date="2025-11-18"} 0.85
plant_oee{machine="ACO2",facility="A",date="2025-11-17"} 0.82
plant_oee{machine="ACO3",facility="A",date="2025-11-17"} 0.68
# HELP go_goroutines Number of goroutines.
# TYPE go_goroutines gauge
go_goroutines 12
`

func TestParse(t *testing.T) {
	rows, err := Parse(strings.NewReader(exporterPage), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []types.Row{
		{"date": "2025-11-17", "facility_id": "A", "entity_id": "ACO2", "output_qty": 1150.0, "energy_kwh": 155.0, "oee_raw": 0.82},
		{"date": "2025-11-17", "facility_id": "A", "entity_id": "ACO3", "output_qty": 920.0, "energy_kwh": 148.0, "oee_raw": 0.68},
		{"date": "2025-11-18", "facility_id": "A", "entity_id": "ACO2", "output_qty": 1200.0, "energy_kwh": 152.0, "oee_raw": 0.85},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Parse() =\n%v\nwant\n%v", rows, want)
	}
}

func TestParse_PercentAndDefaults(t *testing.T) {
	page := `
# TYPE plant_output_units gauge
plant_output_units{machine="M1"} 1000
# TYPE plant_energy_kwh gauge
plant_energy_kwh{machine="M1"} 100
# TYPE plant_oee_percent gauge
plant_oee_percent{machine="M1"} 76.1
`
	rows, err := Parse(strings.NewReader(page), "line-b")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r[types.FieldFacilityID] != "line-b" {
		t.Errorf("facility_id = %v, want the source default", r[types.FieldFacilityID])
	}
	if _, ok := r[types.FieldDate]; ok {
		t.Error("undated sample produced a date column")
	}
	if v := r[types.FieldOEERaw].(float64); v < 0.7609 || v > 0.7611 {
		t.Errorf("oee_raw = %v, want 0.761", v)
	}
}

func TestParse_NoFacility(t *testing.T) {
	rows, err := Parse(strings.NewReader("plant_oee{machine=\"M1\"} 0.9\n"), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := rows[0][types.FieldFacilityID]; ok {
		t.Error("row without facility label or default carries facility_id")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		wantErr string
		is      error
	}{
		{"missing machine label", "plant_oee{facility=\"A\"} 0.9\n", "machine", nil},
		{"no plant metrics", "go_goroutines 12\n", "", ErrNoSamples},
		{"not an exposition", "{{{ nope", "parse exposition", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.page), "")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("error = %v, want %v", err, tc.is)
			}
			if tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestCollector_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(exporterPage))
	}))
	defer srv.Close()

	c := NewCollector(config.Source{ID: "line-a", Endpoint: srv.URL})
	rows, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestCollector_Auth(t *testing.T) {
	tests := []struct {
		name  string
		auth  config.SourceAuth
		check func(r *http.Request) bool
	}{
		{
			name:  "apikey",
			auth:  config.SourceAuth{Mode: "apikey", Header: "x-line-key", KeyEnv: "TEST_LINE_KEY"},
			check: func(r *http.Request) bool { return r.Header.Get("x-line-key") == "k-123" },
		},
		{
			name:  "apikey default header",
			auth:  config.SourceAuth{Mode: "apikey", KeyEnv: "TEST_LINE_KEY"},
			check: func(r *http.Request) bool { return r.Header.Get("x-api-key") == "k-123" },
		},
		{
			name:  "bearer",
			auth:  config.SourceAuth{Mode: "bearer", TokenEnv: "TEST_LINE_TOKEN"},
			check: func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer t-456" },
		},
		{
			name: "basic",
			auth: config.SourceAuth{Mode: "basic", Username: "ops", PasswordEnv: "TEST_LINE_PASS"},
			check: func(r *http.Request) bool {
				u, p, ok := r.BasicAuth()
				return ok && u == "ops" && p == "p-789"
			},
		},
		{
			name:  "none",
			auth:  config.SourceAuth{Mode: "none"},
			check: func(r *http.Request) bool { return r.Header.Get("Authorization") == "" },
		},
	}
	t.Setenv("TEST_LINE_KEY", "k-123")
	t.Setenv("TEST_LINE_TOKEN", "t-456")
	t.Setenv("TEST_LINE_PASS", "p-789")

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !tc.check(r) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(exporterPage))
			}))
			defer srv.Close()

			c := NewCollector(config.Source{ID: "s", Endpoint: srv.URL, Auth: tc.auth})
			if _, err := c.Collect(context.Background()); err != nil {
				t.Errorf("Collect() error = %v", err)
			}
		})
	}
}

func TestCollector_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewCollector(config.Source{ID: "down", Endpoint: srv.URL}).Collect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Collect() error = %v, want unexpected status 503", err)
	}
}
