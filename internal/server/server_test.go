package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wgdzlh/coglib"
)

// Test server setup. 不触达真实COG的路径（校验、目录、健康检查）即可覆盖
func setupTestServer() *httptest.Server {
	s := New(Config{BaseURL: "https://files.example.org/soilgrids"}, "test")
	return httptest.NewServer(s.Routes())
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("Expected version test, got %v", body["version"])
	}
}

func TestVariablesEndpoint(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/variables")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Variables []struct {
			Code  string  `json:"code"`
			Unit  string  `json:"unit"`
			Scale float64 `json:"scale"`
		} `json:"variables"`
		Depths []string `json:"depths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Variables) == 0 || len(body.Depths) == 0 {
		t.Fatal("catalog must list variables and depths")
	}
	for _, v := range body.Variables {
		if v.Code == "" || v.Scale == 0 {
			t.Errorf("variable %+v missing code or scale", v)
		}
	}
}

func TestRasterOpenFailureNotCached(t *testing.T) {
	s := New(Config{BaseURL: "https://files.example.org/soilgrids"}, "test")
	calls := 0
	s.openCog = func(url string) (*coglib.CogRaster, error) {
		calls++
		return nil, coglib.ErrInvalidTif
	}
	v, err := coglib.LookupVariable("soc")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.raster(v, "0-5cm"); err != coglib.ErrInvalidTif {
		t.Fatalf("first open: want ErrInvalidTif, got %v", err)
	}
	// 打开失败不得驻留缓存，下一次请求须重试
	if _, _, err := s.raster(v, "0-5cm"); err != coglib.ErrInvalidTif {
		t.Fatalf("second open: want ErrInvalidTif, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("open attempted %d times, want one per request", calls)
	}
}

func TestTileValidation(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	cases := []struct {
		name string
		path string
		code int
	}{
		{"unknown variable", "/api/v1/tiles/humus/0-5cm/3/1/1.png", http.StatusNotFound},
		{"unknown depth", "/api/v1/tiles/soc/0-7cm/3/1/1.png", http.StatusNotFound},
		{"zoom too large", "/api/v1/tiles/soc/0-5cm/30/1/1.png", http.StatusBadRequest},
		{"column out of range", "/api/v1/tiles/soc/0-5cm/2/4/1.png", http.StatusBadRequest},
		{"row not a number", "/api/v1/tiles/soc/0-5cm/2/1/x.png", http.StatusBadRequest},
		{"missing png suffix", "/api/v1/tiles/soc/0-5cm/2/1/1", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + tc.path)
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.code {
				t.Errorf("GET %s: expected status %d, got %d", tc.path, tc.code, resp.StatusCode)
			}
		})
	}
}

func TestSampleValidation(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	cases := []struct {
		name  string
		query string
		code  int
	}{
		{"unknown variable", "variable=humus&depth=0-5cm&lat=10&lon=10", http.StatusNotFound},
		{"missing depth", "variable=soc&lat=10&lon=10", http.StatusNotFound},
		{"bad lat", "variable=soc&depth=0-5cm&lat=abc&lon=10", http.StatusBadRequest},
		{"lat out of range", "variable=soc&depth=0-5cm&lat=91&lon=10", http.StatusBadRequest},
		{"lon out of range", "variable=soc&depth=0-5cm&lat=10&lon=181", http.StatusBadRequest},
		{"missing lon", "variable=soc&depth=0-5cm&lat=10", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + "/api/v1/sample?" + tc.query)
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.code {
				t.Errorf("query %q: expected status %d, got %d", tc.query, tc.code, resp.StatusCode)
			}

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if body["error"] == "" || body["message"] == "" {
				t.Errorf("error response missing fields: %v", body)
			}
		})
	}
}

func TestClipValidation(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	cases := []struct {
		name  string
		query string
		code  int
	}{
		{"missing bbox", "variable=soc&depth=0-5cm", http.StatusBadRequest},
		{"short bbox", "variable=soc&depth=0-5cm&bbox=1,2,3", http.StatusBadRequest},
		{"non-numeric bbox", "variable=soc&depth=0-5cm&bbox=a,b,c,d", http.StatusBadRequest},
		{"inverted bbox", "variable=soc&depth=0-5cm&bbox=10,10,5,20", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + "/api/v1/clip?" + tc.query)
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.code {
				t.Errorf("query %q: expected status %d, got %d", tc.query, tc.code, resp.StatusCode)
			}
		})
	}
}
