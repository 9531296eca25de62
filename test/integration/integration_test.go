// Package integration exercises a running server over the network. Point
// BASE_URL at it; the tests skip when it is unset.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"
)

type sneaker struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	BasePrice  float64         `json:"base_price"`
	Features   json.RawMessage `json:"features"`
	TotalPrice float64         `json:"total_price"`
}

func baseURL(tb testing.TB) string {
	tb.Helper()
	v := os.Getenv("BASE_URL")
	if v == "" {
		tb.Skip("BASE_URL not set")
	}
	return v
}

func waitReady(t *testing.T) string {
	t.Helper()
	u := baseURL(t)
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(u + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return u
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("service not ready")
	return ""
}

func send(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	r, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestIntegration_OpenAPIAndDocs(t *testing.T) {
	u := waitReady(t)
	for _, path := range []string{"/openapi.yaml", "/docs", "/healthz", "/debug/vars"} {
		resp, _ := send(t, http.MethodGet, u+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestIntegration_Lifecycle(t *testing.T) {
	u := waitReady(t)
	resp, body := send(t, http.MethodPost, u+"/api/sneakers",
		`{"name":"it","base_price":80,"features":{"material":{"id":"suede","price":12},"sole":{"id":"vintage","price":10}}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected generated X-Request-Id")
	}
	var s sneaker
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatal(err)
	}
	if s.TotalPrice != 102 {
		t.Fatalf("expected total 102, got %v", s.TotalPrice)
	}
	item := fmt.Sprintf("%s/api/sneakers/%d", u, s.ID)

	resp, body = send(t, http.MethodPut, item, `{"name":"renamed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var up sneaker
	_ = json.Unmarshal(body, &up)
	if up.Name != "renamed" || up.TotalPrice != 102 {
		t.Fatalf("rename changed pricing: %+v", up)
	}

	resp, _ = send(t, http.MethodDelete, item, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = send(t, http.MethodDelete, item, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_ValidationErrors(t *testing.T) {
	u := waitReady(t)
	for _, body := range []string{
		`{}`,
		`{"name":"x","features":"{broken"}`,
		`{"name":"x","features":{"color":{"id":"neon"},"material":{"id":"leather"}}}`,
	} {
		resp, _ := send(t, http.MethodPost, u+"/api/sneakers", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestIntegration_ConcurrentCreatesAreOwned(t *testing.T) {
	u := waitReady(t)
	const n = 25
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, body := send(t, http.MethodPost, u+"/api/sneakers", `{"name":"load"}`)
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("expected 201, got %d", resp.StatusCode)
				return
			}
			var s sneaker
			_ = json.Unmarshal(body, &s)
			ids <- s.ID
		}()
	}
	wg.Wait()
	close(ids)

	want := map[int64]bool{}
	for id := range ids {
		want[id] = true
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body := send(t, http.MethodGet, u+"/api/sneakers/created", "")
		var owned []int64
		_ = json.Unmarshal(body, &owned)
		found := 0
		for _, id := range owned {
			if want[id] {
				found++
			}
		}
		if found == len(want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d created ids reached the ownership index", found, len(want))
		}
		time.Sleep(100 * time.Millisecond)
	}
	for id := range want {
		send(t, http.MethodDelete, fmt.Sprintf("%s/api/sneakers/%d", u, id), "")
	}
}
