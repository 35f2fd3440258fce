package keepa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kyosuke-takei/slack-price-watch/internal/infra"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &infra.Config{}
	cfg.Keepa.APIKey = "test-key"
	cfg.Keepa.Domain = 5

	c := NewClient(cfg, infra.NewRateLimiter(10, 100), infra.NewGuard("test", 10, time.Minute))
	c.baseURL = srv.URL
	return c, srv
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
		ok   bool
	}{
		{"refill hint", `{"error":{"type":"METHOD_NOT_ALLOWED"},"refillIn":1500,"tokensLeft":-3}`, 1500 * time.Millisecond, true},
		{"zero refill", `{"refillIn":0}`, 0, false},
		{"negative refill", `{"refillIn":-100}`, 0, false},
		{"no hint", `{"error":{"type":"BAD_REQUEST"}}`, 0, false},
		{"not json", `<html>502</html>`, 0, false},
		{"empty", ``, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter([]byte(tt.body))
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseRetryAfter(%q) = (%s, %v), want (%s, %v)", tt.body, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClient_Search(t *testing.T) {
	var gotQuery atomic.Value
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		w.Write([]byte(`{"asinList":["B000AAA001","B000AAA002"],"totalResults":120}`))
	}))

	res, err := c.Search(context.Background(), "637872", 0, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.ASINs) != 2 || res.Total != 120 {
		t.Errorf("result = %+v", res)
	}

	q := gotQuery.Load().(string)
	for _, want := range []string{"category=637872", "domain=5", "page=0", "perPage=50", "sort=SALES"} {
		if !containsParam(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
}

func containsParam(query, param string) bool {
	return strings.Contains("&"+query+"&", "&"+param+"&")
}

func TestClient_DetailsRetriesAfterRateLimit(t *testing.T) {
	var calls int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"type":"NOT_ENOUGH_TOKEN"},"refillIn":10}`))
			return
		}
		w.Write([]byte(`{"products":[{"asin":"B000AAA001","title":"t","stats":{"current":[-1,1480,-1,12000],"totalOfferCount":5}}]}`))
	}))

	products, err := c.Details(context.Background(), []string{"B000AAA001"}, 90)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want a single retry after the rate limit", n)
	}
	if len(products) != 1 || products[0].ASIN != "B000AAA001" {
		t.Fatalf("products = %+v", products)
	}
	if v, ok := products[0].CurrentStat(StatNewPrice); !ok || v != 1480 {
		t.Errorf("new price stat = (%d, %v)", v, ok)
	}
}

func TestClient_PermanentErrorDoesNotRetry(t *testing.T) {
	var calls int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"BAD_REQUEST","message":"invalid asin"}}`))
	}))

	_, err := c.Details(context.Background(), []string{"bogus"}, 90)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, 4xx without a retry hint must not be retried", n)
	}
}

func TestClient_GuardOpenFailsFast(t *testing.T) {
	var calls int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	guard := infra.NewGuard("test", 1, time.Hour)
	guard.RecordFailure()
	c.guard = guard

	_, err := c.Search(context.Background(), "637872", 0, 50)
	if err != ErrUpstreamUnavailable {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("open guard must not touch the network")
	}
}

func TestClient_DetailsBatchTooLarge(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	asins := make([]string, DetailBatchSize+1)
	for i := range asins {
		asins[i] = "B000AAA001"
	}
	if _, err := c.Details(context.Background(), asins, 90); err == nil {
		t.Error("oversized batch must be rejected")
	}
}

func TestProduct_Helpers(t *testing.T) {
	p := Product{
		ImagesCSV: "61abcDEF._SL500_.jpg,71xyz.jpg",
		Stats:     &Stats{Current: []int64{2980, 1480, -1, 12000}},
	}

	t.Run("CurrentStat in range", func(t *testing.T) {
		if v, ok := p.CurrentStat(StatAmazonPrice); !ok || v != 2980 {
			t.Errorf("amazon = (%d, %v)", v, ok)
		}
		if v, ok := p.CurrentStat(StatSalesRank); !ok || v != 12000 {
			t.Errorf("rank = (%d, %v)", v, ok)
		}
	})

	t.Run("CurrentStat out of range", func(t *testing.T) {
		if _, ok := p.CurrentStat(10); ok {
			t.Error("index past the array must be absent")
		}
		if _, ok := (Product{}).CurrentStat(0); ok {
			t.Error("nil stats must be absent")
		}
	})

	t.Run("MainImageURL", func(t *testing.T) {
		want := imageBaseURL + "61abcDEF._SL500_.jpg"
		if got := p.MainImageURL(); got != want {
			t.Errorf("image = %q, want %q", got, want)
		}
		if got := (Product{}).MainImageURL(); got != "" {
			t.Errorf("empty csv should yield no image, got %q", got)
		}
	})
}
