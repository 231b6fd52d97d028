package prestashop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-migration-service/internal/clients"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "testkey", ModeAPI, testLogger()), server
}

func productJSON(id int, name string) map[string]interface{} {
	return map[string]interface{}{
		"id":    fmt.Sprintf("%d", id),
		"name":  map[string]interface{}{"language": map[string]interface{}{"1": map[string]interface{}{"value": name}}},
		"price": "10.00",
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestBuildURLCarriesAuth(t *testing.T) {
	c := NewClient("http://shop.example/", "secret", ModeAPI, testLogger())
	u := c.buildURL("products", nil)
	assert.Contains(t, u, "http://shop.example/api/products?")
	assert.Contains(t, u, "ws_key=secret")
	assert.Contains(t, u, "output_format=JSON")

	c = NewClient("http://shop.example", "secret", ModeDispatcher, testLogger())
	u = c.buildURL("products", nil)
	assert.Contains(t, u, "/webservice/dispatcher.php?")
	assert.Contains(t, u, "url=products")
}

func TestFetchProductDirect(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/products/5", r.URL.Path)
		writeJSON(w, map[string]interface{}{"product": productJSON(5, "Shirt")})
	})
	defer server.Close()

	p, err := client.FetchProduct(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "5", p.SourceID)
	assert.Equal(t, "Shirt", p.Name)
	assert.InDelta(t, 10.0, p.Price, 0.001)
}

func TestFetchProductFilterFallback(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/products/7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("filter[id]") == "[7]" {
			writeJSON(w, map[string]interface{}{"products": []interface{}{productJSON(7, "Cap")}})
			return
		}
		writeJSON(w, map[string]interface{}{"products": []interface{}{}})
	})
	defer server.Close()

	p, err := client.FetchProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "7", p.SourceID)
	assert.Equal(t, "Cap", p.Name)
}

func TestFetchProductScanFallback(t *testing.T) {
	// Direct 404s, filter answers with an ID-only stub, the sorted single
	// fetch lands on the wrong row; the sorted page scan finds the product.
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path == "/api/products/12" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if q.Get("filter[id]") == "[12]" {
			writeJSON(w, map[string]interface{}{"products": []interface{}{
				map[string]interface{}{"id": "12"},
			}})
			return
		}
		if q.Get("limit") == "11,1" {
			writeJSON(w, map[string]interface{}{"products": []interface{}{productJSON(40, "Wrong")}})
			return
		}
		writeJSON(w, map[string]interface{}{"products": []interface{}{
			productJSON(11, "Other"),
			productJSON(12, "Socks"),
		}})
	})
	defer server.Close()

	p, err := client.FetchProduct(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "12", p.SourceID)
	assert.Equal(t, "Socks", p.Name)
}

func TestFetchProductExhaustionIsNotFound(t *testing.T) {
	// Every strategy comes back empty or stub-only. A short page ends the
	// scans after their first request.
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path == "/api/products/99" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if q.Get("filter[id]") == "[99]" {
			writeJSON(w, map[string]interface{}{"products": []interface{}{
				map[string]interface{}{"id": "99"},
			}})
			return
		}
		writeJSON(w, map[string]interface{}{"products": []interface{}{productJSON(1, "Only")}})
	})
	defer server.Close()

	_, err := client.FetchProduct(context.Background(), 99)
	assert.ErrorIs(t, err, clients.ErrNotFound)
}

func TestListPagePaginationTerminates(t *testing.T) {
	// 237 products: two full pages of 100 then a short page of 37.
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		var offset, limit int
		fmt.Sscanf(r.URL.Query().Get("limit"), "%d,%d", &offset, &limit)
		items := []interface{}{}
		for i := offset; i < offset+limit && i < 237; i++ {
			items = append(items, productJSON(i+1, fmt.Sprintf("P%d", i+1)))
		}
		writeJSON(w, map[string]interface{}{"products": items})
	})
	defer server.Close()

	ctx := context.Background()
	total := 0
	calls := 0
	offset := 0
	for {
		result, err := client.ListPage(ctx, offset, 100)
		require.NoError(t, err)
		calls++
		total += len(result.Items)
		if !result.HasMore {
			break
		}
		offset += 100
	}

	assert.Equal(t, 3, calls)
	assert.Equal(t, 237, total)
}

func TestListPageRetriesWithoutSort(t *testing.T) {
	sortedCalls := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sort") != "" {
			sortedCalls++
			writeJSON(w, map[string]interface{}{"products": []interface{}{}})
			return
		}
		writeJSON(w, map[string]interface{}{"products": []interface{}{productJSON(1, "One")}})
	})
	defer server.Close()

	result, err := client.ListPage(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sortedCalls)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "One", result.Items[0].Name)
	assert.False(t, result.HasMore)
}

func TestListPageWrapperShapes(t *testing.T) {
	shapes := []map[string]interface{}{
		{"products": map[string]interface{}{"product": []interface{}{productJSON(1, "A")}}},
		{"products": []interface{}{productJSON(1, "A")}},
		{"prestashop": map[string]interface{}{"products": []interface{}{productJSON(1, "A")}}},
		{"products": map[string]interface{}{"0": productJSON(1, "A")}},
	}

	for i, shape := range shapes {
		shape := shape
		t.Run(fmt.Sprintf("shape_%d", i), func(t *testing.T) {
			client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, shape)
			})
			defer server.Close()

			result, err := client.ListPage(context.Background(), 0, 10)
			require.NoError(t, err)
			require.Len(t, result.Items, 1)
			assert.Equal(t, "1", result.Items[0].ID)
			assert.Equal(t, "A", result.Items[0].Name)
		})
	}
}

func TestFetchCategory(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/categories/3", r.URL.Path)
		writeJSON(w, map[string]interface{}{"category": map[string]interface{}{
			"id":           "3",
			"id_parent":    "2",
			"name":         map[string]interface{}{"language": map[string]interface{}{"1": map[string]interface{}{"value": "Shoes"}}},
			"link_rewrite": map[string]interface{}{"language": map[string]interface{}{"1": map[string]interface{}{"value": "shoes"}}},
		}})
	})
	defer server.Close()

	info, err := client.FetchCategory(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "3", info.ID)
	assert.Equal(t, "2", info.ParentID)
	assert.Equal(t, "Shoes", info.Name)
	assert.Equal(t, "shoes", info.SlugHint)
}

func TestConvertProductAssociations(t *testing.T) {
	client := NewClient("http://shop.example", "k", ModeAPI, testLogger())

	raw := map[string]interface{}{
		"id":                  "8",
		"name":                "Boots",
		"price":               "59.90",
		"active":              "1",
		"id_category_default": "4",
		"id_default_image":    "21",
		"id_manufacturer":     "2",
		"manufacturer_name":   "Acme",
		"associations": map[string]interface{}{
			"categories": map[string]interface{}{"category": []interface{}{
				map[string]interface{}{"id": "3"},
				map[string]interface{}{"id": "4"},
			}},
			"images": map[string]interface{}{"image": []interface{}{
				map[string]interface{}{"id": "20"},
				map[string]interface{}{"id": "21"},
			}},
			"stock_availables": map[string]interface{}{"stock_available": []interface{}{
				map[string]interface{}{"id": "77", "quantity": "6"},
			}},
		},
	}

	p := client.convertProduct(raw, 8)
	assert.Equal(t, []string{"3", "4"}, p.CategoryIDs)
	assert.Equal(t, 6, p.Quantity)
	// Default image leads and duplicates collapse.
	require.Len(t, p.Images, 2)
	assert.Equal(t, 21, p.Images[0].SourceImageID)
	assert.Equal(t, 20, p.Images[1].SourceImageID)
	assert.Equal(t, 2, p.Manufacturer.ID)
	assert.Equal(t, "Acme", p.Manufacturer.Name)
	require.Len(t, p.Manufacturer.LogoURLCandidates, 2)
	assert.Equal(t, "http://shop.example/img/m/2.jpg", p.Manufacturer.LogoURLCandidates[0])
}
