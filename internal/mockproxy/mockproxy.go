// Package mockproxy serves canned vendor payloads in the shapes the real
// search/inventory proxy returns. It backs cmd/mock-proxy and the fetcher
// and engine tests.
package mockproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sync"
	"time"

	"stockwatch/pkg/models"
)

// Item is one product of the catalog. Price is in major units; chain2
// payloads carry it as cents.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"imageUrl"`
	Price     int64           `json:"price"`
	Hall      string          `json:"hall,omitempty"`
	Stock     map[string]bool `json:"stock"`
}

type Catalog struct {
	Stores map[models.ChainID][]models.Store `json:"stores"`
	Items  map[models.ChainID][]Item         `json:"items"`
}

// LoadCatalog reads a catalog file in the same JSON shape.
func LoadCatalog(path string) (Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("catalog %s invalid JSON: %w", path, err)
	}
	return c, nil
}

// DemoCatalog is served when no catalog file is given.
func DemoCatalog() Catalog {
	return Catalog{
		Stores: map[models.ChainID][]models.Store{
			models.Chain1: {
				{StoreID: "01", Name: "AM Escazú"},
				{StoreID: "02", Name: "AM Heredia"},
				{StoreID: "03", Name: "AM Tamarindo"},
			},
			models.Chain2: {
				{StoreID: "ch-llorente", Name: "Llorente"},
				{StoreID: "ch-zapote", Name: "Zapote"},
				{StoreID: "ch-brisas", Name: "Brisas"},
			},
		},
		Items: map[models.ChainID][]Item{
			models.Chain1: {
				{ProductID: "3001", Name: "Leche Deslactosada 1L", Price: 1250, Hall: "Pasillo 4", Stock: map[string]bool{"01": true}},
				{ProductID: "3002", Name: "Café Molido 500g", Price: 4200, Stock: map[string]bool{"03": true}},
				{ProductID: "4002", Name: "Yogurt Natural", Price: 950, Stock: map[string]bool{"02": true}},
			},
			models.Chain2: {
				{ProductID: "210400", Name: "Aceite de Oliva 2L", Price: 10999, Stock: map[string]bool{"ch-zapote": true}},
				{ProductID: "555001", Name: "Papel Higiénico 30 rollos", Price: 8995, Stock: map[string]bool{}},
			},
		},
	}
}

// Server is safe for concurrent use; tests mutate stock between cycles.
type Server struct {
	mu      sync.Mutex
	catalog Catalog
	failing map[string]bool
	down    bool
	delay   time.Duration
	calls   map[string]int
}

func New(c Catalog) *Server {
	if c.Stores == nil {
		c.Stores = map[models.ChainID][]models.Store{}
	}
	if c.Items == nil {
		c.Items = map[models.ChainID][]Item{}
	}
	return &Server{catalog: c, failing: map[string]bool{}, calls: map[string]int{}}
}

// SetStock flips one product's inventory at one store.
func (s *Server) SetStock(chain models.ChainID, productID, storeID string, inStock bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.catalog.Items[chain] {
		it := &s.catalog.Items[chain][i]
		if it.ProductID != productID {
			continue
		}
		if it.Stock == nil {
			it.Stock = map[string]bool{}
		}
		it.Stock[storeID] = inStock
	}
}

// FailProduct makes availability requests for productID return 500.
func (s *Server) FailProduct(productID string, fail bool) {
	s.mu.Lock()
	s.failing[productID] = fail
	s.mu.Unlock()
}

// SetDown makes every request return 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// SetDelay holds every response for d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Calls reports how many requests a route has served.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stores", s.wrap("stores", s.stores))
	mux.HandleFunc("POST /availability", s.wrap("availability", s.algoliaAvailability))
	mux.HandleFunc("POST /pricesmart-availability", s.wrap("pricesmart-availability", s.priceSmart))
	mux.HandleFunc("POST /recommendations", s.wrap("recommendations", s.recommendations))
	return mux
}

func (s *Server) wrap(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		down, delay := s.down, s.delay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if down {
			http.Error(w, `{"error":"proxy unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		fn(w, r)
	}
}

func (s *Server) stores(w http.ResponseWriter, r *http.Request) {
	chain := models.ChainID(r.URL.Query().Get("chainId"))
	s.mu.Lock()
	stores := s.catalog.Stores[chain]
	s.mu.Unlock()

	data := make([]map[string]string, 0, len(stores))
	for _, st := range stores {
		data = append(data, map[string]string{"storeid": st.StoreID, "store": st.Name})
	}
	writeJSON(w, map[string]any{"data": data})
}

var productIDFilter = regexp.MustCompile(`productID:([^"\]]+)`)

func (s *Server) algoliaAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			Params string `json:"params"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Requests) == 0 {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	params, _ := url.ParseQuery(body.Requests[0].Params)
	m := productIDFilter.FindStringSubmatch(params.Get("facetFilters"))
	if m == nil {
		writeJSON(w, algoliaResults(nil))
		return
	}
	id := m[1]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[id] {
		http.Error(w, `{"error":"Failed to fetch availability"}`, http.StatusInternalServerError)
		return
	}
	it, ok := s.item(models.Chain1, id)
	if !ok {
		writeJSON(w, algoliaResults(nil))
		return
	}
	writeJSON(w, algoliaResults([]map[string]any{s.algoliaHit(it)}))
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			ObjectID string `json:"objectID"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Requests) == 0 {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hits := []map[string]any{}
	for _, it := range s.catalog.Items[models.Chain1] {
		if it.ProductID != body.Requests[0].ObjectID {
			hits = append(hits, s.algoliaHit(it))
		}
	}
	writeJSON(w, algoliaResults(hits))
}

func (s *Server) algoliaHit(it Item) map[string]any {
	detail := map[string]any{}
	for _, st := range s.catalog.Stores[models.Chain1] {
		stock := 0
		if it.Stock[st.StoreID] {
			stock = 1
		}
		hall := any(models.NotAvailable)
		if it.Hall != "" {
			hall = it.Hall
		}
		detail[st.StoreID] = map[string]any{
			"hasInvontory":    stock,
			"basePrice":       it.Price,
			"uomPrice":        it.Price,
			"havedDiscount":   0,
			"percentDiscount": 0,
			"hall":            hall,
		}
	}
	return map[string]any{
		"productID":       it.ProductID,
		"ecomDescription": it.Name,
		"imageUrl":        it.ImageURL,
		"storeDetail":     detail,
	}
}

func algoliaResults(hits []map[string]any) map[string]any {
	if hits == nil {
		hits = []map[string]any{}
	}
	return map[string]any{"results": []any{map[string]any{"hits": hits}}}
}

// storeListSKU answers the chain2 store-list query even when the catalog does
// not contain it.
const storeListSKU = "755713"

func (s *Server) priceSmart(w http.ResponseWriter, r *http.Request) {
	var body []struct {
		SKUs []string `json:"skus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body) == 0 || len(body[0].SKUs) == 0 {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	sku := body[0].SKUs[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[sku] {
		http.Error(w, `{"error":"Failed to fetch PriceSmart availability"}`, http.StatusInternalServerError)
		return
	}
	it, ok := s.item(models.Chain2, sku)
	if !ok && sku == storeListSKU {
		it, ok = Item{ProductID: storeListSKU, Name: "store list", Stock: map[string]bool{}}, true
	}
	if !ok {
		writeJSON(w, map[string]any{"data": map[string]any{"products": map[string]any{"results": []any{}}}})
		return
	}

	channels := make([]any, 0, len(s.catalog.Stores[models.Chain2]))
	for _, st := range s.catalog.Stores[models.Chain2] {
		channels = append(channels, map[string]any{
			"channel": map[string]any{
				"id":             st.StoreID,
				"nameAllLocales": []any{map[string]string{"locale": "es-CR", "value": st.Name}},
			},
			"availability": map[string]any{"isOnStock": it.Stock[st.StoreID]},
		})
	}
	images := []any{}
	if it.ImageURL != "" {
		images = append(images, map[string]string{"url": it.ImageURL})
	}
	product := map[string]any{
		"id": "prod-" + it.ProductID,
		"masterData": map[string]any{"current": map[string]any{
			"name": it.Name,
			"masterVariant": map[string]any{
				"sku":           it.ProductID,
				"price":         map[string]any{"value": map[string]any{"centAmount": it.Price * 100}},
				"images":        images,
				"attributesRaw": []any{},
				"availability":  map[string]any{"channels": map[string]any{"results": channels}},
			},
		}},
	}
	writeJSON(w, map[string]any{"data": map[string]any{"products": map[string]any{"results": []any{product}}}})
}

// item must be called with s.mu held.
func (s *Server) item(chain models.ChainID, id string) (Item, bool) {
	for _, it := range s.catalog.Items[chain] {
		if it.ProductID == id {
			return it, true
		}
	}
	return Item{}, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
