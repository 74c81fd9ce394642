package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gamst-shin/goldmine-test/storage"
	"github.com/gamst-shin/goldmine-test/utils"
)

// Server exposes the stored records over HTTP: free-text search and
// region filtering over live items, plus the closed-auction history.
type Server struct {
	items   storage.ItemStore
	history storage.HistoryStore
	logger  *utils.Logger
}

// NewServer creates a Server over the given stores.
func NewServer(items storage.ItemStore, history storage.HistoryStore, logger *utils.Logger) *Server {
	return &Server{items: items, history: history, logger: logger}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/items", s.handleItems).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	return r
}

// ListenAndServe runs the server until it fails or ctx is cancelled.
// Cancellation drains in-flight requests through a bounded shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("[web] Listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("[web] Shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

type itemsResponse struct {
	Total  int            `json:"total"`
	Query  string         `json:"query,omitempty"`
	Region string         `json:"region,omitempty"`
	Items  []itemResponse `json:"items"`
}

type itemResponse struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Location   string  `json:"location"`
	ImageURL   string  `json:"image_url,omitempty"`
	Price      int64   `json:"price"`
	Material   string  `json:"material"`
	Purity     string  `json:"purity"`
	WeightG    float64 `json:"weight_g"`
	Confidence float64 `json:"confidence"`
	RiskFactor string  `json:"risk_factor"`
	UpdatedAt  string  `json:"updated_at"`
}

// handleItems serves /api/items?q=&region=, newest first, with the
// total match count.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	region := r.URL.Query().Get("region")

	items, total, err := s.items.SearchItems(query, region)
	if err != nil {
		s.logger.Error("[web] Item search failed: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	resp := itemsResponse{
		Total:  total,
		Query:  query,
		Region: region,
		Items:  make([]itemResponse, 0, len(items)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, itemResponse{
			URL:        it.URL,
			Title:      it.Title,
			Location:   it.Location,
			ImageURL:   it.ImageURL,
			Price:      it.Price,
			Material:   string(it.Material),
			Purity:     string(it.Purity),
			WeightG:    it.WeightG,
			Confidence: it.Confidence,
			RiskFactor: string(it.RiskFactor),
			UpdatedAt:  it.UpdatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	Total   int              `json:"total"`
	Records []recordResponse `json:"records"`
}

type recordResponse struct {
	Season     int     `json:"season"`
	Title      string  `json:"title"`
	Price      int64   `json:"price"`
	Weight     float64 `json:"weight"`
	PurityInfo string  `json:"purity_info"`
	URL        string  `json:"url"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.history.FetchHistory()
	if err != nil {
		s.logger.Error("[web] History fetch failed: %v", err)
		http.Error(w, "history fetch failed", http.StatusInternalServerError)
		return
	}

	resp := historyResponse{Total: len(recs), Records: make([]recordResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Records = append(resp.Records, recordResponse{
			Season:     rec.Season,
			Title:      rec.Title,
			Price:      rec.Price,
			Weight:     rec.Weight,
			PurityInfo: rec.PurityInfo,
			URL:        rec.URL,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("[web] %s %s (%v)", r.Method, r.URL.RequestURI(), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
