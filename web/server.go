package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"oddsfeed-service/config"
	"oddsfeed-service/services"
)

// Server 运维用只读 HTTP 接口: 健康检查、当前快照、运行统计。
// 对外的鉴权入口和浏览器推送不在这个服务里。
type Server struct {
	config     *config.Config
	extractor  *services.LiveExtractor
	broker     *services.SnapshotBroker
	httpServer *http.Server
}

// NewServer 创建运维服务器
func NewServer(cfg *config.Config, extractor *services.LiveExtractor, broker *services.SnapshotBroker) *Server {
	return &Server{
		config:    cfg,
		extractor: extractor,
		broker:    broker,
	}
}

// Start 启动 HTTP 服务 (阻塞)
func (s *Server) Start() error {
	router := mux.NewRouter()

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Stop 优雅关闭
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"environment": s.config.Environment,
		"feed_state":  s.extractor.FeedState().String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := s.broker.Latest()
	if snapshot == nil {
		snapshot = s.extractor.Snapshot()
	}
	writeJSON(w, snapshot)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := s.extractor.Snapshot()

	marketGroups := 0
	for _, groups := range snapshot.MarketsByEvent {
		marketGroups += len(groups)
	}

	writeJSON(w, map[string]interface{}{
		"events":        len(snapshot.Events),
		"market_groups": marketGroups,
		"last_update":   snapshot.LastUpdate,
		"feed_state":    s.extractor.FeedState().String(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
