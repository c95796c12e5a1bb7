package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oddsfeed-service/config"
	"oddsfeed-service/models"
	"oddsfeed-service/services"
	"oddsfeed-service/web"
)

// sportIDs 上游平台的运动项目编号 (固定映射,由调用方持有)
var sportIDs = map[string]int{
	"football":   1,
	"basketball": 2,
	"tennis":     3,
}

func main() {
	log.Println("Starting Odds Feed Service...")

	// 加载配置
	cfg := config.Load()

	// 凭证提供者。生产环境的 TokenSource 由外部登录自动化替换,
	// 这里用配置里的静态 token + TTL 兜底。
	creds := services.NewCredentialProvider(envTokenSource(cfg))

	// 快照广播器作为 sink: 合并器每次产出完整快照都发布到这里
	broker := services.NewSnapshotBroker()

	extractor := services.NewLiveExtractor(cfg, creds,
		func(s *models.Snapshot) { broker.Publish(s) },
		func(err error) { log.Printf("❌ Extraction error: %v", err) },
	)

	// 启动滚球抓取
	sport := sportIDs["football"]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := extractor.StartLiveExtraction(ctx, sport); err != nil {
		log.Fatalf("Failed to start live extraction: %v", err)
	}

	// 启动运维 HTTP 服务
	server := web.NewServer(cfg, extractor, broker)
	go func() {
		log.Printf("Ops server listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			log.Printf("Ops server stopped: %v", err)
		}
	}()

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	extractor.StopLiveExtraction()
	server.Stop()
	broker.Close()
	log.Println("Shutdown complete")
}

// envTokenSource 从环境变量取 token 的兜底实现。
// 真实的刷新链路 (登录自动化 + refresh token) 在外围系统里。
func envTokenSource(cfg *config.Config) services.TokenSource {
	return func(ctx context.Context, current *models.Credential) (*models.Credential, error) {
		return &models.Credential{
			AccessToken: cfg.AccessToken,
			ExpiresAt:   time.Now().Add(cfg.TokenTTL),
		}, nil
	}
}
