package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"video_ingest_service/pkg/config"
	"video_ingest_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof 非 production 時在 addr 上啟動 pprof，用來觀察 ffmpeg 切片與並行上傳時的 goroutine / heap
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}
	if addr == "" {
		addr = ":6060"
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Error("pprof server failed", zap.Error(err))
		}
	}()
}

// 常用:
// 	curl http://localhost:6060/debug/pprof/
// 	go tool pprof http://localhost:6060/debug/pprof/goroutine
// 	go tool pprof http://localhost:6060/debug/pprof/heap
