package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/NovaFleet/inspection-service/internal/common/config"
	"github.com/NovaFleet/inspection-service/internal/common/db"
	"github.com/NovaFleet/inspection-service/internal/common/logger"
	"github.com/NovaFleet/inspection-service/internal/common/server"
	"github.com/NovaFleet/inspection-service/internal/common/tracing"
	"github.com/NovaFleet/inspection-service/internal/inspection"
)

var (
	configPath  = flag.String("config", "configs/inspection-service.json", "配置文件路径")
	consulKVKey = flag.String("consul-kv-key", "", "从 Consul KV 读取配置的 key（设置后优先于 -config）")
)

func main() {
	flag.Parse()

	// 加载配置：优先 Consul KV，其次本地文件（不存在则用默认配置）
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		base := config.GetConfig()
		cfg, err = config.LoadConfigFromConsulKV(base.Consul.Host, base.Consul.Port, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Driver, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(&inspection.Inspection{}, &inspection.InspectionHistory{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	svc := inspection.NewService(inspection.NewRepo(gormDB), log)
	h := inspection.NewHandler(svc, log)

	// 启动统一的 HTTP 服务模板
	if err := server.RunHTTPServer(cfg, log, func(mux *http.ServeMux) error {
		mux.Handle("/api/inspections", h)
		mux.Handle("/api/inspections/", h)
		return nil
	}); err != nil {
		log.Fatalf("inspection-service exited with error: %v", err)
	}
}
