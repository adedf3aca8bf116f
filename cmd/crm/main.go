package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/handler"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-crm service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// AutoMigrate CRM实体
	if err := db.AutoMigrate(
		&entity.Contact{},
		&entity.Employee{},
		&entity.Lead{},
		&entity.LeadContactAttempt{},
		&entity.LeadStageHistory{},
		&entity.LeadStageNote{},
	); err != nil {
		zapLogger.Warn("AutoMigrate CRM tables warning", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, rdb, cfg)
	handlers := handler.NewHandlers(services)

	// Seed: 空库时创建初始管理员
	seedAdmin(repos, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// seedAdmin 空库时创建初始管理员账号
func seedAdmin(repos *repository.Repositories, zapLogger *zap.Logger) {
	ctx := context.Background()
	count, err := repos.Employee.CountAll(ctx)
	if err != nil || count > 0 {
		return
	}

	password := config.GetEnvOrDefault("CRM_ADMIN_PASSWORD", "ChangeMe123!")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zapLogger.Warn("Failed to hash admin password", zap.Error(err))
		return
	}

	admin := &entity.Employee{
		ID:           uuid.New().String()[:32],
		Name:         "Admin",
		Email:        config.GetEnvOrDefault("CRM_ADMIN_EMAIL", "admin@nimo-crm.local"),
		Department:   "Management",
		Position:     "Administrator",
		Status:       entity.EmployeeStatusActive,
		PasswordHash: string(hash),
		Roles:        entity.JSONBArray{"crm_admin"},
	}
	if err := repos.Employee.Create(ctx, admin); err != nil {
		zapLogger.Warn("Failed to seed admin employee", zap.Error(err))
		return
	}
	zapLogger.Info("Seeded initial admin employee", zap.String("email", admin.Email))
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// SSE 实时推送（需要认证，支持 query param token）
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			crm := authorized.Group("/crm")
			{
				// 线索管道
				leads := crm.Group("/leads")
				{
					leads.GET("", h.Lead.ListLeads)
					leads.GET("/board", h.Lead.GetBoard)
					leads.GET("/export", h.Lead.ExportLeads)
					leads.POST("", h.Lead.CreateLead)
					leads.GET("/:id", h.Lead.GetLead)
					leads.PUT("/:id", h.Lead.UpdateLead)
					leads.GET("/:id/validate", h.Lead.ValidateStage)
					leads.POST("/:id/transition", h.Lead.TransitionStage)
					leads.GET("/:id/history", h.Lead.ListHistory)
					leads.POST("/:id/attempts", h.Lead.AddAttempt)
					leads.GET("/:id/notes", h.Lead.ListNotes)
					leads.POST("/:id/notes", h.Lead.AddNote)
					leads.PUT("/:id/notes/:noteId", h.Lead.EditNote)
					leads.POST("/:id/proposal", h.Attachment.UploadProposal)
				}

				// 联系人
				contacts := crm.Group("/contacts")
				{
					contacts.GET("", h.Contact.ListContacts)
					contacts.POST("", h.Contact.CreateContact)
					contacts.GET("/:id", h.Contact.GetContact)
					contacts.PUT("/:id", h.Contact.UpdateContact)
					contacts.DELETE("/:id", h.Contact.DeleteContact)
				}

				// 员工目录
				employees := crm.Group("/employees")
				{
					employees.GET("", h.Employee.ListEmployees)
					employees.GET("/active", h.Employee.ListActiveEmployees)
					employees.GET("/:id", h.Employee.GetEmployee)
					employees.POST("", middleware.RequireRole("crm_admin"), h.Employee.CreateEmployee)
					employees.PUT("/:id", middleware.RequireRole("crm_admin"), h.Employee.UpdateEmployee)
				}

				// 看板统计
				dashboard := crm.Group("/dashboard")
				{
					dashboard.GET("/pipeline", h.Dashboard.GetPipelineSummary)
					dashboard.GET("/lost-reasons", h.Dashboard.GetLostReasons)
				}

				// 附件
				crm.GET("/attachments/url", h.Attachment.GetProposalURL)
			}
		}
	}
}
