package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labflow/internal/handler"
	"labflow/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	stageHandler *handler.StageHandler,
	jobHandler *handler.JobHandler,
	commentHandler *handler.CommentHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()

	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/stages", stageHandler.List)
		auth.POST("/stages", RequireCapability(rbac.CapabilityManageStages), stageHandler.Upsert)

		auth.GET("/jobs", jobHandler.List)
		auth.POST("/jobs", RequireCapability(rbac.CapabilityCreateJob), jobHandler.Create)
		auth.GET("/jobs/:id", jobHandler.Get)
		auth.PATCH("/jobs/:id", jobHandler.Patch)
		auth.DELETE("/jobs/:id", RequireCapability(rbac.CapabilityUpdateJob), jobHandler.Delete)
		auth.GET("/jobs/:id/next-stage", jobHandler.NextStage)

		auth.GET("/jobs/:id/comments", commentHandler.List)
		auth.POST("/jobs/:id/comments", RequireCapability(rbac.CapabilityWriteComments), commentHandler.Append)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
