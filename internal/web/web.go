// Package web exposes the engine's operational HTTP surface: health check,
// pass statistics, execution logs, manual rule triggers and the farm health
// report.
package web

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"smartfarm/internal/db"
	"smartfarm/internal/engine"
	"smartfarm/internal/health"
	"smartfarm/internal/taskqueue"
)

type WebServer struct {
	router *gin.Engine
}

func NewWebServer(eng *engine.Engine, database *db.DB, analyzer *health.Analyzer) *WebServer {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/engine/stats", func(c *gin.Context) {
		c.JSON(200, eng.LastPass())
	})

	router.GET("/rules/:id/logs", func(c *gin.Context) {
		ruleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid rule id"})
			return
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
				limit = parsed
			}
		}
		logs, err := database.GetExecutionLogs(c, ruleID, limit)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch execution logs"})
			return
		}
		c.JSON(200, logs)
	})

	// Manual trigger. The evaluation runs on the task queue workers.
	router.POST("/rules/:id/evaluate", func(c *gin.Context) {
		ruleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid rule id"})
			return
		}
		if _, err := database.GetRuleByID(c, ruleID); err != nil {
			c.JSON(404, gin.H{"error": "Rule not found"})
			return
		}
		if err := taskqueue.EnqueueEvaluation(ruleID); err != nil {
			c.JSON(500, gin.H{"error": "Failed to queue evaluation"})
			return
		}
		c.JSON(202, gin.H{"status": "queued"})
	})

	router.GET("/farms/:id/plant-health", func(c *gin.Context) {
		farmID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid farm id"})
			return
		}
		report, err := analyzer.Analyze(c, farmID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Health analysis failed"})
			return
		}
		c.JSON(200, report)
	})

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) {
	ws.router.Run(addr)
}
