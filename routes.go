package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/models"
	"editorial-desk/services"
	"editorial-desk/storage"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// newRouter builds the HTTP surface. metrics serves /metrics.
func newRouter(cfg *config.Config, store storage.Store, engine *services.Engine, metrics http.Handler, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics))

	api := router.Group("/")
	api.Use(apiKeyAuthMiddleware(cfg))
	setupSubmissionRoutes(api, engine, log)
	setupDeadlineRoutes(api, engine, log)
	setupNotificationRoutes(api, store, log)
	setupWorkflowEventRoutes(api, engine, log)
	setupJobRoutes(api, engine)
	return router
}

// writeError maps engine errors onto HTTP statuses.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case storage.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrUnknownEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func setupSubmissionRoutes(rg *gin.RouterGroup, engine *services.Engine, log *zap.Logger) {
	rg.POST("/submissions/:id/status", func(c *gin.Context) {
		var req struct {
			Status  string `json:"status" binding:"required"`
			ActorID string `json:"actor_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		to, err := models.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := engine.Lifecycle.Transition(c.Request.Context(), c.Param("id"), to, optional(req.ActorID))
		if err != nil {
			writeError(c, log, err)
			return
		}
		body := gin.H{
			"submission": res.Submission,
			"from":       res.From,
			"to":         res.To,
			"deadline":   res.Deadline,
		}
		if res.DeadlineErr != nil {
			body["deadline_error"] = res.DeadlineErr.Error()
		}
		if res.Event != nil {
			body["event"] = eventBody(res.Event)
		}
		c.JSON(http.StatusOK, body)
	})

	rg.GET("/submissions/:id/deadlines", func(c *gin.Context) {
		list, err := engine.Deadlines.DeadlinesForSubmission(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		if list == nil {
			list = []models.Deadline{}
		}
		c.JSON(http.StatusOK, list)
	})

	rg.POST("/submissions/:id/deadlines", func(c *gin.Context) {
		var req struct {
			Type       string    `json:"type" binding:"required"`
			DueDate    time.Time `json:"due_date" binding:"required"`
			AssignedTo string    `json:"assigned_to"`
			Note       string    `json:"note"`
			ActorID    string    `json:"actor_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		d, err := engine.Deadlines.CreateDeadline(c.Request.Context(), services.NewDeadline{
			SubmissionID: c.Param("id"),
			Type:         models.DeadlineType(req.Type),
			DueDate:      req.DueDate,
			AssignedTo:   optional(req.AssignedTo),
			Note:         req.Note,
		}, optional(req.ActorID))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	})
}

func setupDeadlineRoutes(rg *gin.RouterGroup, engine *services.Engine, log *zap.Logger) {
	rg.POST("/deadlines/:id/complete", func(c *gin.Context) {
		var req struct {
			ActorID string `json:"actor_id"`
		}
		// the body is optional
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		d, err := engine.Deadlines.CompleteDeadline(c.Request.Context(), c.Param("id"), optional(req.ActorID))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})
}

func setupNotificationRoutes(rg *gin.RouterGroup, store storage.Store, log *zap.Logger) {
	rg.GET("/users/:id/notifications", func(c *gin.Context) {
		unread := c.Query("unread") == "true"
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		list, err := store.NotificationsForUser(c.Request.Context(), c.Param("id"), unread, limit)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if list == nil {
			list = []models.Notification{}
		}
		c.JSON(http.StatusOK, list)
	})
}

func eventBody(res *services.EventResult) gin.H {
	return gin.H{
		"event":              res.Event,
		"email_sent":         res.EmailSent,
		"notification_id":    res.NotificationID,
		"email_error":        errString(res.EmailErr),
		"notification_error": errString(res.NotificationErr),
	}
}

func setupWorkflowEventRoutes(rg *gin.RouterGroup, engine *services.Engine, log *zap.Logger) {
	rg.POST("/workflow-events", func(c *gin.Context) {
		var req struct {
			Event   string                `json:"event" binding:"required"`
			Context services.EventContext `json:"context"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		res, err := engine.Events.TriggerWorkflowEvent(c.Request.Context(), services.WorkflowEvent(req.Event), req.Context)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, eventBody(res))
	})
}

func setupJobRoutes(rg *gin.RouterGroup, engine *services.Engine) {
	rg.GET("/jobs", func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Jobs.Jobs())
	})

	rg.POST("/jobs/:name/run", func(c *gin.Context) {
		name := c.Param("name")
		if _, ok := engine.Jobs.Lookup(name); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown job: " + name})
			return
		}
		res := engine.Jobs.Run(c.Request.Context(), name)
		switch {
		case res.Success:
			c.JSON(http.StatusOK, res)
		case res.Error == services.ErrJobRunning.Error():
			c.JSON(http.StatusConflict, res)
		default:
			c.JSON(http.StatusInternalServerError, res)
		}
	})
}
