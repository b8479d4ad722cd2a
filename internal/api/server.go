package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/netalarm/internal/alarm"
	"github.com/netalarm/internal/auth"
	"github.com/netalarm/internal/database"
	"github.com/netalarm/internal/models"
	"github.com/netalarm/internal/report"

	"github.com/gin-gonic/gin"
)

type Server struct {
	service *alarm.Service
	rules   *alarm.RuleManager
	reports *report.Generator
	router  *gin.Engine
}

func NewServer(service *alarm.Service, rules *alarm.RuleManager, reports *report.Generator) *Server {
	server := &Server{
		service: service,
		rules:   rules,
		reports: reports,
		router:  gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Public routes
	s.router.POST("/api/v1/auth/login", s.login)
	s.router.POST("/api/v1/auth/register", s.register)

	// Protected routes (require authentication)
	api := s.router.Group("/api/v1")
	api.Use(auth.AuthMiddleware())

	// Alarm lifecycle endpoints
	alarms := api.Group("/alarms")
	{
		alarms.GET("", s.listAlarms)
		alarms.GET("/:id", s.getAlarm)
		alarms.POST("", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.ingestAlarm)
		alarms.PUT("/:id/acknowledge", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.acknowledgeAlarm)
		alarms.PUT("/:id/clear", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.clearAlarm)
		alarms.POST("/recorrelate", auth.RequireRole(models.RoleAdmin), s.recorrelate)
	}

	// Correlation group lookup
	api.GET("/correlations/:id", s.getCorrelationGroup)

	// Rule management endpoints
	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", auth.RequireRole(models.RoleAdmin), s.createRule)
		rules.PUT("/:id", auth.RequireRole(models.RoleAdmin), s.updateRule)
		rules.DELETE("/:id", auth.RequireRole(models.RoleAdmin), s.deleteRule)
		rules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin), s.enableRule)
		rules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin), s.disableRule)
		rules.POST("/validate", auth.RequireRole(models.RoleAdmin), s.validateRule)
		rules.POST("/import", auth.RequireRole(models.RoleAdmin), s.importRules)
	}

	// Reporting
	api.GET("/reports/correlation-summary", s.correlationSummary)

	// User management endpoints
	admin := api.Group("/admin")
	admin.Use(auth.RequireRole(models.RoleAdmin))
	admin.GET("/users", s.listUsers)
	admin.PUT("/users/:id", s.updateUser)
	admin.DELETE("/users/:id", s.deleteUser)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// tenantFrom resolves the tenant a request acts on: admins may target any
// tenant via query parameter, everyone else is scoped to their own.
func tenantFrom(c *gin.Context) string {
	if c.GetString("role") == string(models.RoleAdmin) {
		if t := c.Query("tenant_id"); t != "" {
			return t
		}
	}
	return c.GetString("tenant_id")
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// Auth handlers

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.GetDB().Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Email    string `json:"email"`
		TenantID string `json:"tenant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		TenantID: req.TenantID,
		Role:     models.RoleViewer,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}
	if err := database.GetDB().Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Alarm handlers

func (s *Server) ingestAlarm(c *gin.Context) {
	var a models.Alarm
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.TenantID = tenantFrom(c)

	if err := s.service.Ingest(&a); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) listAlarms(c *gin.Context) {
	filter := alarm.ListFilter{
		Status:        models.AlarmStatus(c.Query("status")),
		Action:        models.CorrelationAction(c.Query("action")),
		ResourceType:  c.Query("resource_type"),
		CorrelationID: c.Query("correlation_id"),
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = t
		}
	}
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}

	alarms, err := s.service.List(tenantFrom(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alarms)
}

func (s *Server) getAlarm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := s.service.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alarm not found"})
		return
	}
	if a.TenantID != tenantFrom(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alarm not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) acknowledgeAlarm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.service.Acknowledge(id, c.GetString("username")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}

func (s *Server) clearAlarm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.service.Clear(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) recorrelate(c *gin.Context) {
	count, err := s.service.RecorrelateAll(tenantFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": count})
}

func (s *Server) getCorrelationGroup(c *gin.Context) {
	group, err := s.service.Group(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	tenant := tenantFrom(c)
	visible := make([]models.Alarm, 0, len(group))
	for _, a := range group {
		if a.TenantID == tenant {
			visible = append(visible, a)
		}
	}
	c.JSON(http.StatusOK, visible)
}

// Rule handlers

func (s *Server) listRules(c *gin.Context) {
	var enabled *bool
	if v := c.Query("enabled"); v != "" {
		b := v == "true"
		enabled = &b
	}
	rules, err := s.rules.ListRules(tenantFrom(c), enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rule, err := s.rules.GetRule(id)
	if err != nil || rule.TenantID != tenantFrom(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) createRule(c *gin.Context) {
	var rule models.AlarmRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.TenantID = tenantFrom(c)
	if err := s.rules.CreateRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	existing, err := s.rules.GetRule(id)
	if err != nil || existing.TenantID != tenantFrom(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	var rule models.AlarmRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = existing.ID
	rule.TenantID = existing.TenantID
	if err := s.rules.UpdateRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.rules.DeleteRule(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) enableRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.rules.EnableRule(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

func (s *Server) disableRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.rules.DisableRule(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

func (s *Server) validateRule(c *gin.Context) {
	var rule models.AlarmRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.TenantID = tenantFrom(c)
	if err := alarm.ValidateRule(&rule); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) importRules(c *gin.Context) {
	var rules []models.AlarmRule
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.rules.ImportRules(tenantFrom(c), rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(rules)})
}

// Report handlers

func (s *Server) correlationSummary(c *gin.Context) {
	end := time.Now()
	start := end.Add(-24 * time.Hour)
	if v := c.Query("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			start = t
		}
	}
	if v := c.Query("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			end = t
		}
	}

	data, err := s.reports.CorrelationSummary(tenantFrom(c), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// User handlers

func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := database.GetDB().Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var user models.User
	if err := database.GetDB().First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var req struct {
		Role     *models.Role `json:"role"`
		IsActive *bool        `json:"is_active"`
		TenantID *string      `json:"tenant_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.TenantID != nil {
		user.TenantID = *req.TenantID
	}
	if err := database.GetDB().Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := database.GetDB().Delete(&models.User{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
