package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/event"
	"github.com/annel0/script-core/internal/snapshot"
	"github.com/annel0/script-core/internal/vec"
	"github.com/annel0/script-core/internal/world"
)

// EventRequest запрос на публикацию события
type EventRequest struct {
	Kind string        `json:"kind" binding:"required"`
	Args []interface{} `json:"args"`
}

// EntityRequest запрос на создание актора; пустой ID генерируется
type EntityRequest struct {
	ID    string `json:"id"`
	Class string `json:"class" binding:"required"`
	Tag   string `json:"tag"`
}

// statusFor HTTP статус для ошибки ядра
func statusFor(err error) int {
	switch {
	case errors.Is(err, event.ErrUnknownKind),
		errors.Is(err, event.ErrBadArgs),
		errors.Is(err, actor.ErrUnknownClass):
		return http.StatusBadRequest
	case world.IsLookupMiss(err), errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, world.ErrDuplicateActor):
		return http.StatusConflict
	case errors.Is(err, world.ErrStopping), errors.Is(err, event.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, GenericResponse{Success: false, Message: err.Error()})
}

// handleHealth проверка состояния
func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":  "ok",
		"running": s.config.World.Running(),
		"uptime":  s.metrics.GetUptime(),
		"region":  s.config.Region,
	}
	if s.config.Loop != nil {
		status["loop"] = s.config.Loop.State().String()
	}
	c.JSON(http.StatusOK, status)
}

// handleStats статистика мира, цикла и процесса
func (s *Server) handleStats(c *gin.Context) {
	data := gin.H{
		"region": s.config.Region,
		"world":  s.config.World.Stats(),
	}
	if s.config.Loop != nil {
		data["loop"] = gin.H{
			"state":     s.config.Loop.State().String(),
			"ticks":     s.config.Loop.Ticks(),
			"period_ms": s.config.Loop.Period().Milliseconds(),
		}
	}

	proc := gin.H{
		"uptime":    s.metrics.GetUptime(),
		"memory_mb": s.metrics.GetMemoryUsage(),
		"memory":    s.metrics.GetDetailedMemoryStats(),
	}
	if pct, err := s.metrics.GetCPUUsage(); err == nil {
		proc["cpu_percent"] = pct
	}
	data["process"] = proc

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: data})
}

// handleClasses зарегистрированные классы акторов
func (s *Server) handleClasses(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "ok",
		Data:    s.config.World.Classes().Classes(),
	})
}

// handleActors состояние всех акторов
func (s *Server) handleActors(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: s.config.World.Inspect()})
}

// handleActor состояние одного актора
func (s *Server) handleActor(c *gin.Context) {
	info, err := s.config.World.Describe(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: info})
}

// StartLocationResponse точка появления аватаров и направление взгляда
type StartLocationResponse struct {
	Location vec.Vec3 `json:"location"`
	LookAt   vec.Vec3 `json:"look_at"`
}

// handleStartLocation точка появления аватаров, заданная скриптами региона
func (s *Server) handleStartLocation(c *gin.Context) {
	loc, lookAt, err := s.config.World.AvatarStartLocation()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: StartLocationResponse{
		Location: loc,
		LookAt:   lookAt,
	}})
}

// handlePublishEvent кладёт событие в очередь; оно обработается на следующем тике
func (s *Server) handlePublishEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	if err := s.config.World.PublishEvent(req.Kind, req.Args...); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("📨 %s опубликовал %s", operator(c), req.Kind)
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Событие принято"})
}

// handleCreateEntity создаёт актора зарегистрированного класса
func (s *Server) handleCreateEntity(c *gin.Context) {
	var req EntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := s.config.World.CreateEntity(req.ID, req.Class, req.Tag); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("🧩 %s создал актора %s класса %s", operator(c), req.ID, req.Class)
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Актор создан",
		Data:    gin.H{"id": req.ID},
	})
}

// handleRemoveEntity публикует remove_entity для существующего актора
func (s *Server) handleRemoveEntity(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.config.World.Lookup(id); !ok {
		s.fail(c, world.ErrActorNotFound)
		return
	}
	if err := s.config.World.Publish(event.KindRemoveEntity, id); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("🗑️ %s удалил актора %s", operator(c), id)
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Удаление запланировано"})
}

// handleSnapshot сохраняет снимок региона
func (s *Server) handleSnapshot(c *gin.Context) {
	if s.config.Snapshots == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Хранилище снимков не настроено"})
		return
	}
	snap, err := snapshot.Save(c.Request.Context(), s.config.Snapshots, s.config.World, s.config.Region)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Снимок сохранён",
		Data:    gin.H{"region": snap.Region, "actors": len(snap.Actors), "taken_at": snap.TakenAt},
	})
}

func operator(c *gin.Context) string {
	if op := c.GetString("operator"); op != "" {
		return op
	}
	return "anonymous"
}
