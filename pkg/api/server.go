// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api is the HTTP surface of the manager: report intake, operator
// triggers and the rendered status page.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/coordinator"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/pipeline"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
)

// maxBodySize bounds uploaded documents.
const maxBodySize = 1 << 20

// Coordinator is the part of the coordinator the API triggers.
type Coordinator interface {
	OnReport(group string, data []byte) error
	OnHealthReport(data []byte) error
	OnCertChanged()
	ResetImport(ctx context.Context) error
	RestartWebserver(ctx context.Context) error
}

// StatusSource serves the last rendered status.
type StatusSource interface {
	HTML() []byte
	JSON() []byte
}

// Server wraps the gin engine.
type Server struct {
	router *gin.Engine
	coord  Coordinator
	status StatusSource
	logger *zap.SugaredLogger
}

// NewServer sets up all routes.
func NewServer(coord Coordinator, status StatusSource, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(ginzap.Ginzap(logger.Desugar(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger.Desugar(), true))

	s := &Server{
		router: router,
		coord:  coord,
		status: status,
		logger: logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	page := router.Group("/", gzip.Gzip(gzip.DefaultCompression))
	{
		page.GET("/status", s.getStatusHTML)
		page.GET("/status.json", s.getStatusJSON)
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/groups/:group/state", s.postState)
		v1.POST("/health", s.postHealth)
		v1.POST("/certificate", s.postCertificate)
		v1.POST("/import/reset", s.postImportReset)
		v1.POST("/lighttpd/restart", s.postLighttpdRestart)
	}

	metrics.InitErrorCounter(metrics.ComponentAPI, "http")

	return s
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Infof("API listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	}
}

type groupRequest struct {
	Group string `uri:"group" binding:"required"`
}

func (s *Server) getStatusHTML(c *gin.Context) {
	page := s.status.HTML()
	if page == nil {
		c.String(http.StatusServiceUnavailable, "status not available yet")

		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) getStatusJSON(c *gin.Context) {
	doc := s.status.JSON()
	if doc == nil {
		s.handleError(c, http.StatusServiceUnavailable, errors.New("status not available yet"))

		return
	}

	c.Data(http.StatusOK, "application/json", doc)
}

func (s *Server) postState(c *gin.Context) {
	var req groupRequest
	if err := c.BindUri(&req); err != nil {
		s.handleError(c, http.StatusBadRequest, err)

		return
	}

	body, ok := s.readBody(c)
	if !ok {
		return
	}

	if err := s.coord.OnReport(req.Group, body); err != nil {
		if errors.Is(err, coordinator.ErrUnknownGroup) {
			s.handleError(c, http.StatusNotFound, err)

			return
		}

		s.handleError(c, http.StatusBadRequest, err)

		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) postHealth(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	if err := s.coord.OnHealthReport(body); err != nil {
		s.handleError(c, http.StatusBadRequest, err)

		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) postCertificate(c *gin.Context) {
	s.coord.OnCertChanged()
	c.Status(http.StatusAccepted)
}

func (s *Server) postImportReset(c *gin.Context) {
	if err := s.coord.ResetImport(c.Request.Context()); err != nil {
		if errors.Is(err, pipeline.ErrNotInvalid) {
			s.handleError(c, http.StatusConflict, err)

			return
		}

		s.handleError(c, http.StatusInternalServerError, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) postLighttpdRestart(c *gin.Context) {
	if err := s.coord.RestartWebserver(c.Request.Context()); err != nil {
		s.handleError(c, http.StatusInternalServerError, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// readBody reads the whole request body. A body above maxBodySize is
// answered with 413 instead of being cut off. ok is false when a response
// was already written.
func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.handleError(c, http.StatusRequestEntityTooLarge, err)

			return nil, false
		}

		s.handleError(c, http.StatusBadRequest, err)

		return nil, false
	}

	return body, true
}

func (s *Server) handleError(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		metrics.IncErrorCount(metrics.ComponentAPI, c.FullPath())
		s.logger.Errorf("Request %s failed: %v", c.FullPath(), err)
	} else {
		s.logger.Debugf("Rejected request %s: %v", c.FullPath(), err)
	}

	c.JSON(code, gin.H{
		"error":  err.Error(),
		"status": code,
	})
}
