package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sndcds/attachments"
	"github.com/sndcds/attachments/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, runCtx, cancel, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer cancel()
			defer a.Close()

			logger := ctx.logger
			ctx.config.Print(logger)

			if !ctx.config.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery(), requestLogger(logger))
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))
			router.GET("/health", func(gc *gin.Context) {
				api.JSONSuccessNoData(gc, "health")
			})
			attachments.New(a).RegisterRoutes(router.Group(ctx.config.HTTP.BasePath))

			server := &http.Server{
				Addr:              ctx.config.HTTP.Listen,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("API server listening", zap.String("address", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-runCtx.Done():
			}
			logger.Info("shutdown signal received, gracefully shutting down")

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
				return err
			}
			logger.Info("server stopped cleanly")
			return nil
		},
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(gc *gin.Context) {
		start := time.Now()
		gc.Next()
		logger.Info("request",
			zap.String("method", gc.Request.Method),
			zap.String("path", gc.Request.URL.Path),
			zap.Int("status", gc.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", gc.ClientIP()))
	}
}
