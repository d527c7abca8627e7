// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/foresight/pkg/logging"
	"github.com/AleutianAI/foresight/services/engine/collab"
	"github.com/AleutianAI/foresight/services/engine/handlers"
	"github.com/AleutianAI/foresight/services/engine/observability"
	"github.com/AleutianAI/foresight/services/engine/routes"
)

func initTracer() (func(context.Context), error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String("foresight-engine")))
	if err != nil {
		return nil, err
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace provider", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("ENGINE_PORT")
	if port == "" {
		port = "12320"
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "engine",
		LogDir:  os.Getenv("ENGINE_LOG_DIR"),
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	synthesizer, err := collab.NewSynthesizer(os.Getenv("SYNTHESIS_BACKEND"))
	if err != nil {
		log.Fatalf("failed to initialize the synthesis backend: %v", err)
	}
	researcher := collab.NewHTTPResearcher()

	mgr := handlers.NewManager(researcher, synthesizer, metrics)

	router := gin.Default()
	routes.SetupRoutes(router, mgr)

	slog.Info("Scenario engine listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
