// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valgen

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all valgen routes with the router.
//
// Description:
//
//	Registers all /v1/valgen/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET /v1/valgen/session - WebSocket session for value generation
//	GET /v1/valgen/dataset - Export training dataset (jsonl or csv)
//	GET /v1/valgen/stats - Service counters
//	GET /v1/valgen/health - Health check
//	GET /v1/valgen/ready - Readiness check
//
// Example:
//
//	svc, _ := valgen.New(valgen.DefaultServiceConfig())
//	handlers := valgen.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	valgen.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	vg := rg.Group("/valgen")
	{
		vg.GET("/session", handlers.HandleSession)
		vg.GET("/dataset", handlers.HandleDataset)
		vg.GET("/stats", handlers.HandleStats)

		vg.GET("/health", handlers.HandleHealth)
		vg.GET("/ready", handlers.HandleReady)
	}
}
