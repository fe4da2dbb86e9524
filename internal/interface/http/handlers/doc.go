// Package handlers contains health checking and reusable HTTP middleware.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(store))
//	checker.AddCheck("redis", handlers.NewRedisCheck(rdb))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Warn("health check failed", logger.String("message", status.Message))
//	}
//
// # Middleware
//
// Middleware are plain func(http.Handler) http.Handler values and compose
// with Chain; the first middleware passed is the outermost:
//
//	h := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.CORSMiddleware(handlers.CORSConfig{AllowAll: true}),
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)(mux)
package handlers
