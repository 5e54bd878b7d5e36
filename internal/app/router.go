package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"supportportal.io/portal/internal/api/handlers"
	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/config"
)

// defaultAllowedOrigins are the frontend dev servers accepted when no
// origins are configured.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))

	handlers.RegisterRoutes(router, server, middleware.JWTAuth(jwtCfg))
	return router
}

// buildCORSConfig turns the server section into a cors.Config. A "*" origin
// only takes effect with UnsafeAllowAllOrigins, and then credentials are off.
func buildCORSConfig(cfg *config.Config) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", "X-Export-Count", middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		out.AllowAllOrigins = true
		out.AllowCredentials = false
		return out
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	out.AllowOrigins = origins
	return out
}
