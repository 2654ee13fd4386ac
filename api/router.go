// api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/alvera-ai/interoperability-template-generator/api/handlers"
	"github.com/alvera-ai/interoperability-template-generator/api/middleware"
	"github.com/alvera-ai/interoperability-template-generator/config"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/requester"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(session *app.Session, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	ratelimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	router.Use(middleware.RateLimitMiddleware(ratelimiter))
	// Must wrap the handlers, so it is registered last.
	router.Use(middleware.ErrorHandler())

	specHandler := handlers.NewSpecHandler(session)
	callHandler := handlers.NewCallHandler(session)
	tableHandler := handlers.NewTableHandler(session)
	templateHandler := handlers.NewTemplateHandler(session)

	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	apiRoutes := router.Group("/api/v1")
	{
		apiRoutes.GET("/status", func(c *gin.Context) {
			status := gin.H{
				"store_backend":        session.Store().BackendName(),
				"generation_available": session.GenerationAvailable(),
				"user_agent":           requester.DefaultUserAgent,
			}
			if active, err := session.ActiveSpec(); err == nil {
				status["active_spec"] = active
			}
			c.JSON(http.StatusOK, status)
		})

		apiRoutes.POST("/specs", specHandler.LoadSpec)
		apiRoutes.GET("/specs", specHandler.ListSpecs)
		apiRoutes.GET("/specs/active", specHandler.ActiveSpec)
		apiRoutes.GET("/specs/:spec_name", specHandler.GetSpec)
		apiRoutes.POST("/specs/:spec_name/activate", specHandler.ActivateSpec)

		apiRoutes.GET("/endpoints", specHandler.ListEndpoints)
		apiRoutes.GET("/endpoints/schema", specHandler.EndpointSchema)

		apiRoutes.POST("/calls", callHandler.CallEndpoint)
		apiRoutes.POST("/validate", callHandler.Validate)
		apiRoutes.GET("/results", callHandler.RecentResults)
		apiRoutes.GET("/results/:result_id", callHandler.ResultDetails)

		apiRoutes.POST("/tables", tableHandler.CreateTable)
		apiRoutes.GET("/tables", tableHandler.ListTables)
		apiRoutes.GET("/tables/:table_name", tableHandler.TableStructure)
		apiRoutes.POST("/tables/:table_name/records", tableHandler.InsertRecords)
		apiRoutes.GET("/tables/:table_name/records", tableHandler.ListRecords)

		apiRoutes.GET("/templates", templateHandler.ListTemplates)
		apiRoutes.POST("/templates", templateHandler.StoreTemplate)
		apiRoutes.POST("/templates/generate", templateHandler.GenerateTemplate)
		apiRoutes.POST("/templates/propose", templateHandler.ProposeMapping)
		apiRoutes.GET("/templates/:template_name", templateHandler.GetTemplate)
		apiRoutes.POST("/templates/:template_name/apply", templateHandler.ApplyTemplate)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, middleware.RequestIDHeader)
	cc.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}
