// Package httpapi exposes the read-only operational surface of the
// watcher: a health check, a swagger-documented REST API over the
// in-memory dispatch ledger and floor cache, and the /ws upgrade
// endpoint. Its route shape (gin.Default, /health, /api/v1 group,
// swagger doc.json + UI page) is adapted from the teacher's
// cmd/server/main.go router, which listings are not persisted to
// MySQL here (spec Non-goals) so /api/v1/recent reads from a bounded
// in-memory ring buffer instead of an order store.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/wshub"
)

// swaggerJSON is a minimal Swagger 2.0 spec describing the operational
// REST surface. Served at /swagger/doc.json.
const swaggerJSON = `{
  "swagger": "2.0",
  "info": {
    "title": "giftwatch API",
    "version": "1.0.0",
    "description": "Operational API for the Telegram gift-listing watcher: health, recent dispatches, floor cache peek, and the WebSocket broadcast feed."
  },
  "basePath": "/",
  "schemes": ["http"],
  "paths": {
    "/health": {
      "get": {
        "summary": "Health check",
        "produces": ["application/json"],
        "responses": { "200": { "description": "OK" } }
      }
    },
    "/api/v1/recent": {
      "get": {
        "summary": "Recently dispatched listings (in-memory, bounded)",
        "parameters": [
          { "name": "marketplace", "in": "query", "required": false, "type": "string" },
          { "name": "limit", "in": "query", "required": false, "type": "integer" }
        ],
        "responses": { "200": { "description": "OK" } }
      }
    },
    "/api/v1/floor": {
      "get": {
        "summary": "Peek the cached floor price for a collection or model",
        "parameters": [
          { "name": "marketplace", "in": "query", "required": true, "type": "string" },
          { "name": "scope", "in": "query", "required": true, "type": "string", "description": "gift or model" },
          { "name": "collection", "in": "query", "required": true, "type": "string" },
          { "name": "model", "in": "query", "required": false, "type": "string" }
        ],
        "responses": {
          "200": { "description": "OK" },
          "404": { "description": "not cached" }
        }
      }
    },
    "/ws": {
      "get": {
        "summary": "Upgrade to a WebSocket connection receiving new_gift broadcast events",
        "responses": { "101": { "description": "Switching Protocols" } }
      }
    }
  }
}`

// swaggerHTML renders Swagger UI from a CDN and loads our /swagger/doc.json.
const swaggerHTML = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>giftwatch API Docs</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
    <script>
      window.addEventListener('load', function() {
        const ui = SwaggerUIBundle({ url: '/swagger/doc.json', dom_id: '#swagger-ui' });
        window.ui = ui;
      });
    </script>
  </body>
</html>`

// Logger is the minimal logging surface the router needs.
type Logger interface {
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// Router builds and owns the gin engine.
type Router struct {
	engine *gin.Engine
	ledger *Ledger
	cache  *enrich.FloorCache
	hub    *wshub.Hub
	log    Logger
}

// New builds the gin engine with every route registered. ledgerCap bounds
// the in-memory recent-dispatch ring buffer.
func New(ledgerCap int, cache *enrich.FloorCache, hub *wshub.Hub, log Logger) *Router {
	engine := gin.Default()
	engine.Use(corsMiddleware())

	r := &Router{
		engine: engine,
		ledger: NewLedger(ledgerCap),
		cache:  cache,
		hub:    hub,
		log:    log,
	}
	r.registerRoutes()
	return r
}

func corsMiddleware() gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

func (r *Router) registerRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")
	api.GET("/recent", r.handleRecent)
	api.GET("/floor", r.handleFloor)

	r.engine.GET("/ws", r.handleWS)

	r.engine.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
	r.engine.GET("/swagger", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
	r.engine.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
}

// Handler returns the http.Handler to pass to an http.Server.
func (r *Router) Handler() http.Handler { return r.engine }

// Ledger returns the in-memory dispatch ledger; cmd/server records each
// new_gift event into it as Dispatch broadcasts the event.
func (r *Router) Ledger() *Ledger { return r.ledger }

func (r *Router) handleRecent(c *gin.Context) {
	mp := marketplace.Name(c.Query("marketplace"))
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, r.ledger.Recent(mp, limit))
}

func (r *Router) handleFloor(c *gin.Context) {
	mp := marketplace.Name(c.Query("marketplace"))
	scope := enrich.Scope(c.Query("scope"))
	collection := c.Query("collection")
	model := c.Query("model")
	if mp == "" || collection == "" || (scope != enrich.ScopeGift && scope != enrich.ScopeModel) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "marketplace, collection and scope (gift|model) are required"})
		return
	}
	price, ok := r.cache.Get(mp, scope, collection, model)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not cached"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"marketplace": mp,
		"scope":       scope,
		"collection":  collection,
		"model":       model,
		"floor_ton":   price.String(),
	})
}

func (r *Router) handleWS(c *gin.Context) {
	if err := r.hub.Upgrade(c.Writer, c.Request); err != nil {
		if r.log != nil {
			r.log.Warn("websocket upgrade failed", "error", err)
		}
	}
}

