package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daostar/proposals-api/src/proposals/aggregator"
)

func New(agg *aggregator.Aggregator) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery(), cors.Default())
	attachRoutes(g, agg)
	return g
}

func attachRoutes(g *gin.Engine, agg *aggregator.Aggregator) {
	h := NewProposals(agg)

	g.GET("/", docs)
	g.GET("/proposals/:space", h.Get)
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Anything unmatched lands on the documentation page.
	g.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})
}
