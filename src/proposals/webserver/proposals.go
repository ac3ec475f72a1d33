package webserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/daostar/proposals-api/src/proposals/aggregator"
	"github.com/daostar/proposals-api/src/proposals/tally"
)

type Proposals struct {
	agg *aggregator.Aggregator
}

func NewProposals(agg *aggregator.Aggregator) Proposals {
	return Proposals{agg: agg}
}

// Get handles GET /proposals/:space. Query parameters: offchain_cursor
// (integer), onchain (organization slug, enables the on-chain merge),
// onchain_cursor (opaque token), refresh ("true" forces upstream fetches).
func (p Proposals) Get(c *gin.Context) {
	space := c.Param("space")
	refresh := strings.ToLower(c.Query("refresh")) == "true"

	var offchainCursor *int64
	if raw := c.Query("offchain_cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor format. Cursor must be an integer."})
			return
		}
		offchainCursor = &parsed
	}

	query := aggregator.Query{
		Space:          space,
		OffchainCursor: offchainCursor,
		OnchainSlug:    c.Query("onchain"),
		OnchainCursor:  c.Query("onchain_cursor"),
		Refresh:        refresh,
	}

	result, err := p.agg.Fetch(c.Request.Context(), query)
	if err != nil {
		log.Printf("proposals: offchain fetch for %s: %v", space, err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	env := result.Envelope()
	if result.OnchainErr != nil {
		log.Printf("proposals: onchain fetch for %s: %v", space, result.OnchainErr)
		c.JSON(upstreamStatus(result.OnchainErr), env)
		return
	}

	c.JSON(http.StatusOK, env)
}

// upstreamStatus maps fetch failures to a response code: a missing
// credential is our misconfiguration, everything else (rejected, retries
// exhausted, resolution and page failures) is an upstream fault.
func upstreamStatus(err error) int {
	if errors.Is(err, tally.ErrNoAPIKey) {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}
