package interfaces

import (
	"context"

	"github.com/ternarybob/valuer/internal/models"
)

// DataProvider is one external financial data source. Fetch performs the
// round trips CallCost declares, bounded by the provider's own transport timeout and returns a
// classified *models.Error on failure. Implementations never retry.
type DataProvider interface {
	// ID returns the provider's source id (e.g. "eodhd").
	ID() string

	// RequiresCredentials reports whether the provider needs an API key.
	RequiresCredentials() bool

	// CallCost is the number of HTTP round trips Fetch makes for req. The
	// adapter reserves that many rate-limit tokens before each attempt.
	CallCost(req models.FinancialDataRequest) int

	// Fetch retrieves the raw provider payload for the request.
	Fetch(ctx context.Context, req models.FinancialDataRequest) (*models.RawPayload, error)
}
