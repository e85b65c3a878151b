package rates

import "context"

type RatesClient interface {
	FetchJSON(ctx context.Context, url, apiKey string) (any, error)
}
