// internal/clients/catalog_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"bookexchange/internal/catalog"
)

type CatalogClient struct {
	*baseClient
}

// NewCatalogClient returns a client for the catalog service. httpClient may
// be nil.
func NewCatalogClient(baseURL string, httpClient *http.Client) *CatalogClient {
	return &CatalogClient{newBaseClient("catalog", baseURL, httpClient)}
}

func (c *CatalogClient) GetBook(ctx context.Context, id int64) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.getJSON(ctx, fmt.Sprintf("/books/%d", id), &book); err != nil {
		return nil, err
	}
	return &book, nil
}
