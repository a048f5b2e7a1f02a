// internal/clients/accounts_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"bookexchange/internal/accounts"
)

type AccountsClient struct {
	*baseClient
}

// NewAccountsClient returns a client for the accounts service. httpClient
// may be nil.
func NewAccountsClient(baseURL string, httpClient *http.Client) *AccountsClient {
	return &AccountsClient{newBaseClient("accounts", baseURL, httpClient)}
}

func (c *AccountsClient) GetUser(ctx context.Context, id int64) (*accounts.User, error) {
	var user accounts.User
	if err := c.getJSON(ctx, fmt.Sprintf("/users/%d", id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
