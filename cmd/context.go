package cmd

import (
	"github.com/marcus/pos/internal/apiclient"
	"github.com/marcus/pos/internal/config"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/store"
	"github.com/marcus/pos/internal/syncconfig"
)

// openStore opens the shop database, applying the configured currency to
// output formatting on the way.
func openStore() (*store.Store, error) {
	dir := getBaseDir()
	s, err := store.Open(dir)
	if err != nil {
		output.Error("%v", err)
		return nil, err
	}
	output.Currency = config.GetCurrency(dir)
	return s, nil
}

// actingAdmin returns the identity new records are attributed to. Auth
// credentials win over the shop config so a logged-in admin is always
// attributed correctly.
func actingAdmin() string {
	if id := syncconfig.GetAdminID(); id != "" {
		return id
	}
	id, _ := config.GetAdminID(getBaseDir())
	return id
}

// newAPIClient builds a client from the stored credentials. Returns nil when
// no server is configured or the admin is not logged in.
func newAPIClient() *apiclient.Client {
	if !syncconfig.IsAuthenticated() {
		return nil
	}
	return apiclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), syncconfig.GetAdminID())
}
