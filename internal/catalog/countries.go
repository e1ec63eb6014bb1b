// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// CountryNamer resolves ISO country codes to display names through the
// REST Countries API.
type CountryNamer struct {
	Client  *http.Client
	BaseURL string
}

// NewCountryNamer creates a CountryNamer using cfg's countries URL and timeout.
func NewCountryNamer(cfg types.CatalogConfig) *CountryNamer {
	base := cfg.CountriesURL
	if base == "" {
		base = types.DefaultCountriesURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	return &CountryNamer{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: base,
	}
}

// CountryName returns the common name of the country with the given code.
// It makes a single request; callers decide how to handle failure.
func (n *CountryNamer) CountryName(ctx context.Context, code string) (string, error) {
	reqURL := strings.TrimRight(n.BaseURL, "/") + "/alpha/" + url.PathEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("country lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: country lookup returned HTTP %d", ErrUpstream, resp.StatusCode)
	}

	var countries []struct {
		Name struct {
			Common string `json:"common"`
		} `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countries); err != nil {
		return "", fmt.Errorf("parsing country lookup: %w", err)
	}
	if len(countries) == 0 || countries[0].Name.Common == "" {
		return "", fmt.Errorf("no name for country %s", code)
	}
	return countries[0].Name.Common, nil
}
