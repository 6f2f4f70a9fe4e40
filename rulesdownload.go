package corehub

import (
	"context"
	"net/http"

	"github.com/corehub/sdk/internal/rulesdownload"
)

// RulesDownloader is the conditional-GET rule archive fetcher (spec §4.6),
// re-exported so hosts can drive load_remote_rules/load_cached_rules
// without reaching into internal/.
type RulesDownloader = rulesdownload.Downloader

// NewRulesDownloader constructs a RulesDownloader caching under dataRoot. A
// nil client defaults to http.DefaultClient.
func NewRulesDownloader(dataRoot string, client *http.Client) *RulesDownloader {
	return rulesdownload.New(dataRoot, client)
}

// LoadRemoteRules fetches and parses the rule document at url, following
// the conditional-GET/cache flow, then installs it via ReplaceRules.
func (c *SDKCore) LoadRemoteRules(ctx context.Context, d *RulesDownloader, url string) error {
	body, err := d.LoadFromURL(ctx, url)
	if err != nil {
		return err
	}
	doc, err := ParseRules(body)
	if err != nil {
		return err
	}
	c.ReplaceRules(doc)
	return nil
}

// LoadCachedRules installs whatever rule document is already cached for
// url, without making a network request.
func (c *SDKCore) LoadCachedRules(d *RulesDownloader, url string) (bool, error) {
	body, ok := d.LoadCached(url)
	if !ok {
		return false, nil
	}
	doc, err := ParseRules(body)
	if err != nil {
		return false, err
	}
	c.ReplaceRules(doc)
	return true, nil
}
