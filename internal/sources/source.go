// Package sources contains the acquisition backends that turn remote
// subset archives, camera summary files, and live sample streams into
// samples on the storage distributor.
package sources

import (
	"fmt"

	"github.com/khufkens/greenwave/pkg/config"
)

// Source is an interface that provides standard methods for various
// sample acquisition backends
type Source interface {
	StartSource() error
	StopSource() error
	SiteName() string
}

// LoadSiteConfig loads configuration for a specific site
func LoadSiteConfig(configProvider config.ConfigProvider, siteName string) (*config.SiteData, error) {
	site, err := configProvider.GetSite(siteName)
	if err != nil {
		return nil, fmt.Errorf("site [%s] not found in configuration: %w", siteName, err)
	}
	return site, nil
}
