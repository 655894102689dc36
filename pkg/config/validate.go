package config

import (
	"fmt"
	"time"

	"github.com/khufkens/greenwave/pkg/products"
)

// Validate checks a loaded configuration for problems the app should refuse
// to start with.
func (c *ConfigData) Validate() error {
	seen := make(map[string]bool, len(c.Sites))
	for i := range c.Sites {
		site := &c.Sites[i]
		if err := site.Validate(); err != nil {
			return fmt.Errorf("site %q: %w", site.Name, err)
		}
		if seen[site.Name] {
			return fmt.Errorf("duplicate site name %q", site.Name)
		}
		seen[site.Name] = true
	}

	for i := range c.Controllers {
		ctrl := &c.Controllers[i]
		if ctrl.PhenoCache == nil {
			continue
		}
		if _, err := ctrl.PhenoCache.RecomputeInterval(); err != nil {
			return fmt.Errorf("controller %q: %w", ctrl.Type, err)
		}
		if err := validateThresholds(ctrl.PhenoCache.Thresholds); err != nil {
			return fmt.Errorf("controller %q: %w", ctrl.Type, err)
		}
	}

	return nil
}

// Validate checks a single site entry.
func (s *SiteData) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("site name must not be empty")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", s.Longitude)
	}

	switch s.Type {
	case SiteTypeORNL:
		product, err := products.Lookup(s.Product)
		if err != nil {
			return err
		}
		if len(s.Bands) == 0 {
			return fmt.Errorf("ornl sites need at least one band")
		}
		for _, band := range s.Bands {
			if _, err := product.Band(band); err != nil {
				return err
			}
		}
		if s.KmAboveBelow < 0 || s.KmLeftRight < 0 {
			return fmt.Errorf("subset extents must not be negative")
		}
		if s.BackfillYears < 0 {
			return fmt.Errorf("backfill-years must not be negative")
		}
		if s.FetchTime != "" {
			if _, err := time.Parse("15:04", s.FetchTime); err != nil {
				return fmt.Errorf("fetch-time %q is not HH:MM: %w", s.FetchTime, err)
			}
		}
	case SiteTypePhenoCam:
		if s.ROI == "" {
			return fmt.Errorf("phenocam sites need an roi")
		}
		if s.PollInterval != "" {
			if _, err := time.ParseDuration(s.PollInterval); err != nil {
				return fmt.Errorf("poll-interval %q: %w", s.PollInterval, err)
			}
		}
	case SiteTypeFieldStream:
		if s.Hostname == "" || s.Port == "" {
			return fmt.Errorf("fieldstream sites need hostname and port")
		}
	case "":
		return fmt.Errorf("site type must be set")
	default:
		return fmt.Errorf("unknown site type %q", s.Type)
	}

	if s.Phenology != nil {
		if err := validateThresholds(s.Phenology.Thresholds); err != nil {
			return err
		}
	}

	return nil
}

// RecomputeInterval parses the cache interval, defaulting to six hours.
func (p *PhenoCacheData) RecomputeInterval() (time.Duration, error) {
	if p.Interval == "" {
		return 6 * time.Hour, nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0, fmt.Errorf("interval %q: %w", p.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %v", d)
	}
	return d, nil
}

func validateThresholds(thresholds []float64) error {
	for i, t := range thresholds {
		if t <= 0 || t >= 1 {
			return fmt.Errorf("threshold %v must be between 0 and 1 exclusive", t)
		}
		if i > 0 && t <= thresholds[i-1] {
			return fmt.Errorf("thresholds must be strictly increasing, %v follows %v", t, thresholds[i-1])
		}
	}
	return nil
}
