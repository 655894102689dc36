package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/khufkens/greenwave/internal/storage"
)

// CheckHealth returns the current health status of the stream storage backend
func (s *Storage) CheckHealth() storage.HealthData {
	if s.listener == nil {
		return storage.CreateHealthData("unhealthy", "Stream listener not initialized", errors.New("listener is nil"))
	}

	var details []string
	details = append(details, fmt.Sprintf("listening on %v", s.listener.Addr()))

	if s.streamConfig.PullFromSite != "" {
		details = append(details, fmt.Sprintf("site filter: %s", s.streamConfig.PullFromSite))
	}

	details = append(details, fmt.Sprintf("subscribers: %d connected", s.subscriberCount()))

	return storage.CreateHealthData("healthy", fmt.Sprintf("Stream server operational (%s)", strings.Join(details, ", ")), nil)
}
