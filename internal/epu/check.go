package epu

import (
	"context"
	"fmt"
)

// Check probes the configured distributor URL without downloading the
// archive and reports what it advertises.
func (s *EPUService) Check(ctx context.Context) (*RemoteInfo, error) {
	if s.params.EpisodeURL == "" {
		return nil, fmt.Errorf("no episode URL configured")
	}
	info, err := s.fetcher.Probe(ctx, s.params.EpisodeURL)
	if err != nil {
		return nil, fmt.Errorf("checking remote: %w", err)
	}
	s.logger.Info("remote probed", "name", info.Filename, "bytes", info.Size)
	return info, nil
}
