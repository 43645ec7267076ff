// Package epu implements the episode update service: it fetches an
// episode archive from the configured distributor, stages it in a
// content-addressed cache, and merges it into the local episodes
// directory while preserving player data. Collaborators (download,
// vault, encryption, database) are defined as interfaces here and
// implemented in their own packages.
package epu

// ServiceParams carries the resolved configuration an EPUService
// operates with.
type ServiceParams struct {
	// EpisodesDir is the SMBX2 episodes directory installs live in.
	EpisodesDir string
	// EpisodeURL is the distributor URL the archive is fetched from.
	EpisodeURL string
	// Preserve lists glob patterns for player files the merge must
	// never overwrite or delete.
	Preserve []string
	// MarkerExt is the file extension marking an episode root.
	MarkerExt string
	// CacheDir is the root of the content-addressed stage cache.
	CacheDir string
}

type EPUService struct {
	params    ServiceParams
	database  Database
	vault     Vault
	fetcher   Fetcher
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

func NewEPUService(
	params ServiceParams,
	database Database,
	vault Vault,
	fetcher Fetcher,
	encryptor Encryptor,
	logger Logger,
	clock Clock,
	idgen IDGenerator,
) *EPUService {
	return &EPUService{
		params:    params,
		database:  database,
		vault:     vault,
		fetcher:   fetcher,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}
