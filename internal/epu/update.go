package epu

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"epu-go/internal/merge"
	"epu-go/internal/model"
	"epu-go/internal/stage"
)

// UpdateOptions adjusts a single update run.
type UpdateOptions struct {
	// InstallName overrides the install directory name derived from
	// the basename of the located episode root. It must be a plain
	// name, not a path.
	InstallName string
	// OnDownload receives download progress if set.
	OnDownload DownloadProgressFunc
	// OnMerge receives merge progress if set.
	OnMerge merge.ProgressFunc
}

// UpdateResult describes a completed update run.
type UpdateResult struct {
	InstallName   string
	InstallDir    string
	Fresh         bool
	ArchiveName   string
	ArchiveDigest digest.Digest
	// BackupName is the vault name of the pre-update backup. Empty
	// for fresh installs, which have nothing to back up.
	BackupName string
	Written    []string
	Deleted    []string
	Failed     []*merge.OpError
}

// Update fetches the configured episode archive, stages it, and merges
// it into the episodes directory. An existing install is backed up to
// the vault before the first file is touched. Files matching the
// preserve patterns survive the merge untouched. The run is recorded
// in the history database whether it succeeds or fails.
func (s *EPUService) Update(ctx context.Context, opts UpdateOptions) (*UpdateResult, error) {
	info, err := os.Stat(s.params.EpisodesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: s.params.EpisodesDir}
	}
	if err != nil {
		return nil, fmt.Errorf("checking episodes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("episodes path %s is not a directory", s.params.EpisodesDir)
	}

	if name := opts.InstallName; name != "" && !validInstallName(name) {
		return nil, fmt.Errorf("install name %q must be a plain directory name", name)
	}

	if err := s.vault.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}

	op, err := s.database.CreateUpdateOperation(s.idgen.New(), "update", s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("recording update start: %w", err)
	}

	res, err := s.update(ctx, opts)
	if err != nil {
		if ferr := s.database.FinishUpdateOperation(op.ID, StatusError, s.clock.Now(), model.UpdateDetails{}); ferr != nil {
			s.logger.Error("recording failed update", "error", ferr)
		}
		return nil, err
	}
	if err := s.recordChanges(op.ID, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *EPUService) update(ctx context.Context, opts UpdateOptions) (*UpdateResult, error) {
	s.logger.Info("fetching episode archive", "url", s.params.EpisodeURL)
	dl, err := s.fetcher.Fetch(ctx, s.params.EpisodeURL, opts.OnDownload)
	if err != nil {
		return nil, fmt.Errorf("downloading episode: %w", err)
	}
	defer os.Remove(dl.Path)
	s.logger.Info("archive downloaded", "name", dl.Name, "bytes", dl.Size, "digest", dl.Digest)

	tree, err := stage.Extract(dl.Path, s.params.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("staging archive: %w", err)
	}
	if tree.Cached {
		s.logger.Info("stage cache hit", "dir", tree.Dir)
	}

	root, err := stage.FindEpisodeRoot(tree.Root, s.params.MarkerExt)
	if err != nil {
		return nil, fmt.Errorf("locating episode root: %w", err)
	}

	installName := opts.InstallName
	if installName == "" {
		installName = filepath.Base(root)
	}
	res := &UpdateResult{
		InstallName:   installName,
		InstallDir:    filepath.Join(s.params.EpisodesDir, installName),
		ArchiveName:   dl.Name,
		ArchiveDigest: dl.Digest,
	}

	switch _, err := os.Stat(res.InstallDir); {
	case errors.Is(err, fs.ErrNotExist):
		res.Fresh = true
		s.logger.Info("fresh install", "dir", res.InstallDir)
		if err := os.MkdirAll(res.InstallDir, 0755); err != nil {
			return nil, fmt.Errorf("creating install directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("checking install directory: %w", err)
	default:
		backupName, err := s.createBackup(res.InstallDir)
		if err != nil {
			return nil, &BackupError{InstallDir: res.InstallDir, Err: err}
		}
		res.BackupName = backupName
		s.logger.Info("backup stored", "name", backupName)
	}

	plan, err := merge.NewPlan(root, res.InstallDir, merge.NewPreserveMatcher(s.params.Preserve))
	if err != nil {
		return nil, fmt.Errorf("planning merge: %w", err)
	}
	s.logger.Info("merge planned", "writes", len(plan.Writes()), "deletes", len(plan.Deletes()))

	mres := plan.Apply(opts.OnMerge)
	res.Written = mres.Written
	res.Deleted = mres.Deleted
	res.Failed = mres.Failed
	for _, f := range mres.Failed {
		s.logger.Warn("merge operation failed", "phase", f.Phase, "path", f.Path, "error", f.Err)
	}
	s.logger.Info("update complete", "install", res.InstallName, "changed", len(res.Written)+len(res.Deleted), "failed", len(res.Failed))
	return res, nil
}

// validInstallName accepts only plain directory names, so an override
// always resolves to a child of the episodes directory.
func validInstallName(name string) bool {
	return name == filepath.Base(name) && name != "." && name != ".."
}

// recordChanges persists the change set and closes out the operation row.
func (s *EPUService) recordChanges(opID int64, res *UpdateResult) error {
	if len(res.Written) > 0 {
		if err := s.database.RecordChangedPaths(opID, string(merge.PhaseWrite), res.Written); err != nil {
			return fmt.Errorf("recording written paths: %w", err)
		}
	}
	if len(res.Deleted) > 0 {
		if err := s.database.RecordChangedPaths(opID, string(merge.PhaseDelete), res.Deleted); err != nil {
			return fmt.Errorf("recording deleted paths: %w", err)
		}
	}
	details := model.UpdateDetails{
		ArchiveName:   res.ArchiveName,
		ArchiveDigest: res.ArchiveDigest.String(),
		InstallName:   res.InstallName,
		BackupName:    res.BackupName,
		FilesChanged:  int64(len(res.Written) + len(res.Deleted)),
	}
	if err := s.database.FinishUpdateOperation(opID, StatusSuccess, s.clock.Now(), details); err != nil {
		return fmt.Errorf("recording update finish: %w", err)
	}
	return nil
}
