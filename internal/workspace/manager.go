package workspace

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
	"github.com/amankumarsingh77/transcodebot/pkg/utils"
)

// ErrResourceExhausted is returned when disk space or the open-workspace
// ceiling does not allow another allocation.
var ErrResourceExhausted = errors.New("workspace: resource exhausted")

// Handle references one job's scratch directory.
type Handle struct {
	jobID string
	path  string
}

func (h *Handle) JobID() string {
	return h.jobID
}

func (h *Handle) Path() string {
	return h.path
}

// Manager allocates and reclaims per-job scratch directories under a single
// root. Paths embed the job id, so a directory is never reused across jobs.
type Manager struct {
	cfg    *config.Config
	logger logger.Logger

	mu   sync.Mutex
	open map[string]*Handle
}

func NewManager(cfg *config.Config, logger logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(cfg.Workspace.Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "workspace: create root")
	}
	probe := filepath.Join(cfg.Workspace.Root, ".probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return nil, errors.Wrap(err, "workspace: root not writable")
	}
	os.Remove(probe)

	return &Manager{
		cfg:    cfg,
		logger: logger,
		open:   make(map[string]*Handle),
	}, nil
}

// Allocate creates an isolated directory for the job. It fails with
// ErrResourceExhausted when free disk is below the configured minimum or too
// many workspaces are already open.
func (m *Manager) Allocate(jobID string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.open[jobID]; ok {
		return h, nil
	}
	if len(m.open) >= m.cfg.Workspace.MaxOpenWorkspaces {
		return nil, errors.Wrapf(ErrResourceExhausted, "open workspaces at ceiling %d", m.cfg.Workspace.MaxOpenWorkspaces)
	}
	if min := m.cfg.Workspace.MinFreeDiskBytes; min > 0 {
		free, err := utils.FreeDiskBytes(m.cfg.Workspace.Root)
		if err != nil {
			return nil, errors.Wrap(err, "workspace: disk usage")
		}
		if free < min {
			return nil, errors.Wrapf(ErrResourceExhausted, "free disk %d below minimum %d", free, min)
		}
	}

	path := filepath.Join(m.cfg.Workspace.Root, "job-"+jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "workspace: create dir")
	}

	h := &Handle{jobID: jobID, path: path}
	m.open[jobID] = h
	return h, nil
}

// Release deletes the job's directory and everything under it. Releasing a
// job with no open workspace is a no-op.
func (m *Manager) Release(jobID string) {
	m.mu.Lock()
	h, ok := m.open[jobID]
	delete(m.open, jobID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := os.RemoveAll(h.path); err != nil {
		m.logger.Errorf("workspace: release %s: %v", h.path, err)
	}
}

// Open returns the number of currently allocated workspaces.
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}
