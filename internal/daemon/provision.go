package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
	"drivefs/internal/metrics"
	"drivefs/internal/storage"
	"drivefs/internal/util"
	"drivefs/internal/vfs"
)

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	MetaPath  string // drive registry file
	DrivesDir string // directory for per-drive data files and locks
	Backend   string // storage backend for new drives
	DBContext storage.DBContext
	LockWait  time.Duration     // how long Open waits for a locked drive
	Auth      Authenticator     // authenticator handed to opened instances
	Metrics   *metrics.Recorder // optional
}

// DefaultProvisionerConfig builds a config from settings rooted at ConfigDir.
func DefaultProvisionerConfig(settings *GlobalSettings) ProvisionerConfig {
	return ProvisionerConfig{
		MetaPath:  MetaFilePath(),
		DrivesDir: DrivesDir(),
		Backend:   settings.Backend,
		DBContext: storage.DBContextCLI,
		LockWait:  time.Duration(settings.LockWait) * time.Second,
	}
}

// Provisioner creates drives, keeps the owner registry and opens drive
// instances. At most one instance per owner runs at a time across
// processes.
type Provisioner struct {
	cfg  ProvisionerConfig
	meta *storage.MetaFile
}

// NewProvisioner opens (or creates) the registry described by cfg.
func NewProvisioner(cfg ProvisionerConfig) (*Provisioner, error) {
	if cfg.Backend == "" {
		cfg.Backend = storage.BackendSQLite
	}
	if cfg.Auth == nil {
		cfg.Auth = ContextAuthenticator{}
	}
	if err := os.MkdirAll(cfg.DrivesDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create drives directory: %w", err)
	}
	meta, err := storage.OpenOrCreateMetaWithContext(cfg.MetaPath, cfg.DBContext)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return &Provisioner{cfg: cfg, meta: meta}, nil
}

// Close closes the registry.
func (p *Provisioner) Close() error {
	return p.meta.Close()
}

// CreateDrive allocates a new drive for owner and writes its initial
// snapshot. Anonymous owners, invalid usernames and owners that already
// have a drive are rejected.
func (p *Provisioner) CreateDrive(ctx context.Context, owner vfs.Identity, username string) (*storage.DriveEntry, error) {
	const op = "create_drive"

	if owner == "" || owner == vfs.AnonymousIdentity {
		return nil, &vfs.OpError{Op: op, Target: string(owner), Err: common.ErrUnauthorized}
	}
	drive, err := vfs.New(owner, username)
	if err != nil {
		return nil, err
	}
	existing, err := p.meta.DriveByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &vfs.OpError{Op: op, Target: string(owner), Err: common.ErrDriveExists}
	}

	entry, err := p.meta.AddDrive(ctx, storage.DriveEntry{
		Owner:      owner,
		Username:   vfs.BareUsername(drive.Username()),
		Backend:    p.cfg.Backend,
		InstanceID: drive.InstanceID(),
	})
	if err != nil {
		return nil, err
	}

	dataFile := filepath.Join(p.cfg.DrivesDir, storage.DataFileName(entry.Index, entry.Backend))
	if err := p.writeInitial(ctx, entry.Backend, dataFile, drive); err != nil {
		if rmErr := p.meta.RemoveDrive(ctx, owner); rmErr != nil {
			log.WithError(rmErr).WithField("owner", owner).Warn("daemon: failed to roll back drive registration")
		}
		return nil, err
	}
	if err := p.meta.UpdateDriveFile(ctx, owner, dataFile); err != nil {
		return nil, err
	}
	entry.DataFile = dataFile

	log.WithFields(log.Fields{
		"owner":   owner,
		"index":   entry.Index,
		"backend": entry.Backend,
	}).Info("daemon: drive created")
	return entry, nil
}

func (p *Provisioner) writeInitial(ctx context.Context, backend, dataFile string, drive *vfs.Drive) error {
	store, err := storage.OpenStore(backend, dataFile, p.cfg.DBContext)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, drive.ExportSnapshot()); err != nil {
		store.Close()
		return fmt.Errorf("write initial snapshot: %w", err)
	}
	return store.Close()
}

// GetUserDrive returns the registration for owner.
func (p *Provisioner) GetUserDrive(ctx context.Context, owner vfs.Identity) (*storage.DriveEntry, error) {
	entry, err := p.meta.DriveByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &vfs.OpError{Op: "get_user_drive", Target: string(owner), Err: common.ErrNotFound}
	}
	return entry, nil
}

// TotalDrives returns the number of drives ever created and still registered.
func (p *Provisioner) TotalDrives(ctx context.Context) (int, error) {
	return p.meta.CountDrives(ctx)
}

// DriveByIndex returns the drive with registry index idx.
func (p *Provisioner) DriveByIndex(ctx context.Context, idx int64) (*storage.DriveEntry, error) {
	entry, err := p.meta.DriveByIndex(ctx, idx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &vfs.OpError{Op: "drive_by_index", Target: fmt.Sprint(idx), Err: common.ErrNotFound}
	}
	return entry, nil
}

// ListDrives returns every registered drive.
func (p *Provisioner) ListDrives(ctx context.Context) ([]storage.DriveEntry, error) {
	return p.meta.ListDrives(ctx)
}

// Open locks the owner's drive, restores it and starts an instance. The
// lock is held until the instance is closed; if another process holds it
// for longer than LockWait, Open fails with common.ErrDriveLocked.
func (p *Provisioner) Open(ctx context.Context, owner vfs.Identity) (*Instance, error) {
	entry, err := p.GetUserDrive(ctx, owner)
	if err != nil {
		return nil, err
	}

	lock := flock.New(entry.DataFile + ".lock")
	err = util.PollUntil(ctx, util.PollConfig{Timeout: max(p.cfg.LockWait, time.Millisecond), Interval: 50 * time.Millisecond}, func() (bool, error) {
		return lock.TryLock()
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &vfs.OpError{Op: "open", Target: string(owner), Err: common.ErrDriveLocked}
	}
	if err != nil {
		return nil, fmt.Errorf("lock drive: %w", err)
	}

	inst, err := p.restore(ctx, entry, lock)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	inst.Start()
	return inst, nil
}

func (p *Provisioner) restore(ctx context.Context, entry *storage.DriveEntry, lock *flock.Flock) (*Instance, error) {
	store, err := storage.OpenStore(entry.Backend, entry.DataFile, p.cfg.DBContext)
	if err != nil {
		return nil, err
	}
	snap, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load drive %d: %w", entry.Index, err)
	}
	if snap.Owner != entry.Owner {
		store.Close()
		return nil, fmt.Errorf("drive %d belongs to %s: %w", entry.Index, snap.Owner, common.ErrStructure)
	}
	drive, err := vfs.Restore(snap)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := []InstanceOption{
		WithStore(store, entry.Backend),
		WithAuthenticator(p.cfg.Auth),
		withLock(lock),
	}
	if p.cfg.Metrics != nil {
		opts = append(opts, WithMetrics(p.cfg.Metrics))
	}
	return NewInstance(drive, opts...), nil
}
