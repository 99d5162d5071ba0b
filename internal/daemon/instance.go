package daemon

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
	"drivefs/internal/metrics"
	"drivefs/internal/storage"
	"drivefs/internal/vfs"
)

func init() {
	// Default logging to discard until explicitly enabled via --logging flag
	log.SetOutput(io.Discard)
}

// Instance hosts one drive. A single goroutine executes every operation in
// arrival order, so the drive itself needs no locking.
type Instance struct {
	id      string
	drive   *vfs.Drive
	auth    Authenticator
	store   storage.SnapshotStore
	backend string
	metrics metrics.DriveMetrics
	lock    *flock.Flock

	reqs      chan request
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	// Owned by the loop goroutine.
	dirty bool
}

type request struct {
	op     string
	mutate bool
	caller vfs.Identity
	fn     func(d *vfs.Drive, caller vfs.Identity) (any, error)
	reply  chan result
}

// result is what the loop hands back for a request. Values produced on the
// loop goroutine only reach the caller through the reply channel.
type result struct {
	val any
	err error
}

// InstanceOption configures an Instance.
type InstanceOption func(*Instance)

// WithAuthenticator sets how callers are identified. The default is
// ContextAuthenticator.
func WithAuthenticator(a Authenticator) InstanceOption {
	return func(i *Instance) { i.auth = a }
}

// WithStore persists a snapshot after every successful mutation.
func WithStore(store storage.SnapshotStore, backend string) InstanceOption {
	return func(i *Instance) {
		i.store = store
		i.backend = backend
	}
}

// WithMetrics records operations in m.
func WithMetrics(m metrics.DriveMetrics) InstanceOption {
	return func(i *Instance) {
		if m != nil {
			i.metrics = m
		}
	}
}

// withLock releases l when the instance closes.
func withLock(l *flock.Flock) InstanceOption {
	return func(i *Instance) { i.lock = l }
}

// NewInstance wraps drive. Call Start before submitting operations.
func NewInstance(drive *vfs.Drive, opts ...InstanceOption) *Instance {
	i := &Instance{
		id:      uuid.NewString(),
		drive:   drive,
		auth:    ContextAuthenticator{},
		metrics: (*metrics.Recorder)(nil),
		reqs:    make(chan request),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ID identifies this execution context.
func (i *Instance) ID() string {
	return i.id
}

// Owner returns the drive owner. The owner never changes.
func (i *Instance) Owner() vfs.Identity {
	return i.drive.Owner()
}

// Start launches the instance goroutine.
func (i *Instance) Start() {
	i.startOnce.Do(func() {
		log.WithFields(log.Fields{
			"instance": i.id,
			"owner":    i.drive.Owner(),
		}).Info("daemon: instance started")
		go i.loop()
	})
}

// Close stops the instance, flushes unsaved state and releases the store
// and drive lock. It is safe to call more than once.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		i.Start()
		close(i.quit)
		<-i.done

		if i.dirty {
			i.closeErr = i.persist()
		}
		if i.store != nil {
			if err := i.store.Close(); err != nil && i.closeErr == nil {
				i.closeErr = err
			}
		}
		if i.lock != nil {
			if err := i.lock.Unlock(); err != nil && i.closeErr == nil {
				i.closeErr = err
			}
		}
		log.WithField("instance", i.id).Info("daemon: instance stopped")
	})
	return i.closeErr
}

func (i *Instance) loop() {
	defer close(i.done)
	for {
		select {
		case r := <-i.reqs:
			r.reply <- i.handle(r)
		case <-i.quit:
			return
		}
	}
}

func (i *Instance) handle(r request) result {
	start := time.Now()
	val, err := i.exec(r)
	i.metrics.RecordOperation(r.op, time.Since(start), err)

	entry := log.WithFields(log.Fields{"op": r.op, "caller": r.caller})
	if err != nil {
		entry.WithError(err).Warn("daemon: operation failed")
		return result{err: err}
	}
	entry.Debug("daemon: operation done")

	if r.mutate {
		i.dirty = true
		if err := i.persist(); err != nil {
			log.WithError(err).WithField("op", r.op).Warn("daemon: snapshot save failed, will retry on next mutation")
		}
		stats := i.drive.Stats()
		i.metrics.SetRecords(stats.Folders, stats.Files)
	}
	return result{val: val}
}

func (i *Instance) exec(r request) (any, error) {
	if r.mutate && !i.drive.IsOwner(r.caller) {
		return nil, &vfs.OpError{Op: r.op, Target: string(r.caller), Err: common.ErrUnauthorized}
	}
	return r.fn(i.drive, r.caller)
}

// persist saves the drive when a store is attached. Only called from the
// loop goroutine or after it has exited.
func (i *Instance) persist() error {
	if i.store == nil {
		i.dirty = false
		return nil
	}
	start := time.Now()
	err := i.store.Save(context.Background(), i.drive.ExportSnapshot())
	i.metrics.RecordPersist(i.backend, time.Since(start), err)
	if err == nil {
		i.dirty = false
	}
	return err
}

// submit runs fn on the instance goroutine and waits for its result. When
// ctx ends after the request was accepted the operation still completes on
// the loop, but its result is dropped.
func (i *Instance) submit(ctx context.Context, op string, mutate bool, fn func(d *vfs.Drive, caller vfs.Identity) (any, error)) (any, error) {
	caller, err := i.auth.VerifyCaller(ctx)
	if err != nil {
		return nil, &vfs.OpError{Op: op, Err: fmt.Errorf("%w: %v", common.ErrUnauthorized, err)}
	}

	r := request{op: op, mutate: mutate, caller: caller, fn: fn, reply: make(chan result, 1)}
	select {
	case i.reqs <- r:
	case <-i.quit:
		return nil, &vfs.OpError{Op: op, Err: common.ErrInstanceClosed}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-r.reply:
		return res.val, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call runs a typed operation through submit. The zero value is returned
// with every error.
func call[T any](ctx context.Context, i *Instance, op string, mutate bool, fn func(d *vfs.Drive, caller vfs.Identity) (T, error)) (T, error) {
	var zero T
	val, err := i.submit(ctx, op, mutate, func(d *vfs.Drive, caller vfs.Identity) (any, error) {
		return fn(d, caller)
	})
	if err != nil {
		return zero, err
	}
	out, _ := val.(T)
	return out, nil
}

// do runs an operation that only reports an error.
func (i *Instance) do(ctx context.Context, op string, mutate bool, fn func(d *vfs.Drive, caller vfs.Identity) error) error {
	_, err := i.submit(ctx, op, mutate, func(d *vfs.Drive, caller vfs.Identity) (any, error) {
		return nil, fn(d, caller)
	})
	return err
}

// Flush saves the drive if an earlier save failed.
func (i *Instance) Flush(ctx context.Context) error {
	return i.do(ctx, "flush", false, func(*vfs.Drive, vfs.Identity) error {
		if !i.dirty {
			return nil
		}
		return i.persist()
	})
}

// --- Core operations ---

func (i *Instance) Ping(ctx context.Context) (string, error) {
	return call(ctx, i, "ping", false, func(d *vfs.Drive, _ vfs.Identity) (string, error) {
		return d.Ping(), nil
	})
}

func (i *Instance) Username(ctx context.Context) (string, error) {
	return call(ctx, i, "username", false, func(d *vfs.Drive, _ vfs.Identity) (string, error) {
		return d.Username(), nil
	})
}

func (i *Instance) UpdateUsername(ctx context.Context, username string) error {
	return i.do(ctx, "update_username", true, func(d *vfs.Drive, _ vfs.Identity) error {
		return d.UpdateUsername(username)
	})
}

func (i *Instance) CreateFolder(ctx context.Context, path string, ns vfs.Namespace) (*vfs.FolderRecord, error) {
	return call(ctx, i, "create_folder", true, func(d *vfs.Drive, caller vfs.Identity) (*vfs.FolderRecord, error) {
		return d.CreateFolder(path, ns, caller)
	})
}

func (i *Instance) UpsertFile(ctx context.Context, path string, ns vfs.Namespace) (string, error) {
	return call(ctx, i, "upsert_file", true, func(d *vfs.Drive, caller vfs.Identity) (string, error) {
		return d.UpsertFile(path, ns, caller)
	})
}

func (i *Instance) RenameFolder(ctx context.Context, id, newName string) error {
	return i.do(ctx, "rename_folder", true, func(d *vfs.Drive, _ vfs.Identity) error {
		return d.RenameFolder(id, newName)
	})
}

func (i *Instance) RenameFile(ctx context.Context, id, newName string) error {
	return i.do(ctx, "rename_file", true, func(d *vfs.Drive, _ vfs.Identity) error {
		return d.RenameFile(id, newName)
	})
}

func (i *Instance) DeleteFolder(ctx context.Context, id string) error {
	return i.do(ctx, "delete_folder", true, func(d *vfs.Drive, _ vfs.Identity) error {
		return d.DeleteFolder(id)
	})
}

func (i *Instance) DeleteFile(ctx context.Context, id string) error {
	return i.do(ctx, "delete_file", true, func(d *vfs.Drive, _ vfs.Identity) error {
		return d.DeleteFile(id)
	})
}

func (i *Instance) UpsertCloudFileWithLocalSync(ctx context.Context, existingID string, incoming *vfs.FileRecord) (string, error) {
	return call(ctx, i, "sync_file", true, func(d *vfs.Drive, caller vfs.Identity) (string, error) {
		return d.UpsertCloudFileWithLocalSync(existingID, incoming, caller)
	})
}

func (i *Instance) UpsertCloudFolderWithLocalSync(ctx context.Context, id string, incoming *vfs.FolderRecord) (string, error) {
	return call(ctx, i, "sync_folder", true, func(d *vfs.Drive, _ vfs.Identity) (string, error) {
		return d.UpsertCloudFolderWithLocalSync(id, incoming)
	})
}

// --- Queries ---

func (i *Instance) GetFolderByID(ctx context.Context, id string) (*vfs.FolderRecord, error) {
	return call(ctx, i, "get_folder", false, func(d *vfs.Drive, _ vfs.Identity) (*vfs.FolderRecord, error) {
		return d.GetFolderByID(id), nil
	})
}

func (i *Instance) GetFolderByPath(ctx context.Context, path string) (*vfs.FolderRecord, error) {
	return call(ctx, i, "get_folder", false, func(d *vfs.Drive, _ vfs.Identity) (*vfs.FolderRecord, error) {
		return d.GetFolderByPath(path), nil
	})
}

func (i *Instance) GetFileByID(ctx context.Context, id string) (*vfs.FileRecord, error) {
	return call(ctx, i, "get_file", false, func(d *vfs.Drive, _ vfs.Identity) (*vfs.FileRecord, error) {
		return d.GetFileByID(id), nil
	})
}

func (i *Instance) GetFileByPath(ctx context.Context, path string) (*vfs.FileRecord, error) {
	return call(ctx, i, "get_file", false, func(d *vfs.Drive, _ vfs.Identity) (*vfs.FileRecord, error) {
		return d.GetFileByPath(path), nil
	})
}

func (i *Instance) FetchChildren(ctx context.Context, path string, limit, after uint32) (vfs.FetchResult, error) {
	return call(ctx, i, "fetch_children", false, func(d *vfs.Drive, _ vfs.Identity) (vfs.FetchResult, error) {
		return d.FetchChildren(path, limit, after), nil
	})
}

func (i *Instance) History(ctx context.Context, id string) ([]*vfs.FileRecord, error) {
	return call(ctx, i, "history", false, func(d *vfs.Drive, _ vfs.Identity) ([]*vfs.FileRecord, error) {
		return d.History(id), nil
	})
}

func (i *Instance) Stats(ctx context.Context) (vfs.DriveStats, error) {
	return call(ctx, i, "stats", false, func(d *vfs.Drive, _ vfs.Identity) (vfs.DriveStats, error) {
		return d.Stats(), nil
	})
}

func (i *Instance) ExportSnapshot(ctx context.Context) (*vfs.Snapshot, error) {
	return call(ctx, i, "export_snapshot", false, func(d *vfs.Drive, _ vfs.Identity) (*vfs.Snapshot, error) {
		return d.ExportSnapshot(), nil
	})
}
