// Package disknav tracks the disk navigation state: the active image, the
// active volume or raw offset, and the current directory. User selections are
// translated into dispatcher tasks and task outcomes are folded back into
// navigable context. The context is mutated only when folding a terminal
// outcome, never by a worker and never while a task is in flight.
package disknav

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/diskimage"
	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// State is the navigation workflow state.
type State int

// Navigation states.
const (
	StateNoImage State = iota
	StateVolumesPending
	StateVolumesListed
	StateFilesystemPending
	StateDirectoryListed
)

func (s State) String() string {
	switch s {
	case StateNoImage:
		return "no_image"
	case StateVolumesPending:
		return "volumes_pending"
	case StateVolumesListed:
		return "volumes_listed"
	case StateFilesystemPending:
		return "filesystem_pending"
	case StateDirectoryListed:
		return "directory_listed"
	default:
		return "unknown"
	}
}

// Navigation errors surfaced synchronously to the caller.
var (
	ErrNoVolumes    = errors.New("no volumes loaded; select an image first")
	ErrNoSuchVolume = errors.New("no volume with that slot")
	ErrNotDirectory = errors.New("entry is not a directory")
	ErrNoSuchEntry  = errors.New("no entry with that inode in the current listing")
)

// Context is the single source of truth for what a directory listing request
// needs. Exactly one of PartitionIndex or OffsetSectors is set once a volume
// has been selected; CurrentInode takes precedence over CurrentPath.
type Context struct {
	ImagePath      string
	PartitionIndex *int
	OffsetSectors  *uint64
	CurrentInode   *uint64
	CurrentPath    string
	FilesystemOpen bool
}

// Update is one notification to the UI layer. Err with Blocking set warrants
// a modal error; without it a status-line message suffices.
type Update struct {
	State     State
	Progress  string
	Volumes   []models.VolumeDescriptor
	Entries   []models.DirectoryEntry
	Label     string
	Err       error
	Blocking  bool
	Done      bool
	Cancelled bool
}

// resource is the dispatcher admission key: one disk task at a time.
const resource = "disk"

// Navigator folds user selections and task outcomes into navigation state.
type Navigator struct {
	dispatcher *dispatch.Dispatcher
	exec       dispatch.Executor

	mu      sync.Mutex
	state   State
	nav     Context
	volumes []models.VolumeDescriptor
	entries []models.DirectoryEntry
	label   string

	updates chan Update
}

// New creates a navigator dispatching against the given collaborator.
func New(d *dispatch.Dispatcher, opener diskimage.Opener) *Navigator {
	return &Navigator{
		dispatcher: d,
		exec:       NewExecutor(opener),
		state:      StateNoImage,
		updates:    make(chan Update, 128),
	}
}

// Updates returns the notification stream. Notifications are advisory; the
// authoritative state is read through State, Volumes, Entries and Context.
func (n *Navigator) Updates() <-chan Update { return n.updates }

// State returns the current navigation state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Context returns a copy of the navigation context.
func (n *Navigator) Context() Context {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nav
}

// Volumes returns the most recent volume enumeration.
func (n *Navigator) Volumes() []models.VolumeDescriptor {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.VolumeDescriptor, len(n.volumes))
	copy(out, n.volumes)
	return out
}

// Entries returns the current directory listing.
func (n *Navigator) Entries() []models.DirectoryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.DirectoryEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

// Label returns the open filesystem's type label, if any.
func (n *Navigator) Label() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.label
}

// SelectImage discards all navigation context and dispatches a fresh volume
// enumeration for the image. Valid in every state; rejected only when a task
// is already running.
func (n *Navigator) SelectImage(path string) (*dispatch.Task, error) {
	req := dispatch.Request{Kind: dispatch.KindEnumerateVolumes, ImagePath: path}
	t, err := n.dispatcher.Submit(resource, req, n.exec)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.state = StateVolumesPending
	n.nav = Context{ImagePath: path}
	n.volumes = nil
	n.entries = nil
	n.label = ""
	n.mu.Unlock()

	utils.LogInfo("image selected", map[string]string{"image": path})
	go n.pump(t)
	return t, nil
}

// SelectVolume dispatches the combined open-and-list task for the volume with
// the given slot. The synthetic whole-image volume navigates by offset 0; a
// real partition navigates by its slot. The root directory is listed.
func (n *Navigator) SelectVolume(slot int) (*dispatch.Task, error) {
	n.mu.Lock()
	if len(n.volumes) == 0 || n.state == StateNoImage || n.state == StateVolumesPending {
		n.mu.Unlock()
		return nil, ErrNoVolumes
	}
	var desc *models.VolumeDescriptor
	for i := range n.volumes {
		if n.volumes[i].Slot == slot {
			desc = &n.volumes[i]
			break
		}
	}
	if desc == nil {
		n.mu.Unlock()
		return nil, errors.Wrapf(ErrNoSuchVolume, "slot %d", slot)
	}

	req := dispatch.Request{
		Kind:      dispatch.KindListDirectory,
		ImagePath: n.nav.ImagePath,
		Path:      "/",
	}
	var partition *int
	var offset *uint64
	if desc.Synthetic() {
		off := uint64(0)
		offset = &off
		req.OffsetSectors = offset
	} else {
		idx := desc.Slot
		partition = &idx
		req.PartitionIndex = partition
	}
	n.mu.Unlock()

	t, err := n.dispatcher.Submit(resource, req, n.exec)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.nav.PartitionIndex = partition
	n.nav.OffsetSectors = offset
	n.nav.CurrentInode = nil
	n.nav.CurrentPath = "/"
	n.nav.FilesystemOpen = false
	n.entries = nil
	n.label = ""
	n.state = StateFilesystemPending
	n.mu.Unlock()

	go n.pump(t)
	return t, nil
}

// EnterDirectory dispatches a listing of the directory entry with the given
// inode, reusing the active partition or offset. Non-directory entries are a
// leaf action and are rejected.
func (n *Navigator) EnterDirectory(inode uint64) (*dispatch.Task, error) {
	n.mu.Lock()
	if n.state != StateDirectoryListed {
		n.mu.Unlock()
		return nil, errors.New("no directory listing to navigate from")
	}
	var entry *models.DirectoryEntry
	for i := range n.entries {
		if n.entries[i].Inode == inode {
			entry = &n.entries[i]
			break
		}
	}
	if entry == nil {
		n.mu.Unlock()
		return nil, errors.Wrapf(ErrNoSuchEntry, "inode %d", inode)
	}
	if entry.Type != models.EntryTypeDirectory {
		n.mu.Unlock()
		return nil, errors.Wrapf(ErrNotDirectory, "%s", entry.Name)
	}

	target := inode
	req := dispatch.Request{
		Kind:           dispatch.KindListDirectory,
		ImagePath:      n.nav.ImagePath,
		PartitionIndex: n.nav.PartitionIndex,
		OffsetSectors:  n.nav.OffsetSectors,
		Inode:          &target,
	}
	n.mu.Unlock()

	t, err := n.dispatcher.Submit(resource, req, n.exec)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.nav.CurrentInode = &target
	n.nav.CurrentPath = ""
	n.state = StateFilesystemPending
	n.mu.Unlock()

	go n.pump(t)
	return t, nil
}

// pump folds one task's events into navigation state and forwards them as
// updates. The terminal outcome is always folded before the done update is
// delivered.
func (n *Navigator) pump(t *dispatch.Task) {
	sawTerminal := false
	for ev := range t.Events() {
		switch ev.Type {
		case dispatch.EventProgress:
			n.notify(Update{State: n.State(), Progress: ev.Message})
		case dispatch.EventResult:
			sawTerminal = true
			n.foldResult(ev.Result)
		case dispatch.EventFailure:
			sawTerminal = true
			n.foldFailure(t.Request, ev.Err)
		case dispatch.EventDone:
			cancelled := !sawTerminal
			if cancelled {
				n.foldCancelled()
			}
			n.notify(Update{State: n.State(), Done: true, Cancelled: cancelled})
		}
	}
}

func (n *Navigator) foldResult(res dispatch.Result) {
	n.mu.Lock()
	var update Update
	switch res.Kind {
	case dispatch.KindEnumerateVolumes:
		n.volumes = res.Volumes
		n.state = StateVolumesListed
		update = Update{State: n.state, Volumes: res.Volumes}
	case dispatch.KindListDirectory:
		n.nav.FilesystemOpen = true
		if res.Open != nil {
			n.label = res.Open.Label
		}
		n.entries = res.Entries
		n.state = StateDirectoryListed
		update = Update{State: n.state, Entries: res.Entries, Label: n.label}
	default:
		update = Update{State: n.state}
	}
	n.mu.Unlock()
	n.notify(update)
}

func (n *Navigator) foldFailure(req dispatch.Request, err error) {
	n.mu.Lock()
	var update Update
	var openErr *diskimage.OpenError
	switch {
	case req.Kind == dispatch.KindEnumerateVolumes:
		// Enumeration failed; the image is unusable.
		n.state = StateNoImage
		n.nav = Context{}
		n.volumes = nil
		update = Update{State: n.state, Err: err, Blocking: true}
	case errors.As(err, &openErr):
		// Open failure: blocking error, volumes remain selectable.
		n.nav.FilesystemOpen = false
		n.state = StateVolumesListed
		update = Update{State: n.state, Err: err, Blocking: true}
	default:
		// Listing failed after a successful open: informational only, the
		// open-filesystem state is kept.
		n.nav.FilesystemOpen = true
		n.entries = nil
		n.state = StateDirectoryListed
		update = Update{State: n.state, Err: err, Blocking: false}
	}
	n.mu.Unlock()
	n.notify(update)
}

// foldCancelled returns to the previous stable state after a task completed
// without a terminal payload.
func (n *Navigator) foldCancelled() {
	n.mu.Lock()
	switch n.state {
	case StateVolumesPending:
		n.state = StateNoImage
		n.nav = Context{}
	case StateFilesystemPending:
		n.state = StateVolumesListed
	}
	n.mu.Unlock()
}

func (n *Navigator) notify(u Update) {
	select {
	case n.updates <- u:
	default:
		// Updates are advisory; drop rather than block the fold path.
	}
}
