// Package inventory lists the remote objects a sync run plans against.
// A failed listing is fatal; it is never treated as an empty store.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
)

// Inventory is an indexed snapshot of the remote store.
type Inventory struct {
	Prefix  string
	Objects []assettypes.RemoteObject

	index map[string]int
}

// New indexes objects. Later duplicates of a key replace earlier ones.
func New(prefix string, objects []assettypes.RemoteObject) *Inventory {
	inv := &Inventory{
		Prefix: prefix,
		index:  make(map[string]int, len(objects)),
	}
	for _, obj := range objects {
		if i, ok := inv.index[obj.Key]; ok {
			inv.Objects[i] = obj
			continue
		}
		inv.index[obj.Key] = len(inv.Objects)
		inv.Objects = append(inv.Objects, obj)
	}
	sort.Slice(inv.Objects, func(i, j int) bool { return inv.Objects[i].Key < inv.Objects[j].Key })
	for i, obj := range inv.Objects {
		inv.index[obj.Key] = i
	}
	return inv
}

// Get returns the object stored at key.
func (inv *Inventory) Get(key string) (assettypes.RemoteObject, bool) {
	i, ok := inv.index[key]
	if !ok {
		return assettypes.RemoteObject{}, false
	}
	return inv.Objects[i], true
}

// Len returns the number of objects.
func (inv *Inventory) Len() int {
	return len(inv.Objects)
}

// TotalSize returns the combined size of all objects.
func (inv *Inventory) TotalSize() int64 {
	var total int64
	for _, obj := range inv.Objects {
		total += obj.Size
	}
	return total
}

// Lister fetches inventories from a store.
type Lister struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewLister creates a Lister. logger and recorder may be nil.
func NewLister(s store.Store, logger *slog.Logger, recorder *metrics.Recorder) *Lister {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Lister{store: s, logger: logger, metrics: recorder}
}

// List fetches every object under prefix.
func (l *Lister) List(ctx context.Context, prefix string) (*Inventory, error) {
	objects, err := l.store.List(ctx, prefix)
	if err != nil {
		if errors.IsInventory(err) {
			return nil, err
		}
		return nil, errors.NewError("inventory", fmt.Errorf("%w: %w", errors.ErrInventory, err)).
			WithKey(prefix)
	}

	inv := New(prefix, objects)
	l.metrics.RemoteObjects(inv.Len())
	l.logger.Info("listed remote inventory",
		"prefix", prefix,
		"objects", inv.Len(),
		"size", humanize.IBytes(uint64(inv.TotalSize())))
	return inv, nil
}
