package flatfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/udisondev/mythmeta/internal/model"
)

var orderRecordSize = binary.Size(orderRecord{})

// OrderFile implements store.OrderStore on a fixed-record file.
type OrderFile struct {
	path string

	mu      sync.RWMutex
	records []orderRecord
	byID    map[uint32]int
	byName  map[string]int
	nextID  uint32
}

// OpenOrderFile loads (or initializes) the order record file at path.
func OpenOrderFile(path string) (*OrderFile, error) {
	raw, err := readRecords(path, orderRecordSize)
	if err != nil {
		return nil, err
	}

	f := &OrderFile{
		path:   path,
		byID:   make(map[uint32]int),
		byName: make(map[string]int),
		nextID: 1,
	}
	for i, data := range raw {
		var rec orderRecord
		if err := decodeRecord(data, &rec); err != nil {
			return nil, fmt.Errorf("order record %d: %w", i, err)
		}
		if rec.Signature != OrderSignature {
			return nil, fmt.Errorf("order record %d: bad signature %#x", i, rec.Signature)
		}
		f.records = append(f.records, rec)
		if rec.ID == UnusedID {
			continue
		}
		f.byID[rec.ID] = i
		f.byName[strings.ToLower(getString(rec.Name[:]))] = i
		if rec.ID >= f.nextID {
			f.nextID = rec.ID + 1
		}
	}
	return f, nil
}

func (f *OrderFile) flush() error {
	out := make([][]byte, 0, len(f.records))
	for i := range f.records {
		data, err := encodeRecord(&f.records[i])
		if err != nil {
			return err
		}
		out = append(out, data)
	}
	return writeRecords(f.path, out)
}

// GetByID returns the order with the given id, or nil, nil.
func (f *OrderFile) GetByID(ctx context.Context, id uint32) (*model.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	slot, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return unpackOrder(f.records[slot]), nil
}

// GetByName returns the order with the given name, case-insensitively,
// or nil, nil.
func (f *OrderFile) GetByName(ctx context.Context, name string) (*model.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	slot, ok := f.byName[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	return unpackOrder(f.records[slot]), nil
}

// Insert stores a new order, assigning the next id. Freed slots are
// reused before the file grows.
func (f *OrderFile) Insert(ctx context.Context, o *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.ToLower(o.Name)
	if _, taken := f.byName[key]; taken {
		return fmt.Errorf("order name %q already taken", o.Name)
	}

	o.ID = f.nextID
	f.nextID++
	rec := packOrder(o)

	slot := -1
	for i := range f.records {
		if f.records[i].ID == UnusedID {
			slot = i
			break
		}
	}
	if slot < 0 {
		f.records = append(f.records, rec)
		slot = len(f.records) - 1
	} else {
		f.records[slot] = rec
	}
	f.byID[o.ID] = slot
	f.byName[key] = slot
	return f.flush()
}

// Update overwrites the stored record for o.ID.
func (f *OrderFile) Update(ctx context.Context, o *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.byID[o.ID]
	if !ok {
		return fmt.Errorf("order %d not found", o.ID)
	}
	oldName := strings.ToLower(getString(f.records[slot].Name[:]))
	newName := strings.ToLower(o.Name)
	if oldName != newName {
		if _, taken := f.byName[newName]; taken {
			return fmt.Errorf("order name %q already taken", o.Name)
		}
		delete(f.byName, oldName)
		f.byName[newName] = slot
	}
	f.records[slot] = packOrder(o)
	return f.flush()
}

// MarkUnused frees the record slot for id.
func (f *OrderFile) MarkUnused(ctx context.Context, id uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.byID[id]
	if !ok {
		return nil
	}
	delete(f.byID, id)
	delete(f.byName, strings.ToLower(getString(f.records[slot].Name[:])))
	f.records[slot] = orderRecord{Signature: OrderSignature, ID: UnusedID}
	return f.flush()
}

// IterateAll visits every live order in id order.
func (f *OrderFile) IterateAll(ctx context.Context, fn func(*model.Order) bool) error {
	f.mu.RLock()
	orders := make([]*model.Order, 0, len(f.byID))
	for _, rec := range f.records {
		if rec.ID == UnusedID {
			continue
		}
		orders = append(orders, unpackOrder(rec))
	}
	f.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(o) {
			return nil
		}
	}
	return nil
}
