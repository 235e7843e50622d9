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

var userRecordSize = binary.Size(userRecord{})

// UserFile implements store.UserStore on a fixed-record file. The whole
// file is held in memory; every mutation rewrites it atomically.
type UserFile struct {
	path string

	mu      sync.RWMutex
	records []userRecord
	byID    map[uint32]int // id -> slot
	byLogin map[string]int // lower-case login -> slot
	nextID  uint32
}

// OpenUserFile loads (or initializes) the user record file at path.
func OpenUserFile(path string) (*UserFile, error) {
	raw, err := readRecords(path, userRecordSize)
	if err != nil {
		return nil, err
	}

	f := &UserFile{
		path:    path,
		byID:    make(map[uint32]int),
		byLogin: make(map[string]int),
		nextID:  1,
	}
	for i, data := range raw {
		var rec userRecord
		if err := decodeRecord(data, &rec); err != nil {
			return nil, fmt.Errorf("user record %d: %w", i, err)
		}
		if rec.Signature != UserSignature {
			return nil, fmt.Errorf("user record %d: bad signature %#x", i, rec.Signature)
		}
		f.records = append(f.records, rec)
		if rec.ID == UnusedID {
			continue
		}
		f.byID[rec.ID] = i
		f.byLogin[strings.ToLower(getString(rec.Login[:]))] = i
		if rec.ID >= f.nextID {
			f.nextID = rec.ID + 1
		}
	}
	return f, nil
}

// flush rewrites the file. Caller holds f.mu.
func (f *UserFile) flush() error {
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

// GetByID returns the user with the given id, or nil, nil.
func (f *UserFile) GetByID(ctx context.Context, id uint32) (*model.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	slot, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return unpackUser(f.records[slot]), nil
}

// GetByLogin returns the user with the given login, case-insensitively,
// or nil, nil.
func (f *UserFile) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	slot, ok := f.byLogin[strings.ToLower(login)]
	if !ok {
		return nil, nil
	}
	return unpackUser(f.records[slot]), nil
}

// Insert stores a new user, assigning the next id. Freed slots are
// reused before the file grows.
func (f *UserFile) Insert(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.ToLower(u.Login)
	if _, taken := f.byLogin[key]; taken {
		return fmt.Errorf("login %q already taken", u.Login)
	}

	u.ID = f.nextID
	f.nextID++
	rec := packUser(u)

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
	f.byID[u.ID] = slot
	f.byLogin[key] = slot
	return f.flush()
}

// Update overwrites the stored record for u.ID.
func (f *UserFile) Update(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.byID[u.ID]
	if !ok {
		return fmt.Errorf("user %d not found", u.ID)
	}
	oldLogin := strings.ToLower(getString(f.records[slot].Login[:]))
	newLogin := strings.ToLower(u.Login)
	if oldLogin != newLogin {
		if _, taken := f.byLogin[newLogin]; taken {
			return fmt.Errorf("login %q already taken", u.Login)
		}
		delete(f.byLogin, oldLogin)
		f.byLogin[newLogin] = slot
	}
	f.records[slot] = packUser(u)
	return f.flush()
}

// IterateAll visits every live user in id order.
func (f *UserFile) IterateAll(ctx context.Context, fn func(*model.User) bool) error {
	f.mu.RLock()
	users := make([]*model.User, 0, len(f.byID))
	for _, rec := range f.records {
		if rec.ID == UnusedID {
			continue
		}
		users = append(users, unpackUser(rec))
	}
	f.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(u) {
			return nil
		}
	}
	return nil
}

// Count returns the number of live user records.
func (f *UserFile) Count(ctx context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byID), nil
}
