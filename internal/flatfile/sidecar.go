package flatfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/mythmeta/internal/store"
)

// BanFile implements store.BanList as a text file of "ip unix-until"
// lines. Until 0 is a permanent ban.
type BanFile struct {
	path string

	mu   sync.RWMutex
	bans map[string]int64
}

// OpenBanFile loads (or initializes) the ban file at path.
func OpenBanFile(path string) (*BanFile, error) {
	f := &BanFile{path: path, bans: make(map[string]int64)}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		until, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		f.bans[fields[0]] = until
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return f, nil
}

func (f *BanFile) flush() error {
	var b strings.Builder
	for ip, until := range f.bans {
		fmt.Fprintf(&b, "%s %d\n", ip, until)
	}
	if err := os.WriteFile(f.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// IsBanned reports whether ip is refused at now.
func (f *BanFile) IsBanned(ctx context.Context, ip string, now time.Time) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	until, ok := f.bans[ip]
	if !ok {
		return false, nil
	}
	return until == 0 || now.Unix() < until, nil
}

// Ban refuses connections from ip until the given time.
func (f *BanFile) Ban(ctx context.Context, ip string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans[ip] = packTime(until)
	return f.flush()
}

// Unban clears the entry for ip.
func (f *BanFile) Unban(ctx context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bans, ip)
	return f.flush()
}

// AuditFile implements store.AuditLog as an append-only text log.
type AuditFile struct {
	mu   sync.Mutex
	file *os.File
}

// OpenAuditFile opens (or creates) the audit log at path for appending.
func OpenAuditFile(path string) (*AuditFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &AuditFile{file: file}, nil
}

// Record appends the event as one line.
func (f *AuditFile) Record(ctx context.Context, ev store.AuditEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintf(f.file, "%s %s user=%d ip=%s %s\n",
		at.UTC().Format(time.RFC3339), ev.Kind, ev.UserID, ev.IP, ev.Detail)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (f *AuditFile) Close() error {
	return f.file.Close()
}

// JournalFile implements store.ScoreJournal as an append-only file of
// game ids.
type JournalFile struct {
	path string

	mu     sync.Mutex
	scored map[uint32]bool
	file   *os.File
}

// OpenJournalFile loads (or initializes) the score journal at path.
func OpenJournalFile(path string) (*JournalFile, error) {
	j := &JournalFile{path: path, scored: make(map[uint32]bool)}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	for _, line := range strings.Fields(string(data)) {
		id, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			continue
		}
		j.scored[uint32(id)] = true
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	j.file = file
	return j, nil
}

// MarkScored records gameID, reporting false when already present.
func (j *JournalFile) MarkScored(ctx context.Context, gameID uint32) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scored[gameID] {
		return false, nil
	}
	if _, err := fmt.Fprintf(j.file, "%d\n", gameID); err != nil {
		return false, fmt.Errorf("appending to journal: %w", err)
	}
	j.scored[gameID] = true
	return true, nil
}

// Close closes the underlying file.
func (j *JournalFile) Close() error {
	return j.file.Close()
}
