package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// File-backed stores persisting one comma-separated record per line.
// Mutations follow the whole-snapshot strategy: read everything, compute the
// replacement, write it to a temp file and rename it over the original, so a
// crash mid-write never corrupts the previous state.

// FileAccountStore keeps account records in a plain text file.
type FileAccountStore struct {
	mu   sync.Mutex
	path string
}

// NewFileAccountStore opens (creating if needed) the account record file.
func NewFileAccountStore(path string) (*FileAccountStore, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileAccountStore{path: path}, nil
}

func (s *FileAccountStore) ListAll(ctx context.Context) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileAccountStore) ListByOwner(ctx context.Context, owner string) ([]*Account, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Account
	for _, a := range all {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FileAccountStore) NextID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, err := s.load()
	if err != nil {
		return 0, err
	}
	return nextID(accounts), nil
}

func (s *FileAccountStore) Insert(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, err := s.load()
	if err != nil {
		return err
	}
	if err := checkOwnerConstraints(accounts, a.Owner, a.Type); err != nil {
		return err
	}
	return s.writeSnapshot(append(accounts, a))
}

func (s *FileAccountStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, err := s.load()
	if err != nil {
		return err
	}
	kept := accounts[:0]
	found := false
	for _, a := range accounts {
		if a.ID == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.writeSnapshot(kept)
}

func (s *FileAccountStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, err := s.load()
	if err != nil {
		return err
	}
	found := false
	for _, a := range accounts {
		if a.ID == id {
			a.Balance = balance
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.writeSnapshot(accounts)
}

func (s *FileAccountStore) FindByID(ctx context.Context, id int64) (*Account, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// load reads the full snapshot. Malformed lines are skipped, matching the
// tolerant read behavior the record format has always had.
func (s *FileAccountStore) load() ([]*Account, error) {
	lines, err := readLines(s.path)
	if err != nil {
		return nil, err
	}
	var accounts []*Account
	for _, line := range lines {
		a, err := ParseAccountRecord(line)
		if err != nil {
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *FileAccountStore) writeSnapshot(accounts []*Account) error {
	var b strings.Builder
	for _, a := range accounts {
		b.WriteString(a.Record())
		b.WriteByte('\n')
	}
	return atomicWrite(s.path, b.String())
}

// FileLedger keeps the append-only transaction history in a plain text file.
type FileLedger struct {
	mu   sync.Mutex
	path string
}

// NewFileLedger opens (creating if needed) the transaction record file.
func NewFileLedger(path string) (*FileLedger, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileLedger{path: path}, nil
}

// Append writes one record at the end of the file. The file is only ever
// appended to; existing entries are never rewritten.
func (l *FileLedger) Append(ctx context.Context, t *Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrStorage, l.path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(t.Record() + "\n"); err != nil {
		return fmt.Errorf("%w: append to %s: %v", ErrStorage, l.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrStorage, l.path, err)
	}
	return nil
}

func (l *FileLedger) ListAll(ctx context.Context) ([]*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lines, err := readLines(l.path)
	if err != nil {
		return nil, err
	}
	var out []*Transaction
	for _, line := range lines {
		t, err := ParseTransactionRecord(line)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (l *FileLedger) ListByOwner(ctx context.Context, owner string) ([]*Transaction, error) {
	all, err := l.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Transaction
	for _, t := range all {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

// nextID scans stored ids: max(ids, default 1000) + 1.
func nextID(accounts []*Account) int64 {
	var max int64 = 1000
	for _, a := range accounts {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

// checkOwnerConstraints enforces the per-owner rules: at most two accounts,
// never two of the same type.
func checkOwnerConstraints(accounts []*Account, owner string, t AccountType) error {
	count := 0
	for _, a := range accounts {
		if a.Owner != owner {
			continue
		}
		count++
		if a.Type == t {
			return fmt.Errorf("%w: owner %s already holds a %s account", ErrConstraint, owner, t)
		}
	}
	if count >= 2 {
		return fmt.Errorf("%w: owner %s already has %d accounts", ErrConstraint, owner, count)
	}
	return nil
}

func ensureFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: ensure %s: %v", ErrStorage, path, err)
	}
	return f.Close()
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, path, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, path, err)
	}
	return lines, nil
}

// atomicWrite replaces path with content via a temp file and rename, so the
// previous snapshot survives any mid-write failure.
func atomicWrite(path, content string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStorage, tmp, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", ErrStorage, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: sync %s: %v", ErrStorage, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", ErrStorage, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrStorage, path, err)
	}
	return nil
}
