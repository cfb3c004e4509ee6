package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileStore keeps user records in a plain text file, one
// username,password,role record per line. Mutations rewrite the whole file
// through a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore opens (creating if needed) the user record file.
func NewFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ensure %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Find(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
}

func (s *FileStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
	}
	return s.writeSnapshot(append(users, u))
}

func (s *FileStore) ListByRole(ctx context.Context, role Role) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []*User
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, username string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	kept := users[:0]
	found := false
	for _, u := range users {
		if u.Username == username && u.Role == role {
			found = true
			continue
		}
		kept = append(kept, u)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return s.writeSnapshot(kept)
}

func (s *FileStore) load() ([]*User, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()
	var users []*User
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		u, err := ParseUserRecord(line)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return users, nil
}

func (s *FileStore) writeSnapshot(users []*User) error {
	var b strings.Builder
	for _, u := range users {
		b.WriteString(u.Record())
		b.WriteByte('\n')
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", s.path, err)
	}
	return nil
}
