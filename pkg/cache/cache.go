package cache

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"
)

// DefaultFilename is where FileStore keeps cookies unless told otherwise.
const DefaultFilename = "./motorparts_cookies.json"

// DefaultMaxAge is how long saved cookies are considered worth trying. The portal's own cookie
// lifetimes are shorter in practice; a stale set just triggers a fresh login.
const DefaultMaxAge = 24 * time.Hour

// Cookie is the subset of cookie state worth persisting.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Jar maps origin URLs to the cookies set for them.
type Jar map[string][]Cookie

// Store persists a session's cookie jar between runs.
//
// Load returns a nil Jar (and nil error) when no usable cookies are available, in which case the
// caller performs a full login. Save overwrites any previously stored cookies.
type Store interface {
	Load() (Jar, error)
	Save(Jar) error
}

type fileContents struct {
	SavedAt time.Time `json:"saved_at"`
	Cookies Jar       `json:"cookies"`
}

// FileStore keeps cookies in a JSON file on disk.
type FileStore struct {
	Filename string
	// MaxAge bounds how old a saved cookie set may be before Load ignores it. Zero means
	// DefaultMaxAge.
	MaxAge time.Duration

	lock sync.Mutex
}

// NewFileStore returns a FileStore backed by filename, or DefaultFilename if empty.
func NewFileStore(filename string) *FileStore {
	if filename == "" {
		filename = DefaultFilename
	}
	return &FileStore{Filename: filename}
}

func (s *FileStore) maxAge() time.Duration {
	if s.MaxAge == 0 {
		return DefaultMaxAge
	}
	return s.MaxAge
}

// Load reads the cookie jar from disk. A missing file or an expired cookie set is not an error;
// both return a nil Jar.
func (s *FileStore) Load() (Jar, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	file, err := os.Open(s.Filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return importJar(file, s.maxAge())
}

// Save overwrites the on-disk cookie jar.
func (s *FileStore) Save(jar Jar) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	file, err := os.OpenFile(s.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	return exportJar(file, jar)
}

func importJar(r io.Reader, maxAge time.Duration) (Jar, error) {
	var contents fileContents
	if err := json.NewDecoder(r).Decode(&contents); err != nil {
		return nil, err
	}
	if time.Since(contents.SavedAt) > maxAge {
		return nil, nil
	}
	return contents.Cookies, nil
}

func exportJar(w io.Writer, jar Jar) error {
	return json.NewEncoder(w).Encode(&fileContents{SavedAt: time.Now(), Cookies: jar})
}

// MemoryStore holds a cookie jar in memory. Useful in tests and for callers that manage
// persistence themselves.
type MemoryStore struct {
	lock sync.Mutex
	jar  Jar
}

func (s *MemoryStore) Load() (Jar, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.jar, nil
}

func (s *MemoryStore) Save(jar Jar) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.jar = jar
	return nil
}
