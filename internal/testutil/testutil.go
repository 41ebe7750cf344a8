// Package testutil provides the in-memory database and the fakes shared by
// service and handler tests
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"bitwise74/gallery-api/db"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/security"
	"bitwise74/gallery-api/pkg/util"

	"gorm.io/gorm"
)

// NewDB returns a fresh migrated in-memory SQLite database private to t
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name, err := util.NewID()
	if err != nil {
		t.Fatal(err)
	}

	gdb, err := db.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}

	// one connection keeps the memory database alive and serializes access
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return gdb
}

// FastArgon hashes with parameters cheap enough for tests
func FastArgon() *security.ArgonHash {
	return &security.ArgonHash{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type SentCode struct {
	To      string
	Code    string
	Purpose service.Purpose
}

// Notifier records every code it is asked to send. Setting Err makes every
// send fail.
type Notifier struct {
	mu   sync.Mutex
	Sent []SentCode
	Err  error
}

func (n *Notifier) SendOTP(_ context.Context, to, code string, purpose service.Purpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}

	n.Sent = append(n.Sent, SentCode{To: to, Code: code, Purpose: purpose})
	return nil
}

// LastCode returns the most recent code sent to the given address
func (n *Notifier) LastCode(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.Sent) - 1; i >= 0; i-- {
		if n.Sent[i].To == to {
			return n.Sent[i].Code
		}
	}

	return ""
}

// Verifier accepts tokens present in Identities
type Verifier struct {
	Identities map[string]*service.Identity
}

func (v *Verifier) Verify(_ context.Context, token string) (*service.Identity, error) {
	id, ok := v.Identities[token]
	if !ok {
		return nil, errors.New("token rejected")
	}

	return id, nil
}

type storedObject struct {
	data     []byte
	modified time.Time
}

// Store is an in-memory ObjectStore
type Store struct {
	mu      sync.Mutex
	objects map[string]storedObject

	PutErr    error
	DeleteErr error
	// GetErr fails reads of the listed keys
	GetErr map[string]error
}

func NewStore() *Store {
	return &Store{
		objects: map[string]storedObject{},
		GetErr:  map[string]error{},
	}
}

func (s *Store) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (*service.StoredObject, error) {
	if s.PutErr != nil {
		return nil, s.PutErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = storedObject{data: data, modified: time.Now()}
	return &service.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

// PutAt stores an object with a fixed modification time
func (s *Store) PutAt(key string, data []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = storedObject{data: data, modified: modified}
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.GetErr[key]; err != nil {
		return nil, err
	}

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	delete(s.objects, key)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]service.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []service.ObjectInfo
	for k, o := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, service.ObjectInfo{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) DeleteMany(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[key]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

// CreateUser inserts a verified, active account with the given password
func CreateUser(t testing.TB, gdb *gorm.DB, email, password string, role model.Role) *model.User {
	t.Helper()

	id, err := util.NewID()
	if err != nil {
		t.Fatal(err)
	}

	hash := ""
	if password != "" {
		if hash, err = FastArgon().GenerateFromPassword(password); err != nil {
			t.Fatal(err)
		}
	}

	name, _, _ := strings.Cut(email, "@")
	u := &model.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		Verified:     true,
	}

	if err := gdb.Create(u).Error; err != nil {
		t.Fatal(err)
	}

	return u
}

// CreateMedia inserts a media row and a matching object in store
func CreateMedia(t testing.TB, gdb *gorm.DB, store *Store, owner *model.User, title string, shared bool, tags ...string) *model.Media {
	t.Helper()

	id, err := util.NewID()
	if err != nil {
		t.Fatal(err)
	}

	key := service.DefaultFolder + "/media-" + id + ".png"
	if store != nil {
		store.PutAt(key, []byte("image-"+id), time.Now())
	}

	m := &model.Media{
		ID:           id,
		UserID:       owner.ID,
		Title:        title,
		Tags:         tags,
		IsShared:     shared,
		FileName:     "media-" + id + ".png",
		OriginalName: strings.ToLower(title) + ".png",
		MimeType:     "image/png",
		Size:         int64(len("image-" + id)),
		URL:          "https://cdn.test/" + key,
		StoreKey:     key,
	}

	if err := gdb.Create(m).Error; err != nil {
		t.Fatal(err)
	}

	return m
}
