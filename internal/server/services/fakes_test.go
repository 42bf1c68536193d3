package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/dbx"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/server/models"
	"github.com/dmitrijs2005/bookly/internal/server/repositories/documents"
	"github.com/dmitrijs2005/bookly/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/bookly/internal/server/repositories/users"
	"github.com/google/uuid"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	lookErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: make(map[string]*models.User)}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.Email == u.Email || (u.GoogleSubject != "" && e.GoogleSubject == u.GoogleSubject) {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *u
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	for _, u := range f.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) GetUserByGoogleSubject(ctx context.Context, subject string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return subject != "" && u.GoogleSubject == subject })
}

func (f *fakeUsersRepo) LinkGoogle(ctx context.Context, userID, subject, displayName, photoURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.GoogleSubject, u.DisplayName, u.PhotoURL = subject, displayName, photoURL
	return nil
}

type fakeRefreshRepo struct {
	mu        sync.Mutex
	tokens    map[string]*models.RefreshToken
	createErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: make(map[string]*models.RefreshToken)}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID, token string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if t.Expires.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

// fakeDocsRepo keeps documents in memory and orders them with Query.Apply.
type fakeDocsRepo struct {
	mu        sync.Mutex
	seq       int64
	docs      map[string]map[string]docstore.Document
	notified  []string
	listErr   error
	listCalls int
}

func newFakeDocsRepo() *fakeDocsRepo {
	return &fakeDocsRepo{docs: make(map[string]map[string]docstore.Document)}
}

func (f *fakeDocsRepo) Insert(ctx context.Context, collection, id string, fields docstore.Fields) (*docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	doc := docstore.Document{
		ID:         id,
		Path:       docstore.DocumentPath(collection, id),
		Fields:     docstore.CloneFields(fields),
		CreateTime: time.Unix(1700000000+f.seq, 0).UTC(),
		Seq:        f.seq,
	}
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]docstore.Document)
	}
	f.docs[collection][id] = doc
	out := doc.Clone()
	return &out, nil
}

func (f *fakeDocsRepo) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := doc.Clone()
	return &out, nil
}

func (f *fakeDocsRepo) GetForUpdate(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return f.Get(ctx, collection, id)
}

func (f *fakeDocsRepo) UpdateFields(ctx context.Context, collection, id string, fields docstore.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	if !ok {
		return common.ErrorNotFound
	}
	doc.Fields = docstore.CloneFields(fields)
	f.docs[collection][id] = doc
	return nil
}

func (f *fakeDocsRepo) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	all := make([]docstore.Document, 0, len(f.docs[collection]))
	for _, d := range f.docs[collection] {
		all = append(all, d.Clone())
	}
	return q.Apply(all), nil
}

func (f *fakeDocsRepo) Notify(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, collection)
	return nil
}

func (f *fakeDocsRepo) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	d *fakeDocsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo(), d: newFakeDocsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return m.r }
func (m *fakeRepoManager) Documents(db dbx.DBTX) documents.Repository         { return m.d }
