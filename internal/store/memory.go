package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/syncveil/apiserver/types"
)

// MemoryStore is a mutex-guarded in-memory backend implementing the same
// repository contracts as the Postgres types. It honors the same atomicity
// rules: email uniqueness and token single-consumption are checked and
// written under one lock, never as separate steps. Used by unit tests and
// trivial single-process deployments.
type MemoryStore struct {
	mu           sync.Mutex
	nextUserID   int
	nextTokenID  int
	nextID       int
	users        map[int]types.User
	emails       map[string]int
	tokens       map[string]types.VerificationToken
	sessions     map[string]types.Session
	vaultFiles   map[int]types.VaultFile
	breachEvents []types.BreachEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[int]types.User),
		emails:     make(map[string]int),
		tokens:     make(map[string]types.VerificationToken),
		sessions:   make(map[string]types.Session),
		vaultFiles: make(map[int]types.VaultFile),
	}
}

// Users returns the user repository view of the store.
func (m *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{store: m} }

// Tokens returns the verification token repository view of the store.
func (m *MemoryStore) Tokens() *MemoryTokenRepository { return &MemoryTokenRepository{store: m} }

// Sessions returns the session repository view of the store.
func (m *MemoryStore) Sessions() *MemorySessionRepository { return &MemorySessionRepository{store: m} }

// VaultFiles returns the vault file repository view of the store.
func (m *MemoryStore) VaultFiles() *MemoryVaultFileRepository {
	return &MemoryVaultFileRepository{store: m}
}

// BreachEvents returns the breach event repository view of the store.
func (m *MemoryStore) BreachEvents() *MemoryBreachEventRepository {
	return &MemoryBreachEventRepository{store: m}
}

// MemoryUserRepository implements the user repository contract in memory.
type MemoryUserRepository struct {
	store *MemoryStore
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id, ok := r.store.emails[normalizeEmail(email)]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.store.users[id], nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := r.store.emails[email]; exists {
		return types.User{}, ErrDuplicateEmail
	}

	r.store.nextUserID++
	now := time.Now()
	user.ID = r.store.nextUserID
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	r.store.users[user.ID] = user
	r.store.emails[email] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) MarkVerified(_ context.Context, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return ErrNotFound
	}
	user.EmailVerified = true
	user.UpdatedAt = time.Now()
	r.store.users[id] = user
	return nil
}

// MemoryTokenRepository implements the token repository contract in memory.
type MemoryTokenRepository struct {
	store *MemoryStore
}

func (r *MemoryTokenRepository) Create(_ context.Context, token types.VerificationToken) (types.VerificationToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for hash, existing := range r.store.tokens {
		if existing.UserID == token.UserID && !existing.Consumed {
			delete(r.store.tokens, hash)
		}
	}

	r.store.nextTokenID++
	token.ID = r.store.nextTokenID
	token.CreatedAt = time.Now()
	r.store.tokens[token.TokenHash] = token
	return token, nil
}

func (r *MemoryTokenRepository) GetByHash(_ context.Context, tokenHash string) (types.VerificationToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	token, ok := r.store.tokens[tokenHash]
	if !ok {
		return types.VerificationToken{}, ErrNotFound
	}
	return token, nil
}

func (r *MemoryTokenRepository) Consume(_ context.Context, tokenHash string, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	token, ok := r.store.tokens[tokenHash]
	if !ok || token.Consumed || !token.ExpiresAt.After(now) {
		return 0, ErrNotFound
	}
	token.Consumed = true
	r.store.tokens[tokenHash] = token
	return token.UserID, nil
}

func (r *MemoryTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for hash, token := range r.store.tokens {
		if !token.ExpiresAt.After(now) {
			delete(r.store.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

// MemorySessionRepository implements the session repository contract in memory.
type MemorySessionRepository struct {
	store *MemoryStore
}

func (r *MemorySessionRepository) Create(_ context.Context, session types.Session) (types.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextID++
	session.ID = r.store.nextID
	session.CreatedAt = time.Now()
	r.store.sessions[session.TokenHash] = session
	return session, nil
}

func (r *MemorySessionRepository) GetByHash(_ context.Context, tokenHash string) (types.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[tokenHash]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (r *MemorySessionRepository) DeleteByHash(_ context.Context, tokenHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.sessions, tokenHash)
	return nil
}

func (r *MemorySessionRepository) CountByUser(_ context.Context, userID int, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, session := range r.store.sessions {
		if session.UserID == userID && session.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *MemorySessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for hash, session := range r.store.sessions {
		if !session.ExpiresAt.After(now) {
			delete(r.store.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}

// MemoryVaultFileRepository implements the vault file repository contract in memory.
type MemoryVaultFileRepository struct {
	store *MemoryStore
}

func (r *MemoryVaultFileRepository) Create(_ context.Context, file types.VaultFile) (types.VaultFile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextID++
	file.ID = r.store.nextID
	file.UploadedAt = time.Now()
	r.store.vaultFiles[file.ID] = file
	return file, nil
}

func (r *MemoryVaultFileRepository) GetByID(_ context.Context, userID, id int) (types.VaultFile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	file, ok := r.store.vaultFiles[id]
	if !ok || file.UserID != userID {
		return types.VaultFile{}, ErrNotFound
	}
	return file, nil
}

func (r *MemoryVaultFileRepository) ListByUser(_ context.Context, userID int) ([]types.VaultFile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	files := []types.VaultFile{}
	for _, file := range r.store.vaultFiles {
		if file.UserID == userID {
			files = append(files, file)
		}
	}
	return files, nil
}

func (r *MemoryVaultFileRepository) Delete(_ context.Context, userID, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	file, ok := r.store.vaultFiles[id]
	if !ok || file.UserID != userID {
		return ErrNotFound
	}
	delete(r.store.vaultFiles, id)
	return nil
}

func (r *MemoryVaultFileRepository) CountByUser(_ context.Context, userID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, file := range r.store.vaultFiles {
		if file.UserID == userID {
			count++
		}
	}
	return count, nil
}

// MemoryBreachEventRepository implements the breach event repository contract in memory.
type MemoryBreachEventRepository struct {
	store *MemoryStore
}

func (r *MemoryBreachEventRepository) Create(_ context.Context, event types.BreachEvent) (types.BreachEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextID++
	event.ID = r.store.nextID
	r.store.breachEvents = append(r.store.breachEvents, event)
	return event, nil
}

func (r *MemoryBreachEventRepository) ListByUser(_ context.Context, userID, limit int) ([]types.BreachEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	events := []types.BreachEvent{}
	for i := len(r.store.breachEvents) - 1; i >= 0 && len(events) < limit; i-- {
		if r.store.breachEvents[i].UserID == userID {
			events = append(events, r.store.breachEvents[i])
		}
	}
	return events, nil
}

func (r *MemoryBreachEventRepository) CountByUser(_ context.Context, userID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, event := range r.store.breachEvents {
		if event.UserID == userID {
			count++
		}
	}
	return count, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
