package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/ports"
	"drydock/internal/shared/events"

	"github.com/google/uuid"
)

// Store is an in-memory adapter implementing the repository, visibility
// cache, outbox, and dedup ports. One mutex serializes every mutation, so
// the first-user claim and sharing-set read-modify-writes are linearizable.
// It is intended for tests and local development wiring.
type Store struct {
	mu sync.RWMutex

	users         map[string]entities.User
	registrations int64

	adminGrants map[string]entities.AdminGrant
	apps        map[string]entities.App
	sharing     map[string]map[string]entities.AppPermission

	visibility map[string]visibilityEntry
	outbox     map[string]outboxRow
	dedup      map[string]dedupEntry
}

type visibilityEntry struct {
	Apps      []entities.App
	ExpiresAt time.Time
}

type outboxRow struct {
	ports.OutboxMessage
	PublishedAt *time.Time
}

type dedupEntry struct {
	PayloadHash string
	ExpiresAt   time.Time
}

// NewStore builds an empty deterministic in-memory adapter.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]entities.User),
		adminGrants: make(map[string]entities.AdminGrant),
		apps:        make(map[string]entities.App),
		sharing:     make(map[string]map[string]entities.AppPermission),
		visibility:  make(map[string]visibilityEntry),
		outbox:      make(map[string]outboxRow),
		dedup:       make(map[string]dedupEntry),
	}
}

// CreateUser inserts the user and decides the first-user superuser claim
// under the same lock: the registration counter is monotonic and only a
// successful insert advances it, so exactly one registration ever wins.
func (s *Store) CreateUser(_ context.Context, input ports.CreateUserInput) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[input.Username]; exists {
		return entities.User{}, domainerrors.ErrUserExists
	}

	s.registrations++
	user := entities.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    input.CreatedAt.UTC(),
		CreatedSeq:   s.registrations,
	}
	s.users[user.Username] = user

	if s.registrations == 1 {
		s.adminGrants[user.Username] = entities.AdminGrant{
			Username:  user.Username,
			GrantedBy: user.Username,
			GrantedAt: input.CreatedAt.UTC(),
		}
	}
	return s.derived(user), nil
}

func (s *Store) GetUser(_ context.Context, username string) (entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return s.derived(user), nil
}

func (s *Store) UserExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[username]
	return ok, nil
}

func (s *Store) ListAdmins(_ context.Context) ([]entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admins := make([]entities.User, 0, len(s.adminGrants))
	for username := range s.adminGrants {
		user, ok := s.users[username]
		if !ok {
			continue
		}
		admins = append(admins, s.derived(user))
	}
	sort.Slice(admins, func(i, j int) bool {
		return admins[i].CreatedSeq < admins[j].CreatedSeq
	})
	return admins, nil
}

func (s *Store) GrantAdmin(_ context.Context, input ports.GrantAdminInput) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[input.Username]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	if _, exists := s.adminGrants[input.Username]; exists {
		return s.derived(user), nil
	}

	s.adminGrants[input.Username] = entities.AdminGrant{
		Username:  input.Username,
		GrantedBy: input.GrantedBy,
		GrantedAt: input.GrantedAt.UTC(),
	}
	if err := s.appendPolicyOutbox(input.OutboxID, "admin_granted", input.Username, "", input.GrantedAt); err != nil {
		return entities.User{}, err
	}
	return s.derived(user), nil
}

func (s *Store) RevokeAdmin(_ context.Context, input ports.RevokeAdminInput) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[input.Username]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	if _, exists := s.adminGrants[input.Username]; !exists {
		return entities.User{}, domainerrors.ErrAdminGrantNotFound
	}

	delete(s.adminGrants, input.Username)
	if err := s.appendPolicyOutbox(input.OutboxID, "admin_revoked", input.Username, "", input.RevokedAt); err != nil {
		return entities.User{}, err
	}
	return s.derived(user), nil
}

func (s *Store) CreateApp(_ context.Context, input ports.CreateAppInput) (entities.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[input.AppID]; exists {
		return entities.App{}, domainerrors.ErrAppExists
	}

	app := entities.App{
		AppID:     input.AppID,
		Owner:     input.Owner,
		CreatedAt: input.CreatedAt.UTC(),
	}
	s.apps[app.AppID] = app
	s.sharing[app.AppID] = make(map[string]entities.AppPermission)
	return app, nil
}

func (s *Store) GetApp(_ context.Context, appID string) (entities.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[appID]
	if !ok {
		return entities.App{}, domainerrors.ErrAppNotFound
	}
	return app, nil
}

func (s *Store) DeleteApp(_ context.Context, input ports.DeleteAppInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[input.AppID]; !ok {
		return domainerrors.ErrAppNotFound
	}

	delete(s.apps, input.AppID)
	delete(s.sharing, input.AppID)
	return s.appendPolicyOutbox(input.OutboxID, "app_deleted", "", input.AppID, input.DeletedAt)
}

func (s *Store) ListAllApps(_ context.Context) ([]entities.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]entities.App, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	sortApps(apps)
	return apps, nil
}

func (s *Store) ListAppsForUser(_ context.Context, username string) ([]entities.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]entities.App, 0)
	for appID, app := range s.apps {
		if app.Owner == username {
			apps = append(apps, app)
			continue
		}
		if _, ok := s.sharing[appID][username]; ok {
			apps = append(apps, app)
		}
	}
	sortApps(apps)
	return apps, nil
}

func (s *Store) ListSharing(_ context.Context, appID string) ([]entities.AppPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.apps[appID]; !ok {
		return nil, domainerrors.ErrAppNotFound
	}

	permissions := make([]entities.AppPermission, 0, len(s.sharing[appID]))
	for _, permission := range s.sharing[appID] {
		permissions = append(permissions, permission)
	}
	sort.Slice(permissions, func(i, j int) bool {
		return permissions[i].Username < permissions[j].Username
	})
	return permissions, nil
}

func (s *Store) GrantAppAccess(_ context.Context, input ports.ShareMutationInput) ([]entities.AppPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[input.AppID]; !ok {
		return nil, domainerrors.ErrAppNotFound
	}
	if _, ok := s.users[input.Username]; !ok {
		return nil, domainerrors.ErrUserNotFound
	}

	members := s.sharing[input.AppID]
	if _, exists := members[input.Username]; !exists {
		members[input.Username] = entities.AppPermission{
			AppID:     input.AppID,
			Username:  input.Username,
			GrantedBy: input.ActedBy,
			GrantedAt: input.OccurredAt.UTC(),
		}
		if err := s.appendPolicyOutbox(input.OutboxID, "access_granted", input.Username, input.AppID, input.OccurredAt); err != nil {
			return nil, err
		}
	}

	permissions := make([]entities.AppPermission, 0, len(members))
	for _, permission := range members {
		permissions = append(permissions, permission)
	}
	sort.Slice(permissions, func(i, j int) bool {
		return permissions[i].Username < permissions[j].Username
	})
	return permissions, nil
}

func (s *Store) RevokeAppAccess(_ context.Context, input ports.ShareMutationInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[input.AppID]; !ok {
		return domainerrors.ErrAppNotFound
	}
	if _, ok := s.users[input.Username]; !ok {
		return domainerrors.ErrUserNotFound
	}
	if _, exists := s.sharing[input.AppID][input.Username]; !exists {
		return domainerrors.ErrPermissionNotFound
	}

	delete(s.sharing[input.AppID], input.Username)
	return s.appendPolicyOutbox(input.OutboxID, "access_revoked", input.Username, input.AppID, input.OccurredAt)
}

func (s *Store) Get(_ context.Context, username string, now time.Time) ([]entities.App, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.visibility[username]
	if !ok {
		return nil, false, nil
	}
	if !entry.ExpiresAt.After(now) {
		delete(s.visibility, username)
		return nil, false, nil
	}
	return append([]entities.App(nil), entry.Apps...), true, nil
}

func (s *Store) Set(_ context.Context, username string, apps []entities.App, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visibility[username] = visibilityEntry{
		Apps:      append([]entities.App(nil), apps...),
		ExpiresAt: expiresAt.UTC(),
	}
	return nil
}

func (s *Store) Invalidate(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.visibility, username)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row.OutboxMessage)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[outboxID]
	if !ok {
		return errors.New("outbox record not found")
	}
	value := publishedAt.UTC()
	row.PublishedAt = &value
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.dedup[eventID]
	if !ok {
		s.dedup[eventID] = dedupEntry{
			PayloadHash: payloadHash,
			ExpiresAt:   expiresAt.UTC(),
		}
		return false, nil
	}
	if existing.PayloadHash != payloadHash {
		return false, errors.New("event payload hash mismatch")
	}
	return true, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) derived(user entities.User) entities.User {
	_, admin := s.adminGrants[user.Username]
	user.IsSuperuser = admin
	return user
}

func (s *Store) appendPolicyOutbox(outboxID string, action string, username string, appID string, occurredAt time.Time) error {
	if _, exists := s.outbox[outboxID]; exists {
		return errors.New("outbox record exists")
	}

	data, err := json.Marshal(map[string]string{
		"username": username,
		"app_id":   appID,
		"action":   action,
	})
	if err != nil {
		return err
	}
	partitionKey := username
	if partitionKey == "" {
		partitionKey = appID
	}
	payload, err := json.Marshal(events.Envelope{
		EventID:       outboxID,
		EventType:     "access.policy_changed",
		OccurredAt:    occurredAt.UTC(),
		SourceService: "access-control",
		SchemaVersion: 1,
		PartitionKey:  partitionKey,
		Data:          data,
	})
	if err != nil {
		return err
	}

	s.outbox[outboxID] = outboxRow{
		OutboxMessage: ports.OutboxMessage{
			OutboxID:  outboxID,
			EventType: "access.policy_changed",
			Payload:   payload,
			CreatedAt: occurredAt.UTC(),
		},
	}
	return nil
}

func sortApps(apps []entities.App) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].AppID < apps[j].AppID
		}
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})
}
