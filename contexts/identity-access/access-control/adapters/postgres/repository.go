package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/ports"
	"drydock/internal/shared/events"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// bootstrapClaimID is the single row every registration races for; the
// transaction that inserts it first owns the superuser bootstrap.
const bootstrapClaimID = 1

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateUser inserts the user row and the bootstrap claim in one
// transaction. The claim insert is ON CONFLICT DO NOTHING on a fixed id;
// RowsAffected decides the first-user winner without a read-then-write.
func (r *Repository) CreateUser(ctx context.Context, input ports.CreateUserInput) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row = userModel{
			Username:     input.Username,
			Email:        input.Email,
			PasswordHash: input.PasswordHash,
			CreatedAt:    input.CreatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrUserExists
			}
			return err
		}

		claim := bootstrapClaimModel{
			ClaimID:   bootstrapClaimID,
			Username:  input.Username,
			ClaimedAt: input.CreatedAt.UTC(),
		}
		claimResult := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "claim_id"}},
			DoNothing: true,
		}).Create(&claim)
		if claimResult.Error != nil {
			return claimResult.Error
		}
		if claimResult.RowsAffected > 0 {
			grant := adminGrantModel{
				Username:  input.Username,
				GrantedBy: input.Username,
				GrantedAt: input.CreatedAt.UTC(),
			}
			if err := tx.Create(&grant).Error; err != nil {
				return err
			}
		}

		return tx.Where("username = ?", input.Username).First(&row).Error
	})
	if err != nil {
		return entities.User{}, err
	}
	return r.derived(ctx, row)
}

func (r *Repository) GetUser(ctx context.Context, username string) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.User{}, domainerrors.ErrUserNotFound
		}
		return entities.User{}, err
	}
	return r.derived(ctx, row)
}

func (r *Repository) UserExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("username = ?", username).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) ListAdmins(ctx context.Context) ([]entities.User, error) {
	var rows []userModel
	err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Joins("INNER JOIN admin_grants ON admin_grants.username = users.username").
		Order("users.created_seq ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	admins := make([]entities.User, 0, len(rows))
	for _, row := range rows {
		user := row.toEntity()
		user.IsSuperuser = true
		admins = append(admins, user)
	}
	return admins, nil
}

func (r *Repository) GrantAdmin(ctx context.Context, input ports.GrantAdminInput) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", input.Username).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}

		grant := adminGrantModel{
			Username:  input.Username,
			GrantedBy: input.GrantedBy,
			GrantedAt: input.GrantedAt.UTC(),
		}
		grantResult := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).Create(&grant)
		if grantResult.Error != nil {
			return grantResult.Error
		}
		if grantResult.RowsAffected == 0 {
			// Already an admin; success with no state change.
			return nil
		}
		return appendPolicyOutbox(tx, input.OutboxID, "admin_granted", input.Username, "", input.GrantedAt)
	})
	if err != nil {
		return entities.User{}, err
	}

	user := row.toEntity()
	user.IsSuperuser = true
	return user, nil
}

func (r *Repository) RevokeAdmin(ctx context.Context, input ports.RevokeAdminInput) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", input.Username).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}

		deleteResult := tx.Where("username = ?", input.Username).Delete(&adminGrantModel{})
		if deleteResult.Error != nil {
			return deleteResult.Error
		}
		if deleteResult.RowsAffected == 0 {
			return domainerrors.ErrAdminGrantNotFound
		}
		return appendPolicyOutbox(tx, input.OutboxID, "admin_revoked", input.Username, "", input.RevokedAt)
	})
	if err != nil {
		return entities.User{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateApp(ctx context.Context, input ports.CreateAppInput) (entities.App, error) {
	row := appModel{
		AppID:     input.AppID,
		Owner:     input.Owner,
		CreatedAt: input.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.App{}, domainerrors.ErrAppExists
		}
		return entities.App{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetApp(ctx context.Context, appID string) (entities.App, error) {
	var row appModel
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.App{}, domainerrors.ErrAppNotFound
		}
		return entities.App{}, err
	}
	return row.toEntity(), nil
}

// DeleteApp removes the app row and its sharing set in one transaction.
func (r *Repository) DeleteApp(ctx context.Context, input ports.DeleteAppInput) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ?", input.AppID).Delete(&appPermissionModel{}).Error; err != nil {
			return err
		}
		deleteResult := tx.Where("app_id = ?", input.AppID).Delete(&appModel{})
		if deleteResult.Error != nil {
			return deleteResult.Error
		}
		if deleteResult.RowsAffected == 0 {
			return domainerrors.ErrAppNotFound
		}
		return appendPolicyOutbox(tx, input.OutboxID, "app_deleted", "", input.AppID, input.DeletedAt)
	})
}

func (r *Repository) ListAllApps(ctx context.Context) ([]entities.App, error) {
	var rows []appModel
	err := r.db.WithContext(ctx).
		Order("created_at ASC, app_id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return appEntities(rows), nil
}

func (r *Repository) ListAppsForUser(ctx context.Context, username string) ([]entities.App, error) {
	var rows []appModel
	err := r.db.WithContext(ctx).
		Where("owner = ? OR app_id IN (?)",
			username,
			r.db.Model(&appPermissionModel{}).Select("app_id").Where("username = ?", username),
		).
		Order("created_at ASC, app_id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return appEntities(rows), nil
}

func (r *Repository) ListSharing(ctx context.Context, appID string) ([]entities.AppPermission, error) {
	if _, err := r.GetApp(ctx, appID); err != nil {
		return nil, err
	}

	var rows []appPermissionModel
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("username ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	permissions := make([]entities.AppPermission, 0, len(rows))
	for _, row := range rows {
		permissions = append(permissions, row.toEntity())
	}
	return permissions, nil
}

// GrantAppAccess adds the target to the sharing set; a duplicate grant is a
// success with the set unchanged and no outbox row.
func (r *Repository) GrantAppAccess(ctx context.Context, input ports.ShareMutationInput) ([]entities.AppPermission, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ?", input.AppID).First(&appModel{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrAppNotFound
			}
			return err
		}
		if err := tx.Where("username = ?", input.Username).First(&userModel{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}

		row := appPermissionModel{
			AppID:     input.AppID,
			Username:  input.Username,
			GrantedBy: input.ActedBy,
			GrantedAt: input.OccurredAt.UTC(),
		}
		insertResult := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_id"}, {Name: "username"}},
			DoNothing: true,
		}).Create(&row)
		if insertResult.Error != nil {
			return insertResult.Error
		}
		if insertResult.RowsAffected == 0 {
			return nil
		}
		return appendPolicyOutbox(tx, input.OutboxID, "access_granted", input.Username, input.AppID, input.OccurredAt)
	})
	if err != nil {
		return nil, err
	}
	return r.ListSharing(ctx, input.AppID)
}

func (r *Repository) RevokeAppAccess(ctx context.Context, input ports.ShareMutationInput) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ?", input.AppID).First(&appModel{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrAppNotFound
			}
			return err
		}
		if err := tx.Where("username = ?", input.Username).First(&userModel{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}

		deleteResult := tx.
			Where("app_id = ? AND username = ?", input.AppID, input.Username).
			Delete(&appPermissionModel{})
		if deleteResult.Error != nil {
			return deleteResult.Error
		}
		if deleteResult.RowsAffected == 0 {
			return domainerrors.ErrPermissionNotFound
		}
		return appendPolicyOutbox(tx, input.OutboxID, "access_revoked", input.Username, input.AppID, input.OccurredAt)
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("outbox record not found")
	}
	return nil
}

func (r *Repository) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	row := eventDedupModel{
		EventID:     eventID,
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", eventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != payloadHash {
		return false, errors.New("event payload hash mismatch")
	}
	return true, nil
}

func (r *Repository) derived(ctx context.Context, row userModel) (entities.User, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&adminGrantModel{}).
		Where("username = ?", row.Username).
		Count(&count).
		Error
	if err != nil {
		return entities.User{}, err
	}
	user := row.toEntity()
	user.IsSuperuser = count > 0
	return user, nil
}

type userModel struct {
	Username     string    `gorm:"column:username;primaryKey"`
	Email        string    `gorm:"column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	CreatedSeq   int64     `gorm:"column:created_seq;autoIncrement;uniqueIndex"`
}

func (userModel) TableName() string {
	return "users"
}

func (m userModel) toEntity() entities.User {
	return entities.User{
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt.UTC(),
		CreatedSeq:   m.CreatedSeq,
	}
}

type adminGrantModel struct {
	Username  string    `gorm:"column:username;primaryKey"`
	GrantedBy string    `gorm:"column:granted_by"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (adminGrantModel) TableName() string {
	return "admin_grants"
}

type appModel struct {
	AppID     string    `gorm:"column:app_id;primaryKey"`
	Owner     string    `gorm:"column:owner"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (appModel) TableName() string {
	return "apps"
}

func (m appModel) toEntity() entities.App {
	return entities.App{
		AppID:     m.AppID,
		Owner:     m.Owner,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func appEntities(rows []appModel) []entities.App {
	apps := make([]entities.App, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toEntity())
	}
	return apps
}

type appPermissionModel struct {
	AppID     string    `gorm:"column:app_id;primaryKey"`
	Username  string    `gorm:"column:username;primaryKey"`
	GrantedBy string    `gorm:"column:granted_by"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (appPermissionModel) TableName() string {
	return "app_permissions"
}

func (m appPermissionModel) toEntity() entities.AppPermission {
	return entities.AppPermission{
		AppID:     m.AppID,
		Username:  m.Username,
		GrantedBy: m.GrantedBy,
		GrantedAt: m.GrantedAt.UTC(),
	}
}

type bootstrapClaimModel struct {
	ClaimID   int       `gorm:"column:claim_id;primaryKey"`
	Username  string    `gorm:"column:username"`
	ClaimedAt time.Time `gorm:"column:claimed_at"`
}

func (bootstrapClaimModel) TableName() string {
	return "registry_bootstrap"
}

type outboxModel struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "access_control_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:  m.OutboxID,
		EventType: m.EventType,
		Payload:   append([]byte(nil), m.Payload...),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "access_control_event_dedup"
}

func appendPolicyOutbox(tx *gorm.DB, outboxID string, action string, username string, appID string, occurredAt time.Time) error {
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

	row := outboxModel{
		OutboxID:  outboxID,
		EventType: "access.policy_changed",
		Payload:   payload,
		Status:    outboxStatusPending,
		CreatedAt: occurredAt.UTC(),
	}
	return tx.Create(&row).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
