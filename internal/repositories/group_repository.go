package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrWriteConflict = errors.New("write conflict on aggregate")
)

// maxWriteRetries bounds optimistic-concurrency retries before the
// operation is rejected with ErrWriteConflict.
const maxWriteRetries = 3

// GroupRepository abstracts group persistence. Mutations are serialized
// per group id: UpdateGroup re-reads, re-applies and retries on
// version conflict so member-list writes never interleave.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group models.Group) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	GetGroupByInviteCode(ctx context.Context, code string) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	IsMember(ctx context.Context, groupID int, userID int) (bool, error)
	UpdateGroup(ctx context.Context, groupID int, mutate func(*models.Group) error) (models.Group, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, is_private, COALESCE(invite_code, '') AS invite_code, created_by, settings, members, version, created_at`

// CreateGroup persists a fully constructed group in one insert; the
// creator is already in the member list when the aggregate arrives here.
func (r *GroupRepo) CreateGroup(ctx context.Context, group models.Group) (models.Group, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO groups (name, is_private, invite_code, created_by, settings, members)
         VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
         RETURNING `+groupColumns,
		group.Name, group.IsPrivate, group.InviteCode, group.CreatedBy, group.Settings, group.Members).
		StructScan(&group)
	return group, err
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// GetGroupByInviteCode resolves a private group from its invite code.
func (r *GroupRepo) GetGroupByInviteCode(ctx context.Context, code string) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE invite_code=$1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns groups whose member list contains the user,
// served from the GIN index on the members document.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM groups
         WHERE members @> jsonb_build_array(jsonb_build_object('user_id', $1::int))
         ORDER BY created_at DESC`, userID)
	return groups, err
}

// IsMember checks membership without loading the whole aggregate.
func (r *GroupRepo) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM groups
         WHERE id=$1 AND members @> jsonb_build_array(jsonb_build_object('user_id', $2::int)))`,
		groupID, userID)
	return exists, err
}

// UpdateGroup applies mutate under optimistic concurrency. The member
// list is replaced wholesale in one guarded write; a concurrent writer
// triggers a re-read and re-apply rather than a field-level merge.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, mutate func(*models.Group) error) (models.Group, error) {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		group, err := r.GetGroup(ctx, groupID)
		if err != nil {
			return models.Group{}, err
		}
		if err := mutate(&group); err != nil {
			return models.Group{}, err
		}

		res, err := r.db.ExecContext(ctx,
			`UPDATE groups SET name=$1, is_private=$2, invite_code=NULLIF($3, ''), settings=$4, members=$5, version=version+1
             WHERE id=$6 AND version=$7`,
			group.Name, group.IsPrivate, group.InviteCode, group.Settings, group.Members, groupID, group.Version)
		if err != nil {
			return models.Group{}, err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return models.Group{}, err
		}
		if count == 1 {
			group.Version++
			return group, nil
		}
		// version moved underneath us; retry against the fresh row
	}
	return models.Group{}, ErrWriteConflict
}
