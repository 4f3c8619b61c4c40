package repository

import (
	"context"
	"errors"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgContactRepository is the PostgreSQL implementation of ContactRepository.
type PgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository creates a PgContactRepository backed by the given pool.
func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

// Ensure PgContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*PgContactRepository)(nil)

const contactSelectCols = `id, owner_id, email, full_name, COALESCE(phone, ''), COALESCE(relationship_label, ''),
	contact_type, role, is_primary, invitation_status, target_user_id, confirmed_at, created_at, updated_at, removed_at`

func scanContact(scan func(...any) error) (*model.Contact, error) {
	var c model.Contact
	var contactType, status string
	var role *string
	if err := scan(&c.ID, &c.OwnerID, &c.Email, &c.FullName, &c.Phone, &c.RelationshipLabel,
		&contactType, &role, &c.IsPrimary, &status, &c.TargetUserID, &c.ConfirmedAt,
		&c.CreatedAt, &c.UpdatedAt, &c.RemovedAt); err != nil {
		return nil, err
	}
	c.Type = model.ContactType(contactType)
	c.InvitationStatus = model.InvitationStatus(status)
	if role != nil {
		r := model.Role(*role)
		c.Role = &r
	}
	return &c, nil
}

func collectContacts(rows pgx.Rows) ([]*model.Contact, error) {
	defer rows.Close()
	var contacts []*model.Contact
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func roleArg(r *model.Role) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func uuidArg(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// clearPrimary unsets the primary flag on every other live row of the same
// owner and type. It must run in the same transaction as the write that sets
// the new primary.
func clearPrimary(ctx context.Context, q querier, ownerID string, t model.ContactType, exceptID string) error {
	_, err := q.Exec(ctx,
		`UPDATE contacts SET is_primary = FALSE, updated_at = NOW()
		 WHERE owner_id = $1 AND contact_type = $2 AND is_primary AND removed_at IS NULL
		   AND id IS DISTINCT FROM $3::uuid`,
		ownerID, string(t), uuidArg(exceptID))
	return err
}

// Create inserts a contact row and populates c.ID and timestamps from the
// RETURNING clause. Setting a primary contact unsets the previous one in the
// same transaction.
func (r *PgContactRepository) Create(ctx context.Context, c *model.Contact) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	c.Email = model.NormalizeEmail(c.Email)
	if c.IsPrimary {
		if err := clearPrimary(ctx, tx, c.OwnerID, c.Type, ""); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO contacts (owner_id, email, full_name, phone, relationship_label, contact_type, role,
		                       is_primary, invitation_status, target_user_id, confirmed_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		c.OwnerID, c.Email, c.FullName, c.Phone, c.RelationshipLabel,
		string(c.Type), roleArg(c.Role), c.IsPrimary, string(c.InvitationStatus), c.TargetUserID, c.ConfirmedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns a live contact row.
func (r *PgContactRepository) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+contactSelectCols+` FROM contacts WHERE id = $1 AND removed_at IS NULL`, id)
	c, err := scanContact(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListByOwner returns every live contact of the owner, primary rows first.
func (r *PgContactRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactSelectCols+` FROM contacts
		 WHERE owner_id = $1 AND removed_at IS NULL
		 ORDER BY contact_type DESC, is_primary DESC, created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// Update writes the owner-editable fields. Email, status and target_user_id
// are not touched here.
func (r *PgContactRepository) Update(ctx context.Context, c *model.Contact) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if c.IsPrimary {
		if err := clearPrimary(ctx, tx, c.OwnerID, c.Type, c.ID); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE contacts SET full_name = $1, phone = NULLIF($2, ''), relationship_label = NULLIF($3, ''),
		        contact_type = $4, role = $5, is_primary = $6, updated_at = NOW()
		 WHERE id = $7 AND removed_at IS NULL
		 RETURNING updated_at`,
		c.FullName, c.Phone, c.RelationshipLabel, string(c.Type), roleArg(c.Role), c.IsPrimary, c.ID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Remove retires a contact. The row stays for history; a new row for the
// same e-mail may be created afterwards.
func (r *PgContactRepository) Remove(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET removed_at = $2, is_primary = FALSE, updated_at = NOW()
		 WHERE id = $1 AND removed_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnregistered pages through rows that still need identity resolution.
// afterID is the last ID of the previous page, or "" for the first page.
// limit <= 0 means no limit.
func (r *PgContactRepository) ListUnregistered(ctx context.Context, afterID string, limit int) ([]*model.Contact, error) {
	var cursor *string
	if afterID != "" {
		cursor = &afterID
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactSelectCols+` FROM contacts
		 WHERE invitation_status <> 'registered' AND removed_at IS NULL
		   AND ($1::uuid IS NULL OR id > $1::uuid)
		 ORDER BY id
		 LIMIT NULLIF($2::int, 0)`, cursor, max(limit, 0))
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// MarkRegistered is a conditional one-way transition; concurrent callers
// cannot regress or double-apply it.
func (r *PgContactRepository) MarkRegistered(ctx context.Context, id, targetUserID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts
		 SET invitation_status = 'registered', target_user_id = $2,
		     confirmed_at = COALESCE(confirmed_at, $3), updated_at = NOW()
		 WHERE id = $1 AND invitation_status <> 'registered' AND removed_at IS NULL`,
		id, targetUserID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListTrustedByEmail is the reverse lookup: rows where email is the trusted
// contact. Callers must pass their own verified address.
func (r *PgContactRepository) ListTrustedByEmail(ctx context.Context, email string) ([]*model.TrustedRelationship, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.owner_id, COALESCE(NULLIF(u.name, ''), u.email), u.email, c.role,
		        c.is_primary, c.invitation_status, u.deceased_at, c.created_at
		 FROM contacts c
		 JOIN users u ON u.id = c.owner_id
		 WHERE c.email = $1 AND c.contact_type = 'trusted' AND c.removed_at IS NULL
		 ORDER BY c.created_at`, model.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*model.TrustedRelationship
	for rows.Next() {
		var rel model.TrustedRelationship
		var role, status string
		if err := rows.Scan(&rel.ContactID, &rel.OwnerID, &rel.OwnerDisplayName, &rel.OwnerEmail, &role,
			&rel.IsPrimary, &status, &rel.OwnerDeceasedAt, &rel.CreatedAt); err != nil {
			return nil, err
		}
		rel.Role = model.Role(role)
		rel.InvitationStatus = model.InvitationStatus(status)
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

// FindTrustedLink returns the registered trusted row tying targetUserID to
// ownerID, preferring the primary one.
func (r *PgContactRepository) FindTrustedLink(ctx context.Context, ownerID, targetUserID string) (*model.Contact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+contactSelectCols+` FROM contacts
		 WHERE owner_id = $1 AND target_user_id = $2 AND contact_type = 'trusted'
		   AND invitation_status = 'registered' AND removed_at IS NULL
		 ORDER BY is_primary DESC, created_at
		 LIMIT 1`, ownerID, targetUserID)
	c, err := scanContact(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}
