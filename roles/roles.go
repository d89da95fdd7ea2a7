// Package roles resolves chat user ids to their staff standing. Resolution
// is read-only and fails closed: a storage error never grants a role, it
// just makes the caller look like a plain customer.
package roles

import (
	"context"

	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/models"
)

// Kind is the resolved privilege level of a user id
type Kind string

const (
	KindNone         Kind = "none"
	KindCustomerCare Kind = "customer_care"
	KindAdmin        Kind = "admin"
	KindSuperAdmin   Kind = "super_admin"
)

// Role is a resolution result. Profile is nil only for KindNone.
type Role struct {
	Kind    Kind
	Profile *models.StaffRecord
}

// StaffStore is the slice of the record store the resolver needs.
type StaffStore interface {
	GetStaff(ctx context.Context, id int64) (*models.StaffRecord, error)
	UpsertStaff(ctx context.Context, rec *models.StaffRecord) error
}

type Resolver struct {
	store StaffStore
	super map[int64]bool
}

func NewResolver(store StaffStore, superAdmins []int64) *Resolver {
	super := make(map[int64]bool, len(superAdmins))
	for _, id := range superAdmins {
		super[id] = true
	}
	return &Resolver{store: store, super: super}
}

// Resolve determines the role of a user id. Lookup order: super-admin set,
// then the staff record's own role. Any storage error resolves to KindNone.
func (r *Resolver) Resolve(ctx context.Context, id int64) Role {
	rec, err := r.store.GetStaff(ctx, id)
	if err != nil {
		if r.super[id] {
			// Seeded record missing or unreadable; privileges still hold.
			return Role{Kind: KindSuperAdmin}
		}
		return Role{Kind: KindNone}
	}
	if r.super[id] {
		return Role{Kind: KindSuperAdmin, Profile: rec}
	}
	switch rec.Role {
	case models.RoleAdmin:
		return Role{Kind: KindAdmin, Profile: rec}
	case models.RoleCustomerCare:
		return Role{Kind: KindCustomerCare, Profile: rec}
	default:
		return Role{Kind: KindNone}
	}
}

// CanHandleCustomers reports whether the id holds any staff role.
func (r *Resolver) CanHandleCustomers(ctx context.Context, id int64) bool {
	return r.Resolve(ctx, id).Kind != KindNone
}

// IsAdmin reports whether the id is an admin or super admin.
func (r *Resolver) IsAdmin(ctx context.Context, id int64) bool {
	k := r.Resolve(ctx, id).Kind
	return k == KindAdmin || k == KindSuperAdmin
}

// IsSuperAdmin reports configured super-admin membership only.
func (r *Resolver) IsSuperAdmin(id int64) bool {
	return r.super[id]
}

// SeedSuperAdmins upserts an admin record for every configured super admin.
// Safe to run on every boot.
func (r *Resolver) SeedSuperAdmins(ctx context.Context) {
	for id := range r.super {
		rec := &models.StaffRecord{
			ID:          id,
			Name:        "Super Admin",
			DisplayName: "Support",
			Role:        models.RoleAdmin,
		}
		if err := r.store.UpsertStaff(ctx, rec); err != nil {
			logger.Error("failed to seed super admin", "id", id, "err", err)
		}
	}
}
