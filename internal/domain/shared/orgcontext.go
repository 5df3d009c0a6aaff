package shared

import (
	"github.com/google/uuid"
)

// OrgContext carries the authenticated caller's organization scope into every
// ledger operation. It is constructed only by the auth boundary; there is no
// way to build a valid OrgContext without an organization id, which makes a
// organization-unscoped ledger call unrepresentable.
type OrgContext struct {
	organizationID uuid.UUID
	actor          string
}

// NewOrgContext creates an OrgContext for the given organization.
// Returns an error if the organization id is empty.
func NewOrgContext(organizationID uuid.UUID, actor string) (OrgContext, error) {
	if organizationID == uuid.Nil {
		return OrgContext{}, NewDomainError("VALIDATION", "organization id is required")
	}
	return OrgContext{organizationID: organizationID, actor: actor}, nil
}

// MustOrgContext creates an OrgContext and panics on an empty organization id.
// Intended for tests and fixtures only.
func MustOrgContext(organizationID uuid.UUID, actor string) OrgContext {
	oc, err := NewOrgContext(organizationID, actor)
	if err != nil {
		panic(err)
	}
	return oc
}

// OrganizationID returns the scoping organization id
func (c OrgContext) OrganizationID() uuid.UUID {
	return c.organizationID
}

// Actor returns the acting user's display name, if known
func (c OrgContext) Actor() string {
	return c.actor
}

// IsZero reports whether the context was never initialized
func (c OrgContext) IsZero() bool {
	return c.organizationID == uuid.Nil
}
