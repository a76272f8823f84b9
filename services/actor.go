package services

import "huntzen-care/models"

// Actor is the authenticated caller on whose behalf a service runs.
type Actor struct {
	UserID    uint
	Role      models.Role
	CompanyID *uint
}

func (a Actor) HasRole(roles ...models.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (a Actor) require(roles ...models.Role) error {
	if !a.HasRole(roles...) {
		return forbiddenf("role %s cannot perform this action", a.Role)
	}
	return nil
}

func (a Actor) requirePlatformAdmin() error {
	if !a.Role.IsPlatformAdmin() {
		return forbiddenf("platform administrator role required")
	}
	return nil
}

// managesCompany reports whether the actor administers the given tenant.
func (a Actor) managesCompany(companyID uint) bool {
	if a.Role.IsPlatformAdmin() {
		return true
	}
	return a.Role == models.RoleAdminRH && a.CompanyID != nil && *a.CompanyID == companyID
}

// scopeCompany resolves the tenant an administrative request targets. HR
// admins are pinned to their own company; platform admins must name one.
func (a Actor) scopeCompany(requested *uint) (uint, error) {
	switch {
	case a.Role == models.RoleAdminRH:
		if a.CompanyID == nil {
			return 0, forbiddenf("HR account is not attached to a company")
		}
		if requested != nil && *requested != *a.CompanyID {
			return 0, forbiddenf("cannot access another company")
		}
		return *a.CompanyID, nil
	case a.Role.IsPlatformAdmin():
		if requested == nil || *requested == 0 {
			return 0, invalidf("company_id is required")
		}
		return *requested, nil
	default:
		return 0, forbiddenf("administrator role required")
	}
}
