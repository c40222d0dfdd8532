// Package authz decides which role may perform which action, using a Casbin
// RBAC model with role inheritance visiteur < client < agence and an admin
// wildcard. Row-level checks (own reservation, own agency) stay in handlers.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/ukydev/vitarenta/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Permissions, written resource:action.
const (
	VehiclesRead             = "vehicles:read"
	VehiclesWrite            = "vehicles:write"
	AgenciesRead             = "agencies:read"
	AgenciesManage           = "agencies:manage"
	AgenciesWrite            = "agencies:write"
	ReservationsCreate       = "reservations:create"
	ReservationsRead         = "reservations:read"
	ReservationsCancel       = "reservations:cancel"
	ReservationsManage       = "reservations:manage"
	EcoChallengesRead        = "ecochallenges:read"
	EcoChallengesParticipate = "ecochallenges:participate"
	EcoChallengesWrite       = "ecochallenges:write"
	RecommendationsRead      = "recommendations:read"
	TelemetryRead            = "telemetry:read"
	TelemetryWrite           = "telemetry:write"
	AnalyticsRead            = "analytics:read"
	UsersManage              = "users:manage"
)

// Enforcer wraps a synced Casbin enforcer loaded with the role matrix.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer from the embedded model and policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(embeddedPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// MustNewEnforcer is NewEnforcer for package initialization and tests.
func MustNewEnforcer() *Enforcer {
	e, err := NewEnforcer()
	if err != nil {
		panic(err)
	}
	return e
}

// Allowed reports whether role holds permission ("resource:action").
// Malformed permissions are denied.
func (e *Enforcer) Allowed(role models.Role, permission string) (bool, error) {
	obj, act, ok := strings.Cut(permission, ":")
	if !ok || obj == "" || act == "" {
		return false, fmt.Errorf("malformed permission %q", permission)
	}
	allowed, err := e.enforcer.Enforce(string(role), obj, act)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// Can is Allowed with errors treated as a denial.
func (e *Enforcer) Can(role models.Role, permission string) bool {
	allowed, err := e.Allowed(role, permission)
	return err == nil && allowed
}

// Permissions lists every resource:action the role holds directly or
// through inheritance.
func (e *Enforcer) Permissions(role models.Role) []string {
	perms, err := e.enforcer.GetImplicitPermissionsForUser(string(role))
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if len(p) >= 3 {
			out = append(out, p[1]+":"+p[2])
		}
	}
	return out
}
