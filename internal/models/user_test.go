package models

import (
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"admin role", RoleAdmin, true},
		{"agence role", RoleAgence, true},
		{"client role", RoleClient, true},
		{"visiteur role", RoleVisiteur, true},
		{"invalid role", "invalid", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestCanSelfRegister(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleClient, true},
		{RoleVisiteur, true},
		{RoleAgence, false},
		{RoleAdmin, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanSelfRegister(tt.role); got != tt.expected {
				t.Errorf("CanSelfRegister(%s) = %v, want %v", tt.role, got, tt.expected)
			}
		})
	}
}

func TestRole_IsStaff(t *testing.T) {
	if !RoleAdmin.IsStaff() || !RoleAgence.IsStaff() {
		t.Error("admin and agence should be staff")
	}
	if RoleClient.IsStaff() || RoleVisiteur.IsStaff() {
		t.Error("client and visiteur should not be staff")
	}
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"both", User{Prenom: "Claire", Nom: "Martin"}, "Claire Martin"},
		{"nom only", User{Nom: "Martin"}, "Martin"},
		{"prenom only", User{Prenom: "Claire"}, "Claire"},
		{"empty", User{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}
