// Package model defines data structures for the relay.
package model

// Identity is a registered participant. The ID is chosen by the client; the
// server only stores it.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegisterIdentityRequest is the request to register or update an identity.
type RegisterIdentityRequest struct {
	ID   string `json:"id" validate:"required,max=128"`
	Name string `json:"name" validate:"max=256"`
}

// RenameIdentityRequest is the request to change a display name.
type RenameIdentityRequest struct {
	Name string `json:"name" validate:"max=256"`
}
