package domain

import "errors"

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrCredentialPersistence = errors.New("credential persistence failed")
	ErrCatalogUnavailable    = errors.New("catalog unavailable")
	ErrStoreWrite            = errors.New("store write failed")
)
