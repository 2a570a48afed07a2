// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` once secrets are
// resolved.  Any tag mismatch or validation error aborts startup, so the
// binary never runs with partial or malformed configuration.
//
// Tag rules cover presence and shape (`required`, `email`, `url`,
// `hostname_port`).  The cross-field rule below checks that a configured
// EmailJS public key has somewhere to send: live delivery without a private
// key is allowed (EmailJS accepts public-key-only calls), but a private key
// without a public key is a typo.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Delivery.PrivateKey != "" && c.Delivery.PublicKey == "" {
		return errors.New("config: delivery.private_key set without delivery.public_key")
	}
	return nil
}
