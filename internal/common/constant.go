// Package common contains shared constants and sentinel errors used across
// CardVault components.
package common

// AccessTokenHeaderName is the metadata key used to carry the access token
// on requests entering the application's transport layer.
const AccessTokenHeaderName = "access_token"
