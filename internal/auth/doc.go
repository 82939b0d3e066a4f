// Package auth adapts the external identity collaborator for the store
// client: token sources with an optional pre-request refresh hook, and the
// HS256 bearer tokens issued and verified by the local table store.
package auth
