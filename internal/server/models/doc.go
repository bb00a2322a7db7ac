// Package models holds the server-side domain types shared by repositories,
// services and the transport layer.
package models
