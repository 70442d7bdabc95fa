// Package replicate copies clean artifacts to remote object storage.
package replicate

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by the disabled replicator when remote
// storage settings are incomplete.
var ErrNotConfigured = errors.New("remote storage is not configured")

const DefaultPrefix = "data/processed/"

// Object is one file to upload. Name becomes the last part of the key.
type Object struct {
	Name        string
	Body        io.Reader
	ContentType string
}

// Replicator puts objects into remote storage.
type Replicator interface {
	Put(ctx context.Context, obj Object) error
}

// Settings holds remote storage configuration. AccessKeyID,
// SecretAccessKey, Region and Bucket are all required.
type Settings struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string
}

func (s Settings) Configured() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != "" && s.Region != "" && s.Bucket != ""
}

// Disabled is the replicator used when Settings are incomplete.
type Disabled struct{}

func (Disabled) Put(context.Context, Object) error { return ErrNotConfigured }
