// Package artifact stores the date-stamped files that stages hand to each
// other: raw rate-table snapshots and clean CSV batches.
package artifact

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

const dateFormat = "2006-01-02"

var ErrNotFound = errors.New("artifact not found")

// Kind identifies an artifact family and its naming scheme.
type Kind string

const (
	Raw   Kind = "raw"
	Clean Kind = "clean"
)

func (k Kind) prefix() string {
	if k == Clean {
		return "nbp_rates_"
	}
	return "raw_nbp_"
}

func (k Kind) ext() string {
	if k == Clean {
		return ".csv"
	}
	return ".json"
}

// ContentType is the MIME type of the kind's files.
func (k Kind) ContentType() string {
	if k == Clean {
		return "text/csv"
	}
	return "application/json"
}

// FileName returns the file name for an artifact of this kind dated date.
func (k Kind) FileName(date time.Time) string {
	return k.prefix() + date.Format(dateFormat) + k.ext()
}

// ParseName extracts the date from a file name of this kind.
func (k Kind) ParseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, k.prefix()) || !strings.HasSuffix(name, k.ext()) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, k.prefix()), k.ext())
	t, err := time.Parse(dateFormat, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Artifact is a reference to one stored file.
type Artifact struct {
	Kind Kind
	Date time.Time
	Name string
}

// Store lists, reads and writes artifacts keyed by kind and date.
// Writing the same kind and date twice overwrites.
type Store interface {
	List(ctx context.Context, kind Kind) ([]Artifact, error)
	Read(ctx context.Context, a Artifact) ([]byte, error)
	Write(ctx context.Context, kind Kind, date time.Time, data []byte) (Artifact, error)
}

func sortByDate(list []Artifact) {
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
