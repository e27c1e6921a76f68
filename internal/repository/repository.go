package repository

import (
	"strings"
	"time"
)

type Type string

const (
	TypeLocal  Type = "local"
	TypeRemote Type = "remote"
)

type Dirtiness string

const (
	DirtyUnknown Dirtiness = "unknown"
	DirtyClean   Dirtiness = "clean"
	Dirty        Dirtiness = "dirty"
	DirtyError   Dirtiness = "error"
)

// Repository is either a remote GitHub repository (possibly also cloned) or a
// local clone that could not be matched to one.
type Repository struct {
	URL        string
	Name       string
	OwnerLogin string
	Type       Type

	LocalPath string
	Dirty     Dirtiness

	Description      string
	IsPrivate        bool
	IsFork           bool
	ParentOwnerLogin string
	ParentName       string
	Language         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r Repository) IsCloned() bool { return r.LocalPath != "" }

// FullName returns "owner/name".
func (r Repository) FullName() string { return r.OwnerLogin + "/" + r.Name }

// NormalizeURL reduces the different spellings of a GitHub remote to
// https://github.com/owner/name so that clones and API results can be matched.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	switch {
	case strings.HasPrefix(u, "git@"):
		// git@github.com:owner/name
		u = strings.TrimPrefix(u, "git@")
		u = strings.Replace(u, ":", "/", 1)
		u = "https://" + u
	case strings.HasPrefix(u, "ssh://"):
		u = strings.TrimPrefix(u, "ssh://")
		if i := strings.Index(u, "@"); i != -1 {
			u = u[i+1:]
		}
		u = "https://" + u
	case strings.HasPrefix(u, "http://"):
		u = "https://" + strings.TrimPrefix(u, "http://")
	}

	// Strip credentials such as https://token@github.com/...
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		if at := strings.Index(rest, "@"); at != -1 && at < strings.Index(rest+"/", "/") {
			rest = rest[at+1:]
		}
		host, path, _ := strings.Cut(rest, "/")
		u = "https://" + strings.ToLower(host) + "/" + path
	}
	return u
}

// OwnerAndName extracts owner and name from a normalized GitHub url.
func OwnerAndName(url string) (owner, name string, ok bool) {
	rest, found := strings.CutPrefix(NormalizeURL(url), "https://")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
