package repository

import "strings"

type Status string

const (
	StatusNotLoaded Status = "not-loaded"
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusError     Status = "error"
)

// OthersLogin identifies the bucket of cloned repositories whose owner is not
// one of the user's organizations. It cannot collide with a GitHub login.
const OthersLogin = "*others*"

// Organization is a GitHub account, the user's own included, whose
// repositories are listed.
type Organization struct {
	Login  string
	Name   string
	Status Status

	Repositories   []Repository
	NotClonedRepos []Repository
	ClonedRepos    []Repository
}

// DisplayName falls back to the login when the account has no name.
func (o Organization) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Login
}

// EmptyLabel is shown in place of an org's children when it has none.
func EmptyLabel(status Status) string {
	switch status {
	case StatusError:
		return "Error loading"
	case StatusNotLoaded, StatusLoading:
		return "Loading..."
	case StatusLoaded:
		return "Empty"
	default:
		return ""
	}
}

type State string

const (
	StateNone        State = "none"
	StateFetching    State = "fetching"
	StatePartial     State = "partial"
	StateFullyLoaded State = "fullyLoaded"
)

// Catalog is everything known about the user's repositories at one point.
type Catalog struct {
	UserLogin     string
	State         State
	Organizations []Organization
	// ClonedOtherRepos are local clones whose owner is none of Organizations.
	ClonedOtherRepos []Repository
}

// FindOrganization looks an org up by login, ignoring case.
func (c Catalog) FindOrganization(login string) (Organization, bool) {
	for _, o := range c.Organizations {
		if strings.EqualFold(o.Login, login) {
			return o, true
		}
	}
	return Organization{}, false
}

// OthersOrganization wraps ClonedOtherRepos as a pseudo organization so they
// can be hidden like any other org's repositories.
func (c Catalog) OthersOrganization() Organization {
	return Organization{
		Login:          OthersLogin,
		Name:           "Others",
		Status:         StatusLoaded,
		Repositories:   c.ClonedOtherRepos,
		ClonedRepos:    c.ClonedOtherRepos,
		NotClonedRepos: nil,
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c Catalog) Clone() Catalog {
	out := c
	out.Organizations = make([]Organization, len(c.Organizations))
	for i, o := range c.Organizations {
		o.Repositories = append([]Repository(nil), o.Repositories...)
		o.NotClonedRepos = append([]Repository(nil), o.NotClonedRepos...)
		o.ClonedRepos = append([]Repository(nil), o.ClonedRepos...)
		out.Organizations[i] = o
	}
	out.ClonedOtherRepos = append([]Repository(nil), c.ClonedOtherRepos...)
	return out
}
