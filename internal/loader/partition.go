package loader

import (
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/repository"
)

// Partition matches local clones to the orgs' remote repositories by
// normalized url and splits every org into cloned and not-cloned lists.
// Clones of repositories that are not listed for their owner are still
// attributed to the owner when it is one of orgs; the rest become
// ClonedOtherRepos. dirtiness may be nil.
func Partition(userLogin string, orgs []repository.Organization, clones []repository.Repository, dirtiness func(path string) repository.Dirtiness) repository.Catalog {
	byURL := make(map[string]repository.Repository, len(clones))
	for _, c := range clones {
		byURL[repository.NormalizeURL(c.URL)] = c
	}
	matched := make(map[string]bool, len(clones))

	withDirt := func(r repository.Repository) repository.Repository {
		if dirtiness != nil && r.LocalPath != "" {
			r.Dirty = dirtiness(r.LocalPath)
		}
		return r
	}

	cat := repository.Catalog{UserLogin: userLogin}
	for _, org := range orgs {
		out := org
		out.Repositories = make([]repository.Repository, 0, len(org.Repositories))
		out.ClonedRepos = nil
		out.NotClonedRepos = nil

		for _, r := range org.Repositories {
			key := repository.NormalizeURL(r.URL)
			if c, ok := byURL[key]; ok {
				matched[key] = true
				r.LocalPath = c.LocalPath
				r = withDirt(r)
				out.ClonedRepos = append(out.ClonedRepos, r)
			} else {
				out.NotClonedRepos = append(out.NotClonedRepos, r)
			}
			out.Repositories = append(out.Repositories, r)
		}
		cat.Organizations = append(cat.Organizations, out)
	}

	for _, c := range clones {
		key := repository.NormalizeURL(c.URL)
		if matched[key] {
			continue
		}
		matched[key] = true
		c = withDirt(c)

		attributed := false
		for i := range cat.Organizations {
			if strings.EqualFold(cat.Organizations[i].Login, c.OwnerLogin) {
				cat.Organizations[i].ClonedRepos = append(cat.Organizations[i].ClonedRepos, c)
				cat.Organizations[i].Repositories = append(cat.Organizations[i].Repositories, c)
				attributed = true
				break
			}
		}
		if !attributed {
			cat.ClonedOtherRepos = append(cat.ClonedOtherRepos, c)
		}
	}
	return cat
}
