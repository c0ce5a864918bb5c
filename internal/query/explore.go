package query

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

const defaultMaxEntries = 200

// Explore renders each routed mount as a directory-grouped file tree,
// capped at MaxEntries with "+N files" sentinels where a directory
// overflows the remaining budget.
func (s *Service) Explore(p ExploreParams) (*ExploreResult, error) {
	entries, err := s.table.Route(p.Project)
	if err != nil {
		return nil, err
	}

	maxEntries := p.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	out := &ExploreResult{}
	for _, e := range entries {
		manifest := e.Mount.Manifest()

		var subprojects []string
		for _, other := range s.table.Mounts() {
			if other.Rel != e.Rel && other.Rel != "." &&
				(e.Rel == "." || strings.HasPrefix(other.Rel, e.Rel+"/")) {
				subprojects = append(subprojects, other.Rel)
			}
		}

		paths, err := e.Mount.Store().Paths()
		if err != nil {
			return nil, err
		}
		if p.Path != "" {
			var kept []string
			for _, f := range paths {
				if f == p.Path || strings.HasPrefix(f, strings.TrimSuffix(p.Path, "/")+"/") {
					kept = append(kept, f)
				}
			}
			paths = kept
		}

		out.Projects = append(out.Projects, ProjectTree{
			Project:     e.Rel,
			Name:        manifest.Name,
			Languages:   manifest.Languages,
			Subprojects: subprojects,
			ReadOnly:    e.Mount.ReadOnly(),
			Tree:        renderTree(paths, maxEntries),
		})
	}
	return out, nil
}

// renderTree groups files under their directories, spending the entry
// budget directory by directory.
func renderTree(paths []string, maxEntries int) []string {
	byDir := map[string][]string{}
	for _, p := range paths {
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		byDir[dir] = append(byDir[dir], path.Base(p))
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var tree []string
	budget := maxEntries
	for _, dir := range dirs {
		files := byDir[dir]
		sort.Strings(files)

		indent := ""
		if dir != "" {
			if budget <= 0 {
				break
			}
			tree = append(tree, dir+"/")
			budget--
			indent = "  "
		}

		for i, f := range files {
			if budget <= 0 {
				tree = append(tree, fmt.Sprintf("%s+%d files", indent, len(files)-i))
				break
			}
			tree = append(tree, indent+f)
			budget--
		}
	}
	return tree
}
