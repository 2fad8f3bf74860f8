package registry

import (
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// Modrinth dependency types.
const (
	dependencyRequired     = "required"
	dependencyOptional     = "optional"
	dependencyIncompatible = "incompatible"
	dependencyEmbedded     = "embedded"
)

// versionDoc is one element of GET /project/{id}/version.
type versionDoc struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	Name          string          `json:"name"`
	VersionNumber string          `json:"version_number"`
	VersionType   string          `json:"version_type"`
	GameVersions  []string        `json:"game_versions"`
	Loaders       []string        `json:"loaders"`
	Dependencies  []dependencyDoc `json:"dependencies"`
	Files         []fileDoc       `json:"files"`
}

type dependencyDoc struct {
	VersionID      string `json:"version_id"`
	ProjectID      string `json:"project_id"`
	FileName       string `json:"file_name"`
	DependencyType string `json:"dependency_type"`
}

type fileDoc struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Primary  bool   `json:"primary"`
	Size     int64  `json:"size"`
	Hashes   struct {
		SHA1   string `json:"sha1"`
		SHA512 string `json:"sha512"`
	} `json:"hashes"`
}

// projectDoc is the subset of GET /project/{id} used to map project IDs to
// slugs.
type projectDoc struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

func channelOf(versionType string) mod.Channel {
	switch versionType {
	case "beta":
		return mod.ChannelBeta
	case "alpha":
		return mod.ChannelAlpha
	}
	return mod.ChannelRelease
}

// gameRange turns a list of supported game versions into a range. An empty
// list supports everything; unparseable entries are dropped.
func gameRange(versions []string) version.Range {
	if len(versions) == 0 {
		return version.Any()
	}
	members := make([]version.Range, 0, len(versions))
	for _, s := range versions {
		v, err := version.Parse(s)
		if err != nil {
			continue
		}
		members = append(members, version.Exact(v))
	}
	return version.Union(members...)
}

func filesOf(docs []fileDoc) []mod.File {
	files := make([]mod.File, len(docs))
	for i, f := range docs {
		files[i] = mod.File{
			URL:      f.URL,
			Filename: f.Filename,
			Size:     f.Size,
			SHA1:     f.Hashes.SHA1,
			SHA512:   f.Hashes.SHA512,
			Primary:  f.Primary,
		}
	}
	return files
}
