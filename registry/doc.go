// Package registry supplies mod releases from remote and local sources.
//
// Three providers implement mod.Provider:
//
//   - Client speaks the Modrinth v2 API over HTTP, with a response cache,
//     a per-host circuit breaker and rate limit tracking.
//   - Local reads YAML release indexes from a directory, for offline use.
//   - Chain tries several sources in order and remembers which one serves
//     each mod.
//
// # Usage
//
// New picks the provider for a list of registry URLs:
//
//	provider, err := registry.New([]string{
//	    "file:///srv/modman/local",
//	    registry.DefaultBaseURL,
//	})
//	releases, err := provider.GetReleases(ctx, "sodium")
//
// # Local layout
//
// A local registry holds one file per mod:
//
//	{root}/{id}.yaml
//
// with a list of releases:
//
//	releases:
//	  - version: 0.5.3
//	    channel: release
//	    game_versions: ["1.20.1"]
//	    loaders: [fabric]
//	    dependencies:
//	      - id: fabric-api
//	        range: ">=0.80.0"
//	    files:
//	      - url: https://cdn.example.com/sodium-0.5.3.jar
//	        primary: true
package registry
