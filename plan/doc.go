// Package plan turns an installed state and a resolved target into an
// ordered list of steps that is safe to apply one at a time.
//
// Removals come first, dependents before the mods they depend on. Installs,
// upgrades and downgrades follow, dependencies before their dependents.
// Mods that depend on each other are grouped into one batch step.
package plan
