// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Catalog identifiers.
const (
	UnknownModuleId Id = iota + 1
	DuplicateModuleId
	ManifestInvalidId
	DependencyCycleId
	ConfigLoadFailedId
	TypecheckFailedId
	CSSWatchFailedId
	BundlerFailedId
	OutputConflictId
	HookRuntimeUnavailableId
)

type (
	// Id identifies a catalog issue.
	Id int

	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a well-known failure with remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

// Id returns the issue identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the Markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// ExtLinks returns external links.
func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue with the glamour style at stylePath ("dark",
// "light", "notty", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	unknownModuleIssue = &Issue{
		id: UnknownModuleId,
		mdMsg: `
# Argument error: unknown module

One of the module names passed to bleep is not a module of this workspace.
Nothing was started.

## Things you can try:
- List the known modules:
~~~
$ bleep modules
~~~
- Check for typos. Names are matched exactly, aliases are not accepted.
- Use ` + "`all`" + ` to build every module:
~~~
$ bleep build all
~~~`,
	}

	duplicateModuleIssue = &Issue{
		id: DuplicateModuleId,
		mdMsg: `
# Two manifests declare the same module name

Module names must be unique across the workspace because outputs, hooks and
dependency edges are all keyed by name.

## Things you can try:
- Rename one of the packages in its ` + "`package.json`" + `.
- Narrow ` + "`modules.patterns`" + ` in ` + "`bleep.cue`" + ` so the copy is not discovered.`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Invalid module manifest

A ` + "`package.json`" + ` did not match the expected shape. The error above
names the file and the offending path.

## Expected build section:
~~~json
{
  "name": "site",
  "dependencies": { "common": "workspace:*" },
  "build": {
    "bundle": [{ "input": "src/site.ts", "output": "site" }],
    "pre": [["node", "gen-i18n.js"]],
    "post": [["cp", "site.css", "../../public/"]]
  }
}
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle between modules

The modules listed above depend on each other in a loop, so no module can be
bundled before the others. The package manager would normally reject this
during install.

## Things you can try:
- Remove one of the dependencies in the cycle.
- Move the shared code into a new module both can depend on.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

## Things you can try:
- Print the effective configuration:
~~~
$ bleep config show
~~~
- Write a fresh default file and edit it:
~~~
$ bleep config init
~~~
- Environment overrides use the ` + "`BLEEP_`" + ` prefix, e.g. ` + "`BLEEP_OUT_DIR`" + `.`,
	}

	typecheckFailedIssue = &Issue{
		id: TypecheckFailedId,
		mdMsg: `
# The type-checker stopped

tsc runs in watch mode for the whole session. It exited, so bleep stopped the
other watchers too.

## Things you can try:
- Run it by hand to see the full error:
~~~
$ tsc -b bleep.tsconfig.json
~~~
- Make sure ` + "`typecheck.command`" + ` points at an installed tsc.
- If your tsc prints a different success line, set ` + "`typecheck.success_marker`" + `.`,
	}

	cssWatchFailedIssue = &Issue{
		id: CSSWatchFailedId,
		mdMsg: `
# The CSS watcher failed

The CSS watcher exited with an error, or kept exiting with the retried code
until bleep gave up.

## Things you can try:
- Run the CSS build once by hand:
~~~
$ yarn gulp css
~~~
- Raise ` + "`css.max_retries`" + ` if the watcher is merely flaky.
- Disable it with ` + "`css.enabled: false`" + ` or ` + "`--no-css`" + `.`,
	}

	bundlerFailedIssue = &Issue{
		id: BundlerFailedId,
		mdMsg: `
# The bundler exited

The bundler watch process ended unexpectedly. Individual bundle errors are
reported above and do not stop the session; this is a crash of the process
itself.

## Things you can try:
- Check that node, rollup and the rollup plugins are installed in the ui directory.
- Run with ` + "`--verbose`" + ` to see the bundler's own output.`,
	}

	outputConflictIssue = &Issue{
		id: OutputConflictId,
		mdMsg: `
# Two bundles write the same output

Each output file can only belong to one module, otherwise hooks would run for
the wrong module.

## Things you can try:
- Give one of the bundles a different ` + "`output`" + ` name.`,
	}

	hookRuntimeUnavailableIssue = &Issue{
		id: HookRuntimeUnavailableId,
		mdMsg: `
# Hooks cannot run

The native hook runtime needs a shell on the PATH and none was found.

## Things you can try:
- Install a POSIX shell, or put ` + "`sh`" + ` on the PATH.
- Use the embedded shell with ` + "`hooks.runtime: \"virtual\"`" + ` or ` + "`--runtime virtual`" + `.`,
	}

	issues = map[Id]*Issue{
		unknownModuleIssue.id:    unknownModuleIssue,
		duplicateModuleIssue.id:  duplicateModuleIssue,
		manifestInvalidIssue.id:  manifestInvalidIssue,
		dependencyCycleIssue.id:  dependencyCycleIssue,
		configLoadFailedIssue.id: configLoadFailedIssue,
		typecheckFailedIssue.id:  typecheckFailedIssue,
		cssWatchFailedIssue.id:   cssWatchFailedIssue,
		bundlerFailedIssue.id:    bundlerFailedIssue,
		outputConflictIssue.id:   outputConflictIssue,

		hookRuntimeUnavailableIssue.id: hookRuntimeUnavailableIssue,
	}
)

// Values returns every catalog issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
