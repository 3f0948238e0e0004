// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	PackageConfigInvalidId Id = iota + 1
	ModuleNotFoundId
	NodeNotFoundId
	ConfigLoadFailedId
	TsconfigInvalidId
	TransformFailedId
	HookServerFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal markdown using the glamour style at
// stylePath ("" picks one from the terminal background).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	packageConfigInvalidIssue = &Issue{
		id: PackageConfigInvalidId,
		mdMsg: `
# Invalid package.json

A package.json between the module and the filesystem root could not be
parsed. Node reads the same file to decide whether ` + "`.ts`" + ` and ` + "`.js`" + `
files are ES modules or CommonJS, so the module cannot be loaded.

## Things you can try:
- Fix the JSON syntax in the file named above
- Check it with:
~~~
$ node -e "JSON.parse(require('fs').readFileSync('package.json', 'utf8'))"
~~~`,
		extLinks: []HttpLink{"https://nodejs.org/api/packages.html#type"},
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found

The specifier could not be resolved, even after trying the TypeScript
extensions (` + "`.ts`, `.tsx`, `.jsx`" + `) and ` + "`index`" + ` files.

## Things you can try:
- Check the spelling and the path relative to the importing file
- Install the package if the specifier is bare:
~~~
$ npm install <package>
~~~
- See how tsload resolves it:
~~~
$ tsload resolve <specifier> <importing file>
~~~`,
		extLinks: []HttpLink{"https://nodejs.org/api/esm.html#resolution-algorithm"},
	}

	nodeNotFoundIssue = &Issue{
		id: NodeNotFoundId,
		mdMsg: `
# Node.js not found

tsload runs your program with node, but no node binary was found.

## Things you can try:
- Install Node.js and make sure ` + "`node`" + ` is in your PATH
- Point tsload at a specific binary:
~~~
$ tsload run --node /path/to/node main.ts
~~~
- Or set it once in tsload.cue:
~~~cue
node: binary: "/path/to/node"
~~~`,
		extLinks: []HttpLink{"https://nodejs.org/en/download"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The tsload configuration file could not be loaded or failed validation.

## Things you can try:
- Check the CUE syntax of the file named above
- Compare it with the schema:
~~~
$ tsload config show --schema
~~~
- Check TSLOAD_* environment variables, they override the file
- Start over from the defaults:
~~~
$ tsload config init --force
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	tsconfigInvalidIssue = &Issue{
		id: TsconfigInvalidId,
		mdMsg: `
# Invalid tsconfig.json

The TypeScript configuration could not be read. tsload passes its
` + "`compilerOptions`" + ` to the transpiler, following ` + "`extends`" + ` chains.

## Things you can try:
- Check the file and every file it extends
- Make sure no two files extend each other
- Use another file, or none:
~~~
$ tsload run --tsconfig tsconfig.build.json main.ts
~~~`,
		extLinks: []HttpLink{"https://www.typescriptlang.org/tsconfig"},
	}

	transformFailedIssue = &Issue{
		id: TransformFailedId,
		mdMsg: `
# Transform failed

A TypeScript, JSX or JSON source could not be transpiled. Type errors are
not reported by tsload; this is a syntax problem.

## Things you can try:
- Fix the syntax error at the location shown above
- Reproduce it outside of node:
~~~
$ tsload transpile <file>
~~~`,
		extLinks: []HttpLink{"https://esbuild.github.io/content-types/#typescript"},
	}

	hookServerFailedIssue = &Issue{
		id: HookServerFailedId,
		mdMsg: `
# Hook server failed

tsload could not start the local server the loader hooks talk to, or node
could not reach it.

## Things you can try:
- Make sure connections to 127.0.0.1 are allowed
- Run with ` + "`--verbose`" + ` to see the server's log
- Check that nothing clears TSLOAD_HOOK_ADDR or TSLOAD_HOOK_TOKEN before node starts`,
	}

	issues = map[Id]*Issue{
		packageConfigInvalidIssue.Id(): packageConfigInvalidIssue,
		moduleNotFoundIssue.Id():       moduleNotFoundIssue,
		nodeNotFoundIssue.Id():         nodeNotFoundIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		tsconfigInvalidIssue.Id():      tsconfigInvalidIssue,
		transformFailedIssue.Id():      transformFailedIssue,
		hookServerFailedIssue.Id():     hookServerFailedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	out := slices.Collect(maps.Values(issues))
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id - b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
