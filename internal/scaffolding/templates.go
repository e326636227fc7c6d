package scaffolding

// FileTemplate describes one file the scaffolder can produce. RelPath and
// Content are text/template strings rendered against a TemplateContext.
type FileTemplate struct {
	Name        string
	Description string
	Category    string
	RelPath     string
	Content     string
}

// TemplateContext holds the values available to file templates.
type TemplateContext struct {
	ProjectName string
	Name        string
	Title       string
	Date        string
	Year        string
}

// Builtin returns the built-in file templates by name.
func Builtin() map[string]FileTemplate {
	return map[string]FileTemplate{
		"config":          getConfigTemplate(),
		"page":            getPageTemplate(),
		"partial":         getPartialTemplate(),
		"styles":          getStylesTemplate(),
		"code":            getCodeTemplate(),
		"folder-settings": getFolderSettingsTemplate(),
	}
}

func getConfigTemplate() FileTemplate {
	return FileTemplate{
		Name:        "config",
		Description: "Project configuration file",
		Category:    "project",
		RelPath:     ".weft.yml",
		Content: `# {{.ProjectName}} configuration, created {{.Date}}.
source:
  root: .
  ignore:
    - .git
    - node_modules

output:
  # Generated files land here, mirroring the source tree. Remove this to
  # generate outputs next to their sources instead.
  dir: dist

server:
  port: 8080
  host: localhost
  open: true

watch:
  # Quiet period in milliseconds before a changed file is reprocessed.
  debounce: 100

sass:
  command: sass

logging:
  level: info
  format: text
`,
	}
}

func getPageTemplate() FileTemplate {
	return FileTemplate{
		Name:        "page",
		Description: "HTML page with a data block and the shared header",
		Category:    "source",
		RelPath:     "{{.Name}}.weft",
		Content: `<!--$
<Data>
  <Variable Name="Title">{{.Title}}</Variable>
</Data>
$-->
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>$$Title$$</title>
  <link rel="stylesheet" href="styles/site.css">
</head>
<body>
<!--@ include _partials/_header.weft @-->
  <main>
    <h1>$$Title$$</h1>
    <p>Edit {{.Name}}.weft and this page regenerates on save.</p>
  </main>
  <footer>
    <p>{{.ProjectName}}, generated $$weft.date$$</p>
  </footer>
</body>
</html>
`,
	}
}

func getPartialTemplate() FileTemplate {
	return FileTemplate{
		Name:        "partial",
		Description: "Shared fragment spliced into pages, never output itself",
		Category:    "source",
		RelPath:     "_partials/_{{.Name}}.weft",
		Content: `<!--@ partial @-->
<header>
  <nav>
    <a href="/">{{.ProjectName}}</a>
  </nav>
</header>
`,
	}
}

func getStylesTemplate() FileTemplate {
	return FileTemplate{
		Name:        "styles",
		Description: "Base stylesheet mirrored into the output tree",
		Category:    "asset",
		RelPath:     "styles/site.css",
		Content: `* {
  margin: 0;
  padding: 0;
  box-sizing: border-box;
}

body {
  font-family: system-ui, sans-serif;
  line-height: 1.6;
  color: #1f2937;
  max-width: 44rem;
  margin: 0 auto;
  padding: 1rem;
}

header nav a {
  color: inherit;
  font-weight: 600;
  text-decoration: none;
}

main {
  margin-top: 2rem;
}

footer {
  margin-top: 4rem;
  font-size: 0.85rem;
  color: #6b7280;
}
`,
	}
}

func getCodeTemplate() FileTemplate {
	return FileTemplate{
		Name:        "code",
		Description: "Go source generated from a data block",
		Category:    "source",
		RelPath:     "site/site.goweft",
		Content: `<!--$
<Data>
  <Group Name="Site">
    <!-- product name shown to visitors -->
    <Variable Name="app-name" Type="string">{{.ProjectName}}</Variable>
    <Variable Name="copyright-year" Type="int">{{.Year}}</Variable>
  </Group>
</Data>
$-->
package site

<!--# properties group=Site #-->
`,
	}
}

func getFolderSettingsTemplate() FileTemplate {
	return FileTemplate{
		Name:        "folder-settings",
		Description: "Folder override keeping generated Go next to its source",
		Category:    "project",
		RelPath:     "site/.weft-folder.yml",
		Content: `# Generated .go files stay in this folder instead of the project
# output directory.
output: .
`,
	}
}
