// Package detect decides which language/framework parsers apply to a
// project root. Probes run in a fixed priority order over a single
// vendor-pruned file inventory, so detection is deterministic and a
// fixture database buried in node_modules can never claim the project.
package detect

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"codeatlas/internal/crawler"
)

// Languages recognized by the engine. Prisma and SQLite are schema
// sources rather than general-purpose languages but flow through the
// same routing.
const (
	LangPython     = "python"
	LangTypeScript = "typescript"
	LangJava       = "java"
	LangCSharp     = "csharp"
	LangRuby       = "ruby"
	LangGo         = "go"
	LangPHP        = "php"
	LangPrisma     = "prisma"
	LangABAP       = "abap"
	LangSQLite     = "sqlite"
)

// Frameworks recognized by the manifest probes.
const (
	FrameworkSQLAlchemy   = "sqlalchemy"
	FrameworkDjango       = "django"
	FrameworkFlask        = "flask"
	FrameworkFastAPI      = "fastapi"
	FrameworkExpress      = "express"
	FrameworkNestJS       = "nestjs"
	FrameworkTypeORM      = "typeorm"
	FrameworkSequelize    = "sequelize"
	FrameworkMongoose     = "mongoose"
	FrameworkSpring       = "spring"
	FrameworkJPA          = "jpa"
	FrameworkEFCore       = "efcore"
	FrameworkASPNET       = "aspnet"
	FrameworkRails        = "rails"
	FrameworkActiveRecord = "activerecord"
	FrameworkGin          = "gin"
	FrameworkEcho         = "echo"
	FrameworkGORM         = "gorm"
	FrameworkLaravel      = "laravel"
	FrameworkEloquent     = "eloquent"
)

// Match is one (language, framework) candidate. Framework is empty for
// bare-language matches.
type Match struct {
	Language  string `json:"language"`
	Framework string `json:"framework,omitempty"`
}

func (m Match) String() string {
	if m.Framework == "" {
		return m.Language
	}
	return m.Language + "/" + m.Framework
}

// manifest read ceiling; dependency manifests are small and anything
// larger is not one.
const maxManifestSize = 1 << 20

var sqliteMagic = []byte("SQLite format 3\x00")

// Detect probes root and returns candidate matches most confident
// first. An empty slice means no supported language was found; callers
// translate that into an unsupported-project error. Only a failed walk
// of root itself is an error.
func Detect(root string) ([]Match, error) {
	inv, err := takeInventory(root)
	if err != nil {
		return nil, err
	}

	c := &collector{seen: map[Match]bool{}}
	probeSQLite(inv, c)
	probePythonManifests(inv, c)
	probePrisma(inv, c)
	probePackageJSON(inv, c)
	probeJavaBuild(inv, c)
	probeDotnet(inv, c)
	probeGemfile(inv, c)
	probeGoMod(inv, c)
	probeComposer(inv, c)
	probeABAP(inv, c)
	if len(c.out) == 0 {
		probeExtensions(inv, c)
	}
	return c.out, nil
}

type collector struct {
	seen map[Match]bool
	out  []Match
}

func (c *collector) add(lang, framework string) {
	m := Match{Language: lang, Framework: framework}
	if c.seen[m] {
		return
	}
	c.seen[m] = true
	c.out = append(c.out, m)
}

// inventory is everything the probes need, gathered in one pruned walk.
type inventory struct {
	sqliteFiles []crawler.File
	pyManifests []crawler.File
	prisma      bool
	packageJSON []crawler.File
	javaBuilds  []crawler.File
	csprojFiles []crawler.File
	sln         bool
	gemfiles    []crawler.File
	gomods      []crawler.File
	composer    []crawler.File
	abap        bool
	extCount    map[string]int
}

var manifestNames = map[string]bool{
	"requirements.txt": true, "pyproject.toml": true, "setup.py": true,
	"package.json": true, "pom.xml": true, "build.gradle": true,
	"build.gradle.kts": true, "Gemfile": true, "go.mod": true,
	"composer.json": true,
}

var sourceExtLang = map[string]string{
	".py": LangPython,
	".ts": LangTypeScript, ".tsx": LangTypeScript,
	".js": LangTypeScript, ".jsx": LangTypeScript,
	".mjs": LangTypeScript, ".cjs": LangTypeScript,
	".java": LangJava, ".cs": LangCSharp, ".rb": LangRuby,
	".go": LangGo, ".php": LangPHP,
}

func takeInventory(root string) (*inventory, error) {
	files, err := crawler.FindFiles(root, nil, func(name string) bool {
		if manifestNames[name] {
			return true
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".db", ".sqlite", ".sqlite3", ".prisma", ".csproj", ".sln", ".abap":
			return true
		}
		_, ok := sourceExtLang[strings.ToLower(filepath.Ext(name))]
		return ok
	})
	if err != nil {
		return nil, err
	}

	inv := &inventory{extCount: map[string]int{}}
	for _, f := range files {
		name := filepath.Base(f.Rel)
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case ext == ".db" || ext == ".sqlite" || ext == ".sqlite3":
			inv.sqliteFiles = append(inv.sqliteFiles, f)
		case name == "requirements.txt" || name == "pyproject.toml" || name == "setup.py":
			inv.pyManifests = append(inv.pyManifests, f)
		case ext == ".prisma":
			inv.prisma = true
		case name == "package.json":
			inv.packageJSON = append(inv.packageJSON, f)
		case name == "pom.xml" || name == "build.gradle" || name == "build.gradle.kts":
			inv.javaBuilds = append(inv.javaBuilds, f)
		case ext == ".csproj":
			inv.csprojFiles = append(inv.csprojFiles, f)
		case ext == ".sln":
			inv.sln = true
		case name == "Gemfile":
			inv.gemfiles = append(inv.gemfiles, f)
		case name == "go.mod":
			inv.gomods = append(inv.gomods, f)
		case name == "composer.json":
			inv.composer = append(inv.composer, f)
		case ext == ".abap":
			inv.abap = true
		}
		if lang, ok := sourceExtLang[ext]; ok {
			inv.extCount[lang]++
		}
	}
	return inv, nil
}

// probeSQLite accepts a database file only when its header carries the
// SQLite magic; extension alone is not evidence.
func probeSQLite(inv *inventory, c *collector) {
	for _, f := range inv.sqliteFiles {
		if hasSQLiteHeader(f.Path) {
			c.add(LangSQLite, "")
			return
		}
	}
}

func hasSQLiteHeader(path string) bool {
	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fh.Close()

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(fh, header); err != nil {
		return false
	}
	return string(header) == string(sqliteMagic)
}

// probePythonManifests scans requirement entries and import lines. Only
// lines that begin with import/from count in setup.py so a mention
// inside a comment or docstring never triggers a framework match.
func probePythonManifests(inv *inventory, c *collector) {
	if len(inv.pyManifests) == 0 {
		return
	}
	found := map[string]bool{}
	for _, f := range inv.pyManifests {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		switch filepath.Base(f.Rel) {
		case "requirements.txt":
			scanRequirements(string(data), found)
		case "pyproject.toml":
			scanPyproject(string(data), found)
		case "setup.py":
			scanImportLines(string(data), found)
		}
	}
	for _, fw := range []string{FrameworkSQLAlchemy, FrameworkDjango, FrameworkFlask, FrameworkFastAPI} {
		if found[fw] {
			c.add(LangPython, fw)
		}
	}
	c.add(LangPython, "")
}

var pythonFrameworks = map[string]string{
	"sqlalchemy": FrameworkSQLAlchemy,
	"django":     FrameworkDjango,
	"flask":      FrameworkFlask,
	"fastapi":    FrameworkFastAPI,
}

func scanRequirements(content string, found map[string]bool) {
	for _, line := range strings.Split(content, "\n") {
		markFramework(requirementName(line), found)
	}
}

func scanPyproject(content string, found map[string]bool) {
	for _, line := range strings.Split(content, "\n") {
		// Poetry-style table keys ("flask = ...") and PEP 621 quoted
		// requirement strings both resolve through requirementName.
		markFramework(requirementName(line), found)
		rest := line
		for {
			start := strings.IndexByte(rest, '"')
			if start < 0 {
				break
			}
			end := strings.IndexByte(rest[start+1:], '"')
			if end < 0 {
				break
			}
			markFramework(requirementName(rest[start+1:start+1+end]), found)
			rest = rest[start+1+end+1:]
		}
	}
}

func scanImportLines(content string, found map[string]bool) {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		var modules string
		switch {
		case strings.HasPrefix(trimmed, "from "):
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				modules = fields[1]
			}
		case strings.HasPrefix(trimmed, "import "):
			modules = strings.TrimPrefix(trimmed, "import ")
		default:
			continue
		}
		for _, mod := range strings.Split(modules, ",") {
			head := strings.SplitN(strings.TrimSpace(mod), ".", 2)[0]
			markFramework(strings.ToLower(head), found)
		}
	}
}

// requirementName extracts the distribution name from a requirement
// line ("Flask==2.0", "flask[async]>=2", "django = \"^4.2\"").
func requirementName(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	end := len(trimmed)
	for i := 0; i < len(trimmed); i++ {
		ch := trimmed[i]
		isNameChar := ch == '-' || ch == '_' || ch == '.' ||
			(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
		if !isNameChar {
			end = i
			break
		}
	}
	return strings.ToLower(trimmed[:end])
}

func markFramework(name string, found map[string]bool) {
	if fw, ok := pythonFrameworks[name]; ok {
		found[fw] = true
	}
}

func probePrisma(inv *inventory, c *collector) {
	if inv.prisma {
		c.add(LangPrisma, "")
	}
}

func probePackageJSON(inv *inventory, c *collector) {
	if len(inv.packageJSON) == 0 {
		return
	}
	deps := map[string]bool{}
	for _, f := range inv.packageJSON {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		for _, key := range []string{"dependencies", "devDependencies"} {
			gjson.GetBytes(data, key).ForEach(func(name, _ gjson.Result) bool {
				deps[name.String()] = true
				return true
			})
		}
	}
	if deps["express"] {
		c.add(LangTypeScript, FrameworkExpress)
	}
	if deps["@nestjs/core"] || deps["@nestjs/common"] {
		c.add(LangTypeScript, FrameworkNestJS)
	}
	if deps["typeorm"] {
		c.add(LangTypeScript, FrameworkTypeORM)
	}
	if deps["sequelize"] {
		c.add(LangTypeScript, FrameworkSequelize)
	}
	if deps["mongoose"] {
		c.add(LangTypeScript, FrameworkMongoose)
	}
	c.add(LangTypeScript, "")
}

func probeJavaBuild(inv *inventory, c *collector) {
	if len(inv.javaBuilds) == 0 {
		return
	}
	for _, f := range inv.javaBuilds {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		content := strings.ToLower(string(data))
		if strings.Contains(content, "spring") {
			c.add(LangJava, FrameworkSpring)
		}
		if strings.Contains(content, "jpa") || strings.Contains(content, "hibernate") ||
			strings.Contains(content, "javax.persistence") || strings.Contains(content, "jakarta.persistence") {
			c.add(LangJava, FrameworkJPA)
		}
	}
	c.add(LangJava, "")
}

func probeDotnet(inv *inventory, c *collector) {
	if len(inv.csprojFiles) == 0 && !inv.sln {
		return
	}
	for _, f := range inv.csprojFiles {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		content := strings.ToLower(string(data))
		if strings.Contains(content, "microsoft.entityframeworkcore") {
			c.add(LangCSharp, FrameworkEFCore)
		}
		if strings.Contains(content, "microsoft.aspnetcore") || strings.Contains(content, "microsoft.net.sdk.web") {
			c.add(LangCSharp, FrameworkASPNET)
		}
	}
	c.add(LangCSharp, "")
}

func probeGemfile(inv *inventory, c *collector) {
	if len(inv.gemfiles) == 0 {
		return
	}
	for _, f := range inv.gemfiles {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		content := strings.ToLower(string(data))
		if strings.Contains(content, "rails") {
			c.add(LangRuby, FrameworkRails)
			c.add(LangRuby, FrameworkActiveRecord)
		}
		if strings.Contains(content, "activerecord") || strings.Contains(content, "active_record") {
			c.add(LangRuby, FrameworkActiveRecord)
		}
	}
	c.add(LangRuby, "")
}

func probeGoMod(inv *inventory, c *collector) {
	if len(inv.gomods) == 0 {
		return
	}
	for _, f := range inv.gomods {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		content := string(data)
		if strings.Contains(content, "github.com/gin-gonic/gin") {
			c.add(LangGo, FrameworkGin)
		}
		if strings.Contains(content, "github.com/labstack/echo") {
			c.add(LangGo, FrameworkEcho)
		}
		if strings.Contains(content, "gorm.io/gorm") || strings.Contains(content, "github.com/jinzhu/gorm") {
			c.add(LangGo, FrameworkGORM)
		}
	}
	c.add(LangGo, "")
}

func probeComposer(inv *inventory, c *collector) {
	if len(inv.composer) == 0 {
		return
	}
	for _, f := range inv.composer {
		data, err := crawler.ReadFileSafely(f.Path, maxManifestSize)
		if err != nil {
			continue
		}
		deps := map[string]bool{}
		for _, key := range []string{"require", "require-dev"} {
			gjson.GetBytes(data, key).ForEach(func(name, _ gjson.Result) bool {
				deps[name.String()] = true
				return true
			})
		}
		if deps["laravel/framework"] {
			c.add(LangPHP, FrameworkLaravel)
			c.add(LangPHP, FrameworkEloquent)
		}
		if deps["illuminate/database"] {
			c.add(LangPHP, FrameworkEloquent)
		}
	}
	c.add(LangPHP, "")
}

func probeABAP(inv *inventory, c *collector) {
	if inv.abap {
		c.add(LangABAP, "")
	}
}

// probeExtensions is the last resort: bare-language candidates ranked
// by how many source files carry each language's extensions.
func probeExtensions(inv *inventory, c *collector) {
	type langCount struct {
		lang  string
		count int
	}
	var counts []langCount
	for lang, n := range inv.extCount {
		counts = append(counts, langCount{lang, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].lang < counts[j].lang
	})
	for _, lc := range counts {
		c.add(lc.lang, "")
	}
}
