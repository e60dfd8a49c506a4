package schema

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// abapStrategy reads DDL table definitions and classic BEGIN OF
// structure declarations. ABAP is case-insensitive, so every pattern
// matches that way.
type abapStrategy struct{}

func (abapStrategy) name() string { return "abap-ddl" }
func (abapStrategy) extensions() []string {
	return []string{".abap"}
}
func (abapStrategy) readsContent() bool { return true }

var (
	abapDefineRe  = regexp.MustCompile(`(?i)^define\s+table\s+([\w/]+)`)
	abapFieldRe   = regexp.MustCompile(`(?i)^(key\s+)?(\w+)\s*:\s*([\w.]+(?:\([\d,]+\))?)(.*)$`)
	abapNotNullRe = regexp.MustCompile(`(?i)not\s+null`)
	abapFKRe      = regexp.MustCompile(`(?i)with\s+foreign\s+key\s+(?:\[[^\]]*\]\s*)?([\w/]+)`)
	abapWhereRe   = regexp.MustCompile(`(?i)where\s+(\w+)\s*=\s*[\w/]+\.(\w+)`)
	abapIncludeRe = regexp.MustCompile(`(?i)^include\b`)

	abapBeginRe = regexp.MustCompile(`(?i)\bbegin\s+of\s+(\w+)`)
	abapEndRe   = regexp.MustCompile(`(?i)\bend\s+of\s+(\w+)`)
	abapCompRe  = regexp.MustCompile(`(?i)^(\w+)(?:\(\d+\))?\s+(?:type|like)\s+([\w\->=]+)`)
)

func (abapStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	lit := textutil.RemoveComments(string(content), textutil.FamilyABAP)
	lines := strings.Split(lit, "\n")

	var out fileEntities

	// cur and curStruct hold the open define table and begin of blocks.
	// A foreign key clause can trail its field over several lines, so
	// lastField remembers the owning column and pendingFK the foreign
	// key still waiting for its where condition.
	var cur *Table
	var curStruct *Table
	lastField := ""
	pendingFK := -1

	addFK := func(tail, column, target string) {
		fk := ForeignKey{Column: column, ReferencesTable: strings.ToLower(target), ReferencesColumn: "id"}
		if wm := abapWhereRe.FindStringSubmatch(tail); wm != nil {
			fk.Column = strings.ToLower(wm[1])
			fk.ReferencesColumn = strings.ToLower(wm[2])
			cur.ForeignKeys = append(cur.ForeignKeys, fk)
			return
		}
		cur.ForeignKeys = append(cur.ForeignKeys, fk)
		pendingFK = len(cur.ForeignKeys) - 1
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if cur != nil {
			switch {
			case strings.HasPrefix(line, "}"):
				out.tables = append(out.tables, *cur)
				cur = nil
				lastField = ""
				pendingFK = -1
			case abapIncludeRe.MatchString(line):
				// included structure, fields unresolvable per file
			case abapFKRe.MatchString(line) && lastField != "":
				fm := abapFKRe.FindStringSubmatch(line)
				addFK(line, lastField, fm[1])
			case abapWhereRe.MatchString(line) && pendingFK >= 0:
				wm := abapWhereRe.FindStringSubmatch(line)
				cur.ForeignKeys[pendingFK].Column = strings.ToLower(wm[1])
				cur.ForeignKeys[pendingFK].ReferencesColumn = strings.ToLower(wm[2])
				pendingFK = -1
			case abapFieldRe.MatchString(line):
				m := abapFieldRe.FindStringSubmatch(line)
				col := Column{
					Name:       strings.ToLower(m[2]),
					Type:       strings.ToLower(m[3]),
					PrimaryKey: m[1] != "",
					Nullable:   m[1] == "" && !abapNotNullRe.MatchString(m[4]),
				}
				cur.Columns = append(cur.Columns, col)
				lastField = col.Name
				pendingFK = -1
				if fm := abapFKRe.FindStringSubmatch(m[4]); fm != nil {
					addFK(m[4], col.Name, fm[1])
				}
			}
			continue
		}

		if curStruct != nil {
			switch {
			case abapEndRe.MatchString(line):
				out.tables = append(out.tables, *curStruct)
				curStruct = nil
			case abapCompRe.MatchString(line):
				m := abapCompRe.FindStringSubmatch(line)
				curStruct.Columns = append(curStruct.Columns, Column{
					Name:     strings.ToLower(m[1]),
					Type:     strings.ToLower(m[2]),
					Nullable: true,
				})
			}
			continue
		}

		if m := abapDefineRe.FindStringSubmatch(line); m != nil {
			cur = &Table{Name: strings.ToLower(m[1]), File: f.Rel, Line: lineNo}
			continue
		}
		if m := abapBeginRe.FindStringSubmatch(line); m != nil {
			curStruct = &Table{Name: strings.ToLower(m[1]), File: f.Rel, Line: lineNo}
		}
	}
	if cur != nil {
		out.tables = append(out.tables, *cur)
	}
	if curStruct != nil {
		out.tables = append(out.tables, *curStruct)
	}
	return out, nil
}
