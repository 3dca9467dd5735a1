package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	templateVarRe   = regexp.MustCompile(`\{([^}]+)\}`)
	emptyBracketsRe = regexp.MustCompile(`\s*[\(\[\{]\s*[\)\]\}]`)
	multiSpaceRe    = regexp.MustCompile(`\s+`)
)

// NameVars are the values available to naming templates.
type NameVars struct {
	Title  string
	Year   int
	Season int
}

// RenderName expands {title}, {year} and {season} in tmpl. Unknown variables
// expand to nothing and the result is cleaned, so "{title} ({year})" without a
// year renders as just the title.
func RenderName(tmpl string, vars NameVars) string {
	out := templateVarRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		switch strings.ToLower(strings.TrimSpace(match[1 : len(match)-1])) {
		case "title":
			return vars.Title
		case "year":
			if vars.Year > 0 {
				return strconv.Itoa(vars.Year)
			}
		case "season":
			return fmt.Sprintf("%02d", vars.Season)
		}
		return ""
	})
	return SanitizeName(cleanName(out))
}

// cleanName removes brackets left empty by missing variables and trims
// separators that dangle at either end.
func cleanName(name string) string {
	name = emptyBracketsRe.ReplaceAllString(name, "")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.Trim(name, " -_–—|:")
}
