package media

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/moistari/rls"
)

// Filename parsing utilities.
//
// Parsing is deliberately tolerant: release names arrive in many community
// conventions (dots, underscores, bracketed groups, trailing codec tags) and we
// only need enough structure to query a metadata provider and to decide whether
// the file looks like an episode. Parse never fails; a name that cannot be
// cleaned degrades to a best-effort title.
var (
	// separatorRe turns dotted and underscored release names into words.
	separatorRe = regexp.MustCompile(`[._]+`)

	// seasonEpisodeRe matches S01E02, s1e2, S01 E02 and S01.E02 (after separator
	// folding). Multi-episode files (S01E01E02, S01E01-E02) report the first episode.
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bS(\d{1,2}) ?E(\d{1,3})(?:-?E\d{1,3})*\b`)

	// crossEpisodeRe matches the 1x02 convention.
	crossEpisodeRe = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)

	// seasonOnlyRe matches season tokens without an episode: S02, Season 2, Season-02.
	seasonOnlyRe = regexp.MustCompile(`(?i)\b(?:S(\d{1,2})|Season[ \-]?(\d{1,2}))\b`)

	// yearRe matches every free standing four digit token; plausibility is checked separately.
	yearRe = regexp.MustCompile(`\b(\d{4})\b`)

	// breakpointRe marks where release metadata starts. Everything before the
	// first match is the title. Years are handled apart because only plausible
	// years may cut the title ("Blade Runner 2049" keeps its number).
	breakpointRe = regexp.MustCompile(`(?i)\s(?:` +
		`S\d{1,2} ?E\d{1,3}(?:-?E\d{1,3})*\b` +
		`|\d{1,2}x\d{2,3}\b` +
		`|S\d{1,2}\b` +
		`|Season[ \-]?\d{1,2}\b` +
		`|\d{3,4}p\b` +
		`|(?:WEBRip|BluRay|BDRip|BRRip|DVDRip|HDRip|WEB-?DL|HDTV|WEB)\b` +
		`|(?:x264|x265|H ?26[45]|HEVC|AVC|XviD|DivX)\b` +
		`|(?:PROPER|REPACK|iNTERNAL|LiMiTED|UNRATED|EXTENDED|DiRECTORS CUT|REMASTERED|10bit|HDR10|HDR|UHD|4K)\b` +
		`)`)

	// yearBreakRe finds candidate year positions that may end a title.
	yearBreakRe = regexp.MustCompile(`\s[(\[]?(\d{4})\b`)

	// bracketGroupRe removes [Group] and {tag} blocks.
	bracketGroupRe = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}`)

	// emptyBracketsRe cleans brackets left behind once their content is cut.
	emptyBracketsRe = regexp.MustCompile(`\s*[(\[{<]\s*[)\]}>]`)

	// encodingTagsRe removes codec/source tags for the degraded fallback title.
	encodingTagsRe = regexp.MustCompile(`(?i)\b(?:HDR|x265|x264|H ?26[45]|HEVC|AVC|AAC|AC3|DDP?5 ?1|DTS|FLAC|MP3|WEB-?DL|WEBRip|BluRay|BDRip|DVDRip|HDTV|720p|1080p|2160p|4K|UHD|10bit|8bit|PROPER|REPACK|iNTERNAL|LiMiTED|UNRATED|EXTENDED|RETAIL|NTSC|PAL|UNCUT)\b`)

	// multiSpaceRe collapses runs of whitespace.
	multiSpaceRe = regexp.MustCompile(`\s+`)

	// subtitleRe matches subtitle file extensions (case-insensitive).
	subtitleRe = regexp.MustCompile(`(?i)\.(srt|sub|idx|ass|ssa|smi|vtt|sup)$`)

	// langPattern matches trailing language codes before a subtitle extension: .en, .eng, .en-US.
	langPattern = regexp.MustCompile(`(\.[a-zA-Z]{2,3}(?:[-_][a-zA-Z]{2,4})?)$`)
)

// languageTokens maps release tags that reveal the audio language to an ISO 639-1 code.
var languageTokens = map[string]string{
	"FRENCH":     "fr",
	"TRUEFRENCH": "fr",
	"VFF":        "fr",
	"VFQ":        "fr",
	"VF2":        "fr",
	"GERMAN":     "de",
	"ITALIAN":    "it",
	"SPANISH":    "es",
	"JAPANESE":   "ja",
	"ENGLISH":    "en",
}

// DefaultStripTokens are removed from names before the title is extracted.
var DefaultStripTokens = []string{"FRENCH", "TRUEFRENCH", "VOSTFR", "MULTI", "SUBFRENCH"}

// ParsedTokens is the structured view of a release name.
type ParsedTokens struct {
	Title        string
	Year         int
	Season       int
	Episode      int
	HasEpisode   bool
	Language     string
	SeriesLikely bool
	// Degraded is set when cleaning removed everything and the title is a best-effort fallback.
	Degraded bool
}

// HasYear reports whether a plausible year was found.
func (t ParsedTokens) HasYear() bool {
	return t.Year > 0
}

// Parser extracts ParsedTokens from file and folder names.
type Parser struct {
	stripRe   *regexp.Regexp
	minYear   int
	yearAhead int
	now       func() time.Time
	release   func(string) rls.Release
}

// Option configures a Parser.
type Option func(*Parser)

// WithStripTokens overrides the tokens removed before title extraction.
func WithStripTokens(tokens ...string) Option {
	return func(p *Parser) {
		p.stripRe = compileStripTokens(tokens)
	}
}

// WithYearBounds sets the plausible year window to [minYear, now+ahead].
func WithYearBounds(minYear, ahead int) Option {
	return func(p *Parser) {
		p.minYear = minYear
		p.yearAhead = ahead
	}
}

// WithClock injects the clock used for the upper year bound.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// WithReleaseParser replaces the release-name grammar consulted when the
// season patterns find nothing. nil disables it.
func WithReleaseParser(parse func(string) rls.Release) Option {
	return func(p *Parser) {
		p.release = parse
	}
}

// NewParser builds a Parser with the default strip tokens and a 1900..now+1 year window.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		stripRe:   compileStripTokens(DefaultStripTokens),
		minYear:   1900,
		yearAhead: 1,
		now:       time.Now,
		release:   rls.ParseString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func compileStripTokens(tokens []string) *regexp.Regexp {
	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(tok))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// ParseFile parses a filename, ignoring its extension.
func (p *Parser) ParseFile(filename string) ParsedTokens {
	base := filepath.Base(filename)
	return p.Parse(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Parse extracts tokens from a name without extension (a file stem or a folder name).
func (p *Parser) Parse(name string) ParsedTokens {
	spaced := strings.TrimSpace(separatorRe.ReplaceAllString(name, " "))

	var tokens ParsedTokens
	tokens.Language = detectLanguage(spaced)
	tokens.Year = p.extractYear(spaced)
	p.extractSeasonEpisode(spaced, &tokens)
	if !tokens.SeriesLikely {
		p.releaseEpisode(name, &tokens)
	}

	working := spaced
	if p.stripRe != nil {
		working = p.stripRe.ReplaceAllString(working, " ")
	}

	title := p.cutTitle(working)
	title = bracketGroupRe.ReplaceAllString(title, " ")
	title = emptyBracketsRe.ReplaceAllString(title, " ")
	title = collapse(title)
	title = strings.Trim(title, " -([{")

	if title == "" {
		tokens.Degraded = true
		title = collapse(encodingTagsRe.ReplaceAllString(bracketGroupRe.ReplaceAllString(spaced, " "), " "))
		if title == "" {
			title = collapse(spaced)
		}
	}
	tokens.Title = title

	return tokens
}

// cutTitle returns the text preceding the first breakpoint.
func (p *Parser) cutTitle(s string) string {
	cut := len(s)
	if loc := breakpointRe.FindStringIndex(s); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	for _, m := range yearBreakRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] >= cut {
			break
		}
		year, err := strconv.Atoi(s[m[2]:m[3]])
		if err == nil && p.plausibleYear(year) {
			cut = m[0]
			break
		}
	}
	return s[:cut]
}

func (p *Parser) extractYear(s string) int {
	matches := yearRe.FindAllStringSubmatch(s, -1)
	year := 0
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if p.plausibleYear(n) {
			year = n
		}
	}
	return year
}

func (p *Parser) plausibleYear(year int) bool {
	return year >= p.minYear && year <= p.now().Year()+p.yearAhead
}

func (p *Parser) extractSeasonEpisode(s string, tokens *ParsedTokens) {
	for _, re := range []*regexp.Regexp{seasonEpisodeRe, crossEpisodeRe} {
		if m := re.FindStringSubmatch(s); len(m) == 3 {
			season, err1 := strconv.Atoi(m[1])
			episode, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				tokens.Season = season
				tokens.Episode = episode
				tokens.HasEpisode = true
				tokens.SeriesLikely = true
				return
			}
		}
	}
	if season, ok := firstIntFromRegexps(s, seasonOnlyRe); ok {
		tokens.Season = season
		tokens.SeriesLikely = true
	}
}

// releaseEpisode asks the release grammar about names the season patterns
// missed: daily shows (Show.2024.05.03), season packs and absolute numbering.
func (p *Parser) releaseEpisode(name string, tokens *ParsedTokens) {
	if p.release == nil {
		return
	}
	r := p.release(name)
	if r.Type != rls.Episode && r.Type != rls.Series {
		return
	}
	tokens.SeriesLikely = true
	if r.Series > 0 {
		tokens.Season = r.Series
	}
	if r.Episode > 0 {
		tokens.Episode = r.Episode
		tokens.HasEpisode = true
	}
}

func detectLanguage(s string) string {
	for _, word := range strings.Fields(s) {
		if code, ok := languageTokens[strings.ToUpper(word)]; ok {
			return code
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// firstIntFromRegexps returns the first parsed integer captured by any of the expressions.
func firstIntFromRegexps(input string, regexps ...*regexp.Regexp) (int, bool) {
	for _, re := range regexps {
		m := re.FindStringSubmatch(input)
		if len(m) >= 2 {
			for i := 1; i < len(m); i++ {
				if m[i] == "" {
					continue
				}
				if n, err := strconv.Atoi(m[i]); err == nil {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// IsSubtitle reports whether filename has a recognized subtitle extension.
func IsSubtitle(filename string) bool {
	return subtitleRe.MatchString(filename)
}

// SidecarSuffix returns the part of a sidecar filename that follows the primary
// stem, keeping subtitle language codes: "movie.en.srt" -> ".en.srt".
func SidecarSuffix(filename, primaryStem string) string {
	base := filepath.Base(filename)
	if strings.HasPrefix(base, primaryStem) {
		return base[len(primaryStem):]
	}
	if IsSubtitle(base) {
		loc := subtitleRe.FindStringIndex(base)
		return langPattern.FindString(base[:loc[0]]) + base[loc[0]:]
	}
	return filepath.Ext(base)
}

// Stem returns the filename without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
