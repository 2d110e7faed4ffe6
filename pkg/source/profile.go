package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Document fields a DocumentRule can fill.
const (
	FieldAgenda                = "agenda"
	FieldProvisionalTranscript = "provisional_transcript"
	FieldFinalTranscript       = "final_transcript"
	FieldAttachment            = "attachment"
)

// DocumentRule maps links to a document field. A link matches when its href
// contains any of HrefContains or its text contains any of TextContains
// (case-insensitive).
type DocumentRule struct {
	Field        string   `yaml:"field"`
	HrefContains []string `yaml:"href_contains"`
	TextContains []string `yaml:"text_contains"`
}

func (r DocumentRule) matches(href, text string) bool {
	href = strings.ToLower(href)
	text = strings.ToLower(text)
	for _, s := range r.HrefContains {
		if s != "" && strings.Contains(href, strings.ToLower(s)) {
			return true
		}
	}
	for _, s := range r.TextContains {
		if s != "" && strings.Contains(text, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Profile tells HTMLSource where a site keeps each session field. Patterns are
// regular expressions whose first group is the value.
type Profile struct {
	SessionNumberPattern string         `yaml:"session_number_pattern"`
	SessionDatePattern   string         `yaml:"session_date_pattern"`
	DocumentRules        []DocumentRule `yaml:"document_rules"`
	VideoSelector        string         `yaml:"video_selector"`
	VideoURLAttr         string         `yaml:"video_url_attr"`
	VideoIDPattern       string         `yaml:"video_id_pattern"`
	// StreamURLAttr names the attribute holding a playable URL, if the site
	// exposes one.
	StreamURLAttr string `yaml:"stream_url_attr"`
	// TimePattern captures hours and minutes in two groups.
	TimePattern         string `yaml:"time_pattern"`
	DateHeadingSelector string `yaml:"date_heading_selector"`
	NextLinkSelector    string `yaml:"next_link_selector"`
}

// DefaultProfile matches the session pages of the Sicilian Regional Assembly.
func DefaultProfile() Profile {
	return Profile{
		SessionNumberPattern: `Seduta n\.\s*(\d+/?\w*)`,
		SessionDatePattern:   `(?i)DEL\s+(\d{1,2}\s+\pL+\s+\d{4})`,
		DocumentRules: []DocumentRule{
			{Field: FieldAgenda, HrefContains: []string{"ODG"}},
			{Field: FieldFinalTranscript, TextContains: []string{"definitivo"}},
			{Field: FieldProvisionalTranscript, HrefContains: []string{"ResSteno"}, TextContains: []string{"Resoconto"}},
			{Field: FieldAttachment, TextContains: []string{"Allegat"}},
		},
		VideoSelector:       "div.video_box[data-src]",
		VideoURLAttr:        "data-src",
		VideoIDPattern:      `/video/(\d+)`,
		TimePattern:         `(\d{1,2}):(\d{2})`,
		DateHeadingSelector: "h4",
		NextLinkSelector:    "div.next_link a[href]",
	}
}

type compiledProfile struct {
	Profile
	number  *regexp.Regexp
	date    *regexp.Regexp
	videoID *regexp.Regexp
	clock   *regexp.Regexp
}

// Validate reports whether every pattern and selector in the profile compiles.
func (p Profile) Validate() error {
	_, err := p.compile()
	return err
}

func (p Profile) compile() (*compiledProfile, error) {
	c := &compiledProfile{Profile: p}
	var err error
	if c.number, err = compilePattern("session_number_pattern", p.SessionNumberPattern, 1); err != nil {
		return nil, err
	}
	if c.date, err = compilePattern("session_date_pattern", p.SessionDatePattern, 1); err != nil {
		return nil, err
	}
	if c.videoID, err = compilePattern("video_id_pattern", p.VideoIDPattern, 1); err != nil {
		return nil, err
	}
	if c.clock, err = compilePattern("time_pattern", p.TimePattern, 2); err != nil {
		return nil, err
	}
	for name, sel := range map[string]string{
		"video_selector":        p.VideoSelector,
		"date_heading_selector": p.DateHeadingSelector,
		"next_link_selector":    p.NextLinkSelector,
	} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return nil, fmt.Errorf("%s %q: %w", name, sel, err)
		}
	}
	if p.VideoSelector == "" || p.VideoURLAttr == "" {
		return nil, fmt.Errorf("video_selector and video_url_attr are required")
	}
	for _, r := range p.DocumentRules {
		switch r.Field {
		case FieldAgenda, FieldProvisionalTranscript, FieldFinalTranscript, FieldAttachment:
		default:
			return nil, fmt.Errorf("document rule: unknown field %q", r.Field)
		}
	}
	return c, nil
}

func compilePattern(name, pattern string, groups int) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if re.NumSubexp() < groups {
		return nil, fmt.Errorf("%s: needs %d capture group(s)", name, groups)
	}
	return re, nil
}
