// Package validation implements the per-field rule sets applied to
// incoming submissions. Validators run independently and every failure
// is aggregated, so the caller sees all problems in one round trip.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"intake/internal/models"
	"intake/internal/sanitize"
)

// Field length bounds, counted in runes after sanitization.
const (
	themeMinLen   = 5
	themeMaxLen   = 200
	companyMaxLen = 150
	personMinLen  = 2
	personMaxLen  = 100
	messageMinLen = 10
	messageMaxLen = 2000

	// maxRepeatRun is the longest permitted run of a single repeated
	// character in a message; 11 or more is a spam signal.
	maxRepeatRun = 10
)

var personRegex = regexp.MustCompile(`^[A-Za-zА-Яа-яЁё\s\-.]+$`)

// Input is the raw field set of a submission before validation.
type Input struct {
	Actor   string
	Theme   string
	Email   string
	Company string
	Person  string
	Message string
}

// Clean is the accepted, transformed field set produced by Validate.
type Clean struct {
	Actor   models.Actor
	Theme   string
	Email   string
	Company string
	Person  string
	Message string
}

// Validator applies the field rule sets using configurable abuse lists.
type Validator struct {
	spamWords         []string
	disposableDomains map[string]struct{}
}

// New returns a Validator using the given spam-word and
// disposable-domain lists. Matching is case-insensitive.
func New(spamWords, disposableDomains []string) *Validator {
	v := &Validator{
		spamWords:         make([]string, 0, len(spamWords)),
		disposableDomains: make(map[string]struct{}, len(disposableDomains)),
	}
	for _, w := range spamWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			v.spamWords = append(v.spamWords, w)
		}
	}
	for _, d := range disposableDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			v.disposableDomains[d] = struct{}{}
		}
	}
	return v
}

// Validate runs every field validator and aggregates all failures into
// the report, keyed by field name. The returned Clean values are only
// meaningful when the report is empty.
func (v *Validator) Validate(in Input) (Clean, models.ValidationReport) {
	report := models.ValidationReport{}
	clean := Clean{}

	clean.Actor = v.validateActor(in.Actor, report)
	clean.Theme = v.validateTheme(in.Theme, report)
	clean.Email = v.validateEmail(in.Email, report)
	clean.Company = v.validateCompany(in.Company, report)
	clean.Person = v.validatePerson(in.Person, report)
	clean.Message = v.validateMessage(in.Message, report)

	return clean, report
}

func (v *Validator) validateActor(value string, report models.ValidationReport) models.Actor {
	actor := models.Actor(strings.TrimSpace(value))
	if !actor.Valid() {
		report.Add("actor", "must be one of: advertiser, author, question")
		return ""
	}
	return actor
}

func (v *Validator) validateTheme(value string, report models.ValidationReport) string {
	clean := sanitize.Strict(value)
	if n := utf8.RuneCountInString(clean); n < themeMinLen || n > themeMaxLen {
		report.Add("theme", "must be between 5 and 200 characters")
		return clean
	}
	if v.containsSpam(clean) {
		report.Add("theme", "contains prohibited words")
	}
	return clean
}

func (v *Validator) validateEmail(value string, report models.ValidationReport) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	if clean == "" {
		report.Add("email", "is required")
		return ""
	}
	addr, err := mail.ParseAddress(clean)
	if err != nil || addr.Address != clean {
		report.Add("email", "must be a valid email address")
		return clean
	}
	at := strings.LastIndex(clean, "@")
	domain := clean[at+1:]
	if _, blocked := v.disposableDomains[domain]; blocked {
		report.Add("email", "disposable email addresses are not allowed")
	}
	return clean
}

func (v *Validator) validateCompany(value string, report models.ValidationReport) string {
	// Optional field: absent input passes through unchanged.
	if value == "" {
		return ""
	}
	clean := sanitize.Strict(value)
	if utf8.RuneCountInString(clean) > companyMaxLen {
		report.Add("company", "must not exceed 150 characters")
	}
	return clean
}

func (v *Validator) validatePerson(value string, report models.ValidationReport) string {
	clean := sanitize.Strict(value)
	if n := utf8.RuneCountInString(clean); n < personMinLen || n > personMaxLen {
		report.Add("person", "must be between 2 and 100 characters")
		return clean
	}
	if !personRegex.MatchString(clean) {
		report.Add("person", "may only contain letters, whitespace, hyphens and periods")
	}
	return clean
}

func (v *Validator) validateMessage(value string, report models.ValidationReport) string {
	clean := sanitize.Message(value)
	if n := utf8.RuneCountInString(clean); n < messageMinLen || n > messageMaxLen {
		report.Add("message", "must be between 10 and 2000 characters")
		return clean
	}
	if v.containsSpam(clean) {
		report.Add("message", "contains prohibited words")
	}
	if hasRepeatRun(clean, maxRepeatRun) {
		report.Add("message", "contains too many repeated characters")
	}
	return clean
}

func (v *Validator) containsSpam(s string) bool {
	lowered := strings.ToLower(s)
	for _, w := range v.spamWords {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}

// hasRepeatRun reports whether s contains a run of more than max
// consecutive identical runes.
func hasRepeatRun(s string, max int) bool {
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
			if run >= max {
				return true
			}
		} else {
			prev = r
			run = 0
		}
	}
	return false
}
