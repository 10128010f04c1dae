// Package csvimport validates rider roster CSV files and imports the valid rows.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	MaxRows     = 1000
	MaxNoteSize = 500
)

// Canonical column names.
const (
	ColFirstName   = "first_name"
	ColLastName    = "last_name"
	ColDateOfBirth = "date_of_birth"
	ColGroup       = "group"
	ColParentEmail = "parent_email"
	ColParentName  = "parent_name"
	ColNotes       = "notes"
)

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrMissingColumn = errors.New("missing required column")
	ErrTooManyRows   = fmt.Errorf("file has more than %d rows", MaxRows)
	ErrMalformed     = errors.New("malformed csv")
)

var aliases = map[string]string{
	"first":         ColFirstName,
	"firstname":     ColFirstName,
	"given_name":    ColFirstName,
	"last":          ColLastName,
	"lastname":      ColLastName,
	"surname":       ColLastName,
	"family_name":   ColLastName,
	"dob":           ColDateOfBirth,
	"birthdate":     ColDateOfBirth,
	"birth_date":    ColDateOfBirth,
	"group_name":    ColGroup,
	"parent":        ColParentEmail,
	"email":         ColParentEmail,
	"parent_e_mail": ColParentEmail,
	"guardian":      ColParentName,
	"note":          ColNotes,
}

var known = map[string]bool{
	ColFirstName: true, ColLastName: true, ColDateOfBirth: true, ColGroup: true,
	ColParentEmail: true, ColParentName: true, ColNotes: true,
}

var dateLayouts = []string{"2006-01-02", "2/1/2006"}

type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowInvalid RowStatus = "invalid"
)

// Directory is the existing roster data rows are validated against.
type Directory struct {
	// GroupsByName maps lower-cased group names to ids.
	GroupsByName map[string]int64
	// Riders holds the keys of riders already on the roster.
	Riders map[string]bool
	// ProfilesByEmail maps lower-cased emails to profile ids.
	ProfilesByEmail map[string]int64
}

type Row struct {
	Line            int       `json:"line"`
	Status          RowStatus `json:"status"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	DateOfBirth     string    `json:"date_of_birth,omitempty"`
	Group           string    `json:"group,omitempty"`
	GroupID         *int64    `json:"group_id,omitempty"`
	ParentEmail     string    `json:"parent_email,omitempty"`
	ParentName      string    `json:"parent_name,omitempty"`
	ParentProfileID *int64    `json:"parent_profile_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Errors          []string  `json:"errors"`
	Warnings        []string  `json:"warnings"`

	dob *time.Time
}

// DOB returns the parsed date of birth, if any.
func (r *Row) DOB() *time.Time { return r.dob }

type Summary struct {
	Total        int `json:"total"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	WithWarnings int `json:"with_warnings"`
}

type Preview struct {
	Rows     []Row    `json:"rows"`
	Warnings []string `json:"warnings"`
	Summary  Summary  `json:"summary"`
}

// ValidRows returns the rows that can be imported.
func (p *Preview) ValidRows() []Row {
	var out []Row
	for _, r := range p.Rows {
		if r.Status == RowValid {
			out = append(out, r)
		}
	}
	return out
}

// RiderKey identifies a rider for duplicate detection: case-insensitive name plus birth date.
func RiderKey(first, last string, dob *time.Time) string {
	d := ""
	if dob != nil {
		d = dob.Format("2006-01-02")
	}
	return strings.ToLower(strings.TrimSpace(first)) + "|" + strings.ToLower(strings.TrimSpace(last)) + "|" + d
}

// NormalizeHeader maps a raw header cell to its canonical column name.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	if canon, ok := aliases[h]; ok {
		return canon
	}
	return h
}

// Parse reads and validates a roster CSV without writing anything.
func Parse(r io.Reader, dir Directory, now time.Time) (*Preview, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	preview := &Preview{Rows: []Row{}, Warnings: []string{}}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if name == "" {
			continue
		}
		if !known[name] {
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("unknown column %q ignored", strings.TrimSpace(h)))
			continue
		}
		if _, dup := columns[name]; dup {
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("duplicate column %q ignored", strings.TrimSpace(h)))
			continue
		}
		columns[name] = i
	}
	for _, required := range []string{ColFirstName, ColLastName} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	v := &rowValidator{dir: dir, now: now, seen: map[string]int{}, validate: validator.New()}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if blank(record) {
			continue
		}
		if len(preview.Rows) == MaxRows {
			return nil, ErrTooManyRows
		}
		line, _ := reader.FieldPos(0)

		get := func(col string) string {
			i, ok := columns[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := Row{
			Line:        line,
			FirstName:   get(ColFirstName),
			LastName:    get(ColLastName),
			DateOfBirth: get(ColDateOfBirth),
			Group:       get(ColGroup),
			ParentEmail: strings.ToLower(get(ColParentEmail)),
			ParentName:  get(ColParentName),
			Notes:       get(ColNotes),
			Errors:      []string{},
			Warnings:    []string{},
		}
		v.check(&row)
		preview.Rows = append(preview.Rows, row)
	}

	for _, row := range preview.Rows {
		preview.Summary.Total++
		if row.Status == RowValid {
			preview.Summary.Valid++
		} else {
			preview.Summary.Invalid++
		}
		if len(row.Warnings) > 0 {
			preview.Summary.WithWarnings++
		}
	}
	return preview, nil
}

type rowValidator struct {
	dir      Directory
	now      time.Time
	seen     map[string]int
	validate *validator.Validate
}

func (v *rowValidator) check(row *Row) {
	if row.FirstName == "" {
		row.Errors = append(row.Errors, "first name is required")
	}
	if row.LastName == "" {
		row.Errors = append(row.Errors, "last name is required")
	}

	if row.DateOfBirth != "" {
		dob, err := parseDate(row.DateOfBirth)
		switch {
		case err != nil:
			row.Errors = append(row.Errors, fmt.Sprintf("invalid date of birth %q (use YYYY-MM-DD)", row.DateOfBirth))
		case dob.After(v.now):
			row.Errors = append(row.Errors, "date of birth is in the future")
		case dob.Year() < 1900:
			row.Errors = append(row.Errors, "date of birth is before 1900")
		default:
			row.dob = &dob
			row.DateOfBirth = dob.Format("2006-01-02")
		}
	}

	if row.Group != "" {
		if id, ok := v.dir.GroupsByName[strings.ToLower(row.Group)]; ok {
			row.GroupID = &id
		} else {
			row.Errors = append(row.Errors, fmt.Sprintf("unknown group %q", row.Group))
		}
	}

	if row.ParentEmail != "" {
		if err := v.validate.Var(row.ParentEmail, "email"); err != nil {
			row.Errors = append(row.Errors, fmt.Sprintf("invalid parent email %q", row.ParentEmail))
		} else if id, ok := v.dir.ProfilesByEmail[row.ParentEmail]; ok {
			row.ParentProfileID = &id
		} else {
			row.Warnings = append(row.Warnings, "no account for parent email; link will be made when they accept an invite")
		}
	}

	if utf8.RuneCountInString(row.Notes) > MaxNoteSize {
		row.Notes = truncateRunes(row.Notes, MaxNoteSize)
		row.Warnings = append(row.Warnings, fmt.Sprintf("notes truncated to %d characters", MaxNoteSize))
	}

	if row.FirstName != "" && row.LastName != "" {
		key := RiderKey(row.FirstName, row.LastName, row.dob)
		if first, dup := v.seen[key]; dup {
			row.Errors = append(row.Errors, fmt.Sprintf("duplicate of line %d", first))
		} else {
			v.seen[key] = row.Line
			if v.dir.Riders[key] {
				row.Errors = append(row.Errors, "rider already exists")
			}
		}
	}

	row.Status = RowValid
	if len(row.Errors) > 0 {
		row.Status = RowInvalid
	}
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// truncateRunes keeps the first n characters of s.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
