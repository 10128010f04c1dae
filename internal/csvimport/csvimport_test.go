package csvimport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/db"
	"clubhub/internal/models"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testDirectory() Directory {
	dob := time.Date(2012, 4, 3, 0, 0, 0, 0, time.UTC)
	return Directory{
		GroupsByName:    map[string]int64{"juniors": 1, "race team": 2},
		Riders:          map[string]bool{RiderKey("Existing", "Rider", &dob): true},
		ProfilesByEmail: map[string]int64{"parent@example.org": 9},
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"First Name":     ColFirstName,
		"\ufeffFirstName": ColFirstName,
		"Surname":        ColLastName,
		"DOB":            ColDateOfBirth,
		"date-of-birth":  ColDateOfBirth,
		"Group Name":     ColGroup,
		" Email ":        ColParentEmail,
		"shoe_size":      "shoe_size",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestParse_ValidationRules(t *testing.T) {
	input := strings.Join([]string{
		"First Name,Surname,DOB,Group,Parent Email,Parent Name,Shoe Size",
		"Ava,Hill,2014-02-10,Juniors,parent@example.org,Pat Hill,4",
		"ben,carter,3/9/2013,RACE TEAM,new.parent@example.org,,5",
		",NoFirst,,,,,",
		"Cara,Doe,2014-13-40,,,,",
		"Dan,Eve,2030-01-01,,,,",
		"Eli,Fox,,Seniors,,,",
		"Fay,Gee,,,not-an-email,,",
		",,,,,,",
		"AVA,HILL,2014-02-10,Juniors,,,",
		"Existing,Rider,2012-04-03,,,,",
	}, "\n")

	preview, err := Parse(strings.NewReader(input), testDirectory(), now)
	require.NoError(t, err)

	assert.Equal(t, []string{`unknown column "Shoe Size" ignored`}, preview.Warnings)
	require.Len(t, preview.Rows, 9, "blank row must be skipped")

	byLine := map[int]Row{}
	for _, r := range preview.Rows {
		byLine[r.Line] = r
	}

	ava := byLine[2]
	assert.Equal(t, RowValid, ava.Status)
	require.NotNil(t, ava.GroupID)
	assert.Equal(t, int64(1), *ava.GroupID)
	require.NotNil(t, ava.ParentProfileID)
	assert.Equal(t, int64(9), *ava.ParentProfileID)
	assert.Empty(t, ava.Warnings)

	ben := byLine[3]
	assert.Equal(t, RowValid, ben.Status)
	assert.Equal(t, "2013-09-03", ben.DateOfBirth)
	assert.Equal(t, int64(2), *ben.GroupID)
	assert.Len(t, ben.Warnings, 1)

	assert.Contains(t, byLine[4].Errors, "first name is required")
	assert.Contains(t, byLine[5].Errors[0], "invalid date of birth")
	assert.Contains(t, byLine[6].Errors, "date of birth is in the future")
	assert.Contains(t, byLine[7].Errors, `unknown group "Seniors"`)
	assert.Contains(t, byLine[8].Errors[0], "invalid parent email")
	assert.Contains(t, byLine[10].Errors, "duplicate of line 2")
	assert.Contains(t, byLine[11].Errors, "rider already exists")

	assert.Equal(t, Summary{Total: 9, Valid: 2, Invalid: 7, WithWarnings: 1}, preview.Summary)
	assert.Len(t, preview.ValidRows(), 2)
}

func TestParse_FileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{name: "empty", input: "", err: ErrEmptyFile},
		{name: "missing last name", input: "first_name,group\nA,B\n", err: ErrMissingColumn},
		{name: "bad quoting", input: "first_name,last_name\n\"Ava,Hill\n", err: ErrMalformed},
		{name: "too many rows", input: "first_name,last_name\n" + strings.Repeat("A,B\n", MaxRows+1), err: ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), testDirectory(), now)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParse_NoteLengthCountsCharacters(t *testing.T) {
	tests := []struct {
		name      string
		notes     string
		wantNotes string
		truncated bool
	}{
		{name: "short multibyte note kept", notes: strings.Repeat("é", 300), wantNotes: strings.Repeat("é", 300)},
		{name: "exactly at the limit", notes: strings.Repeat("é", MaxNoteSize), wantNotes: strings.Repeat("é", MaxNoteSize)},
		{name: "multibyte note over the limit", notes: strings.Repeat("é", MaxNoteSize+20), wantNotes: strings.Repeat("é", MaxNoteSize), truncated: true},
		{name: "ascii note over the limit", notes: strings.Repeat("a", MaxNoteSize+1), wantNotes: strings.Repeat("a", MaxNoteSize), truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "first_name,last_name,notes\nAva,Hill," + tt.notes + "\n"

			preview, err := Parse(strings.NewReader(input), testDirectory(), now)
			require.NoError(t, err)
			require.Len(t, preview.Rows, 1)

			row := preview.Rows[0]
			assert.Equal(t, RowValid, row.Status)
			assert.Equal(t, tt.wantNotes, row.Notes)
			if tt.truncated {
				assert.Equal(t, []string{"notes truncated to 500 characters"}, row.Warnings)
			} else {
				assert.Empty(t, row.Warnings)
			}
		})
	}
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	gdb := db.NewTestDB(t)

	group := models.Group{Name: "Juniors"}
	require.NoError(t, gdb.Create(&group).Error)
	parent := models.Profile{Email: "parent@example.org", CalendarToken: "cal-1", Status: models.ProfileActive}
	require.NoError(t, gdb.Create(&parent).Error)

	dir, err := LoadDirectory(ctx, gdb)
	require.NoError(t, err)
	assert.Equal(t, group.ID, dir.GroupsByName["juniors"])

	input := strings.Join([]string{
		"first_name,last_name,date_of_birth,group,parent_email",
		"Ava,Hill,2014-02-10,juniors,parent@example.org",
		"Ben,Carter,,,later@example.org",
		"Bad,Row,,Nope,",
	}, "\n")
	preview, err := Parse(strings.NewReader(input), dir, now)
	require.NoError(t, err)

	_, err = Commit(ctx, gdb, preview, true)
	require.ErrorIs(t, err, ErrRejected)

	res, err := Commit(ctx, gdb, preview, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.ParentLinks)
	assert.Equal(t, 1, res.PendingLinks)

	var reloaded models.Profile
	require.NoError(t, gdb.First(&reloaded, parent.ID).Error)
	assert.True(t, reloaded.IsParent)

	// Re-validating the same file now flags the imported riders as existing.
	dir, err = LoadDirectory(ctx, gdb)
	require.NoError(t, err)
	again, err := Parse(strings.NewReader(input), dir, now)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Summary.Valid)

	later := models.Profile{Email: "later@example.org", CalendarToken: "cal-2", Status: models.ProfileActive}
	require.NoError(t, gdb.Create(&later).Error)
	linked, err := ResolvePendingParents(ctx, gdb, &later)
	require.NoError(t, err)
	assert.Equal(t, 1, linked)

	var pending int64
	require.NoError(t, gdb.Model(&models.PendingParentLink{}).Count(&pending).Error)
	assert.Zero(t, pending)
}
