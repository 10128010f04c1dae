// Package dashboard aggregates an event's RSVPs by rider group and computes
// rider-to-coach ratios.
package dashboard

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"clubhub/internal/models"
)

const UnassignedGroupName = "Unassigned"

// Input is everything Build needs, already fetched from storage.
type Input struct {
	Event  models.Event
	Groups []models.Group
	// Riders must contain every active rider in scope plus every rider with an RSVP.
	Riders []models.Rider
	RSVPs  []models.RSVP
	// Coaches are the profiles behind self RSVPs.
	Coaches []models.Profile
	// CoachGroups maps a coach profile id to the groups they coach.
	CoachGroups map[int64][]int64
	TargetRatio float64
	Now         time.Time
}

type RiderEntry struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Note      string `json:"note,omitempty"`
}

type CoachEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

type Counts struct {
	Going      int `json:"going"`
	Maybe      int `json:"maybe"`
	NotGoing   int `json:"not_going"`
	NoResponse int `json:"no_response"`
	Coaches    int `json:"coaches_going"`
}

type Bucket struct {
	GroupID      *int64       `json:"group_id"`
	GroupName    string       `json:"group_name"`
	Color        string       `json:"color,omitempty"`
	Going        []RiderEntry `json:"going"`
	Maybe        []RiderEntry `json:"maybe"`
	NotGoing     []RiderEntry `json:"not_going"`
	NoResponse   []RiderEntry `json:"no_response"`
	Coaches      []CoachEntry `json:"coaches_going"`
	Counts       Counts       `json:"counts"`
	Ratio        *float64     `json:"ratio"`
	RatioLabel   string       `json:"ratio_label"`
	NeedsCoach   bool         `json:"needs_coach"`
	Understaffed bool         `json:"understaffed"`

	sortOrder int
}

type EventSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Cancelled bool      `json:"cancelled"`
	GroupIDs  []int64   `json:"group_ids"`
}

type Dashboard struct {
	Event             EventSummary `json:"event"`
	Totals            Counts       `json:"totals"`
	Groups            []Bucket     `json:"groups"`
	UnassignedCoaches []CoachEntry `json:"unassigned_coaches"`
	TargetRatio       float64      `json:"target_ratio"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

// Build produces the dashboard in a single pass over riders and RSVPs.
func Build(in Input) *Dashboard {
	d := &Dashboard{
		Event: EventSummary{
			ID:        in.Event.ID,
			Title:     in.Event.Title,
			StartsAt:  in.Event.StartsAt,
			EndsAt:    in.Event.EndsAt,
			Cancelled: in.Event.Cancelled,
			GroupIDs:  in.Event.GroupIDs,
		},
		Groups:            []Bucket{},
		UnassignedCoaches: []CoachEntry{},
		TargetRatio:       in.TargetRatio,
		GeneratedAt:       in.Now,
	}

	groupsByID := make(map[int64]models.Group, len(in.Groups))
	for _, g := range in.Groups {
		groupsByID[g.ID] = g
	}

	buckets := map[int64]*Bucket{}
	const unassignedKey = int64(-1)
	bucketFor := func(groupID *int64) *Bucket {
		key := unassignedKey
		if groupID != nil {
			key = *groupID
		}
		if b, ok := buckets[key]; ok {
			return b
		}
		b := &Bucket{GroupName: UnassignedGroupName, sortOrder: math.MaxInt}
		if groupID != nil {
			id := *groupID
			b.GroupID = &id
			if g, ok := groupsByID[id]; ok {
				b.GroupName = g.Name
				b.Color = g.Color
				b.sortOrder = g.SortOrder
			}
		}
		buckets[key] = b
		return b
	}

	scoped := len(in.Event.GroupIDs) > 0
	inScope := make(map[int64]bool, len(in.Event.GroupIDs))
	for _, id := range in.Event.GroupIDs {
		inScope[id] = true
		id := id
		bucketFor(&id)
	}
	if !scoped {
		// Every group is in scope for an ungrouped event, riders or not.
		for _, g := range in.Groups {
			id := g.ID
			bucketFor(&id)
		}
	}

	riderRSVP := map[int64]models.RSVP{}
	coachRSVP := map[int64]models.RSVP{}
	for _, r := range in.RSVPs {
		switch {
		case r.RiderID != nil:
			riderRSVP[*r.RiderID] = r
		case r.ProfileID != nil:
			coachRSVP[*r.ProfileID] = r
		}
	}

	for _, rider := range in.Riders {
		rsvp, responded := riderRSVP[rider.ID]
		eligible := rider.Active && (!scoped || (rider.GroupID != nil && inScope[*rider.GroupID]))
		if !eligible && !responded {
			continue
		}

		b := bucketFor(rider.GroupID)
		entry := RiderEntry{ID: rider.ID, FirstName: rider.FirstName, LastName: rider.LastName}
		if !responded {
			b.NoResponse = append(b.NoResponse, entry)
			continue
		}
		entry.Note = rsvp.Note
		switch rsvp.Status {
		case models.RSVPGoing:
			b.Going = append(b.Going, entry)
		case models.RSVPMaybe:
			b.Maybe = append(b.Maybe, entry)
		case models.RSVPNotGoing:
			b.NotGoing = append(b.NotGoing, entry)
		}
	}

	coachesByID := make(map[int64]models.Profile, len(in.Coaches))
	for _, c := range in.Coaches {
		coachesByID[c.ID] = c
	}
	for profileID, rsvp := range coachRSVP {
		if rsvp.Status != models.RSVPGoing {
			continue
		}
		p := coachesByID[profileID]
		entry := CoachEntry{ID: profileID, Name: displayName(p), Note: rsvp.Note}
		d.Totals.Coaches++

		placed := false
		for _, gid := range in.CoachGroups[profileID] {
			if b, ok := buckets[gid]; ok {
				b.Coaches = append(b.Coaches, entry)
				placed = true
			}
		}
		if !placed {
			d.UnassignedCoaches = append(d.UnassignedCoaches, entry)
		}
	}

	for _, b := range buckets {
		finish(b, in.TargetRatio)
		d.Totals.Going += b.Counts.Going
		d.Totals.Maybe += b.Counts.Maybe
		d.Totals.NotGoing += b.Counts.NotGoing
		d.Totals.NoResponse += b.Counts.NoResponse
		d.Groups = append(d.Groups, *b)
	}

	sort.Slice(d.Groups, func(i, j int) bool {
		a, b := d.Groups[i], d.Groups[j]
		if a.sortOrder != b.sortOrder {
			return a.sortOrder < b.sortOrder
		}
		return strings.ToLower(a.GroupName) < strings.ToLower(b.GroupName)
	})
	sort.Slice(d.UnassignedCoaches, func(i, j int) bool {
		return d.UnassignedCoaches[i].Name < d.UnassignedCoaches[j].Name
	})
	return d
}

func finish(b *Bucket, target float64) {
	for _, list := range []*[]RiderEntry{&b.Going, &b.Maybe, &b.NotGoing, &b.NoResponse} {
		if *list == nil {
			*list = []RiderEntry{}
		}
		sortRiders(*list)
	}
	if b.Coaches == nil {
		b.Coaches = []CoachEntry{}
	}
	sort.Slice(b.Coaches, func(i, j int) bool { return b.Coaches[i].Name < b.Coaches[j].Name })

	b.Counts = Counts{
		Going:      len(b.Going),
		Maybe:      len(b.Maybe),
		NotGoing:   len(b.NotGoing),
		NoResponse: len(b.NoResponse),
		Coaches:    len(b.Coaches),
	}

	b.NeedsCoach = b.Counts.Going > 0 && b.Counts.Coaches == 0
	if b.Counts.Coaches > 0 {
		r := float64(b.Counts.Going) / float64(b.Counts.Coaches)
		b.Ratio = &r
		b.RatioLabel = RatioLabel(r)
		b.Understaffed = target > 0 && r > target
	}
}

// RatioLabel renders a riders-per-coach ratio like "6:1" or "4.5:1".
func RatioLabel(r float64) string {
	return strconv.FormatFloat(math.Round(r*10)/10, 'f', -1, 64) + ":1"
}

func sortRiders(list []RiderEntry) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		al, bl := strings.ToLower(a.LastName), strings.ToLower(b.LastName)
		if al != bl {
			return al < bl
		}
		af, bf := strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)
		if af != bf {
			return af < bf
		}
		return a.ID < b.ID
	})
}

func displayName(p models.Profile) string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
