package bagbuilder

import "fmt"

// Relation describes one many-to-many relation of events. Rows of Table link
// uid_local (the event) to uid_foreign (a row of ForeignTable).
type Relation struct {
	Name         string
	Table        string
	ForeignTable string
	// TopicLevel relations hang off the topic; dates inherit them.
	TopicLevel bool
}

var (
	Categories    = Relation{Name: "categories", Table: "events_categories_mm", ForeignTable: "categories", TopicLevel: true}
	Places        = Relation{Name: "places", Table: "events_places_mm", ForeignTable: "places"}
	Speakers      = Relation{Name: "speakers", Table: "events_speakers_mm", ForeignTable: "speakers"}
	Partners      = Relation{Name: "partners", Table: "events_partners_mm", ForeignTable: "speakers"}
	Tutors        = Relation{Name: "tutors", Table: "events_tutors_mm", ForeignTable: "speakers"}
	Leaders       = Relation{Name: "leaders", Table: "events_leaders_mm", ForeignTable: "speakers"}
	Organizers    = Relation{Name: "organizers", Table: "events_organizers_mm", ForeignTable: "organizers", TopicLevel: true}
	TargetGroups  = Relation{Name: "target_groups", Table: "events_target_groups_mm", ForeignTable: "target_groups", TopicLevel: true}
	Requirements  = Relation{Name: "requirements", Table: "events_requirements_mm", ForeignTable: eventTable, TopicLevel: true}
	EventManagers = Relation{Name: "managers", Table: "events_managers_mm", ForeignTable: "fe_users"}
)

// SpeakerRoles lists the relations linking dates to speakers.
var SpeakerRoles = []Relation{Speakers, Partners, Tutors, Leaders}

// LookupRelation finds a relation by name.
func LookupRelation(name string) (Relation, bool) {
	for _, r := range []Relation{Categories, Places, Speakers, Partners, Tutors, Leaders, Organizers, TargetGroups, Requirements, EventManagers} {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

func (r Relation) expand(alias string, p func(subject string) string) string {
	if r.TopicLevel {
		return ExpandTopicPredicate(alias, p)
	}
	return p(alias + ".uid")
}

// Membership renders "alias is linked to one of the uids in @arg".
func (r Relation) Membership(alias, arg string) string {
	return r.expand(alias, func(subject string) string {
		return fmt.Sprintf("%s IN (SELECT mm.uid_local FROM %s mm WHERE mm.uid_foreign = ANY(@%s))",
			subject, r.Table, arg)
	})
}

// Matching renders "alias is linked to a foreign row f satisfying cond".
func (r Relation) Matching(alias, cond string) string {
	return r.expand(alias, func(subject string) string {
		return fmt.Sprintf("%s IN (SELECT mm.uid_local FROM %s mm JOIN %s f ON f.uid = mm.uid_foreign WHERE %s)",
			subject, r.Table, r.ForeignTable, cond)
	})
}

// Unlinked renders "alias has no row in this relation".
func (r Relation) Unlinked(alias string) string {
	return r.expand(alias, func(subject string) string {
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s mm WHERE mm.uid_local = %s)", r.Table, subject)
	})
}
