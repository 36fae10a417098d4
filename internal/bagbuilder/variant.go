// Package bagbuilder composes the selection predicates for events,
// registrations and categories. Each builder keeps one fragment per filter
// name, so calling a setter again replaces its earlier restriction.
package bagbuilder

import (
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/model"
)

const (
	eventTable = "events"
	eventAlias = "e"
)

// TopicUIDExpr yields, for each row of alias, the uid of the record holding
// its topic-level attributes: the topic for dates, the row itself otherwise.
func TopicUIDExpr(alias string) string {
	return fmt.Sprintf("CASE WHEN %[1]s.object_type = %[2]d THEN %[1]s.topic ELSE %[1]s.uid END",
		alias, model.VariantDate)
}

// ExpandTopicPredicate renders p once against the row's own uid for topics and
// singles and once against the topic uid for dates, so a filter on topic-level
// data matches a date whenever it matches the date's topic.
func ExpandTopicPredicate(alias string, p func(subject string) string) string {
	return fmt.Sprintf("(%[1]s.object_type <> %[2]d AND %[3]s) OR (%[1]s.object_type = %[2]d AND %[4]s AND %[5]s)",
		alias, model.VariantDate, p(alias+".uid"), isTopicRef(alias), p(alias+".topic"))
}

// isTopicRef holds when the topic reference of alias points at a topic.
func isTopicRef(alias string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s tr WHERE tr.uid = %s.topic AND tr.object_type = %d)",
		eventTable, alias, model.VariantTopic)
}

// topicColumns renders cond against the topic-level columns of alias. cond
// receives the alias of the events row whose columns it should read. A date
// only delegates to a record that is a topic.
func topicColumns(alias string, cond func(topic string) string) string {
	return fmt.Sprintf("(%[1]s.object_type <> %[2]d AND (%[3]s)) OR (%[1]s.object_type = %[2]d AND %[1]s.topic IN (SELECT t.uid FROM %[4]s t WHERE t.object_type = %[5]d AND (%[6]s)))",
		alias, model.VariantDate, cond(alias), eventTable, model.VariantTopic, cond("t"))
}

// variantClause restricts alias to topic records or to date and single records.
func variantClause(alias string, topicsOnly bool) string {
	if topicsOnly {
		return fmt.Sprintf("%s.object_type = %d", alias, model.VariantTopic)
	}
	return fmt.Sprintf("%s.object_type <> %d", alias, model.VariantTopic)
}

// RequireRequirementNode fails unless e can take part in the requirement
// relation: topics directly, dates through their topic.
func RequireRequirementNode(e *model.Event) error {
	if e == nil {
		return model.InvalidArgument("event must not be nil")
	}
	switch e.Variant {
	case model.VariantTopic:
		return model.RequirePositive("topic uid", e.ID)
	case model.VariantDate:
		return model.RequirePositive("topic uid of date", e.TopicID)
	default:
		return fmt.Errorf("%w: event %d is a %s, requirements exist only between topics",
			model.ErrInvalidVariant, e.ID, e.Variant)
	}
}

// IsRequirementEligible reports whether e may appear as a node of the
// requirement relation.
func IsRequirementEligible(e *model.Event) bool {
	return e != nil && e.IsTopic()
}
