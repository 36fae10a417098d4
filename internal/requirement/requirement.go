// Package requirement answers questions about the requirement relation
// between topics: which topics an event requires, which depend on it, and
// which required topics a user has not attended yet.
package requirement

import (
	"context"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
)

// Graph reads the requirement relation through fresh event builders.
type Graph struct {
	newBuilder func() *bagbuilder.EventBuilder
}

// NewGraph constructs a Graph. newBuilder must return an unrestricted
// front-end event builder on each call.
func NewGraph(newBuilder func() *bagbuilder.EventBuilder) *Graph {
	return &Graph{newBuilder: newBuilder}
}

// RequiredTopics returns the topics directly required by e's topic.
func (g *Graph) RequiredTopics(ctx context.Context, e *model.Event) (*bag.Bag[*model.Event], error) {
	eb := g.newBuilder()
	if err := eb.LimitToRequiredEventTopics(e); err != nil {
		return nil, err
	}
	eb.SetOrderBy("e.title ASC, e.uid ASC")
	return eb.Build(ctx), nil
}

// DependingTopics returns the topics that directly require e's topic.
func (g *Graph) DependingTopics(ctx context.Context, e *model.Event) (*bag.Bag[*model.Event], error) {
	eb := g.newBuilder()
	if err := eb.LimitToDependingEventTopics(e); err != nil {
		return nil, err
	}
	eb.SetOrderBy("e.title ASC, e.uid ASC")
	return eb.Build(ctx), nil
}

// MissingRequiredTopics returns the topics required by e's topic on none of
// whose dates the user holds a registration that has not expired.
func (g *Graph) MissingRequiredTopics(ctx context.Context, e *model.Event, userUID int64) (*bag.Bag[*model.Event], error) {
	eb := g.newBuilder()
	if err := eb.LimitToRequiredEventTopics(e); err != nil {
		return nil, err
	}
	if err := eb.LimitToTopicsWithoutRegistrationByUser(userUID); err != nil {
		return nil, err
	}
	eb.SetOrderBy("e.title ASC, e.uid ASC")
	return eb.Build(ctx), nil
}

// UserFulfillsRequirements reports whether no required topic is missing.
func (g *Graph) UserFulfillsRequirements(ctx context.Context, e *model.Event, userUID int64) (bool, error) {
	missing, err := g.MissingRequiredTopics(ctx, e, userUID)
	if err != nil {
		return false, err
	}
	return missing.IsEmpty()
}
