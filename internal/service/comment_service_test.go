package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/pkg/apperr"
)

type fakeCommentStore struct {
	nextID   int64
	comments []model.Comment
}

func (f *fakeCommentStore) Insert(ctx context.Context, c *model.Comment) (int64, error) {
	f.nextID++
	c.ID = f.nextID
	f.comments = append(f.comments, *c)
	return c.ID, nil
}

func (f *fakeCommentStore) ListByJob(ctx context.Context, jobID int64) ([]model.Comment, error) {
	out := []model.Comment{}
	for _, c := range f.comments {
		if c.JobID == jobID {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(routingKey string, payload any) error {
	p.keys = append(p.keys, routingKey)
	return nil
}

// pub must be untyped nil to disable eventing; a typed-nil pointer would
// slip past the service's nil check.
func newTestCommentService(pub EventPublisher) (*CommentService, *fakeCommentStore) {
	store := &fakeCommentStore{}
	jobs := &fakeJobStore{byID: map[int64]*model.Job{
		7: {ID: 7, StageCode: "started", Active: true},
	}}
	return NewCommentService(store, jobs, pub, zap.NewNop()), store
}

func TestAppendRejectsEmptyMessage(t *testing.T) {
	svc, _ := newTestCommentService(nil)

	_, err := svc.Append(context.Background(), 7, model.Actor{ID: 1, Role: "operator"}, "", nil, false)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAppendRejectsUnknownJob(t *testing.T) {
	svc, _ := newTestCommentService(nil)

	_, err := svc.Append(context.Background(), 99, model.Actor{ID: 1, Role: "operator"}, "hi", nil, false)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendWithoutPublisherSkipsEventing(t *testing.T) {
	svc, _ := newTestCommentService(nil)

	c, err := svc.Append(context.Background(), 7, model.Actor{ID: 1, Role: "operator"}, "note", nil, false)
	if err != nil {
		t.Fatalf("append without publisher failed: %v", err)
	}
	if c.ID == 0 {
		t.Fatalf("comment not persisted: %+v", c)
	}
}

func TestAppendPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestCommentService(pub)

	c, err := svc.Append(context.Background(), 7, model.Actor{ID: 1, Name: "Mia", Role: "operator"}, "ready for QC", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == 0 || !c.Internal {
		t.Fatalf("unexpected comment: %+v", c)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "comment.created" {
		t.Fatalf("expected comment.created publish, got %v", pub.keys)
	}
}

func TestListPreservesAppendOrderAndImmutability(t *testing.T) {
	svc, _ := newTestCommentService(nil)
	ctx := context.Background()
	author := model.Actor{ID: 1, Name: "Mia", Role: "operator"}

	c1, err := svc.Append(ctx, 7, author, "first", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Append(ctx, 7, author, "second", nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	comments, err := svc.List(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != c1.ID || comments[0].Message != "first" {
		t.Fatalf("first comment changed: %+v", comments[0])
	}
	if comments[1].Message != "second" {
		t.Fatalf("unexpected second comment: %+v", comments[1])
	}
}
