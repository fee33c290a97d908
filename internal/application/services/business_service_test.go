package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	apperrors "github.com/persianhub/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type businessFixture struct {
	repo       *memoryBusinesses
	categories *memoryCategories
	requests   *memoryCategoryRequests
	analytics  *memorySearchAnalytics
	index      *MockSearchIndex
	sender     *MockEmailSender
	emailLogs  *memoryEmailLogs
	bus        *MockEventBus
	service    *BusinessService
	tracker    *SearchAnalyticsService
}

func newBusinessFixture(businesses ...*entities.Business) *businessFixture {
	f := &businessFixture{
		repo:       newMemoryBusinesses(businesses...),
		categories: newMemoryCategories("Restaurants"),
		requests:   newMemoryCategoryRequests(),
		analytics:  newMemorySearchAnalytics(nil),
		index:      new(MockSearchIndex),
		sender:     new(MockEmailSender),
		emailLogs:  &memoryEmailLogs{},
		bus:        new(MockEventBus),
	}
	f.tracker = NewSearchAnalyticsService(f.analytics)
	notifier := NewNotificationService(f.sender, f.emailLogs, []string{"admin@persianhub.example"}, "https://persianhub.example", nil)
	f.service = NewBusinessService(f.repo, f.categories, f.requests, f.index, NewSearchRanker(),
		f.tracker, notifier, f.bus, nil)
	return f
}

func approved(id, name, category string, created time.Time) *entities.Business {
	return &entities.Business{
		ID:           id,
		Name:         name,
		CategoryName: category,
		Status:       entities.BusinessStatusApproved,
		CreatedAt:    created,
	}
}

func TestBusinessService_SearchRanksApprovedAndTracksQuery(t *testing.T) {
	now := time.Now()
	pending := approved("p", "Kabob Pending", "Restaurants", now)
	pending.Status = entities.BusinessStatusPending
	f := newBusinessFixture(
		approved("a", "Kabob House", "Restaurants", now.Add(-time.Hour)),
		approved("b", "Tehran Market", "Grocery", now),
		approved("c", "Kabob", "Restaurants", now.Add(-2*time.Hour)),
		pending,
	)
	f.index.On("Search", mock.Anything, "kabob", "", indexCandidateLimit).Return([]string{"c", "a", "p"}, nil)

	results, err := f.service.Search(context.Background(), SearchParams{Query: "  KABOB "})
	f.tracker.Wait()

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, "a", results[1].ID)
	assert.Equal(t, int64(1), f.analytics.get("kabob"))
}

func TestBusinessService_SearchEmptyQueryIsNotTracked(t *testing.T) {
	now := time.Now()
	f := newBusinessFixture(
		approved("a", "Kabob House", "Restaurants", now.Add(-time.Hour)),
		approved("b", "Tehran Market", "Grocery", now),
	)

	results, err := f.service.Search(context.Background(), SearchParams{Query: "   "})
	f.tracker.Wait()

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	top, _ := f.analytics.Top(context.Background(), 10)
	assert.Empty(t, top)
}

func TestBusinessService_SearchFiltersCategoryAndPaginates(t *testing.T) {
	now := time.Now()
	f := newBusinessFixture(
		approved("a", "One", "Restaurants", now),
		approved("b", "Two", "restaurants", now.Add(-time.Minute)),
		approved("c", "Three", "Restaurants", now.Add(-2*time.Minute)),
		approved("d", "Four", "Grocery", now),
	)

	page, err := f.service.Search(context.Background(), SearchParams{Category: "RESTAURANTS", Limit: 2, Offset: 1})

	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "c", page[1].ID)

	beyond, err := f.service.Search(context.Background(), SearchParams{Category: "Restaurants", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestBusinessService_SearchRepositoryError(t *testing.T) {
	f := newBusinessFixture()
	f.repo.err = apperrors.NewInternalError("failed to list businesses", errors.New("db down"))
	f.index.On("Search", mock.Anything, "x", "", indexCandidateLimit).Return([]string{"a"}, nil)

	_, err := f.service.Search(context.Background(), SearchParams{Query: "x"})

	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
}

func fillerListings(n int, newest time.Time) []*entities.Business {
	businesses := make([]*entities.Business, 0, n)
	for i := 0; i < n; i++ {
		businesses = append(businesses, approved(fmt.Sprintf("filler-%04d", i), fmt.Sprintf("Filler %d", i), "Restaurants", newest.Add(-time.Duration(i)*time.Second)))
	}
	return businesses
}

func TestBusinessService_SearchReachesListingsOlderThanNewestThousand(t *testing.T) {
	now := time.Now()
	old := approved("old", "Tehran Kabob", "Restaurants", now.AddDate(-2, 0, 0))
	old.Promoted = true
	f := newBusinessFixture(append(fillerListings(1000, now), old)...)
	f.service.index = nil

	results, err := f.service.Search(context.Background(), SearchParams{Query: "Tehran Kabob"})
	f.tracker.Wait()

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "old", results[0].ID)

	calls := f.repo.listCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tehran kabob", calls[0].Query)
	assert.Zero(t, calls[0].Limit)
}

func TestBusinessService_SearchBrowseKeepsPlacementBeyondNewestRows(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	promoted := approved("promoted", "Old Promoted", "Restaurants", now.AddDate(-3, 0, 0))
	promoted.Promoted = true
	sponsored := approved("sponsored", "Old Sponsored", "Restaurants", now.AddDate(-3, 0, 0))
	sponsored.Sponsored = true
	lapsed := approved("lapsed", "Lapsed Promotion", "Restaurants", now.AddDate(-3, 0, 0))
	lapsed.Promoted = true
	lapsed.PromotedUntil = &expired
	f := newBusinessFixture(append(fillerListings(1200, now), promoted, sponsored, lapsed)...)
	f.service.index = nil

	page, err := f.service.Search(context.Background(), SearchParams{Limit: 2})

	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "promoted", page[0].ID)
	assert.Equal(t, "sponsored", page[1].ID)

	next, err := f.service.Search(context.Background(), SearchParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "filler-0000", next[0].ID)

	calls := f.repo.listCalls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].PlacementFirst)
	assert.Equal(t, 2, calls[0].Limit)
	assert.Equal(t, 4, calls[1].Limit)
}

func TestBusinessService_SearchUsesIndexCandidates(t *testing.T) {
	now := time.Now()
	f := newBusinessFixture(
		approved("a", "Kabob House", "Restaurants", now),
		approved("c", "Kabob Corner", "Restaurants", now.Add(-time.Hour)),
	)
	f.index.On("Search", mock.Anything, "kabob", "Restaurants", indexCandidateLimit).Return([]string{"c"}, nil)

	results, err := f.service.Search(context.Background(), SearchParams{Query: "Kabob", Category: " Restaurants "})
	f.tracker.Wait()

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, 50, results[0].Score)
	f.index.AssertExpectations(t)
	assert.Equal(t, []string{"c"}, f.repo.listCalls()[0].IDs)
}

func TestBusinessService_SearchIndexWithoutHits(t *testing.T) {
	f := newBusinessFixture(approved("a", "Kabob House", "Restaurants", time.Now()))
	f.index.On("Search", mock.Anything, "tahdig", "", indexCandidateLimit).Return([]string{}, nil)

	results, err := f.service.Search(context.Background(), SearchParams{Query: "tahdig"})
	f.tracker.Wait()

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.repo.listCalls())
}

func TestBusinessService_SearchIndexFailureFallsBackToDatabase(t *testing.T) {
	now := time.Now()
	f := newBusinessFixture(
		approved("a", "Kabob House", "Restaurants", now),
		approved("b", "Tehran Market", "Grocery", now),
	)
	f.index.On("Search", mock.Anything, "kabob", "", indexCandidateLimit).Return(nil, errors.New("typesense down"))

	results, err := f.service.Search(context.Background(), SearchParams{Query: "kabob"})
	f.tracker.Wait()

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "kabob", f.repo.listCalls()[0].Query)
}

func TestBusinessService_GetApprovedHidesPending(t *testing.T) {
	pending := approved("p", "Pending", "Restaurants", time.Now())
	pending.Status = entities.BusinessStatusPending
	f := newBusinessFixture(pending, approved("a", "Live", "Restaurants", time.Now()))

	_, err := f.service.GetApproved(context.Background(), "p")
	assert.True(t, apperrors.IsNotFound(err))

	b, err := f.service.GetApproved(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Live", b.Name)
}

func TestBusinessService_SubmitUnknownCategoryFilesRequest(t *testing.T) {
	f := newBusinessFixture()
	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *entities.EmailMessage) bool {
		return msg.To == "admin@persianhub.example"
	})).Return(nil).Once()
	f.bus.On("Publish", mock.Anything, providers.EventChannelDirectory, mock.MatchedBy(func(e *entities.DirectoryEvent) bool {
		return e.Type == entities.EventBusinessSubmitted && e.Data["status"] == "pending"
	})).Return(nil).Once()
	owner := &entities.User{ID: "owner-1"}

	b, err := f.service.Submit(context.Background(), owner, &entities.Business{
		Name:            "  Shine Auto  ",
		CategoryName:    " car   detailing ",
		SubcategoryName: "Ceramic coating",
		Services:        []string{"Wash", " wash ", "", "Wax"},
		Promoted:        true,
		Location:        &entities.Location{},
	})

	require.NoError(t, err)
	assert.Equal(t, "Shine Auto", b.Name)
	assert.Equal(t, "owner-1", b.OwnerID)
	assert.Equal(t, entities.BusinessStatusPending, b.Status)
	assert.False(t, b.Promoted)
	assert.Nil(t, b.Location)
	assert.Equal(t, []string{"Wash", "Wax"}, b.Services)

	requests, _ := f.requests.ListByStatus(context.Background(), entities.CategoryRequestPending)
	require.Len(t, requests, 1)
	assert.Equal(t, "car detailing", requests[0].CategoryName)
	assert.Equal(t, "Ceramic coating", requests[0].SubcategoryName)
	assert.Equal(t, b.ID, requests[0].BusinessID)
	f.sender.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

func TestBusinessService_SubmitKnownCategory(t *testing.T) {
	f := newBusinessFixture()
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.Submit(context.Background(), &entities.User{ID: "owner-1"}, &entities.Business{
		Name:         "Shiraz Kitchen",
		CategoryName: "restaurants",
	})

	require.NoError(t, err)
	requests, _ := f.requests.ListByStatus(context.Background(), "")
	assert.Empty(t, requests)
}

func TestBusinessService_SubmitValidation(t *testing.T) {
	owner := &entities.User{ID: "owner-1"}
	tests := []struct {
		name  string
		input *entities.Business
	}{
		{"missing name", &entities.Business{CategoryName: "Restaurants"}},
		{"missing category", &entities.Business{Name: "Shiraz"}},
		{"bad email", &entities.Business{Name: "Shiraz", CategoryName: "Restaurants", Email: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBusinessFixture()
			_, err := f.service.Submit(context.Background(), owner, tt.input)
			assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
		})
	}

	f := newBusinessFixture()
	_, err := f.service.Submit(context.Background(), nil, &entities.Business{Name: "x", CategoryName: "y"})
	assert.Equal(t, apperrors.ErrorTypeUnauthorized, apperrors.TypeOf(err))
}

func TestBusinessService_ApproveIndexesPublishesAndEmails(t *testing.T) {
	pending := approved("b-1", "Shiraz Kitchen", "Restaurants", time.Now())
	pending.Status = entities.BusinessStatusPending
	pending.Email = "owner@example.com"
	f := newBusinessFixture(pending)
	f.index.On("Index", mock.Anything, mock.MatchedBy(func(b *entities.Business) bool {
		return b.ID == "b-1" && b.Status == entities.BusinessStatusApproved
	})).Return(nil).Once()
	f.bus.On("Publish", mock.Anything, providers.EventChannelDirectory, mock.MatchedBy(func(e *entities.DirectoryEvent) bool {
		return e.Type == entities.EventBusinessApproved && e.EntityID == "b-1"
	})).Return(nil).Once()
	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *entities.EmailMessage) bool {
		return msg.To == "owner@example.com"
	})).Return(nil).Once()

	b, err := f.service.Approve(context.Background(), "b-1", " looks good ")

	require.NoError(t, err)
	assert.Equal(t, entities.BusinessStatusApproved, b.Status)
	stored, _ := f.repo.GetByID(context.Background(), "b-1")
	assert.Equal(t, "looks good", stored.AdminNotes)
	f.index.AssertExpectations(t)
	f.bus.AssertExpectations(t)
	f.sender.AssertExpectations(t)
}

func TestBusinessService_ApproveToleratesSideEffectFailures(t *testing.T) {
	pending := approved("b-1", "Shiraz Kitchen", "Restaurants", time.Now())
	pending.Status = entities.BusinessStatusPending
	pending.Email = "owner@example.com"
	f := newBusinessFixture(pending)
	f.index.On("Index", mock.Anything, mock.Anything).Return(errors.New("typesense down"))
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	b, err := f.service.Approve(context.Background(), "b-1", "")

	require.NoError(t, err)
	assert.Equal(t, entities.BusinessStatusApproved, b.Status)
}

func TestBusinessService_ApproveMissing(t *testing.T) {
	f := newBusinessFixture()

	_, err := f.service.Approve(context.Background(), "nope", "")

	assert.True(t, apperrors.IsNotFound(err))
}

func TestBusinessService_RejectRemovesFromIndex(t *testing.T) {
	f := newBusinessFixture(approved("b-1", "Shiraz Kitchen", "Restaurants", time.Now()))
	f.index.On("Delete", mock.Anything, "b-1").Return(nil).Once()
	f.bus.On("Publish", mock.Anything, providers.EventChannelDirectory, mock.Anything).Return(nil).Once()

	b, err := f.service.Reject(context.Background(), "b-1", "duplicate listing")

	require.NoError(t, err)
	assert.Equal(t, entities.BusinessStatusRejected, b.Status)
	assert.Equal(t, "duplicate listing", b.AdminNotes)
	f.index.AssertExpectations(t)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestBusinessService_UpdatePromotion(t *testing.T) {
	f := newBusinessFixture(approved("b-1", "Shiraz Kitchen", "Restaurants", time.Now()))
	f.index.On("Index", mock.Anything, mock.Anything).Return(nil).Once()
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	until := time.Now().Add(24 * time.Hour)

	b, err := f.service.UpdatePromotion(context.Background(), "b-1", repositories.PromotionUpdate{
		Promoted: true, Sponsored: true, PromotedUntil: &until,
	})

	require.NoError(t, err)
	assert.True(t, b.Promoted)
	assert.True(t, b.Sponsored)
	require.NotNil(t, b.PromotedUntil)

	_, err = f.service.UpdatePromotion(context.Background(), "b-1", repositories.PromotionUpdate{PromotedUntil: &until})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestBusinessService_ListForModeration(t *testing.T) {
	pending := approved("p", "Pending", "Restaurants", time.Now())
	pending.Status = entities.BusinessStatusPending
	f := newBusinessFixture(pending, approved("a", "Live", "Restaurants", time.Now()))

	list, err := f.service.ListForModeration(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p", list[0].ID)

	_, err = f.service.ListForModeration(context.Background(), "archived", 0, 0)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestBusinessService_ReindexApproved(t *testing.T) {
	businesses := make([]*entities.Business, 0, 150)
	now := time.Now()
	for i := 0; i < 150; i++ {
		businesses = append(businesses, approved(fmt.Sprintf("biz-%03d", i), "Listing", "Restaurants", now.Add(-time.Duration(i)*time.Minute)))
	}
	f := newBusinessFixture(businesses...)
	f.index.On("Index", mock.Anything, mock.Anything).Return(nil)

	indexed, err := f.service.ReindexApproved(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 150, indexed)
	f.index.AssertNumberOfCalls(t, "Index", 150)
}

func TestBusinessService_ReindexWithoutIndex(t *testing.T) {
	service := NewBusinessService(newMemoryBusinesses(), newMemoryCategories(), newMemoryCategoryRequests(),
		nil, nil, nil, nil, nil, nil)

	_, err := service.ReindexApproved(context.Background())

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}
