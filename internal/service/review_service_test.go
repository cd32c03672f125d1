package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/service"
	"github.com/yamdb/yamdb-api/internal/testutil"
)

type ReviewServiceTestSuite struct {
	suite.Suite
	testDB    *testutil.TestDatabase
	reviews   *service.ReviewService
	ctx       context.Context
	title     *models.Title
	author    *models.User
	stranger  *models.User
	moderator *models.User
	admin     *models.User
}

func TestReviewServiceSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceTestSuite))
}

func (s *ReviewServiceTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.reviews = service.NewReviewService(
		repository.NewReviewRepository(s.testDB.DB),
		repository.NewCatalogRepository(s.testDB.DB),
		config.DefaultRules(),
	)
	s.ctx = context.Background()

	db := s.testDB.DB
	s.title = testutil.CreateTestTitle(s.T(), db, "Reviewed", 2000, nil)
	s.author = testutil.CreateTestUser(s.T(), db, "author", models.RoleUser, "")
	s.stranger = testutil.CreateTestUser(s.T(), db, "stranger", models.RoleUser, "")
	s.moderator = testutil.CreateTestUser(s.T(), db, "mod", models.RoleModerator, "")
	s.admin = testutil.CreateTestUser(s.T(), db, "boss", models.RoleAdmin, "")
}

func (s *ReviewServiceTestSuite) TearDownTest() {
	s.testDB.Teardown(s.T())
}

func (s *ReviewServiceTestSuite) createReview(actor *models.User, score int) (*models.Review, error) {
	return s.reviews.CreateReview(s.ctx, actor, s.title.ID, service.ReviewRequest{
		Text:  "Worth watching",
		Score: testutil.Ptr(score),
	})
}

func (s *ReviewServiceTestSuite) TestCreateReview() {
	review, err := s.createReview(s.author, 8)

	require.NoError(s.T(), err)
	assert.NotZero(s.T(), review.ID)
	assert.Equal(s.T(), "author", review.Author.Username)
	assert.Equal(s.T(), 8, review.Score)
	assert.False(s.T(), review.PubDate.IsZero())
}

func (s *ReviewServiceTestSuite) TestCreateReviewAnonymous() {
	_, err := s.createReview(nil, 8)
	assert.Equal(s.T(), service.KindUnauthenticated, service.KindOf(err))
}

func (s *ReviewServiceTestSuite) TestSecondReviewIsConflict() {
	_, err := s.createReview(s.author, 8)
	require.NoError(s.T(), err)

	_, err = s.createReview(s.author, 2)

	require.Error(s.T(), err)
	assert.Equal(s.T(), service.KindConflict, service.KindOf(err))
	assert.Equal(s.T(), "only one review per title is allowed", err.Error())
	assert.EqualValues(s.T(), 1, testutil.Count(s.T(), s.testDB.DB, &models.Review{}, ""))
}

func (s *ReviewServiceTestSuite) TestConcurrentReviewsOnlyOneWins() {
	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			_, err := s.createReview(s.author, score)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case service.KindOf(err) == service.KindConflict:
				conflicts++
			}
		}(i%10 + 1)
	}
	wg.Wait()

	assert.Equal(s.T(), 1, successes)
	assert.Equal(s.T(), attempts-1, conflicts)
	assert.EqualValues(s.T(), 1, testutil.Count(s.T(), s.testDB.DB, &models.Review{}, ""))
}

func (s *ReviewServiceTestSuite) TestSameAuthorMayReviewOtherTitles() {
	other := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Other", 2001, nil)
	_, err := s.createReview(s.author, 5)
	require.NoError(s.T(), err)

	_, err = s.reviews.CreateReview(s.ctx, s.author, other.ID, service.ReviewRequest{
		Text: "Also fine", Score: testutil.Ptr(6),
	})
	assert.NoError(s.T(), err)
}

func (s *ReviewServiceTestSuite) TestScoreBounds() {
	testCases := []struct {
		name    string
		score   *int
		wantErr bool
	}{
		{"missing", nil, true},
		{"below minimum", testutil.Ptr(0), true},
		{"minimum", testutil.Ptr(1), false},
		{"maximum", testutil.Ptr(10), false},
		{"above maximum", testutil.Ptr(11), true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			title := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Scored "+tc.name, 2000, nil)
			_, err := s.reviews.CreateReview(s.ctx, s.author, title.ID, service.ReviewRequest{
				Text: "text", Score: tc.score,
			})
			if tc.wantErr {
				require.Error(s.T(), err)
				assert.Equal(s.T(), service.KindValidation, service.KindOf(err))
				assert.Contains(s.T(), err.(*service.Error).Fields, "score")
				return
			}
			assert.NoError(s.T(), err)
		})
	}
}

func (s *ReviewServiceTestSuite) TestReviewTextIsSanitized() {
	review, err := s.reviews.CreateReview(s.ctx, s.author, s.title.ID, service.ReviewRequest{
		Text: "<script>alert(1)</script>Great & <b>bold</b>", Score: testutil.Ptr(9),
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Great & bold", review.Text)

	_, err = s.reviews.CreateReview(s.ctx, s.stranger, s.title.ID, service.ReviewRequest{
		Text: "<p></p>", Score: testutil.Ptr(9),
	})
	require.Error(s.T(), err)
	assert.Contains(s.T(), err.(*service.Error).Fields, "text")
}

func (s *ReviewServiceTestSuite) TestReviewOnMissingTitle() {
	_, err := s.reviews.CreateReview(s.ctx, s.author, 999, service.ReviewRequest{Text: "x", Score: testutil.Ptr(5)})
	assert.Equal(s.T(), service.KindNotFound, service.KindOf(err))

	_, _, err = s.reviews.ListReviews(s.ctx, 999, repository.Page{Limit: 5})
	assert.Equal(s.T(), service.KindNotFound, service.KindOf(err))
}

func (s *ReviewServiceTestSuite) TestReviewOfAnotherTitleIsNotFound() {
	other := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Other", 2001, nil)
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)

	_, err := s.reviews.GetReview(s.ctx, other.ID, review.ID)
	assert.Equal(s.T(), service.KindNotFound, service.KindOf(err))

	_, err = s.reviews.CreateComment(s.ctx, s.author, other.ID, review.ID, service.CommentRequest{Text: "hi"})
	assert.Equal(s.T(), service.KindNotFound, service.KindOf(err))
}

func (s *ReviewServiceTestSuite) TestModifyPermissions() {
	testCases := []struct {
		name     string
		actor    func() *models.User
		wantKind service.Kind
	}{
		{"anonymous", func() *models.User { return nil }, service.KindUnauthenticated},
		{"other user", func() *models.User { return s.stranger }, service.KindPermission},
		{"author", func() *models.User { return s.author }, 0},
		{"moderator", func() *models.User { return s.moderator }, 0},
		{"admin", func() *models.User { return s.admin }, 0},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			title := testutil.CreateTestTitle(s.T(), s.testDB.DB, "Perm "+tc.name, 2000, nil)
			review := testutil.CreateTestReview(s.T(), s.testDB.DB, title, s.author, 5)

			updated, err := s.reviews.UpdateReview(s.ctx, tc.actor(), title.ID, review.ID, service.ReviewPatch{
				Score: testutil.Ptr(9),
			})
			assert.Equal(s.T(), tc.wantKind, service.KindOf(err))
			if tc.wantKind == 0 {
				assert.Equal(s.T(), 9, updated.Score)
				assert.Equal(s.T(), "author", updated.Author.Username, "authorship is kept")
			}

			err = s.reviews.DeleteReview(s.ctx, tc.actor(), title.ID, review.ID)
			assert.Equal(s.T(), tc.wantKind, service.KindOf(err))
		})
	}
}

func (s *ReviewServiceTestSuite) TestUpdateReviewPartial() {
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)

	updated, err := s.reviews.UpdateReview(s.ctx, s.author, s.title.ID, review.ID, service.ReviewPatch{
		Text: testutil.Ptr("Changed my mind"),
	})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Changed my mind", updated.Text)
	assert.Equal(s.T(), 5, updated.Score)

	_, err = s.reviews.UpdateReview(s.ctx, s.author, s.title.ID, review.ID, service.ReviewPatch{
		Score: testutil.Ptr(42),
	})
	assert.Equal(s.T(), service.KindValidation, service.KindOf(err))
}

func (s *ReviewServiceTestSuite) TestDeleteReviewRemovesComments() {
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)
	testutil.CreateTestComment(s.T(), s.testDB.DB, review, s.stranger, "disagree")
	testutil.CreateTestComment(s.T(), s.testDB.DB, review, s.author, "fair")

	require.NoError(s.T(), s.reviews.DeleteReview(s.ctx, s.moderator, s.title.ID, review.ID))

	assert.Zero(s.T(), testutil.Count(s.T(), s.testDB.DB, &models.Comment{}, ""))
}

func (s *ReviewServiceTestSuite) TestListReviewsNewestFirst() {
	first := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)
	second := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.stranger, 6)

	reviews, total, err := s.reviews.ListReviews(s.ctx, s.title.ID, repository.Page{Limit: 10})

	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 2, total)
	require.Len(s.T(), reviews, 2)
	assert.Equal(s.T(), second.ID, reviews[0].ID)
	assert.Equal(s.T(), first.ID, reviews[1].ID)
	assert.Equal(s.T(), "stranger", reviews[0].Author.Username)
}

func (s *ReviewServiceTestSuite) TestCommentLifecycle() {
	// Arrange
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)

	// Act: create
	comment, err := s.reviews.CreateComment(s.ctx, s.stranger, s.title.ID, review.ID, service.CommentRequest{Text: "Nice"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "stranger", comment.Author.Username)

	// Act: author of the review cannot edit someone else's comment
	_, err = s.reviews.UpdateComment(s.ctx, s.author, s.title.ID, review.ID, comment.ID, service.CommentPatch{Text: testutil.Ptr("Hijacked")})
	assert.Equal(s.T(), service.KindPermission, service.KindOf(err))

	// Act: owner edits
	updated, err := s.reviews.UpdateComment(s.ctx, s.stranger, s.title.ID, review.ID, comment.ID, service.CommentPatch{Text: testutil.Ptr("Very nice")})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Very nice", updated.Text)

	got, err := s.reviews.GetComment(s.ctx, s.title.ID, review.ID, comment.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Very nice", got.Text)

	// Act: moderator deletes
	require.NoError(s.T(), s.reviews.DeleteComment(s.ctx, s.moderator, s.title.ID, review.ID, comment.ID))
	_, err = s.reviews.GetComment(s.ctx, s.title.ID, review.ID, comment.ID)
	assert.Equal(s.T(), service.KindNotFound, service.KindOf(err))
}

func (s *ReviewServiceTestSuite) TestCommentOfAnotherReviewIsNotFound() {
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)
	other := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.stranger, 6)
	comment := testutil.CreateTestComment(s.T(), s.testDB.DB, review, s.author, "mine")

	_, err := s.reviews.GetComment(s.ctx, s.title.ID, other.ID, comment.ID)
	assert.Equal(s.T(), service.KindNotFound, service.KindOf(err))
}

func (s *ReviewServiceTestSuite) TestEmptyCommentRejected() {
	review := testutil.CreateTestReview(s.T(), s.testDB.DB, s.title, s.author, 5)

	_, err := s.reviews.CreateComment(s.ctx, s.stranger, s.title.ID, review.ID, service.CommentRequest{Text: ""})

	require.Error(s.T(), err)
	assert.Equal(s.T(), service.KindValidation, service.KindOf(err))
}
