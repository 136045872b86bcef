package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kinship/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Integration(t *testing.T) {
	comments := NewCommentRepository(testDB)
	ctx := context.Background()

	ts := time.Now().UnixNano()
	author := &models.User{Email: fmt.Sprintf("c1_%d@e.com", ts), FirstName: "Cal", LastName: "Reed"}
	other := &models.User{Email: fmt.Sprintf("c2_%d@e.com", ts), FirstName: "Dee", LastName: "Shaw"}
	testDB.Create(author)
	testDB.Create(other)
	post := &models.Post{UserID: author.ID, Text: "commentable"}
	testDB.Create(post)

	t.Run("Create and ListByPost oldest first", func(t *testing.T) {
		first := &models.Comment{PostID: post.ID, UserID: other.ID, Text: "one"}
		require.NoError(t, comments.Create(ctx, first))
		second := &models.Comment{PostID: post.ID, UserID: author.ID, Text: "two"}
		require.NoError(t, comments.Create(ctx, second))

		list, err := comments.ListByPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "one", list[0].Text)
		assert.Equal(t, "Dee", list[0].User.FirstName)
	})

	t.Run("UpdateText keeps created_at", func(t *testing.T) {
		list, err := comments.ListByPost(ctx, post.ID)
		require.NoError(t, err)
		created := list[0].CreatedAt

		require.NoError(t, comments.UpdateText(ctx, list[0].ID, "edited"))

		got, err := comments.GetByID(ctx, list[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Text)
		assert.WithinDuration(t, created, got.CreatedAt, time.Second)
	})

	t.Run("GetByID not found", func(t *testing.T) {
		_, err := comments.GetByID(ctx, 999999)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeNotFound, appErr.Code)
	})

	t.Run("IDsByAuthor", func(t *testing.T) {
		ids, err := comments.IDsByAuthor(ctx, other.ID)
		assert.NoError(t, err)
		assert.Len(t, ids, 1)
	})

	t.Run("DeleteByAuthor then DeleteByPost", func(t *testing.T) {
		n, err := comments.DeleteByAuthor(ctx, other.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = comments.DeleteByPost(ctx, post.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), n)

		list, err := comments.ListByPost(ctx, post.ID)
		assert.NoError(t, err)
		assert.Empty(t, list)
	})
}
