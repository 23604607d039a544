package material_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/material"
	"github.com/trezcool/edunex/testutil"
)

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	admin := env.CreateAdmin(t, "admin")
	crs := env.CreateCourse(t, "CS101", prof, 10)
	other := env.CreateCourse(t, "CS102", prof, 10)

	slides, err := env.Materials.Create(ctx, material.NewMaterial{
		Title: "Week 1 slides", Type: material.TypeDocument, URL: "https://cdn.example.com/w1.pdf",
	}, crs.ID, prof)
	require.NoError(t, err)
	require.NotNil(t, slides.UploadedBy)
	assert.Equal(t, prof.ID, *slides.UploadedBy)
	assert.Equal(t, crs.ID, slides.CourseID)
	assert.False(t, slides.UploadedAt.IsZero())

	video, err := env.Materials.Create(ctx, material.NewMaterial{
		Title: "Lecture 1", Type: material.TypeVideo, URL: "https://videos.example.com/l1",
	}, crs.ID, admin)
	require.NoError(t, err)
	_, err = env.Materials.Create(ctx, material.NewMaterial{
		Title: "Syllabus", Type: material.TypeLink, URL: "https://example.com/cs102",
	}, other.ID, prof)
	require.NoError(t, err)

	_, err = env.Materials.Create(ctx, material.NewMaterial{Title: "?", Type: material.TypeOther, URL: "https://x.io"}, 9999, prof)
	assert.Equal(t, course.ErrNotFound, err)

	uploaded, err := env.Notifications.ActivitiesByType(ctx, material.ActivityUploaded)
	require.NoError(t, err)
	require.Len(t, uploaded, 3)

	t.Run("list", func(t *testing.T) {
		list, err := env.Materials.ListByCourse(ctx, crs.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, video.ID, list[0].ID, "most recent first")
		assert.Equal(t, slides.ID, list[1].ID)

		_, err = env.Materials.ListByCourse(ctx, 9999)
		assert.Equal(t, course.ErrNotFound, err)

		mine, err := env.Materials.ListByUploader(ctx, prof.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		none, err := env.Materials.ListByUploader(ctx, 9999)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := env.Materials.Update(ctx, slides, material.NewMaterial{
			Title: "Week 1 slides (v2)", Description: "fixed typos", Type: material.TypeDocument, URL: "https://cdn.example.com/w1v2.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, "Week 1 slides (v2)", updated.Title)
		assert.Equal(t, crs.ID, updated.CourseID)
		assert.Equal(t, slides.UploadedAt, updated.UploadedAt)

		got, err := env.Materials.GetByID(ctx, slides.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)

		_, err = env.Materials.Update(ctx, material.Material{ID: 9999}, material.NewMaterial{Title: "x"})
		assert.Equal(t, material.ErrNotFound, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, env.Materials.Delete(ctx, slides, admin))
		_, err := env.Materials.GetByID(ctx, slides.ID)
		assert.Equal(t, material.ErrNotFound, err)
		assert.Equal(t, material.ErrNotFound, env.Materials.Delete(ctx, slides, admin))

		deleted, err := env.Notifications.ActivitiesByType(ctx, material.ActivityDeleted)
		require.NoError(t, err)
		require.Len(t, deleted, 1)
		require.NotNil(t, deleted[0].UserID)
		assert.Equal(t, prof.ID, *deleted[0].UserID, "logged against the uploader")
		require.NotNil(t, deleted[0].EntityID)
		assert.Equal(t, slides.ID, *deleted[0].EntityID)
	})

	t.Run("uploader removed", func(t *testing.T) {
		_, err := env.UserRepo.DeleteUsersByID(ctx, []int64{admin.ID})
		require.NoError(t, err)

		got, err := env.Materials.GetByID(ctx, video.ID)
		require.NoError(t, err)
		assert.Nil(t, got.UploadedBy)

		require.NoError(t, env.Materials.Delete(ctx, got, prof))
		deleted, err := env.Notifications.ActivitiesByType(ctx, material.ActivityDeleted)
		require.NoError(t, err)
		require.Len(t, deleted, 2)
		assert.Equal(t, video.ID, *deleted[0].EntityID)
		require.NotNil(t, deleted[0].UserID)
		assert.Equal(t, prof.ID, *deleted[0].UserID, "logged against the deleter")
	})

	t.Run("course removed", func(t *testing.T) {
		require.NoError(t, env.Courses.Delete(ctx, other, prof))
		list, err := env.Materials.ListByUploader(ctx, prof.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestNewMaterial_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		data    material.NewMaterial
		wantErr bool
	}{
		{"valid", material.NewMaterial{Title: " Notes ", Type: " LINK ", URL: "https://example.com"}, false},
		{"missing title", material.NewMaterial{Type: material.TypeLink, URL: "https://example.com"}, true},
		{"unknown type", material.NewMaterial{Title: "Notes", Type: "PODCAST", URL: "https://example.com"}, true},
		{"bad url", material.NewMaterial{Title: "Notes", Type: material.TypeLink, URL: "not a url"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			err := data.Validate(validate)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Notes", data.Title)
			assert.Equal(t, material.TypeLink, data.Type)
		})
	}
}
