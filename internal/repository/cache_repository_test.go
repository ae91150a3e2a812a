package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/SergeiKhy/linkregistry/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestNoopCacheRepository(t *testing.T) {
	cache := repository.NewNoopCacheRepository()
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "abc1234", &models.Link{Code: "abc1234"}, time.Minute))

	_, err := cache.Get(ctx, "abc1234")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
	assert.NoError(t, cache.Delete(ctx, "abc1234"))
}
