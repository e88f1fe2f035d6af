package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

func setupLevelRepo(t *testing.T) *LevelRepo {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLevelRepo(db)
}

func sample(name string, date entity.Date) *entity.Assessment {
	next := entity.NewDate(2024, time.June, 1)
	return &entity.Assessment{
		City:  "Angicos",
		State: "RN",
		Fields: entity.Fields{
			CreatedDate:        date,
			PatientName:        name,
			WeightKg:           20,
			HeightM:            1.10,
			NutritionClass:     entity.NutritionNormal,
			DentalClass:        entity.DentalRoutine,
			NextAssessmentDate: &next,
		},
		BMI: entity.ComputeBMI(20, 1.10),
	}
}

func TestLevelRepo_CreateAssignsIncreasingIDs(t *testing.T) {
	r := setupLevelRepo(t)
	ctx := context.Background()

	id1, err := r.Create(ctx, sample("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)
	id2, err := r.Create(ctx, sample("João", entity.NewDate(2024, time.March, 2)))
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	// ids are not reused after deletion
	require.NoError(t, r.Delete(ctx, id2))
	id3, err := r.Create(ctx, sample("Ana", entity.NewDate(2024, time.March, 3)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), id3)
}

func TestLevelRepo_GetRoundTrip(t *testing.T) {
	r := setupLevelRepo(t)
	ctx := context.Background()

	in := sample("Maria", entity.NewDate(2024, time.March, 1))
	id, err := r.Create(ctx, in)
	require.NoError(t, err)

	got, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestLevelRepo_UpdateAndDeleteMissing(t *testing.T) {
	r := setupLevelRepo(t)
	ctx := context.Background()

	missing := sample("Maria", entity.NewDate(2024, time.March, 1))
	missing.ID = 99
	assert.ErrorIs(t, r.Update(ctx, missing), apperr.ErrNotFound)
	assert.ErrorIs(t, r.Delete(ctx, 99), apperr.ErrNotFound)

	_, err := r.GetByID(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLevelRepo_ListInIDOrder(t *testing.T) {
	r := setupLevelRepo(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := r.Create(ctx, sample("P", entity.NewDate(2024, time.January, i+1)))
		require.NoError(t, err)
	}
	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 12)
	for i, a := range all {
		assert.Equal(t, int64(i+1), a.ID)
	}
}

func TestLevelRepo_FindByNameAndDate(t *testing.T) {
	r := setupLevelRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, sample("Maria", entity.NewDate(2024, time.March, 2)))
	require.NoError(t, err)
	_, err = r.Create(ctx, sample("Ana", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)
	id, err := r.Create(ctx, sample("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	got, err := r.FindByNameAndDate(ctx, "Maria", entity.NewDate(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = r.FindByNameAndDate(ctx, "Maria", entity.NewDate(2024, time.March, 5))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = r.FindByNameAndDate(ctx, "Pedro", entity.NewDate(2024, time.March, 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
