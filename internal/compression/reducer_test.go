package compression

import (
	"errors"
	"testing"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBudget = 300 * 1024

func newTestReducer(rec *fakeRecompressor, observer ReducerObserver) *Reducer {
	return NewReducer(testBudget, rec, WithSizer(rec.sizer), WithObserver(observer))
}

func TestReducer_UnderBudgetSkipsRecompression(t *testing.T) {
	rec := &fakeRecompressor{size: 100 * 1024}
	observer := &recordingObserver{}

	result, err := newTestReducer(rec, observer).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, compressionDomain.OutcomeAchieved, result.Outcome)
	assert.Empty(t, rec.qualities)
	assert.Zero(t, result.Passes())
	assert.Zero(t, observer.started)
	assert.Same(t, result, observer.result)
	assert.NoError(t, result.Warning())
}

func TestReducer_ExactlyAtBudgetIsAchieved(t *testing.T) {
	rec := &fakeRecompressor{size: testBudget}

	result, err := newTestReducer(rec, nil).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.True(t, result.Achieved())
	assert.Empty(t, rec.qualities)
}

func TestReducer_NoImagesStopsAfterOnePass(t *testing.T) {
	rec := &fakeRecompressor{size: 500 * 1024, passes: []pass{{altered: 0}}}
	observer := &recordingObserver{}

	result, err := newTestReducer(rec, observer).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, compressionDomain.OutcomeNoImages, result.Outcome)
	assert.Equal(t, []int{80}, rec.qualities)
	assert.Equal(t, int64(500*1024), result.FinalSize)
	assert.Zero(t, result.Passes())
	assert.Equal(t, 1, observer.started)
	assert.Empty(t, observer.finished)
	assert.ErrorIs(t, result.Warning(), common.ErrSizeTargetUnreachable)
}

func TestReducer_ExhaustsAllLevels(t *testing.T) {
	size := int64(2000 * 1024)
	var passes []pass
	for i := 0; i < 7; i++ {
		size -= 100 * 1024
		passes = append(passes, pass{altered: 3, size: size})
	}
	rec := &fakeRecompressor{size: 2000 * 1024, passes: passes}
	observer := &recordingObserver{}

	result, err := newTestReducer(rec, observer).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, compressionDomain.OutcomeExhausted, result.Outcome)
	assert.Equal(t, []int{80, 70, 60, 50, 40, 30, 20}, rec.qualities)
	assert.Equal(t, 7, result.Passes())
	assert.Equal(t, 20, result.Attempts[6].Quality)
	assert.Equal(t, size, result.FinalSize)
	assert.Len(t, observer.finished, 7)
	assert.Equal(t, 1, observer.started)
	assert.ErrorIs(t, result.Warning(), common.ErrSizeTargetUnreachable)
}

func TestReducer_AchievedMidway(t *testing.T) {
	rec := &fakeRecompressor{size: 400 * 1024, passes: []pass{
		{altered: 2, size: 350 * 1024},
		{altered: 2, size: 310 * 1024},
		{altered: 2, size: 290 * 1024},
		{altered: 2, size: 100 * 1024},
	}}

	result, err := newTestReducer(rec, nil).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.True(t, result.Achieved())
	assert.Equal(t, []int{80, 70, 60}, rec.qualities)
	assert.Equal(t, int64(290*1024), result.FinalSize)
	assert.Equal(t, 60, result.Attempts[len(result.Attempts)-1].Quality)
	assert.Equal(t, int64(400*1024), result.StartSize)
}

func TestReducer_NoImagesAfterSomePasses(t *testing.T) {
	rec := &fakeRecompressor{size: 900 * 1024, passes: []pass{
		{altered: 1, size: 800 * 1024},
		{altered: 0},
	}}

	result, err := newTestReducer(rec, nil).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, compressionDomain.OutcomeNoImages, result.Outcome)
	assert.Equal(t, []int{80, 70}, rec.qualities)
	assert.Equal(t, 1, result.Passes())
	assert.Equal(t, int64(800*1024), result.FinalSize)
}

func TestReducer_UnreadableDocumentSetsErr(t *testing.T) {
	malformed := common.MalformedDocumentError("open", "doc.pdf", errors.New("bad header"))
	rec := &fakeRecompressor{size: 900 * 1024, passes: []pass{{err: malformed}}}

	result, err := newTestReducer(rec, nil).Reduce("doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, compressionDomain.OutcomeNoImages, result.Outcome)
	assert.ErrorIs(t, result.Err, common.ErrMalformedDocument)
	assert.Equal(t, []int{80}, rec.qualities)
}

func TestReducer_CustomLevels(t *testing.T) {
	rec := &fakeRecompressor{size: 900 * 1024, passes: []pass{
		{altered: 1, size: 800 * 1024},
		{altered: 1, size: 700 * 1024},
	}}
	r := NewReducer(testBudget, rec, WithSizer(rec.sizer), WithQualityLevels(QualityLevels{50, 25}))

	result, err := r.Reduce("doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, compressionDomain.OutcomeExhausted, result.Outcome)
	assert.Equal(t, []int{50, 25}, rec.qualities)
	assert.Equal(t, QualityLevels{50, 25}, r.Levels())
}

func TestReducer_LevelsAreNotConsumedAcrossDocuments(t *testing.T) {
	r := NewReducer(testBudget, nil)
	first := &fakeRecompressor{size: 900 * 1024, passes: []pass{{altered: 0}}}
	r.recompressor = first
	r.sizer = first.sizer

	_, err := r.Reduce("a.pdf")
	require.NoError(t, err)

	second := &fakeRecompressor{size: 900 * 1024, passes: []pass{{altered: 0}}}
	r.recompressor = second
	r.sizer = second.sizer

	_, err = r.Reduce("b.pdf")
	require.NoError(t, err)

	assert.Equal(t, []int{80}, first.qualities)
	assert.Equal(t, []int{80}, second.qualities)
	assert.Len(t, r.Levels(), 7)
}

func TestReducer_MeasureFailure(t *testing.T) {
	r := NewReducer(testBudget, &fakeRecompressor{}, WithSizer(func(string) (int64, error) {
		return 0, errors.New("no such file")
	}))

	result, err := r.Reduce("missing.pdf")

	assert.Nil(t, result)
	assert.Error(t, err)
}
