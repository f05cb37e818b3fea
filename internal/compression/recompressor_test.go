package compression

import (
	"errors"
	"testing"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageObject(number int) (compressionDomain.Object, *fakeImage) {
	img := &fakeImage{info: compressionDomain.ImageInfo{ObjectNumber: number, Width: 1, Height: 1, BitsPerComponent: 8}}
	return compressionDomain.Object{Number: number, Kind: compressionDomain.KindImage, Image: img}, img
}

func TestRecompressor_AltersEveryImage(t *testing.T) {
	obj1, img1 := imageObject(4)
	obj2, img2 := imageObject(9)
	doc := &fakeDocument{objects: []compressionDomain.Object{
		{Number: 1, Kind: compressionDomain.KindOther},
		obj1,
		obj2,
	}}
	codec := &stubCodec{}
	r := NewRecompressor(&fakeOpener{doc: doc}, codec, nil)

	altered, err := r.Recompress("doc.pdf", 60)
	require.NoError(t, err)

	assert.Equal(t, 2, altered)
	assert.Equal(t, []int{60, 60}, codec.qualities)
	assert.Equal(t, []byte{0xff, 0xd8, 60}, img1.replaced)
	assert.Equal(t, []byte{0xff, 0xd8, 60}, img2.replaced)
	assert.Equal(t, []string{"doc.pdf"}, doc.saves)
}

func TestRecompressor_SkipsFailingImages(t *testing.T) {
	good, goodImg := imageObject(3)
	bad, badImg := imageObject(5)
	stuck, stuckImg := imageObject(8)
	stuckImg.replaceErr = errors.New("read-only stream")
	doc := &fakeDocument{objects: []compressionDomain.Object{bad, good, stuck}}
	r := NewRecompressor(&fakeOpener{doc: doc}, &stubCodec{failing: map[int]bool{5: true}}, nil)

	altered, err := r.Recompress("doc.pdf", 80)
	require.NoError(t, err)

	assert.Equal(t, 1, altered)
	assert.NotNil(t, goodImg.replaced)
	assert.Nil(t, badImg.replaced)
	assert.Len(t, doc.saves, 1)
}

func TestRecompressor_NoImagesDoesNotSave(t *testing.T) {
	doc := &fakeDocument{objects: []compressionDomain.Object{
		{Number: 1, Kind: compressionDomain.KindOther},
		{Number: 2, Kind: compressionDomain.KindOther},
	}}
	r := NewRecompressor(&fakeOpener{doc: doc}, &stubCodec{}, nil)

	altered, err := r.Recompress("doc.pdf", 80)
	require.NoError(t, err)

	assert.Zero(t, altered)
	assert.Empty(t, doc.saves)
}

func TestRecompressor_AllImagesFailDoesNotSave(t *testing.T) {
	obj, _ := imageObject(2)
	doc := &fakeDocument{objects: []compressionDomain.Object{obj}}
	r := NewRecompressor(&fakeOpener{doc: doc}, &stubCodec{failing: map[int]bool{2: true}}, nil)

	altered, err := r.Recompress("doc.pdf", 80)
	require.NoError(t, err)

	assert.Zero(t, altered)
	assert.Empty(t, doc.saves)
}

func TestRecompressor_OpenFailureIsMalformed(t *testing.T) {
	r := NewRecompressor(&fakeOpener{err: errors.New("xref table broken")}, &stubCodec{}, nil)

	altered, err := r.Recompress("broken.pdf", 80)

	assert.Zero(t, altered)
	assert.ErrorIs(t, err, common.ErrMalformedDocument)
	assert.Contains(t, err.Error(), "xref table broken")
}

func TestRecompressor_SaveFailure(t *testing.T) {
	obj, _ := imageObject(2)
	doc := &fakeDocument{objects: []compressionDomain.Object{obj}, saveErr: errors.New("disk full")}
	r := NewRecompressor(&fakeOpener{doc: doc}, &stubCodec{}, nil)

	altered, err := r.Recompress("doc.pdf", 80)

	assert.Zero(t, altered)
	var compErr *common.CompressionError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "save", compErr.Operation)
	assert.Equal(t, "doc.pdf", compErr.FilePath)
}
