package compression

import (
	"errors"
	"image"

	compressionDomain "pdfshrink/internal/domain/compression"
)

type fakeImage struct {
	info       compressionDomain.ImageInfo
	payload    []byte
	payloadErr error
	replaceErr error
	replaced   []byte
}

func (f *fakeImage) Info() compressionDomain.ImageInfo { return f.info }

func (f *fakeImage) Payload() ([]byte, error) {
	if f.payloadErr != nil {
		return nil, f.payloadErr
	}
	return f.payload, nil
}

func (f *fakeImage) Replace(jpeg []byte) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = jpeg
	return nil
}

type fakeDocument struct {
	objects []compressionDomain.Object
	saveErr error
	saves   []string
}

func (d *fakeDocument) Objects() []compressionDomain.Object { return d.objects }

func (d *fakeDocument) Save(path string) error {
	if d.saveErr != nil {
		return d.saveErr
	}
	d.saves = append(d.saves, path)
	return nil
}

type fakeOpener struct {
	doc    *fakeDocument
	err    error
	opened int
}

func (o *fakeOpener) Open(string) (compressionDomain.Document, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

// stubCodec fails for images whose object number is listed in failing.
type stubCodec struct {
	failing   map[int]bool
	qualities []int
}

var errStubDecode = errors.New("stub decode failure")

func (c *stubCodec) Decode(stream compressionDomain.ImageStream) (image.Image, error) {
	if c.failing[stream.Info().ObjectNumber] {
		return nil, errStubDecode
	}
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func (c *stubCodec) EncodeJPEG(_ image.Image, quality int) ([]byte, error) {
	c.qualities = append(c.qualities, quality)
	return []byte{0xff, 0xd8, byte(quality)}, nil
}

// pass scripts one Recompress call of fakeRecompressor.
type pass struct {
	altered int
	size    int64
	err     error
}

// fakeRecompressor replays scripted passes and exposes the current file size
// through its sizer.
type fakeRecompressor struct {
	size      int64
	passes    []pass
	qualities []int
}

func (f *fakeRecompressor) Recompress(_ string, quality int) (int, error) {
	f.qualities = append(f.qualities, quality)
	if len(f.passes) == 0 {
		return 0, nil
	}
	p := f.passes[0]
	f.passes = f.passes[1:]
	if p.err != nil {
		return 0, p.err
	}
	if p.altered > 0 {
		f.size = p.size
	}
	return p.altered, nil
}

func (f *fakeRecompressor) sizer(string) (int64, error) {
	return f.size, nil
}

type recordingObserver struct {
	started  int
	attempts []int
	finished []compressionDomain.Attempt
	result   *Result
}

func (o *recordingObserver) ReductionStarted(int64, int64) { o.started++ }

func (o *recordingObserver) AttemptStarted(quality int) {
	o.attempts = append(o.attempts, quality)
}

func (o *recordingObserver) AttemptFinished(attempt compressionDomain.Attempt) {
	o.finished = append(o.finished, attempt)
}

func (o *recordingObserver) ReductionFinished(result *Result) { o.result = result }
