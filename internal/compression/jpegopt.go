package compression

import (
	"bytes"
	"errors"
	"fmt"
)

// JPEG markers used by the Huffman optimizer.
const (
	markerSOF0  = 0xc0
	markerSOF1  = 0xc1
	markerSOF2  = 0xc2
	markerDHT   = 0xc4
	markerSOF15 = 0xcf
	markerRST0  = 0xd0
	markerRST7  = 0xd7
	markerSOI   = 0xd8
	markerEOI   = 0xd9
	markerSOS   = 0xda
	markerDRI   = 0xdd
	markerTEM   = 0x01
)

var (
	errUnsupportedJPEG = errors.New("jpeg layout not supported by huffman optimizer")
	errCorruptJPEG     = errors.New("corrupt jpeg data")
)

// optimizeHuffman rewrites a baseline sequential JPEG with Huffman tables
// built from the image's own symbol statistics. The coefficients are not
// touched, so the decoded pixels are identical. Progressive, arithmetic
// coded, multi-scan and restart-interval files return errUnsupportedJPEG.
func optimizeHuffman(src []byte) ([]byte, error) {
	if len(src) < 4 || src[0] != 0xff || src[1] != markerSOI {
		return nil, fmt.Errorf("%w: missing SOI", errCorruptJPEG)
	}

	var (
		header bytes.Buffer
		frame  *jpegFrame
		tables [2][4]*huffDecoder
	)

	p := 2
	for {
		m, next, err := readMarker(src, p)
		if err != nil {
			return nil, err
		}
		p = next

		if m == markerSOI || m == markerEOI || m == markerTEM || (m >= markerRST0 && m <= markerRST7) {
			return nil, fmt.Errorf("%w: unexpected marker 0x%02x before scan", errCorruptJPEG, m)
		}

		if p+2 > len(src) {
			return nil, fmt.Errorf("%w: truncated segment", errCorruptJPEG)
		}
		length := int(src[p])<<8 | int(src[p+1])
		if length < 2 || p+length > len(src) {
			return nil, fmt.Errorf("%w: bad segment length", errCorruptJPEG)
		}
		seg := src[p+2 : p+length]

		switch {
		case m == markerSOF0 || m == markerSOF1:
			if frame, err = parseFrame(seg); err != nil {
				return nil, err
			}
		case m == markerDHT:
			if err := parseDHT(seg, &tables); err != nil {
				return nil, err
			}
			p += length
			continue
		case m >= markerSOF2 && m <= markerSOF15:
			return nil, fmt.Errorf("%w: frame marker 0x%02x", errUnsupportedJPEG, m)
		case m == markerDRI:
			if len(seg) >= 2 && (seg[0] != 0 || seg[1] != 0) {
				return nil, fmt.Errorf("%w: restart interval", errUnsupportedJPEG)
			}
		case m == markerSOS:
			if frame == nil {
				return nil, fmt.Errorf("%w: scan before frame", errCorruptJPEG)
			}
			scan, err := parseScan(seg, frame, &tables)
			if err != nil {
				return nil, err
			}
			return rewriteScan(src, header.Bytes(), src[p:p+length], p+length, scan)
		}

		header.Write([]byte{0xff, m})
		header.Write(src[p : p+length])
		p += length
	}
}

// readMarker returns the marker at src[p:], skipping fill bytes, and the
// offset just past it.
func readMarker(src []byte, p int) (byte, int, error) {
	if p >= len(src) || src[p] != 0xff {
		return 0, 0, fmt.Errorf("%w: expected marker at offset %d", errCorruptJPEG, p)
	}
	for p < len(src) && src[p] == 0xff {
		p++
	}
	if p >= len(src) {
		return 0, 0, fmt.Errorf("%w: truncated marker", errCorruptJPEG)
	}
	return src[p], p + 1, nil
}

type jpegComponent struct {
	id   byte
	h, v int
}

type jpegFrame struct {
	width, height int
	components    []jpegComponent
	hmax, vmax    int
}

func parseFrame(seg []byte) (*jpegFrame, error) {
	if len(seg) < 6 {
		return nil, fmt.Errorf("%w: short frame header", errCorruptJPEG)
	}
	if seg[0] != 8 {
		return nil, fmt.Errorf("%w: %d-bit precision", errUnsupportedJPEG, seg[0])
	}
	f := &jpegFrame{
		height: int(seg[1])<<8 | int(seg[2]),
		width:  int(seg[3])<<8 | int(seg[4]),
	}
	n := int(seg[5])
	if n == 0 || len(seg) < 6+3*n || f.width == 0 || f.height == 0 {
		return nil, fmt.Errorf("%w: bad frame header", errCorruptJPEG)
	}
	for i := 0; i < n; i++ {
		c := seg[6+3*i:]
		comp := jpegComponent{id: c[0], h: int(c[1] >> 4), v: int(c[1] & 0x0f)}
		if comp.h < 1 || comp.h > 4 || comp.v < 1 || comp.v > 4 {
			return nil, fmt.Errorf("%w: bad sampling factors", errCorruptJPEG)
		}
		f.hmax = max(f.hmax, comp.h)
		f.vmax = max(f.vmax, comp.v)
		f.components = append(f.components, comp)
	}
	return f, nil
}

// huffDecoder holds a table in the MAXCODE/VALPTR/MINCODE form.
type huffDecoder struct {
	counts  [16]byte
	values  []byte
	maxcode [17]int32
	mincode [17]int32
	valptr  [17]int32
}

func newHuffDecoder(counts [16]byte, values []byte) *huffDecoder {
	d := &huffDecoder{counts: counts, values: values}
	code, k := int32(0), int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(counts[l-1])
		d.valptr[l] = k
		d.mincode[l] = code
		code += n
		k += n
		d.maxcode[l] = -1
		if n > 0 {
			d.maxcode[l] = code - 1
		}
		code <<= 1
	}
	return d
}

func (d *huffDecoder) decode(r *bitReader) (byte, error) {
	code := int32(0)
	for l := 1; l <= 16; l++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | int32(bit)
		if code <= d.maxcode[l] {
			i := d.valptr[l] + code - d.mincode[l]
			if int(i) >= len(d.values) {
				break
			}
			return d.values[i], nil
		}
	}
	return 0, fmt.Errorf("%w: bad huffman code", errCorruptJPEG)
}

func parseDHT(seg []byte, tables *[2][4]*huffDecoder) error {
	for len(seg) > 0 {
		if len(seg) < 17 {
			return fmt.Errorf("%w: short DHT", errCorruptJPEG)
		}
		class, id := int(seg[0]>>4), int(seg[0]&0x0f)
		if class > 1 || id > 3 {
			return fmt.Errorf("%w: bad DHT selector", errCorruptJPEG)
		}
		var counts [16]byte
		copy(counts[:], seg[1:17])
		total := 0
		for _, c := range counts {
			total += int(c)
		}
		if total > 256 || len(seg) < 17+total {
			return fmt.Errorf("%w: bad DHT length", errCorruptJPEG)
		}
		values := append([]byte(nil), seg[17:17+total]...)
		tables[class][id] = newHuffDecoder(counts, values)
		seg = seg[17+total:]
	}
	return nil
}

type scanComponent struct {
	dcID, acID int
	dc, ac     *huffDecoder
	blocks     int
	h, v       int
}

type jpegScan struct {
	components   []scanComponent
	mcusX, mcusY int
}

func parseScan(seg []byte, frame *jpegFrame, tables *[2][4]*huffDecoder) (*jpegScan, error) {
	if len(seg) < 1 {
		return nil, fmt.Errorf("%w: short SOS", errCorruptJPEG)
	}
	n := int(seg[0])
	if len(seg) != 1+2*n+3 {
		return nil, fmt.Errorf("%w: bad SOS length", errCorruptJPEG)
	}
	if n != len(frame.components) {
		return nil, fmt.Errorf("%w: scan covers %d of %d components", errUnsupportedJPEG, n, len(frame.components))
	}
	if ss, se, a := seg[1+2*n], seg[2+2*n], seg[3+2*n]; ss != 0 || se != 63 || a != 0 {
		return nil, fmt.Errorf("%w: not a sequential scan", errUnsupportedJPEG)
	}

	scan := &jpegScan{}
	for i := 0; i < n; i++ {
		id, sel := seg[1+2*i], seg[2+2*i]
		var comp *jpegComponent
		for j := range frame.components {
			if frame.components[j].id == id {
				comp = &frame.components[j]
			}
		}
		if comp == nil {
			return nil, fmt.Errorf("%w: unknown component %d", errCorruptJPEG, id)
		}
		sc := scanComponent{dcID: int(sel >> 4), acID: int(sel & 0x0f), h: comp.h, v: comp.v}
		if sc.dcID > 3 || sc.acID > 3 {
			return nil, fmt.Errorf("%w: bad table selector", errCorruptJPEG)
		}
		sc.dc, sc.ac = tables[0][sc.dcID], tables[1][sc.acID]
		if sc.dc == nil || sc.ac == nil {
			return nil, fmt.Errorf("%w: missing huffman table", errCorruptJPEG)
		}
		scan.components = append(scan.components, sc)
	}

	if n == 1 {
		// A single-component scan is never interleaved.
		scan.components[0].blocks = 1
		scan.mcusX = (frame.width + 7) / 8
		scan.mcusY = (frame.height + 7) / 8
		return scan, nil
	}
	for i := range scan.components {
		scan.components[i].blocks = scan.components[i].h * scan.components[i].v
	}
	scan.mcusX = (frame.width + 8*frame.hmax - 1) / (8 * frame.hmax)
	scan.mcusY = (frame.height + 8*frame.vmax - 1) / (8 * frame.vmax)
	return scan, nil
}

// symbolFunc receives every coded symbol of a scan in order along with
// the raw bits that follow it.
type symbolFunc func(class, id int, symbol byte, extra uint16, nextra uint8)

func (s *jpegScan) walk(data []byte, emit symbolFunc) error {
	r := &bitReader{data: data}
	for my := 0; my < s.mcusY; my++ {
		for mx := 0; mx < s.mcusX; mx++ {
			for _, c := range s.components {
				for b := 0; b < c.blocks; b++ {
					if err := walkBlock(r, c, emit); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func walkBlock(r *bitReader, c scanComponent, emit symbolFunc) error {
	sym, err := c.dc.decode(r)
	if err != nil {
		return err
	}
	if sym > 11 {
		return fmt.Errorf("%w: DC magnitude %d", errCorruptJPEG, sym)
	}
	extra, err := r.readBits(sym)
	if err != nil {
		return err
	}
	emit(0, c.dcID, sym, extra, sym)

	for k := 1; k < 64; {
		rs, err := c.ac.decode(r)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), rs&0x0f
		if size == 0 {
			emit(1, c.acID, rs, 0, 0)
			if run != 15 {
				return nil
			}
			k += 16
			continue
		}
		k += run
		if k > 63 || size > 10 {
			return fmt.Errorf("%w: AC coefficient out of range", errCorruptJPEG)
		}
		extra, err := r.readBits(size)
		if err != nil {
			return err
		}
		emit(1, c.acID, rs, extra, size)
		k++
	}
	return nil
}

// entropySegment returns the unstuffed scan data starting at src[p:] and
// the offset of the marker that ends it.
func entropySegment(src []byte, p int) ([]byte, int, error) {
	data := make([]byte, 0, len(src)-p)
	for p < len(src) {
		c := src[p]
		if c != 0xff {
			data = append(data, c)
			p++
			continue
		}
		if p+1 >= len(src) {
			return nil, 0, fmt.Errorf("%w: truncated scan", errCorruptJPEG)
		}
		switch n := src[p+1]; {
		case n == 0x00:
			data = append(data, 0xff)
			p += 2
		case n >= markerRST0 && n <= markerRST7:
			return nil, 0, fmt.Errorf("%w: restart marker", errUnsupportedJPEG)
		default:
			return data, p, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: missing EOI", errCorruptJPEG)
}

func rewriteScan(src, header, sos []byte, p int, scan *jpegScan) ([]byte, error) {
	data, end, err := entropySegment(src, p)
	if err != nil {
		return nil, err
	}
	if m, _, err := readMarker(src, end); err != nil || m != markerEOI {
		return nil, fmt.Errorf("%w: data after first scan", errUnsupportedJPEG)
	}

	var freq [2][4][256]int64
	var used [2][4]bool
	for _, c := range scan.components {
		used[0][c.dcID] = true
		used[1][c.acID] = true
	}
	err = scan.walk(data, func(class, id int, symbol byte, _ uint16, _ uint8) {
		freq[class][id][symbol]++
	})
	if err != nil {
		return nil, err
	}

	var (
		dht   bytes.Buffer
		codes [2][4]*huffEncoder
	)
	for class := 0; class < 2; class++ {
		for id := 0; id < 4; id++ {
			if !used[class][id] {
				continue
			}
			counts, values := optimalTable(freq[class][id])
			codes[class][id] = newHuffEncoder(counts, values)
			dht.WriteByte(byte(class<<4 | id))
			dht.Write(counts[:])
			dht.Write(values)
		}
	}

	w := &bitWriter{}
	err = scan.walk(data, func(class, id int, symbol byte, extra uint16, nextra uint8) {
		enc := codes[class][id]
		w.write(uint32(enc.code[symbol]), uint(enc.size[symbol]))
		if nextra > 0 {
			w.write(uint32(extra), uint(nextra))
		}
	})
	if err != nil {
		return nil, err
	}
	w.flush()

	var out bytes.Buffer
	out.Grow(len(src))
	out.Write([]byte{0xff, markerSOI})
	out.Write(header)
	out.Write([]byte{0xff, markerDHT, byte((dht.Len() + 2) >> 8), byte(dht.Len() + 2)})
	out.Write(dht.Bytes())
	out.Write([]byte{0xff, markerSOS})
	out.Write(sos)
	out.Write(w.buf.Bytes())
	out.Write([]byte{0xff, markerEOI})
	return out.Bytes(), nil
}

// optimalTable builds a length-limited Huffman table from symbol
// frequencies following ITU T.81 Annex K.2. One code point is reserved so
// no symbol is assigned the all-ones code.
func optimalTable(symbolFreq [256]int64) (counts [16]byte, values []byte) {
	var freq [257]int64
	copy(freq[:], symbolFreq[:])
	empty := true
	for _, f := range symbolFreq {
		if f > 0 {
			empty = false
			break
		}
	}
	if empty {
		freq[0] = 1
	}
	freq[256] = 1

	var codesize [257]int
	var others [257]int
	for i := range others {
		others[i] = -1
	}

	for {
		c1, c2 := -1, -1
		var v int64
		for i, f := range freq {
			if f != 0 && (c1 < 0 || f <= v) {
				v, c1 = f, i
			}
		}
		for i, f := range freq {
			if f != 0 && i != c1 && (c2 < 0 || f <= v) {
				v, c2 = f, i
			}
		}
		if c2 < 0 {
			break
		}

		freq[c1] += freq[c2]
		freq[c2] = 0

		codesize[c1]++
		for others[c1] >= 0 {
			c1 = others[c1]
			codesize[c1]++
		}
		others[c1] = c2

		codesize[c2]++
		for others[c2] >= 0 {
			c2 = others[c2]
			codesize[c2]++
		}
	}

	var bits [33]int
	for _, size := range codesize {
		if size > 0 {
			bits[min(size, 32)]++
		}
	}

	for i := 32; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}
	i := 16
	for bits[i] == 0 {
		i--
	}
	bits[i]--

	for l := 1; l <= 16; l++ {
		counts[l-1] = byte(bits[l])
	}
	for size := 1; size <= 32; size++ {
		for sym := 0; sym < 256; sym++ {
			if codesize[sym] == size {
				values = append(values, byte(sym))
			}
		}
	}
	return counts, values
}

type huffEncoder struct {
	code [256]uint16
	size [256]uint8
}

func newHuffEncoder(counts [16]byte, values []byte) *huffEncoder {
	e := &huffEncoder{}
	code, k := uint16(0), 0
	for l := 1; l <= 16; l++ {
		for i := 0; i < int(counts[l-1]); i++ {
			e.code[values[k]] = code
			e.size[values[k]] = uint8(l)
			code++
			k++
		}
		code <<= 1
	}
	return e
}

type bitReader struct {
	data  []byte
	pos   int
	cur   byte
	nbits uint
}

func (r *bitReader) readBit() (uint8, error) {
	if r.nbits == 0 {
		if r.pos >= len(r.data) {
			return 0, fmt.Errorf("%w: scan data exhausted", errCorruptJPEG)
		}
		r.cur = r.data[r.pos]
		r.pos++
		r.nbits = 8
	}
	r.nbits--
	return (r.cur >> r.nbits) & 1, nil
}

func (r *bitReader) readBits(n uint8) (uint16, error) {
	var v uint16
	for i := uint8(0); i < n; i++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint16(bit)
	}
	return v, nil
}

// bitWriter packs MSB-first bits and stuffs a zero after every 0xff.
type bitWriter struct {
	buf bytes.Buffer
	acc uint64
	n   uint
}

func (w *bitWriter) write(bits uint32, size uint) {
	w.acc = w.acc<<size | uint64(bits)&(1<<size-1)
	w.n += size
	for w.n >= 8 {
		b := byte(w.acc >> (w.n - 8))
		w.buf.WriteByte(b)
		if b == 0xff {
			w.buf.WriteByte(0)
		}
		w.n -= 8
	}
	w.acc &= 1<<w.n - 1
}

// flush pads the last byte with one bits.
func (w *bitWriter) flush() {
	if w.n > 0 {
		pad := 8 - w.n
		w.write(1<<pad-1, pad)
	}
}
