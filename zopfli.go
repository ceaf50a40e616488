package assetcompress

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"
	"math/bits"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

const (
	zopfliWindow      = 32768
	zopfliWindowMask  = zopfliWindow - 1
	zopfliMinMatch    = 3
	zopfliMaxMatch    = 258
	zopfliHashBits    = 15
	zopfliMaxChain    = 1024
	zopfliMasterBlock = 1 << 20

	// Segments shorter than this many tokens are not split further.
	zopfliMinSplit = 10

	storedBlockMax = 65535
)

var (
	deflateLengthBase = [29]int{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	deflateLengthExtra = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
	deflateDistBase = [30]int{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
	}
	deflateDistExtra = [30]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
	codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

	// symbol index (0-28) of each match length, and (0-29) of each distance
	lengthSymbol [zopfliMaxMatch + 1]uint8
	distSymbol   [zopfliWindow + 1]uint8
)

func init() {
	for s, base := range deflateLengthBase[:28] {
		for l := base; l < base+1<<deflateLengthExtra[s]; l++ {
			lengthSymbol[l] = uint8(s)
		}
	}
	lengthSymbol[zopfliMaxMatch] = 28

	for s, base := range deflateDistBase {
		for d := base; d < base+1<<deflateDistExtra[s] && d <= zopfliWindow; d++ {
			distSymbol[d] = uint8(s)
		}
	}
}

// gzipHeader is a minimal RFC 1952 header: no name, no mtime, maximum
// compression, unknown OS.
var gzipHeader = []byte{0x1f, 0x8b, 8, 0, 0, 0, 0, 0, 2, 255}

// zopfliCodec is a gzip encoder in the manner of zopfli. It finds an
// optimal LZ77 parse under an entropy cost model, re-estimates the model
// from each parse for NumIterations rounds, and splits the result into
// deflate blocks where separate Huffman tables pay for themselves. The
// output is standard gzip.
type zopfliCodec struct {
	opts ZopfliOptions
	log  zerolog.Logger
}

func newZopfliCodec(opts ZopfliOptions, log zerolog.Logger) (*zopfliCodec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &zopfliCodec{opts: opts.withDefaults(), log: log}, nil
}

// Compress returns the zopfli stream for data, or the gzip level 9 stream
// when that is smaller.
func (z *zopfliCodec) Compress(data []byte) ([]byte, error) {
	w := &bitWriter{}
	z.deflate(w, data)
	w.align()

	out := make([]byte, 0, len(gzipHeader)+len(w.buf)+8)
	out = append(out, gzipHeader...)
	out = append(out, w.buf...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(data))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))

	ref, err := gzipBest(data)
	if err != nil {
		return nil, err
	}
	if len(ref) < len(out) {
		if z.opts.Verbose || z.opts.VerboseMore {
			z.log.Debug().Int("zopfli", len(out)).Int("gzip", len(ref)).Msg("zopfli kept gzip level 9 stream")
		}
		return ref, nil
	}
	return out, nil
}

func gzipBest(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reads the gzip stream produced by Compress.
func (z *zopfliCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// deflate writes data as raw deflate blocks, one master block at a time.
func (z *zopfliCodec) deflate(w *bitWriter, data []byte) {
	if len(data) == 0 {
		writeBlock(w, data, &lzStore{}, 0, 0, true)
		return
	}
	for s := 0; s < len(data); s += zopfliMasterBlock {
		e := min(s+zopfliMasterBlock, len(data))
		mt := findMatches(data, s, e)
		blocks := z.blocks(data, mt, s, e)
		for i, b := range blocks {
			writeBlock(w, data, b.st, b.a, b.b, e == len(data) && i == len(blocks)-1)
		}
	}
}

// zopfliBlock is the token range [a, b) of st written as one deflate block.
type zopfliBlock struct {
	st   *lzStore
	a, b int
}

// blocks parses data[s:e] and splits it. By default the split points come
// from a greedy parse and each block is parsed optimally on its own. With
// BlockSplittingLast the whole range is parsed first and the optimal
// tokens are split.
func (z *zopfliCodec) blocks(data []byte, mt *matchTable, s, e int) []zopfliBlock {
	var out []zopfliBlock
	if z.opts.BlockSplittingLast {
		st := z.optimalParse(data, mt, s, e)
		a := 0
		for _, b := range append(z.splitPoints(st), len(st.litLens)) {
			out = append(out, zopfliBlock{st: st, a: a, b: b})
			a = b
		}
	} else {
		greedy := greedyParse(data, mt, s, e)
		start := s
		for _, tok := range append(z.splitPoints(greedy), len(greedy.litLens)) {
			end := greedy.posAt(tok)
			st := z.optimalParse(data, mt, start, end)
			out = append(out, zopfliBlock{st: st, a: 0, b: len(st.litLens)})
			start = end
		}
	}

	if z.opts.VerboseMore {
		for i, b := range out {
			z.log.Debug().
				Int("block", i).
				Int("start", b.st.posAt(b.a)).
				Int("end", b.st.posAt(b.b)).
				Int("bits", blockBits(b.st, b.a, b.b)).
				Msg("zopfli block split")
		}
	}
	return out
}

// optimalParse runs NumIterations rounds of shortest-path parsing over
// data[s:e], each round costed by the symbol statistics of the previous
// one, and keeps the cheapest parse. It stops early once a round no longer
// changes the cost.
func (z *zopfliCodec) optimalParse(data []byte, mt *matchTable, s, e int) *lzStore {
	greedy := greedyParse(data, mt, s, e)
	lit, dist := greedy.counts(0, len(greedy.litLens))
	cm := newCostModel(&lit, &dist)

	p := newParser(e - s)
	best, bestBits := greedy, blockBits(greedy, 0, len(greedy.litLens))
	last := -1
	for i := 1; i <= z.opts.NumIterations; i++ {
		st := p.run(data, mt, s, e, cm)
		cost := blockBits(st, 0, len(st.litLens))
		if z.opts.Verbose || z.opts.VerboseMore {
			z.log.Debug().
				Int("iteration", i).
				Int("start", s).
				Int("end", e).
				Int("bits", cost).
				Msg("zopfli pass")
		}
		if cost < bestBits {
			best, bestBits = st, cost
		}
		if cost == last {
			break
		}
		last = cost
		lit, dist = st.counts(0, len(st.litLens))
		cm = newCostModel(&lit, &dist)
	}
	return best
}

// splitPoints returns the token indices where st should start a new block,
// ascending. Each round splits the largest unsplit segment at the point
// that minimizes the estimated size of its two halves.
func (z *zopfliCodec) splitPoints(st *lzStore) []int {
	n := len(st.litLens)
	if z.opts.DisableBlockSplitting || z.opts.BlockSplittingMax == 1 || n < zopfliMinSplit {
		return nil
	}

	var splits []int
	done := make(map[int]bool)
	lstart, lend := 0, n
	for len(splits)+1 < z.opts.BlockSplittingMax {
		pos, cost := findMinimum(func(i int) int {
			return blockBits(st, lstart, i) + blockBits(st, i, lend)
		}, lstart+1, lend)

		if cost >= blockBits(st, lstart, lend) || pos == lstart+1 {
			done[lstart] = true
		} else {
			splits = append(splits, pos)
			sort.Ints(splits)
		}

		var ok bool
		if lstart, lend, ok = largestSegment(splits, done, n); !ok {
			break
		}
	}
	return splits
}

func largestSegment(splits []int, done map[int]bool, n int) (int, int, bool) {
	var a, b, size int
	prev := 0
	for i := 0; i <= len(splits); i++ {
		end := n
		if i < len(splits) {
			end = splits[i]
		}
		if !done[prev] && end-prev >= zopfliMinSplit && end-prev > size {
			a, b, size = prev, end, end-prev
		}
		prev = end
	}
	return a, b, size > 0
}

// findMinimum returns the i in [start, end) minimizing f. Short ranges are
// scanned; long ones are sampled and narrowed around the best sample.
func findMinimum(f func(int) int, start, end int) (int, int) {
	if end-start <= 1024 {
		pos, best := start, math.MaxInt
		for i := start; i < end; i++ {
			if v := f(i); v < best {
				pos, best = i, v
			}
		}
		return pos, best
	}

	const samples = 9
	var p [samples]int
	pos, last := start, math.MaxInt
	for end-start > samples {
		bi, best := 0, math.MaxInt
		for i := range p {
			p[i] = start + (i+1)*((end-start)/(samples+1))
			if v := f(p[i]); v < best {
				bi, best = i, v
			}
		}
		if best > last {
			break
		}
		if bi > 0 {
			start = p[bi-1]
		}
		if bi < samples-1 {
			end = p[bi+1]
		}
		pos, last = p[bi], best
	}
	return pos, last
}

// lzStore is a sequence of LZ77 tokens. A token with dist 0 is the literal
// byte litLen; otherwise it copies litLen bytes from dist bytes back.
type lzStore struct {
	litLens []uint16
	dists   []uint16
	pos     []int
	end     int
}

func (st *lzStore) add(pos int, litLen, dist uint16) {
	st.litLens = append(st.litLens, litLen)
	st.dists = append(st.dists, dist)
	st.pos = append(st.pos, pos)
}

// posAt is the input offset where token i starts, or the end of the input
// covered by st when i is past the last token.
func (st *lzStore) posAt(i int) int {
	if i < len(st.pos) {
		return st.pos[i]
	}
	return st.end
}

// counts returns the symbol histograms of tokens [a, b) plus end of block.
func (st *lzStore) counts(a, b int) (lit [286]int, dist [30]int) {
	for i := a; i < b; i++ {
		if st.dists[i] == 0 {
			lit[st.litLens[i]]++
			continue
		}
		lit[257+int(lengthSymbol[st.litLens[i]])]++
		dist[distSymbol[st.dists[i]]]++
	}
	lit[256] = 1
	return lit, dist
}

func greedyParse(data []byte, mt *matchTable, s, e int) *lzStore {
	st := &lzStore{end: e}
	for p := s; p < e; {
		if l, d := mt.longest(p, e-p); l >= zopfliMinMatch {
			st.add(p, uint16(l), d)
			p += l
			continue
		}
		st.add(p, uint16(data[p]), 0)
		p++
	}
	return st
}

// matchTable holds, for every position of a master block, the matches
// worth considering: pairs of strictly increasing length, each with the
// smallest distance that reaches it.
type matchTable struct {
	base  int
	off   []int32
	lens  []uint16
	dists []uint16
}

func findMatches(data []byte, start, end int) *matchTable {
	mt := &matchTable{base: start, off: make([]int32, end-start+1)}

	head := make([]int32, 1<<zopfliHashBits)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, zopfliWindow)

	for p := max(0, start-zopfliWindow); p < end; p++ {
		if p >= start {
			mt.off[p-start] = int32(len(mt.lens))
		}
		if p+zopfliMinMatch > len(data) {
			continue
		}
		h := hash3(data[p:])
		if p >= start && end-p >= zopfliMinMatch {
			mt.search(data, p, end, head[h], prev)
		}
		prev[p&zopfliWindowMask] = head[h]
		head[h] = int32(p)
	}
	mt.off[end-start] = int32(len(mt.lens))
	return mt
}

func hash3(b []byte) uint32 {
	return (uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])) * 2654435761 >> (32 - zopfliHashBits)
}

// search walks the hash chain from cand, nearest first, recording every
// match longer than the ones before it.
func (mt *matchTable) search(data []byte, p, end int, cand int32, prev []int32) {
	limit := min(zopfliMaxMatch, end-p)
	best := zopfliMinMatch - 1
	for chain := 0; cand >= 0 && chain < zopfliMaxChain; chain++ {
		c := int(cand)
		dist := p - c
		if dist > zopfliWindow {
			return
		}
		if data[c+best] == data[p+best] {
			l := 0
			for l < limit && data[c+l] == data[p+l] {
				l++
			}
			if l > best {
				mt.lens = append(mt.lens, uint16(l))
				mt.dists = append(mt.dists, uint16(dist))
				best = l
				if l == limit {
					return
				}
			}
		}
		next := prev[c&zopfliWindowMask]
		if next >= cand {
			return
		}
		cand = next
	}
}

func (mt *matchTable) at(p int) ([]uint16, []uint16) {
	i := p - mt.base
	a, b := mt.off[i], mt.off[i+1]
	return mt.lens[a:b], mt.dists[a:b]
}

// longest returns the longest match at p no longer than limit, or 0.
func (mt *matchTable) longest(p, limit int) (int, uint16) {
	ml, md := mt.at(p)
	if len(ml) == 0 {
		return 0, 0
	}
	l := min(int(ml[len(ml)-1]), limit)
	if l < zopfliMinMatch {
		return 0, 0
	}
	for k := range ml {
		if int(ml[k]) >= l {
			return l, md[k]
		}
	}
	return 0, 0
}

// costModel estimates the bits each symbol costs from the entropy of a
// previous parse.
type costModel struct {
	lit     [286]float64
	dist    [30]float64
	lenCost [zopfliMaxMatch + 1]float64
}

func newCostModel(lit *[286]int, dist *[30]int) *costModel {
	cm := &costModel{}
	entropyBits(lit[:], cm.lit[:])
	entropyBits(dist[:], cm.dist[:])
	for l := zopfliMinMatch; l <= zopfliMaxMatch; l++ {
		s := lengthSymbol[l]
		cm.lenCost[l] = cm.lit[257+int(s)] + float64(deflateLengthExtra[s])
	}
	return cm
}

func entropyBits(counts []int, out []float64) {
	sum := 0
	for _, c := range counts {
		sum += c
	}
	log2sum := math.Log2(float64(sum))
	if sum == 0 {
		log2sum = math.Log2(float64(len(counts)))
	}
	for i, c := range counts {
		if c == 0 {
			out[i] = log2sum
		} else {
			out[i] = log2sum - math.Log2(float64(c))
		}
	}
}

func (cm *costModel) distCost(d uint16) float64 {
	s := distSymbol[d]
	return cm.dist[s] + float64(deflateDistExtra[s])
}

// parser finds the cheapest token path through a block.
type parser struct {
	cost  []float64
	lens  []uint16
	dists []uint16
}

func newParser(n int) *parser {
	return &parser{
		cost:  make([]float64, n+1),
		lens:  make([]uint16, n+1),
		dists: make([]uint16, n+1),
	}
}

func (p *parser) relax(i, l int, d uint16, c float64) {
	if c < p.cost[i+l] {
		p.cost[i+l] = c
		p.lens[i+l] = uint16(l)
		p.dists[i+l] = d
	}
}

func (p *parser) run(data []byte, mt *matchTable, s, e int, cm *costModel) *lzStore {
	n := e - s
	p.cost[0] = 0
	for i := 1; i <= n; i++ {
		p.cost[i] = math.Inf(1)
	}

	for i := 0; i < n; i++ {
		c := p.cost[i]
		at := s + i
		p.relax(i, 1, 0, c+cm.lit[data[at]])

		ml, md := mt.at(at)
		if len(ml) == 0 {
			continue
		}
		maxLen := min(int(ml[len(ml)-1]), n-i)
		if maxLen < zopfliMinMatch {
			continue
		}
		// Long repetitions only take the longest match.
		if maxLen == zopfliMaxMatch {
			d := md[len(md)-1]
			p.relax(i, zopfliMaxMatch, d, c+cm.lenCost[zopfliMaxMatch]+cm.distCost(d))
			continue
		}
		l := zopfliMinMatch
		for k := 0; k < len(ml) && l <= maxLen; k++ {
			top := min(int(ml[k]), maxLen)
			dc := c + cm.distCost(md[k])
			for ; l <= top; l++ {
				p.relax(i, l, md[k], dc+cm.lenCost[l])
			}
		}
	}

	var ends []int
	for j := n; j > 0; j -= int(p.lens[j]) {
		ends = append(ends, j)
	}
	st := &lzStore{end: e}
	for k := len(ends) - 1; k >= 0; k-- {
		j := ends[k]
		l := int(p.lens[j])
		at := s + j - l
		if l == 1 {
			st.add(at, uint16(data[at]), 0)
		} else {
			st.add(at, uint16(l), p.dists[j])
		}
	}
	return st
}

// blockBits is the size of tokens [a, b) as the cheapest of a stored,
// fixed or dynamic deflate block.
func blockBits(st *lzStore, a, b int) int {
	lit, dist := st.counts(a, b)
	code, header := dynamicCode(&lit, &dist)
	return min(
		3+header.bits()+code.dataBits(&lit, &dist),
		3+fixedCode.dataBits(&lit, &dist),
		storedBits(st.posAt(b)-st.posAt(a)),
	)
}

func storedBits(n int) int {
	chunks := max(1, (n+storedBlockMax-1)/storedBlockMax)
	return chunks*(3+7+32) + 8*n
}

func writeBlock(w *bitWriter, data []byte, st *lzStore, a, b int, final bool) {
	lit, dist := st.counts(a, b)
	code, header := dynamicCode(&lit, &dist)
	dynamic := 3 + header.bits() + code.dataBits(&lit, &dist)
	fixed := 3 + fixedCode.dataBits(&lit, &dist)
	from, to := st.posAt(a), st.posAt(b)
	stored := storedBits(to - from)

	switch {
	case stored < dynamic && stored < fixed:
		writeStored(w, data[from:to], final)
	case fixed <= dynamic:
		w.writeBits(finalBit(final), 1)
		w.writeBits(1, 2)
		fixedCode.writeTokens(w, st, a, b)
	default:
		w.writeBits(finalBit(final), 1)
		w.writeBits(2, 2)
		header.write(w)
		code.writeTokens(w, st, a, b)
	}
}

func writeStored(w *bitWriter, data []byte, final bool) {
	for {
		n := min(len(data), storedBlockMax)
		w.writeBits(finalBit(final && n == len(data)), 1)
		w.writeBits(0, 2)
		w.align()
		w.writeBits(uint64(n), 16)
		w.writeBits(uint64(^uint16(n)), 16)
		w.buf = append(w.buf, data[:n]...)
		data = data[n:]
		if len(data) == 0 {
			return
		}
	}
}

func finalBit(final bool) uint64 {
	if final {
		return 1
	}
	return 0
}

// huffmanCode holds code lengths and bit-reversed codes for the literal and
// distance alphabets.
type huffmanCode struct {
	litLens, distLens   []uint8
	litCodes, distCodes []uint16
}

func newHuffmanCode(litLens, distLens []uint8) *huffmanCode {
	return &huffmanCode{
		litLens:   litLens,
		distLens:  distLens,
		litCodes:  canonicalCodes(litLens),
		distCodes: canonicalCodes(distLens),
	}
}

var fixedCode = func() *huffmanCode {
	lit := make([]uint8, 288)
	for i := range lit {
		switch {
		case i < 144:
			lit[i] = 8
		case i < 256:
			lit[i] = 9
		case i < 280:
			lit[i] = 7
		default:
			lit[i] = 8
		}
	}
	dist := make([]uint8, 30)
	for i := range dist {
		dist[i] = 5
	}
	return newHuffmanCode(lit, dist)
}()

func dynamicCode(lit *[286]int, dist *[30]int) (*huffmanCode, *dynamicHeader) {
	litLens := huffmanLengths(lit[:], 15)
	distLens := huffmanLengths(dist[:], 15)
	ensureTwoCodes(litLens)
	ensureTwoCodes(distLens)
	return newHuffmanCode(litLens, distLens), newDynamicHeader(litLens, distLens)
}

// ensureTwoCodes gives an alphabet at least two codes so decoders always
// see a complete code.
func ensureTwoCodes(lens []uint8) {
	var used []int
	for i, l := range lens {
		if l > 0 {
			used = append(used, i)
		}
	}
	switch {
	case len(used) == 0:
		lens[0], lens[1] = 1, 1
	case len(used) == 1 && used[0] == 0:
		lens[1] = 1
	case len(used) == 1:
		lens[0] = 1
	}
}

func (c *huffmanCode) dataBits(lit *[286]int, dist *[30]int) int {
	n := 0
	for s, f := range lit {
		if f == 0 {
			continue
		}
		n += f * int(c.litLens[s])
		if s > 256 {
			n += f * int(deflateLengthExtra[s-257])
		}
	}
	for s, f := range dist {
		if f > 0 {
			n += f * (int(c.distLens[s]) + int(deflateDistExtra[s]))
		}
	}
	return n
}

func (c *huffmanCode) writeTokens(w *bitWriter, st *lzStore, a, b int) {
	for i := a; i < b; i++ {
		ll, d := st.litLens[i], st.dists[i]
		if d == 0 {
			w.writeCode(c.litCodes[ll], c.litLens[ll])
			continue
		}
		ls := int(lengthSymbol[ll])
		w.writeCode(c.litCodes[257+ls], c.litLens[257+ls])
		w.writeBits(uint64(int(ll)-deflateLengthBase[ls]), uint(deflateLengthExtra[ls]))
		ds := int(distSymbol[d])
		w.writeCode(c.distCodes[ds], c.distLens[ds])
		w.writeBits(uint64(int(d)-deflateDistBase[ds]), uint(deflateDistExtra[ds]))
	}
	w.writeCode(c.litCodes[256], c.litLens[256])
}

// dynamicHeader is the run-length coded description of a dynamic block's
// code lengths.
type dynamicHeader struct {
	hlit, hdist, hclen int
	clLens             [19]uint8
	clCodes            []uint16
	syms, extras       []uint8
}

func newDynamicHeader(litLens, distLens []uint8) *dynamicHeader {
	h := &dynamicHeader{hlit: 286, hdist: 30}
	for h.hlit > 257 && litLens[h.hlit-1] == 0 {
		h.hlit--
	}
	for h.hdist > 1 && distLens[h.hdist-1] == 0 {
		h.hdist--
	}

	all := make([]uint8, 0, h.hlit+h.hdist)
	all = append(all, litLens[:h.hlit]...)
	all = append(all, distLens[:h.hdist]...)
	h.runLength(all)

	var freq [19]int
	for _, s := range h.syms {
		freq[s]++
	}
	cl := huffmanLengths(freq[:], 7)
	ensureTwoCodes(cl)
	copy(h.clLens[:], cl)
	h.clCodes = canonicalCodes(h.clLens[:])

	h.hclen = 19
	for h.hclen > 4 && h.clLens[codeLengthOrder[h.hclen-1]] == 0 {
		h.hclen--
	}
	return h
}

func (h *dynamicHeader) emit(sym, extra uint8) {
	h.syms = append(h.syms, sym)
	h.extras = append(h.extras, extra)
}

// runLength codes lens with symbols 16 (repeat previous), 17 and 18 (runs
// of zeros).
func (h *dynamicHeader) runLength(lens []uint8) {
	for i := 0; i < len(lens); {
		v := lens[i]
		run := 1
		for i+run < len(lens) && lens[i+run] == v {
			run++
		}
		i += run

		switch {
		case v == 0 && run >= 3:
			for run >= 11 {
				r := min(run, 138)
				h.emit(18, uint8(r-11))
				run -= r
			}
			if run >= 3 {
				h.emit(17, uint8(run-3))
				run = 0
			}
		case v != 0 && run >= 4:
			h.emit(v, 0)
			run--
			for run >= 3 {
				r := min(run, 6)
				h.emit(16, uint8(r-3))
				run -= r
			}
		}
		for ; run > 0; run-- {
			h.emit(v, 0)
		}
	}
}

func clExtraBits(sym uint8) uint {
	switch sym {
	case 16:
		return 2
	case 17:
		return 3
	case 18:
		return 7
	}
	return 0
}

func (h *dynamicHeader) bits() int {
	n := 5 + 5 + 4 + 3*h.hclen
	for _, s := range h.syms {
		n += int(h.clLens[s]) + int(clExtraBits(s))
	}
	return n
}

func (h *dynamicHeader) write(w *bitWriter) {
	w.writeBits(uint64(h.hlit-257), 5)
	w.writeBits(uint64(h.hdist-1), 5)
	w.writeBits(uint64(h.hclen-4), 4)
	for i := 0; i < h.hclen; i++ {
		w.writeBits(uint64(h.clLens[codeLengthOrder[i]]), 3)
	}
	for i, s := range h.syms {
		w.writeCode(h.clCodes[s], h.clLens[s])
		w.writeBits(uint64(h.extras[i]), clExtraBits(s))
	}
}

// huffmanLengths returns code lengths for freqs no longer than maxBits.
// Unused symbols get length 0.
func huffmanLengths(freqs []int, maxBits int) []uint8 {
	lens := make([]uint8, len(freqs))
	var syms []int
	for s, f := range freqs {
		if f > 0 {
			syms = append(syms, s)
		}
	}
	switch len(syms) {
	case 0:
		return lens
	case 1:
		lens[syms[0]] = 1
		return lens
	}

	sort.SliceStable(syms, func(i, j int) bool { return freqs[syms[i]] < freqs[syms[j]] })
	ws := make([]int, len(syms))
	for i, s := range syms {
		ws[i] = freqs[s]
	}

	depths := huffmanDepths(ws)
	longest := 0
	for _, d := range depths {
		longest = max(longest, d)
	}
	if longest > maxBits {
		depths = packageMerge(ws, maxBits)
	}
	for i, s := range syms {
		lens[s] = uint8(depths[i])
	}
	return lens
}

// huffmanDepths builds an unrestricted Huffman tree over ws, sorted
// ascending, and returns each leaf's depth.
func huffmanDepths(ws []int) []int {
	n := len(ws)
	weight := make([]int, 2*n-1)
	parent := make([]int, 2*n-1)
	copy(weight, ws)

	leaf, inner, next := 0, n, n
	pick := func() int {
		if leaf < n && (inner >= next || weight[leaf] <= weight[inner]) {
			leaf++
			return leaf - 1
		}
		inner++
		return inner - 1
	}
	for ; next < 2*n-1; next++ {
		a, b := pick(), pick()
		weight[next] = weight[a] + weight[b]
		parent[a], parent[b] = next, next
	}

	depth := make([]int, 2*n-1)
	for i := 2*n - 3; i >= 0; i-- {
		depth[i] = depth[parent[i]] + 1
	}
	return depth[:n]
}

// packageMerge computes length-limited code lengths for ws, sorted
// ascending, with the package-merge algorithm.
func packageMerge(ws []int, maxBits int) []int {
	type item struct {
		w      int
		leaves []int32
	}
	n := len(ws)
	leaves := make([]item, n)
	for i, w := range ws {
		leaves[i] = item{w: w, leaves: []int32{int32(i)}}
	}

	list := leaves
	for level := 1; level < maxBits; level++ {
		packages := make([]item, 0, len(list)/2)
		for i := 0; i+1 < len(list); i += 2 {
			ls := make([]int32, 0, len(list[i].leaves)+len(list[i+1].leaves))
			ls = append(ls, list[i].leaves...)
			ls = append(ls, list[i+1].leaves...)
			packages = append(packages, item{w: list[i].w + list[i+1].w, leaves: ls})
		}
		merged := make([]item, 0, n+len(packages))
		i, j := 0, 0
		for i < n || j < len(packages) {
			if j >= len(packages) || (i < n && leaves[i].w <= packages[j].w) {
				merged = append(merged, leaves[i])
				i++
			} else {
				merged = append(merged, packages[j])
				j++
			}
		}
		list = merged
	}

	depths := make([]int, n)
	for _, it := range list[:2*n-2] {
		for _, l := range it.leaves {
			depths[l]++
		}
	}
	return depths
}

// canonicalCodes assigns deflate canonical codes to lens, bit-reversed for
// LSB-first output.
func canonicalCodes(lens []uint8) []uint16 {
	var count [16]int
	for _, l := range lens {
		if l > 0 {
			count[l]++
		}
	}
	var next [16]int
	code := 0
	for b := 1; b < 16; b++ {
		code = (code + count[b-1]) << 1
		next[b] = code
	}

	codes := make([]uint16, len(lens))
	for s, l := range lens {
		if l == 0 {
			continue
		}
		codes[s] = bits.Reverse16(uint16(next[l])) >> (16 - l)
		next[l]++
	}
	return codes
}

// bitWriter packs deflate bits LSB first.
type bitWriter struct {
	buf []byte
	acc uint64
	n   uint
}

func (w *bitWriter) writeBits(v uint64, nb uint) {
	w.acc |= v << w.n
	w.n += nb
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.n -= 8
	}
}

func (w *bitWriter) writeCode(code uint16, n uint8) {
	w.writeBits(uint64(code), uint(n))
}

func (w *bitWriter) align() {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.n = 0, 0
	}
}
