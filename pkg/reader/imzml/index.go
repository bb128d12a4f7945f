package imzml

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ImzKey/pkg/parallel"
)

const (
	indexTailSize = 4096
	maxLineLength = 16 << 20
)

// spectrumIndex is the offset index of an indexedmzML document.
type spectrumIndex struct {
	offsets   []int64 // byte offset of every spectrum element, in document order
	listStart int64   // byte offset of the indexList element
}

// readSpectrumIndex reads the indexListOffset at the end of the document and
// the spectrum offsets it points to. ok is false when the document carries
// no usable index.
func readSpectrumIndex(f *os.File, size int64) (idx spectrumIndex, ok bool) {
	tailStart := max(0, size-indexTailSize)
	tail := make([]byte, size-tailStart)
	if _, err := f.ReadAt(tail, tailStart); err != nil && err != io.EOF {
		return idx, false
	}
	const open, closing = "<indexListOffset>", "</indexListOffset>"
	s := string(tail)
	p := strings.LastIndex(s, open)
	if p < 0 {
		return idx, false
	}
	e := strings.Index(s[p:], closing)
	if e < 0 {
		return idx, false
	}
	listStart, err := strconv.ParseInt(strings.TrimSpace(s[p+len(open):p+e]), 10, 64)
	if err != nil || listStart <= 0 || listStart >= size {
		return idx, false
	}

	sc := bufio.NewScanner(io.NewSectionReader(f, listStart, size-listStart))
	sc.Buffer(make([]byte, 64*1024), maxLineLength)
	inSpectrumIndex := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "</index>") {
			inSpectrumIndex = false
			continue
		}
		switch tagName(line) {
		case "index":
			inSpectrumIndex = attrOr(line, "name") == "spectrum"
		case "offset":
			if !inSpectrumIndex {
				continue
			}
			a := strings.IndexByte(line, '>')
			b := strings.Index(line, "</offset>")
			if a < 0 || b < a {
				return idx, false
			}
			off, err := strconv.ParseInt(strings.TrimSpace(line[a+1:b]), 10, 64)
			if err != nil || off < 0 || off >= listStart {
				return idx, false
			}
			idx.offsets = append(idx.offsets, off)
		}
	}
	if sc.Err() != nil {
		return idx, false
	}
	idx.listStart = listStart
	return idx, true
}

// readIndexed parses every spectrum element independently from its indexed
// byte offset on threads goroutines.
func readIndexed(ctx context.Context, f *os.File, idx spectrumIndex, t *spectrumTable, threads int) error {
	starts := slices.Clone(idx.offsets)
	slices.Sort(starts)
	ends := make([]int64, len(starts))
	for i := range starts {
		if i+1 < len(starts) {
			ends[i] = starts[i+1]
		} else {
			ends[i] = idx.listStart
		}
	}

	return parallel.Map(ctx, len(starts), threads, func(ctx context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			c := cursor{t: t, base: -1}
			if err := c.scan(io.NewSectionReader(f, starts[i], ends[i]-starts[i])); err != nil {
				return fmt.Errorf("spectrum element at byte %d: %w", starts[i], err)
			}
		}
		return nil
	})
}
