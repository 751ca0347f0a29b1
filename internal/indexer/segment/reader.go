package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/errors"
)

// Reader gives access to a snapshot file. The dictionary and metadata are
// loaded eagerly; postings are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   SnapshotHeader
	footer   []byte
	dict     []DictEntry
	meta     snapshotMeta
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", apperrors.ErrCorruptSnapshot, info.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptSnapshot, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrCorruptSnapshot, header.Version)
	}
	end := header.MetaOffset + header.MetaSize
	if end+int64(FooterSize) != info.Size() {
		return nil, fmt.Errorf("%w: region sizes do not match file size", apperrors.ErrCorruptSnapshot)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, end); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("%w: dictionary checksum mismatch", apperrors.ErrCorruptSnapshot)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	metaBytes := make([]byte, header.MetaSize)
	if _, err := f.ReadAt(metaBytes, header.MetaOffset); err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	if crc32.ChecksumIEEE(metaBytes) != binary.LittleEndian.Uint32(footer[8:12]) {
		return nil, fmt.Errorf("%w: metadata checksum mismatch", apperrors.ErrCorruptSnapshot)
	}
	var meta snapshotMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if len(dict) != int(header.TermCount) || len(meta.Documents) != int(header.DocCount) {
		return nil, fmt.Errorf("%w: header counts disagree with contents", apperrors.ErrCorruptSnapshot)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		footer:   footer,
		dict:     dict,
		meta:     meta,
	}, nil
}

// Search returns the postings of a normalised term, or nil when absent.
func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	entry := r.dict[idx]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

// Load verifies the postings checksum and rebuilds the full CorpusIndex.
func (r *Reader) Load() (*index.CorpusIndex, error) {
	region := make([]byte, r.header.PostSize)
	if _, err := r.file.ReadAt(region, r.header.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings region: %w", err)
	}
	if crc32.ChecksumIEEE(region) != binary.LittleEndian.Uint32(r.footer[0:4]) {
		return nil, fmt.Errorf("%w: postings checksum mismatch", apperrors.ErrCorruptSnapshot)
	}
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		if d.PostOffset < 0 || d.PostOffset+int64(d.PostLen) > int64(len(region)) {
			return nil, fmt.Errorf("%w: postings for %q out of bounds", apperrors.ErrCorruptSnapshot, d.Term)
		}
		var postings index.PostingList
		if err := json.Unmarshal(region[d.PostOffset:d.PostOffset+int64(d.PostLen)], &postings); err != nil {
			return nil, fmt.Errorf("parsing postings for %q: %w", d.Term, err)
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}
	docs := make([]index.Document, 0, len(r.meta.Documents))
	for _, d := range r.meta.Documents {
		docs = append(docs, index.Document{ID: d.ID, Text: d.Text, Length: d.Length})
	}
	idx, err := index.Restore(docs, entries, r.meta.Params)
	if err != nil {
		return nil, fmt.Errorf("restoring index from %s: %w", r.filePath, err)
	}
	if idx.Fingerprint() != r.meta.Fingerprint {
		return nil, fmt.Errorf("%w: fingerprint mismatch", apperrors.ErrCorruptSnapshot)
	}
	return idx, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) CreatedAt() time.Time {
	return time.Unix(r.header.CreatedAt, 0)
}

func (r *Reader) Fingerprint() string {
	return r.meta.Fingerprint
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Load opens path, rebuilds the index and closes the file.
func Load(path string) (*index.CorpusIndex, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Load()
}
