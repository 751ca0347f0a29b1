// Package segment persists a built CorpusIndex to a single snapshot file and
// restores it, so repeated evaluation runs over an unchanged corpus can skip
// tokenization.
//
// File layout:
//
//	header (80 bytes) | postings | dictionary (JSON) | metadata (JSON) | footer (16 bytes)
//
// The footer carries CRC-32 checksums of the three variable-length regions.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
)

// MagicBytes identifies a valid .rgx snapshot file ("RGX1").
const (
	MagicBytes    uint32 = 0x52475831
	FormatVersion uint32 = 1
	HeaderSize    int    = 80
	FooterSize    int    = 16
	Extension            = ".rgx"
)

// SnapshotHeader is the fixed-size header written at the start of a snapshot.
type SnapshotHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
	MetaOffset int64
	MetaSize   int64
}

// DictEntry maps a term to its postings offset and length relative to the
// start of the postings region.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

type docRecord struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Length int    `json:"len"`
}

type snapshotMeta struct {
	Params      index.Params `json:"params"`
	Fingerprint string       `json:"fingerprint"`
	Documents   []docRecord  `json:"documents"`
}

// Write atomically stores idx at path. It writes to path+".tmp" first and
// renames on success.
func Write(path string, idx *index.CorpusIndex) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	entries := idx.Snapshot()
	header := SnapshotHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(idx.DocCount()),
		CreatedAt: time.Now().Unix(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	header.PostOffset = int64(HeaderSize)
	postCRC := crc32.NewIEEE()
	dict := make([]DictEntry, 0, len(entries))
	var offset int64
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		postCRC.Write(postingsData)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(postingsData))
	}
	header.PostSize = offset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + header.PostSize
	header.DictSize = int64(len(dictData))

	docs := idx.Documents()
	meta := snapshotMeta{
		Params:      idx.Params(),
		Fingerprint: idx.Fingerprint(),
		Documents:   make([]docRecord, 0, len(docs)),
	}
	for _, d := range docs {
		meta.Documents = append(meta.Documents, docRecord{ID: d.ID, Text: d.Text, Length: d.Length})
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if _, err := f.Write(metaData); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	header.MetaOffset = header.DictOffset + header.DictSize
	header.MetaSize = int64(len(metaData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], postCRC.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[8:12], crc32.ChecksumIEEE(metaData))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

func encodeHeader(h SnapshotHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.MetaOffset))
	binary.LittleEndian.PutUint64(buf[64:72], uint64(h.MetaSize))
	return buf
}

func decodeHeader(buf []byte) SnapshotHeader {
	return SnapshotHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:  binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:   binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		PostOffset: int64(binary.LittleEndian.Uint64(buf[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		DictOffset: int64(binary.LittleEndian.Uint64(buf[40:48])),
		DictSize:   int64(binary.LittleEndian.Uint64(buf[48:56])),
		MetaOffset: int64(binary.LittleEndian.Uint64(buf[56:64])),
		MetaSize:   int64(binary.LittleEndian.Uint64(buf[64:72])),
	}
}
