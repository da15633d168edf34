package segstore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Container file layout (little-endian):
//
//	header:   magic "RCSG" (4) | version (1) | width (4) | height (4) | opened_at_millis (8)
//	frame[n]: marker "RF" (2) | frame_index (4) | timestamp_millis (8) | payload_len (4) | payload (PNG)
//	index:    marker "RX" (2) | count (4) | count * (offset (8) | length (4) | timestamp_millis (8))
//	footer:   index_offset (8) | magic "RCFT" (4)
//
// The index and footer are only written by Finalize. A segment that
// crashes mid-write has no footer; readers fall back to a sequential scan
// of the frame records, which is always well-formed one-record-at-a-time
// even if the tail record is truncated (that truncated tail record is
// detected and reported as Damaged rather than misread).
const (
	magicHeader = "RCSG"
	magicFooter = "RCFT"
	frameMarker = "RF"
	indexMarker = "RX"
	formatVersion = byte(1)

	headerSize = 4 + 1 + 4 + 4 + 8
	footerSize = 8 + 4
)

func writeHeader(w io.Writer, width, height int, openedAtMillis int64) error {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magicHeader)
	buf[4] = formatVersion
	binary.LittleEndian.PutUint32(buf[5:9], uint32(width))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(height))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(openedAtMillis))
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (width, height int, openedAtMillis int64, err error) {
	buf := make([]byte, headerSize)
	if _, err = io.ReadFull(r, buf); err != nil {
		return 0, 0, 0, err
	}
	if string(buf[0:4]) != magicHeader {
		return 0, 0, 0, fmt.Errorf("segstore: bad header magic")
	}
	width = int(binary.LittleEndian.Uint32(buf[5:9]))
	height = int(binary.LittleEndian.Uint32(buf[9:13]))
	openedAtMillis = int64(binary.LittleEndian.Uint64(buf[13:21]))
	return width, height, openedAtMillis, nil
}

type frameRecordHeader struct {
	FrameIndex     uint32
	TimestampMillis int64
	PayloadLen     uint32
}

func writeFrameRecord(w io.Writer, frameIndex uint32, timestampMillis int64, payload []byte) (recordLen int64, err error) {
	buf := make([]byte, 2+4+8+4)
	copy(buf[0:2], frameMarker)
	binary.LittleEndian.PutUint32(buf[2:6], frameIndex)
	binary.LittleEndian.PutUint64(buf[6:14], uint64(timestampMillis))
	binary.LittleEndian.PutUint32(buf[14:18], uint32(len(payload)))
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	if _, err := w.Write(payload); err != nil {
		return 0, err
	}
	return int64(len(buf) + len(payload)), nil
}

// readFrameRecordAt reads one frame record at the reader's current
// position, returning the record header and payload, or a Damaged error
// if the marker or length framing is inconsistent.
func readFrameRecordAt(r io.Reader) (frameRecordHeader, []byte, error) {
	buf := make([]byte, 2+4+8+4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return frameRecordHeader{}, nil, err
	}
	if string(buf[0:2]) != frameMarker {
		return frameRecordHeader{}, nil, newErr(ErrDamaged, "bad frame record marker", nil)
	}
	h := frameRecordHeader{
		FrameIndex:      binary.LittleEndian.Uint32(buf[2:6]),
		TimestampMillis: int64(binary.LittleEndian.Uint64(buf[6:14])),
		PayloadLen:      binary.LittleEndian.Uint32(buf[14:18]),
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frameRecordHeader{}, nil, newErr(ErrDamaged, "truncated frame payload", err)
	}
	return h, payload, nil
}

type indexEntry struct {
	Offset          int64
	Length          uint32
	TimestampMillis int64
}

func writeIndex(w io.Writer, entries []indexEntry) error {
	head := make([]byte, 2+4)
	copy(head[0:2], indexMarker)
	binary.LittleEndian.PutUint32(head[2:6], uint32(len(entries)))
	if _, err := w.Write(head); err != nil {
		return err
	}
	for _, e := range entries {
		rec := make([]byte, 8+4+8)
		binary.LittleEndian.PutUint64(rec[0:8], uint64(e.Offset))
		binary.LittleEndian.PutUint32(rec[8:12], e.Length)
		binary.LittleEndian.PutUint64(rec[12:20], uint64(e.TimestampMillis))
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func readIndex(r io.Reader) ([]indexEntry, error) {
	head := make([]byte, 2+4)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	if string(head[0:2]) != indexMarker {
		return nil, newErr(ErrDamaged, "bad index marker", nil)
	}
	count := binary.LittleEndian.Uint32(head[2:6])
	entries := make([]indexEntry, count)
	for i := range entries {
		rec := make([]byte, 8+4+8)
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, newErr(ErrDamaged, "truncated index", err)
		}
		entries[i] = indexEntry{
			Offset:          int64(binary.LittleEndian.Uint64(rec[0:8])),
			Length:          binary.LittleEndian.Uint32(rec[8:12]),
			TimestampMillis: int64(binary.LittleEndian.Uint64(rec[12:20])),
		}
	}
	return entries, nil
}

func writeFooter(w io.Writer, indexOffset int64) error {
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(indexOffset))
	copy(buf[8:12], magicFooter)
	_, err := w.Write(buf)
	return err
}

func parseFooter(buf []byte) (indexOffset int64, ok bool) {
	if len(buf) != footerSize || string(buf[8:12]) != magicFooter {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(buf[0:8])), true
}
