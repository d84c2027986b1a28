package events

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// Log is an append-only, durable event log used to rebuild matching-engine
// state after a crash (spec §5).
//
// Design:
//
// 1. gob encoding — simple, and the events here are internal-only records,
//    never a wire format another service parses.
// 2. Each record carries a CRC32 checksum over its encoded event so replay
//    can detect corruption rather than silently replay garbage.
// 3. SyncMode controls whether every Append fsyncs — durability against a
//    process crash costs a syscall per write; callers batching
//    non-critical events (e.g. OrderAccepted) may prefer to leave it off.
type Log struct {
	file        *os.File
	writer      *bufio.Writer
	encoder     *gob.Encoder
	mu          sync.Mutex
	sequenceNum uint64
	syncMode    bool
	path        string
}

// Config configures the event log.
type Config struct {
	Path     string
	SyncMode bool
}

// Open creates or appends to the event log at config.Path, replaying its
// tail to recover the last sequence number.
func Open(config Config) (*Log, error) {
	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	writer := bufio.NewWriter(file)
	log := &Log{
		file:     file,
		writer:   writer,
		encoder:  gob.NewEncoder(writer),
		syncMode: config.SyncMode,
		path:     config.Path,
	}

	if err := log.recover(); err != nil {
		file.Close()
		return nil, fmt.Errorf("recover event log: %w", err)
	}
	return log, nil
}

// record is the on-disk envelope for one event.
type record struct {
	SequenceNum uint64
	Data        interface{}
	Checksum    uint32
}

func setSequence(event interface{}, seq uint64) {
	switch e := event.(type) {
	case *OrderPlacedEvent:
		e.SequenceNum = seq
	case *OrderAcceptedEvent:
		e.SequenceNum = seq
	case *OrderRejectedEvent:
		e.SequenceNum = seq
	case *TradeMatchedEvent:
		e.SequenceNum = seq
	case *TradeSettledEvent:
		e.SequenceNum = seq
	case *TradeFailedEvent:
		e.SequenceNum = seq
	case *OrderCancelledEvent:
		e.SequenceNum = seq
	}
}

// Append writes event to the log and returns its assigned sequence number.
func (l *Log) Append(event interface{}) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequenceNum++
	seq := l.sequenceNum
	setSequence(event, seq)

	rec := record{
		SequenceNum: seq,
		Data:        event,
		Checksum:    crc32.ChecksumIEEE([]byte(fmt.Sprintf("%v", event))),
	}

	if err := l.encoder.Encode(rec); err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return 0, fmt.Errorf("flush event log: %w", err)
	}
	if l.syncMode {
		if err := l.file.Sync(); err != nil {
			return 0, fmt.Errorf("sync event log: %w", err)
		}
	}
	return seq, nil
}

// Replay reads every event in order and invokes handler, used to rebuild
// state after restart.
func (l *Log) Replay(handler func(seq uint64, event interface{}) error) error {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open for replay: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)
	var lastSeq uint64

	for {
		var rec record
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("decode event: %w", err)
		}

		if lastSeq > 0 && rec.SequenceNum != lastSeq+1 {
			return fmt.Errorf("sequence gap: expected %d, got %d", lastSeq+1, rec.SequenceNum)
		}
		lastSeq = rec.SequenceNum

		expected := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%v", rec.Data)))
		if rec.Checksum != expected {
			return fmt.Errorf("checksum mismatch at sequence %d", rec.SequenceNum)
		}

		if err := handler(rec.SequenceNum, rec.Data); err != nil {
			return fmt.Errorf("handler error at sequence %d: %w", rec.SequenceNum, err)
		}
	}
	return nil
}

func (l *Log) recover() error {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)
	for {
		var rec record
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		l.sequenceNum = rec.SequenceNum
	}
	return nil
}

// LastSequence returns the last assigned sequence number.
func (l *Log) LastSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequenceNum
}

// Sync forces a flush and fsync.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

func init() {
	gob.Register(&OrderPlacedEvent{})
	gob.Register(&OrderAcceptedEvent{})
	gob.Register(&OrderRejectedEvent{})
	gob.Register(&TradeMatchedEvent{})
	gob.Register(&TradeSettledEvent{})
	gob.Register(&TradeFailedEvent{})
	gob.Register(&OrderCancelledEvent{})
}
