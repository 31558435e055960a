package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/liu-chun-wu/SleepGenius/internal"
)

// FileStorage keeps all sleep data in memory and persists it as JSON
// files under a data directory. Writes are debounced through a save
// worker so bulk imports don't hit the disk once per night.
type FileStorage struct {
	mu          sync.RWMutex
	summaries   map[string]*internal.SleepSummary
	segments    map[string][]internal.SleepStageSegment
	respiration map[string][]internal.SleepRespiration
	nextID      int64

	summariesFile   string
	segmentsFile    string
	respirationFile string

	saveChan     chan struct{}
	shutdownChan chan struct{}
	saveDelay    time.Duration
	logger       internal.Logger
}

func NewFileStorage(dataDir string, logger internal.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &FileStorage{
		summaries:       make(map[string]*internal.SleepSummary),
		segments:        make(map[string][]internal.SleepStageSegment),
		respiration:     make(map[string][]internal.SleepRespiration),
		nextID:          1,
		summariesFile:   filepath.Join(dataDir, "sleep_summaries.json"),
		segmentsFile:    filepath.Join(dataDir, "sleep_stages.json"),
		respirationFile: filepath.Join(dataDir, "sleep_respiration.json"),
		saveChan:        make(chan struct{}, 1),
		shutdownChan:    make(chan struct{}),
		saveDelay:       500 * time.Millisecond,
		logger:          logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	go s.saveWorker()
	return s, nil
}

func (s *FileStorage) load() error {
	var summaries []*internal.SleepSummary
	if err := readFileJSON(s.summariesFile, &summaries); err != nil {
		return err
	}
	var segments []internal.SleepStageSegment
	if err := readFileJSON(s.segmentsFile, &segments); err != nil {
		return err
	}
	var samples []internal.SleepRespiration
	if err := readFileJSON(s.respirationFile, &samples); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sum := range summaries {
		s.summaries[sum.SummaryID] = sum
	}
	for _, seg := range segments {
		s.segments[seg.SummaryID] = append(s.segments[seg.SummaryID], seg)
		if seg.ID >= s.nextID {
			s.nextID = seg.ID + 1
		}
	}
	for _, r := range samples {
		s.respiration[r.SummaryID] = append(s.respiration[r.SummaryID], r)
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return nil
}

func readFileJSON(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}
	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) save() error {
	s.mu.RLock()
	summaries := make([]*internal.SleepSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		summaries = append(summaries, sum)
	}
	var segments []internal.SleepStageSegment
	for _, segs := range s.segments {
		segments = append(segments, segs...)
	}
	var samples []internal.SleepRespiration
	for _, rs := range s.respiration {
		samples = append(samples, rs...)
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].SummaryID < summaries[j].SummaryID })
	sort.Slice(segments, func(i, j int) bool { return segments[i].ID < segments[j].ID })
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })

	if err := atomicWriteFileJSON(s.summariesFile, summaries); err != nil {
		return err
	}
	if err := atomicWriteFileJSON(s.segmentsFile, segments); err != nil {
		return err
	}
	return atomicWriteFileJSON(s.respirationFile, samples)
}

// saveWorker batches save operations to avoid frequent disk writes.
func (s *FileStorage) saveWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.save(); err != nil {
				s.logger.Errorf("storage: error saving sleep data: %v", err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) signalSave() {
	select {
	case s.saveChan <- struct{}{}:
	default:
	}
}

func (s *FileStorage) SaveNight(ctx context.Context, summary *internal.SleepSummary, segments []internal.SleepStageSegment, samples []internal.SleepRespiration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *summary
	s.summaries[stored.SummaryID] = &stored

	// Replace, never append: re-import of a night must not duplicate
	// child rows.
	segs := make([]internal.SleepStageSegment, len(segments))
	for i, seg := range segments {
		seg.ID = s.nextID
		s.nextID++
		seg.SummaryID = stored.SummaryID
		segs[i] = seg
	}
	s.segments[stored.SummaryID] = segs

	rs := make([]internal.SleepRespiration, len(samples))
	for i, r := range samples {
		r.ID = s.nextID
		s.nextID++
		r.SummaryID = stored.SummaryID
		rs[i] = r
	}
	s.respiration[stored.SummaryID] = rs

	s.signalSave()
	return nil
}

func (s *FileStorage) ListSummaries(ctx context.Context) ([]internal.SleepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]internal.SleepSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		summaries = append(summaries, *sum)
	}
	sortByDate(summaries)
	return summaries, nil
}

func (s *FileStorage) ListSummariesBetween(ctx context.Context, start, end internal.Date) ([]internal.SleepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]internal.SleepSummary, 0)
	for _, sum := range s.summaries {
		// Inclusive on both ends.
		if !sum.Date.Before(start.Time) && !sum.Date.After(end.Time) {
			summaries = append(summaries, *sum)
		}
	}
	sortByDate(summaries)
	return summaries, nil
}

func (s *FileStorage) GetSummaryByID(ctx context.Context, summaryID string) (*internal.SleepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summaries[summaryID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sum
	return &out, nil
}

func (s *FileStorage) GetSummaryByDate(ctx context.Context, date internal.Date) (*internal.SleepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *internal.SleepSummary
	for _, sum := range s.summaries {
		if sum.Date.Equal(date.Time) {
			if match == nil || sum.SummaryID < match.SummaryID {
				match = sum
			}
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	out := *match
	return &out, nil
}

func (s *FileStorage) BestSummary(ctx context.Context) (*internal.SleepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *internal.SleepSummary
	for _, sum := range s.summaries {
		if betterNight(sum, best) {
			best = sum
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	out := *best
	return &out, nil
}

// betterNight ranks by overall score descending with nil scores last;
// ties break on earliest date, then lowest summary ID.
func betterNight(candidate, current *internal.SleepSummary) bool {
	if current == nil {
		return true
	}
	cs, bs := candidate.OverallScore, current.OverallScore
	switch {
	case cs == nil && bs == nil:
	case cs == nil:
		return false
	case bs == nil:
		return true
	case *cs != *bs:
		return *cs > *bs
	}
	if !candidate.Date.Equal(current.Date.Time) {
		return candidate.Date.Before(current.Date.Time)
	}
	return candidate.SummaryID < current.SummaryID
}

func (s *FileStorage) ListSegments(ctx context.Context, summaryID string) ([]internal.SleepStageSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segs := make([]internal.SleepStageSegment, len(s.segments[summaryID]))
	copy(segs, s.segments[summaryID])
	sort.Slice(segs, func(i, j int) bool { return segs[i].StartTime < segs[j].StartTime })
	return segs, nil
}

func (s *FileStorage) ListRespiration(ctx context.Context, summaryID string) ([]internal.SleepRespiration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs := make([]internal.SleepRespiration, len(s.respiration[summaryID]))
	copy(rs, s.respiration[summaryID])
	sort.Slice(rs, func(i, j int) bool { return rs[i].OffsetSeconds < rs[j].OffsetSeconds })
	return rs, nil
}

// Close stops the save worker and flushes pending data synchronously.
func (s *FileStorage) Close() error {
	close(s.shutdownChan)
	return s.save()
}

func sortByDate(summaries []internal.SleepSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Date.Equal(summaries[j].Date.Time) {
			return summaries[i].Date.Before(summaries[j].Date.Time)
		}
		return summaries[i].SummaryID < summaries[j].SummaryID
	})
}

var _ SleepRepository = (*FileStorage)(nil)
