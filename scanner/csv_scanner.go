package scanner

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/praisemwanza53/genset-monitoring/logger"
	"github.com/praisemwanza53/genset-monitoring/models"
)

// BatchInserter stores parsed readings, ignoring timestamps that already exist
type BatchInserter interface {
	InsertBatch(ctx context.Context, readings []models.SensorReading) (int64, error)
}

// CSVScanner imports genset readings exported as CSV
// (timestamp,fuel_level,temperature)
type CSVScanner struct {
	store       BatchInserter
	workerCount int
}

// FileJob represents a CSV file to be processed
type FileJob struct {
	FilePath string
	FileName string
}

// ProcessResult contains the result of processing a CSV file
type ProcessResult struct {
	FilePath    string
	RecordCount int
	Inserted    int64
	ErrorCount  int
	Duration    time.Duration
	Error       error
}

// Summary totals a directory scan
type Summary struct {
	Files      int
	Failed     int
	Records    int
	Inserted   int64
	Duplicates int
	Errors     int
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	models.TimestampLayout,
}

// NewCSVScanner creates a new CSV scanner
func NewCSVScanner(store BatchInserter) *CSVScanner {
	workerCount := runtime.NumCPU()
	if workerCount > 4 {
		// sqlite serializes writers anyway
		workerCount = 4
	}

	return &CSVScanner{
		store:       store,
		workerCount: workerCount,
	}
}

// SetWorkerCount sets the number of parallel workers
func (cs *CSVScanner) SetWorkerCount(count int) {
	if count > 0 {
		cs.workerCount = count
	}
}

// ScanDirectory imports every CSV file in directoryPath (non-recursive)
func (cs *CSVScanner) ScanDirectory(ctx context.Context, directoryPath string) (Summary, error) {
	logger.Printf("Scanning directory: %s\n", directoryPath)

	info, err := os.Stat(directoryPath)
	if err != nil {
		return Summary{}, fmt.Errorf("directory does not exist: %s", directoryPath)
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("not a directory: %s", directoryPath)
	}

	csvFiles, err := cs.findCSVFiles(directoryPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to find CSV files: %w", err)
	}

	if len(csvFiles) == 0 {
		logger.Println("No CSV files found in the directory")
		return Summary{}, nil
	}

	logger.Printf("Found %d CSV file(s) to process with %d workers\n", len(csvFiles), cs.workerCount)

	results := cs.processFilesParallel(ctx, csvFiles)
	return cs.summarize(results), nil
}

func (cs *CSVScanner) findCSVFiles(directoryPath string) ([]FileJob, error) {
	var csvFiles []FileJob

	entries, err := os.ReadDir(directoryPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == ".csv" {
			csvFiles = append(csvFiles, FileJob{
				FilePath: filepath.Join(directoryPath, entry.Name()),
				FileName: entry.Name(),
			})
		}
	}

	return csvFiles, nil
}

func (cs *CSVScanner) processFilesParallel(ctx context.Context, files []FileJob) []ProcessResult {
	jobs := make(chan FileJob, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < cs.workerCount; i++ {
		wg.Add(1)
		go cs.worker(ctx, jobs, results, &wg)
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var allResults []ProcessResult
	for result := range results {
		allResults = append(allResults, result)
	}

	return allResults
}

func (cs *CSVScanner) worker(ctx context.Context, jobs <-chan FileJob, results chan<- ProcessResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- ProcessResult{FilePath: job.FilePath, Error: err}
			continue
		}
		results <- cs.processCSVFile(ctx, job)
	}
}

// processCSVFile parses and stores a single CSV file
func (cs *CSVScanner) processCSVFile(ctx context.Context, job FileJob) (result ProcessResult) {
	startTime := time.Now()
	result.FilePath = job.FilePath
	defer func() { result.Duration = time.Since(startTime) }()

	logger.Printf("Processing file: %s\n", job.FileName)

	file, err := os.Open(job.FilePath)
	if err != nil {
		result.Error = fmt.Errorf("failed to open file: %w", err)
		return result
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		result.Error = fmt.Errorf("failed to read CSV: %w", err)
		return result
	}
	if len(records) == 0 {
		result.Error = fmt.Errorf("empty CSV file")
		return result
	}

	readings, errorCount := parseCSVRecords(records, job.FileName)
	result.RecordCount = len(readings)
	result.ErrorCount = errorCount

	if len(readings) > 0 {
		inserted, err := cs.store.InsertBatch(ctx, readings)
		if err != nil {
			result.Error = fmt.Errorf("failed to insert readings: %w", err)
			return result
		}
		result.Inserted = inserted
	}

	logger.Printf("Completed %s: %d rows parsed, %d new, %d errors\n",
		job.FileName, result.RecordCount, result.Inserted, result.ErrorCount)

	return result
}

// ParseTimestamp accepts RFC 3339, ISO 8601 without zone, and the canonical
// storage layout. Zoned times are converted to local time.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Local(), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %q", raw)
}

// parseCSVRecords turns rows into readings, counting the rows it skips
func parseCSVRecords(records [][]string, fileName string) ([]models.SensorReading, int) {
	var readings []models.SensorReading
	var errorCount int

	startRow := 0
	if isHeaderRow(records[0]) {
		startRow = 1
	}

	for i := startRow; i < len(records); i++ {
		record := records[i]

		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		if len(record) < 3 {
			errorCount++
			logger.Warnf("Row %d in %s has insufficient columns (expected 3, got %d)\n",
				i+1, fileName, len(record))
			continue
		}

		timestamp, err := ParseTimestamp(record[0])
		if err != nil {
			errorCount++
			logger.Warnf("Row %d in %s: %v\n", i+1, fileName, err)
			continue
		}

		fuelLevel, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			errorCount++
			logger.Warnf("Row %d in %s has invalid fuel level: %s\n", i+1, fileName, record[1])
			continue
		}

		temperature, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			errorCount++
			logger.Warnf("Row %d in %s has invalid temperature: %s\n", i+1, fileName, record[2])
			continue
		}

		readings = append(readings, models.NewSensorReading(timestamp, fuelLevel, temperature))
	}

	return readings, errorCount
}

// isHeaderRow recognises a header by its first column name. Rows with
// unparseable timestamps are data and get counted as errors.
func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	firstCol := strings.ToLower(strings.TrimSpace(row[0]))
	for _, word := range []string{"timestamp", "time", "date"} {
		if strings.Contains(firstCol, word) {
			return true
		}
	}
	return false
}

func (cs *CSVScanner) summarize(results []ProcessResult) Summary {
	var s Summary
	var totalDuration time.Duration

	logger.LogDivider()
	logger.Println("IMPORT SUMMARY")
	for _, result := range results {
		s.Files++
		totalDuration += result.Duration
		name := filepath.Base(result.FilePath)
		if result.Error != nil {
			s.Failed++
			logger.LogResult(name, false, result.Error.Error())
			continue
		}
		s.Records += result.RecordCount
		s.Inserted += result.Inserted
		s.Errors += result.ErrorCount
		logger.LogResult(name, true, fmt.Sprintf("%d rows, %d new, %d errors (%v)",
			result.RecordCount, result.Inserted, result.ErrorCount, result.Duration))
	}
	s.Duplicates = s.Records - int(s.Inserted)

	logger.LogDivider()
	logger.Printf("Files: %d (failed %d)\n", s.Files, s.Failed)
	logger.Printf("Rows imported: %d new, %d duplicates, %d parse errors\n", s.Inserted, s.Duplicates, s.Errors)
	logger.Printf("Total processing time: %v\n", totalDuration)
	logger.LogDivider()

	return s
}
