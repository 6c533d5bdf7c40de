// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package interactions records one observability entry per answered query.
// Entries hold how a response was produced, never the query or answer text.
// It supports file-based and SQLite storage.
package interactions

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/config"
)

const (
	StorageTypeNone   = "none"
	StorageTypeFile   = "file"
	StorageTypeSQLite = "sqlite"
)

// Record is one interaction entry
type Record struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	Category  string    `json:"category"`
	Path      string    `json:"path"`
	Provider  string    `json:"provider,omitempty"`
	Degraded  bool      `json:"degraded"`
	HasUser   bool      `json:"has_user"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarizes the stored interactions
type Stats struct {
	StorageType string         `json:"storage_type"`
	Total       int            `json:"total"`
	Degraded    int            `json:"degraded"`
	ByCategory  map[string]int `json:"by_category"`
}

// Logger writes interaction records to the configured storage
type Logger struct {
	config config.InteractionsConfig
	logger *zap.Logger
	db     *sql.DB
	mu     sync.RWMutex
}

// NewLogger creates an interaction logger. Storage type "none" (or empty)
// yields a logger that discards records.
func NewLogger(cfg config.InteractionsConfig, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StorageType == "" {
		cfg.StorageType = StorageTypeNone
	}

	il := &Logger{
		config: cfg,
		logger: logger,
	}

	switch cfg.StorageType {
	case StorageTypeNone:
	case StorageTypeFile:
		if err := il.initFileStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
	case StorageTypeSQLite:
		if err := il.initSQLiteStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}

	return il, nil
}

func (il *Logger) initFileStorage() error {
	dir := filepath.Dir(il.config.FilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create interaction log directory: %w", err)
	}

	file, err := os.OpenFile(il.config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create interaction log file: %w", err)
	}
	return file.Close()
}

func (il *Logger) initSQLiteStorage() error {
	dir := filepath.Dir(il.config.DBPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create interaction database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", il.config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			category TEXT NOT NULL,
			path TEXT NOT NULL,
			provider TEXT,
			degraded BOOLEAN NOT NULL DEFAULT 0,
			has_user BOOLEAN NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create interactions table: %w", err)
	}

	il.db = db
	return nil
}

// Enabled reports whether records are persisted
func (il *Logger) Enabled() bool {
	return il != nil && il.config.StorageType != StorageTypeNone
}

// Log stores a record, filling in ID and Timestamp when unset
func (il *Logger) Log(record Record) error {
	if !il.Enabled() {
		return nil
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	il.mu.Lock()
	defer il.mu.Unlock()

	var err error
	switch il.config.StorageType {
	case StorageTypeFile:
		err = il.logToFile(record)
	case StorageTypeSQLite:
		err = il.logToSQLite(record)
	default:
		err = fmt.Errorf("unsupported storage type: %s", il.config.StorageType)
	}
	if err != nil {
		return err
	}

	il.logger.Debug("Interaction recorded",
		zap.String("id", record.ID),
		zap.String("storage", il.config.StorageType),
		zap.String("category", record.Category),
		zap.Bool("degraded", record.Degraded))
	return nil
}

func (il *Logger) logToFile(record Record) error {
	file, err := os.OpenFile(il.config.FilePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open interaction log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction: %w", err)
	}

	if _, err := file.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write interaction to file: %w", err)
	}
	return nil
}

func (il *Logger) logToSQLite(record Record) error {
	if il.db == nil {
		return fmt.Errorf("SQLite database not initialized")
	}

	insertSQL := `
		INSERT INTO interactions (id, request_id, category, path, provider, degraded, has_user, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := il.db.Exec(insertSQL,
		record.ID,
		record.RequestID,
		record.Category,
		record.Path,
		record.Provider,
		record.Degraded,
		record.HasUser,
		record.LatencyMs,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction into SQLite: %w", err)
	}
	return nil
}

// Stats aggregates the stored records. A disabled logger reports zero counts.
func (il *Logger) Stats() (Stats, error) {
	if !il.Enabled() {
		return Stats{StorageType: StorageTypeNone, ByCategory: map[string]int{}}, nil
	}

	il.mu.RLock()
	defer il.mu.RUnlock()

	stats := Stats{
		StorageType: il.config.StorageType,
		ByCategory:  make(map[string]int),
	}

	var err error
	switch il.config.StorageType {
	case StorageTypeFile:
		err = il.fileStats(&stats)
	case StorageTypeSQLite:
		err = il.sqliteStats(&stats)
	}
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (il *Logger) fileStats(stats *Stats) error {
	file, err := os.Open(il.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open interaction log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			il.logger.Warn("Skipping malformed interaction line", zap.Error(err))
			continue
		}
		stats.add(record.Category, record.Degraded, 1)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read interaction log file: %w", err)
	}
	return nil
}

func (il *Logger) sqliteStats(stats *Stats) error {
	if il.db == nil {
		return fmt.Errorf("SQLite database not initialized")
	}

	query := `
		SELECT category, degraded, COUNT(*) as count
		FROM interactions
		GROUP BY category, degraded
	`

	rows, err := il.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query interaction stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			category string
			degraded bool
			count    int
		)
		if err := rows.Scan(&category, &degraded, &count); err != nil {
			return fmt.Errorf("failed to scan interaction stats row: %w", err)
		}
		stats.add(category, degraded, count)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate interaction stats rows: %w", err)
	}
	return nil
}

func (s *Stats) add(category string, degraded bool, count int) {
	s.Total += count
	s.ByCategory[category] += count
	if degraded {
		s.Degraded += count
	}
}

// Ping verifies the storage is still writable
func (il *Logger) Ping(ctx context.Context) error {
	if !il.Enabled() {
		return nil
	}

	il.mu.RLock()
	defer il.mu.RUnlock()

	if il.config.StorageType == StorageTypeSQLite {
		if il.db == nil {
			return fmt.Errorf("SQLite database not initialized")
		}
		return il.db.PingContext(ctx)
	}

	file, err := os.OpenFile(il.config.FilePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open interaction log file: %w", err)
	}
	return file.Close()
}

// Close closes the logger and any open resources
func (il *Logger) Close() error {
	if il == nil {
		return nil
	}

	il.mu.Lock()
	defer il.mu.Unlock()

	if il.db != nil {
		return il.db.Close()
	}
	return nil
}
