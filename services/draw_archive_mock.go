package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockDrawArchive keeps reports in memory for tests
type MockDrawArchive struct {
	mu      sync.RWMutex
	reports map[string][]byte
	err     error
}

// NewMockDrawArchive creates an empty archive
func NewMockDrawArchive() *MockDrawArchive {
	return &MockDrawArchive{reports: make(map[string][]byte)}
}

// FailWith makes every following store fail with err
func (m *MockDrawArchive) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockDrawArchive) StoreDrawReport(_ context.Context, report *DrawReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	body, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	key := drawReportKey(report.Year, report.Month)
	m.reports[key] = body
	return key, nil
}

func (m *MockDrawArchive) ReportURL(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, ok := m.reports[key]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("report not found in mock archive: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// Report decodes a stored report
func (m *MockDrawArchive) Report(key string) (*DrawReport, bool) {
	m.mu.RLock()
	body, ok := m.reports[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	var report DrawReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, false
	}
	return &report, true
}
