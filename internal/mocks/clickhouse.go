package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

// MockClickHouseClient keeps pick analytics in memory for local development.
type MockClickHouseClient struct {
	mu    sync.Mutex
	picks []models.PickRecord
}

func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")
	return &MockClickHouseClient{}
}

func (m *MockClickHouseClient) RecordPick(_ context.Context, p models.PickRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.picks = append(m.picks, p)
	return nil
}

func (m *MockClickHouseClient) Picks() []models.PickRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PickRecord(nil), m.picks...)
}

// TeamStats mirrors the ClickHouse aggregation.
func (m *MockClickHouseClient) TeamStats(context.Context) ([]models.TeamStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byTeam := map[string]*models.TeamStat{}
	sums := map[string]float64{}
	for _, p := range m.picks {
		s, ok := byTeam[p.TeamName]
		if !ok {
			s = &models.TeamStat{TeamName: p.TeamName}
			byTeam[p.TeamName] = s
		}
		s.Picks++
		if p.PickNumber == 1 {
			s.FirstPicks++
		}
		sums[p.TeamName] += p.Percentage
	}

	stats := make([]models.TeamStat, 0, len(byTeam))
	for name, s := range byTeam {
		s.AvgPercentage = sums[name] / float64(s.Picks)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.FirstPicks != b.FirstPicks {
			return a.FirstPicks > b.FirstPicks
		}
		if a.Picks != b.Picks {
			return a.Picks > b.Picks
		}
		return a.TeamName < b.TeamName
	})
	return stats, nil
}

func (m *MockClickHouseClient) Ping(context.Context) error { return nil }

func (m *MockClickHouseClient) Close() error { return nil }
