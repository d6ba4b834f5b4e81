package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"wink/internal/domain/gar"
)

type Calculator interface {
	Calculate(ctx context.Context, employeeID string, window gar.Window) (gar.Result, error)
}

type WeightReader interface {
	Get(ctx context.Context) (gar.Weights, error)
}

type Service struct {
	store      StoreAPI
	calculator Calculator
	weights    WeightReader
	now        func() time.Time
}

func NewService(store StoreAPI, calculator Calculator, weights WeightReader) *Service {
	return &Service{store: store, calculator: calculator, weights: weights, now: time.Now}
}

func (s *Service) TeamGAR(ctx context.Context, department string, window gar.Window) (TeamReport, error) {
	if err := window.Validate(); err != nil {
		return TeamReport{}, err
	}
	weights, err := s.weights.Get(ctx)
	if err != nil {
		return TeamReport{}, err
	}
	employees, err := s.store.ActiveEmployees(ctx, department)
	if err != nil {
		return TeamReport{}, err
	}

	report := TeamReport{
		GeneratedAt: s.now().UTC(),
		Department:  department,
		Since:       window.Since,
		Until:       window.Until,
		Weights:     weights,
		Rows:        make([]Row, 0, len(employees)),
	}
	var sum float64
	for _, e := range employees {
		res, err := s.calculator.Calculate(ctx, e.ID, window)
		if err != nil {
			return TeamReport{}, fmt.Errorf("gar for %s: %w", e.ID, err)
		}
		report.Rows = append(report.Rows, Row{
			EmployeeID: e.ID,
			FullName:   e.FullName,
			Email:      e.Email,
			Department: e.Department,
			GAR:        res.GAR,
			Metrics:    res.Metrics,
			TaskCount:  res.TaskCount,
		})
		sum += res.GAR
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].GAR > report.Rows[j].GAR
	})
	if len(report.Rows) > 0 {
		report.AverageGAR = math.Round(sum/float64(len(report.Rows))*10000) / 10000
	}
	return report, nil
}
