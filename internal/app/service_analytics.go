package app

import "context"

// Analytics pass through store aggregations with bounded parameters.

func (s *Service) AnalyticsKPIs(ctx context.Context) (map[string]any, error) {
	kpis, err := s.store.AnalyticsKPIs(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"kpis": kpis}, nil
}

func (s *Service) AnalyticsFillRate(ctx context.Context, limit int) (map[string]any, error) {
	if limit <= 0 || limit > 52 {
		limit = 12
	}
	points, err := s.store.FillRateSeries(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"series": points}, nil
}

func (s *Service) AnalyticsVelocity(ctx context.Context, weeks int) (map[string]any, error) {
	if weeks <= 0 || weeks > 26 {
		weeks = 8
	}
	points, err := s.store.TodoVelocity(ctx, weeks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"series": points}, nil
}

func (s *Service) AnalyticsHeatmap(ctx context.Context, limit int) (map[string]any, error) {
	if limit <= 0 || limit > 30 {
		limit = 10
	}
	heatmap, err := s.store.CompletionHeatmap(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"heatmap": heatmap}, nil
}

func (s *Service) AnalyticsByAssignee(ctx context.Context) (map[string]any, error) {
	loads, err := s.store.TodosByAssignee(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"assignees": loads}, nil
}

func (s *Service) AnalyticsStaleTodos(ctx context.Context, days int) (map[string]any, error) {
	if days <= 0 {
		days = 14
	}
	todos, err := s.store.StaleTodos(ctx, days)
	if err != nil {
		return nil, err
	}
	return map[string]any{"todos": todos, "thresholdDays": days}, nil
}

func (s *Service) AnalyticsActivity(ctx context.Context, limit int) (map[string]any, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.store.RecentActivity(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"activity": items}, nil
}
