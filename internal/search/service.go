package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSection pushes a section to Meilisearch (fire-and-forget).
func (s *Service) IndexSection(rec SectionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSection(rec); err != nil {
			log.Printf("search: index section %d: %v", rec.ID, err)
		}
	}()
}

// IndexTodo pushes a todo to Meilisearch (fire-and-forget).
func (s *Service) IndexTodo(rec TodoRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTodo(rec); err != nil {
			log.Printf("search: index todo %d: %v", rec.ID, err)
		}
	}()
}

// DeleteSection removes a section from the Meilisearch index (fire-and-forget).
func (s *Service) DeleteSection(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSection(id); err != nil {
			log.Printf("search: delete section %d: %v", id, err)
		}
	}()
}

// DeleteTodo removes a todo from the Meilisearch index (fire-and-forget).
func (s *Service) DeleteTodo(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTodo(id); err != nil {
			log.Printf("search: delete todo %d: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(sections []SectionRecord, todos []TodoRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if err := s.meili.IndexSections(sections); err != nil {
		log.Printf("search: reindex sections: %v", err)
	}
	if err := s.meili.IndexTodos(todos); err != nil {
		log.Printf("search: reindex todos: %v", err)
	}
}

// ReindexAllFromPG reads every searchable row from PostgreSQL and pushes it
// to Meilisearch. Called at startup and from the admin rebuild endpoint.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	sections, todos, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(sections, todos)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
