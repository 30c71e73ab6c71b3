package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/admit/internal/adapters/cache"
	"github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/ranking"
	"github.com/okian/admit/internal/domain/resolve"
	"github.com/okian/admit/pkg/logger"
	"github.com/okian/admit/pkg/metrics"
)

func (s *Service) resolveInstitution(ctx context.Context, ref string) (model.Institution, error) {
	return resolveRef(ctx, s, s.institutions, s.instRes, EntityInstitution, ref)
}

func (s *Service) resolveField(ctx context.Context, ref string) (model.Field, error) {
	return resolveRef(ctx, s, s.fields, s.fieldRes, EntityField, ref)
}

// strategyID is reported when a reference is already a catalog id.
const (
	strategyID     = "id"
	historyCatalog = "history"
)

// resolveRef resolves a request reference against a cached catalog. Catalog
// ids are accepted as is. Failures carry suggestions.
func resolveRef[T any](ctx context.Context, s *Service, c *cache.Cache[T], r *resolve.Resolver, entity, ref string) (T, error) {
	var zero T
	snap, err := c.Get(ctx)
	if err != nil {
		return zero, err
	}
	if v, ok := snap.Get(strings.TrimSpace(ref)); ok {
		metrics.RecordResolution(entity, strategyID)
		return v, nil
	}
	m, ok := r.Resolve(ref, snap.Candidates)
	if !ok {
		metrics.RecordResolutionFailure(entity)
		nf := &NotFoundError{Entity: entity, Query: ref, Suggestions: r.Suggest(ref, snap.Candidates)}
		s.logger.Info(ctx, "resolution failed",
			logger.String("entity", entity),
			logger.String("query", ref),
			logger.Int("suggestions", len(nf.Suggestions)))
		return zero, nf
	}
	metrics.RecordResolution(entity, string(m.Strategy))
	v, ok := snap.Get(m.Candidate.ID)
	if !ok {
		return zero, fmt.Errorf("%s %q resolved to missing id %q", entity, ref, m.Candidate.ID)
	}
	return v, nil
}

// refIndex memoises reference resolution for the records of one request.
// Records repeat the same free-text names, so each distinct name is resolved
// once.
type refIndex struct {
	fieldRes *resolve.Resolver
	instRes  *resolve.Resolver
	fields   *cache.Snapshot[model.Field]
	insts    *cache.Snapshot[model.Institution]
	fieldIDs map[string]string
	instIDs  map[string]string
}

func (x *refIndex) field(ref string) string {
	return memoResolve(x.fieldIDs, x.fieldRes, x.fields.Candidates, x.fields.Items, ref)
}

func (x *refIndex) institution(ref string) string {
	return memoResolve(x.instIDs, x.instRes, x.insts.Candidates, x.insts.Items, ref)
}

func memoResolve[T any](memo map[string]string, r *resolve.Resolver, cands []resolve.Candidate, items map[string]T, ref string) string {
	if id, ok := memo[ref]; ok {
		return id
	}
	id := ""
	if _, ok := items[ref]; ok {
		id = ref
	} else if m, ok := r.Resolve(ref, cands); ok {
		id = m.Candidate.ID
	}
	memo[ref] = id
	return id
}

// history is the benchmark and quota data with every record
// stamped with its resolved ids. Records that resolve to nothing are dropped.
type history struct {
	records []model.BenchmarkRecord
	quotas  []model.AdmissionQuota
}

// historySnapshot is a resolved history together with the catalog snapshots
// its ids were resolved against.
type historySnapshot struct {
	fields    *cache.Snapshot[model.Field]
	insts     *cache.Snapshot[model.Institution]
	fetchedAt time.Time
	history   history
}

// loadHistory returns the resolved history, reusing the last one while the
// catalog snapshots are unchanged and it is younger than the cache TTL.
func (s *Service) loadHistory(ctx context.Context) (history, error) {
	fields, err := s.fields.Get(ctx)
	if err != nil {
		return history{}, err
	}
	insts, err := s.institutions.Get(ctx)
	if err != nil {
		return history{}, err
	}
	if hs := s.resolvedHistory.Load(); hs != nil && hs.fields == fields && hs.insts == insts &&
		s.now().Sub(hs.fetchedAt) < s.cacheTTL {
		metrics.RecordCacheHit(historyCatalog)
		return hs.history, nil
	}
	metrics.RecordCacheMiss(historyCatalog)

	h, err := s.fetchHistory(ctx, fields, insts)
	if err != nil {
		metrics.RecordCacheRefresh(historyCatalog, "error")
		return history{}, err
	}
	s.resolvedHistory.Store(&historySnapshot{fields: fields, insts: insts, fetchedAt: s.now(), history: h})
	metrics.RecordCacheRefresh(historyCatalog, "ok")
	metrics.UpdateCacheEntries(historyCatalog, len(h.records)+len(h.quotas))
	s.logger.Debug(ctx, "history refreshed",
		logger.Int("records", len(h.records)),
		logger.Int("quotas", len(h.quotas)))
	return h, nil
}

func (s *Service) fetchHistory(ctx context.Context, fields *cache.Snapshot[model.Field], insts *cache.Snapshot[model.Institution]) (history, error) {
	idx := &refIndex{
		fieldRes: s.fieldRes,
		instRes:  s.instRes,
		fields:   fields,
		insts:    insts,
		fieldIDs: make(map[string]string),
		instIDs:  make(map[string]string),
	}

	records, err := s.repo.Benchmarks(ctx, nil)
	if err != nil {
		return history{}, fmt.Errorf("load benchmarks: %w", err)
	}
	quotas, err := s.repo.Quotas(ctx, nil)
	if err != nil {
		return history{}, fmt.Errorf("load quotas: %w", err)
	}

	var h history
	for _, r := range records {
		r.InstitutionID, r.FieldID = idx.institution(r.InstitutionRef), idx.field(r.FieldRef)
		if r.InstitutionID == "" || r.FieldID == "" {
			continue
		}
		h.records = append(h.records, r)
	}
	for _, q := range quotas {
		q.InstitutionID, q.FieldID = idx.institution(q.InstitutionRef), idx.field(q.FieldRef)
		if q.InstitutionID == "" || q.FieldID == "" {
			continue
		}
		h.quotas = append(h.quotas, q)
	}
	return h, nil
}

// forPair returns the records and quotas of one institution and field.
func (h history) forPair(institutionID, fieldID string) ([]model.BenchmarkRecord, []model.AdmissionQuota) {
	var records []model.BenchmarkRecord
	for _, r := range h.records {
		if r.InstitutionID == institutionID && r.FieldID == fieldID {
			records = append(records, r)
		}
	}
	var quotas []model.AdmissionQuota
	for _, q := range h.quotas {
		if q.InstitutionID == institutionID && q.FieldID == fieldID {
			quotas = append(quotas, q)
		}
	}
	return records, quotas
}

// groups splits the field's records by institution, ordered by institution id.
func (h history) groups(field model.Field, insts *cache.Snapshot[model.Institution]) []ranking.Group {
	byInst := make(map[string]*ranking.Group)
	for _, r := range h.records {
		if r.FieldID != field.ID {
			continue
		}
		g, ok := byInst[r.InstitutionID]
		if !ok {
			inst, found := insts.Get(r.InstitutionID)
			if !found {
				continue
			}
			g = &ranking.Group{Institution: inst, Field: field}
			byInst[r.InstitutionID] = g
		}
		g.Records = append(g.Records, r)
	}
	for _, q := range h.quotas {
		if q.FieldID != field.ID {
			continue
		}
		if g, ok := byInst[q.InstitutionID]; ok {
			g.Quotas = append(g.Quotas, q)
		}
	}

	out := make([]ranking.Group, 0, len(byInst))
	for _, id := range sortedKeys(byInst) {
		out = append(out, *byInst[id])
	}
	return out
}
