package mapper

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// Mode controls how Mapper behaves when a value has no entry in either the
// default or custom mapping tables.
type Mode int

const (
	// ModeStrict returns domain.ErrMappingUnmapped on a missing entry.
	ModeStrict Mode = iota
	// ModeLenient falls back to the literal canonical/native string unchanged.
	ModeLenient
)

// Mapper translates StatusUpdate status, entity type, and priority values
// between the canonical vocabulary and each external system's native
// vocabulary. It is safe for concurrent use.
type Mapper struct {
	mode      Mode
	overrides map[domain.System]*overrideTable
	allowed   *allowList
	cache     *lru.Cache[string, string]
	metrics   *Metrics
}

// New builds a Mapper. cacheSize bounds the lookup cache entry count; a
// non-positive value disables caching.
func New(mode Mode, cacheSize int, metrics *Metrics) *Mapper {
	m := &Mapper{
		mode:      mode,
		overrides: make(map[domain.System]*overrideTable, len(domain.AllSystems)),
		allowed:   newAllowList(),
		metrics:   metrics,
	}
	for _, sys := range domain.AllSystems {
		m.overrides[sys] = newOverrideTable()
	}
	if cacheSize > 0 {
		c, err := lru.New[string, string](cacheSize)
		if err == nil {
			m.cache = c
		}
	}
	return m
}

func cacheKey(system domain.System, direction, value string) string {
	return string(system) + "|" + direction + "|" + value
}

// MapStatus translates a canonical status into system's native vocabulary.
// Custom overrides take precedence over the default table.
func (m *Mapper) MapStatus(system domain.System, canonical domain.CanonicalStatus) (string, error) {
	key := cacheKey(system, "fwd", string(canonical))
	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			m.metrics.CacheHitsTotal.Inc()
			m.metrics.MappingsTotal.WithLabelValues(string(system), "forward").Inc()
			return v, nil
		}
		m.metrics.CacheMissesTotal.Inc()
	}

	if native, ok := m.overrides[system].get(canonical); ok {
		m.store(key, native)
		m.metrics.MappingsTotal.WithLabelValues(string(system), "forward").Inc()
		return native, nil
	}

	table, ok := defaultStatusTables[system]
	if ok {
		if native, ok := table.forward[canonical]; ok {
			m.store(key, native)
			m.metrics.MappingsTotal.WithLabelValues(string(system), "forward").Inc()
			return native, nil
		}
	}

	m.metrics.UnmappedTotal.WithLabelValues(string(system)).Inc()
	if m.mode == ModeLenient {
		return string(canonical), nil
	}
	return "", domain.NewMappingError(&unmappedError{system: system, value: string(canonical)})
}

// MapStatusReverse translates a system's native status token back into the
// canonical vocabulary.
func (m *Mapper) MapStatusReverse(system domain.System, native string) (domain.CanonicalStatus, error) {
	key := cacheKey(system, "rev", native)
	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			m.metrics.CacheHitsTotal.Inc()
			m.metrics.MappingsTotal.WithLabelValues(string(system), "reverse").Inc()
			return domain.CanonicalStatus(v), nil
		}
		m.metrics.CacheMissesTotal.Inc()
	}

	if canonical, ok := m.overrides[system].getReverse(native); ok {
		m.store(key, string(canonical))
		m.metrics.MappingsTotal.WithLabelValues(string(system), "reverse").Inc()
		return canonical, nil
	}

	table, ok := defaultStatusTables[system]
	if ok {
		canonical, ok := table.reverse[native]
		if _, overridden := m.overrides[system].get(canonical); ok && !overridden {
			m.store(key, string(canonical))
			m.metrics.MappingsTotal.WithLabelValues(string(system), "reverse").Inc()
			return canonical, nil
		}
	}

	m.metrics.UnmappedTotal.WithLabelValues(string(system)).Inc()
	if m.mode == ModeLenient {
		return domain.CanonicalStatus(native), nil
	}
	return "", domain.NewMappingError(&unmappedError{system: system, value: native})
}

func (m *Mapper) store(key, value string) {
	if m.cache != nil {
		m.cache.Add(key, value)
	}
}

// MapEntityType translates a canonical EntityType into system's native
// entity type token. An EntityType unsupported by system returns false.
func (m *Mapper) MapEntityType(system domain.System, entityType domain.EntityType) (string, bool) {
	bySystem, ok := defaultEntityTypeTable[entityType]
	if !ok {
		return "", false
	}
	native, ok := bySystem[system]
	return native, ok
}

// MapPriority translates a queue EventPriority into system's native
// priority token. Systems without a native priority vocabulary (the
// relational store and VCS host, per the default table) return false.
func (m *Mapper) MapPriority(system domain.System, priority domain.EventPriority) (string, bool) {
	bySystem, ok := defaultPriorityTable[priority]
	if !ok {
		return "", false
	}
	native, ok := bySystem[system]
	return native, ok
}

// AddCustomMapping installs a bidirectional status override for system,
// replacing any prior mapping for the same canonical status or native
// value. It invalidates the lookup cache entries for the pair it replaces.
func (m *Mapper) AddCustomMapping(system domain.System, canonical domain.CanonicalStatus, native string) error {
	if !validateNative(native) {
		return domain.NewValidationError(fmt.Errorf("mapper: empty native status for %s", system))
	}
	table, ok := m.overrides[system]
	if !ok {
		return domain.NewValidationError(fmt.Errorf("mapper: unknown system %s", system))
	}
	table.set(canonical, native)
	m.allowed.allow(system, native)
	if m.cache != nil {
		m.cache.Remove(cacheKey(system, "fwd", string(canonical)))
		m.cache.Remove(cacheKey(system, "rev", native))
		m.cache.Remove(cacheKey(system, "rev", defaultStatusTables[system].forward[canonical]))
	}
	return nil
}

// RemoveCustomMapping deletes a custom override, reverting lookups for
// canonical on system back to the default table (or lenient fallback).
func (m *Mapper) RemoveCustomMapping(system domain.System, canonical domain.CanonicalStatus) error {
	table, ok := m.overrides[system]
	if !ok {
		return domain.NewValidationError(fmt.Errorf("mapper: unknown system %s", system))
	}
	if native, ok := table.get(canonical); ok {
		m.allowed.disallow(system, native)
		if m.cache != nil {
			m.cache.Remove(cacheKey(system, "fwd", string(canonical)))
			m.cache.Remove(cacheKey(system, "rev", native))
		}
	}
	table.remove(canonical)
	return nil
}

// MapToAllSystems produces one StatusUpdate per target system other than
// update.Source, with Status rewritten to that system's native vocabulary.
// A target that does not support update.EntityType, or that has no mapping
// for update.Status in strict mode, is reported in the returned error slice
// rather than aborting the whole fan-out.
func (m *Mapper) MapToAllSystems(update *domain.StatusUpdate) (map[domain.System]*domain.StatusUpdate, []error) {
	canonical := domain.CanonicalStatus(update.Status)
	out := make(map[domain.System]*domain.StatusUpdate, len(domain.AllSystems))
	var errs []error

	for _, sys := range domain.AllSystems {
		if sys == update.Source {
			continue
		}
		nativeType, ok := m.MapEntityType(sys, update.EntityType)
		if !ok {
			continue
		}
		nativeStatus, err := m.MapStatus(sys, canonical)
		if err != nil {
			errs = append(errs, fmt.Errorf("system %s: %w", sys, err))
			continue
		}
		clone := update.Clone()
		clone.Status = nativeStatus
		if clone.Metadata == nil {
			clone.Metadata = make(map[string]interface{})
		}
		clone.Metadata["_nativeEntityType"] = nativeType
		out[sys] = TransformMetadata(sys, clone)
	}
	return out, errs
}
