// Package app exposes the domain mutation call sites. Every mutation
// writes the entity store and enqueues a change record in one step, so
// local state and the outbound queue cannot drift apart.
package app

import (
	"fmt"

	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/sanitize"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/sync/queue"
	"github.com/cadenza-app/cadenza/internal/uuid"
)

// App is the service object behind the UI. All dependencies are
// injected at construction; there is no global state.
type App struct {
	stores *store.Registry
	queue  *queue.ChangeQueue
}

// New creates the app service.
func New(stores *store.Registry, q *queue.ChangeQueue) *App {
	return &App{stores: stores, queue: q}
}

// LogPractice records a new practice session.
func (a *App) LogPractice(e *models.LogbookEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	e.Normalize()
	e.Touch()
	return a.mutate(models.ChangeCreated, models.EntityLogbookEntry, e)
}

// UpdateEntry updates an existing logbook entry.
func (a *App) UpdateEntry(e *models.LogbookEntry) (string, error) {
	e.Normalize()
	e.Touch()
	return a.mutate(models.ChangeUpdated, models.EntityLogbookEntry, e)
}

// DeleteEntry removes a logbook entry.
func (a *App) DeleteEntry(id string) (string, error) {
	return a.remove(models.EntityLogbookEntry, id)
}

// AddRepertoireItem adds a piece to the repertoire.
func (a *App) AddRepertoireItem(r *models.RepertoireItem) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	r.Normalize()
	r.Touch()
	return a.mutate(models.ChangeCreated, models.EntityRepertoireItem, r)
}

// UpdateRepertoireItem updates a repertoire item.
func (a *App) UpdateRepertoireItem(r *models.RepertoireItem) (string, error) {
	r.Normalize()
	r.Touch()
	return a.mutate(models.ChangeUpdated, models.EntityRepertoireItem, r)
}

// RemoveRepertoireItem removes a piece from the repertoire.
func (a *App) RemoveRepertoireItem(id string) (string, error) {
	return a.remove(models.EntityRepertoireItem, id)
}

// SetGoal creates a new goal.
func (a *App) SetGoal(g *models.Goal) (string, error) {
	if g.ID == "" {
		g.ID = uuid.New()
	}
	g.Normalize()
	g.Touch()
	return a.mutate(models.ChangeCreated, models.EntityGoal, g)
}

// UpdateGoal updates a goal.
func (a *App) UpdateGoal(g *models.Goal) (string, error) {
	g.Normalize()
	g.Touch()
	return a.mutate(models.ChangeUpdated, models.EntityGoal, g)
}

// DeleteGoal removes a goal.
func (a *App) DeleteGoal(id string) (string, error) {
	return a.remove(models.EntityGoal, id)
}

// mutate persists the entity locally and enqueues the change for the
// next sync. Both failures surface to the caller.
func (a *App) mutate(t models.ChangeType, entityType models.EntityType, e models.Entity) (string, error) {
	s, ok := a.stores.Lookup(entityType)
	if !ok {
		return "", fmt.Errorf("no store for entity type %q", entityType)
	}

	if err := s.Put(e); err != nil {
		return "", fmt.Errorf("failed to persist %s: %w", entityType, err)
	}

	payload, err := sanitize.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to serialize %s: %w", entityType, err)
	}
	return a.queue.Enqueue(t, entityType, e.EntityID(), payload)
}

func (a *App) remove(entityType models.EntityType, id string) (string, error) {
	s, ok := a.stores.Lookup(entityType)
	if !ok {
		return "", fmt.Errorf("no store for entity type %q", entityType)
	}

	if err := s.Delete(id); err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", entityType, err)
	}
	return a.queue.Enqueue(models.ChangeDeleted, entityType, id, nil)
}
